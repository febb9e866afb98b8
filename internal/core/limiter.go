package core

// limiter.go bounds the number of Streak calls in flight across all
// requests. A listing for a BE user fans out to two accounts and a box page
// fetches the pipeline alongside its boxes, so a burst of page loads can
// multiply quickly. When all slots are occupied a call waits up to maxWait
// before failing with ErrUpstreamBusy.
//
// WaitForDrain blocks until in-flight calls finish and is used on shutdown.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrUpstreamBusy is returned when no upstream slot frees up within the
// wait timeout. Clients should retry after a short delay.
var ErrUpstreamBusy = errors.New("too many concurrent upstream calls")

// Limiter defaults.
const (
	DefaultMaxConcurrentCalls = 16
	DefaultMaxWaitTime        = 10 * time.Second
)

// CallLimiter is a counting semaphore over upstream calls.
type CallLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewCallLimiter allows at most maxConcurrent simultaneous calls.
func NewCallLimiter(maxConcurrent int, maxWait time.Duration) *CallLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCalls
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &CallLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *CallLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrUpstreamBusy
	}
}

// Release frees a slot taken by Acquire.
func (l *CallLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// ActiveCount returns the number of calls in flight.
func (l *CallLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no call is in flight or ctx is done.
func (l *CallLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot for the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *CallLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}

// limitedTransport holds a limiter slot for the duration of each round trip.
// The slot is released once the response body is closed.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *CallLimiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Acquire(req.Context()); err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.limiter.Release()
		return nil, err
	}
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: t.limiter.Release}
	return resp, nil
}

type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/streakflow/internal/logging"
	"github.com/JonMunkholm/streakflow/internal/store"
	"github.com/JonMunkholm/streakflow/internal/streak"
	"github.com/JonMunkholm/streakflow/internal/tenant"
	"golang.org/x/sync/errgroup"
)

// Options configures a Service.
type Options struct {
	Router *tenant.Router
	Fields FieldConfig

	// BaseURL is the Streak API root; empty selects streak.DefaultBaseURL.
	BaseURL string
	// HTTPClient is shared by all upstream calls; nil uses Streak defaults.
	HTTPClient *http.Client

	// Limiter bounds concurrent upstream calls; nil means unbounded.
	Limiter *CallLimiter

	// Users stores dashboard profiles; nil uses an in-memory store.
	Users store.UserStore
}

// Service composes tenant routing, the Streak client and field resolution.
// It is stateless apart from the router's observed-key cache.
type Service struct {
	router  *tenant.Router
	fields  FieldConfig
	baseURL string
	http    *http.Client
	limiter *CallLimiter
	users   store.UserStore
}

// NewService validates opts and returns a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Router == nil {
		return nil, errors.New("new service: nil tenant router")
	}
	if err := opts.Fields.Validate(); err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	users := opts.Users
	if users == nil {
		users = store.NewMemoryStore()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: streak.DefaultTimeout}
	}
	if opts.Limiter != nil {
		limited := *httpClient
		base := limited.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		limited.Transport = &limitedTransport{base: base, limiter: opts.Limiter}
		httpClient = &limited
	}
	return &Service{
		router:  opts.Router,
		fields:  opts.Fields,
		baseURL: opts.BaseURL,
		http:    httpClient,
		limiter: opts.Limiter,
		users:   users,
	}, nil
}

// Router returns the tenant router.
func (s *Service) Router() *tenant.Router { return s.router }

// Limiter returns the upstream call limiter, or nil.
func (s *Service) Limiter() *CallLimiter { return s.limiter }

// Fields returns the field configuration.
func (s *Service) Fields() FieldConfig { return s.fields }

// client returns a Streak client bound to t's credential.
func (s *Service) client(t tenant.Tenant) (*streak.Client, error) {
	key, err := s.router.Credential(t)
	if err != nil {
		return nil, credentialError(err)
	}
	return streak.New(s.baseURL, key, s.http), nil
}

// Authorize runs the session and domain checks of the access gate.
func (s *Service) Authorize(p *Principal) error {
	if p == nil || p.Subject == "" {
		return ErrAuthenticationRequired
	}
	if p.Email == "" {
		return ErrNoEmail
	}
	domain := tenant.EmailDomain(p.Email)
	if !s.router.Allowed(domain) {
		return &DomainError{Domain: domain, Allowed: s.router.Domains()}
	}
	return nil
}

// checkPipeline applies Authorize and the per-pipeline tenant scope.
func (s *Service) checkPipeline(p *Principal, action, resource, pipelineKey string) error {
	if err := s.Authorize(p); err != nil {
		return err
	}
	if !s.router.CanAccess(tenant.EmailDomain(p.Email), pipelineKey) {
		return &ScopeError{Action: action, Resource: resource, Key: pipelineKey}
	}
	return nil
}

// ListPipelines returns the pipelines visible to p. BE users get BE and NL
// listings fetched in parallel; NL users get only the NL listing. Every NL
// listing feeds the router's observed-key cache.
func (s *Service) ListPipelines(ctx context.Context, p *Principal) ([]streak.Pipeline, error) {
	if err := s.Authorize(p); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	tenants := s.router.TenantsFor(tenant.EmailDomain(p.Email))

	results := make([][]streak.Pipeline, len(tenants))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tenants {
		g.Go(func() error {
			c, err := s.client(t)
			if errors.Is(err, ErrConfigurationMissing) {
				logger.Warn("skipping tenant without credential", "tenant", t)
				return nil
			}
			if err != nil {
				return err
			}
			list, err := c.ListPipelines(gctx)
			if err != nil {
				return upstreamError(fmt.Sprintf("list %s pipelines", t), err)
			}
			for j := range list {
				list[j].Tenant = t.String()
			}
			if t == tenant.NL {
				keys := make([]string, len(list))
				for j := range list {
					keys[j] = list[j].Key
				}
				s.router.ObserveNL(keys...)
			}
			results[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	merged := make([]streak.Pipeline, 0)
	for _, list := range results {
		for _, pl := range list {
			if seen[pl.Key] {
				continue
			}
			seen[pl.Key] = true
			merged = append(merged, pl)
		}
	}
	logger.Debug("listed pipelines", "tenants", tenants, "count", len(merged))
	return merged, nil
}

// GetPipeline returns one pipeline after checking p may view it.
func (s *Service) GetPipeline(ctx context.Context, p *Principal, key string) (*streak.Pipeline, error) {
	if err := s.checkPipeline(p, "view", "pipeline", key); err != nil {
		return nil, err
	}
	t := s.router.Classify(key)
	c, err := s.client(t)
	if err != nil {
		return nil, err
	}
	pl, err := c.GetPipeline(ctx, key)
	if err != nil {
		return nil, upstreamError("get pipeline", err)
	}
	pl.Tenant = t.String()
	return pl, nil
}

// ListBoxes returns the field-resolved boxes of a pipeline. The pipeline
// metadata is fetched alongside the boxes; if either call fails nothing is
// returned.
func (s *Service) ListBoxes(ctx context.Context, p *Principal, key string) ([]streak.Box, error) {
	_, boxes, err := s.pipelineWithBoxes(ctx, p, key)
	return boxes, err
}

// PipelineView is a pipeline with its filtered, grouped boxes.
type PipelineView struct {
	Pipeline *streak.Pipeline   `json:"pipeline"`
	Total    int                `json:"total"`
	Matched  int                `json:"matched"`
	Groups   []PartnershipGroup `json:"groups"`
}

// GroupedBoxes returns the boxes of a pipeline filtered by f and grouped by
// partnership and stage.
func (s *Service) GroupedBoxes(ctx context.Context, p *Principal, key string, f BoxFilter) (*PipelineView, error) {
	pl, boxes, err := s.pipelineWithBoxes(ctx, p, key)
	if err != nil {
		return nil, err
	}
	labelKey := s.fields.ResolvedKey()
	filtered := FilterBoxes(boxes, f, labelKey)
	return &PipelineView{
		Pipeline: pl,
		Total:    len(boxes),
		Matched:  len(filtered),
		Groups:   GroupBoxes(pl, filtered, labelKey),
	}, nil
}

func (s *Service) pipelineWithBoxes(ctx context.Context, p *Principal, key string) (*streak.Pipeline, []streak.Box, error) {
	if err := s.checkPipeline(p, "view", "pipeline", key); err != nil {
		return nil, nil, err
	}
	t := s.router.Classify(key)
	c, err := s.client(t)
	if err != nil {
		return nil, nil, err
	}

	var (
		pl    *streak.Pipeline
		boxes []streak.Box
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		boxes, err = c.ListBoxes(gctx, key)
		return upstreamError("list boxes", err)
	})
	g.Go(func() error {
		var err error
		pl, err = c.GetPipeline(gctx, key)
		return upstreamError("get pipeline", err)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	pl.Tenant = t.String()

	if boxes == nil {
		boxes = []streak.Box{}
	}
	resolved, err := s.fields.ResolveBoxes(pl, boxes)
	if err != nil {
		return nil, nil, err
	}
	return pl, resolved, nil
}

// locateBox fetches a box trying BE first, then NL. Not-found and missing
// credentials fall through to the next tenant.
func (s *Service) locateBox(ctx context.Context, key string) (*streak.Box, error) {
	var errs []error
	for _, t := range tenant.All {
		c, err := s.client(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		box, err := c.GetBox(ctx, key)
		if err == nil {
			return box, nil
		}
		errs = append(errs, upstreamError(fmt.Sprintf("get %s box", t), err))
	}

	// A real failure on any tenant wins over not-found on another, and the
	// returned error must not match ErrNotFound.
	var failures []error
	for _, err := range errs {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConfigurationMissing) {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("box %s: %w", key, errors.Join(failures...))
	}

	joined := errors.Join(errs...)
	for _, err := range errs {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("box %s: %w", key, joinedNotFound{joined})
		}
	}
	// No tenant is configured at all.
	return nil, joined
}

// joinedNotFound reports only ErrNotFound for a lookup where every tenant
// came back empty or unconfigured.
type joinedNotFound struct{ err error }

func (e joinedNotFound) Error() string { return e.err.Error() }

func (e joinedNotFound) Is(target error) bool { return target == ErrNotFound }

// GetBox returns a box after checking p may view its pipeline. The check
// uses the pipeline reported by Streak for the box.
func (s *Service) GetBox(ctx context.Context, p *Principal, key string) (*streak.Box, error) {
	if err := s.Authorize(p); err != nil {
		return nil, err
	}
	box, err := s.locateBox(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.checkPipeline(p, "view", "box", box.PipelineKey); err != nil {
		return nil, err
	}
	return box, nil
}

// FieldUpdate is a request to set one field on one box.
type FieldUpdate struct {
	BoxKey   string
	FieldKey string
	Value    any

	// PipelineHint is the pipeline the client claims the box belongs to.
	// It is only logged; authorization uses the box's real pipeline.
	PipelineHint string
}

// UpdateBoxField sets a field value. The box is fetched first so that its
// real pipeline decides both access and which credential performs the write.
func (s *Service) UpdateBoxField(ctx context.Context, p *Principal, u FieldUpdate) error {
	if err := s.Authorize(p); err != nil {
		return err
	}
	if u.BoxKey == "" || u.FieldKey == "" {
		return fmt.Errorf("%w: box key and field key are required", ErrInvalidRequest)
	}

	box, err := s.locateBox(ctx, u.BoxKey)
	if err != nil {
		return err
	}
	if u.PipelineHint != "" && u.PipelineHint != box.PipelineKey {
		logging.FromContext(ctx).Warn("ignoring pipeline hint that does not match box",
			"box", u.BoxKey,
			"hint", u.PipelineHint,
			"pipeline", box.PipelineKey,
			"email", p.Email,
		)
	}
	if err := s.checkPipeline(p, "modify", "box", box.PipelineKey); err != nil {
		return err
	}

	t := s.router.Classify(box.PipelineKey)
	c, err := s.client(t)
	if err != nil {
		return err
	}
	if err := c.UpdateBoxField(ctx, u.BoxKey, u.FieldKey, u.Value); err != nil {
		return upstreamError("update box field", err)
	}

	logging.FromContext(ctx).Info("box field updated",
		"box", u.BoxKey,
		"field", u.FieldKey,
		"tenant", t,
		"email", p.Email,
		"ip", GetIPAddressFromContext(ctx),
	)
	return nil
}

// CurrentUser returns the stored profile of p, falling back to the session
// claims when no row exists.
func (s *Service) CurrentUser(ctx context.Context, p *Principal) (*store.User, error) {
	if err := s.Authorize(p); err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, p.Subject)
	if errors.Is(err, store.ErrUserNotFound) {
		return &store.User{
			ID:              p.Subject,
			Email:           p.Email,
			FirstName:       p.FirstName,
			LastName:        p.LastName,
			ProfileImageURL: p.ProfileImageURL,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

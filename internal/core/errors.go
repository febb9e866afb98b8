package core

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/streakflow/internal/streak"
	"github.com/JonMunkholm/streakflow/internal/tenant"
)

// Sentinel errors. Service methods wrap them with context; callers match
// with errors.Is.
var (
	// ErrAuthenticationRequired means the request carries no valid session.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrNoEmail means the session has no email claim.
	ErrNoEmail = errors.New("access denied: no email provided")

	// ErrDomainNotAllowed means the email domain is not on the allow-list.
	ErrDomainNotAllowed = errors.New("access denied: email domain not allowed")

	// ErrLoginUnavailable means no identity provider is configured.
	ErrLoginUnavailable = errors.New("login is not configured")

	// ErrAccessDenied means the pipeline or box is outside the user's tenant scope.
	ErrAccessDenied = errors.New("access denied: no permission for this pipeline")

	// ErrNotFound means Streak reported the resource as missing.
	ErrNotFound = errors.New("resource not found")

	// ErrUpstream covers every other Streak failure, including network errors.
	ErrUpstream = errors.New("upstream request failed")

	// ErrConfigurationMissing means a required upstream credential is absent.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrInvalidRequest means the client sent a malformed request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAmbiguousField means more than one pipeline field matched a
	// configured field name.
	ErrAmbiguousField = errors.New("ambiguous field match")
)

// upstreamError classifies an error returned by the Streak client.
func upstreamError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, streak.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}
}

// credentialError classifies an error from tenant.Router.Credential.
func credentialError(err error) error {
	if errors.Is(err, tenant.ErrMissingCredential) {
		return fmt.Errorf("%w: %w", ErrConfigurationMissing, err)
	}
	return err
}

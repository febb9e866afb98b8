package core

// error_messages.go maps internal errors to user-facing messages with codes
// for support reference. Upstream detail never reaches the client: the
// technical error is logged server-side and only the summary below is
// returned.
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - No session: the request is not signed in (401)
//	AUTH002 - No email: the session carries no email claim (403)
//	AUTH003 - Domain not allowed: email domain is not allow-listed (403)
//	AUTH004 - Login unavailable: no identity provider is configured (503)
//
// # Access (ACC001-ACC099)
//
//	ACC001 - Out of scope: pipeline or box belongs to another tenant (403)
//
// # Upstream (UPS001-UPS099)
//
//	UPS001 - Not found: Streak has no such pipeline or box (404)
//	UPS002 - Upstream failure: any other Streak or network error (500)
//	UPS003 - Timeout: the upstream call did not finish in time (500)
//	UPS004 - Busy: no upstream call slot freed up in time (503)
//
// # Configuration (CFG001-CFG099)
//
//	CFG001 - Credential missing: the tenant's API key is not set (500)
//	CFG002 - Ambiguous field: several pipeline fields match one name (500)
//
// # Requests (REQ001-REQ099)
//
//	REQ001 - Invalid request: malformed body or parameters (400)
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: too many requests (429)
//
// # Default (ERR000)
//
//	ERR000 - Unknown error: anything not matched above (500)
//
// Sentinel errors are matched first with errors.Is. Errors that carry no
// sentinel fall back to case-insensitive substring patterns; the first
// matching pattern wins.

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// DomainError reports an email domain outside the allow-list. It matches
// ErrDomainNotAllowed.
type DomainError struct {
	Domain  string
	Allowed []string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("access denied: domain %q not in %v", e.Domain, e.Allowed)
}

// Is makes DomainError match ErrDomainNotAllowed.
func (e *DomainError) Is(target error) bool { return target == ErrDomainNotAllowed }

// ScopeError reports a pipeline or box outside the caller's tenant scope.
// It matches ErrAccessDenied.
type ScopeError struct {
	Action   string // "view" or "modify"
	Resource string // "pipeline" or "box"
	Key      string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("access denied: cannot %s %s %s", e.Action, e.Resource, e.Key)
}

// Is makes ScopeError match ErrAccessDenied.
func (e *ScopeError) Is(target error) bool { return target == ErrAccessDenied }

// sentinelMessage binds a sentinel error to its message and HTTP status.
type sentinelMessage struct {
	target error
	status int
	msg    UserMessage
}

var (
	domainNotAllowedMessage = UserMessage{
		Message: "Access denied: email domain is not allowed",
		Action:  "Sign in with your organization account",
		Code:    "AUTH003",
	}
	accessDeniedMessage = UserMessage{
		Message: "Access denied: You don't have permission to access this pipeline",
		Action:  "Ask an administrator for access",
		Code:    "ACC001",
	}
	timeoutMessage = UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "UPS003",
	}
)

var sentinelMessages = []sentinelMessage{
	{ErrAuthenticationRequired, http.StatusUnauthorized, UserMessage{
		Message: "Unauthorized",
		Action:  "Please sign in",
		Code:    "AUTH001",
	}},
	{ErrNoEmail, http.StatusForbidden, UserMessage{
		Message: "Access denied: No email provided",
		Action:  "Sign in with an account that has an email address",
		Code:    "AUTH002",
	}},
	{ErrDomainNotAllowed, http.StatusForbidden, domainNotAllowedMessage},
	{ErrLoginUnavailable, http.StatusServiceUnavailable, UserMessage{
		Message: "Sign-in is not available",
		Action:  "Contact an administrator",
		Code:    "AUTH004",
	}},
	{ErrAccessDenied, http.StatusForbidden, accessDeniedMessage},
	{ErrInvalidRequest, http.StatusBadRequest, UserMessage{
		Message: "Invalid request",
		Action:  "Check the request parameters and body",
		Code:    "REQ001",
	}},
	{ErrNotFound, http.StatusNotFound, UserMessage{
		Message: "Pipeline or box not found",
		Action:  "Check the link or go back to the dashboard",
		Code:    "UPS001",
	}},
	{ErrConfigurationMissing, http.StatusInternalServerError, UserMessage{
		Message: "Streak is not configured for this organization",
		Action:  "Contact an administrator",
		Code:    "CFG001",
	}},
	{ErrAmbiguousField, http.StatusInternalServerError, UserMessage{
		Message: "Pipeline field configuration is ambiguous",
		Action:  "Contact an administrator",
		Code:    "CFG002",
	}},
	{ErrUpstreamBusy, http.StatusServiceUnavailable, UserMessage{
		Message: "The dashboard is busy talking to Streak",
		Action:  "Please try again in a few moments",
		Code:    "UPS004",
	}},
	{ErrUpstream, http.StatusInternalServerError, UserMessage{
		Message: "Failed to communicate with Streak",
		Action:  "Please try again in a few moments",
		Code:    "UPS002",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted only when no sentinel matched.
var errorPatterns = []errorPattern{
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{pattern: "context deadline exceeded", msg: timeoutMessage},
	{pattern: "timeout", msg: timeoutMessage},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "Invalid request",
			Action:  "Check the request parameters and body",
			Code:    "REQ001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		msg := domainNotAllowedMessage
		msg.Message = "Access denied: Only " + joinDomains(domainErr.Allowed) + " email addresses are allowed"
		return msg
	}

	var scopeErr *ScopeError
	if errors.As(err, &scopeErr) {
		msg := accessDeniedMessage
		msg.Message = fmt.Sprintf("Access denied: You don't have permission to %s this %s", scopeErr.Action, scopeErr.Resource)
		return msg
	}

	if isTimeout(err) {
		return timeoutMessage
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

// StatusCode returns the HTTP status for err.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.status
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// isTimeout reports a deadline or network timeout anywhere in err. It is
// checked ahead of the sentinels because upstream timeouts also wrap
// ErrUpstream. A busy limiter keeps its own code.
func isTimeout(err error) bool {
	if errors.Is(err, ErrUpstreamBusy) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// joinDomains renders ["a.be", "b.nl"] as "@a.be and @b.nl".
func joinDomains(domains []string) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = "@" + d
	}
	switch len(parts) {
	case 0:
		return "allow-listed"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

// FormatUserError renders err as a single line for HTML pages.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than the
// default message. Errors that are not user facing get logged at error level.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

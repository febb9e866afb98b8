// Package core holds the dashboard's business logic, independent of the HTTP
// layer. Web handlers and tests drive it through [Service].
//
// # Access
//
// Every Service method starts with [Service.Authorize]: the caller must have
// a session, the session must carry an email, and the email domain must be
// allow-listed. Pipeline-scoped methods then ask the tenant router whether
// the caller's domain may see the pipeline. Box updates are checked against
// the pipeline Streak reports for the box, never against the pipeline the
// client names.
//
// # Tenants
//
// BE users see both Streak accounts; listings from the two are fetched in
// parallel and merged with BE first. NL users see only the NL account. The
// credential for a call follows the pipeline's tenant as classified by
// [tenant.Router].
//
// # Field Resolution
//
// Boxes carry partnership tiers as opaque option keys. [FieldConfig] locates
// the partnership and "partner page live" fields in a pipeline's metadata
// and [FieldSchema.Apply] writes the readable label and a normalized boolean
// back onto each box.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError] and
// to HTTP statuses with [StatusCode]. Each category has a code for support
// reference:
//
//   - AUTH001-AUTH004: session, email and domain checks, login availability
//   - ACC001: tenant scope
//   - UPS001-UPS004: Streak failures
//   - CFG001-CFG002: missing credentials and ambiguous field names
//   - REQ001, RATE001, ERR000: requests, rate limits and everything else
package core

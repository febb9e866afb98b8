// Package tenant decides which organizational tenant (BE or NL) a Streak
// pipeline belongs to, which upstream credential serves it, and whether a
// user's email domain may see it.
package tenant

import (
	"encoding/base64"
	"strings"
)

// Tenant is one of the two organizational scopes.
type Tenant string

const (
	BE Tenant = "BE"
	NL Tenant = "NL"
)

// All lists the tenants in lookup order: BE first, then NL.
var All = []Tenant{BE, NL}

// String returns the tenant code.
func (t Tenant) String() string { return string(t) }

// Valid reports whether t is a known tenant.
func (t Tenant) Valid() bool {
	return t == BE || t == NL
}

// Marker returns the substring that Streak embeds in the keys of pipelines
// owned by an organization: the standard base64 encoding of its domain.
// "techorama.nl" encodes to "dGVjaG9yYW1hLm5s".
func Marker(domain string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.ToLower(domain)))
}

// EmailDomain returns the lower-cased domain part of email, or "" when the
// address is not of the form local@domain.
func EmailDomain(email string) string {
	email = strings.TrimSpace(email)
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

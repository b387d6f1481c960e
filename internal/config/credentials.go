package config

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// Credentials holds the secret callers must present and the secret used
// against the upstream. It is built once at startup and never mutated.
type Credentials struct {
	inbound  string
	upstream string
}

func NewCredentials(inbound, upstream string) Credentials {
	return Credentials{inbound: inbound, upstream: upstream}
}

func (c Credentials) Inbound() string { return c.inbound }

func (c Credentials) Upstream() string { return c.upstream }

func (c Credentials) HasInbound() bool { return c.inbound != "" }

func (c Credentials) HasUpstream() bool { return c.upstream != "" }

// MatchInbound compares token against the inbound secret in constant time.
func (c Credentials) MatchInbound(token string) bool {
	if c.inbound == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.inbound)) == 1
}

// Scrub replaces any occurrence of either secret in s.
func (c Credentials) Scrub(s string) string {
	for _, secret := range []string{c.upstream, c.inbound} {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[REDACTED]")
		}
	}
	return s
}

func (c Credentials) String() string {
	return fmt.Sprintf("inbound=%s upstream=%s", Redact(c.inbound), Redact(c.upstream))
}

// Redact shows at most the last four characters of a secret.
func Redact(secret string) string {
	switch {
	case secret == "":
		return "<unset>"
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

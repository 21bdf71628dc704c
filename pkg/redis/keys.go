package redis

import "strings"

const keyNamespace = "agri"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	cooldownPrefix    = "cooldown"
	geocodePrefix     = "geocode"
)

// IdempotencyKey namespaces a replay record by route scope and client key.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope, subject string) string {
	return buildKey(rateLimitPrefix, scope, subject)
}

func (c *Client) CooldownKey(scope, id string) string {
	return buildKey(cooldownPrefix, scope, id)
}

// GeocodeKey is case-insensitive so "Pune" and "pune" share a cache entry.
func (c *Client) GeocodeKey(query string) string {
	return buildKey(geocodePrefix, strings.ToLower(query))
}

func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

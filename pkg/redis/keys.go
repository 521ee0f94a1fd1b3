package redis

import "strings"

const namespace = "hl"

// IdempotencyKey namespaces a claimed event or request id.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey("idempotency", scope, id)
}

// RateLimitKey names a fixed-window counter, e.g. OTP attempts per order.
func (c *Client) RateLimitKey(scope string) string {
	return joinKey("rate_limit", scope)
}

func (c *Client) RevokedTokenKey(jti string) string {
	return joinKey("revoked", jti)
}

// LockKey names the leader lock for one service in one environment.
func (c *Client) LockKey(service, name string) string {
	return joinKey(service, "lock", name)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
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

package config

import "context"

type ctxKey struct{}

// WithContext returns a copy of ctx carrying c.
func WithContext(ctx context.Context, c *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the Config installed by WithContext.
func FromContext(ctx context.Context) (*Config, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Config)
	return c, ok && c != nil
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvAPIToken, "scoped-token")
	t.Setenv(EnvAPIKey, "global-key")
	t.Setenv(EnvAPIEmail, "ops@example.com")
	t.Setenv(EnvOriginCAKey, "v1.0-certkey")
	t.Setenv(EnvTunnelServiceKey, "v1.0-svckey")
	t.Setenv(EnvAPIBaseURL, "http://localhost:8787")
	t.Setenv(EnvStoreEndpoint, "http://localhost:4566")

	cfg := FromEnv()
	assert.Equal(t, "scoped-token", cfg.Cloudflare.APIToken)
	assert.Equal(t, "global-key", cfg.Cloudflare.APIKey)
	assert.Equal(t, "ops@example.com", cfg.Cloudflare.APIEmail)
	assert.Equal(t, "v1.0-certkey", cfg.Cloudflare.OriginCAKey)
	assert.Equal(t, "v1.0-svckey", cfg.Cloudflare.TunnelServiceKey)
	assert.Equal(t, "http://localhost:8787", cfg.Cloudflare.BaseURL)
	assert.Equal(t, "http://localhost:4566", cfg.Store.Endpoint)
}

func TestFromEnvEmptyEnvironment(t *testing.T) {
	for _, name := range []string{EnvAPIToken, EnvAPIKey, EnvAPIEmail, EnvOriginCAKey, EnvTunnelServiceKey, EnvAPIBaseURL, EnvStoreEndpoint} {
		t.Setenv(name, "")
	}

	cfg := FromEnv()
	assert.False(t, cfg.Cloudflare.HasTokenAuth())
	assert.False(t, cfg.Cloudflare.HasKeyAuth())
	assert.False(t, cfg.Cloudflare.HasOriginCAKey())
}

func TestCredentialPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		creds     CloudflareConfig
		tokenAuth bool
		keyAuth   bool
	}{
		{
			name:      "token only",
			creds:     CloudflareConfig{APIToken: "t"},
			tokenAuth: true,
		},
		{
			name:    "key and email",
			creds:   CloudflareConfig{APIKey: "k", APIEmail: "e@example.com"},
			keyAuth: true,
		},
		{
			name:  "key without email is not key auth",
			creds: CloudflareConfig{APIKey: "k"},
		},
		{
			name:  "email without key is not key auth",
			creds: CloudflareConfig{APIEmail: "e@example.com"},
		},
		{
			name:      "both credentials at once",
			creds:     CloudflareConfig{APIToken: "t", APIKey: "k", APIEmail: "e@example.com"},
			tokenAuth: true,
			keyAuth:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.tokenAuth, tt.creds.HasTokenAuth())
			assert.Equal(t, tt.keyAuth, tt.creds.HasKeyAuth())
		})
	}
}

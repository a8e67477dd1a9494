// Package config builds the runtime configuration for cfrotate.
//
// All configuration is read from the environment exactly once, at process
// start, into named fields. Nothing is derived implicitly at call time: a
// credential kind either has the authentication material it needs or the
// phase fails with a configuration error before any provider call is made.
package config

import (
	"os"

	"github.com/systmms/cfrotate/internal/logging"
)

// Environment variable names consumed by cfrotate. The CF_* names match what
// the Cloudflare tooling ecosystem already uses.
const (
	EnvAPIToken         = "CF_API_TOKEN"
	EnvAPIKey           = "CF_API_KEY"
	EnvAPIEmail         = "CF_API_EMAIL"
	EnvOriginCAKey      = "CF_API_CERTKEY"
	EnvTunnelServiceKey = "CF_TUNNEL_SERVICE_KEY"
	EnvAPIBaseURL       = "CF_API_URL"
	EnvStoreEndpoint    = "CFROTATE_SM_ENDPOINT"
)

// Config holds the runtime configuration.
type Config struct {
	Cloudflare CloudflareConfig
	Store      StoreConfig
	Logger     *logging.Logger
}

// CloudflareConfig holds Cloudflare API authentication material.
//
// Token authentication (APIToken) and key authentication (APIKey + APIEmail)
// are distinct credentials with different capabilities upstream: API tokens
// can manage other tokens, while the user service key endpoints require the
// global key and account email. Both may be present at once.
type CloudflareConfig struct {
	// APIToken is a scoped API token able to create and manage other tokens.
	APIToken string

	// APIKey and APIEmail form the global key credential required by the
	// user service key endpoints.
	APIKey   string
	APIEmail string

	// OriginCAKey is the Origin CA key used to issue origin certificates.
	OriginCAKey string

	// TunnelServiceKey is the fallback service key used for tunnel token
	// assembly when the secret record carries no TunnelServiceKeyArn.
	TunnelServiceKey string

	// BaseURL overrides the Cloudflare API endpoint (testing only).
	BaseURL string
}

// StoreConfig holds AWS Secrets Manager client configuration. Credentials and
// region come from the standard AWS environment; Endpoint exists for
// LocalStack and tests.
type StoreConfig struct {
	Endpoint string
}

// FromEnv reads the process environment into a Config. It never fails:
// per-kind requirements are enforced later, when a phase knows which
// credential kind it is rotating.
func FromEnv() *Config {
	return &Config{
		Cloudflare: CloudflareConfig{
			APIToken:         os.Getenv(EnvAPIToken),
			APIKey:           os.Getenv(EnvAPIKey),
			APIEmail:         os.Getenv(EnvAPIEmail),
			OriginCAKey:      os.Getenv(EnvOriginCAKey),
			TunnelServiceKey: os.Getenv(EnvTunnelServiceKey),
			BaseURL:          os.Getenv(EnvAPIBaseURL),
		},
		Store: StoreConfig{
			Endpoint: os.Getenv(EnvStoreEndpoint),
		},
	}
}

// HasTokenAuth reports whether a scoped API token is configured.
func (c CloudflareConfig) HasTokenAuth() bool {
	return c.APIToken != ""
}

// HasKeyAuth reports whether the global key credential is fully configured.
func (c CloudflareConfig) HasKeyAuth() bool {
	return c.APIKey != "" && c.APIEmail != ""
}

// HasOriginCAKey reports whether the Origin CA key is configured.
func (c CloudflareConfig) HasOriginCAKey() bool {
	return c.OriginCAKey != ""
}

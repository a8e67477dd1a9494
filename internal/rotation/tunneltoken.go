package rotation

import (
	"context"

	cferrors "github.com/systmms/cfrotate/internal/errors"
	"github.com/systmms/cfrotate/internal/logging"
	"github.com/systmms/cfrotate/internal/secretstore"
)

// TunnelTokenRotator rotates Argo tunnel tokens. Each rotation resolves the
// tunnel service key, then assembles a complete token: a fresh private key,
// an origin certificate for the hostname, and the encoded service key block.
// A failure anywhere aborts with nothing persisted.
type TunnelTokenRotator struct {
	tunnels TunnelAPI
	store   secretstore.Store

	// fallbackServiceKey is used when the record carries no
	// TunnelServiceKeyArn reference.
	fallbackServiceKey string

	logger *logging.Logger
}

// NewTunnelTokenRotator creates the rotator for KindTunnelToken.
func NewTunnelTokenRotator(tunnels TunnelAPI, store secretstore.Store, fallbackServiceKey string, logger *logging.Logger) *TunnelTokenRotator {
	return &TunnelTokenRotator{
		tunnels:            tunnels,
		store:              store,
		fallbackServiceKey: fallbackServiceKey,
		logger:             logger,
	}
}

// Kind returns KindTunnelToken.
func (r *TunnelTokenRotator) Kind() Kind {
	return KindTunnelToken
}

// Create assembles a fresh tunnel token and overwrites TokenValue.
func (r *TunnelTokenRotator) Create(ctx context.Context, secretID string, current Record) (Record, error) {
	attrs, err := current.TunnelToken()
	if err != nil {
		return Record{}, cferrors.ConfigurationError{SecretID: secretID, Message: err.Error()}
	}

	serviceKey, err := r.resolveServiceKey(ctx, secretID, attrs)
	if err != nil {
		return Record{}, err
	}

	value, err := r.tunnels.CreateTunnelToken(ctx, attrs.ZoneID, serviceKey, attrs.Hostname, attrs.ValidityDays)
	if err != nil {
		return Record{}, cferrors.ProviderError{Operation: "tunnel token creation", Err: err}
	}

	attrs.TokenValue = value
	r.logger.Info("created tunnel token for %s (%s)", secretID, attrs.Hostname)
	return current.WithAttributes(attrs)
}

// resolveServiceKey reads the service key from the referenced secret's
// current version, or falls back to the configured value.
func (r *TunnelTokenRotator) resolveServiceKey(ctx context.Context, secretID string, attrs TunnelTokenAttributes) (string, error) {
	if attrs.TunnelServiceKeyArn == "" {
		if r.fallbackServiceKey == "" {
			return "", cferrors.ConfigurationError{
				SecretID: secretID,
				Message:  "record has no TunnelServiceKeyArn and no fallback tunnel service key is configured",
			}
		}
		return r.fallbackServiceKey, nil
	}

	payload, err := r.store.GetVersion(ctx, attrs.TunnelServiceKeyArn, secretstore.StageCurrent, "")
	if err != nil {
		return "", err
	}

	keyRecord, err := ParseRecord(payload)
	if err != nil {
		return "", cferrors.ConfigurationError{SecretID: attrs.TunnelServiceKeyArn, Message: err.Error()}
	}
	keyAttrs, err := keyRecord.ServiceKey()
	if err != nil {
		return "", cferrors.ConfigurationError{SecretID: attrs.TunnelServiceKeyArn, Message: err.Error()}
	}
	if keyAttrs.KeyValue == "" {
		return "", cferrors.ConfigurationError{
			SecretID: attrs.TunnelServiceKeyArn,
			Message:  "referenced tunnel service key secret has an empty KeyValue",
		}
	}
	return keyAttrs.KeyValue, nil
}

// Test is a no-op: verifying a tunnel token would require speaking the
// cloudflared RPC protocol to the edge. The gap is recorded in the kind
// capabilities registry.
func (r *TunnelTokenRotator) Test(ctx context.Context, secretID string, pending Record) error {
	r.logger.Debug("tunnel tokens have no verification capability, skipping test for %s", secretID)
	return nil
}

package rotation

import (
	"context"

	cferrors "github.com/systmms/cfrotate/internal/errors"
	"github.com/systmms/cfrotate/internal/logging"
)

// ServiceKeyRotator rotates origin tunnel service keys. The issuing service
// tracks no identity or lifecycle for this kind: requesting the key endpoint
// rotates it upstream, so each rotation simply overwrites KeyValue.
type ServiceKeyRotator struct {
	keys   ServiceKeyAPI
	logger *logging.Logger
}

// NewServiceKeyRotator creates the rotator for KindServiceKey.
func NewServiceKeyRotator(keys ServiceKeyAPI, logger *logging.Logger) *ServiceKeyRotator {
	return &ServiceKeyRotator{keys: keys, logger: logger}
}

// Kind returns KindServiceKey.
func (r *ServiceKeyRotator) Kind() Kind {
	return KindServiceKey
}

// Create requests a fresh service key value.
func (r *ServiceKeyRotator) Create(ctx context.Context, secretID string, current Record) (Record, error) {
	attrs, err := current.ServiceKey()
	if err != nil {
		return Record{}, cferrors.ConfigurationError{SecretID: secretID, Message: err.Error()}
	}

	value, err := r.keys.CreateServiceKey(ctx)
	if err != nil {
		return Record{}, cferrors.ProviderError{Operation: "service key creation", Err: err}
	}

	attrs.KeyValue = value
	r.logger.Info("created tunnel service key for %s", secretID)
	return current.WithAttributes(attrs)
}

// Test is a no-op: upstream offers no way to verify a service key. The gap
// is recorded in the kind capabilities registry.
func (r *ServiceKeyRotator) Test(ctx context.Context, secretID string, pending Record) error {
	r.logger.Debug("service keys have no verification capability, skipping test for %s", secretID)
	return nil
}

package rotation

import (
	"context"
	"encoding/json"

	"github.com/systmms/cfrotate/internal/cloudflare"
	"github.com/systmms/cfrotate/internal/logging"
	"github.com/systmms/cfrotate/internal/secretstore"
)

// TokenAPI is the subset of the Cloudflare client the API token rotator
// uses. Narrow on purpose so tests can fake it.
type TokenAPI interface {
	CreateToken(ctx context.Context, name string, policies []json.RawMessage, validDays int) (cloudflare.Token, error)
	TokenExists(ctx context.Context, tokenID string) (bool, error)
	RenewToken(ctx context.Context, tokenID string) (string, error)
	CloneToken(ctx context.Context, tokenID string) (cloudflare.Token, error)
	VerifyToken(ctx context.Context, tokenValue string) (bool, error)
}

// ServiceKeyAPI is the subset of the Cloudflare client the service key
// rotator uses.
type ServiceKeyAPI interface {
	CreateServiceKey(ctx context.Context) (string, error)
}

// TunnelAPI is the subset of the Cloudflare client the tunnel token rotator
// uses.
type TunnelAPI interface {
	CreateTunnelToken(ctx context.Context, zoneID, serviceKey, hostname string, validDays int) (string, error)
}

// Rotator produces a new credential record for one credential kind during
// createSecret, and checks the pending credential's liveness during
// testSecret where upstream offers a verification capability.
type Rotator interface {
	// Kind returns the credential kind this rotator handles.
	Kind() Kind

	// Create produces the record to persist as the pending version. It must
	// not write anything itself: the orchestrator persists the result once,
	// after every provider call has succeeded.
	Create(ctx context.Context, secretID string, current Record) (Record, error)

	// Test verifies the pending record's credential is live. Kinds without
	// an upstream verification capability return nil; that gap is recorded
	// in the kind capabilities registry, not silently invented here.
	Test(ctx context.Context, secretID string, pending Record) error
}

// Registry holds one rotator per credential kind. Registration is total
// over the Kind set, so an unknown kind can only come from a malformed
// record, never from a missing case.
type Registry struct {
	rotators map[Kind]Rotator
}

// NewRegistry builds a registry from the given rotators.
func NewRegistry(rotators ...Rotator) *Registry {
	r := &Registry{rotators: make(map[Kind]Rotator, len(rotators))}
	for _, rot := range rotators {
		r.rotators[rot.Kind()] = rot
	}
	return r
}

// DefaultRegistry wires the production rotator for every credential kind
// against a single Cloudflare client.
func DefaultRegistry(cf *cloudflare.Client, store secretstore.Store, fallbackServiceKey string, logger *logging.Logger) *Registry {
	return NewRegistry(
		NewAPITokenRotator(cf, logger),
		NewServiceKeyRotator(cf, logger),
		NewTunnelTokenRotator(cf, store, fallbackServiceKey, logger),
	)
}

// Lookup returns the rotator for a kind.
func (r *Registry) Lookup(kind Kind) (Rotator, bool) {
	rot, ok := r.rotators[kind]
	return rot, ok
}

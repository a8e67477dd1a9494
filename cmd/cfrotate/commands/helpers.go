package commands

import (
	"context"
	"fmt"

	"github.com/systmms/cfrotate/internal/cloudflare"
	"github.com/systmms/cfrotate/internal/config"
	"github.com/systmms/cfrotate/internal/rotation"
	"github.com/systmms/cfrotate/internal/secretstore"
	"github.com/systmms/cfrotate/internal/validation"
)

// buildOrchestrator wires the store, Cloudflare client, rotator registry,
// and schema validator into a ready phase state machine.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*rotation.Orchestrator, error) {
	var storeOpts []secretstore.Option
	if cfg.Store.Endpoint != "" {
		storeOpts = append(storeOpts, secretstore.WithEndpoint(cfg.Store.Endpoint))
	}
	store, err := secretstore.NewManager(ctx, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret store: %w", err)
	}

	validator, err := validation.NewRecordValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load record schemas: %w", err)
	}

	cf := cloudflare.NewClient(cfg.Cloudflare)
	registry := rotation.DefaultRegistry(cf, store, cfg.Cloudflare.TunnelServiceKey, cfg.Logger)

	return rotation.NewOrchestrator(store, registry, cfg.Cloudflare, validator, cfg.Logger), nil
}

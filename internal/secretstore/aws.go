package secretstore

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	cferrors "github.com/systmms/cfrotate/internal/errors"
)

// SecretsManagerAPI defines the interface for AWS Secrets Manager operations.
// This allows for mocking in tests.
type SecretsManagerAPI interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
}

// Manager implements Store on top of AWS Secrets Manager.
type Manager struct {
	client   SecretsManagerAPI
	endpoint string
}

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithClient sets a custom Secrets Manager client (for testing).
func WithClient(client SecretsManagerAPI) Option {
	return func(m *Manager) {
		m.client = client
	}
}

// WithEndpoint sets a custom service endpoint for LocalStack or testing.
func WithEndpoint(endpoint string) Option {
	return func(m *Manager) {
		m.endpoint = endpoint
	}
}

// NewManager creates a Store backed by AWS Secrets Manager. Credentials and
// region come from the standard AWS environment unless a client is injected.
func NewManager(ctx context.Context, opts ...Option) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if m.endpoint != "" {
			endpoint := m.endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		m.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return m, nil
}

// Describe returns the secret's rotation metadata and stage labels.
func (m *Manager) Describe(ctx context.Context, secretID string) (Description, error) {
	out, err := m.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &secretID,
	})
	if err != nil {
		return Description{}, m.handleError(err, secretID, "")
	}

	desc := Description{
		VersionStages: make(map[string][]string, len(out.VersionIdsToStages)),
	}
	if out.RotationEnabled != nil {
		desc.RotationEnabled = *out.RotationEnabled
	}
	for versionID, stages := range out.VersionIdsToStages {
		desc.VersionStages[versionID] = stages
	}
	return desc, nil
}

// GetVersion reads the payload of the version carrying the given stage.
func (m *Manager) GetVersion(ctx context.Context, secretID, stage, versionToken string) ([]byte, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId:     &secretID,
		VersionStage: &stage,
	}
	// Only pin the version id when the caller wants the stage asserted
	// against a specific version.
	if versionToken != "" {
		input.VersionId = &versionToken
	}

	out, err := m.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, m.handleError(err, secretID, versionToken)
	}

	if out.SecretString != nil {
		return []byte(*out.SecretString), nil
	}
	if out.SecretBinary != nil {
		return out.SecretBinary, nil
	}
	return nil, fmt.Errorf("secret %s has no value at stage %s", secretID, stage)
}

// PutVersion writes a payload as a new version with the given stage labels.
func (m *Manager) PutVersion(ctx context.Context, secretID, versionToken string, payload []byte, stages []string) error {
	secretString := string(payload)
	_, err := m.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           &secretID,
		ClientRequestToken: &versionToken,
		SecretString:       &secretString,
		VersionStages:      stages,
	})
	if err != nil {
		return m.handleError(err, secretID, versionToken)
	}
	return nil
}

// MoveStage atomically moves a stage label between versions. The store
// guarantees the move is never observable as two separate states.
func (m *Manager) MoveStage(ctx context.Context, secretID, stage, toVersion, fromVersion string) error {
	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        &secretID,
		VersionStage:    &stage,
		MoveToVersionId: &toVersion,
	}
	if fromVersion != "" {
		input.RemoveFromVersionId = &fromVersion
	}

	_, err := m.client.UpdateSecretVersionStage(ctx, input)
	if err != nil {
		return m.handleError(err, secretID, toVersion)
	}
	return nil
}

// handleError maps AWS SDK errors onto the rotation error taxonomy.
func (m *Manager) handleError(err error, secretID, version string) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return cferrors.NotFoundError{SecretID: secretID, Version: version, Err: err}
	}
	return fmt.Errorf("secrets manager error for %s: %w", secretID, err)
}

package rotation_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/cfrotate/internal/config"
	cferrors "github.com/systmms/cfrotate/internal/errors"
	"github.com/systmms/cfrotate/internal/rotation"
	"github.com/systmms/cfrotate/internal/secretstore"
	"github.com/systmms/cfrotate/internal/validation"
)

// fakeStore is an in-memory secretstore.Store with Secrets Manager staging
// semantics: a stage label lives on at most one version, and a version id can
// be listed in the stage map before any payload is stored under it.
type fakeStore struct {
	secrets  map[string]*fakeSecret
	putCalls int
}

type fakeSecret struct {
	rotationEnabled bool
	stages          map[string][]string
	payloads        map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{secrets: make(map[string]*fakeSecret)}
}

func (s *fakeStore) addSecret(secretID string, enabled bool) *fakeSecret {
	sec := &fakeSecret{
		rotationEnabled: enabled,
		stages:          make(map[string][]string),
		payloads:        make(map[string][]byte),
	}
	s.secrets[secretID] = sec
	return sec
}

func (s *fakeStore) Describe(ctx context.Context, secretID string) (secretstore.Description, error) {
	sec, ok := s.secrets[secretID]
	if !ok {
		return secretstore.Description{}, cferrors.NotFoundError{SecretID: secretID}
	}
	stages := make(map[string][]string, len(sec.stages))
	for v, labels := range sec.stages {
		stages[v] = append([]string(nil), labels...)
	}
	return secretstore.Description{RotationEnabled: sec.rotationEnabled, VersionStages: stages}, nil
}

func (s *fakeStore) GetVersion(ctx context.Context, secretID, stage, versionToken string) ([]byte, error) {
	sec, ok := s.secrets[secretID]
	if !ok {
		return nil, cferrors.NotFoundError{SecretID: secretID}
	}
	for v, labels := range sec.stages {
		for _, l := range labels {
			if l != stage {
				continue
			}
			if versionToken != "" && v != versionToken {
				return nil, cferrors.NotFoundError{SecretID: secretID, Version: versionToken}
			}
			payload, ok := sec.payloads[v]
			if !ok {
				return nil, cferrors.NotFoundError{SecretID: secretID, Version: v}
			}
			return payload, nil
		}
	}
	return nil, cferrors.NotFoundError{SecretID: secretID, Version: versionToken}
}

func (s *fakeStore) PutVersion(ctx context.Context, secretID, versionToken string, payload []byte, stages []string) error {
	sec, ok := s.secrets[secretID]
	if !ok {
		return cferrors.NotFoundError{SecretID: secretID}
	}
	s.putCalls++
	sec.payloads[versionToken] = append([]byte(nil), payload...)
	for _, stage := range stages {
		s.detach(sec, stage)
		sec.stages[versionToken] = append(sec.stages[versionToken], stage)
	}
	return nil
}

func (s *fakeStore) MoveStage(ctx context.Context, secretID, stage, toVersion, fromVersion string) error {
	sec, ok := s.secrets[secretID]
	if !ok {
		return cferrors.NotFoundError{SecretID: secretID}
	}
	s.detach(sec, stage)
	sec.stages[toVersion] = append(sec.stages[toVersion], stage)
	return nil
}

func (s *fakeStore) detach(sec *fakeSecret, stage string) {
	for v, labels := range sec.stages {
		kept := labels[:0]
		for _, l := range labels {
			if l != stage {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			delete(sec.stages, v)
		} else {
			sec.stages[v] = kept
		}
	}
}

func tokenCreds() config.CloudflareConfig {
	return config.CloudflareConfig{APIToken: "cf-test-token"}
}

func newTestOrchestrator(t *testing.T, store *fakeStore, api *fakeTokenAPI, creds config.CloudflareConfig) *rotation.Orchestrator {
	t.Helper()
	registry := rotation.NewRegistry(rotation.NewAPITokenRotator(api, testLogger()))
	validator, err := validation.NewRecordValidator()
	require.NoError(t, err)
	return rotation.NewOrchestrator(store, registry, creds, validator, testLogger())
}

func seedInitRecord(t *testing.T, store *fakeStore, secretID string) {
	t.Helper()
	sec := store.addSecret(secretID, true)
	raw, err := json.Marshal(rotation.Record{
		Type:       rotation.KindAPIToken,
		Attributes: mustJSON(t, baseAttrs()),
	})
	require.NoError(t, err)
	sec.payloads["v-init"] = raw
	sec.stages["v-init"] = []string{secretstore.StageInit}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func stagePending(store *fakeStore, secretID, versionToken string) {
	sec := store.secrets[secretID]
	sec.stages[versionToken] = append(sec.stages[versionToken], secretstore.StagePending)
}

func TestOrchestratorPreconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*fakeStore)
		event   rotation.Event
		check   func(*testing.T, error)
	}{
		{
			name:  "invalid event",
			setup: func(s *fakeStore) {},
			event: rotation.Event{SecretID: "arn:cf/token-1", Step: "explodeSecret", RequestVersionToken: "v1"},
			check: func(t *testing.T, err error) {
				assert.True(t, cferrors.IsConfiguration(err))
			},
		},
		{
			name:  "unknown secret",
			setup: func(s *fakeStore) {},
			event: rotation.Event{SecretID: "arn:cf/missing", Step: rotation.StepCreate, RequestVersionToken: "v1"},
			check: func(t *testing.T, err error) {
				assert.True(t, cferrors.IsNotFound(err))
			},
		},
		{
			name: "rotation disabled",
			setup: func(s *fakeStore) {
				sec := s.addSecret("arn:cf/token-1", false)
				sec.stages["v1"] = []string{secretstore.StagePending}
			},
			event: rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "v1"},
			check: func(t *testing.T, err error) {
				assert.True(t, cferrors.IsConfiguration(err))
			},
		},
		{
			name: "unknown version token",
			setup: func(s *fakeStore) {
				s.addSecret("arn:cf/token-1", true)
			},
			event: rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "v-nope"},
			check: func(t *testing.T, err error) {
				assert.True(t, cferrors.IsNotFound(err))
			},
		},
		{
			name: "version already current is a no-op",
			setup: func(s *fakeStore) {
				sec := s.addSecret("arn:cf/token-1", true)
				sec.stages["v1"] = []string{secretstore.StageCurrent}
			},
			event: rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "v1"},
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "version not staged pending",
			setup: func(s *fakeStore) {
				sec := s.addSecret("arn:cf/token-1", true)
				sec.stages["v1"] = []string{"SOMETHINGELSE"}
			},
			event: rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "v1"},
			check: func(t *testing.T, err error) {
				assert.True(t, cferrors.IsConfiguration(err))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			tt.setup(store)
			orch := newTestOrchestrator(t, store, newFakeTokenAPI(), tokenCreds())

			tt.check(t, orch.Handle(context.Background(), tt.event))
		})
	}
}

func TestOrchestratorCreateRequiresInitializedSecret(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sec := store.addSecret("arn:cf/token-1", true)
	sec.stages["new-1"] = []string{secretstore.StagePending}

	orch := newTestOrchestrator(t, store, newFakeTokenAPI(), tokenCreds())
	err := orch.Handle(context.Background(), rotation.Event{
		SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "new-1",
	})
	require.Error(t, err)
	assert.True(t, cferrors.IsConfiguration(err), "no current and no bootstrap version means the secret was never initialized")
}

func TestOrchestratorCreateRequiresCredentials(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedInitRecord(t, store, "arn:cf/token-1")
	stagePending(store, "arn:cf/token-1", "new-1")

	orch := newTestOrchestrator(t, store, newFakeTokenAPI(), config.CloudflareConfig{})
	err := orch.Handle(context.Background(), rotation.Event{
		SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "new-1",
	})
	require.Error(t, err)
	assert.True(t, cferrors.IsConfiguration(err))
}

func TestOrchestratorCreateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedInitRecord(t, store, "arn:cf/token-1")
	stagePending(store, "arn:cf/token-1", "new-1")

	api := newFakeTokenAPI()
	orch := newTestOrchestrator(t, store, api, tokenCreds())
	ev := rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "new-1"}

	require.NoError(t, orch.Handle(context.Background(), ev))
	first := append([]byte(nil), store.secrets["arn:cf/token-1"].payloads["new-1"]...)

	// Replaying the phase with the same version token must not touch the
	// provider or the stored payload.
	require.NoError(t, orch.Handle(context.Background(), ev))
	assert.Equal(t, first, store.secrets["arn:cf/token-1"].payloads["new-1"])
	assert.Equal(t, 1, api.createCalls, "retry must not issue a duplicate credential")
	assert.Equal(t, 1, store.putCalls)
}

func TestOrchestratorFinishIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedInitRecord(t, store, "arn:cf/token-1")
	stagePending(store, "arn:cf/token-1", "new-1")

	api := newFakeTokenAPI()
	orch := newTestOrchestrator(t, store, api, tokenCreds())
	create := rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "new-1"}
	finish := rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepFinish, RequestVersionToken: "new-1"}

	require.NoError(t, orch.Handle(context.Background(), create))
	require.NoError(t, orch.Handle(context.Background(), finish))

	desc, err := store.Describe(context.Background(), "arn:cf/token-1")
	require.NoError(t, err)
	assert.True(t, desc.HasStage("new-1", secretstore.StageCurrent))

	// A replay observes the version is already current and does nothing.
	require.NoError(t, orch.Handle(context.Background(), finish))
	desc, err = store.Describe(context.Background(), "arn:cf/token-1")
	require.NoError(t, err)
	assert.Equal(t, "new-1", desc.VersionWithStage(secretstore.StageCurrent))
}

func TestOrchestratorTestBlocksInactiveCredential(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedInitRecord(t, store, "arn:cf/token-1")
	stagePending(store, "arn:cf/token-1", "new-1")

	api := newFakeTokenAPI()
	orch := newTestOrchestrator(t, store, api, tokenCreds())
	create := rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepCreate, RequestVersionToken: "new-1"}
	test := rotation.Event{SecretID: "arn:cf/token-1", Step: rotation.StepTest, RequestVersionToken: "new-1"}

	require.NoError(t, orch.Handle(context.Background(), create))

	// Deactivate the freshly issued value out of band.
	api.active["sv-1"] = false
	err := orch.Handle(context.Background(), test)
	require.Error(t, err)
	assert.True(t, cferrors.IsValidation(err))
}

// TestOrchestratorFullCycles drives two complete rotation cycles from a
// bootstrap record, checking the alternation pair forms across cycles and the
// store stages land where the protocol requires.
func TestOrchestratorFullCycles(t *testing.T) {
	t.Parallel()

	const secretID = "arn:cf/token-1"
	store := newFakeStore()
	seedInitRecord(t, store, secretID)

	api := newFakeTokenAPI()
	orch := newTestOrchestrator(t, store, api, tokenCreds())

	runCycle := func(versionToken string) {
		stagePending(store, secretID, versionToken)
		for _, step := range []rotation.Step{rotation.StepCreate, rotation.StepSet, rotation.StepTest, rotation.StepFinish} {
			ev := rotation.Event{SecretID: secretID, Step: step, RequestVersionToken: versionToken}
			require.NoError(t, orch.Handle(context.Background(), ev), "step %s of %s", step, versionToken)
		}
	}

	// Cycle 1: bootstrap issues the first token.
	runCycle("new-1")
	payload, err := store.GetVersion(context.Background(), secretID, secretstore.StageCurrent, "")
	require.NoError(t, err)
	rec, err := rotation.ParseRecord(payload)
	require.NoError(t, err)
	attrs, err := rec.APIToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", attrs.TokenID)
	assert.Empty(t, attrs.OtherTokenID)

	// Cycle 2: the pair is established; the previous token becomes standby.
	runCycle("new-2")
	payload, err = store.GetVersion(context.Background(), secretID, secretstore.StageCurrent, "")
	require.NoError(t, err)
	rec, err = rotation.ParseRecord(payload)
	require.NoError(t, err)
	attrs, err = rec.APIToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", attrs.TokenID)
	assert.Equal(t, "tok-1", attrs.OtherTokenID)

	// Cycle 3: steady-state alternation promotes the standby back.
	runCycle("new-3")
	payload, err = store.GetVersion(context.Background(), secretID, secretstore.StageCurrent, "")
	require.NoError(t, err)
	rec, err = rotation.ParseRecord(payload)
	require.NoError(t, err)
	attrs, err = rec.APIToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", attrs.TokenID)
	assert.Equal(t, "tok-2", attrs.OtherTokenID)

	// Record shape is preserved through every cycle.
	assert.Equal(t, "ci", attrs.Name)
	assert.Equal(t, 30, attrs.ValidDays)
	assert.Len(t, attrs.Policies, 1)
}

func TestOrchestratorUnknownKindInRegistry(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sec := store.addSecret("arn:cf/key-1", true)
	raw := mustJSON(t, rotation.Record{Type: rotation.KindServiceKey, Attributes: mustJSON(t, rotation.ServiceKeyAttributes{})})
	sec.payloads["v-init"] = raw
	sec.stages["v-init"] = []string{secretstore.StageInit}
	stagePending(store, "arn:cf/key-1", "new-1")

	// Registry only knows apiToken; the record asks for tunnelServiceKey.
	orch := newTestOrchestrator(t, store, newFakeTokenAPI(), config.CloudflareConfig{APIKey: "k", APIEmail: "e@example.com"})
	err := orch.Handle(context.Background(), rotation.Event{
		SecretID: "arn:cf/key-1", Step: rotation.StepCreate, RequestVersionToken: "new-1",
	})
	require.Error(t, err)
	assert.True(t, cferrors.IsConfiguration(err))
}

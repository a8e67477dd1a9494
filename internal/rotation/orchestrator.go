package rotation

import (
	"context"
	"time"

	"github.com/systmms/cfrotate/internal/config"
	cferrors "github.com/systmms/cfrotate/internal/errors"
	"github.com/systmms/cfrotate/internal/logging"
	"github.com/systmms/cfrotate/internal/secretstore"
)

// RecordValidator checks a record's attribute payload against the schema for
// its kind before a rotator runs.
type RecordValidator interface {
	Validate(kind string, attributes []byte) error
}

// Orchestrator is the phase state machine: it validates staging
// preconditions against the store, then dispatches the event to the right
// phase handler and rotator. It holds no rotation state of its own; every
// phase re-derives its action from freshly read store contents, which is why
// any phase can be replayed or raced without coordination.
type Orchestrator struct {
	store     secretstore.Store
	rotators  *Registry
	creds     config.CloudflareConfig
	validator RecordValidator
	logger    *logging.Logger
}

// NewOrchestrator wires the phase state machine. validator may be nil to
// skip schema validation.
func NewOrchestrator(store secretstore.Store, rotators *Registry, creds config.CloudflareConfig, validator RecordValidator, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		rotators:  rotators,
		creds:     creds,
		validator: validator,
		logger:    logger,
	}
}

// Handle executes one rotation phase for one staged version. It fails fast
// on malformed preconditions and is safe to call again with the same event.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return cferrors.ConfigurationError{SecretID: ev.SecretID, Message: err.Error()}
	}

	o.logger.Debug("handling %s for secret %s version %s", ev.Step, ev.SecretID, ev.RequestVersionToken)

	desc, err := o.store.Describe(ctx, ev.SecretID)
	if err != nil {
		return err
	}
	if !desc.RotationEnabled {
		return cferrors.ConfigurationError{SecretID: ev.SecretID, Message: "rotation is not enabled"}
	}
	if _, ok := desc.VersionStages[ev.RequestVersionToken]; !ok {
		return cferrors.NotFoundError{SecretID: ev.SecretID, Version: ev.RequestVersionToken}
	}
	if desc.HasStage(ev.RequestVersionToken, secretstore.StageCurrent) {
		// Rotation already completed for this version.
		o.logger.Info("version %s is already current for %s, nothing to do", ev.RequestVersionToken, ev.SecretID)
		return nil
	}
	if !desc.HasStage(ev.RequestVersionToken, secretstore.StagePending) {
		return cferrors.ConfigurationError{
			SecretID: ev.SecretID,
			Message:  "version " + ev.RequestVersionToken + " is not staged as pending",
		}
	}

	recordPhaseStarted(ev.Step)
	start := time.Now()

	switch ev.Step {
	case StepCreate:
		err = o.createSecret(ctx, ev)
	case StepSet:
		err = o.setSecret(ctx, ev)
	case StepTest:
		err = o.testSecret(ctx, ev)
	case StepFinish:
		err = o.finishSecret(ctx, ev)
	}

	recordPhaseCompleted(ev.Step, err, time.Since(start))
	return err
}

// createSecret builds the new credential and writes it as the pending
// version. If a pending record for this exact version already exists the
// call is a retry and returns without side effects, so a replayed phase
// never issues a duplicate external credential.
func (o *Orchestrator) createSecret(ctx context.Context, ev Event) error {
	if _, err := o.store.GetVersion(ctx, ev.SecretID, secretstore.StagePending, ev.RequestVersionToken); err == nil {
		o.logger.Info("pending version %s already exists for %s, nothing to do", ev.RequestVersionToken, ev.SecretID)
		return nil
	} else if !cferrors.IsNotFound(err) {
		return err
	}

	current, err := o.loadReferenceRecord(ctx, ev.SecretID)
	if err != nil {
		return err
	}

	if err := o.requireCredentials(ev.SecretID, current.Type); err != nil {
		return err
	}
	if o.validator != nil {
		if err := o.validator.Validate(string(current.Type), current.Attributes); err != nil {
			return cferrors.ConfigurationError{SecretID: ev.SecretID, Message: err.Error()}
		}
	}

	rot, ok := o.rotators.Lookup(current.Type)
	if !ok {
		return cferrors.ConfigurationError{SecretID: ev.SecretID, Message: "no rotator registered for kind " + string(current.Type)}
	}

	o.logger.Info("creating %s credential for %s", current.Type, ev.SecretID)
	next, err := rot.Create(ctx, ev.SecretID, current)
	if err != nil {
		return err
	}

	payload, err := next.Encode()
	if err != nil {
		return err
	}
	// Single write, after every provider call has succeeded.
	return o.store.PutVersion(ctx, ev.SecretID, ev.RequestVersionToken, payload, []string{secretstore.StagePending})
}

// loadReferenceRecord prefers the current version and falls back to the
// bootstrap version for a secret that has never been rotated. Absence of
// both means the secret was never initialized.
func (o *Orchestrator) loadReferenceRecord(ctx context.Context, secretID string) (Record, error) {
	payload, err := o.store.GetVersion(ctx, secretID, secretstore.StageCurrent, "")
	if cferrors.IsNotFound(err) {
		payload, err = o.store.GetVersion(ctx, secretID, secretstore.StageInit, "")
		if cferrors.IsNotFound(err) {
			return Record{}, cferrors.ConfigurationError{
				SecretID: secretID,
				Message:  "secret has neither a current nor a bootstrap version; it was never initialized",
			}
		}
	}
	if err != nil {
		return Record{}, err
	}

	rec, err := ParseRecord(payload)
	if err != nil {
		return Record{}, cferrors.ConfigurationError{SecretID: secretID, Message: err.Error()}
	}
	return rec, nil
}

// requireCredentials checks the environment carries the authentication
// material the credential kind needs. Missing configuration is fatal, never
// silently skipped.
func (o *Orchestrator) requireCredentials(secretID string, kind Kind) error {
	switch kind {
	case KindAPIToken:
		if !o.creds.HasTokenAuth() && !o.creds.HasKeyAuth() {
			return cferrors.ConfigurationError{
				SecretID: secretID,
				Message:  "api token rotation requires " + config.EnvAPIToken + " or " + config.EnvAPIKey + " and " + config.EnvAPIEmail,
			}
		}
	case KindServiceKey:
		if !o.creds.HasKeyAuth() {
			return cferrors.ConfigurationError{
				SecretID: secretID,
				Message:  "service key rotation requires " + config.EnvAPIKey + " and " + config.EnvAPIEmail,
			}
		}
	case KindTunnelToken:
		if !o.creds.HasOriginCAKey() {
			return cferrors.ConfigurationError{
				SecretID: secretID,
				Message:  "tunnel token rotation requires " + config.EnvOriginCAKey,
			}
		}
	default:
		return cferrors.ConfigurationError{SecretID: secretID, Message: "unknown credential kind " + string(kind)}
	}
	return nil
}

// setSecret is intentionally a no-op: nothing consumes these credentials
// through a push channel. Implementations rotating credentials that must be
// propagated into a downstream system hook in here.
func (o *Orchestrator) setSecret(ctx context.Context, ev Event) error {
	o.logger.Debug("setSecret is a no-op for %s", ev.SecretID)
	return nil
}

// testSecret verifies the pending credential where the kind supports it.
// A failed check blocks finishSecret for this version.
func (o *Orchestrator) testSecret(ctx context.Context, ev Event) error {
	payload, err := o.store.GetVersion(ctx, ev.SecretID, secretstore.StagePending, ev.RequestVersionToken)
	if err != nil {
		return err
	}
	pending, err := ParseRecord(payload)
	if err != nil {
		return cferrors.ConfigurationError{SecretID: ev.SecretID, Message: err.Error()}
	}

	if err := o.requireCredentials(ev.SecretID, pending.Type); err != nil {
		return err
	}

	rot, ok := o.rotators.Lookup(pending.Type)
	if !ok {
		return cferrors.ConfigurationError{SecretID: ev.SecretID, Message: "no rotator registered for kind " + string(pending.Type)}
	}

	o.logger.Info("testing %s credential for %s", pending.Type, ev.SecretID)
	return rot.Test(ctx, ev.SecretID, pending)
}

// finishSecret atomically moves the current stage label to the target
// version. If the target already carries it, the attempt was already
// finished and nothing is mutated.
func (o *Orchestrator) finishSecret(ctx context.Context, ev Event) error {
	desc, err := o.store.Describe(ctx, ev.SecretID)
	if err != nil {
		return err
	}
	if desc.HasStage(ev.RequestVersionToken, secretstore.StageCurrent) {
		o.logger.Info("version %s already current for %s", ev.RequestVersionToken, ev.SecretID)
		return nil
	}

	fromVersion := desc.VersionWithStage(secretstore.StageCurrent)
	if err := o.store.MoveStage(ctx, ev.SecretID, secretstore.StageCurrent, ev.RequestVersionToken, fromVersion); err != nil {
		return err
	}
	o.logger.Info("moved %s to version %s for %s", secretstore.StageCurrent, ev.RequestVersionToken, ev.SecretID)
	return nil
}

package rotation

import "fmt"

// Event is a single rotation invocation as delivered by the secret store:
// one secret, one staged version, one phase. Events are immutable.
type Event struct {
	// SecretID is the ARN or name of the secret being rotated.
	SecretID string `json:"SecretId"`

	// RequestVersionToken identifies the staged version this rotation
	// attempt is building.
	RequestVersionToken string `json:"ClientRequestToken"`

	// Step is the rotation phase to execute.
	Step Step `json:"Step"`
}

// Validate checks that all event fields are present and the step is known.
func (e Event) Validate() error {
	if e.SecretID == "" {
		return fmt.Errorf("event is missing SecretId")
	}
	if e.RequestVersionToken == "" {
		return fmt.Errorf("event is missing ClientRequestToken")
	}
	if !e.Step.known() {
		return fmt.Errorf("unknown step: %s", e.Step)
	}
	return nil
}

const (
	// StepCreate builds the new credential and writes it as the pending
	// version.
	StepCreate Step = "createSecret"

	// StepSet would push the pending credential into a consuming system.
	// Intentionally a no-op for this credential family; kept as an
	// extension point.
	StepSet Step = "setSecret"

	// StepTest verifies the pending credential is live where upstream
	// offers a verification capability.
	StepTest Step = "testSecret"

	// StepFinish atomically moves the current stage label to the pending
	// version, completing the rotation attempt.
	StepFinish Step = "finishSecret"
)

// Step is one of the four caller-driven rotation phases. Each phase is an
// independent, idempotent invocation; the caller sequences them and may
// retry any phase before advancing.
type Step string

func (s Step) known() bool {
	switch s {
	case StepCreate, StepSet, StepTest, StepFinish:
		return true
	}
	return false
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	*s = Step(text)
	if !s.known() {
		return fmt.Errorf("unknown step: %s", text)
	}
	return nil
}

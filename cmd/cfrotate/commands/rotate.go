package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/cfrotate/internal/config"
	"github.com/systmms/cfrotate/internal/rotation"
)

// NewRotateCommand executes a single rotation phase for a staged secret
// version. Each invocation handles exactly one phase and is safe to replay.
func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var (
		secretID     string
		versionToken string
		step         string
		eventFile    string
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Execute one rotation phase for a secret version",
		Long: `Execute a single phase of the four-phase rotation protocol against one
staged secret version. The event can be given as flags or as a Secrets
Manager rotation event JSON document.

Phases are independent and idempotent: a failed phase can be retried with
the same version token without issuing duplicate credentials.

Examples:
  # Run a phase from flags
  cfrotate rotate --secret-id arn:cf/token-1 --version-token 3f1c... --step createSecret

  # Run a phase from a rotation event document
  cfrotate rotate --event event.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := buildEvent(secretID, versionToken, step, eventFile)
			if err != nil {
				return err
			}

			orch, err := buildOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if err := orch.Handle(cmd.Context(), ev); err != nil {
				return err
			}
			cfg.Logger.Info("%s completed for %s", ev.Step, ev.SecretID)
			return nil
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret ARN or name")
	cmd.Flags().StringVar(&versionToken, "version-token", "", "Staged version token for this rotation attempt")
	cmd.Flags().StringVar(&step, "step", "", "Rotation phase (createSecret, setSecret, testSecret, finishSecret)")
	cmd.Flags().StringVar(&eventFile, "event", "", "Path to a rotation event JSON document ('-' for stdin)")

	return cmd
}

// buildEvent assembles the rotation event from either an event document or
// the individual flags.
func buildEvent(secretID, versionToken, step, eventFile string) (rotation.Event, error) {
	if eventFile != "" {
		var raw []byte
		var err error
		if eventFile == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(eventFile)
		}
		if err != nil {
			return rotation.Event{}, fmt.Errorf("failed to read event document: %w", err)
		}

		var ev rotation.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return rotation.Event{}, fmt.Errorf("malformed event document: %w", err)
		}
		return ev, ev.Validate()
	}

	ev := rotation.Event{
		SecretID:            secretID,
		RequestVersionToken: versionToken,
		Step:                rotation.Step(step),
	}
	return ev, ev.Validate()
}

package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/cfrotate/internal/cloudflare"
	"github.com/systmms/cfrotate/internal/config"
)

// NewVerifyCommand checks that an API token value authenticates and is
// active. The value is read from stdin so it never lands in shell history
// or process listings.
func NewVerifyCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that an API token value is active",
		Long: `Read an API token value from stdin and verify it against the API.

Example:
  cfrotate verify < token.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read token value from stdin: %w", err)
			}
			value := strings.TrimSpace(line)
			if value == "" {
				return fmt.Errorf("no token value provided on stdin")
			}

			cf := cloudflare.NewClient(cfg.Cloudflare)
			active, err := cf.VerifyToken(cmd.Context(), value)
			if err != nil {
				return err
			}
			if !active {
				return fmt.Errorf("token is not active")
			}
			cfg.Logger.Info("token is active")
			return nil
		},
	}
}

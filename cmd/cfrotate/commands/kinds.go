package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/cfrotate/internal/config"
	"github.com/systmms/cfrotate/internal/rotation"
)

// NewKindsCommand lists the supported credential kinds and what the
// upstream service offers for each.
func NewKindsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List supported credential kinds and their rotation capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range rotation.ListKinds() {
				cap, err := rotation.GetKindCapability(rotation.Kind(name))
				if err != nil {
					return err
				}
				fmt.Printf("%s (%s)\n", name, cap.DisplayName)
				fmt.Printf("  strategy:     %s\n", cap.Strategy)
				fmt.Printf("  verification: %s\n", yesNo(cap.SupportsVerification))
				fmt.Printf("  revocation:   %s\n", yesNo(cap.SupportsRevocation))
				if cap.Notes != "" {
					fmt.Printf("  notes:        %s\n", cap.Notes)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package cli

import "github.com/spf13/cobra"

// NewRootCommand builds the courier-driver command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courier-driver",
		Short: "Headless courier driver client",
		Example: `  courier-driver run --email=driver@example.com --online
  courier-driver token --user-id=drv-42 --secret=dev-secret
  courier-driver journal tail`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		NewRunCommand(),
		NewTokenCommand(),
		NewJournalCommand(),
	)
	return cmd
}

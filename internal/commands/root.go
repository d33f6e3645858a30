package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var dir string

	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Template-driven ledger with bank reconciliation",
		Version: buildinfo.Summary(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "ledger directory")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountsCommand(&dir),
		newTemplatesCommand(&dir),
		newPostCommand(&dir),
		newPostManualCommand(&dir),
		newDraftCommand(&dir),
		newVoidCommand(&dir),
		newShowCommand(&dir),
		newJournalCommand(&dir),
		newBalanceCommand(&dir),
		newTrialBalanceCommand(&dir),
		newStatementCommand(&dir),
		newReconCommand(&dir),
	)

	return rootCmd
}

package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/model"
)

func newAccountsCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountsListCommand(dir),
		newAccountsImportCommand(dir),
		newAccountsExportCommand(dir),
		newAccountsDeactivateCommand(dir),
	)
	return cmd
}

func newAccountsListCommand(dir *string) *cobra.Command {
	var accountType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				chart, err := a.accounts.Chart(cmd.Context())
				if err != nil {
					return err
				}
				accts := chart.All()
				if accountType != "" {
					t := model.AccountType(strings.ToLower(accountType))
					if !t.Valid() {
						return fmt.Errorf("--type: unknown account type %q", accountType)
					}
					accts = chart.ByType(t)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CODE\tNAME\tTYPE\tNORMAL\tFLAGS")
				for _, acct := range accts {
					var flags []string
					if acct.Header {
						flags = append(flags, "header")
					}
					if !acct.Active {
						flags = append(flags, "inactive")
					}
					fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n",
						strings.Repeat("  ", accounts.Depth(acct.Code)), acct.Code, acct.Name,
						a.label(string(acct.Type)), a.label(string(acct.NormalSide)), strings.Join(flags, ","))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&accountType, "type", "", "only accounts of this type")
	return cmd
}

func newAccountsImportCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create or update accounts from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			accts, err := accounts.ReadAccounts(f)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				if err := a.accounts.Import(cmd.Context(), accts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", len(accts))
				return nil
			})
		},
	}
}

func newAccountsExportCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the chart of accounts as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				chart, err := a.accounts.Chart(cmd.Context())
				if err != nil {
					return err
				}
				return accounts.WriteAccounts(cmd.OutOrStdout(), chart.All())
			})
		},
	}
}

func newAccountsDeactivateCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <code>",
		Short: "Stop an account from receiving new lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				return a.accounts.Deactivate(cmd.Context(), args[0])
			})
		},
	}
}

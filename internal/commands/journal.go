package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

func newPostCommand(dir *string) *cobra.Command {
	var date, amount, description string
	var draft bool

	cmd := &cobra.Command{
		Use:   "post <template-id>",
		Short: "Post a transaction through a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			amt, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}
			p := journal.PostParams{TemplateID: args[0], Date: d, Amount: amt, Description: description}

			return withApp(cmd.Context(), *dir, func(a *app) error {
				if draft {
					txn, err := a.journal.CreateDraft(cmd.Context(), p)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Created draft %s\n", txn.ID)
					return nil
				}
				txn, err := a.journal.Post(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %s (%s)\n", txn.DocumentNumber, txn.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().Format(model.DateFormat), "transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount bound to the template formulas (required)")
	cmd.Flags().StringVar(&description, "description", "", "transaction description")
	cmd.Flags().BoolVar(&draft, "draft", false, "save as a draft without a document number")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPostManualCommand(dir *string) *cobra.Command {
	var date, description, docType, linesFile string

	cmd := &cobra.Command{
		Use:   "post-manual",
		Short: "Post a transaction with explicit lines from a CSV file",
		Long:  "Lines file columns: " + journal.ManualHeader,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			f, err := os.Open(linesFile)
			if err != nil {
				return err
			}
			defer f.Close()
			lines, err := journal.ReadManualLines(f)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), *dir, func(a *app) error {
				txn, err := a.journal.PostManual(cmd.Context(), journal.ManualParams{
					DocumentType: docType,
					Date:         d,
					Description:  description,
					Lines:        lines,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %s (%s)\n", txn.DocumentNumber, txn.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().Format(model.DateFormat), "transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "transaction description")
	cmd.Flags().StringVar(&docType, "type", "", "document type (defaults to ledger.default_document_type)")
	cmd.Flags().StringVar(&linesFile, "lines", "", "CSV file with the journal lines (required)")
	_ = cmd.MarkFlagRequired("lines")
	return cmd
}

func newDraftCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Post or discard draft transactions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "post <transaction-id>",
			Short: "Post a draft with the current template version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), *dir, func(a *app) error {
					txn, err := a.journal.PostDraft(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Posted %s (%s)\n", txn.DocumentNumber, txn.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <transaction-id>",
			Short: "Delete a draft",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), *dir, func(a *app) error {
					return a.journal.DeleteDraft(cmd.Context(), args[0])
				})
			},
		},
	)
	return cmd
}

func newVoidCommand(dir *string) *cobra.Command {
	var reason, notes string

	cmd := &cobra.Command{
		Use:   "void <transaction-id>",
		Short: "Void a posted transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				txn, err := a.journal.Void(cmd.Context(), args[0], reason, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Voided %s\n", txn.DocumentNumber)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the transaction is voided (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newShowCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show a transaction and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				txn, err := a.journal.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printTransaction(cmd.OutOrStdout(), txn)
			})
		},
	}
}

func (a *app) printTransaction(out io.Writer, txn model.Transaction) error {
	fmt.Fprintf(out, "%s %s %s %s\n", txn.DocumentNumber, txn.Date.Format(model.DateFormat),
		a.label(string(txn.Status)), txn.Description)
	if txn.Status == model.TransactionVoid {
		fmt.Fprintf(out, "voided: %s\n", txn.VoidReason)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ACCOUNT\tDEBIT\tCREDIT\t")
	for _, l := range txn.Lines {
		debit, credit := "", ""
		if l.Side() == model.SideDebit {
			debit = a.money(l.Amount())
		} else {
			credit = a.money(l.Amount())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", l.AccountCode, debit, credit)
	}
	return w.Flush()
}

func newJournalCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the journal",
	}

	var from, to, account string
	var includeVoid bool
	export := &cobra.Command{
		Use:   "export",
		Short: "Write journal lines as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := store.TransactionFilter{AccountCode: account, Statuses: []model.TransactionStatus{model.TransactionPosted}}
			if includeVoid {
				f.Statuses = append(f.Statuses, model.TransactionVoid)
			}
			var err error
			if f.From, err = parseOptionalDate("from", from, time.Time{}); err != nil {
				return err
			}
			if f.To, err = parseOptionalDate("to", to, time.Time{}); err != nil {
				return err
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				txns, err := a.journal.List(cmd.Context(), f)
				if err != nil {
					return err
				}
				return journal.WriteEntries(cmd.OutOrStdout(), txns, a.cfg.Ledger.CurrencyPrecision)
			})
		},
	}
	export.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	export.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	export.Flags().StringVar(&account, "account", "", "only transactions touching this account")
	export.Flags().BoolVar(&includeVoid, "include-void", false, "include voided transactions")

	cmd.AddCommand(export)
	return cmd
}

func newBalanceCommand(dir *string) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance <account-code>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseOptionalDate("as-of", asOf, time.Time{})
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				bal, err := a.journal.AccountBalance(cmd.Context(), args[0], date)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.money(bal))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "balance at the end of this date (YYYY-MM-DD)")
	return cmd
}

func newTrialBalanceCommand(dir *string) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Show debit and credit totals per account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseOptionalDate("as-of", asOf, time.Time{})
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				tb, err := a.journal.TrialBalance(cmd.Context(), date)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CODE\tNAME\tDEBIT\tCREDIT\tBALANCE")
				for _, r := range tb.Rows {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Account.Code, r.Account.Name,
						a.money(r.Debit), a.money(r.Credit), a.money(r.Balance))
				}
				fmt.Fprintf(w, "\tTOTAL\t%s\t%s\t\n", a.money(tb.TotalDebit), a.money(tb.TotalCredit))
				if err := w.Flush(); err != nil {
					return err
				}
				if !tb.Balanced() {
					return fmt.Errorf("trial balance does not balance: debit %s, credit %s",
						a.money(tb.TotalDebit), a.money(tb.TotalCredit))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "totals at the end of this date (YYYY-MM-DD)")
	return cmd
}

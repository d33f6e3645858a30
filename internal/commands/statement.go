package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reconcile"
)

func newStatementCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Import and inspect bank statements",
	}
	cmd.AddCommand(
		newStatementImportCommand(dir),
		newStatementInboxCommand(dir),
		newStatementShowCommand(dir),
	)
	return cmd
}

// statementFlags are the overrides shared by the import commands.
type statementFlags struct {
	format  string
	account string
	from    string
	to      string
	opening string
	closing string
}

func (f *statementFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "generic", "bank CSV format")
	cmd.Flags().StringVar(&f.account, "account", "", "bank account code the statement belongs to (required)")
	cmd.Flags().StringVar(&f.from, "from", "", "period start (default: first line date)")
	cmd.Flags().StringVar(&f.to, "to", "", "period end (default: last line date)")
	cmd.Flags().StringVar(&f.opening, "opening", "", "opening balance (default: from running balances)")
	cmd.Flags().StringVar(&f.closing, "closing", "", "closing balance (default: opening plus movements)")
	_ = cmd.MarkFlagRequired("account")
}

// params parses path and fills in whatever the flags leave open.
func (f *statementFlags) params(path string) (reconcile.StatementParams, error) {
	parser := importer.DefaultRegistry().Get(f.format)
	if parser == nil {
		return reconcile.StatementParams{}, fmt.Errorf("--format: unknown format %q (have %v)", f.format, importer.DefaultRegistry().Formats())
	}
	file, err := os.Open(path)
	if err != nil {
		return reconcile.StatementParams{}, err
	}
	defer file.Close()

	lines, err := parser.Parse(file)
	if err != nil {
		return reconcile.StatementParams{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	p := reconcile.StatementParams{AccountCode: f.account, SourceFile: filepath.Base(path), Lines: lines}
	start, end := importer.Period(lines)
	if p.PeriodStart, err = parseOptionalDate("from", f.from, start); err != nil {
		return p, err
	}
	if p.PeriodEnd, err = parseOptionalDate("to", f.to, end); err != nil {
		return p, err
	}

	net := decimal.Zero
	for _, l := range lines {
		net = net.Add(l.Signed())
	}
	switch {
	case f.opening != "":
		if p.OpeningBalance, err = parseAmount("opening", f.opening); err != nil {
			return p, err
		}
		p.ClosingBalance = p.OpeningBalance.Add(net)
	case len(lines) == 0:
		p.OpeningBalance = decimal.Zero
		p.ClosingBalance = decimal.Zero
	default:
		if p.OpeningBalance, p.ClosingBalance, err = importer.Balances(lines); err != nil {
			return p, fmt.Errorf("%w: pass --opening", err)
		}
	}
	if f.closing != "" {
		if p.ClosingBalance, err = parseAmount("closing", f.closing); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (a *app) importStatement(ctx context.Context, p reconcile.StatementParams) (model.BankStatement, error) {
	st, err := a.recon.ImportStatement(ctx, p)
	if err != nil {
		return model.BankStatement{}, err
	}
	a.log.Debug("statement file imported", zap.String("source_file", p.SourceFile), zap.String("statement_id", st.ID))
	return st, nil
}

func newStatementImportCommand(dir *string) *cobra.Command {
	var flags statementFlags

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a bank statement CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.params(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				st, err := a.importStatement(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d lines, %s to %s\n", st.ID, len(st.Items),
					st.PeriodStart.Format(model.DateFormat), st.PeriodEnd.Format(model.DateFormat))
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newStatementInboxCommand(dir *string) *cobra.Command {
	var flags statementFlags

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Import every CSV in import/ and move it to import/processed/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := importer.Scan(*dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files to import")
				return nil
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				for _, fi := range files {
					p, err := flags.params(fi.Path)
					if err != nil {
						return err
					}
					st, err := a.importStatement(cmd.Context(), p)
					if err != nil {
						return fmt.Errorf("%s: %w", fi.Name, err)
					}
					if err := importer.MarkProcessed(*dir, fi.Name); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s (%d lines)\n", fi.Name, st.ID, len(st.Items))
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newStatementShowCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <statement-id>",
		Short: "Show a statement and the match state of its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				st, err := a.recon.Statement(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s account %s, %s to %s, opening %s, closing %s\n", st.ID, st.AccountCode,
					st.PeriodStart.Format(model.DateFormat), st.PeriodEnd.Format(model.DateFormat),
					a.money(st.OpeningBalance), a.money(st.ClosingBalance))

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ITEM\tDATE\tDESCRIPTION\tAMOUNT\tSTATUS\tMATCH")
				for _, it := range st.Items {
					match := ""
					if it.MatchType != "" {
						match = a.label(string(it.MatchType))
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", it.ID, it.Date.Format(model.DateFormat),
						it.Description, a.money(it.Signed()), a.label(string(it.MatchStatus)), match)
				}
				return w.Flush()
			})
		},
	}
}

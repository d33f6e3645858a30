package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/templates"
)

func newTemplatesCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage journal templates",
	}
	cmd.AddCommand(
		newTemplatesListCommand(dir),
		newTemplatesAddCommand(dir),
		newTemplatesExportCommand(dir),
		newTemplatesSetActiveCommand(dir, "activate", true),
		newTemplatesSetActiveCommand(dir, "deactivate", false),
	)
	return cmd
}

func newTemplatesListCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				tpls, err := a.templates.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE\tVERSION\tACTIVE")
				for _, jt := range tpls {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", jt.ID, jt.Name, jt.DocumentType, jt.Version, jt.Active)
				}
				return w.Flush()
			})
		},
	}
}

func newTemplatesAddCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file.yaml>",
		Short: "Create templates, or new versions of them, from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tpls, err := templates.ReadDefinitions(f)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				for _, jt := range tpls {
					saved, err := a.templates.Save(cmd.Context(), jt)
					if err != nil {
						return fmt.Errorf("template %q: %w", jt.Name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Saved %s v%d\n", saved.ID, saved.Version)
				}
				return nil
			})
		},
	}
}

func newTemplatesExportCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export [id...]",
		Short: "Write templates as YAML to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				var tpls []model.JournalTemplate
				if len(args) == 0 {
					var err error
					if tpls, err = a.templates.List(cmd.Context()); err != nil {
						return err
					}
				}
				for _, id := range args {
					jt, err := a.templates.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					tpls = append(tpls, jt)
				}
				return templates.WriteDefinitions(cmd.OutOrStdout(), tpls)
			})
		},
	}
}

func newTemplatesSetActiveCommand(dir *string, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a template %sd", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				return a.templates.SetActive(cmd.Context(), args[0], active)
			})
		},
	}
}

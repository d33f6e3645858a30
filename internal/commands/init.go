package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/templates"
)

func newInitCommand() *cobra.Command {
	var name string
	var businessType string
	var locale string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(cmd, absDir, name, businessType, locale); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized ledger at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&businessType, "type", "trading", "business type, selects the default chart")
	cmd.Flags().StringVar(&locale, "locale", "en", "display locale (en, id)")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, businessType, locale string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	// Create directory structure.
	dirs := []string{
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write ledger.yaml.
	cfg := config.Default(name, businessType)
	cfg.Business.Locale = locale
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write .gitignore.
	gitignore := cfg.Storage.Path + "\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Install the default chart and templates.
	return withApp(cmd.Context(), dir, func(a *app) error {
		if err := a.accounts.Import(cmd.Context(), accounts.DefaultChart(businessType)); err != nil {
			return fmt.Errorf("installing chart of accounts: %w", err)
		}
		for _, jt := range templates.Defaults() {
			if _, err := a.templates.Save(cmd.Context(), jt); err != nil {
				return fmt.Errorf("installing template %s: %w", jt.ID, err)
			}
		}
		return nil
	})
}

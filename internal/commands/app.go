package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/boltstore"
	"github.com/cleared-dev/ledger/internal/store/pgstore"
	"github.com/cleared-dev/ledger/internal/templates"
)

// app holds everything a command needs for one ledger directory.
type app struct {
	dir   string
	cfg   *config.Config
	log   *zap.Logger
	store store.Store

	accounts  *accounts.Service
	templates *templates.Service
	journal   *journal.Service
	recon     *reconcile.Service
}

func openApp(ctx context.Context, dir string) (*app, error) {
	if err := config.LoadEnvFile(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("%w (is %s a ledger directory?)", err, dir)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, dir, cfg.Storage)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	places := cfg.Ledger.CurrencyPrecision
	r := cfg.Reconciliation
	return &app{
		dir:       dir,
		cfg:       cfg,
		log:       log,
		store:     st,
		accounts:  accounts.NewService(st, log),
		templates: templates.NewService(st, log, places),
		journal: journal.NewService(st, log, journal.Options{
			Places:              places,
			DefaultDocumentType: cfg.Ledger.DefaultDocumentType,
		}),
		recon: reconcile.NewService(st, log, reconcile.Options{
			FuzzyDateDays:    r.FuzzyDateDays,
			KeywordThreshold: r.KeywordThreshold,
			MinTokenLength:   r.MinTokenLength,
			LookbackDays:     r.LookbackDays,
		}),
	}, nil
}

func openStore(ctx context.Context, dir string, sc config.StorageConfig) (store.Store, error) {
	switch sc.Driver {
	case config.DriverPostgres:
		return pgstore.Open(ctx, sc.DSN)
	default:
		path := sc.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return boltstore.Open(path)
	}
}

func (a *app) Close() error {
	err := a.store.Close()
	_ = a.log.Sync()
	return err
}

func (a *app) label(v string) string {
	return model.Label(a.cfg.Business.Locale, v)
}

func (a *app) money(d decimal.Decimal) string {
	return d.StringFixed(a.cfg.Ledger.CurrencyPrecision)
}

// withApp opens the ledger in dir, runs fn and closes it again.
func withApp(ctx context.Context, dir string, fn func(*app) error) (err error) {
	a, err := openApp(ctx, dir)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}

func parseDate(flag, s string) (time.Time, error) {
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, s)
	}
	return t, nil
}

// parseOptionalDate returns fallback when s is empty.
func parseOptionalDate(flag, s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return parseDate(flag, s)
}

func parseAmount(flag, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: invalid amount %q", flag, s)
	}
	return d, nil
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/mind-engage/labdesk/internal/config"
	"github.com/mind-engage/labdesk/internal/db"
	"github.com/mind-engage/labdesk/internal/desk"
	"github.com/mind-engage/labdesk/internal/journal"
	"github.com/mind-engage/labdesk/internal/labapi"
	"github.com/mind-engage/labdesk/internal/logging"
	"github.com/mind-engage/labdesk/internal/metrics"
	"github.com/mind-engage/labdesk/internal/scoring"
)

const defaultSQLiteDSN = "file:labdesk.db"

// app holds what every command builds from the loaded config.
type app struct {
	cfg     config.Config
	log     logging.Logger
	lab     *labapi.Client
	journal journal.Store
	ready   func(context.Context) error
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: logging.New(logOut, cfg.LogFormat, cfg.LogLevel)}

	lab, err := labapi.New(labapi.Config{
		BaseURL:      cfg.LabAPIURL,
		Timeout:      cfg.LabAPITimeout,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	})
	if err != nil {
		return nil, err
	}
	a.lab = lab

	if err := a.openJournal(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openJournal(ctx context.Context) error {
	if a.cfg.JournalDriver == "memory" {
		a.journal = journal.NewMemory()
		return nil
	}
	driver, err := db.ParseDriver(a.cfg.JournalDriver)
	if err != nil {
		return err
	}
	dsn := a.cfg.JournalDSN
	if dsn == "" {
		if driver != db.DriverSQLite {
			return fmt.Errorf("journal: %s needs a dsn", driver)
		}
		dsn = defaultSQLiteDSN
	}
	store, err := journal.Open(ctx, driver, dsn)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	a.journal = store
	a.ready = store.Ping
	a.closers = append(a.closers, store.Close)
	a.log.Debug("journal opened", "driver", string(driver))
	return nil
}

func (a *app) newDesk(m metrics.Recorder) (*desk.Desk, error) {
	mode, err := scoring.ParseReconcileMode(a.cfg.ReconcileMode)
	if err != nil {
		return nil, err
	}
	return desk.New(a.lab,
		desk.WithJournal(a.journal),
		desk.WithMetrics(m),
		desk.WithLogger(a.log),
		desk.WithReconcileMode(mode),
	), nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("close failed", "err", err)
		}
	}
}

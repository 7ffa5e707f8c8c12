package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/access"
	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/content"
	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/scheduler"
	"github.com/rshade/bulkops/internal/store"
)

// adminAccountID is the account used when --user is not given.
const adminAccountID = "cli"

// app holds the collaborators shared by subcommands. Databases are opened on
// first use so commands such as "key encode" never touch them.
type app struct {
	lookupEnv   func(string) (string, bool)
	configPath  string
	user        string
	permissions string

	cfg       *config.Config
	logResult *logging.LogPathResult

	content   *content.Store
	registry  *action.Registry
	processor *engine.Processor
	states    store.Store
	sched     *scheduler.Scheduler
}

// setup loads configuration and configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return err
	}
	a.cfg = cfg
	result := setupLogging(cmd, cfg)
	a.logResult = &result
	return nil
}

// account returns the acting account.
func (a *app) account() access.Account {
	if a.user == "" {
		return access.Account{ID: adminAccountID, Admin: true}
	}
	return access.Account{ID: a.user, Permissions: access.ParsePermissions(a.permissions)}
}

// openContent opens the content database and registers the sample actions.
func (a *app) openContent(ctx context.Context) error {
	if a.content != nil {
		return nil
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	dsn := a.cfg.Content.Database
	if dsn != content.MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return fmt.Errorf("creating content directory: %w", err)
		}
	}
	cs, err := content.Open(dsn)
	if err != nil {
		return err
	}
	reg := action.NewRegistry()
	if err := content.RegisterActions(ctx, reg, cs); err != nil {
		_ = cs.Close()
		return err
	}
	a.content = cs
	a.registry = reg
	a.processor = engine.NewProcessor(reg, cs, cs, nil, a.cfg.EngineOptions())
	return nil
}

// openScheduler opens content and the state store.
func (a *app) openScheduler(ctx context.Context) error {
	if a.sched != nil {
		return nil
	}
	if err := a.openContent(ctx); err != nil {
		return err
	}
	st, err := store.Open(ctx, a.cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("opening batch state: %w", err)
	}
	a.states = st
	a.sched = scheduler.New(a.processor, st, a.cfg.SchedulerOptions())
	return nil
}

// close releases everything that was opened.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.states != nil {
		errs = append(errs, a.states.Close())
		a.states, a.sched = nil, nil
	}
	if a.content != nil {
		errs = append(errs, a.content.Close())
		a.content, a.registry, a.processor = nil, nil, nil
	}
	if a.logResult != nil {
		logger.Debug().Ctx(ctx).Msg("command finished")
		errs = append(errs, a.logResult.Close())
		a.logResult = nil
	}
	return errors.Join(errs...)
}

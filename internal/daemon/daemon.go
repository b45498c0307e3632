package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/preflight"
	"recap/internal/store"
	"recap/internal/workflow"
)

// Daemon ties the API server and the sweeper to one lock-protected lifecycle.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	server  *apiServer
	sweeper *sweeper
	cancel  context.CancelFunc
	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	APIAddress   string
	NextSweep    string
	Database     string
	LockFilePath string
	Workflow     workflow.StatusSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || st == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, then starts the API server and sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another recap daemon instance is already running")
	}

	d.logPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	server := newAPIServer(d.cfg, d.workflow, d.store, d.logger)
	if err := server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	sw, err := newSweeper(d.cfg.Workflow.SweepSchedule, d.workflow, d.logger)
	if err != nil {
		server.stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	sw.start(runCtx)

	d.server = server
	d.sweeper = sw
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("recap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_address", server.addr()),
		logging.String("sweep_schedule", d.cfg.Workflow.SweepSchedule),
	)
	return nil
}

// Stop shuts down the API server, waits for an in-flight sweep and releases
// the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.sweeper.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next start may report another instance running"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.server = nil
	d.sweeper = nil
	d.running.Store(false)
	d.logger.Info("recap daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Status reports runtime state.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	status := Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		Database:     d.store.Location(),
	}
	if d.server != nil {
		status.APIAddress = d.server.addr()
	}
	if d.sweeper != nil {
		status.NextSweep = d.sweeper.next()
	}
	d.mu.Unlock()
	status.Workflow = d.workflow.Status(ctx)
	return status
}

// logPreflight reports failed readiness checks without blocking startup; the
// affected stages fail with their own errors until fixed.
func (d *Daemon) logPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg, preflight.Options{Database: d.store})
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "stages depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run recap doctor for details"),
		)
	}
}

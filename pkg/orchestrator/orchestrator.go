// Package orchestrator wires the tiers, the union view, the migration
// scheduler, and the operations API into one runnable unit.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/api"
	"github.com/marmos91/tierfs/pkg/config"
	"github.com/marmos91/tierfs/pkg/local"
	"github.com/marmos91/tierfs/pkg/metrics"
	metricsprom "github.com/marmos91/tierfs/pkg/metrics/prometheus"
	"github.com/marmos91/tierfs/pkg/migrate"
	"github.com/marmos91/tierfs/pkg/migrate/journal"
	"github.com/marmos91/tierfs/pkg/mount"
	"github.com/marmos91/tierfs/pkg/remote"
	"github.com/marmos91/tierfs/pkg/remote/cache"
	"github.com/marmos91/tierfs/pkg/remote/s3"
	"github.com/marmos91/tierfs/pkg/union"
)

// Option customizes orchestrator construction.
type Option func(*options)

type options struct {
	remoteClient remote.Client
}

// WithRemoteClient injects a remote client instead of building one from
// the configuration. Used by tests and by embedders with their own
// client wiring.
func WithRemoteClient(rc remote.Client) Option {
	return func(o *options) {
		o.remoteClient = rc
	}
}

// Orchestrator owns the full component graph. Build it with New, bring
// the tiers up with Mount, then block in Serve until the context is
// cancelled.
type Orchestrator struct {
	cfg *config.Config

	local   *local.Tier
	tracker *local.WriteTracker
	remote  remote.Client

	localMount  *mount.Handle
	remoteMount *mount.Handle

	view      *union.View
	journal   *journal.Journal
	scheduler *migrate.Scheduler
	apiServer *api.Server
}

// New builds the component graph from cfg. Construction validates the
// configuration and creates the local tier directory; it does not touch
// the remote.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Metrics.Enabled {
		metrics.InitRegistry()
	}

	lt, err := local.New(local.Config{
		Path:         cfg.Local.Path,
		MinFreeSpace: cfg.Local.MinFreeSpace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local tier: %w", err)
	}

	tracker, err := local.NewWriteTracker(lt.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to start write tracker: %w", err)
	}

	// One RemoteMetrics instance backs both the raw client and the cache;
	// constructing it twice would register duplicate collectors.
	remoteMetrics := metricsprom.NewRemoteMetrics()

	rc := o.remoteClient
	if rc == nil {
		rc, err = s3.NewFromConfig(ctx, s3.Config{
			Bucket:          cfg.Remote.Bucket,
			Region:          cfg.Remote.Region,
			Endpoint:        cfg.Remote.Endpoint,
			KeyPrefix:       cfg.Remote.KeyPrefix,
			CredentialsFile: cfg.Remote.CredentialsFile,
			Profile:         cfg.Remote.Profile,
			MaxRetries:      cfg.Remote.MaxRetries,
			ForcePathStyle:  cfg.Remote.ForcePathStyle,
		}, remoteMetrics)
		if err != nil {
			_ = tracker.Close()
			return nil, fmt.Errorf("failed to initialize remote client: %w", err)
		}
	}

	cached := cache.New(rc, cache.Config{
		MaxAge:       cfg.Remote.Cache.MaxAge,
		MaxSize:      cfg.Remote.Cache.MaxSize,
		DirCacheTime: cfg.Remote.Cache.DirCacheTime,
		AttrTimeout:  cfg.Remote.Cache.AttrTimeout,
		PollInterval: cfg.Remote.Cache.PollInterval,
	}, remoteMetrics)

	localMount := mount.NewHandle("local")
	remoteMount := mount.NewHandle("remote")

	view := union.New(lt, cached, localMount, remoteMount, union.Config{
		TieBreak: union.TieBreak(cfg.Union.TieBreak),
	}, metricsprom.NewUnionMetrics())

	var jrnl *journal.Journal
	if cfg.Migration.JournalPath != "" {
		jrnl, err = journal.Open(cfg.Migration.JournalPath)
		if err != nil {
			_ = tracker.Close()
			_ = cached.Close()
			return nil, fmt.Errorf("failed to open migration journal: %w", err)
		}
	}

	scheduler, err := migrate.New(lt, cached, tracker, jrnl, migrate.Config{
		Schedule:      cfg.Migration.Schedule,
		Transfers:     cfg.Migration.Transfers,
		Checkers:      cfg.Migration.Checkers,
		MaxRetries:    cfg.Migration.MaxRetries,
		RetryDelay:    cfg.Migration.RetryDelay,
		QuiesceWindow: cfg.Migration.QuiesceWindow,
	}, metricsprom.NewMigrationMetrics())
	if err != nil {
		_ = tracker.Close()
		_ = cached.Close()
		if jrnl != nil {
			_ = jrnl.Close()
		}
		return nil, err
	}

	orc := &Orchestrator{
		cfg:         cfg,
		local:       lt,
		tracker:     tracker,
		remote:      cached,
		localMount:  localMount,
		remoteMount: remoteMount,
		view:        view,
		journal:     jrnl,
		scheduler:   scheduler,
	}

	if cfg.Server.API.IsEnabled() {
		orc.apiServer = api.NewServer(cfg.Server.API, api.Deps{
			LocalMount:  localMount,
			RemoteMount: remoteMount,
			Local:       lt,
			Remote:      cached,
			Scheduler:   scheduler,
			Journal:     jrnl,
		})
	}

	return orc, nil
}

// Mount brings both tiers to the ready state. The local tier is ready
// as soon as its root exists; the remote tier is probed with a health
// check and marked failed if unreachable. Mount is fail-fast: a failed
// remote probe is returned as an error.
func (o *Orchestrator) Mount(ctx context.Context) error {
	o.localMount.Begin()
	o.localMount.MarkReady()
	logger.Info("local tier mounted",
		logger.Path(o.local.Root()),
		"min_free_space", o.cfg.Local.MinFreeSpace.String(),
	)

	o.remoteMount.Begin()

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := o.remote.HealthCheck(probeCtx); err != nil {
		o.remoteMount.MarkFailed(err)
		return fmt.Errorf("remote tier unreachable: %w", err)
	}

	o.remoteMount.MarkReady()
	logger.Info("remote tier mounted",
		"bucket", o.cfg.Remote.Bucket,
		"tie_break", o.cfg.Union.TieBreak,
	)
	if o.cfg.Union.MountPath != "" {
		logger.Info("merged namespace available", logger.KeyMount, o.cfg.Union.MountPath)
	}
	return nil
}

// Serve mounts the tiers, starts the scheduler and API server, and
// blocks until ctx is cancelled, then shuts everything down within the
// configured shutdown timeout.
func (o *Orchestrator) Serve(ctx context.Context) error {
	if err := o.Mount(ctx); err != nil {
		return err
	}

	if c, ok := o.remote.(*cache.Client); ok {
		c.Start(ctx)
	}

	o.scheduler.Start(ctx)
	logger.Info("migration scheduler started",
		"schedule", o.cfg.Migration.Schedule,
		logger.KeyNextRun, o.scheduler.NextRun(),
	)

	serverDone := make(chan error, 1)
	if o.apiServer != nil {
		go func() {
			serverDone <- o.apiServer.Start(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverDone:
		if err != nil {
			o.shutdown()
			return err
		}
	}

	return o.shutdown()
}

// View returns the merged namespace. It is valid after New; operations
// through it fail with a readiness error until Mount succeeds.
func (o *Orchestrator) View() *union.View {
	return o.view
}

// Scheduler exposes the migration scheduler for direct cycle control.
func (o *Orchestrator) Scheduler() *migrate.Scheduler {
	return o.scheduler
}

// shutdown tears the components down in reverse dependency order.
func (o *Orchestrator) shutdown() error {
	timeout := o.cfg.Server.ShutdownTimeout

	o.scheduler.Stop(timeout)

	if o.apiServer != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := o.apiServer.Stop(stopCtx); err != nil {
			logger.Warn("API server shutdown error", logger.Err(err))
		}
		cancel()
	}

	var firstErr error
	if err := o.tracker.Close(); err != nil {
		logger.Warn("write tracker close error", logger.Err(err))
		firstErr = err
	}
	if err := o.remote.Close(); err != nil {
		logger.Warn("remote client close error", logger.Err(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	if o.journal != nil {
		if err := o.journal.Close(); err != nil {
			logger.Warn("migration journal close error", logger.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	o.localMount.Teardown()
	o.remoteMount.Teardown()

	logger.Info("orchestrator stopped")
	return firstErr
}

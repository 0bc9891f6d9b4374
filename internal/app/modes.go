package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/detradefi/navoracle/internal/domain"
	"github.com/detradefi/navoracle/internal/server"
	"github.com/detradefi/navoracle/internal/server/handler"
)

// lockTTL bounds how long a crashed instance can block the next run.
const lockTTL = 10 * time.Minute

// SnapshotMode performs a single aggregate-and-persist pass and exits.
func (a *App) SnapshotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting snapshot mode",
		slog.String("address", deps.Aggregator.Address()),
	)
	return a.runOnce(ctx, deps)
}

// DaemonMode runs the aggregation loop on the configured interval and
// serves the HTTP/WebSocket API alongside it.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting daemon mode",
		slog.String("address", deps.Aggregator.Address()),
		slog.Duration("interval", a.cfg.Oracle.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Oracle.Interval.Duration)
		defer ticker.Stop()

		// First run immediately, then on the interval.
		if err := a.lockedRun(ctx, deps); err != nil {
			a.logger.ErrorContext(ctx, "aggregation run failed",
				slog.String("error", err.Error()),
			)
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := a.lockedRun(ctx, deps); err != nil {
					a.logger.ErrorContext(ctx, "aggregation run failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})

	return g.Wait()
}

// ServerMode serves the HTTP/WebSocket API over already-persisted
// snapshots without running any aggregation.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// startServer registers the API routes and runs the HTTP server and ws
// hub until the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Snapshots: handler.NewSnapshotHandler(deps.Store, a.cfg.Oracle.Address, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, deps.Hub, a.logger)

	if deps.Hub != nil {
		g.Go(func() error {
			err := deps.Hub.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// lockedRun executes one aggregation pass under the per-address
// distributed lock so overlapping oracle instances never race.
func (a *App) lockedRun(ctx context.Context, deps *Dependencies) error {
	unlock, err := deps.Locks.Acquire(ctx, "run:"+deps.Aggregator.Address(), lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.WarnContext(ctx, "run lock held by another instance, skipping")
			return nil
		}
		return err
	}
	defer unlock()

	return a.runOnce(ctx, deps)
}

// runOnce aggregates with retry and persists the resulting snapshot.
func (a *App) runOnce(ctx context.Context, deps *Dependencies) error {
	started := time.Now()

	snap, err := deps.Aggregator.RunWithRetry(ctx)
	if err != nil {
		return err
	}
	if err := deps.Persister.Persist(ctx, &snap); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "run complete",
		slog.String("snapshot_id", snap.ID),
		slog.String("nav", snap.Overview.NAV),
		slog.String("share_price", snap.Overview.SharePrice),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

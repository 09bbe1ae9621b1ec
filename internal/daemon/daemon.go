package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfmyers9/loopwatch/internal/browser"
	"github.com/jfmyers9/loopwatch/internal/history"
	"github.com/jfmyers9/loopwatch/internal/metrics"
	"github.com/jfmyers9/loopwatch/internal/session"
	"github.com/jfmyers9/loopwatch/internal/target"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds daemon configuration
type Config struct {
	Session          session.Config // Per-attempt timing
	RestartDelay     time.Duration  // Pause between attempts
	StateFile        string         // Path to live status file (empty: memory only)
	HistoryDB        string         // Path to session history database (empty: disabled)
	HistoryRetention time.Duration  // Age after which history is pruned on shutdown
	MetricsAddr      string         // Listen address for /metrics and /status (empty: disabled)
}

// Runner performs one playback attempt
type Runner interface {
	RunOnce(ctx context.Context, t target.Target) session.Result
}

// Daemon replays a target forever: one attempt, a fixed delay, repeat
type Daemon struct {
	config   Config
	runner   Runner
	state    *State
	history  *history.Store
	registry *prometheus.Registry
	logger   zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new Daemon instance that launches browsers with launcher
func New(cfg Config, launcher browser.Launcher, logger zerolog.Logger) (*Daemon, error) {
	state := NewState(cfg.StateFile)

	var store *history.Store
	if cfg.HistoryDB != "" {
		var err error
		store, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	runner := session.NewRunner(launcher, cfg.Session, logger,
		session.WithObserver(state),
		session.WithObserver(collector),
	)

	return &Daemon{
		config:   cfg,
		runner:   runner,
		state:    state,
		history:  store,
		registry: registry,
		logger:   logger.With().Str("component", "daemon").Logger(),
		sleep:    session.Sleep,
	}, nil
}

// Run starts the loop and blocks until shutdown signal received
func (d *Daemon) Run(t target.Target) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, closing the browser")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		if err := d.state.SetStopped(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to persist final status")
		}
		os.Exit(1)
	}()

	if err := d.run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// run starts the optional HTTP endpoint next to the playback loop and
// blocks until ctx is cancelled.
func (d *Daemon) run(ctx context.Context, t target.Target) error {
	d.logger.Info().
		Str("target", t.URL()).
		Dur("restart_delay", d.config.RestartDelay).
		Msg("Starting playback loop")

	g, ctx := errgroup.WithContext(ctx)

	if d.config.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              d.config.MetricsAddr,
			Handler:           newRouter(d.state, d.registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Serving is best-effort: a busy port must not stop playback
		g.Go(func() error {
			d.logger.Info().Str("addr", srv.Addr).Msg("Serving metrics and status")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error().Err(err).Msg("Metrics server error")
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				d.logger.Warn().Err(err).Msg("Failed to stop metrics server")
			}
			return nil
		})
	}

	g.Go(func() error {
		return d.loop(ctx, t)
	})

	return g.Wait()
}

// loop runs one attempt, waits the restart delay and repeats.
// It only returns once ctx is cancelled.
func (d *Daemon) loop(ctx context.Context, t target.Target) error {
	for {
		res := d.runner.RunOnce(ctx, t)
		d.record(res)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		d.logger.Info().
			Str("outcome", string(res.Outcome)).
			Dur("restart_in", d.config.RestartDelay).
			Msg("Playback complete, restarting")

		if err := d.state.SetWaiting(time.Now().Add(d.config.RestartDelay)); err != nil {
			d.logger.Debug().Err(err).Msg("Failed to persist status")
		}

		if err := d.sleep(ctx, d.config.RestartDelay); err != nil {
			return err
		}
	}
}

// record stores a finished attempt in the history database
func (d *Daemon) record(res session.Result) {
	if d.history == nil {
		return
	}

	// Recorded even during shutdown, so not derived from the loop's context
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.history.Record(ctx, history.FromResult(res)); err != nil {
		d.logger.Warn().Err(err).Str("session", res.SessionID).Msg("Failed to record session")
	}
}

// Shutdown marks the loop stopped and releases persistent resources
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down")

	if err := d.state.SetStopped(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist final status")
	}

	if d.history == nil {
		return nil
	}

	if d.config.HistoryRetention > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := d.history.Cleanup(ctx, d.config.HistoryRetention); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to cleanup history")
		}
	}

	if err := d.history.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}

	return nil
}

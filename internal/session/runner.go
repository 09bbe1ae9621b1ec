package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/loopwatch/internal/browser"
	"github.com/jfmyers9/loopwatch/internal/target"
	"github.com/rs/zerolog"
)

// DefaultWaitTimeout bounds page waits when Config leaves WaitTimeout unset
const DefaultWaitTimeout = 15 * time.Second

// Config holds the timing of a single playback attempt
type Config struct {
	WaitTimeout  time.Duration // Bound on each element wait, click and state query
	PollInterval time.Duration // Sleep after every player state query
}

// Observer is notified as an attempt progresses.
// Callbacks run synchronously on the runner's goroutine and must not block.
type Observer interface {
	SessionStarted(id string, t target.Target)
	PhaseChanged(id string, phase Phase)
	Polled(id string, state PlayerState, err error)
	SessionFinished(res Result)
}

// Runner plays a target once per RunOnce call, owning one browser per attempt
type Runner struct {
	launcher  browser.Launcher
	config    Config
	observers []Observer
	logger    zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
	now   func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithObserver registers an observer for attempt progress
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

// NewRunner creates a new Runner instance
func NewRunner(launcher browser.Launcher, cfg Config, logger zerolog.Logger, opts ...Option) *Runner {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	r := &Runner{
		launcher: launcher,
		config:   cfg,
		logger:   logger.With().Str("component", "session").Logger(),
		sleep:    Sleep,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce performs one complete playback attempt against t.
// It never panics and never returns an error: every failure is logged and
// reported through the Result's Outcome. The browser, if it was started,
// is released exactly once on every path.
func (r *Runner) RunOnce(ctx context.Context, t target.Target) (res Result) {
	res = Result{
		SessionID: r.newID(),
		Target:    t,
		StartedAt: r.now(),
	}
	logger := r.logger.With().
		Str("session", res.SessionID).
		Str("target", t.URL()).
		Logger()

	for _, o := range r.observers {
		o.SessionStarted(res.SessionID, t)
	}

	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("panic: %v", p)
			logger.Error().Interface("panic", p).Msg("An unexpected error occurred")
		}
		res.EndedAt = r.now()
		for _, o := range r.observers {
			o.SessionFinished(res)
		}
	}()

	r.phase(res.SessionID, PhaseLaunching)
	logger.Info().Msg("Setting up browser")
	sess, err := r.launcher.Launch(ctx)
	if err != nil {
		r.finish(ctx, &res, OutcomeLaunchFailed, err)
		logger.Error().Err(err).Msg("Could not start the browser")
		return res
	}
	defer func() {
		r.phase(res.SessionID, PhaseClosing)
		logger.Info().Msg("Closing the browser")
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error while closing the browser")
		}
	}()

	r.phase(res.SessionID, PhaseLoading)
	logger.Info().Msg("Opening URL")
	if err := sess.Navigate(ctx, t.URL()); err != nil {
		r.finish(ctx, &res, OutcomeBrowserError, err)
		logger.Error().Err(err).Msg("A browser error occurred")
		return res
	}

	if err := r.bounded(ctx, func(ctx context.Context) error {
		return sess.WaitPresent(ctx, PlayerSelector)
	}); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			r.finish(ctx, &res, OutcomeLoadTimeout, err)
			logger.Error().
				Dur("timeout", r.config.WaitTimeout).
				Msg("The video player did not load in time, check the URL and your connection")
		} else {
			r.finish(ctx, &res, OutcomeBrowserError, err)
			logger.Error().Err(err).Msg("A browser error occurred")
		}
		return res
	}

	r.phase(res.SessionID, PhaseAutoplay)
	res.Autoplay = r.disableAutoplay(ctx, sess, logger)

	r.phase(res.SessionID, PhaseStarting)
	res.Play = r.startPlayback(ctx, sess, logger)

	r.phase(res.SessionID, PhasePolling)
	pr := r.poll(ctx, res.SessionID, pagePlayer{sess: sess}, logger)
	res.Polls = pr.queries
	switch {
	case pr.ended:
		res.Outcome = OutcomeCompleted
	case pr.unavailable:
		r.finish(ctx, &res, OutcomeUnavailable, pr.err)
	default:
		r.finish(ctx, &res, OutcomeFailed, pr.err)
		if res.Outcome == OutcomeFailed {
			logger.Error().Err(pr.err).Msg("An unexpected error occurred")
		}
	}

	return res
}

// disableAutoplay switches off the "up next" toggle if it is on.
// It only ever reports what happened; failures never abort the attempt.
func (r *Runner) disableAutoplay(ctx context.Context, sess browser.Session, logger zerolog.Logger) StepResult {
	if err := r.bounded(ctx, func(ctx context.Context) error {
		return sess.WaitClickable(ctx, AutoplayToggleSelector)
	}); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			logger.Info().Msg("Could not find the autoplay toggle button, it might be off by default or the UI may have changed")
			return StepSkipped
		}
		logger.Warn().Err(err).Msg("An error occurred while trying to disable autoplay")
		return StepFailed
	}

	var checked string
	if err := r.bounded(ctx, func(ctx context.Context) error {
		v, _, err := sess.Attribute(ctx, AutoplayToggleSelector, "aria-checked")
		checked = v
		return err
	}); err != nil {
		logger.Warn().Err(err).Msg("An error occurred while trying to disable autoplay")
		return StepFailed
	}

	if checked != "true" {
		logger.Info().Msg("Autoplay feature is already off")
		return StepSkipped
	}

	logger.Info().Msg("Autoplay feature is on, clicking to disable it")
	if err := r.bounded(ctx, func(ctx context.Context) error {
		return sess.Click(ctx, AutoplayToggleSelector)
	}); err != nil {
		logger.Warn().Err(err).Msg("An error occurred while trying to disable autoplay")
		return StepFailed
	}

	return StepDone
}

// startPlayback clicks the player. The video may autoplay anyway, so a
// failed click is only logged.
func (r *Runner) startPlayback(ctx context.Context, sess browser.Session, logger zerolog.Logger) StepResult {
	if err := r.bounded(ctx, func(ctx context.Context) error {
		return sess.Click(ctx, PlayerSelector)
	}); err != nil {
		logger.Warn().Err(err).Msg("Could not click play button, video might autoplay")
		return StepFailed
	}

	logger.Info().Msg("Video playback initiated")
	return StepDone
}

// bounded runs fn under the configured wait timeout
func (r *Runner) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.WaitTimeout)
	defer cancel()
	return fn(ctx)
}

// finish records a non-completed outcome. Shutdown takes precedence over
// whatever error the shutdown itself provoked.
func (r *Runner) finish(ctx context.Context, res *Result, outcome Outcome, err error) {
	if ctx.Err() != nil {
		res.Outcome = OutcomeCanceled
		res.Err = ctx.Err()
		return
	}
	res.Outcome = outcome
	res.Err = err
}

func (r *Runner) phase(id string, p Phase) {
	for _, o := range r.observers {
		o.PhaseChanged(id, p)
	}
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Options controls how Chromium is launched
type Options struct {
	ExecPath   string   // Browser binary (empty: let chromedp find one)
	Headless   bool     // Run without a window
	ExtraFlags []string // Additional command-line switches, e.g. "--window-size=1280,720"
}

// ChromeLauncher launches Chromium through the DevTools protocol
type ChromeLauncher struct {
	opts   Options
	logger zerolog.Logger
}

// NewChromeLauncher creates a launcher with the given options
func NewChromeLauncher(opts Options, logger zerolog.Logger) *ChromeLauncher {
	return &ChromeLauncher{
		opts:   opts,
		logger: logger.With().Str("component", "browser").Logger(),
	}
}

// allocatorOptions returns the command-line switches for a playback browser:
// private window, autoplay without a gesture, no first-run UI, no extensions,
// no info bars, muted audio.
func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("incognito", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("mute-audio", true),
	)

	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}

	for _, raw := range l.opts.ExtraFlags {
		name, value, ok := parseFlag(raw)
		if !ok {
			l.logger.Warn().Str("flag", raw).Msg("Ignoring malformed browser flag")
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}

	return opts
}

// Launch starts a browser and opens a blank tab.
// Cancelling ctx kills the browser.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)

	tabCtx, tabCancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, v ...interface{}) {
			l.logger.Debug().Msgf("[chrome] "+format, v...)
		}),
		chromedp.WithErrorf(func(format string, v ...interface{}) {
			l.logger.Debug().Msgf("[chrome error] "+format, v...)
		}),
	)

	// An empty Run starts the browser process
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &chromeSession{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// chromeSession implements Session on top of a chromedp tab context
type chromeSession struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
}

// run executes actions on the tab, bounded by ctx
func (s *chromeSession) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	return s.classify(runCtx, op, chromedp.Run(runCtx, actions...))
}

// bind derives a context from the tab that carries ctx's deadline and
// is cancelled along with ctx
func (s *chromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}

	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// classify maps chromedp failures onto the package's sentinel errors.
// runCtx is the context the failed actions ran under.
func (s *chromeSession) classify(runCtx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	if s.ctx.Err() != nil ||
		errors.Is(err, chromedp.ErrInvalidContext) ||
		errors.Is(err, chromedp.ErrChannelClosed) ||
		errors.Is(err, chromedp.ErrInvalidTarget) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	var exception *runtime.ExceptionDetails
	if errors.As(err, &exception) {
		return fmt.Errorf("%s: %w: %w", op, ErrScript, err)
	}

	if errors.Is(err, context.DeadlineExceeded) && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, "navigate", chromedp.Navigate(url))
}

func (s *chromeSession) WaitPresent(ctx context.Context, selector string) error {
	return s.run(ctx, "wait present", chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) WaitClickable(ctx context.Context, selector string) error {
	return s.run(ctx, "wait clickable",
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
	)
}

func (s *chromeSession) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.run(ctx, "attribute", chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery))
	return value, ok, err
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, "click", chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) Evaluate(ctx context.Context, expression string, out any) error {
	return s.run(ctx, "evaluate", chromedp.Evaluate(expression, out))
}

// Close cancels the tab, which makes chromedp close the browser gracefully,
// then tears down the allocator which kills the process if still alive
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.tabCancel()
		s.allocCancel()
	})
	return nil
}

// parseFlag splits "--name=value" or "--name" into a chromedp flag.
// A bare switch maps to true.
func parseFlag(raw string) (string, interface{}, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "--") {
		return "", nil, false
	}
	raw = strings.TrimPrefix(raw, "--")

	name, value, hasValue := strings.Cut(raw, "=")
	if name == "" {
		return "", nil, false
	}
	if !hasValue {
		return name, true, true
	}
	return name, value, true
}

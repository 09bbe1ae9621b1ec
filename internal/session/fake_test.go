package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jfmyers9/loopwatch/internal/browser"
	"github.com/jfmyers9/loopwatch/internal/target"
	"github.com/rs/zerolog"
)

// step is one scripted answer to a player state query
type step struct {
	code *int
	err  error
}

func code(n int) step { return step{code: &n} }

func codes(ns ...int) []step {
	steps := make([]step, len(ns))
	for i, n := range ns {
		steps[i] = code(n)
	}
	return steps
}

// fakeSession is a scripted browser.Session
type fakeSession struct {
	mu sync.Mutex

	navigateErr  error
	presentErr   error
	presentHangs bool
	clickableErr error
	attrErr      error
	clickErrs    map[string]error
	checked      string
	states       []step
	panicOnQuery bool

	navigated []string
	clicks    map[string]int
	queries   int
	closes    int
}

func newFakeSession(states ...step) *fakeSession {
	return &fakeSession{
		states:    states,
		checked:   "false",
		clickErrs: map[string]error{},
		clicks:    map[string]int{},
	}
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return f.navigateErr
}

func (f *fakeSession) WaitPresent(ctx context.Context, selector string) error {
	if f.presentHangs {
		<-ctx.Done()
		return fmt.Errorf("wait %s: %w: %w", selector, browser.ErrTimeout, ctx.Err())
	}
	return f.presentErr
}

func (f *fakeSession) WaitClickable(ctx context.Context, selector string) error {
	return f.clickableErr
}

func (f *fakeSession) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	if f.attrErr != nil {
		return "", false, f.attrErr
	}
	return f.checked, true, nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.clickErrs[selector]; err != nil {
		return err
	}
	f.clicks[selector]++
	return nil
}

func (f *fakeSession) Evaluate(ctx context.Context, expression string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicOnQuery {
		panic("renderer exploded")
	}
	if f.queries >= len(f.states) {
		return fmt.Errorf("unscripted query %d", f.queries+1)
	}
	s := f.states[f.queries]
	f.queries++
	if s.err != nil {
		return s.err
	}

	ptr, ok := out.(**int)
	if !ok {
		return fmt.Errorf("unexpected result type %T", out)
	}
	*ptr = s.code
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// fakeLauncher hands out a prepared session, or fails
type fakeLauncher struct {
	sess     *fakeSession
	err      error
	launches int
}

func (l *fakeLauncher) Launch(ctx context.Context) (browser.Session, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return l.sess, nil
}

// sleepRecorder replaces the runner's sleep
type sleepRecorder struct {
	calls []time.Duration
	// cancel, if set, is invoked on the nth call (1-based) to simulate shutdown
	cancelOn int
	cancel   context.CancelFunc
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	if s.cancel != nil && len(s.calls) == s.cancelOn {
		s.cancel()
	}
	return ctx.Err()
}

// recordingObserver captures observer callbacks
type recordingObserver struct {
	started  []string
	phases   []Phase
	polled   []PlayerState
	pollErrs int
	finished []Result
}

func (o *recordingObserver) SessionStarted(id string, t target.Target) {
	o.started = append(o.started, id)
}

func (o *recordingObserver) PhaseChanged(id string, p Phase) {
	o.phases = append(o.phases, p)
}

func (o *recordingObserver) Polled(id string, state PlayerState, err error) {
	if err != nil {
		o.pollErrs++
		return
	}
	o.polled = append(o.polled, state)
}

func (o *recordingObserver) SessionFinished(res Result) {
	o.finished = append(o.finished, res)
}

func newTestRunner(l browser.Launcher, sleeper *sleepRecorder, opts ...Option) *Runner {
	r := NewRunner(l, Config{
		WaitTimeout:  15 * time.Second,
		PollInterval: 2 * time.Second,
	}, zerolog.Nop(), opts...)
	r.sleep = sleeper.sleep
	r.newID = func() string { return "test-session" }
	return r
}

var errGone = fmt.Errorf("evaluate: %w: %w", browser.ErrUnavailable, errors.New("websocket closed"))

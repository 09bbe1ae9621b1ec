package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		raw       string
		wantName  string
		wantValue interface{}
		wantOK    bool
	}{
		{raw: "--window-size=1280,720", wantName: "window-size", wantValue: "1280,720", wantOK: true},
		{raw: "--no-sandbox", wantName: "no-sandbox", wantValue: true, wantOK: true},
		{raw: "  --lang=en  ", wantName: "lang", wantValue: "en", wantOK: true},
		{raw: "--proxy-server=", wantName: "proxy-server", wantValue: "", wantOK: true},
		{raw: "no-sandbox"},
		{raw: "--"},
		{raw: "--=value"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, value, ok := parseFlag(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	l := NewChromeLauncher(Options{}, zerolog.Nop())
	assert.Len(t, l.allocatorOptions(), base+7)

	l = NewChromeLauncher(Options{
		ExecPath:   "/usr/bin/chromium",
		ExtraFlags: []string{"--no-sandbox", "bogus"},
	}, zerolog.Nop())
	// exec path + one valid extra flag; the malformed one is dropped
	assert.Len(t, l.allocatorOptions(), base+7+2)
}

func TestClassify(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		s := &chromeSession{ctx: context.Background()}
		assert.NoError(t, s.classify(context.Background(), "op", nil))
	})

	t.Run("closed tab is unavailable", func(t *testing.T) {
		tabCtx, cancel := context.WithCancel(context.Background())
		cancel()
		s := &chromeSession{ctx: tabCtx}

		err := s.classify(context.Background(), "evaluate", context.Canceled)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid context is unavailable", func(t *testing.T) {
		s := &chromeSession{ctx: context.Background()}
		err := s.classify(context.Background(), "click", chromedp.ErrInvalidContext)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("expired wait is a timeout", func(t *testing.T) {
		s := &chromeSession{ctx: context.Background()}
		runCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-runCtx.Done()

		err := s.classify(runCtx, "wait present", context.DeadlineExceeded)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})

	t.Run("page exception is a script error", func(t *testing.T) {
		s := &chromeSession{ctx: context.Background()}
		exception := &runtime.ExceptionDetails{Text: "Uncaught", LineNumber: 3}
		err := s.classify(context.Background(), "evaluate", exception)
		assert.ErrorIs(t, err, ErrScript)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		s := &chromeSession{ctx: context.Background()}
		boom := errors.New("boom")
		err := s.classify(context.Background(), "navigate", boom)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrTimeout)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})
}

func TestBindFollowsParent(t *testing.T) {
	s := &chromeSession{ctx: context.Background()}

	parent, cancelParent := context.WithCancel(context.Background())
	runCtx, cancel := s.bind(parent)
	defer cancel()

	cancelParent()
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context was not cancelled with its parent")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	var tabCalls, allocCalls int
	s := &chromeSession{
		ctx:         context.Background(),
		tabCancel:   func() { tabCalls++ },
		allocCancel: func() { allocCalls++ },
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, tabCalls)
	assert.Equal(t, 1, allocCalls)
}

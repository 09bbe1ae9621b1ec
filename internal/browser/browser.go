package browser

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the browser went away (closed, crashed or disconnected)
	ErrUnavailable = errors.New("browser is no longer available")

	// ErrTimeout means a bounded wait expired before its condition held
	ErrTimeout = errors.New("timed out waiting for element")

	// ErrScript means an evaluated expression threw in the page
	ErrScript = errors.New("script raised an exception")
)

// Session is a single launched browser with one open tab.
// A Session is owned by exactly one playback attempt and must be closed by it.
type Session interface {
	// Navigate loads url in the tab
	Navigate(ctx context.Context, url string) error

	// WaitPresent blocks until selector matches an element in the DOM
	WaitPresent(ctx context.Context, selector string) error

	// WaitClickable blocks until selector matches a visible, enabled element
	WaitClickable(ctx context.Context, selector string) error

	// Attribute returns the named attribute of the first element matching selector.
	// ok is false when the attribute is not set.
	Attribute(ctx context.Context, selector, name string) (value string, ok bool, err error)

	// Click clicks the first element matching selector
	Click(ctx context.Context, selector string) error

	// Evaluate runs a JavaScript expression in the page and decodes the result into out.
	// A null or undefined result leaves a pointer out set to nil.
	Evaluate(ctx context.Context, expression string, out any) error

	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Launcher starts new browser sessions
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

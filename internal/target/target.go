package target

import (
	"errors"
	"net/url"
	"strings"
)

// DefaultURL is played when no address is given on the command line.
// A short, calming Creative Commons video of ocean waves.
const DefaultURL = "https://www.youtube.com/watch?app=desktop&v=zqpv2bySbr4"

// ErrInvalid is returned by Parse for addresses that do not look like a video page
var ErrInvalid = errors.New("invalid YouTube URL")

// accepted substrings; an address must contain at least one of them
var patterns = []string{
	"youtube.com/watch?v=",
	"youtu.be/",
}

// Target is an immutable reference to the video page being looped
type Target struct {
	raw string
}

// Parse validates raw with a shallow substring match and returns a Target
func Parse(raw string) (Target, error) {
	for _, p := range patterns {
		if strings.Contains(raw, p) {
			return Target{raw: raw}, nil
		}
	}
	return Target{}, ErrInvalid
}

// Default returns the built-in target. It is used verbatim and skips validation.
func Default() Target {
	return Target{raw: DefaultURL}
}

// URL returns the address exactly as it was supplied
func (t Target) URL() string {
	return t.raw
}

// String implements fmt.Stringer
func (t Target) String() string {
	return t.raw
}

// VideoID extracts the video id from the address, or "" if none can be found.
// Only used for display; validation never depends on it.
func (t Target) VideoID() string {
	u, err := url.Parse(t.raw)
	if err != nil {
		return ""
	}

	if strings.HasSuffix(u.Host, "youtu.be") {
		return strings.Trim(u.Path, "/")
	}

	return u.Query().Get("v")
}

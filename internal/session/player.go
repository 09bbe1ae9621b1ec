package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfmyers9/loopwatch/internal/browser"
)

// CSS selectors for the YouTube watch page
const (
	PlayerSelector         = "#movie_player"
	AutoplayToggleSelector = ".ytp-autonav-toggle-button"
)

// ErrNoState is returned when the page did not report a numeric player state
var ErrNoState = errors.New("player state unavailable")

// PlayerState is the numeric state reported by the embedded player's getPlayerState()
type PlayerState int

const (
	StateUnstarted PlayerState = -1
	StateEnded     PlayerState = 0
	StatePlaying   PlayerState = 1
	StatePaused    PlayerState = 2
	StateBuffering PlayerState = 3
	StateCued      PlayerState = 5
)

// String returns a human-readable representation of the PlayerState
func (s PlayerState) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateCued:
		return "cued"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StateQuerier reads the current player state
type StateQuerier interface {
	QueryState(ctx context.Context) (PlayerState, error)
}

// Throws when the player element is gone or has no API; a non-numeric
// state evaluates to null
const playerStateScript = `(function() {
	var p = document.getElementById('movie_player');
	if (!p) {
		throw new Error('movie_player not found');
	}
	if (typeof p.getPlayerState !== 'function') {
		throw new Error('movie_player has no getPlayerState');
	}
	var s = p.getPlayerState();
	return typeof s === 'number' ? s : null;
})()`

// pagePlayer queries the player embedded in a browser tab
type pagePlayer struct {
	sess browser.Session
}

// QueryState evaluates getPlayerState() in the page
func (p pagePlayer) QueryState(ctx context.Context) (PlayerState, error) {
	var code *int
	if err := p.sess.Evaluate(ctx, playerStateScript, &code); err != nil {
		return 0, err
	}
	if code == nil {
		return 0, ErrNoState
	}
	return PlayerState(*code), nil
}

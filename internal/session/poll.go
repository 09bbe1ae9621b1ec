package session

import (
	"context"
	"errors"

	"github.com/jfmyers9/loopwatch/internal/browser"
	"github.com/rs/zerolog"
)

// pollResult is how the poll loop ended
type pollResult struct {
	queries     int   // Number of state queries issued
	ended       bool  // Player reported ENDED
	unavailable bool  // Browser went away; loop broke without sleeping
	err         error // Cause when neither ended nor a clean break
}

// poll queries the player until it reports ENDED or the browser goes away.
// Every query is followed by one poll-interval sleep, including the query
// that observes ENDED. There is no overall timeout.
func (r *Runner) poll(ctx context.Context, id string, player StateQuerier, logger zerolog.Logger) pollResult {
	var res pollResult

	for {
		var state PlayerState
		err := r.bounded(ctx, func(ctx context.Context) error {
			var err error
			state, err = player.QueryState(ctx)
			return err
		})
		res.queries++

		for _, o := range r.observers {
			o.Polled(id, state, err)
		}

		switch {
		case err == nil && state == StateEnded:
			logger.Info().Int("polls", res.queries).Msg("Video has finished playing")
			res.ended = true
		case err == nil && state == StateUnstarted:
			logger.Info().Msg("Video player unstarted, waiting")
		case err == nil:
			// Any other code counts as still playing
			logger.Debug().Stringer("state", state).Msg("Poll update")
		case errors.Is(err, browser.ErrUnavailable), errors.Is(err, browser.ErrScript):
			// A broken or missing player cannot recover within this attempt
			logger.Warn().Err(err).Msg("Browser is no longer available, exiting video check")
			res.unavailable = true
			res.err = err
			return res
		case errors.Is(err, ErrNoState), errors.Is(err, browser.ErrTimeout):
			logger.Info().Err(err).Msg("Could not get player state, waiting")
		default:
			res.err = err
			return res
		}

		if err := r.sleep(ctx, r.config.PollInterval); err != nil {
			if !res.ended {
				res.err = err
			}
			return res
		}

		if res.ended {
			return res
		}
	}
}

package session

import (
	"time"

	"github.com/jfmyers9/loopwatch/internal/target"
)

// Outcome is how a playback attempt ended
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"     // Player reported ENDED
	OutcomeUnavailable  Outcome = "unavailable"   // Browser went away while polling
	OutcomeLaunchFailed Outcome = "launch_failed" // Browser could not be started
	OutcomeLoadTimeout  Outcome = "load_timeout"  // Player element never appeared
	OutcomeBrowserError Outcome = "browser_error" // Browser reported an error outside polling
	OutcomeFailed       Outcome = "failed"        // Anything else, including recovered panics
	OutcomeCanceled     Outcome = "canceled"      // Process is shutting down
)

// Outcomes lists every outcome, in display order
var Outcomes = []Outcome{
	OutcomeCompleted,
	OutcomeUnavailable,
	OutcomeLaunchFailed,
	OutcomeLoadTimeout,
	OutcomeBrowserError,
	OutcomeFailed,
	OutcomeCanceled,
}

// StepResult records what a best-effort step did.
// It is informational only and never changes the course of an attempt.
type StepResult string

const (
	StepPending StepResult = ""        // Step was not reached
	StepDone    StepResult = "done"    // Step performed its action
	StepSkipped StepResult = "skipped" // Nothing to do, or the control was not found
	StepFailed  StepResult = "failed"  // Step raised an error and was abandoned
)

// Phase is the part of an attempt currently executing
type Phase string

const (
	PhaseLaunching Phase = "launching"
	PhaseLoading   Phase = "loading"
	PhaseAutoplay  Phase = "autoplay"
	PhaseStarting  Phase = "starting"
	PhasePolling   Phase = "polling"
	PhaseClosing   Phase = "closing"
	PhaseWaiting   Phase = "waiting" // Between attempts
)

// Result summarises one playback attempt
type Result struct {
	SessionID string
	Target    target.Target
	Outcome   Outcome
	Autoplay  StepResult // Autoplay toggle suppression
	Play      StepResult // Click on the player
	Polls     int        // Number of player state queries
	StartedAt time.Time
	EndedAt   time.Time
	Err       error // Cause for non-completed outcomes, nil otherwise
}

// Duration returns how long the attempt ran
func (r Result) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

package daemon

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/renameio/v2"
	"github.com/jfmyers9/loopwatch/internal/session"
	"github.com/jfmyers9/loopwatch/internal/target"
)

// PhaseStopped marks a status file left behind by a loop that has exited
const PhaseStopped session.Phase = "stopped"

// defaultPersistInterval bounds how often poll updates hit the disk
const defaultPersistInterval = 10 * time.Second

// Status is a snapshot of what the loop is doing
type Status struct {
	PID            int             `json:"pid"`
	Target         string          `json:"target"`
	VideoID        string          `json:"video_id,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Phase          session.Phase   `json:"phase"`
	PlayerState    string          `json:"player_state,omitempty"`
	Polls          int             `json:"polls"`
	Attempts       int             `json:"attempts"`
	SessionStarted time.Time       `json:"session_started,omitzero"`
	NextAttemptAt  time.Time       `json:"next_attempt_at,omitzero"`
	LastOutcome    session.Outcome `json:"last_outcome,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Running reports whether the status belongs to a live loop. A file left
// behind by a killed or crashed process still names a phase, so the
// recorded PID must also be alive.
func (s Status) Running() bool {
	if s.Phase == "" || s.Phase == PhaseStopped {
		return false
	}
	return processAlive(s.PID)
}

// processAlive reports whether pid exists, using signal 0
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	// EPERM: the process exists but belongs to another user
	return err == nil || errors.Is(err, syscall.EPERM)
}

// State tracks the loop's live status with thread-safe access and persistence.
// It implements session.Observer.
type State struct {
	mu              sync.RWMutex
	current         Status
	filePath        string        // Path to state file for persistence
	persistInterval time.Duration // Minimum time between throttled writes
	lastPersist     time.Time
	dirty           bool // In-memory status newer than the file
}

// NewState creates a new State instance.
// An empty filePath keeps the status in memory only.
func NewState(filePath string) *State {
	return &State{
		filePath:        filePath,
		persistInterval: defaultPersistInterval,
		current: Status{
			PID: os.Getpid(),
		},
	}
}

// Snapshot returns a copy of the current status
func (s *State) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

// SessionStarted resets per-attempt fields for a new attempt
func (s *State) SessionStarted(id string, t target.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Target = t.URL()
	s.current.VideoID = t.VideoID()
	s.current.SessionID = id
	s.current.PlayerState = ""
	s.current.Polls = 0
	s.current.Attempts++
	s.current.SessionStarted = time.Now()
	s.current.NextAttemptAt = time.Time{}

	_ = s.persist()
}

// PhaseChanged records the attempt's current phase
func (s *State) PhaseChanged(id string, phase session.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Phase = phase
	_ = s.persist()
}

// Polled records a player state query. Writes are throttled since polls
// arrive every couple of seconds for the whole length of the video.
func (s *State) Polled(id string, state session.PlayerState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Polls++
	if err != nil {
		s.current.PlayerState = "unreadable"
	} else {
		s.current.PlayerState = state.String()
	}
	_ = s.throttledPersist()
}

// SessionFinished records the attempt's outcome
func (s *State) SessionFinished(res session.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.LastOutcome = res.Outcome
	s.current.LastError = ""
	if res.Err != nil {
		s.current.LastError = res.Err.Error()
	}
	_ = s.persist()
}

// SetWaiting marks the loop as sleeping until next
func (s *State) SetWaiting(next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Phase = session.PhaseWaiting
	s.current.NextAttemptAt = next
	return s.persist()
}

// SetStopped marks the loop as exited
func (s *State) SetStopped() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Phase = PhaseStopped
	s.current.NextAttemptAt = time.Time{}
	return s.persist()
}

// Flush writes pending throttled updates to disk
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.persist()
}

// throttledPersist saves only if persistInterval has elapsed since the last write
// Must be called with lock held
func (s *State) throttledPersist() error {
	if time.Since(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist saves the current status to disk
// Must be called with lock held
func (s *State) persist() error {
	s.current.UpdatedAt = time.Now()

	if s.filePath == "" {
		s.dirty = false
		return nil // No persistence configured
	}

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Readers such as the status command never see a partial file
	if err := renameio.WriteFile(s.filePath, data, 0644); err != nil {
		return err
	}

	s.lastPersist = time.Now()
	s.dirty = false
	return nil
}

// ReadStatus loads a status file written by a running loop
func ReadStatus(filePath string) (Status, error) {
	var st Status

	data, err := os.ReadFile(filePath)
	if err != nil {
		return st, err
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}

	return st, nil
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/jfmyers9/loopwatch/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Polled("s", session.StateUnstarted, nil)
	c.Polled("s", session.StatePlaying, nil)
	c.Polled("s", session.StatePlaying, nil)
	c.Polled("s", 0, errors.New("no state"))
	c.Polled("s", session.StateEnded, nil)

	started := time.Now()
	c.SessionFinished(session.Result{
		Outcome:   session.OutcomeCompleted,
		Autoplay:  session.StepDone,
		Play:      session.StepFailed,
		StartedAt: started,
		EndedAt:   started.Add(90 * time.Second),
	})
	c.SessionFinished(session.Result{
		Outcome:   session.OutcomeLaunchFailed,
		StartedAt: started,
		EndedAt:   started.Add(time.Second),
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.polls.WithLabelValues("playing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("unstarted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("unreadable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("ended")))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("launch_failed")))

	// pending steps are not counted
	assert.Equal(t, 1, testutil.CollectAndCount(c.autoplay))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.play.WithLabelValues("failed")))

	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestCollector_ExportsEveryOutcome(t *testing.T) {
	c := New(prometheus.NewRegistry())

	assert.Equal(t, len(session.Outcomes), testutil.CollectAndCount(c.attempts))
	for _, o := range session.Outcomes {
		assert.Zero(t, testutil.ToFloat64(c.attempts.WithLabelValues(string(o))), o)
	}
}

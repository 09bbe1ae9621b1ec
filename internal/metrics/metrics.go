// Package metrics exposes Prometheus instrumentation for playback attempts.
package metrics

import (
	"github.com/jfmyers9/loopwatch/internal/session"
	"github.com/jfmyers9/loopwatch/internal/target"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "loopwatch"

// Collector records attempt metrics. It implements session.Observer.
type Collector struct {
	attempts *prometheus.CounterVec
	polls    *prometheus.CounterVec
	duration prometheus.Histogram
	autoplay *prometheus.CounterVec
	play     *prometheus.CounterVec
}

// New creates a Collector and registers it with reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Playback attempts by outcome",
			},
			[]string{"outcome"},
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Player state queries by observed state",
			},
			[]string{"state"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Wall-clock duration of playback attempts",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
			},
		),
		autoplay: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autoplay_toggle_total",
				Help:      "Autoplay suppression step results",
			},
			[]string{"result"},
		),
		play: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "play_click_total",
				Help:      "Playback start click results",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(c.attempts, c.polls, c.duration, c.autoplay, c.play)

	// Export every outcome at zero so rate() works before the first failure
	for _, o := range session.Outcomes {
		c.attempts.WithLabelValues(string(o))
	}

	return c
}

func (c *Collector) SessionStarted(id string, t target.Target) {}

func (c *Collector) PhaseChanged(id string, phase session.Phase) {}

func (c *Collector) Polled(id string, state session.PlayerState, err error) {
	label := state.String()
	if err != nil {
		label = "unreadable"
	}
	c.polls.WithLabelValues(label).Inc()
}

func (c *Collector) SessionFinished(res session.Result) {
	c.attempts.WithLabelValues(string(res.Outcome)).Inc()
	c.duration.Observe(res.Duration().Seconds())
	if res.Autoplay != session.StepPending {
		c.autoplay.WithLabelValues(string(res.Autoplay)).Inc()
	}
	if res.Play != session.StepPending {
		c.play.WithLabelValues(string(res.Play)).Inc()
	}
}

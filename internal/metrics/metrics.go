package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/event"
)

const namespace = "quizroom"

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "connections",
		Help:      "Number of open websocket connections.",
	})

	Frames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "frames_total",
		Help:      "Inbound websocket frames by event and result code.",
	}, []string{"event", "code"})

	DroppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "dropped_clients_total",
		Help:      "Connections closed because their send queue was full.",
	})

	Sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session lifecycle transitions by event.",
	}, []string{"event"})

	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "answers_total",
		Help:      "Accepted answers by correctness.",
	}, []string{"correct"})
)

// Observe counts domain events published on the bus.
func Observe(eb *event.Bus) {
	eb.Subscribe(func(_ context.Context, e event.Event) error {
		if a, ok := e.(domain.EventAnswerRecorded); ok {
			if a.IsCorrect {
				Answers.WithLabelValues("true").Inc()
			} else {
				Answers.WithLabelValues("false").Inc()
			}
			return nil
		}

		Sessions.WithLabelValues(e.Name()).Inc()
		return nil
	},
		domain.EventNameSessionStarted,
		domain.EventNameQuestionOpened,
		domain.EventNameSessionCompleted,
		domain.EventNameAnswerRecorded,
	)
}

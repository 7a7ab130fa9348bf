package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_engine_events_processed",
	Help: "Total number of inbound events processed, by event type.",
}, []string{"type"})

var eventErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_engine_event_errors",
	Help: "Total number of panics recovered while processing events.",
})

var violationsFlagged = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_engine_violations_flagged",
	Help: "Total number of messages flagged by the moderation matcher, by enforcement action.",
}, []string{"action"})

var commandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_engine_commands_handled",
	Help: "Total number of chat commands handled, by command.",
}, []string{"command"})

var commandsThrottled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_engine_commands_throttled",
	Help: "Total number of chat commands dropped by the rate limiter.",
})

var welcomesSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_engine_welcomes_sent",
	Help: "Total number of welcome messages enqueued for new members.",
})

var quietRepliesSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_engine_quiet_replies_sent",
	Help: "Total number of quiet-hours auto-replies enqueued.",
})

var quietRepliesSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_engine_quiet_replies_skipped_load",
	Help: "Total number of quiet-hours auto-replies skipped because resource thresholds were exceeded.",
})

package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updatesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_telegram_updates_received",
	Help: "Total number of Bot API updates received by the poller.",
})

var pollFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_telegram_poll_failures",
	Help: "Total number of failed getUpdates calls.",
})

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_dispatch_processed",
	Help: "Number of dispatch tasks executed successfully",
}, []string{"kind"})

var tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_dispatch_failed",
	Help: "Number of dispatch tasks abandoned after execution failure",
}, []string{"kind"})

var tasksDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_dispatch_dropped",
	Help: "Number of tasks dropped because the queue was full",
})

var taskRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_dispatch_retries",
	Help: "Number of transient-failure retries in the dispatch worker",
})

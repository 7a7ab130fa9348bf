package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var stateGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_supervisor_state",
	Help: "Current supervisor state (0=running, 1=restarting, 2=degraded)",
})

var restartAttempts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_supervisor_restart_attempts",
	Help: "Number of automated restart attempts",
})

var healthProbeFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_supervisor_health_failures",
	Help: "Number of failed health probes (after retries)",
})

var beaconPings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_supervisor_beacon_pings",
	Help: "Number of liveness beacon pings",
}, []string{"status"})

var cpuUsageGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_resource_cpu_window_seconds",
	Help: "Process CPU seconds consumed in the last sampling window",
})

var cpuThresholdGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_resource_cpu_threshold_seconds",
	Help: "Current adaptive CPU threshold per sampling window",
})

var heapUsageGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_resource_heap_bytes",
	Help: "Live heap bytes at the last sample",
})

var heapThresholdGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_resource_heap_threshold_bytes",
	Help: "Current adaptive heap threshold",
})

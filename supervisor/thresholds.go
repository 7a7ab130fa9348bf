package supervisor

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// Sample is one point-in-time reading of process resource usage.
type Sample struct {
	// Total process CPU time (user + system) since start.
	CPUSeconds float64
	// Live heap bytes.
	HeapBytes uint64
}

func sampleResources() Sample {
	var ru unix.Rusage
	var cpu float64
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err == nil {
		cpu = timevalSeconds(ru.Utime) + timevalSeconds(ru.Stime)
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Sample{CPUSeconds: cpu, HeapBytes: ms.HeapAlloc}
}

func timevalSeconds(tv unix.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

// Bounds for the adaptive thresholds.
const (
	cpuThresholdFloor   = 1.0 // CPU-seconds per sampling window
	cpuThresholdCeiling = 30.0
	heapThresholdFloor  = 64 << 20
	heapThresholdCeil   = 1 << 30
)

// Thresholds is the process-wide resource budget consulted by load-sensitive
// background jobs. The supervisor's adaptation loop nudges the limits up when
// usage runs consistently close to them and back down when usage is low,
// within fixed floor/ceiling bounds.
type Thresholds struct {
	mu sync.Mutex

	cpuPerWindow float64 // CPU-seconds allowed per sampling window
	heapBytes    uint64

	lastCPUDelta float64
	lastHeap     uint64
}

func NewThresholds() *Thresholds {
	return &Thresholds{
		cpuPerWindow: 5.0,
		heapBytes:    256 << 20,
	}
}

// Allow reports whether current usage is within budget. Load-sensitive jobs
// call this before running and skip their tick when it returns false.
func (t *Thresholds) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastCPUDelta <= t.cpuPerWindow && t.lastHeap <= t.heapBytes
}

// Snapshot returns current limits and last observed usage.
func (t *Thresholds) Snapshot() (cpuLimit, cpuUsed float64, heapLimit, heapUsed uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cpuPerWindow, t.lastCPUDelta, t.heapBytes, t.lastHeap
}

// observe records one window's usage and applies the feedback rule: usage at
// or above 80% of a limit nudges the limit up 25%, usage at or below 30%
// nudges it down 20%.
func (t *Thresholds) observe(cpuDelta float64, heap uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastCPUDelta = cpuDelta
	t.lastHeap = heap

	switch {
	case cpuDelta >= 0.8*t.cpuPerWindow:
		t.cpuPerWindow = min(t.cpuPerWindow*1.25, cpuThresholdCeiling)
	case cpuDelta <= 0.3*t.cpuPerWindow:
		t.cpuPerWindow = max(t.cpuPerWindow*0.8, cpuThresholdFloor)
	}

	hf := float64(heap)
	switch {
	case hf >= 0.8*float64(t.heapBytes):
		t.heapBytes = uint64(min(float64(t.heapBytes)*1.25, heapThresholdCeil))
	case hf <= 0.3*float64(t.heapBytes):
		t.heapBytes = uint64(max(float64(t.heapBytes)*0.8, heapThresholdFloor))
	}
}

// Package supervisor keeps the process alive: it probes transport health,
// escalates persistent failures into a restart-with-backoff state machine,
// guards against duplicate instances, adapts resource thresholds, and falls
// back to an external liveness beacon once the restart budget is exhausted.
//
// The supervisor is the only component allowed to terminate the process.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/palatki-dv/warden/transport"
)

// State of the process lifecycle.
type State int

const (
	StateRunning State = iota
	StateRestarting
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Probe checks that the transport (and with it, the process) is healthy.
type Probe interface {
	Healthy(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Healthy(ctx context.Context) error {
	return f(ctx)
}

// Notifier delivers operator-facing notifications (admin direct messages).
type Notifier interface {
	NotifyAdmins(ctx context.Context, text string)
}

type Config struct {
	HealthInterval     time.Duration // default 6h
	ResourceInterval   time.Duration // default 1m
	BeaconInterval     time.Duration // default 15m
	BeaconURL          string
	MaxRestartAttempts int           // default 5
	ProbeAttempts      int           // retries per health check, default 10
	ProbeBackoffBase   time.Duration // default 2s
	ProbeBackoffMax    time.Duration // default 60s
	RestartBackoffBase time.Duration // default 1m
	RestartBackoffMax  time.Duration // default 15m
	RestartGrace       time.Duration // default 2s
}

func (c *Config) setDefaults() {
	if c.HealthInterval == 0 {
		c.HealthInterval = 6 * time.Hour
	}
	if c.ResourceInterval == 0 {
		c.ResourceInterval = time.Minute
	}
	if c.BeaconInterval == 0 {
		c.BeaconInterval = 15 * time.Minute
	}
	if c.MaxRestartAttempts == 0 {
		c.MaxRestartAttempts = 5
	}
	if c.ProbeAttempts == 0 {
		c.ProbeAttempts = 10
	}
	if c.ProbeBackoffBase == 0 {
		c.ProbeBackoffBase = 2 * time.Second
	}
	if c.ProbeBackoffMax == 0 {
		c.ProbeBackoffMax = time.Minute
	}
	if c.RestartBackoffBase == 0 {
		c.RestartBackoffBase = time.Minute
	}
	if c.RestartBackoffMax == 0 {
		c.RestartBackoffMax = 15 * time.Minute
	}
	if c.RestartGrace == 0 {
		c.RestartGrace = 2 * time.Second
	}
}

type Supervisor struct {
	logger     *slog.Logger
	cfg        Config
	probe      Probe
	launcher   Launcher
	notifier   Notifier
	thresholds *Thresholds
	beacon     *Beacon
	exit       func(code int)

	mu       sync.Mutex
	state    State
	attempts int
}

func New(cfg Config, probe Probe, launcher Launcher, notifier Notifier, thresholds *Thresholds, logger *slog.Logger) *Supervisor {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "supervisor")
	var beacon *Beacon
	if cfg.BeaconURL != "" {
		beacon = NewBeacon(cfg.BeaconURL, logger)
	}
	return &Supervisor{
		logger:     logger,
		cfg:        cfg,
		probe:      probe,
		launcher:   launcher,
		notifier:   notifier,
		thresholds: thresholds,
		beacon:     beacon,
		exit:       nil,
	}
}

// SetExit overrides process termination, for tests. Nil means os-level exit
// via the package default.
func (s *Supervisor) SetExit(fn func(code int)) {
	s.exit = fn
}

// Thresholds exposes the shared resource budget for load-sensitive jobs.
func (s *Supervisor) Thresholds() *Thresholds {
	return s.thresholds
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	stateGauge.Set(float64(st))
}

// ResetRestartState zeroes the attempt counter (manual restart request, or a
// stable run after recovery) and re-enters Running.
func (s *Supervisor) ResetRestartState() {
	s.mu.Lock()
	s.attempts = 0
	s.state = StateRunning
	s.mu.Unlock()
	stateGauge.Set(float64(StateRunning))
	s.logger.Info("restart state reset")
}

// Run drives the health, resource-adaptation, and liveness-beacon loops until
// the context is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.runHealth(ctx) })
	eg.Go(func() error { return s.runResourceAdaptation(ctx) })
	if s.beacon != nil {
		eg.Go(func() error { return s.runBeacon(ctx) })
	}
	return eg.Wait()
}

func (s *Supervisor) runHealth(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

func (s *Supervisor) checkHealth(ctx context.Context) {
	if s.State() == StateDegraded {
		// automated recovery is exhausted; the beacon loop carries the signal
		return
	}
	err := s.probeWithRetry(ctx)
	if err == nil {
		s.logger.Info("health probe ok")
		// a successful probe after prior failures counts as a stable run
		s.mu.Lock()
		recovered := s.attempts > 0
		s.attempts = 0
		s.mu.Unlock()
		if recovered {
			s.logger.Info("recovered, restart budget reset")
		}
		return
	}
	healthProbeFailures.Inc()
	if transport.IsBadRequest(err) {
		// malformed-request class: retrying cannot help
		s.logger.Error("fatal transport error from health probe", "err", err)
		s.notify(ctx, "🚨 Fatal transport error, shutting down: "+err.Error())
		s.terminate(1)
		return
	}
	s.logger.Error("health probe failed, escalating to restart", "err", err)
	s.TriggerRestart(ctx, "health probe failed: "+err.Error())
}

// probeWithRetry retries transient probe failures with exponential backoff up
// to the attempt cap. Non-transient errors return immediately.
func (s *Supervisor) probeWithRetry(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < s.cfg.ProbeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(BackoffFor(attempt, s.cfg.ProbeBackoffBase, s.cfg.ProbeBackoffMax)):
			}
		}
		err = s.probe.Healthy(ctx)
		if err == nil {
			return nil
		}
		if !transport.IsTransient(err) {
			return err
		}
		s.logger.Warn("health probe attempt failed", "attempt", attempt+1, "err", err)
	}
	return err
}

// TriggerRestart runs one pass of the restart state machine: bump the attempt
// counter, wait out the backoff, guard against duplicate instances, spawn a
// replacement, and terminate this process after a short grace delay. Once the
// attempt budget is exceeded it transitions to Degraded instead.
func (s *Supervisor) TriggerRestart(ctx context.Context, reason string) {
	s.setState(StateRestarting)
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()
	restartAttempts.Inc()

	if attempt > s.cfg.MaxRestartAttempts {
		s.enterDegraded(ctx, reason)
		return
	}

	delay := BackoffFor(attempt, s.cfg.RestartBackoffBase, s.cfg.RestartBackoffMax)
	s.logger.Warn("restarting", "reason", reason, "attempt", attempt, "backoff", delay)
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	dup, err := s.launcher.DuplicateRunning(ctx)
	if err != nil {
		s.logger.Error("duplicate-instance check failed", "err", err)
	}
	if dup {
		// another instance is already processing; exit without spawning to
		// avoid double-processing
		s.logger.Warn("duplicate instance detected, exiting")
		s.terminate(0)
		return
	}

	if err := s.launcher.SpawnReplacement(ctx); err != nil {
		s.logger.Error("failed to spawn replacement", "err", err)
		// stay alive; the next health failure retries with a higher attempt
		s.setState(StateRunning)
		return
	}

	s.logger.Info("replacement spawned, terminating after grace delay")
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.RestartGrace):
	}
	s.terminate(0)
}

func (s *Supervisor) enterDegraded(ctx context.Context, reason string) {
	s.setState(StateDegraded)
	s.logger.Error("restart budget exhausted, entering degraded state", "reason", reason)
	s.notify(ctx, "🚨 Bot degraded, automated restarts exhausted. Manual intervention required. Reason: "+reason)
}

func (s *Supervisor) runBeacon(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.BeaconInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.State() != StateDegraded {
				continue
			}
			if s.thresholds != nil && !s.thresholds.Allow() {
				s.logger.Warn("skipping liveness ping, resource budget exceeded")
				continue
			}
			if err := s.beacon.Ping(ctx); err != nil {
				beaconPings.WithLabelValues("error").Inc()
				s.logger.Error("liveness ping failed", "err", err)
			} else {
				beaconPings.WithLabelValues("ok").Inc()
				s.logger.Info("liveness ping ok")
			}
		}
	}
}

func (s *Supervisor) runResourceAdaptation(ctx context.Context) error {
	if s.thresholds == nil {
		return nil
	}
	ticker := time.NewTicker(s.cfg.ResourceInterval)
	defer ticker.Stop()
	prev := sampleResources()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur := sampleResources()
			delta := cur.CPUSeconds - prev.CPUSeconds
			prev = cur
			s.thresholds.observe(delta, cur.HeapBytes)

			cpuLimit, cpuUsed, heapLimit, heapUsed := s.thresholds.Snapshot()
			cpuUsageGauge.Set(cpuUsed)
			cpuThresholdGauge.Set(cpuLimit)
			heapUsageGauge.Set(float64(heapUsed))
			heapThresholdGauge.Set(float64(heapLimit))
		}
	}
}

func (s *Supervisor) notify(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.NotifyAdmins(ctx, text)
	}
}

func (s *Supervisor) terminate(code int) {
	if s.exit != nil {
		s.exit(code)
		return
	}
	osExit(code)
}

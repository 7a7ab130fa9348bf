package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/palatki-dv/warden/activation"
	"github.com/palatki-dv/warden/dispatch"
	"github.com/palatki-dv/warden/engine"
	"github.com/palatki-dv/warden/keyword"
	"github.com/palatki-dv/warden/ledger"
	"github.com/palatki-dv/warden/ratelimit"
	"github.com/palatki-dv/warden/supervisor"
	"github.com/palatki-dv/warden/transport"
	"github.com/palatki-dv/warden/transport/telegram"
)

type Server struct {
	logger       *slog.Logger
	engine       *engine.Engine
	queue        *dispatch.Queue
	ledger       *ledger.Ledger
	sup          *supervisor.Supervisor
	poller       *telegram.Poller
	syncInterval time.Duration
}

func NewServer(cctx *cli.Context, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loc, err := time.LoadLocation(cctx.String("timezone"))
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	terms := defaultBlocklist
	if path := cctx.String("blocklist-file"); path != "" {
		terms, err = loadBlocklist(path)
		if err != nil {
			return nil, err
		}
	}
	matcher := keyword.NewMatcher(terms)

	tg := telegram.NewClient(cctx.String("bot-token"), logger)
	self, err := tg.GetSelfIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving bot identity: %w", err)
	}
	logger.Info("bot identity resolved", "username", self.Username, "id", self.UserID)

	db, err := ledger.SetupDatabase(cctx.String("database-url"))
	if err != nil {
		return nil, err
	}
	store, err := ledger.NewGormStore(db)
	if err != nil {
		return nil, err
	}
	led := ledger.New(store, cctx.Duration("violation-decay"), cctx.Int("max-violations"), logger)
	if err := led.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading violation ledger: %w", err)
	}

	adminIDs := cctx.Int64Slice("admin-ids")
	var attempts activation.AttemptStore = activation.NewMemAttemptStore()
	var activated activation.ActivatedStore = activation.NewMemActivatedStore()
	if redisURL := cctx.String("redis-url"); redisURL != "" {
		attempts, err = activation.NewRedisAttemptStore(redisURL)
		if err != nil {
			return nil, err
		}
		activated, err = activation.NewRedisActivatedStore(redisURL)
		if err != nil {
			return nil, err
		}
	}
	gate := activation.NewGate(cctx.String("secret-code"), 3, adminIDs, attempts, activated, logger)

	quietStart := cctx.Int("quiet-start-hour")
	quietEnd := cctx.Int("quiet-end-hour")
	quietWindow := time.Duration(((quietEnd-quietStart)+24)%24) * time.Hour
	limiter := ratelimit.New(engine.DefaultCooldowns(quietWindow), 5*time.Second)

	queue := dispatch.NewQueue(tg, logger, dispatch.Options{
		Capacity:       cctx.Int("queue-capacity"),
		SendsPerSecond: cctx.Float64("sends-per-second"),
	})

	admins := make([]transport.UserID, len(adminIDs))
	for i, id := range adminIDs {
		admins[i] = transport.UserID(id)
	}

	thresholds := supervisor.NewThresholds()
	eng := engine.New(engine.Config{
		GroupChat:      transport.ChatID(cctx.Int64("group-id")),
		OwnerChat:      transport.ChatID(cctx.Int64("owner-id")),
		AdminIDs:       admins,
		Self:           self,
		ChannelURL:     cctx.String("channel-url"),
		Location:       loc,
		QuietStartHour: quietStart,
		QuietEndHour:   quietEnd,
		WelcomeTimeout: cctx.Duration("welcome-timeout"),
		MinMessageLen:  cctx.Int("min-message-length"),
	}, defaultTexts, tg, led, matcher, limiter, queue, gate, thresholds, logger)

	probe := supervisor.ProbeFunc(func(ctx context.Context) error {
		_, err := tg.GetSelfIdentity(ctx)
		return err
	})
	sup := supervisor.New(supervisor.Config{
		HealthInterval:     cctx.Duration("health-interval"),
		BeaconInterval:     cctx.Duration("beacon-interval"),
		BeaconURL:          cctx.String("beacon-url"),
		MaxRestartAttempts: cctx.Int("max-restart-attempts"),
	}, probe, supervisor.ExecLauncher{}, eng, thresholds, logger)

	poller := telegram.NewPoller(tg, eng.ProcessEvent, logger)

	return &Server{
		logger:       logger,
		engine:       eng,
		queue:        queue,
		ledger:       led,
		sup:          sup,
		poller:       poller,
		syncInterval: cctx.Duration("ledger-sync-interval"),
	}, nil
}

// Run drives every long-lived loop until a signal arrives or one of them
// fails. The dispatch queue drains on the way out; the ledger takes a final
// sync.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.queue.Run(ctx) })
	eg.Go(func() error { return s.ledger.RunSync(ctx, s.syncInterval) })
	eg.Go(func() error { return s.ledger.RunEvict(ctx, time.Hour) })
	eg.Go(func() error { return s.sup.Run(ctx) })
	eg.Go(func() error { return s.poller.Run(ctx) })

	s.logger.Info("warden running")
	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "group-chat moderation and availability daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "bot-token",
			Usage:    "Bot API token",
			Required: true,
			EnvVars:  []string{"TELEGRAM_BOT_TOKEN"},
		},
		&cli.Int64Flag{
			Name:     "group-id",
			Usage:    "chat ID of the moderated group",
			Required: true,
			EnvVars:  []string{"WARDEN_GROUP_ID"},
		},
		&cli.Int64Flag{
			Name:    "owner-id",
			Usage:   "chat ID receiving quiet-hours forwards",
			EnvVars: []string{"WARDEN_OWNER_ID"},
		},
		&cli.Int64SliceFlag{
			Name:    "admin-ids",
			Usage:   "user IDs exempt from moderation, allowed to run admin commands",
			EnvVars: []string{"WARDEN_ADMIN_IDS"},
		},
		&cli.StringFlag{
			Name:    "secret-code",
			Usage:   "activation code for the /start flow",
			EnvVars: []string{"WARDEN_SECRET_CODE"},
		},
		&cli.StringFlag{
			Name:    "channel-url",
			Usage:   "URL for the subscribe button",
			EnvVars: []string{"WARDEN_CHANNEL_URL"},
		},
		&cli.StringFlag{
			Name:    "blocklist-file",
			Usage:   "path to a newline-separated blocklist; empty uses the built-in list",
			EnvVars: []string{"WARDEN_BLOCKLIST_FILE"},
		},
		&cli.StringFlag{
			Name:    "timezone",
			Usage:   "IANA timezone for quiet hours",
			Value:   "Europe/Moscow",
			EnvVars: []string{"WARDEN_TIMEZONE"},
		},
		&cli.IntFlag{
			Name:    "quiet-start-hour",
			Value:   22,
			EnvVars: []string{"WARDEN_QUIET_START_HOUR"},
		},
		&cli.IntFlag{
			Name:    "quiet-end-hour",
			Value:   6,
			EnvVars: []string{"WARDEN_QUIET_END_HOUR"},
		},
		&cli.DurationFlag{
			Name:    "welcome-timeout",
			Usage:   "how long welcome messages stay before deletion",
			Value:   time.Minute,
			EnvVars: []string{"WARDEN_WELCOME_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "max-violations",
			Usage:   "violations within the decay window before a ban",
			Value:   3,
			EnvVars: []string{"WARDEN_MAX_VIOLATIONS"},
		},
		&cli.DurationFlag{
			Name:    "violation-decay",
			Usage:   "window after which a user's violation count resets",
			Value:   24 * time.Hour,
			EnvVars: []string{"WARDEN_VIOLATION_DECAY"},
		},
		&cli.IntFlag{
			Name:    "min-message-length",
			Usage:   "rune floor below which messages skip moderation",
			Value:   4,
			EnvVars: []string{"WARDEN_MIN_MESSAGE_LENGTH"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/warden/warden.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis URL for activation state; empty keeps it in memory",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "beacon-url",
			Usage:   "liveness heartbeat endpoint, pinged while degraded",
			EnvVars: []string{"WARDEN_BEACON_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "queue-capacity",
			Value:   50,
			EnvVars: []string{"WARDEN_QUEUE_CAPACITY"},
		},
		&cli.Float64Flag{
			Name:    "sends-per-second",
			Usage:   "outbound send pacing; Bot API allows about 30/s",
			Value:   25,
			EnvVars: []string{"WARDEN_SENDS_PER_SECOND"},
		},
		&cli.DurationFlag{
			Name:    "health-interval",
			Value:   6 * time.Hour,
			EnvVars: []string{"WARDEN_HEALTH_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "beacon-interval",
			Value:   15 * time.Minute,
			EnvVars: []string{"WARDEN_BEACON_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "max-restart-attempts",
			Value:   5,
			EnvVars: []string{"WARDEN_MAX_RESTART_ATTEMPTS"},
		},
		&cli.DurationFlag{
			Name:    "ledger-sync-interval",
			Value:   5 * time.Minute,
			EnvVars: []string{"WARDEN_LEDGER_SYNC_INTERVAL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(cctx, logger)
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

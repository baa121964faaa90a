package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/forumguard/spamguard/antispam/governor"
	"github.com/forumguard/spamguard/antispam/spam"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "spamguard",
		Usage:   "anti-abuse policy daemon for community content",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "platform-host",
			Usage:   "method, hostname, and port of the content platform API; empty runs against an in-memory platform",
			EnvVars: []string{"SPAMGUARD_PLATFORM_HOST"},
		},
		&cli.StringFlag{
			Name:    "platform-token",
			Usage:   "bearer token for the content platform API",
			EnvVars: []string{"SPAMGUARD_PLATFORM_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for throttle caches, reputation cache and properties",
			EnvVars: []string{"SPAMGUARD_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"SPAMGUARD_LOG_LEVEL", "LOG_LEVEL"},
		},
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
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3990",
			EnvVars: []string{"SPAMGUARD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3991",
			EnvVars: []string{"SPAMGUARD_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "post-interval",
			Usage:   "default minimum seconds between two submissions by one user in one scope",
			Value:   governor.DefaultPostIntervalSeconds,
			EnvVars: []string{"SPAMGUARD_POST_INTERVAL"},
		},
		&cli.Int64Flag{
			Name:    "points-threshold",
			Usage:   "default reputation above which users bypass the throttle",
			Value:   governor.DefaultPointsThreshold,
			EnvVars: []string{"SPAMGUARD_POINTS_THRESHOLD"},
		},
		&cli.StringFlag{
			Name:    "rejection-message",
			Usage:   "default rejection message; {0} is replaced by the post interval",
			Value:   governor.DefaultRejectionMessage,
			EnvVars: []string{"SPAMGUARD_REJECTION_MESSAGE"},
		},
		&cli.StringFlag{
			Name:    "email-domain-whitelist",
			Usage:   "whitespace-separated email domain suffixes which bypass the throttle",
			EnvVars: []string{"SPAMGUARD_EMAIL_DOMAIN_WHITELIST"},
		},
		&cli.StringFlag{
			Name:    "group-whitelist",
			Usage:   "whitespace-separated group IDs whose members bypass the throttle",
			EnvVars: []string{"SPAMGUARD_GROUP_WHITELIST"},
		},
		&cli.Int64Flag{
			Name:    "reporter-min-points",
			Usage:   "initial value of the " + spam.ReporterMinPointsKey + " property",
			Value:   spam.DefaultReporterMinPoints,
			EnvVars: []string{"SPAMGUARD_REPORTER_MIN_POINTS"},
		},
		&cli.DurationFlag{
			Name:    "reputation-cache-ttl",
			Usage:   "how long reputation lookups are cached for admission checks; zero disables caching",
			Value:   5 * time.Minute,
			EnvVars: []string{"SPAMGUARD_REPUTATION_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for spammer report and resolve notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx)
		shutdownTracing := configOTEL("spamguard")
		defer shutdownTracing()

		groups, err := governor.ParseGroupWhitelist(cctx.String("group-whitelist"))
		if err != nil {
			return fmt.Errorf("parsing group whitelist: %w", err)
		}

		srv, err := NewServer(Config{
			Logger:             logger,
			PlatformHost:       cctx.String("platform-host"),
			PlatformToken:      cctx.String("platform-token"),
			RedisURL:           cctx.String("redis-url"),
			Bind:               cctx.String("bind"),
			SlackWebhookURL:    cctx.String("slack-webhook-url"),
			ReputationCacheTTL: cctx.Duration("reputation-cache-ttl"),
			ReporterMinPoints:  cctx.Int64("reporter-min-points"),
			GateDefaults: governor.Config{
				PointsThreshold:     cctx.Int64("points-threshold"),
				PostIntervalSeconds: cctx.Int("post-interval"),
				RejectionMessage:    cctx.String("rejection-message"),
				EmailDomains:        governor.ParseDomainWhitelist(cctx.String("email-domain-whitelist")),
				Groups:              groups,
			},
		})
		if err != nil {
			return err
		}

		if err := srv.Run(ctx, cctx.String("metrics-listen")); err != nil {
			return fmt.Errorf("failed to run spamguard service: %w", err)
		}
		return nil
	},
}

func configLogger(cctx *cli.Context) *slog.Logger {
	var level slog.Level
	switch cctx.String("log-level") {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

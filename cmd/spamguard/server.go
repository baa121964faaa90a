package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/forumguard/spamguard/antispam"
	"github.com/forumguard/spamguard/antispam/cachestore"
	"github.com/forumguard/spamguard/antispam/governor"
	"github.com/forumguard/spamguard/antispam/platform"
	"github.com/forumguard/spamguard/antispam/spam"
	"github.com/forumguard/spamguard/antispam/throttle"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	engine   *antispam.Engine
	props    spam.Properties
	defaults governor.Config
	echo     *echo.Echo
	httpd    *http.Server
	logger   *slog.Logger
	rdb      *redis.Client
}

type Config struct {
	Logger             *slog.Logger
	PlatformHost       string
	PlatformToken      string
	RedisURL           string
	Bind               string
	SlackWebhookURL    string
	ReputationCacheTTL time.Duration
	ReporterMinPoints  int64
	GateDefaults       governor.Config
	// Used instead of the platform client when set; mostly for tests.
	Platform antispam.Platform
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	p := config.Platform
	if p == nil && config.PlatformHost != "" {
		p = platform.NewClient(config.PlatformHost, config.PlatformToken, platform.WithLogger(logger))
	} else if p == nil {
		logger.Warn("no platform host configured, running against an empty in-memory platform")
		p = platform.NewMockPlatform()
	}

	var rdb *redis.Client
	var factory throttle.Factory
	var points cachestore.PointsCache
	var props spam.Properties
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		factory = throttle.RedisFactory(rdb)
		if config.ReputationCacheTTL > 0 {
			points = cachestore.NewRedisPointsCache(rdb, config.ReputationCacheTTL)
		}
		props = &spam.RedisProperties{Client: rdb}
	} else {
		factory = throttle.MemFactory(nil)
		if config.ReputationCacheTTL > 0 {
			points = cachestore.NewMemPointsCache(50_000, config.ReputationCacheTTL)
		}
		props = spam.NewMemProperties()
	}

	if err := initProperty(context.TODO(), props, spam.ReporterMinPointsKey, strconv.FormatInt(config.ReporterMinPoints, 10)); err != nil {
		return nil, fmt.Errorf("initializing properties: %w", err)
	}

	var notifier spam.Notifier
	if config.SlackWebhookURL != "" {
		notifier = &spam.SlackNotifier{SlackWebhookURL: config.SlackWebhookURL}
	}

	defaults := config.GateDefaults
	engine := antispam.NewEngine(antispam.EngineConfig{
		Platform:        p,
		ThrottleFactory: factory,
		PointsCache:     points,
		Properties:      props,
		Notifier:        notifier,
		GateDefaults:    &defaults,
		Logger:          logger,
	})

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		engine:   engine,
		props:    props,
		defaults: defaults,
		echo:     e,
		logger:   logger,
		rdb:      rdb,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(httpMetrics())
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)

	e.GET("/admission/scopes/:type/:id", srv.HandleGetScope)
	e.PUT("/admission/scopes/:type/:id", srv.HandleConfigureScope)
	e.DELETE("/admission/scopes/:type/:id", srv.HandleRemoveScope)
	e.POST("/admission/scopes/:type/:id/check", srv.HandleCheckAdmission)

	e.POST("/content/after-save", srv.HandleAfterSave)

	e.GET("/spam/can-report", srv.HandleCanReport)
	e.POST("/spam/report", srv.HandleReport)
	e.POST("/spam/resolve", srv.HandleResolve)
	e.GET("/spam/unapproved", srv.HandleUnapproved)

	e.PUT("/admin/properties/:key", srv.HandleSetProperty)

	return srv, nil
}

// Stores the value only if the key has never been set, so values edited at runtime survive restarts.
func initProperty(ctx context.Context, props spam.Properties, key, value string) error {
	_, ok, err := props.Get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return props.Set(ctx, key, value)
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Serves the API and metrics until an OS exit signal arrives, or either listener fails.
func (srv *Server) Run(ctx context.Context, metricsListen string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsd := &http.Server{
		Addr:    metricsListen,
		Handler: metricsMux(),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		srv.logger.Info("starting server", "bind", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server shutting down unexpectedly: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		srv.logger.Info("starting metrics endpoint", "bind", metricsListen)
		if err := metricsd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics endpoint shutting down unexpectedly: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		srv.logger.Info("shutting down", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := errors.Join(srv.httpd.Shutdown(shutdownCtx), metricsd.Shutdown(shutdownCtx))
		if srv.rdb != nil {
			err = errors.Join(err, srv.rdb.Close())
		}
		return err
	})

	err := eg.Wait()
	srv.logger.Info("graceful shutdown complete")
	return err
}

// Collectors are registered globally, so every Server in the process shares one middleware.
var httpMetrics = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("spamguard")
})

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

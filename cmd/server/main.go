package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/bot"
	"github.com/federico-84/trading-signal-worker-sub000/internal/cache"
	"github.com/federico-84/trading-signal-worker-sub000/internal/config"
	"github.com/federico-84/trading-signal-worker-sub000/internal/db"
	"github.com/federico-84/trading-signal-worker-sub000/internal/gate"
	"github.com/federico-84/trading-signal-worker-sub000/internal/handler"
	"github.com/federico-84/trading-signal-worker-sub000/internal/job"
	"github.com/federico-84/trading-signal-worker-sub000/internal/provider"
	"github.com/federico-84/trading-signal-worker-sub000/internal/repository"
	"github.com/federico-84/trading-signal-worker-sub000/internal/service"
	"github.com/federico-84/trading-signal-worker-sub000/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	runMigrationsFunc      = repository.RunMigrations
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("error shutting down tracer provider: %v", err)
			}
		}()
	}

	if db.Pool != nil {
		if err := runMigrationsFunc(ctx, db.Pool); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	barRepo := repository.NewBarRepository(db.Pool, tracer)
	signalRepo := repository.NewSignalRepository(db.Pool, tracer)
	performanceRepo := repository.NewPerformanceRepository(db.Pool, tracer)

	marketData := provider.NewMarketDataProvider(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout, tracer)
	hashGate := gate.New(cache.Client)

	outcomeService := service.NewOutcomeService(
		tracer, performanceRepo, marketData, cfg.Strategy.TrackingWindowDays, nil,
	)

	signalService := service.NewSignalService(
		tracer, cfg.Strategy, marketData, barRepo, signalRepo, performanceRepo,
		hashGate, nil, cfg.HistoryDays, nil,
	)
	if alerts := startTelegramBotFunc(cfg.TelegramBotToken, signalService, outcomeService); alerts != nil {
		signalService.SetNotifier(alerts)
	}

	signalPoller := job.NewSignalPoller(
		tracer, signalService, cfg.Watchlist,
		time.Duration(cfg.SignalPollSecs)*time.Second,
		cfg.MaxConcurrentEvals,
		time.Duration(cfg.FetchDelayMillis)*time.Millisecond,
	)
	outcomePoller := job.NewOutcomePoller(
		tracer, outcomeService,
		time.Duration(cfg.OutcomePollSecs)*time.Second,
	)
	go signalPoller.Start(ctx)
	go outcomePoller.Start(ctx)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("trading-signal-worker"))
	r.Use(cors.Default())
	handler.New(tracer, signalService, outcomeService).Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}

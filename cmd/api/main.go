package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"creditflow-backend/internal/adapter/email"
	httpadp "creditflow-backend/internal/adapter/http"
	"creditflow-backend/internal/adapter/middleware"
	"creditflow-backend/internal/adapter/repository/mysql"
	"creditflow-backend/internal/config"
	"creditflow-backend/internal/infrastructure/cache"
	"creditflow-backend/internal/infrastructure/db"
	"creditflow-backend/internal/infrastructure/logger"
	"creditflow-backend/internal/infrastructure/telemetry"
	"creditflow-backend/internal/notify"
	ucdecision "creditflow-backend/internal/usecase/decision"
	ucloan "creditflow-backend/internal/usecase/loan"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), lg)
	if err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := mysql.Migrate(gdb); err != nil {
			return err
		}
	}

	rdb, err := cache.OpenRedis(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	// notifications
	hub := notify.NewHub(cfg.SubscriberBuffer, lg)
	var transport notify.Transport = hub
	if cfg.NotifyTransport == "redis" {
		transport = notify.NewRedisTransport(rdb)
		relay := notify.NewRelay(rdb, hub, lg)
		go func() {
			if err := relay.Run(ctx); err != nil {
				lg.Error("notify relay stopped", zap.Error(err))
			}
		}()
	}
	var mailer notify.Mailer = email.NewLogMailer(lg)
	if cfg.SMTPHost != "" {
		mailer = email.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}
	notifier := notify.NewNotifier(transport, mysql.NewAuditRepository(gdb), mailer, lg)
	dispatcher := notify.NewDispatcher(cfg.NotifyWorkers, cfg.NotifyQueue, cfg.NotifyTimeout, lg)
	emitter := notify.NewEmitter(dispatcher, notifier)

	// usecases
	loanRepo := mysql.NewLoanRepository(gdb)
	tx := mysql.NewGormUoW(gdb)
	loans := ucloan.NewUsecase(loanRepo, tx, emitter)
	decisions := ucdecision.NewUsecase(loanRepo, mysql.NewDecisionRepository(gdb), tx, emitter)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.RequestID(), middleware.RequestLogger(lg), echomw.Recover(), echomw.BodyLimit("1M"))

	streams := httpadp.NewStreamHandler(hub, 25*time.Second)
	e.Server.RegisterOnShutdown(streams.Close)

	httpadp.Routes{
		Health: httpadp.NewHandler(
			httpadp.Check{Name: "database", Fn: func(ctx context.Context) error { return db.Ping(ctx, gdb) }},
			httpadp.Check{Name: "redis", Fn: func(ctx context.Context) error { return cache.Ping(ctx, rdb) }},
		),
		Loans:     httpadp.NewLoanHandler(loans),
		Decisions: httpadp.NewDecisionHandler(decisions),
		Stream:    streams,
	}.Mount(e,
		middleware.Identity([]byte(cfg.JWTSecret)),
		middleware.IdempotencyMiddleware(rdb, cfg.IdempotencyTTL(), lg),
	)

	addr := ":" + cfg.AppPort
	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	hctx, hcancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer hcancel()
	if err := e.Shutdown(hctx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	// the drain gets its own budget; in-flight notifications still go out
	nctx, ncancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer ncancel()
	if err := dispatcher.Shutdown(nctx); err != nil {
		lg.Warn("notify shutdown", zap.Error(err))
	}
	tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tcancel()
	if err := shutdownTracing(tctx); err != nil {
		lg.Warn("tracing shutdown", zap.Error(err))
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/user-authenticator/internal/config"
	"github.com/iliyamo/user-authenticator/internal/database"
	"github.com/iliyamo/user-authenticator/internal/handler"
	"github.com/iliyamo/user-authenticator/internal/logging"
	"github.com/iliyamo/user-authenticator/internal/metrics"
	"github.com/iliyamo/user-authenticator/internal/middleware"
	"github.com/iliyamo/user-authenticator/internal/repository"
	"github.com/iliyamo/user-authenticator/internal/router"
	"github.com/iliyamo/user-authenticator/internal/service"
	"github.com/iliyamo/user-authenticator/internal/utils"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine
	cfg := config.Load()

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	checks := map[string]handler.Check{"db": db.PingContext}
	var storeOpts []repository.StoreOption
	if cfg.LedgerBackend == config.LedgerRedis {
		rdb, err := config.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		storeOpts = append(storeOpts, repository.WithLedger(repository.NewRedisTokenRepo(rdb)))
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	store := repository.NewStore(db, storeOpts...)

	m := metrics.New()
	hasher := utils.NewHasher(&cfg, utils.WithHashObserver(m.ObserveHash))
	codec := utils.NewTokenCodec(&cfg, store.Ledger())
	mailer := newMailer(ctx, cfg, log)
	svc := service.NewSessionService(&cfg, store, hasher, codec, mailer, log)

	if cfg.ResetTokenInResponse {
		log.Warn("RESET_TOKEN_IN_RESPONSE is on: forgot-password responses include the reset token")
	}
	go runPruner(ctx, store.Ledger(), cfg.LedgerPruneInterval, log)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.Recover(), echomw.RequestID(), middleware.RequestLogger(log))
	router.RegisterRoutes(e, checks, m.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(svc, m, cfg.RequestTimeout))

	addr := ":" + cfg.Port
	log.Info("listening", "addr", addr, "env", cfg.Env, "ledger", cfg.LedgerBackend, "mail", cfg.Mail.Transport)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

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

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/bot"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/gateway"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/notify"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Console: cfg.LogConsole,
		File:    cfg.LogFile,
		Caller:  cfg.LogCaller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session store (Redis-backed unless REDIS_URL is empty)
	var kv session.KeyValue
	if cfg.RedisURL != "" {
		rkv, err := session.NewRedisKV(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		kv = rkv
	} else {
		obslog.L().Warn("session_store_in_memory")
		kv = session.NewMemoryKV()
	}
	store := session.NewStore(kv)
	defer func() { _ = store.Close() }()

	var recorders []game.Recorder
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		defer func() { _ = repo.Close() }()
		recorders = append(recorders, repo)
	}
	if cfg.ResultWebhookURL != "" {
		recorders = append(recorders, notify.NewClient(cfg.ResultWebhookURL, notify.WithTimeout(cfg.WebhookTimeout)))
	}

	svc := game.NewService(store, matchmaking.New(cfg.TimeControls), rules.NewEngine(), bot.New(), game.Options{
		SessionTTL:   cfg.SessionTTL,
		RoomTTL:      cfg.RoomTTL,
		RoomMinutes:  cfg.RoomMinutes,
		BotMinutes:   cfg.BotMinutes,
		BotMoveDelay: cfg.BotMoveDelay,
		Recorders:    recorders,
	})

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	srv := gateway.NewServer(svc, cat, gateway.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		TimeControls:   cfg.TimeControls,
		Health:         store.Ping,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		obslog.L().Error("http_serve_error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("http_shutdown_error", zap.Error(err))
	}
	svc.Close()
	obslog.L().Info("shutdown_complete")
}

package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hubresolver/internal/config"
	"hubresolver/internal/handlers"
	"hubresolver/internal/logger"
	"hubresolver/internal/router"
	"hubresolver/internal/service"
	"hubresolver/internal/store"
)

func main() {
	cfg := config.MustLoad()

	log := logger.NewLogger()

	db, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		log.Error("failed to open database", slog.String("error", err.Error()))

		os.Exit(1)
	}
	defer db.Close()

	st, err := store.New(db)
	if err != nil {
		log.Error("failed to init store", slog.String("error", err.Error()))

		os.Exit(1)
	}

	s := service.NewService(cfg, log, st)

	h := handlers.NewHandler(s, log)

	r := router.NewRouter(h)

	srv := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: cfg.Server.Timeout,
		// WriteTimeout must cover a full streamed resolution, so it follows
		// the platform ceiling rather than the plain request timeout.
		WriteTimeout: cfg.Resolve.PlatformCeiling,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("start server", slog.String("host", cfg.Server.Host), slog.String("port", cfg.Server.Port))

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", slog.String("error", err.Error()))

			os.Exit(1)
		}
	}()

	sig := <-sigint
	log.Info("received signal", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Info("failed to stop server", slog.String("error", err.Error()))
	}
}

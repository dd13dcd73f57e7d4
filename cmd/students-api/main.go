// Command students-api is the reference backend the students client talks
// to during development and in end-to-end runs of the console.
//
//	go run ./cmd/students-api --config=config/local.yaml
//
// or
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/students-api
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

	"github.com/aanand-mishra/students-client/internal/config"
	"github.com/aanand-mishra/students-client/internal/http/handlers/student"
	"github.com/aanand-mishra/students-client/internal/logger"
	"github.com/aanand-mishra/students-client/internal/storage"
	"github.com/aanand-mishra/students-client/internal/storage/sqlite"
)

func main() {
	cfg := config.MustLoad()

	log := logger.Setup(cfg.Env, os.Stdout)
	slog.SetDefault(log)

	log.Info("starting students-api",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	store, closeStore, err := openStorage(cfg.StoragePath)
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	log.Info("storage initialised", slog.String("path", cfg.StoragePath))

	router := http.NewServeMux()
	student.Register(router, store)

	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr,
		Handler: router,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped gracefully")
}

// openStorage opens the SQLite file at path; ":memory:" keeps students for
// the life of the process only.
func openStorage(path string) (storage.Storage, func(), error) {
	db, err := sqlite.New(path)
	if err != nil {
		return nil, nil, err
	}

	return db, func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}, nil
}

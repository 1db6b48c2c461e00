package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/serverestaa/instagram-client/internal/models"
	"github.com/serverestaa/instagram-client/pkg/config"
	"github.com/serverestaa/instagram-client/pkg/di"
	"github.com/serverestaa/instagram-client/pkg/logger"
	"github.com/serverestaa/instagram-client/pkg/router"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("starting application", "env", cfg.Server.Env)

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.Message{},
	); err != nil {
		log.LogError(err, "failed to migrate database")
		os.Exit(1)
	}

	// Covering index for the hot message-paging query
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, timestamp, id)").Error; err != nil {
		log.LogError(err, "failed to create message index", "index", "idx_messages_chat_ts")
	}

	container := di.New(db, cfg, log)

	r := router.New(container, cfg)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "server forced to shutdown")
	}

	log.Info("server exited gracefully")
}

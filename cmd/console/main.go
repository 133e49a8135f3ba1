package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/api"
	"github.com/jetsetgo/workshop-console/internal/config"
	"github.com/jetsetgo/workshop-console/internal/logging"
	"github.com/jetsetgo/workshop-console/internal/session"
)

func main() {
	fmt.Println("Workshop Console")
	fmt.Println("================")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Warn("Could not load config file, using defaults")
		cfg = config.Default()
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = "config.yaml"
		if err := config.WriteDefault(cfg.ConfigPath); err != nil {
			log.WithError(err).Warn("Could not write default config")
		}
	}

	// Logging with in-memory capture for the console's activity view
	logBuf := logging.NewBuffer(cfg.Log.BufferCap)
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, logBuf); err != nil {
		log.WithError(err).Fatal("Invalid log configuration")
	}

	log.WithFields(log.Fields{
		"config":    cfg.ConfigPath,
		"backend":   cfg.Backend.Endpoint,
		"transport": cfg.Realtime.Transport,
	}).Info("Workshop console starting")

	server := api.NewServer(cfg, logBuf, session.NewStore(cfg.Session.Path))
	if err := server.Resume(); err != nil {
		log.WithError(err).Warn("Could not resume saved session")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Error("Server error")
			os.Exit(1)
		}
	}()

	fmt.Printf("\nConsole running on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Shutdown failed")
	}
}

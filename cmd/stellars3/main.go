// Command stellars3 serves the StellarS3 storage commands over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/stellars3/internal/commands"
	"github.com/koustreak/stellars3/internal/config"
	"github.com/koustreak/stellars3/internal/logger"
	"github.com/koustreak/stellars3/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default $"+config.EnvConfigPath+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(nil).With().Err(err).Logger().Fatal("failed to load configuration")
	}

	log := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		TimeFormat: cfg.Log.TimeFormat,
		Output:     os.Stderr,
	})
	logger.SetGlobal(log)

	svc := commands.New(commands.Options{
		RequestTimeout: cfg.Storage.RequestTimeout,
		ReuseClients:   cfg.Storage.ReuseClients,
		Logger:         log,
	})
	defer svc.Close()

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	}, commands.NewDispatcher(svc), log)

	log.With().
		Dur("request_timeout", cfg.Storage.RequestTimeout).
		Bool("reuse_clients", cfg.Storage.ReuseClients).
		Logger().
		Info("storage commands ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.With().Err(err).Logger().Error("server stopped")
		os.Exit(1)
	}
	log.Info("server exited")
}

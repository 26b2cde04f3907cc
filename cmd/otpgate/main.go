package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/otpgate/internal/app"
	"github.com/dropDatabas3/otpgate/internal/config"
	httpserver "github.com/dropDatabas3/otpgate/internal/http"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"

	// registra los adapters de store vía init()
	_ "github.com/dropDatabas3/otpgate/internal/store/adapters/dal"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "ruta al config YAML (env CONFIG_PATH; vacío: defaults + env)")
		envFile    = flag.String("env-file", ".env", "archivo .env opcional")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("env file %s: %v", *envFile, err)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Logging.Level,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, lg)

	a, err := app.New(ctx, cfg)
	if err != nil {
		lg.Fatal("wiring failed", logger.Err(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn("close failed", logger.Err(err))
		}
	}()

	err = httpserver.Run(ctx, httpserver.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, a.Handler)
	if err != nil {
		lg.Error("server failed", logger.Err(err))
		return
	}
	lg.Info("bye")
}

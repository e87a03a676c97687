package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChillFish8/lust/internal/adapter/handler"
	"github.com/ChillFish8/lust/internal/infrastructure/config"
	"github.com/ChillFish8/lust/internal/infrastructure/dispatcher"
	"github.com/ChillFish8/lust/internal/infrastructure/observability"
	"github.com/ChillFish8/lust/internal/infrastructure/server"
	"github.com/ChillFish8/lust/internal/infrastructure/storage"
	"github.com/ChillFish8/lust/internal/usecase/bucket"
)

const (
	exitRuntimeError = 1
	exitConfigError  = 2
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "lust",
		Short:         "Auto-optimising image server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")

	if err := root.Execute(); err != nil {
		log.Printf("lust: %v", err)
		os.Exit(exitRuntimeError)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("lust: invalid configuration: %v", err)
		os.Exit(exitConfigError)
	}

	logger, err := observability.NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		log.Printf("lust: invalid configuration: %v", err)
		os.Exit(exitConfigError)
	}
	defer logger.Sync()

	backend, err := storage.Connect(ctx, cfg.Backend)
	if err != nil {
		return fmt.Errorf("connecting storage backend: %w", err)
	}
	if closer, ok := backend.(interface{ Close() }); ok {
		defer closer.Close()
	}

	pool := dispatcher.NewPool(0)
	defer pool.Close()

	registry, err := bucket.NewRegistry(cfg, backend, pool, logger)
	if err != nil {
		return fmt.Errorf("building buckets: %w", err)
	}

	imageHandler := handler.NewImageHandler(handler.RegistryResolver{Registry: registry})

	router := server.NewRouter(server.RouterConfig{
		ImageHandler: imageHandler,
		ServingPath:  cfg.BaseServingPath,
		Logger:       logger,
		Environment:  cfg.Server.Environment,
	})

	srv := server.NewServer(server.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      router.Engine(),
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

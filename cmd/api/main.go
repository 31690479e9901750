package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Project-Sylos/Mirage/internal/api"
	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/sdk"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path (JSON, YAML or TOML); empty uses defaults and MIRAGE_* variables")
	flag.Parse()
	if *configPath == "" && flag.NArg() > 0 {
		*configPath = flag.Arg(0)
	}

	fmt.Println("Mirage API Server")
	fmt.Println("=================")

	m, err := sdk.New(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize Mirage: %v", err)
	}

	cfg := m.Config()
	logger.Info("emulator initialized: items=%s blobs=%s ledger=%s", cfg.Items.Type, cfg.Blobs.Type, cfg.Upload.Ledger)

	server := api.NewServer(m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expired upload sessions are removed in the background
	go m.RunSweeper(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			m.Close()
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown: err=%v", err)
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}

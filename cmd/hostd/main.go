// Command hostd runs the bridge host: it fixes the channel contract,
// serves the WebSocket bridge endpoint and the HTTP surface around it.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/prismshell/prism/internal/infrastructure/config"
	"github.com/prismshell/prism/internal/infrastructure/logging"
	"github.com/prismshell/prism/internal/server"
)

func main() {
	port := flag.String("port", "", "listen port (overrides PORT)")
	manifest := flag.String("manifest", "", "channel manifest path (overrides BRIDGE_MANIFEST)")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *manifest != "" {
		cfg.Bridge.ManifestPath = *manifest
	}
	if *dev {
		cfg.Logging.Development = true
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger := logging.NewDefault()
	select {
	case sig := <-sigCh:
		logger.Info("Signal received, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			srv.Close()
			os.Exit(1)
		}
		return
	}

	if err := srv.Close(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/banana-detector/internal/app"
	"github.com/Brownie44l1/banana-detector/internal/config"
	"github.com/Brownie44l1/banana-detector/internal/handlers"
	"github.com/Brownie44l1/banana-detector/internal/server"
)

var configPath = flag.String("config", "", "path to config file (default ./config/config.yaml)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	det, session, err := app.Build(cfg, app.OpenONNX)
	if err != nil {
		logrus.Fatalf("Failed to initialize detector: %v", err)
	}
	defer session.Close()

	handler := handlers.NewHandler(det, cfg.Server.MaxUploadBytes)
	srv := server.New(cfg.Server, server.NewRouter(handler, cfg.Server))

	logrus.WithFields(logrus.Fields{
		"addr":      srv.Addr(),
		"model":     cfg.Model.Path,
		"threshold": cfg.Model.Threshold,
	}).Info("Server started")
	logrus.Info("Endpoints: GET / (page), POST / (page upload), POST /predict/image, POST /predict, GET /health")
	logrus.Infof("Upload test: curl -X POST -F \"image=@banana.jpg\" http://localhost:%s/predict/image", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if err := serve(srv, quit, 10*time.Second); err != nil {
		logrus.Errorf("Server failed: %v", err)
		session.Close()
		os.Exit(1)
	}
}

type runner interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until it fails or a signal arrives on quit, then shuts it
// down within timeout.
func serve(srv runner, quit <-chan os.Signal, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logrus.WithField("signal", sig.String()).Info("Server shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

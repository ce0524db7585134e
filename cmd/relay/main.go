package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/blob"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/cfg"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/logging"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/middleware"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/relay"
)

func main() {
	config, err := cfg.LoadRelay()
	if err != nil {
		level.Error(logging.New("relay", "info")).Log("msg", "load config", "err", err)
		os.Exit(1)
	}

	logger := logging.New("relay", config.LogLevel)
	if err := run(config, logger); err != nil {
		level.Error(logger).Log("msg", "relay stopped", "err", err)
		os.Exit(1)
	}
}

func run(config cfg.RelayConfig, logger log.Logger) error {
	storage, err := openStorage(config)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "upload storage ready", "location", storage.Location())

	handler := relay.NewHandler(storage, config.MaxUploadBytes, logger)
	httpServer := &http.Server{
		Addr: ":" + config.HTTPPort,
		Handler: middleware.Chain(handler.Routes(),
			middleware.Recover(logger),
			middleware.AccessLog(logger),
			middleware.SecurityHeaders,
			middleware.CORS(),
		),
	}

	grpcListener, err := net.Listen("tcp", ":"+config.GRPCPort)
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		level.Info(logger).Log("msg", "HTTP server listening", "port", config.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		level.Info(logger).Log("msg", "gRPC server listening", "port", config.GRPCPort)
		return grpcServer.Serve(grpcListener)
	})

	g.Go(func() error {
		<-gctx.Done()
		level.Info(logger).Log("msg", "shutdown signal received")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	return g.Wait()
}

func openStorage(config cfg.RelayConfig) (blob.ObjectStorage, error) {
	if config.Storage == "minio" {
		m := config.Minio
		return blob.NewMinio(m.Endpoint, m.AccessKey, m.SecretKey, m.UseSSL, m.Bucket)
	}
	return blob.NewDisk(config.UploadDir)
}

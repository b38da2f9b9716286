package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/triage-ai/toolhost/internal/sweep"
	"github.com/triage-ai/toolhost/internal/transport"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the host over HTTP and gRPC and run scheduled sweeps",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := mustBuildLogger(cfg.LogLevel, "stdout")
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	scheduler, err := sweep.NewScheduler(sweep.SchedulerConfig{
		Host:   a.host,
		Jobs:   cfg.Sweeps,
		Logger: logger,
	})
	if err != nil {
		a.Close(context.Background())
		return err
	}

	errCh := make(chan error, 2)

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		deps := &transport.HTTPDependencies{
			Host:    a.host,
			Metrics: a.metrics.Handler(),
			Logger:  logger,
		}
		if a.history != nil {
			deps.History = a.history
		}
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           transport.NewHTTPHandler(deps),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
		}
		go func() {
			logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var grpcSrv *transport.GRPCServer
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			shutdownHTTP(httpSrv, logger)
			a.Close(context.Background())
			return err
		}
		grpcSrv = transport.NewGRPCServer(a.host, logger)
		go func() {
			logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	scheduler.Start()
	logger.Info("toolhost started",
		zap.String("version", version),
		zap.Int("sweeps", len(scheduler.Jobs())),
		zap.Int("tools", len(a.host.Tools())),
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case serveErr = <-errCh:
		logger.Error("server failed, shutting down", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("sweeps did not finish", zap.Error(err))
	}
	shutdownHTTP(httpSrv, logger)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	a.Close(shutdownCtx)
	return serveErr
}

func shutdownHTTP(srv *http.Server, logger *zap.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

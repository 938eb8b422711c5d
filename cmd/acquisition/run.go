package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	grpcapi "adc-acquisition/internal/api/grpc"
	httpapi "adc-acquisition/internal/api/http"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

// run starts the scheduler, the worker pool and both transports, and blocks
// until ctx is cancelled or a server fails.
func (a *application) run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	cfg := a.Config
	logger := a.Logger

	infra.LogConfig(ctx, logger, cfg)
	infra.StartMetricsServer(ctx, cfg.MetricsPort, logger)
	for i, d := range a.Table.Channels() {
		logger.Printf(ctx, "channel %d: index=%d converter=%s input=%d resolution=%d reference=%s", i, d.Index, d.Converter, d.Input, d.Resolution, d.Reference)
	}

	bufferSize := cfg.BatchBuffer
	if bufferSize <= 0 {
		bufferSize = 16
	}
	batches := make(chan domain.SampleBatch, bufferSize)

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		a.Scheduler.Run(ctx, batches)
	}()
	go func() {
		defer workers.Done()
		a.WorkerPool.Run(ctx, batches)
	}()
	defer func() {
		stop()
		workers.Wait()
	}()

	httpServer := newHTTPServer(cfg, a.Service)
	httpListener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP port %s: %w", cfg.HTTPPort, err)
	}

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen on gRPC port %s: %w", cfg.GRPCPort, err)
	}
	grpcServer := newGRPCServer(a.Service)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf(ctx, "HTTP server shutdown error: %v", err)
		}

		grpcServer.GracefulStop()
	}()

	serverErrs := make(chan error, 2)
	var serverGroup sync.WaitGroup

	serverGroup.Add(1)
	go func() {
		defer serverGroup.Done()
		logger.Printf(ctx, "HTTP server listening on %s", httpListener.Addr())
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- fmt.Errorf("http server: %w", err)
		}
	}()

	serverGroup.Add(1)
	go func() {
		defer serverGroup.Done()
		logger.Printf(ctx, "gRPC server listening on %s", grpcListener.Addr())
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErrs <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serverErrs:
	}

	stop()
	serverGroup.Wait()
	return serveErr
}

func newHTTPServer(cfg infra.Config, service domain.AcquisitionService) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           httpapi.NewServer(service, httpapi.WithDefaultTimeout(cfg.SampleTimeout)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func newGRPCServer(service domain.AcquisitionService) *grpc.Server {
	server := grpc.NewServer(infra.GRPCServerOptions()...)
	grpcapi.Register(server, grpcapi.NewServer(service))
	infra.RegisterGRPCServer(server)
	return server
}

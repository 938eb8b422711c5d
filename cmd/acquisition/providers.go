package main

import (
	"context"
	"fmt"
	"io"

	"adc-acquisition/internal/application/acquisition"
	"adc-acquisition/internal/application/poller"
	"adc-acquisition/internal/application/worker"
	"adc-acquisition/internal/board"
	"adc-acquisition/internal/channeltable"
	"adc-acquisition/internal/coordinator"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/hardware"
	"adc-acquisition/internal/infra"
	"adc-acquisition/internal/infrastructure/repository/memory"
	"adc-acquisition/internal/infrastructure/repository/postgres"
	"adc-acquisition/internal/sampling"
)

func provideConfig() infra.Config {
	return infra.LoadConfig()
}

func provideServiceName() string {
	return "adc-acquisition"
}

func provideLogger(out io.Writer, serviceName string, cfg infra.Config) *infra.Logger {
	logger := infra.NewLogger(out, serviceName)
	logger.SetLevel(cfg.LogLevel)
	return logger
}

func provideDescriptionSource(cfg infra.Config) domain.DescriptionSource {
	if cfg.BoardFile == "" {
		return board.Default()
	}
	return board.FileSource{Path: cfg.BoardFile}
}

func provideTable(ctx context.Context, source domain.DescriptionSource) (*channeltable.Table, error) {
	return channeltable.Resolve(ctx, source)
}

// provideReader opens the configured driver and refuses to start unless every
// converter named by the table reports ready.
func provideReader(ctx context.Context, cfg infra.Config, table *channeltable.Table, logger *infra.Logger) (hardware.Reader, func(), error) {
	reader, err := hardware.Open(cfg.Driver, hardware.Options{
		SerialDevice:  cfg.SerialDevice,
		SerialBaud:    cfg.SerialBaud,
		SerialTimeout: cfg.SerialTimeout,
		GPIOChip:      cfg.GPIOChip,
		Clk:           cfg.GPIOClk,
		Csz:           cfg.GPIOCsz,
		Di:            cfg.GPIODi,
		Do:            cfg.GPIODo,
		Tclk:          cfg.GPIOTclk,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s driver: %w", domain.ErrConfiguration, cfg.Driver, err)
	}

	if err := checkReader(ctx, reader, table, logger); err != nil {
		_ = reader.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := reader.Close(); err != nil {
			logger.Printf(ctx, "failed to close hardware reader: %v", err)
		}
	}
	return reader, cleanup, nil
}

// checkReader refuses to start when the driver cannot convert a declared
// channel or a converter does not answer its readiness check.
func checkReader(ctx context.Context, reader hardware.Reader, table *channeltable.Table, logger *infra.Logger) error {
	if checker, ok := reader.(hardware.ChannelChecker); ok {
		if err := checker.CheckChannels(table.Channels()); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
	}

	for _, converter := range table.Converters() {
		if err := reader.Ready(ctx, converter); err != nil {
			return fmt.Errorf("%w: converter %s not ready: %w", domain.ErrConfiguration, converter, err)
		}
		logger.Printf(ctx, "converter %s ready", converter)
	}
	return nil
}

func provideEngine(cfg infra.Config, table *channeltable.Table, reader hardware.Reader, logger *infra.Logger) *sampling.Engine {
	return sampling.NewEngine(table, reader, sampling.Config{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		Precision:   cfg.Precision,
	}, logger)
}

func provideCoordinator(ctx context.Context, engine *sampling.Engine, logger *infra.Logger) (*coordinator.Coordinator, func()) {
	coord := coordinator.New(engine, logger)
	cleanup := func() {
		if err := coord.Close(); err != nil {
			logger.Printf(ctx, "failed to close coordinator: %v", err)
		}
	}
	return coord, cleanup
}

// provideRepository keeps results in PostgreSQL when a DSN is configured and
// in memory otherwise.
func provideRepository(ctx context.Context, cfg infra.Config, logger *infra.Logger) (domain.SampleRepository, func(), error) {
	if cfg.DatabaseDSN == "" {
		logger.Println(ctx, "database not configured, keeping results in memory")
		return memory.New(cfg.StoreLimit), func() {}, nil
	}

	repo, err := postgres.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN,
		postgres.WithBatchSize(cfg.DatabaseBatchSize),
		postgres.WithFlushInterval(cfg.DatabaseBatchTimeout),
		postgres.WithQueueSize(cfg.DatabaseBatchBuffer),
		postgres.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise result store: %w", err)
	}
	logger.Printf(ctx, "result store connected using %s driver", infra.EmptyFallback(cfg.DatabaseDriver, "postgres"))

	cleanup := func() {
		if err := repo.Close(); err != nil {
			logger.Printf(ctx, "failed to close repository: %v", err)
		}
	}
	return repo, cleanup, nil
}

func provideAcquisitionService(table *channeltable.Table, coord *coordinator.Coordinator, repo domain.SampleRepository, logger *infra.Logger) *acquisition.Service {
	return acquisition.New(table, coord, repo, logger)
}

func provideService(service *acquisition.Service) domain.AcquisitionService {
	return service
}

func provideScheduler(cfg infra.Config, table *channeltable.Table, logger *infra.Logger) domain.SampleScheduler {
	return poller.New(poller.Config{
		Interval: cfg.PollInterval,
		Channels: poller.AllChannels(table.Len()),
	}, logger)
}

func provideWorkerPool(cfg infra.Config, service *acquisition.Service, logger *infra.Logger) domain.WorkerPool {
	return worker.New(cfg.WorkerCount, service, logger)
}

//go:build !wireinject

package main

import (
	"context"
	"io"

	"adc-acquisition/internal/channeltable"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

func initApplication(ctx context.Context, out io.Writer) (*application, func(), error) {
	cfg, logger := setupBase(out)

	table, err := provideTable(ctx, provideDescriptionSource(cfg))
	if err != nil {
		return nil, nil, err
	}

	reader, readerCleanup, err := provideReader(ctx, cfg, table, logger)
	if err != nil {
		return nil, nil, err
	}

	repo, repoCleanup, err := setupRepository(ctx, cfg, logger)
	if err != nil {
		readerCleanup()
		return nil, nil, err
	}

	engine := provideEngine(cfg, table, reader, logger)
	coord, coordCleanup := provideCoordinator(ctx, engine, logger)
	svc := provideAcquisitionService(table, coord, repo, logger)

	scheduler := setupScheduler(cfg, table, logger)
	pool := provideWorkerPool(cfg, svc, logger)

	app := newApplication(cfg, logger, table, provideService(svc), scheduler, pool)
	return assembleApplication(app, func() {
		coordCleanup()
		repoCleanup()
		readerCleanup()
	})
}

func setupBase(out io.Writer) (infra.Config, *infra.Logger) {
	cfg := provideConfig()
	svcName := provideServiceName()
	log := provideLogger(out, svcName, cfg)
	return cfg, log
}

func setupRepository(ctx context.Context, cfg infra.Config, logger *infra.Logger) (domain.SampleRepository, func(), error) {
	return provideRepository(ctx, cfg, logger)
}

func setupScheduler(cfg infra.Config, table *channeltable.Table, logger *infra.Logger) domain.SampleScheduler {
	return provideScheduler(cfg, table, logger)
}

package main

import (
	"adc-acquisition/internal/channeltable"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

type application struct {
	Config     infra.Config
	Logger     *infra.Logger
	Table      *channeltable.Table
	Service    domain.AcquisitionService
	Scheduler  domain.SampleScheduler
	WorkerPool domain.WorkerPool
}

func newApplication(cfg infra.Config, logger *infra.Logger, table *channeltable.Table, service domain.AcquisitionService, scheduler domain.SampleScheduler, workerPool domain.WorkerPool) *application {
	return &application{
		Config:     cfg,
		Logger:     logger,
		Table:      table,
		Service:    service,
		Scheduler:  scheduler,
		WorkerPool: workerPool,
	}
}

func assembleApplication(app *application, cleanup func()) (*application, func(), error) {
	if cleanup == nil {
		cleanup = func() {}
	}
	return app, cleanup, nil
}

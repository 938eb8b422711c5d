//go:build wireinject

package main

import (
	"context"
	"io"

	"github.com/google/wire"
)

func initApplication(ctx context.Context, out io.Writer) (*application, func(), error) {
	wire.Build(
		provideConfig,
		provideServiceName,
		provideLogger,
		provideDescriptionSource,
		provideTable,
		provideReader,
		provideEngine,
		provideCoordinator,
		provideRepository,
		provideAcquisitionService,
		provideService,
		provideScheduler,
		provideWorkerPool,
		newApplication,
		assembleApplication,
	)
	return nil, nil, nil
}

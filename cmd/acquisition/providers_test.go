package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adc-acquisition/internal/board"
	"adc-acquisition/internal/channeltable"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/hardware"
	"adc-acquisition/internal/infra"
	"adc-acquisition/internal/infrastructure/repository/memory"
)

func testLogger() *infra.Logger {
	return infra.NewLogger(io.Discard, "test")
}

func TestProvideDescriptionSource(t *testing.T) {
	assert.IsType(t, board.StaticSource{}, provideDescriptionSource(infra.Config{}))

	path := filepath.Join(t.TempDir(), "board.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"channels":[{"index":0,"reference_voltage":3.3,"resolution":12}]}`), 0o600))

	source := provideDescriptionSource(infra.Config{BoardFile: path})
	descriptors, err := source.Describe(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, uint8(12), descriptors[0].Resolution)
}

func staticTable(t *testing.T) *channeltable.Table {
	t.Helper()
	descriptors, err := board.Default().Describe(context.Background())
	require.NoError(t, err)
	table, err := channeltable.New(descriptors)
	require.NoError(t, err)
	return table
}

func TestProvideReaderChecksEveryConverter(t *testing.T) {
	ctx := context.Background()
	table := staticTable(t)

	reader, cleanup, err := provideReader(ctx, infra.Config{Driver: "sim"}, table, testLogger())
	require.NoError(t, err)
	require.NotNil(t, reader)
	cleanup()

	_, _, err = provideReader(ctx, infra.Config{Driver: "abacus"}, table, testLogger())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCheckReaderRejectsConverterThatIsNotReady(t *testing.T) {
	ctx := context.Background()
	table := staticTable(t)
	sim := hardware.NewSimulator()
	require.NoError(t, checkReader(ctx, sim, table, testLogger()))

	powerDown := errors.New("powered down")
	sim.SetReady(table.Converters()[0], powerDown)
	err := checkReader(ctx, sim, table, testLogger())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, err, powerDown)
}

type narrowReader struct {
	*hardware.Simulator
	err error
}

func (r narrowReader) CheckChannels([]domain.ChannelDescriptor) error { return r.err }

func TestCheckReaderRejectsUnsupportedChannels(t *testing.T) {
	unsupported := errors.New("differential inputs are not supported")
	reader := narrowReader{Simulator: hardware.NewSimulator(), err: unsupported}

	err := checkReader(context.Background(), reader, staticTable(t), testLogger())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, err, unsupported)
}

func TestProvideRepositoryFallsBackToMemory(t *testing.T) {
	repo, cleanup, err := provideRepository(context.Background(), infra.Config{StoreLimit: 8}, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.Repository{}, repo)
}

func TestProvideRepositoryRejectsUnknownDriver(t *testing.T) {
	_, _, err := provideRepository(context.Background(), infra.Config{DatabaseDSN: "postgres://localhost/adc", DatabaseDriver: "sqlite"}, testLogger())
	assert.Error(t, err)
}

func TestAssembledServiceSamplesSimulator(t *testing.T) {
	ctx := context.Background()
	cfg := infra.Config{Driver: "sim", MaxAttempts: 3, Precision: 4, StoreLimit: 16}
	logger := testLogger()

	descriptors, err := board.Default().Describe(ctx)
	require.NoError(t, err)
	table, err := channeltable.New(descriptors)
	require.NoError(t, err)

	reader, readerCleanup, err := provideReader(ctx, cfg, table, logger)
	require.NoError(t, err)
	defer readerCleanup()

	repo, repoCleanup, err := provideRepository(ctx, cfg, logger)
	require.NoError(t, err)
	defer repoCleanup()

	coord, coordCleanup := provideCoordinator(ctx, provideEngine(cfg, table, reader, logger), logger)
	defer coordCleanup()

	service := provideService(provideAcquisitionService(table, coord, repo, logger))
	assert.Equal(t, 2, service.ChannelCount())

	result, err := service.Sample(ctx, 1, time.Time{})
	require.NoError(t, err)
	lo, hi := descriptors[1].Bounds()
	assert.GreaterOrEqual(t, result.Value, lo)
	assert.LessOrEqual(t, result.Value, hi)

	_, err = service.Sample(ctx, 2, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
}

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infrastructure/repository/postgres"
)

func TestRepositoryAgainstPostgres(t *testing.T) {
	ctx := context.Background()

	container, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("adc"),
		postgrescontainer.WithUsername("postgres"),
		postgrescontainer.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			repo, err := postgres.Open(ctx, driver, dsn, postgres.WithBatchSize(1), postgres.WithFlushInterval(20*time.Millisecond))
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, repo.Close()) })

			base := time.Now().UTC().Truncate(time.Millisecond)
			first := domain.SampleResult{RequestID: uuid.NewString(), Channel: 0, Converter: "adc0", Raw: 2048, Value: 1.65, Attempts: 1, Timestamp: base}
			second := domain.SampleResult{RequestID: uuid.NewString(), Channel: 0, Converter: "adc0", Raw: 4095, Value: 3.2992, Attempts: 2, Timestamp: base.Add(time.Second)}

			require.NoError(t, repo.Add(ctx, first))
			require.NoError(t, repo.Add(ctx, second))

			require.Eventually(t, func() bool {
				latest, err := repo.Latest(ctx, 0)
				return err == nil && latest.RequestID == second.RequestID
			}, 5*time.Second, 50*time.Millisecond)

			history, err := repo.History(ctx, 0, base.Add(-time.Second), base.Add(2*time.Second))
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(history), 2)
			last := history[len(history)-1]
			assert.Equal(t, second.RequestID, last.RequestID)
			assert.Equal(t, uint32(4095), last.Raw)
			assert.True(t, second.Timestamp.Equal(last.Timestamp))

			_, err = repo.Latest(ctx, 7)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

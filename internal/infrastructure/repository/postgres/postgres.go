// Package postgres persists the result stream in PostgreSQL. Writes are queued
// and flushed in multi-row inserts by a background goroutine.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"go.uber.org/multierr"

	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

var ErrRepositoryClosed = errors.New("postgres repository is closed")

const (
	defaultBatchSize     = 32
	defaultFlushInterval = 250 * time.Millisecond
	defaultQueueSize     = defaultBatchSize * 4
)

const schema = `
CREATE TABLE IF NOT EXISTS sample_results (
    request_id  TEXT PRIMARY KEY,
    channel     INTEGER NOT NULL,
    idx         INTEGER NOT NULL,
    converter   TEXT NOT NULL,
    raw         BIGINT NOT NULL,
    value       DOUBLE PRECISION NOT NULL,
    attempts    INTEGER NOT NULL,
    ts          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sample_results_channel_ts_idx ON sample_results (channel, ts DESC);`

const selectColumns = `SELECT request_id, channel, idx, converter, raw, value, attempts, ts FROM sample_results`

type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

type tickerFactory func(time.Duration) *time.Ticker

type Repository struct {
	db            *sql.DB
	logger        Logger
	batchSize     int
	flushInterval time.Duration
	queue         chan domain.SampleResult
	done          chan struct{}
	dbCloseOnce   sync.Once
	mu            sync.Mutex
	lastErr       error
	sendMu        sync.RWMutex
	closing       bool
	makeTicker    tickerFactory
}

type Option func(*options)

type options struct {
	batchSize     int
	flushInterval time.Duration
	queueSize     int
	logger        Logger
	tickerFn      tickerFactory
}

func WithBatchSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

func WithFlushInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.flushInterval = interval
		}
	}
}

func WithQueueSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.queueSize = size
		}
	}
}

func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Open connects with the named database/sql driver ("postgres" for lib/pq,
// "pgx" for pgx), creates the schema and returns a repository that owns the
// connection pool.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is empty")
	}
	switch driver {
	case "", "postgres":
		driver = "postgres"
	case "pgx":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := EnsureSchema(ctx, db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}

	repo, err := NewRepository(db, opts...)
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return repo, nil
}

// EnsureSchema creates the results table and its index when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres ensure schema: %w", err)
	}
	return nil
}

func NewRepository(db *sql.DB, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, errors.New("postgres repository requires db instance")
	}

	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	o := options{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		queueSize:     defaultQueueSize,
		tickerFn:      time.NewTicker,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueSize < o.batchSize {
		o.queueSize = o.batchSize
	}

	repo := &Repository{
		db:            db,
		logger:        o.logger,
		batchSize:     o.batchSize,
		flushInterval: o.flushInterval,
		queue:         make(chan domain.SampleResult, o.queueSize),
		done:          make(chan struct{}),
		makeTicker:    o.tickerFn,
	}

	go repo.run()

	return repo, nil
}

// Add queues the result for the next batch. Flush failures are logged and
// counted; they do not reject later results.
func (r *Repository) Add(ctx context.Context, result domain.SampleResult) error {
	if result.RequestID == "" {
		return errors.New("postgres repository: request id is required")
	}

	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.closing {
		return ErrRepositoryClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.queue <- result:
	}
	return nil
}

func (r *Repository) Latest(ctx context.Context, channel int) (domain.SampleResult, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE channel = $1 ORDER BY ts DESC LIMIT 1`, channel)

	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SampleResult{}, domain.ErrNotFound
		}
		return domain.SampleResult{}, fmt.Errorf("postgres latest: %w", err)
	}
	return result, nil
}

func (r *Repository) History(ctx context.Context, channel int, from, to time.Time) ([]domain.SampleResult, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE channel = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts`, channel, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres history: %w", err)
	}
	defer rows.Close()

	var results []domain.SampleResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres history: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres history: %w", err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (domain.SampleResult, error) {
	var (
		result domain.SampleResult
		raw    int64
	)
	if err := s.Scan(&result.RequestID, &result.Channel, &result.Index, &result.Converter, &raw, &result.Value, &result.Attempts, &result.Timestamp); err != nil {
		return domain.SampleResult{}, err
	}
	result.Raw = uint32(raw)
	return result, nil
}

// Close flushes queued results and closes the connection pool. It reports the
// error of the last flush if that flush failed.
func (r *Repository) Close() error {
	r.sendMu.Lock()
	if !r.closing {
		r.closing = true
		close(r.queue)
	}
	r.sendMu.Unlock()
	<-r.done

	var err error
	r.dbCloseOnce.Do(func() {
		err = multierr.Combine(r.getLastError(), r.db.Close())
	})
	return err
}

func (r *Repository) run() {
	defer close(r.done)

	buffer := make([]domain.SampleResult, 0, r.batchSize)

	var tickerCh <-chan time.Time
	if r.flushInterval > 0 {
		ticker := r.makeTicker(r.flushInterval)
		tickerCh = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case result, ok := <-r.queue:
			if !ok {
				r.flushAndReset(&buffer)
				return
			}
			buffer = append(buffer, result)
			if len(buffer) >= r.batchSize {
				r.flushAndReset(&buffer)
			}
		case <-tickerCh:
			r.flushAndReset(&buffer)
		}
	}
}

func (r *Repository) flushAndReset(buffer *[]domain.SampleResult) {
	if len(*buffer) == 0 {
		return
	}

	start := time.Now()
	err := r.flush(*buffer)
	infra.RecordDBBatchFlush(time.Since(start), len(*buffer))
	if err != nil {
		infra.IncDBWriteErrors()
		r.log(context.Background(), "postgres repository: flush of %d result(s) failed: %v", len(*buffer), err)
	}
	r.setLastError(err)
	*buffer = (*buffer)[:0]
}

func (r *Repository) flush(batch []domain.SampleResult) error {
	query, args := buildInsert(batch)
	_, err := r.db.ExecContext(context.Background(), query, args...)
	return err
}

func buildInsert(batch []domain.SampleResult) (string, []any) {
	const columns = 8
	var sb strings.Builder
	sb.WriteString("INSERT INTO sample_results (request_id, channel, idx, converter, raw, value, attempts, ts) VALUES ")

	args := make([]any, 0, len(batch)*columns)
	for i, result := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i*columns + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)", base, base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, result.RequestID, result.Channel, result.Index, result.Converter, int64(result.Raw), result.Value, result.Attempts, result.Timestamp.UTC())
	}

	sb.WriteString(" ON CONFLICT (request_id) DO NOTHING")

	return sb.String(), args
}

func (r *Repository) getLastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// setLastError records the outcome of the latest flush; a successful flush clears it.
func (r *Repository) setLastError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
}

func (r *Repository) log(ctx context.Context, format string, v ...any) {
	if r.logger != nil {
		r.logger.Printf(ctx, format, v...)
	}
}

var _ domain.SampleRepository = (*Repository)(nil)

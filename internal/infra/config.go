package infra

import (
	"context"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
)

const (
	envPrefix         = "ADC_"
	defaultConfigFile = "adc-acquisition.json"
)

type Config struct {
	HTTPPort    string
	GRPCPort    string
	MetricsPort string
	LogLevel    string

	BoardFile string
	Driver    string

	SerialDevice  string
	SerialBaud    int
	SerialTimeout time.Duration

	GPIOChip string
	GPIOClk  int
	GPIOCsz  int
	GPIODi   int
	GPIODo   int
	GPIOTclk time.Duration

	MaxAttempts int
	Backoff     time.Duration
	Precision   int

	// SampleTimeout bounds transport requests that carry no timeout of their own.
	SampleTimeout time.Duration

	PollInterval time.Duration
	WorkerCount  int
	BatchBuffer  int

	StoreLimit int

	DatabaseDriver       string
	DatabaseDSN          string
	DatabaseBatchSize    int
	DatabaseBatchTimeout time.Duration
	DatabaseBatchBuffer  int
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"http":    map[string]interface{}{"port": "8080"},
		"grpc":    map[string]interface{}{"port": "50051"},
		"metrics": map[string]interface{}{"port": "2112"},
		"log":     map[string]interface{}{"level": "info"},
		"board":   map[string]interface{}{"file": ""},
		"driver":  "sim",
		"serial": map[string]interface{}{
			"device":  "/dev/ttyACM0",
			"baud":    115200,
			"timeout": "50ms",
		},
		"gpio": map[string]interface{}{
			"chip": "gpiochip0",
			"clk":  16,
			"csz":  26,
			"di":   20,
			"do":   21,
			"tclk": "500ns",
		},
		"sample": map[string]interface{}{
			"attempts":  3,
			"backoff":   "1ms",
			"precision": 4,
			"timeout":   "1s",
		},
		"poll": map[string]interface{}{
			"interval": "1s",
			"workers":  2,
			"buffer":   16,
		},
		"store": map[string]interface{}{"limit": 1024},
		"db": map[string]interface{}{
			"driver": "postgres",
			"dsn":    "",
			"batch": map[string]interface{}{
				"size":    32,
				"timeout": "250ms",
				"buffer":  128,
			},
		},
		"config": map[string]interface{}{"file": defaultConfigFile},
	}
}

// LoadConfig layers defaults, an optional JSON config file, ADC_ prefixed
// environment variables and command line flags, lowest priority first.
func LoadConfig() Config {
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
		{Short: 'b', Name: "board-file"},
		{Short: 'd', Name: "driver"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags)),
		env.New(env.WithEnvPrefix(envPrefix)),
		config.WithDefault(dict.New(dict.WithMap(defaults()))))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", defaultConfigFile, json.NewDecoder()))
	return fromConfig(cfg.GetConfig("", config.WithMust))
}

// LoadConfigFromEnv skips flags and the config file.
func LoadConfigFromEnv() Config {
	cfg := config.New(
		env.New(env.WithEnvPrefix(envPrefix)),
		config.WithDefault(dict.New(dict.WithMap(defaults()))))
	return fromConfig(cfg.GetConfig("", config.WithMust))
}

func fromConfig(cfg *config.Config) Config {
	return Config{
		HTTPPort:    cfg.MustGet("http.port").String(),
		GRPCPort:    cfg.MustGet("grpc.port").String(),
		MetricsPort: cfg.MustGet("metrics.port").String(),
		LogLevel:    cfg.MustGet("log.level").String(),

		BoardFile: cfg.MustGet("board.file").String(),
		Driver:    cfg.MustGet("driver").String(),

		SerialDevice:  cfg.MustGet("serial.device").String(),
		SerialBaud:    cfg.MustGet("serial.baud").Int(),
		SerialTimeout: cfg.MustGet("serial.timeout").Duration(),

		GPIOChip: cfg.MustGet("gpio.chip").String(),
		GPIOClk:  cfg.MustGet("gpio.clk").Int(),
		GPIOCsz:  cfg.MustGet("gpio.csz").Int(),
		GPIODi:   cfg.MustGet("gpio.di").Int(),
		GPIODo:   cfg.MustGet("gpio.do").Int(),
		GPIOTclk: cfg.MustGet("gpio.tclk").Duration(),

		MaxAttempts:   cfg.MustGet("sample.attempts").Int(),
		Backoff:       cfg.MustGet("sample.backoff").Duration(),
		Precision:     cfg.MustGet("sample.precision").Int(),
		SampleTimeout: cfg.MustGet("sample.timeout").Duration(),

		PollInterval: cfg.MustGet("poll.interval").Duration(),
		WorkerCount:  cfg.MustGet("poll.workers").Int(),
		BatchBuffer:  cfg.MustGet("poll.buffer").Int(),

		StoreLimit: cfg.MustGet("store.limit").Int(),

		DatabaseDriver:       cfg.MustGet("db.driver").String(),
		DatabaseDSN:          cfg.MustGet("db.dsn").String(),
		DatabaseBatchSize:    cfg.MustGet("db.batch.size").Int(),
		DatabaseBatchTimeout: cfg.MustGet("db.batch.timeout").Duration(),
		DatabaseBatchBuffer:  cfg.MustGet("db.batch.buffer").Int(),
	}
}

func LogConfig(ctx context.Context, logger *Logger, cfg Config) {
	logger.Printf(ctx, "HTTP_PORT=%s", cfg.HTTPPort)
	logger.Printf(ctx, "GRPC_PORT=%s", cfg.GRPCPort)
	logger.Printf(ctx, "METRICS_PORT=%s", EmptyFallback(cfg.MetricsPort, "(disabled)"))
	logger.Printf(ctx, "LOG_LEVEL=%s", cfg.LogLevel)
	logger.Printf(ctx, "BOARD_FILE=%s", EmptyFallback(cfg.BoardFile, "(built-in board)"))
	logger.Printf(ctx, "DRIVER=%s", cfg.Driver)
	switch cfg.Driver {
	case "serial":
		logger.Printf(ctx, "SERIAL_DEVICE=%s SERIAL_BAUD=%d SERIAL_TIMEOUT=%s", cfg.SerialDevice, cfg.SerialBaud, cfg.SerialTimeout)
	case "mcp3008", "mcp3208":
		logger.Printf(ctx, "GPIO_CHIP=%s CLK=%d CSZ=%d DI=%d DO=%d TCLK=%s", cfg.GPIOChip, cfg.GPIOClk, cfg.GPIOCsz, cfg.GPIODi, cfg.GPIODo, cfg.GPIOTclk)
	}
	logger.Printf(ctx, "SAMPLE_ATTEMPTS=%d", cfg.MaxAttempts)
	logger.Printf(ctx, "SAMPLE_BACKOFF=%s", cfg.Backoff)
	logger.Printf(ctx, "SAMPLE_PRECISION=%d", cfg.Precision)
	logger.Printf(ctx, "SAMPLE_TIMEOUT=%s", cfg.SampleTimeout)
	logger.Printf(ctx, "POLL_INTERVAL=%s", cfg.PollInterval)
	logger.Printf(ctx, "POLL_WORKERS=%d", cfg.WorkerCount)
	logger.Printf(ctx, "POLL_BUFFER=%d", cfg.BatchBuffer)
	if cfg.DatabaseDSN != "" {
		logger.Printf(ctx, "DB_DRIVER=%s DB_DSN set (length %d)", cfg.DatabaseDriver, len(cfg.DatabaseDSN))
	} else {
		logger.Printf(ctx, "DB_DSN not provided, using in-memory result store (limit %d per channel)", cfg.StoreLimit)
	}
	logger.Printf(ctx, "DB_BATCH_SIZE=%d", cfg.DatabaseBatchSize)
	logger.Printf(ctx, "DB_BATCH_TIMEOUT=%s", cfg.DatabaseBatchTimeout)
	logger.Printf(ctx, "DB_BATCH_BUFFER=%d", cfg.DatabaseBatchBuffer)
}

func EmptyFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

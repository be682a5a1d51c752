package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// MaxAuctionDurationLimit the API accepts durations up to one year.
const MaxAuctionDurationLimit = 365 * 24 * time.Hour

var (
	ErrDatabaseDSNNotSet  = errors.New("database DSN is not set")
	ErrUnknownStorage     = errors.New("unknown storage")
	ErrJWTSecretNotSet    = errors.New("jwt secret is not set")
	ErrInvalidBidPolicy   = errors.New("invalid bid policy")
	ErrInvalidSchedConfig = errors.New("invalid scheduler config")
)

type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_URI"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	Storage       string `env:"STORAGE"        envDefault:"postgres"`

	JWTSecret     string `env:"JWT_SECRET"`
	InternalToken string `env:"INTERNAL_API_TOKEN"`

	SchedulerInterval  time.Duration `env:"SCHEDULER_INTERVAL"   envDefault:"5s"`
	SchedulerBatchSize uint          `env:"SCHEDULER_BATCH_SIZE" envDefault:"50"`
	SchedulerWorkers   uint          `env:"SCHEDULER_WORKERS"    envDefault:"4"`
	ClosingLease       time.Duration `env:"CLOSING_LEASE"        envDefault:"1m"`

	MinAuctionDuration     time.Duration   `env:"MIN_AUCTION_DURATION"      envDefault:"1h"`
	MaxAuctionDuration     time.Duration   `env:"MAX_AUCTION_DURATION"      envDefault:"168h"`
	MinBidIncrement        int64           `env:"MIN_BID_INCREMENT"         envDefault:"1"`
	MinBidIncrementPercent decimal.Decimal `env:"MIN_BID_INCREMENT_PERCENT" envDefault:"0"`

	PushURL     string        `env:"PUSH_URL"`
	PushTimeout time.Duration `env:"PUSH_TIMEOUT" envDefault:"3s"`
}

type flagsConfig struct {
	RunAddress    string
	DatabaseDSN   string
	MigrationsDir string
	Storage       string
}

// LoadConfig reads the optional .env file, then the environment, then the command line flags.
// Non empty environment values win over flags.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:], ".env")
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func loadConfig(args []string, dotenvPath string) (*Config, error) {
	// .env is optional, it never overrides variables that are already set.
	if loadErr := godotenv.Load(dotenvPath); loadErr != nil && !errors.Is(loadErr, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %s", dotenvPath, loadErr.Error())
	}

	var envConfig Config
	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %s", envParseErr.Error())
	}

	flags, flagsErr := parseFlags(args)
	if flagsErr != nil {
		return nil, flagsErr
	}

	conf := mergeConfig(&envConfig, flags)
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func parseFlags(args []string) (*flagsConfig, error) {
	var fc flagsConfig
	fs := flag.NewFlagSet("zenauction", flag.ContinueOnError)
	fs.StringVar(&fc.RunAddress, "a", "localhost:8080", "Run address in format host:port")
	fs.StringVar(&fc.DatabaseDSN, "d", "", "Database DSN")
	fs.StringVar(&fc.MigrationsDir, "m", "internal/db/migrations", "Database migrations directory")
	fs.StringVar(&fc.Storage, "s", "", "Storage: postgres or memory")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return &fc, nil
}

func mergeConfig(envConfig *Config, flags *flagsConfig) *Config {
	conf := *envConfig
	conf.RunAddress = defaultIfBlank(envConfig.RunAddress, flags.RunAddress)
	conf.DatabaseDSN = defaultIfBlank(envConfig.DatabaseDSN, flags.DatabaseDSN)
	conf.MigrationsDir = defaultIfBlank(envConfig.MigrationsDir, flags.MigrationsDir)
	if _, set := os.LookupEnv("STORAGE"); !set && flags.Storage != "" {
		conf.Storage = flags.Storage
	}
	return &conf
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseDSN == "" {
			return ErrDatabaseDSNNotSet
		}
	case StorageMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage)
	}
	if c.JWTSecret == "" {
		return ErrJWTSecretNotSet
	}
	if c.MinAuctionDuration <= 0 || c.MaxAuctionDuration < c.MinAuctionDuration ||
		c.MaxAuctionDuration > MaxAuctionDurationLimit {
		return fmt.Errorf("%w: duration bounds %s..%s", ErrInvalidBidPolicy, c.MinAuctionDuration, c.MaxAuctionDuration)
	}
	if c.MinBidIncrement < 1 || c.MinBidIncrementPercent.IsNegative() {
		return fmt.Errorf("%w: increment %d, percent %s", ErrInvalidBidPolicy, c.MinBidIncrement, c.MinBidIncrementPercent)
	}
	if c.SchedulerInterval <= 0 || c.SchedulerBatchSize == 0 || c.SchedulerWorkers == 0 || c.ClosingLease <= 0 {
		return ErrInvalidSchedConfig
	}
	return nil
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

package config

import (
	"flag"
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/ledger"
	"github.com/kelseyhightower/envconfig"
)

// Config is filled from command line flags first; environment variables,
// when set, override them.
type Config struct {
	RunAddress  string        `envconfig:"RUN_ADDRESS"`
	DatabaseURI string        `envconfig:"DATABASE_URI"`
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	TokenTTL    time.Duration `envconfig:"TOKEN_TTL"`

	AdminUsername string `envconfig:"ADMIN_USERNAME"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminPoints   int64  `envconfig:"ADMIN_POINTS"`

	KafkaBrokers    string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopic      string        `envconfig:"KAFKA_TOPIC"`
	EventWorkers    int           `envconfig:"EVENT_WORKERS"`
	EventQueueSize  int           `envconfig:"EVENT_QUEUE_SIZE"`
	NodeID          int64         `envconfig:"NODE_ID"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`

	RegisterBonus         int64 `envconfig:"REGISTER_BONUS"`
	PointsPerCurrencyUnit int64 `envconfig:"POINTS_PER_CURRENCY_UNIT"`
	RefundOnCancel        bool  `envconfig:"REFUND_ON_CANCEL"`
}

func NewConfig(args []string) (*Config, error) {
	policy := ledger.DefaultPolicy()

	cfg := &Config{}
	fs := flag.NewFlagSet("shopledger", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8080", "HTTP server address")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "DB connection string")
	fs.StringVar(&cfg.JWTSecret, "k", "cpmwl_secret_key", "JWT signing secret")
	fs.DurationVar(&cfg.TokenTTL, "ttl", 7*24*time.Hour, "token lifetime")
	fs.StringVar(&cfg.AdminUsername, "admin", "CPMWLADMIN", "administrator username")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "WLCY1111", "administrator password used on first start")
	fs.Int64Var(&cfg.AdminPoints, "admin-points", 9999, "administrator starting points")
	fs.StringVar(&cfg.KafkaBrokers, "kafka", "", "comma separated Kafka brokers, empty disables publishing")
	fs.StringVar(&cfg.KafkaTopic, "topic", "ledger-events", "Kafka topic for ledger events")
	fs.IntVar(&cfg.EventWorkers, "workers", 5, "event publishing workers")
	fs.IntVar(&cfg.EventQueueSize, "queue", 50, "event queue capacity")
	fs.Int64Var(&cfg.NodeID, "node", 1, "snowflake node id")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "graceful shutdown timeout")
	fs.Int64Var(&cfg.RegisterBonus, "bonus", policy.RegisterBonus, "points credited on registration")
	fs.Int64Var(&cfg.PointsPerCurrencyUnit, "peg", policy.PointsPerCurrencyUnit, "points per currency unit of discount")
	fs.BoolVar(&cfg.RefundOnCancel, "refund-on-cancel", policy.RefundOnCancel, "refund redeemed points when an order is cancelled")

	if err := fs.Parse(args); err != nil {
		return nil, errs.Wrap(err, "parse flags")
	}

	if err := ReadServerEnvironment(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReadServerEnvironment overrides cfg with every variable that is set.
func ReadServerEnvironment(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return errs.Wrap(err, "read environment")
	}
	return nil
}

func (cfg *Config) validate() error {
	switch {
	case cfg.DatabaseURI == "":
		return errs.Invalid("database URI is required")
	case cfg.JWTSecret == "":
		return errs.Invalid("JWT secret is required")
	case cfg.AdminUsername == "":
		return errs.Invalid("admin username is required")
	case cfg.EventWorkers < 1:
		return errs.Invalid("event workers must be positive, got %d", cfg.EventWorkers)
	case cfg.RegisterBonus < 0:
		return errs.Invalid("register bonus must not be negative, got %d", cfg.RegisterBonus)
	case cfg.PointsPerCurrencyUnit < 1:
		return errs.Invalid("points per currency unit must be positive, got %d", cfg.PointsPerCurrencyUnit)
	}
	return nil
}

// LedgerPolicy applies the configured overrides to the default policy.
func (cfg *Config) LedgerPolicy() ledger.Policy {
	policy := ledger.DefaultPolicy()
	policy.RegisterBonus = cfg.RegisterBonus
	policy.PointsPerCurrencyUnit = cfg.PointsPerCurrencyUnit
	policy.RefundOnCancel = cfg.RefundOnCancel
	return policy
}

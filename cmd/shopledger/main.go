package main

import (
	"context"
	"os"

	"github.com/and161185/shopledger/internal/config"
	"github.com/and161185/shopledger/internal/deps"
	"github.com/and161185/shopledger/internal/events"
	"github.com/and161185/shopledger/internal/ids"
	"github.com/and161185/shopledger/internal/ledger"
	"github.com/and161185/shopledger/internal/reporting"
	"github.com/and161185/shopledger/internal/server"
	"github.com/and161185/shopledger/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newLogger(lc fx.Lifecycle) (*zap.SugaredLogger, error) {
	logger, err := deps.NewLogger()
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newStorage(lc fx.Lifecycle, cfg *config.Config, logger *zap.SugaredLogger) (*storage.PostgresStorage, error) {
	store, err := storage.NewPostgresStorage(context.Background(), cfg.DatabaseURI, storage.AdminSeed{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Points:   cfg.AdminPoints,
	}, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
	return store, nil
}

func newPublisher(cfg *config.Config, logger *zap.SugaredLogger) events.Publisher {
	if cfg.KafkaBrokers == "" {
		logger.Infow("kafka brokers not configured, ledger events are not published")
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

func newLedger(store *storage.PostgresStorage, cfg *config.Config, logger *zap.SugaredLogger) (*ledger.Service, error) {
	gen, err := ids.NewSnowflakeGenerator(cfg.NodeID)
	if err != nil {
		return nil, err
	}
	return ledger.NewService(store, gen, cfg.LedgerPolicy(), logger), nil
}

func newServer(svc *ledger.Service, store *storage.PostgresStorage, publisher events.Publisher, cfg *config.Config, logger *zap.SugaredLogger) *server.Server {
	reporter := reporting.NewService(store, cfg.AdminUsername)
	d := deps.NewDependencies(logger, cfg.JWTSecret, cfg.TokenTTL)
	return server.NewServer(svc, store, reporter, publisher, cfg, d)
}

func startServer(lc fx.Lifecycle, srv *server.Server, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			func() (*config.Config, error) { return config.NewConfig(os.Args[1:]) },
			newLogger,
			newStorage,
			newPublisher,
			newLedger,
			newServer,
		),
		fx.WithLogger(func(logger *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Desugar()}
		}),
		fx.Invoke(startServer),
	)

	app.Run()
}

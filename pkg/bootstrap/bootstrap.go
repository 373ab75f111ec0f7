// Package bootstrap builds the collaborators shared by the server and the
// operator commands from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"finapi/models"
	"finapi/pkg/config"
	"finapi/pkg/events"
	"finapi/pkg/logx"
	"finapi/pkg/store"
	"finapi/pkg/store/memstore"
	"finapi/pkg/store/pgstore"
)

// Logger builds the root logger and installs it as the slog default.
func Logger(cfg *config.Config) *logx.Logger {
	level, _ := cfg.SlogLevel()
	log := logx.New(logx.Config{Level: level, Format: cfg.LogFormat, Output: os.Stderr})
	logx.SetDefault(log)
	return log
}

// Migrate applies pending schema migrations and seeds default categories.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.DataBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires the %s backend, got %s", config.BackendPostgres, cfg.DataBackend)
	}
	if err := pgstore.RunMigrations(cfg.DatabaseDSN); err != nil {
		return err
	}
	st, err := openPostgres(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.EnsureCategories(ctx, models.DefaultCategories)
}

// OpenStore opens the configured backend, migrating Postgres first when
// DB_AUTO_MIGRATE is set. Default categories are always ensured.
func OpenStore(ctx context.Context, cfg *config.Config, log *logx.Logger) (store.Store, error) {
	log = log.WithComponent(logx.ComponentStorage)
	var st store.Store
	switch cfg.DataBackend {
	case config.BackendMemory:
		log.Warn("using in-memory store, data is lost on exit")
		st = memstore.New()
	default:
		if cfg.AutoMigrate {
			if err := pgstore.RunMigrations(cfg.DatabaseDSN); err != nil {
				return nil, err
			}
			log.Info("migrations applied")
		}
		pg, err := openPostgres(cfg)
		if err != nil {
			return nil, err
		}
		st = pg
	}
	if err := st.EnsureCategories(ctx, models.DefaultCategories); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	return st, nil
}

func openPostgres(cfg *config.Config) (*pgstore.Store, error) {
	return pgstore.Open(cfg.DatabaseDSN, pgstore.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		Debug:        cfg.IsDevelopment(),
	})
}

// Publisher connects to AMQP when configured. Without AMQP_URL, or when the
// broker cannot be reached, events are dropped and the returned closer is a
// no-op.
func Publisher(cfg *config.Config, log *logx.Logger) (events.Publisher, func() error) {
	if cfg.AMQPURL == "" {
		return events.Nop{}, func() error { return nil }
	}
	client, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.WithComponent(logx.ComponentEvents).Err(context.Background(), "dial amqp", err)
		return events.Nop{}, func() error { return nil }
	}
	return client, client.Close
}

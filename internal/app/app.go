// Package app builds the runtime dependencies shared by the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/config"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/database"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/notify"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
)

// OpenStore connects the configured backend and returns it with its
// close function.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		logger.Info("connected to PostgreSQL", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DBName))
		return repository.NewPostgresStore(pool), pool.Close, nil

	case config.DriverMongo:
		client, err := database.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		disconnect := func() {
			dctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		s := repository.NewMongoStore(client.Database(cfg.Mongo.Database))
		if err := s.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		logger.Info("connected to MongoDB", zap.String("db", cfg.Mongo.Database))
		return s, disconnect, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// NewNotifier returns the configured mail backend.
func NewNotifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	if cfg.Mail.Provider == config.MailSendgrid {
		return notify.NewSendgridNotifier(cfg.Mail.SendgridAPIKey, cfg.AppName, cfg.Mail.FromName, cfg.Mail.FromAddress)
	}
	return notify.NewLogNotifier(logger.Named("mail"))
}

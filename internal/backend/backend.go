// Package backend opens the document store named by the configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/docstore"
	"github.com/roach88/lotledger/internal/docstore/fsstore"
	"github.com/roach88/lotledger/internal/docstore/redisstore"
	"github.com/roach88/lotledger/internal/docstore/sqlstore"
)

// Open connects to the configured backend. The caller must Close the
// returned store.
func Open(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	slog.Debug("opening store", "driver", cfg.Driver)

	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlstore.Open(cfg.DB)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.DriverMySQL:
		s, err := sqlstore.OpenMySQL(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.DriverRedis:
		s, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.DriverFirestore:
		s, err := fsstore.Open(ctx, fsstore.Options{
			ProjectID:       cfg.Firestore.Project,
			CredentialsFile: cfg.Firestore.ServiceAccount,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

// Package backend opens the record store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	jwttoken "leadtrack/internal/jwt_token"
	"leadtrack/internal/leads/schema"
	"leadtrack/internal/platform/config"
	"leadtrack/internal/platform/postgres"
	"leadtrack/internal/recordstore"
	mongostore "leadtrack/internal/recordstore/mongo"
	pgstore "leadtrack/internal/recordstore/postgres"
	"leadtrack/internal/recordstore/postgrest"
)

// Open builds the record store for the configured backend. The returned
// closer releases its connections.
func Open(ctx context.Context, cfg config.StoreConfig, variant schema.Variant, log *slog.Logger) (recordstore.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgREST:
		inspectStoreKey(cfg.APIKey, log)
		return postgrest.New(cfg.URL, cfg.APIKey, cfg.Timeout), func() {}, nil

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			return nil, nil, err
		}
		if cfg.MigrateOnStart {
			version, err := postgres.Migrate(ctx, pool, log)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			log.Info("database migrated", "version", version)
		}
		return pgstore.New(pool), pool.Close, nil

	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := store.EnsureUnique(ctx, variant.Table(), variant.UniqueColumn()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.BackendMemory:
		log.Warn("using in-memory record store, data is lost on restart")
		return recordstore.NewInMemory(recordstore.WithUnique(variant.Table(), variant.UniqueColumn())), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// inspectStoreKey logs what the hosted store's API key grants.
func inspectStoreKey(apiKey string, log *slog.Logger) {
	info, err := jwttoken.InspectStoreKey(apiKey)
	if err != nil {
		log.Warn("store api key is not a JWT, cannot inspect its role", "error", err)
		return
	}
	log.Info("store api key", "role", info.Role, "project_ref", info.ProjectRef)
	if info.IsServiceRole() {
		log.Warn("store api key is a service_role key and bypasses row-level security")
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docsample/internal/config"
	"docsample/internal/database"
	"docsample/internal/database/dynamo"
	"docsample/internal/database/memory"
	repository "docsample/internal/database/mongo"
	"docsample/internal/database/rest"
	"docsample/internal/docdb"
)

const statsInterval = 30 * time.Second

// newClient opens the backend named in the config.
func newClient(ctx context.Context, conf *config.Config, lg *slog.Logger) (docdb.Client, error) {
	switch conf.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendRest:
		lg.Info("rest client", slog.String("host", conf.Rest.Host))
		return rest.New(conf, lg)
	case config.BackendMongo:
		lg.Info("mongodb client", slog.Bool("sharded", conf.Mongo.ShardCollection))
		return repository.NewMongoClient(ctx, conf, lg)
	case config.BackendDynamo:
		lg.Info("dynamodb client",
			slog.String("region", conf.Dynamo.Region),
			slog.String("endpoint", conf.Dynamo.Endpoint),
		)
		return dynamo.New(ctx, conf, lg)
	case config.BackendMySQL:
		db, err := database.NewSQLClient(ctx, conf, lg)
		if err != nil {
			return nil, err
		}
		lg.With(
			slog.String("host", conf.SQL.HostName),
			slog.String("port", conf.SQL.Port),
			slog.String("user", conf.SQL.UserName),
		).Info("mysql client initialized")
		go reportStats(ctx, db, lg)
		return db, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", conf.Backend)
	}
}

func reportStats(ctx context.Context, db *database.MySql, lg *slog.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stats := db.Stats(); stats != "" {
				lg.Debug("mysql", slog.String("stats", stats))
			}
		}
	}
}

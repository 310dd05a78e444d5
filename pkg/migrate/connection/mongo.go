package connection

import (
	"context"
	"fmt"

	"github.com/baderkha/sql2mongo/pkg/migrate/config/targetcfg"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DialMongo : connects to the target and pings the primary , the caller disconnects
func DialMongo(ctx context.Context, cfg *targetcfg.Mongo, logger zerolog.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout()).
		SetServerSelectionTimeout(cfg.ConnectTimeout())
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("TARGET : Could not dial connection to mongo due to : %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("TARGET : Ping to mongo failed : %w", err)
	}
	logger.Debug().Str("db", cfg.DB).Msg("target connection ready")
	return client, nil
}

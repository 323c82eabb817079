// Package mongodb provides MongoDB-backed storage implementations.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config holds MongoDB connection configuration.
type Config struct {
	// URI is the mongodb:// connection string.
	URI string
	// Database holds the collections.
	Database string
	// Collection stores the items.
	Collection string
	// ConnectTimeout bounds connecting and the initial ping.
	ConnectTimeout time.Duration
	// QueryTimeout bounds a single operation. Zero leaves it to ctx.
	QueryTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "dynamic_mcp",
		Collection:     "items",
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   5 * time.Second,
	}
}

// ConfigOption configures the MongoDB connection.
type ConfigOption func(*Config)

// WithURI sets the connection string.
func WithURI(uri string) ConfigOption {
	return func(c *Config) {
		c.URI = uri
	}
}

// WithDatabase sets the database name.
func WithDatabase(name string) ConfigOption {
	return func(c *Config) {
		c.Database = name
	}
}

// WithCollection sets the items collection name.
func WithCollection(name string) ConfigOption {
	return func(c *Config) {
		c.Collection = name
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("mongodb: connection failed")
)

// connect opens a client and verifies it with a ping.
func connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	// Timeouts in the URI take precedence over ConnectTimeout.
	opts := options.Client()
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	opts.ApplyURI(cfg.URI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return client, nil
}

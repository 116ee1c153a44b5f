// Package sql defines the relational-database adapter contract. Concrete
// drivers live under pkg/database/sql/adapters/{postgres,sqlite}.
package sql

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Config holds connection settings shared across relational adapters.
// Not every field applies to every driver; sqlite, for instance, only
// uses Name (as a file path).
type Config struct {
	Driver string `env:"DB_DRIVER" env-default:"postgres"`

	Host string `env:"DB_HOST" env-default:"localhost"`
	Port string `env:"DB_PORT" env-default:"5432"`
	User string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name string `env:"DB_NAME"`
	SSLMode string `env:"DB_SSLMODE" env-default:"disable"`

	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
}

// SQL is the connection-manager interface every relational adapter
// implements.
type SQL interface {
	// Get returns the primary connection bound to ctx.
	Get(ctx context.Context) *gorm.DB

	// GetShard returns the connection responsible for key. Adapters with
	// no sharding return the primary connection for any key.
	GetShard(ctx context.Context, key string) (*gorm.DB, error)

	// Close releases all held connections.
	Close() error
}

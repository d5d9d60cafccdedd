package factories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// PostgresConfig contains PostgreSQL connection parameters.
type PostgresConfig struct {
	// ConnString, when set, is used verbatim and the individual fields
	// below are ignored.
	ConnString string

	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string // disable, require, verify-ca, verify-full
	ApplicationName string
	ConnectTimeout  time.Duration
}

// connString builds a PostgreSQL connection URI from the config fields.
func (c *PostgresConfig) connString() string {
	if c.ConnString != "" {
		return c.ConnString
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.Username, c.Password, c.Host, port, c.Database)

	params := []string{}
	if c.SSLMode != "" {
		params = append(params, fmt.Sprintf("sslmode=%s", c.SSLMode))
	}
	if c.ApplicationName != "" {
		params = append(params, fmt.Sprintf("application_name=%s", c.ApplicationName))
	}
	if len(params) > 0 {
		dsn = dsn + "?" + strings.Join(params, "&")
	}

	return dsn
}

func (c *PostgresConfig) validate() error {
	if c.ConnString == "" && c.Host == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "postgres host or connection string is required")
	}
	return nil
}

// NewPostgresFactory returns a factory producing dedicated PostgreSQL
// connections. Each instance is one pgx connection, pinged before it is
// handed to the pool.
func NewPostgresFactory(cfg PostgresConfig) pool.Factory[*pgx.Conn] {
	log := logger.Get().With(zap.String("factory", "postgres"))

	return func(ctx context.Context) (*pgx.Conn, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		if cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
			defer cancel()
		}

		conn, err := pgx.Connect(ctx, cfg.connString())
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to connect to PostgreSQL")
		}

		if err := conn.Ping(ctx); err != nil {
			_ = conn.Close(ctx) // Ignore close error when ping already failed
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "PostgreSQL ping failed")
		}

		log.Debug("postgres connection established",
			zap.String("host", cfg.Host),
			zap.String("database", cfg.Database))

		return conn, nil
	}
}

// ClosePostgres is the close hook for pooled PostgreSQL connections.
func ClosePostgres(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Close(ctx); err != nil {
		logger.Get().Warn("failed to close postgres connection", zap.Error(err))
	}
}

// NewPostgresPool assembles a bounded pool of PostgreSQL connections.
func NewPostgresPool(cfg PostgresConfig, idleLimit, maxLimit int) (*pool.Pool[*pgx.Conn], error) {
	return pool.New(pool.Config[*pgx.Conn]{
		Name:      "postgres",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewPostgresFactory(cfg),
		Close:     ClosePostgres,
	})
}

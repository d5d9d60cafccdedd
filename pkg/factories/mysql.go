package factories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// MySQLConfig contains MySQL connection parameters.
type MySQLConfig struct {
	Host           string
	Port           int
	Database       string
	Username       string
	Password       string
	Params         map[string]string
	ConnectTimeout time.Duration
}

// FormatDSN renders the config as a driver DSN.
func (c *MySQLConfig) FormatDSN() string {
	port := c.Port
	if port == 0 {
		port = 3306
	}

	dsn := mysql.Config{
		User:                 c.Username,
		Passwd:               c.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", c.Host, port),
		DBName:               c.Database,
		Timeout:              c.ConnectTimeout,
		ParseTime:            true,
		AllowNativePasswords: true,
		Params:               c.Params,
	}
	return dsn.FormatDSN()
}

func (c *MySQLConfig) validate() error {
	if c.Host == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "mysql host is required")
	}
	return nil
}

// NewMySQLFactory returns a factory producing dedicated MySQL sessions.
// Each instance is a sql.DB pinned to a single underlying connection, so
// the pool, not database/sql, governs concurrency.
func NewMySQLFactory(cfg MySQLConfig) pool.Factory[*sql.DB] {
	log := logger.Get().With(zap.String("factory", "mysql"))

	return func(ctx context.Context) (*sql.DB, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		db, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to open MySQL connection")
		}

		// One connection per pooled instance.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close() // Ignore close error when ping already failed
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "MySQL ping failed")
		}

		log.Debug("mysql session established",
			zap.String("host", cfg.Host),
			zap.String("database", cfg.Database))

		return db, nil
	}
}

// CloseMySQL is the close hook for pooled MySQL sessions.
func CloseMySQL(db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Get().Warn("failed to close mysql session", zap.Error(err))
	}
}

// NewMySQLPool assembles a bounded pool of MySQL sessions.
func NewMySQLPool(cfg MySQLConfig, idleLimit, maxLimit int) (*pool.Pool[*sql.DB], error) {
	return pool.New(pool.Config[*sql.DB]{
		Name:      "mysql",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewMySQLFactory(cfg),
		Close:     CloseMySQL,
	})
}

package factories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/snowflakedb/gosnowflake" // snowflake driver
	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// SnowflakeConfig contains Snowflake connection parameters.
type SnowflakeConfig struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// DSN builds the Snowflake connection string.
// Format: user:password@account/database/schema?warehouse=wh&role=role
func (c *SnowflakeConfig) DSN() string {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		c.User, c.Password, c.Account, c.Database, c.Schema)

	params := []string{}
	if c.Warehouse != "" {
		params = append(params, fmt.Sprintf("warehouse=%s", c.Warehouse))
	}
	if c.Role != "" {
		params = append(params, fmt.Sprintf("role=%s", c.Role))
	}

	// Snowflake-specific parameters for resilient long-lived sessions
	params = append(params, "ocspFailOpen=true") // Continue if OCSP check fails
	params = append(params, "validateDefaultParameters=true")
	params = append(params, "clientSessionKeepAlive=true") // Keep session alive

	return dsn + "?" + strings.Join(params, "&")
}

func (c *SnowflakeConfig) validate() error {
	if c.Account == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "snowflake account is required")
	}
	if c.User == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "snowflake user is required")
	}
	return nil
}

// NewSnowflakeFactory returns a factory producing dedicated Snowflake
// sessions, each pinned to a single underlying connection.
func NewSnowflakeFactory(cfg SnowflakeConfig) pool.Factory[*sql.DB] {
	log := logger.Get().With(zap.String("factory", "snowflake"))

	return func(ctx context.Context) (*sql.DB, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		db, err := sql.Open("snowflake", cfg.DSN())
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to open Snowflake connection")
		}

		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close() // Ignore close error when ping already failed
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to ping Snowflake")
		}

		log.Debug("snowflake session established",
			zap.String("account", cfg.Account),
			zap.String("database", cfg.Database),
			zap.String("warehouse", cfg.Warehouse))

		return db, nil
	}
}

// CloseSnowflake is the close hook for pooled Snowflake sessions.
func CloseSnowflake(db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Get().Warn("failed to close snowflake session", zap.Error(err))
	}
}

// NewSnowflakePool assembles a bounded pool of Snowflake sessions.
func NewSnowflakePool(cfg SnowflakeConfig, idleLimit, maxLimit int) (*pool.Pool[*sql.DB], error) {
	return pool.New(pool.Config[*sql.DB]{
		Name:      "snowflake",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewSnowflakeFactory(cfg),
		Close:     CloseSnowflake,
	})
}

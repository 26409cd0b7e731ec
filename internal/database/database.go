package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"fileshare/internal/config"
)

// ApplicationName tags the service's sessions in pg_stat_activity.
const ApplicationName = "fileshare"

var (
	sqlOpen = sql.Open
	// retryDelay is the pause after the n-th failed ping.
	retryDelay = func(n int) time.Duration { return time.Duration(n) * time.Second }
)

// BuildPostgresDSN renders the config as a postgres:// URL. Unknown query parameters
// (application_name, statement_timeout) are sent by pgx as session runtime parameters.
func BuildPostgresDSN(c config.DatabaseConfig) (string, error) {
	if c.Host == "" || c.Port == "" || c.User == "" || c.Name == "" {
		return "", fmt.Errorf("invalid database config: host, port, user, and name are required")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + c.Port,
		Path:   c.Name,
		User:   url.User(c.User),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}

	q := url.Values{}
	q.Set("application_name", ApplicationName)
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.StatementTimeout > 0 {
		q.Set("statement_timeout", strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// NewPostgres opens the metadata store through the otelsql-wrapped pgx driver and applies
// pool limits. The database may still be starting when the service boots, so the ping is
// retried up to ConnectAttempts times with a growing pause.
func NewPostgres(c config.DatabaseConfig, log zerolog.Logger) (*sql.DB, error) {
	dsn, err := BuildPostgresDSN(c)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("component", "database").Str("db_host", c.Host).Logger()

	driverName, err := otelsql.Register("pgx",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}

	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}

	attempts := c.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	start := time.Now()
	for n := 1; ; n++ {
		err = ping(db)
		if err == nil {
			break
		}
		if n == attempts {
			_ = db.Close()
			return nil, fmt.Errorf("db ping after %d attempts: %w", n, err)
		}
		log.Warn().Err(err).Int("attempt", n).Int("max_attempts", attempts).Msg("database not reachable yet")
		time.Sleep(retryDelay(n))
	}

	log.Info().
		Int("max_open_conns", c.MaxOpenConns).
		Dur("statement_timeout", c.StatementTimeout).
		Int64("connect_ms", time.Since(start).Milliseconds()).
		Msg("database connected")

	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

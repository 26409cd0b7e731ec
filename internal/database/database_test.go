package database

import (
	"bytes"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileshare/internal/config"
)

func TestBuildPostgresDSN(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: "5432", User: "files", Name: "fileshare"}

	tests := []struct {
		name    string
		mutate  func(*config.DatabaseConfig)
		want    string
		wantErr bool
	}{
		{
			name:   "minimal",
			mutate: func(*config.DatabaseConfig) {},
			want:   "postgres://files@db:5432/fileshare?application_name=fileshare",
		},
		{
			name: "password, sslmode and statement timeout",
			mutate: func(c *config.DatabaseConfig) {
				c.Password = "s3cr#t"
				c.SSLMode = "require"
				c.StatementTimeout = 15 * time.Second
			},
			want: "postgres://files:s3cr%23t@db:5432/fileshare?application_name=fileshare&sslmode=require&statement_timeout=15000",
		},
		{name: "missing host", mutate: func(c *config.DatabaseConfig) { c.Host = "" }, wantErr: true},
		{name: "missing port", mutate: func(c *config.DatabaseConfig) { c.Port = "" }, wantErr: true},
		{name: "missing user", mutate: func(c *config.DatabaseConfig) { c.User = "" }, wantErr: true},
		{name: "missing name", mutate: func(c *config.DatabaseConfig) { c.Name = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			got, err := BuildPostgresDSN(c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// stubOpen makes NewPostgres use db and removes the pause between attempts.
func stubOpen(t *testing.T, db *sql.DB, openErr error) {
	t.Helper()
	origOpen, origDelay := sqlOpen, retryDelay
	sqlOpen = func(string, string) (*sql.DB, error) {
		if openErr != nil {
			return nil, openErr
		}
		return db, nil
	}
	retryDelay = func(int) time.Duration { return 0 }
	t.Cleanup(func() { sqlOpen, retryDelay = origOpen, origDelay })
}

func TestNewPostgres(t *testing.T) {
	conf := config.DatabaseConfig{
		Host:               "db",
		Port:               "5432",
		User:               "files",
		Name:               "fileshare",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
		ConnectAttempts:    3,
	}

	t.Run("connects on first ping", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)

		mock.ExpectPing()

		gotDB, err := NewPostgres(conf, zerolog.Nop())
		assert.NoError(t, err)
		assert.NotNil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries until the database answers", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectPing()

		var buf bytes.Buffer
		gotDB, err := NewPostgres(conf, zerolog.New(&buf))
		require.NoError(t, err)
		assert.NotNil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, 1, strings.Count(buf.String(), "database not reachable yet"))
		assert.Contains(t, buf.String(), "database connected")
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)

		for i := 0; i < conf.ConnectAttempts; i++ {
			mock.ExpectPing().WillReturnError(errors.New("ping failed"))
		}
		mock.ExpectClose()

		gotDB, err := NewPostgres(conf, zerolog.Nop())
		assert.EqualError(t, err, "db ping after 3 attempts: ping failed")
		assert.Nil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sqlOpen error", func(t *testing.T) {
		stubOpen(t, nil, errors.New("open error"))

		gotDB, err := NewPostgres(conf, zerolog.Nop())
		assert.EqualError(t, err, "sql open: open error")
		assert.Nil(t, gotDB)
	})

	t.Run("invalid DSN", func(t *testing.T) {
		gotDB, err := NewPostgres(config.DatabaseConfig{}, zerolog.Nop())
		assert.Error(t, err)
		assert.Nil(t, gotDB)
	})
}

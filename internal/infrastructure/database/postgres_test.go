package database

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/config"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDSN_EscapesCredentials(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "ocr",
		Password: "p@ss word/'x",
		Database: "invoices",
		SSLMode:  "disable",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/invoices", u.Path)
	assert.Equal(t, "ocr", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss word/'x", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestDSN_OmitsEmptySSLMode(t *testing.T) {
	u, err := url.Parse(DSN(&config.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", Database: "d"}))
	require.NoError(t, err)
	assert.False(t, u.Query().Has("sslmode"))
}

func TestOpen_CancelledContextFailsFast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := Open(ctx, &config.DatabaseConfig{
		Host: "127.0.0.1", Port: 1, User: "u", Password: "p", Database: "d",
		SSLMode: "disable", MaxConnections: 2, LogLevel: "silent",
	}, discardLogger())

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))
	assert.Less(t, time.Since(start), connectBackoff)
}

func TestOpen_MigrateAndHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(ctx)
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := Open(ctx, &config.DatabaseConfig{
		Host: host, Port: port.Int(), User: "postgres", Password: "postgres", Database: "testdb",
		SSLMode: "disable", MaxConnections: 4, MinConnections: 1, LogLevel: "silent",
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// before migration the schema is incomplete
	report := db.Health(ctx)
	assert.Equal(t, "degraded", report["status"])
	assert.NotEmpty(t, report["missing_tables"])

	require.NoError(t, db.Migrate(ctx))

	report = db.Health(ctx)
	assert.Equal(t, "up", report["status"])
	assert.NotContains(t, report, "missing_tables")
}

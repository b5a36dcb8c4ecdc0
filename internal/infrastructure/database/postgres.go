package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/config"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// PostgresDB holds the pool shared by the invoice, batch and hash repositories
type PostgresDB struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// DSN renders cfg as a postgres URL. Credentials are escaped so passwords
// may contain any character.
func DSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	q.Set("application_name", "invoice-ingest")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open connects to Postgres. The database container may come up after the
// api or worker, so the first ping is retried with a doubling backoff.
func Open(ctx context.Context, cfg *config.DatabaseConfig, appLogger *slog.Logger) (*PostgresDB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger:                 newSlogGormLogger(appLogger.With(slog.String("component", "gorm")), cfg.LogLevel),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		DisableAutomaticPing:   true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MinConnections)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.MaxConnIdleTime) * time.Minute)

	pg := &PostgresDB{DB: db, logger: appLogger}
	if err := pg.waitReady(ctx, cfg); err != nil {
		sqlDB.Close()
		return nil, err
	}

	appLogger.Info("database connection established",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.Database),
		slog.Int("max_connections", cfg.MaxConnections))
	return pg, nil
}

func (db *PostgresDB) waitReady(ctx context.Context, cfg *config.DatabaseConfig) error {
	backoff := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == connectAttempts {
			break
		}
		db.logger.Warn("database not ready, retrying",
			slog.String("host", cfg.Host),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			"error", err)
		select {
		case <-ctx.Done():
			return apperrors.DatabaseError(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return apperrors.DatabaseError(fmt.Errorf("ping %s:%d: %w", cfg.Host, cfg.Port, err))
}

// Close releases the pool
func (db *PostgresDB) Close() error {
	db.logger.Info("closing database connection")
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database is reachable
func (db *PostgresDB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the entity, error, batch and hash tables.
// Parents come first so the purchase foreign keys resolve.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	start := time.Now()
	if err := db.DB.WithContext(ctx).AutoMigrate(domain.AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	db.logger.Info("schema migrated",
		slog.Int("tables", len(domain.AllModels())),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Health pings the database and reports whether every ingestion table
// exists, with the pool figures that matter under batch load.
func (db *PostgresDB) Health(ctx context.Context) map[string]interface{} {
	if err := db.Ping(ctx); err != nil {
		return map[string]interface{}{
			"status": "down",
			"error":  err.Error(),
		}
	}

	var missing []string
	migrator := db.DB.WithContext(ctx).Migrator()
	for _, model := range domain.AllModels() {
		if !migrator.HasTable(model) {
			missing = append(missing, fmt.Sprintf("%T", model))
		}
	}

	status := "up"
	if len(missing) > 0 {
		status = "degraded"
	}
	report := map[string]interface{}{"status": status}
	if len(missing) > 0 {
		report["missing_tables"] = missing
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		stats := sqlDB.Stats()
		report["open_connections"] = stats.OpenConnections
		report["in_use"] = stats.InUse
		report["wait_count"] = stats.WaitCount
	}
	return report
}

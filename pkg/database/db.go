package database

import (
	"errors"
	"fmt"
	"os"

	"anoa.com/threadgraph/internal/entity"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the postgres pool. An empty dsn is assembled from DB_* variables.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			valueOrDefault("DB_HOST", "localhost"),
			valueOrDefault("DB_USER", "postgres"),
			os.Getenv("DB_PASS"),
			valueOrDefault("DB_NAME", "threadgraph"),
			valueOrDefault("DB_PORT", "5432"),
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates every table the services persist to.
func Migrate(db *gorm.DB) error {
	log.Info().Msg("running database migrations")
	return db.AutoMigrate(
		&entity.Profile{},
		&entity.Thread{},
		&entity.Like{},
		&entity.Follow{},
		&entity.Notification{},
	)
}

// WrapError classifies a gorm error into the apperror taxonomy.
func WrapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperror.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, apperror.ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %w", op, apperror.ErrStorage, err)
	}
}

func valueOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

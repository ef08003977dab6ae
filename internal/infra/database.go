package infra

import (
	"context"
	"fmt"
	"strings"

	"catalogsync/internal/infra/migrations"
	"catalogsync/internal/model"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// IsSQLite reports whether dsn selects the embedded sqlite driver
// ("sqlite:catalog.db", "sqlite:file::memory:?cache=shared").
func IsSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, sqlitePrefix)
}

// NewDatabase opens a GORM connection: postgres (pgx) for regular DSNs and
// sqlite for "sqlite:" ones. Schema is not touched here; see Migrate.
func NewDatabase(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if IsSQLite(dsn) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if IsSQLite(dsn) {
		// one writer at a time; also keeps shared in-memory databases alive
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	return db, nil
}

// Migrate brings the schema up to date. Postgres runs the embedded goose
// migrations; sqlite, used for local runs and tests, is built by AutoMigrate
// because the SQL files use postgres-only types.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		return AutoMigrate(db)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("database: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// AutoMigrate creates the tables straight from the models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Product{}, &model.Quote{}, &model.QuoteItem{}); err != nil {
		return fmt.Errorf("database: AutoMigrate: %w", err)
	}
	return nil
}

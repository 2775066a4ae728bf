package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/internal/models"
)

// Connect opens the database connection and runs migrations.
func Connect(dsn string, log *zap.Logger, production bool) *gorm.DB {
	if err := ensureDatabase(dsn); err != nil {
		log.Fatal("failed to ensure database", zap.Error(err))
	}

	level := logger.Info
	if production {
		level = logger.Warn
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := Migrate(conn); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	return conn
}

// Migrate creates the schema, the constraints gorm tags cannot express,
// and the default roles. It is safe to run repeatedly.
func Migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.Role{},
		&models.User{},
		&models.OTP{},
		&models.Category{},
		&models.Product{},
		&models.Favourite{},
		&models.Address{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	// One active cart per user. Partial unique indexes are supported by
	// both PostgreSQL and SQLite.
	if err := conn.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active_per_user
		ON carts (user_id) WHERE status = 'active'`).Error; err != nil {
		return fmt.Errorf("create active cart index: %w", err)
	}

	return seedRoles(conn)
}

func seedRoles(conn *gorm.DB) error {
	roles := []models.Role{{Name: models.RoleUser}, {Name: models.RoleAdmin}}
	return conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}

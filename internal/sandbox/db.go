package sandbox

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/companion-client/internal/platform/logger"
)

// OpenDB connects to the configured database and migrates the sandbox tables.
func OpenDB(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "", "sqlite":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("postgres requires SANDBOX_DB_DSN")
		}
		dialector = postgres.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}

	log.Info("Connecting to database...", "driver", cfg.DBDriver)
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	if _, ok := dialector.(*sqlite.Dialector); ok {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under concurrent reads.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Wallet{}, &PersonaRow{}, &DressRow{}); err != nil {
		log.Error("Auto migration failed", "error", err)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

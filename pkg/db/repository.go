// pkg/db/repository.go
package db

import (
	"strconv"

	"github.com/vocadrill/vocadrill/pkg/config"
	"github.com/vocadrill/vocadrill/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Export DB variable
var DB *gorm.DB

func InitDB(cfg config.DatabaseConfig) error {
	gormLogger, gormErr := newGormLogger(config.AppConfig.Logging.GormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", config.AppConfig.Logging.GormLevel, "error", gormErr)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dsn := "host=" + cfg.Host +
			" user=" + cfg.User +
			" password=" + cfg.Password +
			" dbname=" + cfg.DBName +
			" port=" + strconv.Itoa(cfg.Port) +
			" sslmode=" + cfg.SSLMode
		dialector = postgres.Open(dsn)
	default:
		path := cfg.Path
		if path == "" {
			path = "vocadrill.db"
		}
		dialector = sqlite.Open(path)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	if err := DB.AutoMigrate(&KVEntry{}, &SyncRecord{}); err != nil {
		logger.Error("failed to auto-migrate database", "error", err)
		return err
	}
	return nil
}

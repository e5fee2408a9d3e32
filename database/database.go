package database

import (
	"fmt"
	"log"

	"label-service/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB is the shared database handle, set by Connect.
var DB *gorm.DB

// Config holds the Postgres connection parameters.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// Connect opens the Postgres connection and sets the package-level handle.
func Connect(cfg Config) error {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode, cfg.TimeZone)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Println("Failed to connect to database:", err)
		return err
	}
	return nil
}

// Migrate creates/updates the schema for all label-service models.
func Migrate() error {
	return DB.AutoMigrate(&models.Courier{}, &models.Label{}, &models.PrintRun{})
}

// Close closes the underlying connection pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ajali-app/backend/internal/models"
)

// Config is built once at startup and passed to every constructor that needs
// it. Nothing reads the environment after Load returns.
type Config struct {
	DB_HOST       string
	DB_PORT       string
	DB_USER       string
	DB_PASSWORD   string
	DB_NAME       string
	ES_URL        string
	ES_USER       string
	ES_PASSWORD   string
	TOKEN_SECRET  string
	KAFKA_ADDRESS string
	UPLOAD_DIR    string
	HTTP_ADDR     string
	LOG_LEVEL     string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:       getenv("DB_HOST", "localhost"),
		DB_PORT:       getenv("DB_PORT", "5432"),
		DB_USER:       getenv("DB_USER", "ajali_user"),
		DB_PASSWORD:   os.Getenv("DB_PASSWORD"),
		DB_NAME:       getenv("DB_NAME", "ajali_db"),
		ES_URL:        os.Getenv("ES_URL"),
		ES_USER:       os.Getenv("ES_USER"),
		ES_PASSWORD:   os.Getenv("ES_PASSWORD"),
		TOKEN_SECRET:  os.Getenv("TOKEN_SECRET"),
		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),
		UPLOAD_DIR:    getenv("UPLOAD_DIR", "uploads"),
		HTTP_ADDR:     getenv("HTTP_ADDR", ":8080"),
		LOG_LEVEL:     getenv("LOG_LEVEL", "info"),
	}

	if config.TOKEN_SECRET == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}

	return config, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.APIToken{}, &models.Incident{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return db, nil
}

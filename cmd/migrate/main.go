package main

import (
	"fmt"
	"log"
	"os"

	"engage/internal/config"
	"engage/internal/models"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Starting database migration...")

	err = db.AutoMigrate(
		&models.Workspace{},
		&models.InboundMessage{},
		&models.AutomationRule{},
		&models.ExecutionRecord{},
		&models.EmailJob{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migration completed successfully!")

	log.Println("Creating additional indexes...")

	// Composite index backing the occurrence idempotency lookup.
	db.Exec("CREATE INDEX IF NOT EXISTS idx_exec_rule_occurrence_outcome ON execution_records(rule_id, occurrence_id, outcome)")

	// Inbound messages are read back per workspace timeline.
	db.Exec("CREATE INDEX IF NOT EXISTS idx_inbound_workspace_created ON inbound_messages(workspace_id, created_at)")

	log.Println("Indexes created successfully!")
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"engage/internal/automation"
	"engage/internal/channels"
	"engage/internal/config"
	"engage/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	tickWorkspaceID uint
	tickAgentID     uint
)

// tickCmd drives the scheduled entry point once, for use from an
// external cron. Safe to invoke more than once per minute.
var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Evaluate time-based rules for one workspace/agent now",
	RunE:  runTick,
}

func init() {
	tickCmd.Flags().UintVar(&tickWorkspaceID, "workspace", 0, "workspace id")
	tickCmd.Flags().UintVar(&tickAgentID, "agent", 0, "agent id")
	_ = tickCmd.MarkFlagRequired("workspace")
	_ = tickCmd.MarkFlagRequired("agent")
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := config.InitLogger(cfg); err != nil {
		logrus.Warnf("init logger: %v", err)
	}
	appLogger := logrus.StandardLogger()

	coordinator, err := buildCoordinator(cfg, appLogger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := coordinator.RunScheduledRules(ctx, tickWorkspaceID, tickAgentID, time.Now())
	if err != nil {
		return fmt.Errorf("scheduled run: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// buildCoordinator wires the engine against the configured database and
// channel gateway.
func buildCoordinator(cfg *config.Config, appLogger *logrus.Logger) (*automation.Coordinator, error) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	st := store.New(db, appLogger)
	sender := channels.NewClient(&channels.Config{
		BaseURL:    cfg.Channels.BaseURL,
		APIKey:     cfg.Channels.APIKey,
		Timeout:    cfg.Channels.Timeout,
		MaxRetries: cfg.Channels.MaxRetries,
	}, appLogger)

	dispatcher := automation.NewDispatcher(sender, st, st, &http.Client{}, automation.DispatcherConfig{
		WebhookTimeout:  cfg.Webhook.Timeout,
		DefaultRetries:  cfg.Webhook.DefaultRetries,
		BackoffBase:     cfg.Webhook.BackoffBase,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		MaxResponseLog:  cfg.Webhook.MaxResponseLog,
	}, appLogger)

	return automation.NewCoordinator(
		st,
		automation.NewEvaluator(appLogger),
		automation.NewGuard(st, appLogger),
		dispatcher,
		automation.NewAuditLogger(st, appLogger),
		appLogger,
	), nil
}

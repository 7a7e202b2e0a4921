package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"shelterlink/backend/internal/auth"
	"shelterlink/backend/internal/config"
	"shelterlink/backend/internal/connection"
	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/matching"
	"shelterlink/backend/internal/messaging"
	"shelterlink/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App holds what the admin commands share.
type App struct {
	cfg         *config.Config
	store       storage.Storage
	matching    *matching.Service
	connections *connection.Service
	messages    *messaging.Service
	tokens      *auth.Tokens
	logger      *zap.Logger
	ctx         context.Context
}

var (
	logLevel string
	app      *App
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "ShelterLink admin CLI",
		Long:          `Operator tooling: issue tokens, seed users and inspect matches, connections and inboxes.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(seedUserCmd())
	rootCmd.AddCommand(seekerMatchesCmd())
	rootCmd.AddCommand(shelterMatchesCmd())
	rootCmd.AddCommand(connectionStatusCmd())
	rootCmd.AddCommand(unreadCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp loads config and opens storage the same way the server does.
func initApp() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Env, logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	st, err := storage.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Debug("storage ready", zap.String("driver", cfg.StorageDriver))

	app = &App{
		cfg:         cfg,
		store:       st,
		matching:    matching.NewService(st, cfg.Matching, logger),
		connections: connection.NewService(st, nil, logger),
		messages:    messaging.NewService(st, nil, logger),
		tokens:      auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		logger:      logger,
		ctx:         context.Background(),
	}
	return nil
}

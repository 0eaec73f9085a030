package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"
	"github.com/vietddude/translive/internal/control"
	"github.com/vietddude/translive/internal/core/config"
)

var (
	cfgPath     string
	isDebug     bool
	userID      string
	sessionCode string
	createNew   bool
)

var rootCmd = &cobra.Command{
	Use:   "translive",
	Short: "Translive session relay service",
	Long:  `Translive coordinates real-time voice and text translation sessions: queueing, delivery, connection recovery, and progress preservation.`,
	Run:   runApp,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVar(&userID, "user", "", "participant id (generated if empty)")
	rootCmd.Flags().StringVar(&sessionCode, "session", "", "session code to join or create on startup")
	rootCmd.Flags().BoolVar(&createNew, "create", false, "create the session instead of joining it")
}

func runApp(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	if userID == "" {
		userID = uuid.NewString()
		slog.Info("Generated participant id", "user", userID)
	}

	app, err := control.NewApp(cfg, userID, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	if sessionCode != "" {
		var joinErr error
		if createNew {
			joinErr = app.CreateSession(ctx, sessionCode)
		} else {
			joinErr = app.JoinSession(ctx, sessionCode)
		}
		if joinErr != nil {
			slog.Error("Failed to enter session", "code", sessionCode, "error", joinErr)
			os.Exit(1)
		}
	}

	slog.Info("Translive started", "config", cfgPath, "user", userID)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}

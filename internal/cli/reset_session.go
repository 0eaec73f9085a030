package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/translive/internal/core/config"
	redisclient "github.com/vietddude/translive/internal/infra/redis"
)

var resetSessionCmd = &cobra.Command{
	Use:   "reset-session [user_id] [session_id]",
	Short: "Drop a user's active-session pointer and the session's queue snapshot",
	Args:  cobra.ExactArgs(2),
	Run:   runResetSession,
}

func init() {
	rootCmd.AddCommand(resetSessionCmd)
}

func runResetSession(cmd *cobra.Command, args []string) {
	resetUserID := args[0]
	resetSessionID := args[1]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("No redis backend configured, nothing to reset")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	if err := client.ClearActiveSession(ctx, resetUserID); err != nil {
		slog.Error("Failed to clear active session pointer", "error", err)
		os.Exit(1)
	}
	if err := client.DeleteQueueSnapshot(ctx, resetSessionID); err != nil {
		slog.Error("Failed to delete queue snapshot", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset session state for user %s (session %s)\n", resetUserID, resetSessionID)
}

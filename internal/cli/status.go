package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/translive/internal/core/config"
	"github.com/vietddude/translive/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current sessions and their archived message counts",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx, `
		SELECT s.code, s.source_language, s.target_language, s.expires_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id) AS archived
		FROM sessions s
		ORDER BY s.created_at DESC`)
	if err != nil {
		slog.Error("Failed to query sessions", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CODE\tSOURCE\tTARGET\tEXPIRES\tARCHIVED")

	for rows.Next() {
		var code, source, target, expiresAt string
		var archived int
		if err := rows.Scan(&code, &source, &target, &expiresAt, &archived); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", code, source, target, expiresAt, archived)
	}
	_ = w.Flush()
}

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/translive/internal/control"
	"github.com/vietddude/translive/internal/core/config"
	"github.com/vietddude/translive/internal/core/domain"
)

func TestGracefulShutdown(t *testing.T) {
	// Memory-only config: no database, no redis, stub speech backends
	cfg := &config.AppConfig{}
	cfg.Server.Port = 0
	cfg.Languages.DefaultSource = "en"
	cfg.Languages.DefaultTarget = "es"

	app, err := control.NewApp(cfg, "e2e-user", nil)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Failed to start app: %v", err)
	}

	// Exercise a full session before shutting down
	if err := app.CreateSession(ctx, "E2E01"); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	msg, err := app.SendVoice(ctx, []byte("hello there"), "")
	if err != nil {
		t.Fatalf("SendVoice failed: %v", err)
	}
	if msg.Status != domain.MessageStatusDisplayed {
		t.Errorf("message status = %s, want displayed", msg.Status)
	}

	// Trigger shutdown
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	// After Stop the manager must be fully disconnected
	state := app.Session()
	if state.ConnectionState != domain.ConnectionDisconnected {
		t.Errorf("connection state after stop = %s, want disconnected", state.ConnectionState)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/realtime"
	"github.com/vietddude/translive/internal/infra/retry"
	"github.com/vietddude/translive/internal/infra/speech"
	"github.com/vietddude/translive/internal/infra/storage/memory"
	"github.com/vietddude/translive/internal/pipeline"
	"github.com/vietddude/translive/internal/queue"
	"github.com/vietddude/translive/internal/workflow"
)

// Demo harness: runs a few messages through the pipeline against in-memory
// backends and stub speech services. The real daemon lives in cmd/translive.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	ctx := context.Background()

	// 1. In-memory backends
	store := memory.NewMemoryStorage()
	snapshots := memory.NewSnapshotStore(store)
	history := memory.NewHistoryRepo(store)
	broker := realtime.NewMemoryBroker()

	// 2. Stub speech services with a tiny dictionary
	transcriber := speech.NewStubTranscriber()
	translator := speech.NewStubTranslator()
	translator.Dictionary = map[string]map[string]string{
		"es": {
			"good morning": "buenos dias",
			"how are you":  "como estas",
		},
	}

	// 3. Watch the session channel like a second participant would
	sessionID := "demo-session"
	_, err = broker.Subscribe(ctx, domain.SessionChannel(sessionID), func(ev domain.Event) {
		if ev.Message != nil {
			fmt.Printf("📨 %s: %q -> %q (%s)\n",
				ev.Type, ev.Message.OriginalText, ev.Message.Translation, ev.Message.Status)
		}
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	// 4. Assemble the pipeline
	q := queue.New(sessionID, snapshots, history, slog.Default())
	workflows := workflow.NewService("demo-user", snapshots, slog.Default())
	p := pipeline.New(q, workflows, broker, transcriber, translator, retry.DefaultConfig, slog.Default())

	fmt.Println("=== Running demo messages ===")

	for _, phrase := range []string{"good morning", "how are you", "see you soon"} {
		msg, err := p.Run(ctx, pipeline.VoiceRequest{
			SessionID:      sessionID,
			UserID:         "demo-user",
			Audio:          []byte(phrase),
			SourceLanguage: "en",
			TargetLanguage: "es",
		})
		if err != nil {
			log.Printf("pipeline run failed: %v", err)
			continue
		}
		fmt.Printf("✅ delivered %s in %dms\n", msg.ID, msg.PerformanceMetrics.EndToEndMs)

		time.Sleep(100 * time.Millisecond)
	}

	// 5. Show final state
	stats := workflows.Statistics()
	fmt.Printf("\nWorkflows: %d total, %d completed\n",
		stats.Total, stats.ByStatus[domain.WorkflowStatusCompleted])

	archived, _ := history.Count(ctx, sessionID)
	fmt.Printf("Archived messages: %d\n", archived)
}

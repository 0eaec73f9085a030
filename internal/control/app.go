// Package control assembles and runs the application: storage selection,
// realtime wiring, the session manager, connection recovery, and the
// translation pipeline for one participant.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/translive/internal/core/config"
	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/health"
	"github.com/vietddude/translive/internal/infra/realtime"
	redisclient "github.com/vietddude/translive/internal/infra/redis"
	"github.com/vietddude/translive/internal/infra/speech"
	"github.com/vietddude/translive/internal/infra/storage"
	"github.com/vietddude/translive/internal/infra/storage/memory"
	"github.com/vietddude/translive/internal/infra/storage/postgres"
	"github.com/vietddude/translive/internal/pipeline"
	"github.com/vietddude/translive/internal/queue"
	"github.com/vietddude/translive/internal/session"
	"github.com/vietddude/translive/internal/workflow"
)

// App is the main application struct managing one participant's session,
// queue, and pipeline lifecycle.
type App struct {
	cfg    *config.AppConfig
	userID string
	log    *slog.Logger

	broker      realtime.Broker
	snapshots   storage.SnapshotStore
	sessions    storage.SessionRepository
	history     storage.MessageHistoryRepository
	db          *postgres.DB
	redisClient *redisclient.Client

	manager     *session.Manager
	recovery    *session.Recovery
	workflows   *workflow.Service
	transcriber speech.Transcriber
	translator  speech.Translator

	healthMon    *health.Monitor
	healthServer *health.Server

	mu       sync.Mutex
	queue    *queue.Queue
	pipeline *pipeline.Pipeline
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg *config.AppConfig, userID string, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	app := &App{cfg: cfg, userID: userID, log: log}

	// 1. Initialize Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations. Goose needs the raw *sql.DB that sqlx wraps.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		app.db = db
		app.sessions = postgres.NewSessionRepo(db)
		app.history = postgres.NewHistoryRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		app.sessions = memory.NewSessionRepo(store)
		app.history = memory.NewHistoryRepo(store)
		app.snapshots = memory.NewSnapshotStore(store)
		log.Info("Using Memory storage")
	}

	// 2. Initialize Realtime and Snapshots
	if cfg.Redis.URL != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redisClient = redisClient
		app.snapshots = redisClient
		app.broker = redisclient.NewBroker(redisClient)
		log.Info("Using Redis realtime backend")
	} else {
		if app.snapshots == nil {
			store := memory.NewMemoryStorage()
			app.snapshots = memory.NewSnapshotStore(store)
		}
		app.broker = realtime.NewMemoryBroker()
		log.Info("Using in-process realtime backend")
	}

	// 3. Initialize Speech Clients
	if cfg.Speech.TranscriberURL != "" {
		app.transcriber = speech.NewHTTPTranscriber(cfg.Speech)
		app.translator = speech.NewHTTPTranslator(cfg.Speech)
	} else {
		app.transcriber = speech.NewStubTranscriber()
		app.translator = speech.NewStubTranslator()
		log.Warn("No speech backend configured, using stubs")
	}

	// 4. Workflow Service
	app.workflows = workflow.NewService(userID, app.snapshots, log)
	if err := app.workflows.Restore(context.Background()); err != nil {
		log.Warn("Failed to restore workflows", "error", err)
	}

	// 5. Session Manager
	sessionCfg := cfg.Session
	if sessionCfg.SourceLanguage == "" {
		sessionCfg.SourceLanguage = cfg.Languages.DefaultSource
	}
	if sessionCfg.TargetLanguage == "" {
		sessionCfg.TargetLanguage = cfg.Languages.DefaultTarget
	}
	app.manager = session.NewManager(sessionCfg, app.broker, app.sessions, app.snapshots, log)
	app.manager.SetEventHandler(app.handleEvent)

	// 6. Connection Recovery
	var pinger session.Pinger
	if app.redisClient != nil {
		pinger = app.redisClient
	} else {
		pinger = alwaysUp{}
	}
	app.recovery = session.NewRecovery(
		cfg.Recovery,
		pinger,
		app.manager,
		app.manager.BeginReconnect,
		log,
	)

	// 7. Health Monitoring
	var storageChecker health.StorageChecker
	if app.db != nil {
		storageChecker = app.db
	}
	app.healthMon = health.NewMonitor(pinger, storageChecker, app.recovery, app, app.workflows)
	app.healthServer = health.NewServer(app.healthMon, cfg.Server.Port)

	return app, nil
}

// Start launches the health server and recovery loop, then reattaches the
// previously active session if one is recorded.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	a.recovery.Start()

	if err := a.resumeActiveSession(ctx); err != nil {
		a.log.Warn("Could not resume previous session", "error", err)
	}

	for _, w := range a.workflows.RecoverableWorkflows() {
		a.log.Info("Workflow awaiting resume",
			"workflow", w.ID, "session", w.SessionID, "status", w.OverallStatus)
	}
	return nil
}

// Stop shuts the application down: leaves the session, stops recovery, and
// closes the backends.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping...")

	a.recovery.Stop()

	if err := a.manager.Leave(ctx); err != nil {
		a.log.Warn("Failed to leave session", "error", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.healthServer.Stop(ctx)
}

// CreateSession creates a new session under code and joins it.
func (a *App) CreateSession(ctx context.Context, code string) error {
	return a.join(ctx, code, true)
}

// JoinSession joins an existing session by code.
func (a *App) JoinSession(ctx context.Context, code string) error {
	return a.join(ctx, code, false)
}

func (a *App) join(ctx context.Context, code string, isNewlyCreated bool) error {
	if err := a.manager.Initialize(ctx, code, a.userID, isNewlyCreated); err != nil {
		return err
	}

	state := a.manager.State()
	q := queue.New(state.Session.ID, a.snapshots, a.history, a.log)
	if err := q.Restore(ctx); err != nil {
		a.log.Warn("Failed to restore queue snapshot", "session", state.Session.ID, "error", err)
	}

	a.mu.Lock()
	a.queue = q
	a.pipeline = pipeline.New(
		q, a.workflows, a.broker,
		a.transcriber, a.translator,
		a.cfg.Retry, a.log,
	)
	a.mu.Unlock()

	if err := a.broker.Publish(ctx, domain.SessionChannel(state.Session.ID), domain.Event{
		Type:      domain.EventParticipantJoin,
		SessionID: state.Session.ID,
		UserID:    a.userID,
		Timestamp: time.Now(),
	}); err != nil {
		a.log.Warn("Failed to announce join", "error", err)
	}
	return nil
}

// Leave leaves the current session and detaches its queue.
func (a *App) Leave(ctx context.Context) error {
	state := a.manager.State()
	if state.Session != nil {
		if err := a.broker.Publish(ctx, domain.SessionChannel(state.Session.ID), domain.Event{
			Type:      domain.EventParticipantLeave,
			SessionID: state.Session.ID,
			UserID:    a.userID,
			Timestamp: time.Now(),
		}); err != nil {
			a.log.Warn("Failed to announce leave", "error", err)
		}
	}

	if err := a.manager.Leave(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.queue = nil
	a.pipeline = nil
	a.mu.Unlock()
	return nil
}

// SendVoice runs one audio clip through the pipeline.
func (a *App) SendVoice(ctx context.Context, audio []byte, contextPrompt string) (domain.Message, error) {
	p, state, err := a.current()
	if err != nil {
		return domain.Message{}, err
	}
	return p.Run(ctx, pipeline.VoiceRequest{
		SessionID:      state.Session.ID,
		UserID:         a.userID,
		Audio:          audio,
		ContextPrompt:  contextPrompt,
		SourceLanguage: a.sourceLanguage(state),
		TargetLanguage: a.targetLanguage(state),
	})
}

// SendText runs one typed message through the pipeline.
func (a *App) SendText(ctx context.Context, text string) (domain.Message, error) {
	p, state, err := a.current()
	if err != nil {
		return domain.Message{}, err
	}
	return p.SendText(ctx, pipeline.TextRequest{
		SessionID:      state.Session.ID,
		UserID:         a.userID,
		Text:           text,
		SourceLanguage: a.sourceLanguage(state),
		TargetLanguage: a.targetLanguage(state),
	})
}

// ResumeWorkflow resumes an interrupted pipeline run.
func (a *App) ResumeWorkflow(ctx context.Context, workflowID string) (domain.Message, error) {
	p, _, err := a.current()
	if err != nil {
		return domain.Message{}, err
	}
	return p.ResumeRun(ctx, workflowID)
}

// RecoverableWorkflows lists workflows that can be resumed.
func (a *App) RecoverableWorkflows() []domain.WorkflowProgress {
	return a.workflows.RecoverableWorkflows()
}

// Session returns the current session state.
func (a *App) Session() domain.SessionState {
	return a.manager.State()
}

// ExtendSession pushes the session lease forward.
func (a *App) ExtendSession(ctx context.Context) error {
	return a.manager.Extend(ctx)
}

// Len implements health.QueueInspector against the current queue.
func (a *App) Len() int {
	a.mu.Lock()
	q := a.queue
	a.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.Len()
}

// Failed implements health.QueueInspector against the current queue.
func (a *App) Failed() []domain.Message {
	a.mu.Lock()
	q := a.queue
	a.mu.Unlock()
	if q == nil {
		return nil
	}
	return q.Failed()
}

func (a *App) current() (*pipeline.Pipeline, domain.SessionState, error) {
	state := a.manager.State()

	a.mu.Lock()
	p := a.pipeline
	a.mu.Unlock()

	if p == nil || state.Session == nil {
		return nil, state, errors.New("not in a session")
	}
	return p, state, nil
}

func (a *App) sourceLanguage(state domain.SessionState) string {
	if state.Session != nil && state.Session.SourceLanguage != "" {
		return state.Session.SourceLanguage
	}
	return a.cfg.Languages.DefaultSource
}

func (a *App) targetLanguage(state domain.SessionState) string {
	if state.Session != nil && state.Session.TargetLanguage != "" {
		return state.Session.TargetLanguage
	}
	return a.cfg.Languages.DefaultTarget
}

// resumeActiveSession rejoins the session recorded before the last shutdown.
func (a *App) resumeActiveSession(ctx context.Context) error {
	sessionID, err := a.snapshots.LoadActiveSession(ctx, a.userID)
	if err != nil || sessionID == "" {
		return err
	}

	record, err := a.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		// The session died while we were away, drop the pointer
		return a.snapshots.ClearActiveSession(ctx, a.userID)
	}
	if err != nil {
		return err
	}
	if record.Expired(time.Now()) {
		return a.snapshots.ClearActiveSession(ctx, a.userID)
	}

	a.log.Info("Resuming previous session", "session", record.ID, "code", record.Code)
	return a.join(ctx, record.Code, false)
}

// handleEvent merges remote participants' message events into the local
// queue view. Own events are already applied by the pipeline.
func (a *App) handleEvent(ev domain.Event) {
	if ev.UserID == a.userID || ev.Message == nil {
		return
	}

	a.mu.Lock()
	q := a.queue
	a.mu.Unlock()
	if q == nil {
		return
	}

	ctx := context.Background()
	if _, ok := q.Get(ev.Message.ID); !ok {
		q.Add(ctx, *ev.Message)
		return
	}

	switch ev.Type {
	case domain.EventMessageUpdated, domain.EventMessageDelivered:
		if ev.Message.Translation != "" {
			q.SetTranslation(ctx, ev.Message.ID, ev.Message.Translation, ev.Message.PerformanceMetrics.TranslationMs)
		}
		q.UpdateStatus(ctx, ev.Message.ID, ev.Message.Status)
	}
}

// alwaysUp is the pinger used when no external realtime backend is
// configured; the in-process broker cannot go down.
type alwaysUp struct{}

func (alwaysUp) Ping(ctx context.Context) error { return nil }

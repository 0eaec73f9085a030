// Package pipeline runs messages through the transcribe/translate/deliver
// stages, checkpointing progress so an interrupted run can resume.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/realtime"
	"github.com/vietddude/translive/internal/infra/retry"
	"github.com/vietddude/translive/internal/infra/speech"
	"github.com/vietddude/translive/internal/metrics"
	"github.com/vietddude/translive/internal/queue"
	"github.com/vietddude/translive/internal/workflow"
)

// Stage names. Resume dispatches on these, so they are part of the
// persisted snapshot format.
const (
	StepTranscribe = "transcribe"
	StepTranslate  = "translate"
	StepDeliver    = "deliver"
)

// VoiceSteps is the stage list for an audio message.
func VoiceSteps() []string { return []string{StepTranscribe, StepTranslate, StepDeliver} }

// TextSteps is the stage list for a typed message.
func TextSteps() []string { return []string{StepTranslate, StepDeliver} }

// VoiceRequest is one recorded audio clip to translate.
type VoiceRequest struct {
	SessionID      string
	UserID         string
	Audio          []byte
	ContextPrompt  string
	SourceLanguage string
	TargetLanguage string
}

// TextRequest is one typed message to translate.
type TextRequest struct {
	SessionID      string
	UserID         string
	Text           string
	SourceLanguage string
	TargetLanguage string
}

// Pipeline drives messages through the speech services, updating the queue
// and workflow state at every stage and publishing progress to the session
// channel.
type Pipeline struct {
	queue       *queue.Queue
	workflows   *workflow.Service
	broker      realtime.Broker
	transcriber speech.Transcriber
	translator  speech.Translator
	retryCfg    retry.Config
	log         *slog.Logger
}

// New assembles a pipeline. broker may be nil in contexts with no realtime
// fan-out.
func New(
	q *queue.Queue,
	workflows *workflow.Service,
	broker realtime.Broker,
	transcriber speech.Transcriber,
	translator speech.Translator,
	retryCfg retry.Config,
	log *slog.Logger,
) *Pipeline {
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.DefaultConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		queue:       q,
		workflows:   workflows,
		broker:      broker,
		transcriber: transcriber,
		translator:  translator,
		retryCfg:    retryCfg,
		log:         log,
	}
}

// Run processes one audio clip end to end. The returned message reflects
// its final queue state; on stage failure the workflow is left recoverable
// and the error is returned alongside the failed message.
func (p *Pipeline) Run(ctx context.Context, req VoiceRequest) (domain.Message, error) {
	msg := p.queue.Add(ctx, domain.Message{
		SessionID:        req.SessionID,
		UserID:           req.UserID,
		OriginalLanguage: req.SourceLanguage,
		TargetLanguage:   req.TargetLanguage,
	})
	p.publish(ctx, domain.EventMessageQueued, msg)

	workflowID := p.workflows.CreateWorkflow(ctx, req.SessionID, VoiceSteps())
	err := p.advance(ctx, workflowID, msg.ID, req.Audio, req.ContextPrompt)

	final, _ := p.queue.Get(msg.ID)
	return final, err
}

// SendText processes a typed message. Transcription is skipped.
func (p *Pipeline) SendText(ctx context.Context, req TextRequest) (domain.Message, error) {
	msg := p.queue.Add(ctx, domain.Message{
		SessionID:        req.SessionID,
		UserID:           req.UserID,
		OriginalText:     req.Text,
		OriginalLanguage: req.SourceLanguage,
		TargetLanguage:   req.TargetLanguage,
	})
	p.publish(ctx, domain.EventMessageQueued, msg)

	workflowID := p.workflows.CreateWorkflow(ctx, req.SessionID, TextSteps())
	err := p.advance(ctx, workflowID, msg.ID, nil, "")

	final, _ := p.queue.Get(msg.ID)
	return final, err
}

// ResumeRun resumes an interrupted workflow from its first incomplete stage.
// The message and any stage inputs are recovered from the workflow snapshot.
func (p *Pipeline) ResumeRun(ctx context.Context, workflowID string) (domain.Message, error) {
	w, ok := p.workflows.Get(workflowID)
	if !ok {
		return domain.Message{}, &domain.ValidationError{Field: "workflow id", Reason: "unknown workflow"}
	}

	if !p.workflows.ResumeWorkflow(ctx, workflowID) {
		return domain.Message{}, &domain.StateError{
			Entity: "workflow",
			From:   string(w.OverallStatus),
			To:     string(domain.WorkflowStatusActive),
		}
	}

	messageID, audio, prompt := stepInputs(w)
	if messageID == "" {
		return domain.Message{}, &domain.ValidationError{Field: "workflow", Reason: "no message attached"}
	}

	// A failed message is terminal; resume works on a fresh retry copy.
	if msg, ok := p.queue.Get(messageID); ok && msg.Status == domain.MessageStatusFailed {
		retried, ok := p.queue.Retry(ctx, messageID)
		if !ok {
			return domain.Message{}, &domain.StateError{
				Entity: "message",
				From:   string(domain.MessageStatusFailed),
				To:     string(domain.MessageStatusQueued),
			}
		}
		messageID = retried.ID
		p.publish(ctx, domain.EventMessageQueued, retried)
	}

	p.log.Info("Resuming pipeline run", "workflow", workflowID, "message", messageID)
	err := p.advance(ctx, workflowID, messageID, audio, prompt)

	final, _ := p.queue.Get(messageID)
	return final, err
}

// advance executes stages starting at the workflow's current step until the
// workflow reaches a terminal state. On a stage error the step and message
// are failed and the workflow becomes recoverable.
func (p *Pipeline) advance(ctx context.Context, workflowID, messageID string, audio []byte, prompt string) error {
	p.queue.UpdateStatus(ctx, messageID, domain.MessageStatusProcessing)

	for {
		w, ok := p.workflows.Get(workflowID)
		if !ok || w.OverallStatus.Terminal() {
			return nil
		}
		if w.CurrentStepIndex >= len(w.Steps) {
			return nil
		}

		idx := w.CurrentStepIndex
		step := w.Steps[idx]

		var err error
		switch step.Name {
		case StepTranscribe:
			err = p.transcribe(ctx, workflowID, idx, messageID, audio, prompt)
		case StepTranslate:
			err = p.translate(ctx, workflowID, idx, messageID)
		case StepDeliver:
			err = p.deliver(ctx, workflowID, idx, messageID)
		default:
			err = fmt.Errorf("unknown pipeline stage %q", step.Name)
		}

		if err != nil {
			p.workflows.FailStep(ctx, workflowID, idx, err)
			p.queue.UpdateStatus(ctx, messageID, domain.MessageStatusFailed)
			if msg, ok := p.queue.Get(messageID); ok {
				p.publish(ctx, domain.EventMessageUpdated, msg)
			}
			p.log.Warn("Pipeline stage failed",
				"workflow", workflowID, "stage", step.Name, "message", messageID, "error", err)
			return err
		}
	}
}

func (p *Pipeline) transcribe(ctx context.Context, workflowID string, idx int, messageID string, audio []byte, prompt string) error {
	p.workflows.StartStep(ctx, workflowID, idx, map[string]any{
		"message_id":     messageID,
		"audio":          audio,
		"context_prompt": prompt,
	})

	start := time.Now()
	var transcript *speech.Transcript
	err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) error {
		var opErr error
		transcript, opErr = p.transcriber.Transcribe(ctx, audio, prompt)
		return opErr
	}, nil)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	elapsed := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(StepTranscribe).Observe(elapsed.Seconds())

	p.queue.SetTranscription(ctx, messageID, transcript.Text, transcript.Language, elapsed.Milliseconds())
	p.workflows.CompleteStep(ctx, workflowID, idx, map[string]any{
		"text":     transcript.Text,
		"language": transcript.Language,
	})
	if msg, ok := p.queue.Get(messageID); ok {
		p.publish(ctx, domain.EventMessageUpdated, msg)
	}
	return nil
}

func (p *Pipeline) translate(ctx context.Context, workflowID string, idx int, messageID string) error {
	msg, ok := p.queue.Get(messageID)
	if !ok {
		return &domain.ValidationError{Field: "message id", Reason: "message left the queue"}
	}
	if msg.OriginalText == "" {
		return &domain.ValidationError{Field: "message", Reason: "nothing to translate"}
	}

	p.workflows.StartStep(ctx, workflowID, idx, map[string]any{
		"message_id": messageID,
		"text":       msg.OriginalText,
		"source":     msg.OriginalLanguage,
		"target":     msg.TargetLanguage,
	})

	start := time.Now()
	var translation string
	err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) error {
		var opErr error
		translation, opErr = p.translator.Translate(ctx, msg.OriginalText, msg.OriginalLanguage, msg.TargetLanguage)
		return opErr
	}, nil)
	if err != nil {
		return fmt.Errorf("translate: %w", err)
	}

	elapsed := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(StepTranslate).Observe(elapsed.Seconds())

	p.queue.SetTranslation(ctx, messageID, translation, elapsed.Milliseconds())
	p.workflows.CompleteStep(ctx, workflowID, idx, map[string]any{"translation": translation})
	if updated, ok := p.queue.Get(messageID); ok {
		p.publish(ctx, domain.EventMessageUpdated, updated)
	}
	return nil
}

func (p *Pipeline) deliver(ctx context.Context, workflowID string, idx int, messageID string) error {
	p.workflows.StartStep(ctx, workflowID, idx, map[string]any{"message_id": messageID})

	start := time.Now()
	p.queue.UpdateStatus(ctx, messageID, domain.MessageStatusDisplayed)

	msg, ok := p.queue.Get(messageID)
	if !ok {
		return &domain.ValidationError{Field: "message id", Reason: "message left the queue"}
	}
	if msg.Status != domain.MessageStatusDisplayed {
		return &domain.StateError{Entity: "message", From: string(msg.Status), To: string(domain.MessageStatusDisplayed)}
	}
	p.publish(ctx, domain.EventMessageDelivered, msg)

	metrics.PipelineStageDuration.WithLabelValues(StepDeliver).Observe(time.Since(start).Seconds())
	p.workflows.CompleteStep(ctx, workflowID, idx, nil)
	return nil
}

func (p *Pipeline) publish(ctx context.Context, eventType domain.EventType, msg domain.Message) {
	if p.broker == nil {
		return
	}
	event := domain.Event{
		Type:      eventType,
		SessionID: msg.SessionID,
		UserID:    msg.UserID,
		Message:   &msg,
		Timestamp: time.Now(),
	}
	if err := p.broker.Publish(ctx, domain.SessionChannel(msg.SessionID), event); err != nil {
		p.log.Warn("Failed to publish event", "type", eventType, "session", msg.SessionID, "error", err)
	}
}

// stepInputs recovers the message id and transcribe inputs recorded in a
// workflow's step data. Audio survives a JSON round-trip as base64.
func stepInputs(w domain.WorkflowProgress) (messageID string, audio []byte, prompt string) {
	for _, step := range w.Steps {
		if step.Data == nil {
			continue
		}
		if id, ok := step.Data["message_id"].(string); ok && messageID == "" {
			messageID = id
		}
		if raw, ok := step.Data["audio"]; ok {
			audio = decodeAudio(raw)
		}
		if s, ok := step.Data["context_prompt"].(string); ok {
			prompt = s
		}
	}
	return messageID, audio, prompt
}

func decodeAudio(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil
		}
		return decoded
	default:
		return nil
	}
}

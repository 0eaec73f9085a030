package speech

import (
	"context"
	"strings"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
)

// StubTranscriber is a deterministic Transcriber for tests and local mode.
// It returns the audio bytes interpreted as text, or a fixed transcript for
// empty input.
type StubTranscriber struct {
	// ProcessingDelay simulates recognition time.
	ProcessingDelay time.Duration
	// Language reported on every transcript.
	Language string
	// Err, when set, is returned on every call.
	Err error
}

// NewStubTranscriber creates a stub reporting English transcripts.
func NewStubTranscriber() *StubTranscriber {
	return &StubTranscriber{Language: "en"}
}

func (s *StubTranscriber) Transcribe(
	ctx context.Context,
	audio []byte,
	contextPrompt string,
) (*Transcript, error) {
	if s.ProcessingDelay > 0 {
		select {
		case <-time.After(s.ProcessingDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}

	text := strings.TrimSpace(string(audio))
	if text == "" {
		text = "hello"
	}
	return &Transcript{
		Text:     text,
		Language: s.Language,
		Duration: time.Duration(len(audio)) * time.Millisecond,
	}, nil
}

// StubTranslator is a deterministic Translator for tests and local mode.
// Without a dictionary entry it returns "[target] " + original text.
type StubTranslator struct {
	ProcessingDelay time.Duration
	// Dictionary maps [targetLang][sourceText] to a translation.
	Dictionary map[string]map[string]string
	// Err, when set, is returned on every call.
	Err error
}

// NewStubTranslator creates a stub with an empty dictionary.
func NewStubTranslator() *StubTranslator {
	return &StubTranslator{}
}

func (s *StubTranslator) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
) (string, error) {
	if s.ProcessingDelay > 0 {
		select {
		case <-time.After(s.ProcessingDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.Err != nil {
		return "", s.Err
	}
	if targetLang == "" {
		return "", &domain.ValidationError{Field: "target language", Reason: "must not be empty"}
	}

	if byLang, ok := s.Dictionary[targetLang]; ok {
		if translated, ok := byLang[text]; ok {
			return translated, nil
		}
	}
	return "[" + targetLang + "] " + text, nil
}

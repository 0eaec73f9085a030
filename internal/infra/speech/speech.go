// Package speech wraps the external transcription and translation services.
package speech

import (
	"context"
	"time"
)

// Transcript is the result of transcribing one audio clip.
type Transcript struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Duration time.Duration `json:"duration"`
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	// Transcribe converts an audio clip; contextPrompt biases recognition
	// toward recent conversation vocabulary and may be empty.
	Transcribe(ctx context.Context, audio []byte, contextPrompt string) (*Transcript, error)
}

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

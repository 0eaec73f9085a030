package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/translive/internal/core/domain"
)

func TestStubTranscriber_EchoesAudioAsText(t *testing.T) {
	s := NewStubTranscriber()
	got, err := s.Transcribe(context.Background(), []byte("good morning"), "")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got.Text != "good morning" {
		t.Errorf("unexpected text %q", got.Text)
	}
	if got.Language != "en" {
		t.Errorf("unexpected language %q", got.Language)
	}
}

func TestStubTranslator_DictionaryHit(t *testing.T) {
	s := NewStubTranslator()
	s.Dictionary = map[string]map[string]string{
		"es": {"Hello world.": "Hola mundo."},
	}

	got, err := s.Translate(context.Background(), "Hello world.", "en", "es")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "Hola mundo." {
		t.Errorf("unexpected translation %q", got)
	}
}

func TestStubTranslator_FallbackPrefix(t *testing.T) {
	s := NewStubTranslator()
	got, err := s.Translate(context.Background(), "Good evening.", "en", "fr")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "[fr] Good evening." {
		t.Errorf("unexpected translation %q", got)
	}
}

func TestStubTranslator_EmptyTarget(t *testing.T) {
	s := NewStubTranslator()
	_, err := s.Translate(context.Background(), "hi", "en", "")
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/translive/internal/core/domain"
)

func TestHTTPTranslator_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["source_language"] != "en" || req["target_language"] != "es" {
			t.Errorf("unexpected language pair: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translation": "Hola."})
	}))
	defer srv.Close()

	tr := NewHTTPTranslator(Config{TranslatorURL: srv.URL})
	got, err := tr.Translate(context.Background(), "Hello.", "en", "es")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "Hola." {
		t.Errorf("unexpected translation %q", got)
	}
}

func TestHTTPTranslator_AuthFailureNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := NewHTTPTranslator(Config{TranslatorURL: srv.URL})
	_, err := tr.Translate(context.Background(), "Hello.", "en", "es")

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if domain.Retryable(err) {
		t.Error("auth failure must not be retryable")
	}
}

func TestHTTPTranscriber_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{TranscriberURL: srv.URL})
	_, err := tr.Transcribe(context.Background(), []byte("audio"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.Retryable(err) {
		t.Errorf("5xx should be retryable, got %v", err)
	}
}

func TestHTTPTranscriber_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("prompt") != "recent context" {
			t.Errorf("missing context prompt")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "hello there", "language": "en", "duration_ms": 1200.0,
		})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{TranscriberURL: srv.URL})
	got, err := tr.Transcribe(context.Background(), []byte{1, 2, 3}, "recent context")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got.Text != "hello there" || got.Language != "en" {
		t.Errorf("unexpected transcript %+v", got)
	}
}

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
)

// Config holds the speech service endpoints.
type Config struct {
	TranscriberURL string        `yaml:"transcriber_url"`
	TranslatorURL  string        `yaml:"translator_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// classifyHTTPStatus maps a non-2xx response onto the error taxonomy so
// callers retry only what is worth retrying.
func classifyHTTPStatus(op string, status int, body []byte) error {
	inner := fmt.Errorf("status %d: %s", status, truncate(body, 200))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &domain.AuthError{Op: op, Err: inner}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &domain.ValidationError{Field: op, Reason: inner.Error()}
	default:
		// 429, 5xx and everything else: transient
		return &domain.NetworkError{Op: op, Err: inner}
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// HTTPTranscriber calls a Whisper-style transcription endpoint.
type HTTPTranscriber struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTranscriber creates an HTTP transcription client.
func NewHTTPTranscriber(cfg Config) *HTTPTranscriber {
	return &HTTPTranscriber{
		endpoint:   cfg.TranscriberURL,
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

// Transcribe uploads the audio clip and returns its transcript.
func (t *HTTPTranscriber) Transcribe(
	ctx context.Context,
	audio []byte,
	contextPrompt string,
) (*Transcript, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio.webm")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	if contextPrompt != "" {
		if err := mw.WriteField("prompt", contextPrompt); err != nil {
			return nil, fmt.Errorf("write prompt: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "transcribe", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Op: "transcribe", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPStatus("transcribe", resp.StatusCode, body)
	}

	var out struct {
		Text       string  `json:"text"`
		Language   string  `json:"language"`
		DurationMs float64 `json:"duration_ms"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}

	return &Transcript{
		Text:     out.Text,
		Language: out.Language,
		Duration: time.Duration(out.DurationMs) * time.Millisecond,
	}, nil
}

// HTTPTranslator calls a completion-style translation endpoint.
type HTTPTranslator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTranslator creates an HTTP translation client.
func NewHTTPTranslator(cfg Config) *HTTPTranslator {
	return &HTTPTranslator{
		endpoint:   cfg.TranslatorURL,
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

// Translate converts text from sourceLang to targetLang.
func (t *HTTPTranslator) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
) (string, error) {
	reqBody := map[string]string{
		"text":            text,
		"source_language": sourceLang,
		"target_language": targetLang,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", &domain.NetworkError{Op: "translate", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.NetworkError{Op: "translate", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus("translate", resp.StatusCode, body)
	}

	var out struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode translation: %w", err)
	}
	return out.Translation, nil
}

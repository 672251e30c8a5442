// Package whisper provides a pronunciation evaluator backed by a running
// whisper.cpp server.
//
// The recording is transcribed through POST /inference and the transcript
// is compared against the expected text with Double Metaphone codes and
// Jaro-Winkler similarity. The verdict is rendered in the same JSON shape
// an LLM evaluator is asked for, so callers parse both the same way.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	raw, err := p.Evaluate(ctx, req)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
)

const (
	defaultLanguage  = "en"
	correctThreshold = 80
	fluentCoverage   = 0.9
)

// Compile-time assertion that Provider implements evaluator.Provider.
var _ evaluator.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server.
// When empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language code sent to the server. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient sets the HTTP client used for inference calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements evaluator.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL (e.g.,
// "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// verdict mirrors the evaluator JSON shape.
type verdict struct {
	Accuracy   int    `json:"accuracy"`
	Feedback   string `json:"feedback"`
	Fluency    string `json:"fluency"`
	Suggestion string `json:"suggestion"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Evaluate implements evaluator.Provider.
func (p *Provider) Evaluate(ctx context.Context, req evaluator.Request) (string, error) {
	audio, err := req.Audio()
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	transcript, err := p.transcribe(ctx, audio, req.MediaType())
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(judge(req.ExpectedText, transcript))
	if err != nil {
		return "", fmt.Errorf("whisper: encode verdict: %w", err)
	}
	return string(out), nil
}

// judge turns a transcript into a verdict for the expected text.
func judge(expected, transcript string) verdict {
	accuracy, words := score(expected, transcript)
	if len(words) == 0 {
		return verdict{
			Accuracy:   0,
			Feedback:   "Thầy chưa nghe rõ con đọc gì cả.",
			Fluency:    "Con hãy đọc to và rõ hơn nhé.",
			Suggestion: fmt.Sprintf("Con thử đọc lại %q nhé!", expected),
		}
	}

	v := verdict{Accuracy: accuracy, IsCorrect: accuracy >= correctThreshold}
	if v.IsCorrect {
		v.Feedback = fmt.Sprintf("Tuyệt vời! Con đọc %q rất chuẩn.", expected)
	} else {
		v.Feedback = fmt.Sprintf("Gần đúng rồi! Thầy nghe thành %q.", strings.TrimSpace(transcript))
	}

	heard := 0
	weakest := words[0]
	for _, w := range words {
		if w.score >= 0.8 {
			heard++
		}
		if w.score < weakest.score {
			weakest = w
		}
	}
	if float64(heard)/float64(len(words)) >= fluentCoverage {
		v.Fluency = "Con đọc rất trôi chảy!"
	} else {
		v.Fluency = "Con đọc còn hơi ngập ngừng, cứ từ từ nhé."
	}
	if weakest.score < 1 {
		v.Suggestion = fmt.Sprintf("Con chú ý từ %q nhé.", weakest.expected)
	} else {
		v.Suggestion = "Con hãy thử một từ khó hơn nhé!"
	}
	return v
}

// transcribe uploads the artifact and returns the server's transcript.
func (p *Provider) transcribe(ctx context.Context, audio []byte, mediaType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "attempt"+extension(mediaType))
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("whisper: write audio: %w", err)
	}
	fields := map[string]string{
		"response_format": "json",
		"language":        p.language,
		"model":           p.model,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}

func extension(mediaType string) string {
	switch mediaType {
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	default:
		return ".bin"
	}
}

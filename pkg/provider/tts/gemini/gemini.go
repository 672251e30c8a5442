// Package gemini provides a Google Gemini-backed TTS provider using the
// native audio output of the generateContent API. It implements the
// tts.Provider interface.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/provider/tts"
)

const (
	defaultModel      = "gemini-2.5-flash-preview-tts"
	defaultVoice      = "Kore"
	defaultSampleRate = 24000
	promptPrefix      = "Say clearly: "
)

// prebuiltVoices is the subset of Gemini prebuilt voices offered by ListVoices.
var prebuiltVoices = []struct{ id, style string }{
	{"Kore", "firm"},
	{"Puck", "upbeat"},
	{"Aoede", "breezy"},
	{"Leda", "youthful"},
	{"Charon", "informative"},
	{"Zephyr", "bright"},
}

// Option is a functional option for configuring the Gemini Provider.
type Option func(*Provider)

// WithModel sets the Gemini TTS model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API endpoint. Useful for proxies and tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider backed by the Gemini API.
type Provider struct {
	client     *genai.Client
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a new Gemini TTS provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions.BaseURL = p.baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.client = client
	return p, nil
}

// Synthesize implements tts.Provider. The API answers with raw 16-bit PCM;
// the sample rate is read from the returned MIME type and defaults to 24 kHz.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("gemini: text must not be empty")
	}
	name := voice.ID
	if name == "" {
		name = defaultVoice
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name},
			},
		},
	}
	contents := genai.Text(promptPrefix + text)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate speech: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return &tts.Speech{
			PCM:    part.InlineData.Data,
			Format: audio.Format{SampleRate: sampleRate(part.InlineData.MIMEType), Channels: 1},
		}, nil
	}
	return nil, nil
}

// sampleRate extracts the rate parameter of "audio/L16;codec=pcm;rate=24000".
func sampleRate(mimeType string) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return defaultSampleRate
	}
	if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
		return r
	}
	return defaultSampleRate
}

// ListVoices returns the prebuilt voices. Gemini has no voice catalogue
// endpoint, so the list is static.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, 0, len(prebuiltVoices))
	for _, v := range prebuiltVoices {
		out = append(out, tts.VoiceProfile{
			ID:       v.id,
			Name:     v.id,
			Provider: "gemini",
			Metadata: map[string]string{"style": v.style},
		})
	}
	return out, nil
}

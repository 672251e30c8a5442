// Package gemini provides a Google Gemini-backed pronunciation evaluator.
// The recording is sent inline next to a grading prompt and the model is
// asked for a JSON answer. It implements the evaluator.Provider interface.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
)

const defaultModel = "gemini-2.5-flash"

// Option is a functional option for configuring the Gemini Provider.
type Option func(*Provider)

// WithModel sets the Gemini model (e.g., "gemini-2.5-flash").
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

// WithSystemInstruction sets the persona the model grades as.
func WithSystemInstruction(s string) Option {
	return func(p *Provider) { p.system = s }
}

// Provider implements evaluator.Provider backed by the Gemini API.
type Provider struct {
	client     *genai.Client
	model      string
	baseURL    string
	httpClient *http.Client
	system     string
}

var _ evaluator.Provider = (*Provider)(nil)

// New creates a new Gemini evaluator. apiKey must be non-empty.
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

// responseSchema constrains the answer to the evaluator JSON shape.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"accuracy":   {Type: genai.TypeInteger},
		"feedback":   {Type: genai.TypeString},
		"fluency":    {Type: genai.TypeString},
		"suggestion": {Type: genai.TypeString},
		"isCorrect":  {Type: genai.TypeBoolean},
	},
	Required: []string{"accuracy", "feedback", "fluency", "suggestion", "isCorrect"},
}

// Evaluate implements evaluator.Provider.
func (p *Provider) Evaluate(ctx context.Context, req evaluator.Request) (string, error) {
	audio, err := req.Audio()
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio, req.MediaType()),
			genai.NewPartFromText(evaluator.Prompt(req)),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	}
	if p.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: no candidates in response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

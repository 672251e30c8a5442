// Package openai provides an LLM provider backed by the OpenAI API or any
// OpenAI-compatible endpoint such as a llama.cpp or vLLM server.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/joytutor/pkg/provider/llm"
)

// ErrRefused is returned when the model declines to answer.
var ErrRefused = errors.New("openai: model refused")

// Provider implements [llm.Provider] with the chat completions API.
type Provider struct {
	client oai.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*[]option.RequestOption, *settings)

type settings struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// WithBaseURL points the client at an OpenAI-compatible server. With a base
// URL the API key may be empty.
func WithBaseURL(url string) Option {
	return func(_ *[]option.RequestOption, s *settings) { s.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(ro *[]option.RequestOption, _ *settings) {
		*ro = append(*ro, option.WithOrganization(org))
	}
}

// WithMaxRetries sets how often the SDK retries a failed request. The SDK
// default is 2.
func WithMaxRetries(n int) Option {
	return func(ro *[]option.RequestOption, _ *settings) {
		*ro = append(*ro, option.WithMaxRetries(n))
	}
}

// WithTimeout bounds each HTTP request. Ignored with [WithHTTPClient].
func WithTimeout(d time.Duration) Option {
	return func(_ *[]option.RequestOption, s *settings) { s.timeout = d }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(_ *[]option.RequestOption, s *settings) { s.client = hc }
}

// New returns a provider that sends every request to model.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	var (
		ro []option.RequestOption
		s  settings
	)
	for _, o := range opts {
		o(&ro, &s)
	}
	if apiKey == "" && s.baseURL == "" {
		return nil, errors.New("openai: an API key is required for api.openai.com")
	}

	if apiKey != "" {
		ro = append(ro, option.WithAPIKey(apiKey))
	}
	if s.baseURL != "" {
		ro = append(ro, option.WithBaseURL(s.baseURL))
	}
	switch {
	case s.client != nil:
		ro = append(ro, option.WithHTTPClient(s.client))
	case s.timeout > 0:
		ro = append(ro, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}
	return &Provider{client: oai.NewClient(ro...), model: model}, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices in response")
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, msg.Refusal)
	}
	return &llm.CompletionResponse{
		Content: msg.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: msgs,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}

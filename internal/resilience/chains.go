package resilience

import (
	"context"

	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
	"github.com/MrWong99/joytutor/pkg/provider/llm"
	"github.com/MrWong99/joytutor/pkg/provider/tts"
)

// chain is the part every provider-typed fallback shares: a group and the
// methods that only touch the group.
type chain[T any] struct {
	group *FallbackGroup[T]
}

func newChain[T any](primary T, name string, cfg FallbackConfig) chain[T] {
	return chain[T]{group: NewFallbackGroup(primary, name, cfg)}
}

// AddFallback appends a backend after the ones already registered.
func (c chain[T]) AddFallback(name string, p T) { c.group.AddFallback(name, p) }

// Status reports the breaker state of every backend, primary first.
func (c chain[T]) Status() []EntryStatus { return c.group.Status() }

// ─── Evaluator ───────────────────────────────────────────────────────────────

// EvaluatorFallback scores recordings with the first healthy evaluator.
//
// Only transport failures move on to the next evaluator. A backend that answers
// with malformed text has answered; its text is returned unchanged.
type EvaluatorFallback struct {
	chain[evaluator.Provider]
}

var _ evaluator.Provider = (*EvaluatorFallback)(nil)

// NewEvaluatorFallback starts a chain with primary as the preferred evaluator.
func NewEvaluatorFallback(primary evaluator.Provider, name string, cfg FallbackConfig) *EvaluatorFallback {
	return &EvaluatorFallback{newChain(primary, name, cfg)}
}

func (f *EvaluatorFallback) Evaluate(ctx context.Context, req evaluator.Request) (string, error) {
	return ExecuteWithResult(f.group, func(p evaluator.Provider) (string, error) {
		return p.Evaluate(ctx, req)
	})
}

// ─── TTS ─────────────────────────────────────────────────────────────────────

// TTSFallback renders tutor speech with the first healthy voice backend. A
// backend that answers without audio has answered; the nil speech is returned
// as is.
type TTSFallback struct {
	chain[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback starts a chain with primary as the preferred voice backend.
func NewTTSFallback(primary tts.Provider, name string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{newChain(primary, name, cfg)}
}

func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Speech, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.Speech, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// ─── LLM ─────────────────────────────────────────────────────────────────────

// LLMFallback generates lessons and chat replies with the first healthy model.
type LLMFallback struct {
	chain[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback starts a chain with primary as the preferred model.
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{newChain(primary, name, cfg)}
}

func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

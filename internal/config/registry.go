package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
	"github.com/MrWong99/joytutor/pkg/provider/llm"
	"github.com/MrWong99/joytutor/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	evaluator  map[string]func(ProviderEntry) (evaluator.Provider, error)
	tts        map[string]func(ProviderEntry) (tts.Provider, error)
	llm        map[string]func(ProviderEntry) (llm.Provider, error)
	microphone map[string]func(ProviderEntry) (audio.Microphone, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		evaluator:  make(map[string]func(ProviderEntry) (evaluator.Provider, error)),
		tts:        make(map[string]func(ProviderEntry) (tts.Provider, error)),
		llm:        make(map[string]func(ProviderEntry) (llm.Provider, error)),
		microphone: make(map[string]func(ProviderEntry) (audio.Microphone, error)),
	}
}

// RegisterEvaluator registers a pronunciation evaluator factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEvaluator(name string, factory func(ProviderEntry) (evaluator.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluator[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterMicrophone registers a local microphone factory under name.
func (r *Registry) RegisterMicrophone(name string, factory func(ProviderEntry) (audio.Microphone, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.microphone[name] = factory
}

// CreateEvaluator instantiates an evaluator using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has
// been registered for that name.
func (r *Registry) CreateEvaluator(entry ProviderEntry) (evaluator.Provider, error) {
	return create(r, r.evaluator, "evaluator", entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateMicrophone instantiates a microphone using the factory registered under entry.Name.
func (r *Registry) CreateMicrophone(entry ProviderEntry) (audio.Microphone, error) {
	return create(r, r.microphone, "microphone", entry)
}

// Has reports whether a factory of kind ("evaluator", "tts", "llm",
// "microphone") is registered under name.
func (r *Registry) Has(kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ok bool
	switch kind {
	case "evaluator":
		_, ok = r.evaluator[name]
	case "tts":
		_, ok = r.tts[name]
	case "llm":
		_, ok = r.llm[name]
	case "microphone":
		_, ok = r.microphone[name]
	}
	return ok
}

func create[T any](r *Registry, factories map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

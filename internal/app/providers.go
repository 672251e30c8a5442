package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/joytutor/internal/config"
	"github.com/MrWong99/joytutor/internal/health"
	"github.com/MrWong99/joytutor/internal/observe"
	"github.com/MrWong99/joytutor/internal/resilience"
	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
	"github.com/MrWong99/joytutor/pkg/provider/llm"
	"github.com/MrWong99/joytutor/pkg/provider/tts"
)

// Providers holds one interface value per collaborator slot. Nil means the
// collaborator is not configured. [BuildProviders] fills it from the config
// registry; tests construct it directly with mocks.
type Providers struct {
	Evaluator  evaluator.Provider
	TTS        tts.Provider
	LLM        llm.Provider
	Microphone audio.Microphone
}

// statusReporter is implemented by the resilience fallback wrappers.
type statusReporter interface {
	Status() []resilience.EntryStatus
}

// Checkers returns one readiness check per provider chain that reports
// circuit breaker state. Providers without breakers are not checked.
func (ps *Providers) Checkers() []health.Checker {
	var out []health.Checker
	for _, slot := range []struct {
		name string
		p    any
	}{
		{"evaluator", ps.Evaluator},
		{"tts", ps.TTS},
		{"llm", ps.LLM},
	} {
		if sr, ok := slot.p.(statusReporter); ok {
			out = append(out, health.BreakerCheck(slot.name, sr.Status))
		}
	}
	return out
}

// named pairs a created provider with the label its circuit breaker uses.
type named[T any] struct {
	label string
	p     T
}

// BuildProviders instantiates every provider named in cfg using reg. Each
// evaluator, TTS and LLM chain is wrapped in a resilience fallback group, so
// even a single provider gets a circuit breaker. The evaluator is required;
// unregistered optional providers are skipped with a warning.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	ps := &Providers{}

	evals, err := createChain("evaluator", cfg.Providers.Evaluator, reg.CreateEvaluator)
	if err != nil {
		return nil, err
	}
	if len(evals) == 0 {
		return nil, fmt.Errorf("app: evaluator %q is not available", cfg.Providers.Evaluator.Name)
	}
	ef := resilience.NewEvaluatorFallback(evals[0].p, evals[0].label, fallbackConfig("evaluator", m))
	for _, e := range evals[1:] {
		ef.AddFallback(e.label, e.p)
	}
	ps.Evaluator = ef

	voices, err := createChain("tts", cfg.Providers.TTS, reg.CreateTTS)
	if err != nil {
		return nil, err
	}
	if len(voices) > 0 {
		tf := resilience.NewTTSFallback(voices[0].p, voices[0].label, fallbackConfig("tts", m))
		for _, v := range voices[1:] {
			tf.AddFallback(v.label, v.p)
		}
		ps.TTS = tf
	}

	models, err := createChain("llm", cfg.Providers.LLM, reg.CreateLLM)
	if err != nil {
		return nil, err
	}
	if len(models) > 0 {
		lf := resilience.NewLLMFallback(models[0].p, models[0].label, fallbackConfig("llm", m))
		for _, l := range models[1:] {
			lf.AddFallback(l.label, l.p)
		}
		ps.LLM = lf
	}

	if name := cfg.Providers.Microphone.Name; name != "" {
		mic, err := reg.CreateMicrophone(cfg.Providers.Microphone)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("provider not registered, skipping", "kind", "microphone", "name", name)
		case err != nil:
			return nil, fmt.Errorf("app: create microphone %q: %w", name, err)
		default:
			ps.Microphone = mic
			slog.Info("provider created", "kind", "microphone", "name", name)
		}
	}

	return ps, nil
}

// createChain creates entry and then each of its fallbacks. Entries whose
// name is not registered are skipped; any other factory error is fatal.
func createChain[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error)) ([]named[T], error) {
	var out []named[T]
	var walk func(e config.ProviderEntry) error
	walk = func(e config.ProviderEntry) error {
		if e.Name != "" {
			p, err := create(e)
			switch {
			case errors.Is(err, config.ErrProviderNotRegistered):
				slog.Warn("provider not registered, skipping", "kind", kind, "name", e.Name)
			case err != nil:
				return fmt.Errorf("app: create %s provider %q: %w", kind, e.Name, err)
			default:
				out = append(out, named[T]{label: entryLabel(e), p: p})
				slog.Info("provider created", "kind", kind, "name", e.Name, "model", e.Model)
			}
		}
		for _, fb := range e.Fallbacks {
			if err := walk(fb); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(entry); err != nil {
		return nil, err
	}
	return out, nil
}

func entryLabel(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

func fallbackConfig(kind string, m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, kind, from.String(), to.String())
			},
		},
		OnFailover: func(name string, _ error) {
			m.RecordProviderError(context.Background(), name, kind+".failover")
		},
	}
}

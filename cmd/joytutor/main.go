// Command joytutor is the main entry point for the Teacher Joy practice
// server. By default it serves the browser tutor; with -practice it runs a
// single attempt against the local microphone and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/joytutor/internal/app"
	"github.com/MrWong99/joytutor/internal/config"
	"github.com/MrWong99/joytutor/internal/observe"
	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/audio/portaudio"
	"github.com/MrWong99/joytutor/pkg/audio/speaker"
	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
	evalgemini "github.com/MrWong99/joytutor/pkg/provider/evaluator/gemini"
	evalwhisper "github.com/MrWong99/joytutor/pkg/provider/evaluator/whisper"
	"github.com/MrWong99/joytutor/pkg/provider/llm"
	"github.com/MrWong99/joytutor/pkg/provider/llm/anyllm"
	"github.com/MrWong99/joytutor/pkg/provider/llm/openai"
	"github.com/MrWong99/joytutor/pkg/provider/tts"
	"github.com/MrWong99/joytutor/pkg/provider/tts/elevenlabs"
	ttsgemini "github.com/MrWong99/joytutor/pkg/provider/tts/gemini"
)

// cueFormat is the local speaker format for practice cues.
var cueFormat = audio.Format{SampleRate: 24000, Channels: 1}

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	practiceText := flag.String("practice", "", "practice this word or sentence on the local microphone and exit")
	modeFlag := flag.String("mode", "word", "practice mode for -practice: word or sentence")
	serve := flag.Bool("serve", false, "serve the browser tutor after -practice finishes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "joytutor: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "joytutor: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	logger := newLogger(level)
	slog.SetDefault(logger)

	slog.Info("joytutor starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "joytutor"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	providers, err := app.BuildProviders(cfg, reg, nil)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	opts := []app.Option{app.WithLevelVar(level)}
	if *practiceText != "" && cfg.Practice.Cues {
		spk, err := speaker.New(cueFormat)
		if err != nil {
			slog.Warn("practice cues disabled", "err", err)
		} else {
			opts = append(opts, app.WithCuePlayer(spk), app.WithCloser(spk.Close))
		}
	}

	application, err := app.New(cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *practiceText != "" {
		code := runPractice(ctx, application, *practiceText, *modeFlag)
		if !*serve || ctx.Err() != nil {
			_ = shutdown(application, 5*time.Second)
			return code
		}
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	w, err := config.NewWatcher(*configPath, application.Reload, config.WithLogger(logger))
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer w.Stop()
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return application.Run(gctx) })
	if w != nil {
		g.Go(func() error { return reloadOnHangup(gctx, w) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping")
	if err := shutdown(application, 15*time.Second); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func shutdown(application *app.App, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return application.Shutdown(ctx)
}

// runPractice runs one attempt against the local microphone and prints the
// transcript to stdout. The exit code is 0 for a correct attempt.
func runPractice(ctx context.Context, application *app.App, text, modeName string) int {
	mode, err := practice.ParseMode(modeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "joytutor: %v\n", err)
		return 2
	}
	outcome, err := application.Practice(ctx, text, mode, os.Stdout)
	if err != nil {
		slog.Error("practice failed", "err", err)
		return 1
	}
	slog.Debug("practice finished",
		"state", outcome.State.String(),
		"stop_reason", outcome.StopReason.String(),
		"capture", outcome.CaptureDuration,
	)
	if outcome.Result == nil || !outcome.Result.IsCorrect {
		return 1
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── Evaluator ─────────────────────────────────────────────────────────────

	reg.RegisterEvaluator("gemini", func(entry config.ProviderEntry) (evaluator.Provider, error) {
		var opts []evalgemini.Option
		if entry.Model != "" {
			opts = append(opts, evalgemini.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, evalgemini.WithBaseURL(entry.BaseURL))
		}
		if si := optString(entry.Options, "system_instruction"); si != "" {
			opts = append(opts, evalgemini.WithSystemInstruction(si))
		}
		return evalgemini.New(ctx, entry.APIKey, opts...)
	})

	reg.RegisterEvaluator("whisper", func(entry config.ProviderEntry) (evaluator.Provider, error) {
		var opts []evalwhisper.Option
		if entry.Model != "" {
			opts = append(opts, evalwhisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, evalwhisper.WithLanguage(lang))
		}
		return evalwhisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("gemini", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsgemini.Option
		if entry.Model != "" {
			opts = append(opts, ttsgemini.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsgemini.WithBaseURL(entry.BaseURL))
		}
		return ttsgemini.New(ctx, entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if _, ok := entry.Options["max_retries"]; ok {
			opts = append(opts, openai.WithMaxRetries(optInt(entry.Options, "max_retries")))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// Every other any-llm backend shares one shape: optional APIKey and
	// optional BaseURL. openai and ollama have their own factories.
	for _, providerName := range anyllm.Backends() {
		if providerName == "openai" || providerName == "ollama" {
			continue
		}
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── Microphone ────────────────────────────────────────────────────────────

	reg.RegisterMicrophone("portaudio", func(entry config.ProviderEntry) (audio.Microphone, error) {
		var opts []portaudio.Option
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, portaudio.WithFormat(audio.Format{SampleRate: rate, Channels: 1}))
		}
		if ms := optInt(entry.Options, "frame_ms"); ms > 0 {
			opts = append(opts, portaudio.WithFrameDuration(ms))
		}
		return portaudio.New(opts...), nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name, "available", reg.Has(kind, name))
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        JoyTutor, startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Evaluator", cfg.Providers.Evaluator)
	printProvider("TTS", cfg.Providers.TTS)
	printProvider("LLM", cfg.Providers.LLM)
	printProvider("Microphone", cfg.Providers.Microphone)
	voice := cfg.Tutor.Voice
	if voice == "" {
		voice = "(provider default)"
	}
	fmt.Printf("║  Tutor voice     : %-19s ║\n", voice)
	fmt.Printf("║  Lesson grade    : %-19d ║\n", cfg.Tutor.Grade)
	fmt.Printf("║  Encodings       : %-19d ║\n", len(cfg.Practice.PreferredFormats))
	if cfg.Server.ListenAddr != "" {
		scheme := "http"
		if cfg.Server.TLS != nil {
			scheme = "https"
		}
		fmt.Printf("║  Listen addr     : %-19s ║\n", scheme+" "+cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind string, e config.ProviderEntry) {
	value := e.Name
	if value == "" {
		value = "(not configured)"
	} else if e.Model != "" {
		value = e.Name + " / " + e.Model
	}
	if n := len(e.Fallbacks); n > 0 && e.Name != "" {
		value = fmt.Sprintf("%s +%d", value, n)
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map. YAML decodes
// integers as int; anything else yields 0.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// reloadOnHangup checks the config file immediately whenever SIGHUP arrives.
func reloadOnHangup(ctx context.Context, w *config.Watcher) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if !w.Reload() {
				slog.Info("SIGHUP: config unchanged")
			}
		}
	}
}

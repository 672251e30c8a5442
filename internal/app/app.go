// Package app wires the tutor's subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the practice dispatcher,
// lesson generator, health checks and HTTP surface from the config and the
// providers, Run serves until the context ends, and Shutdown tears down in
// order. [App.Practice] runs a single attempt against the local microphone
// for the command-line mode.
//
// For testing, construct [Providers] directly with mock implementations and
// inject collaborators via functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/joytutor/internal/config"
	"github.com/MrWong99/joytutor/internal/health"
	"github.com/MrWong99/joytutor/internal/lesson"
	"github.com/MrWong99/joytutor/internal/observe"
	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/internal/web"
	"github.com/MrWong99/joytutor/pkg/audio/cue"
)

// readHeaderTimeout bounds slow clients on the HTTP listener.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg       atomic.Pointer[config.Config]
	providers *Providers

	level    *slog.LevelVar
	metrics  *observe.Metrics
	logger   *slog.Logger
	cue      cue.Player
	listener net.Listener

	lessons *lesson.Generator
	health  *health.Handler
	web     *web.Server
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithLevelVar lets config reloads change the log level of the handler that
// owns lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithMetrics injects the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithCuePlayer sets the player for CLI practice cues. It is used only when
// practice.cues is enabled.
func WithCuePlayer(p cue.Player) Option {
	return func(a *App) { a.cue = p }
}

// WithListener serves on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithCloser registers fn to run during Shutdown, after the HTTP server has
// stopped.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg and providers. providers.Evaluator is
// required; a nil TTS or LLM disables the matching browser endpoints.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Evaluator == nil {
		return nil, errors.New("app: an evaluator provider is required")
	}
	a := &App{providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.level.Set(slogLevel(cfg.Server.LogLevel))
	a.cfg.Store(cfg)

	// ── 1. Lesson generator ──────────────────────────────────────────────
	if providers.LLM != nil {
		var lopts []lesson.Option
		if si := cfg.Tutor.SystemInstruction; si != "" {
			lopts = append(lopts, lesson.WithSystemInstruction(si))
		}
		lopts = append(lopts, lesson.WithLogger(a.logger))
		a.lessons = lesson.NewGenerator(providers.LLM, lopts...)
	}

	// ── 2. Health ────────────────────────────────────────────────────────
	a.health = health.New(providers.Checkers()...)

	// ── 3. HTTP surface ──────────────────────────────────────────────────
	srv, err := web.New(web.Config{
		Practice: a.SessionTemplate,
		Tutor:    func() config.TutorConfig { return a.Config().Tutor },
		TTS:      providers.TTS,
		Lessons:  a.lessons,
		Health:   a.health,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: init web: %w", err)
	}
	a.web = srv
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.web.Handler() }

// SessionTemplate builds the practice session settings from the current
// configuration. The microphone and cue player are left for the caller.
func (a *App) SessionTemplate() practice.SessionConfig {
	p := a.Config().Practice
	return practice.SessionConfig{
		Dispatcher: practice.NewDispatcher(a.providers.Evaluator,
			practice.WithTimeout(p.EvaluationTimeout),
			practice.WithMetrics(a.metrics),
			practice.WithDispatcherLogger(a.logger),
		),
		Timing:            p.Timing(),
		Preferred:         p.PreferredFormats,
		FrameInterval:     p.FrameInterval,
		PermissionTimeout: p.PermissionTimeout,
		Logger:            a.logger,
		Metrics:           a.metrics,
	}
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies a changed configuration. It is the [config.Watcher]
// callback. Practice and tutor changes reach the next attempt or request;
// server and provider changes only take effect after a restart.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged {
		a.level.Set(slogLevel(d.NewLogLevel))
		a.logger.Info("config reload: log level changed", "level", d.NewLogLevel)
	}
	if d.PracticeChanged {
		a.logger.Info("config reload: practice settings changed; new attempts use them")
	}
	if d.TutorChanged {
		a.logger.Info("config reload: tutor settings changed", "voice", new.Tutor.Voice, "grade", new.Tutor.Grade)
		if old.Tutor.SystemInstruction != new.Tutor.SystemInstruction {
			a.logger.Warn("config reload: tutor.system_instruction applies after a restart")
		}
	}
	if len(d.RestartRequired) > 0 {
		a.logger.Warn("config reload: restart required to apply changes", "sections", d.RestartRequired)
	}

	// Sections that need a restart keep their old values so Config never
	// reports settings that are not in effect.
	next := *new
	next.Server.ListenAddr = old.Server.ListenAddr
	next.Server.TLS = old.Server.TLS
	next.Providers = old.Providers
	a.cfg.Store(&next)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled, then returns ctx.Err(). It serves
// TLS when server.tls is configured.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", cfg.Server.ListenAddr, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	a.logger.Info("app running", "addr", ln.Addr().String(), "tls", cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	}
}

// ─── Practice ────────────────────────────────────────────────────────────────

// Practice runs one attempt against the configured local microphone and
// writes the transcript to out. It blocks until the attempt ends or ctx is
// cancelled.
func (a *App) Practice(ctx context.Context, text string, mode practice.Mode, out io.Writer) (practice.Outcome, error) {
	if a.providers.Microphone == nil {
		return practice.Outcome{}, errors.New("app: practice requires a local microphone provider")
	}
	sc := a.SessionTemplate()
	sc.Microphone = a.providers.Microphone
	if a.Config().Practice.Cues && a.cue != nil {
		sc.Cue = a.cue
	}

	ctrl, err := practice.NewController(practice.ControllerConfig{
		Session: sc,
		Transcript: practice.TranscriptFunc(func(e practice.TranscriptEntry) {
			fmt.Fprintf(out, "%s: %s\n\n", e.Speaker, e.Text)
		}),
		Celebrator: practice.CelebratorFunc(func(practice.Burst) {
			fmt.Fprintln(out, "🎉🎉🎉")
		}),
		OnRecording: func(target string) {
			if target != "" {
				fmt.Fprintf(out, "🎙  %s ...\n", target)
			}
		},
		Logger: a.logger,
	})
	if err != nil {
		return practice.Outcome{}, fmt.Errorf("app: practice: %w", err)
	}

	attempt, err := ctrl.Start(ctx, practice.Request{Text: text, Mode: mode})
	if err != nil {
		return practice.Outcome{}, fmt.Errorf("app: practice: %w", err)
	}
	select {
	case <-attempt.Done():
	case <-ctx.Done():
		ctrl.Stop()
		<-attempt.Done()
	}
	return attempt.Outcome(), nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and then runs the registered closers. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

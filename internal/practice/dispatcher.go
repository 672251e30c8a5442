package practice

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/joytutor/internal/observe"
	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
)

// Dispatcher submits artifacts to an evaluator and normalizes its answers.
// It is safe for concurrent use.
type Dispatcher struct {
	provider evaluator.Provider
	timeout  time.Duration
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each evaluation. Zero waits as long as ctx allows.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithMetrics records evaluation latency, accuracy and fallbacks on m.
func WithMetrics(m *observe.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDispatcherLogger sets the logger. Defaults to [slog.Default].
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher backed by p.
func NewDispatcher(p evaluator.Provider, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{provider: p, logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Evaluate sends the artifact and the expected text to the evaluator. It
// fails only with a [*TransportError]; an answer that cannot be parsed
// yields [FallbackResult].
func (d *Dispatcher) Evaluate(ctx context.Context, art Artifact, req Request) (Result, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	ctx, span := observe.StartSpan(ctx, "practice.evaluate",
		trace.WithAttributes(
			attribute.String("practice.mode", string(req.Mode)),
			attribute.String("practice.mime_type", art.MIMEType),
			attribute.Int("practice.artifact_bytes", len(art.Data)),
		),
	)
	defer span.End()

	start := time.Now()
	raw, err := d.provider.Evaluate(ctx, evaluator.Request{
		AudioBase64:  art.Base64(),
		MIMEType:     art.MIMEType,
		ExpectedText: req.Text,
		Mode:         string(req.Mode),
	})
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		d.record(ctx, req, time.Since(start), false, Result{})
		observe.Fail(span, err, "evaluation failed")
		return Result{}, &TransportError{Err: err}
	}

	res, perr := ParseResult(raw)
	if perr != nil {
		d.logger.DebugContext(ctx, "practice: evaluator answer malformed, using fallback",
			"err", perr, "raw_len", len(raw))
		res = FallbackResult(raw)
	}
	d.record(ctx, req, time.Since(start), true, res)
	span.SetAttributes(
		attribute.Int("practice.accuracy", res.Accuracy),
		attribute.Bool("practice.correct", res.IsCorrect),
		attribute.Bool("practice.fallback", res.Fallback),
	)
	return res, nil
}

func (d *Dispatcher) record(ctx context.Context, req Request, elapsed time.Duration, ok bool, res Result) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordEvaluation(ctx, string(req.Mode), elapsed, ok, res.Accuracy, res.Fallback)
}

package practice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/joytutor/internal/observe"
	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/audio/cue"
	"github.com/MrWong99/joytutor/pkg/audio/encode"
	"github.com/MrWong99/joytutor/pkg/audio/spectrum"
)

// SessionConfig holds the collaborators of a [Session]. Microphone and
// Dispatcher are required; everything else has a default.
type SessionConfig struct {
	Microphone audio.Microphone
	Dispatcher *Dispatcher

	// Timing supplies the per-mode thresholds. Zero means [DefaultTiming].
	Timing Timing

	// Preferred is the ordered encoding preference passed to
	// [encode.Negotiate]. Empty means [encode.DefaultPreferred].
	Preferred []string

	// Clock defaults to [RealClock].
	Clock Clock

	// FrameInterval is the monitor cadence. Defaults to [DefaultFrameInterval].
	FrameInterval time.Duration

	// Cue plays the listening cue. Defaults to [cue.Nop].
	Cue cue.Player

	// NewAnalyser creates the energy analyser for a stream. Defaults to a
	// [spectrum.Analyser] with [spectrum.DefaultConfig].
	NewAnalyser func(audio.Format) (Analyser, error)

	// PermissionTimeout bounds the microphone request. Zero waits as long
	// as the context allows.
	PermissionTimeout time.Duration

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Timing == (Timing{}) {
		c.Timing = DefaultTiming()
	}
	if c.Clock == nil {
		c.Clock = RealClock
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.Cue == nil {
		c.Cue = cue.Nop
	}
	if c.NewAnalyser == nil {
		c.NewAnalyser = func(audio.Format) (Analyser, error) {
			return spectrum.New(spectrum.DefaultConfig())
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
	return c
}

// Outcome is the terminal report of an attempt.
type Outcome struct {
	Request Request

	// State is Completed or Failed.
	State State

	// Result is set when State is Completed.
	Result *Result

	// Err is set when State is Failed.
	Err error

	StopReason StopReason

	// Artifact is set once encoding succeeded.
	Artifact *Artifact

	// CaptureDuration is the time between entering Recording and the stop
	// decision.
	CaptureDuration time.Duration
}

// Session is one recording attempt. It is created per attempt and never
// reused. Run drives it; Stop and State may be called from any goroutine.
type Session struct {
	req Request
	cfg SessionConfig

	mu            sync.Mutex
	state         State
	stopRequested bool
	cancelRequest context.CancelFunc
	stopCh        chan struct{}

	releaseOnce sync.Once
	done        chan struct{}
}

// NewSession creates an idle session for req.
func NewSession(req Request, cfg SessionConfig) *Session {
	return &Session{
		req:    req,
		cfg:    cfg.withDefaults(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Request returns the target of the session.
func (s *Session) Request() Request { return s.req }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop ends the attempt early. While recording it enters Stopping and the
// captured audio still goes to evaluation. Before recording it abandons the
// microphone request. Stop is idempotent and never blocks.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Idle, Requesting:
		s.stopRequested = true
		if s.cancelRequest != nil {
			s.cancelRequest()
		}
	case Recording:
		s.state = Stopping
		s.cfg.Logger.Debug("practice: state", "state", Stopping, "text", s.req.Text)
		close(s.stopCh)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.cfg.Logger.Debug("practice: state", "state", st, "text", s.req.Text)
}

// stopping enters Stopping unless Stop already did.
func (s *Session) stopping() {
	s.mu.Lock()
	entered := s.state == Recording
	if entered {
		s.state = Stopping
	}
	s.mu.Unlock()
	if entered {
		s.cfg.Logger.Debug("practice: state", "state", Stopping, "text", s.req.Text)
	}
}

func (s *Session) release(stream audio.Stream) {
	s.releaseOnce.Do(func() {
		if err := stream.Stop(); err != nil {
			s.cfg.Logger.Warn("practice: stop microphone stream", "err", err)
		}
	})
}

// Run executes the attempt on the calling goroutine and returns its terminal
// outcome. Run must be called at most once.
func (s *Session) Run(ctx context.Context) Outcome {
	defer close(s.done)

	ctx, span := observe.StartSpan(ctx, "practice.attempt",
		trace.WithAttributes(attribute.String("practice.mode", string(s.req.Mode))),
	)
	defer span.End()

	m := s.cfg.Metrics
	m.ActivePractice.Add(ctx, 1)
	defer m.ActivePractice.Add(ctx, -1)

	out := s.run(ctx)
	out.Request = s.req
	s.setState(out.State)

	outcome := "completed"
	if out.State == Failed {
		outcome = "failed"
		observe.Fail(span, out.Err, "attempt failed")
		s.cfg.Logger.Info("practice: attempt failed",
			"text", s.req.Text, "mode", s.req.Mode, "reason", out.StopReason, "err", out.Err)
	} else {
		span.SetAttributes(attribute.Int("practice.accuracy", out.Result.Accuracy))
		s.cfg.Logger.Info("practice: attempt completed",
			"text", s.req.Text, "mode", s.req.Mode, "reason", out.StopReason,
			"accuracy", out.Result.Accuracy, "correct", out.Result.IsCorrect,
			"capture", out.CaptureDuration)
	}
	m.RecordAttempt(ctx, string(s.req.Mode), outcome, out.StopReason.String(), out.CaptureDuration)
	return out
}

func (s *Session) run(ctx context.Context) Outcome {
	if s.cfg.Microphone == nil || s.cfg.Dispatcher == nil {
		return Outcome{State: Failed, Err: errors.New("practice: session needs a microphone and a dispatcher")}
	}
	if err := s.req.Validate(); err != nil {
		return Outcome{State: Failed, Err: err}
	}

	stream, err := s.requestStream(ctx)
	if err != nil {
		return Outcome{State: Failed, Err: &PermissionError{Err: err}}
	}

	format := stream.Format()
	enc, err := encode.Negotiate(s.cfg.Preferred, format)
	if err != nil {
		s.release(stream)
		offered := s.cfg.Preferred
		if len(offered) == 0 {
			offered = encode.DefaultPreferred
		}
		return Outcome{State: Failed, Err: &EncodingUnsupportedError{Offered: offered, Format: format, Err: err}}
	}
	analyser, err := s.cfg.NewAnalyser(format)
	if err != nil {
		s.release(stream)
		return Outcome{State: Failed, Err: fmt.Errorf("practice: create analyser: %w", err)}
	}

	// Recording.
	clk := s.cfg.Clock
	startedAt := clk.Now()
	s.mu.Lock()
	if s.stopRequested {
		s.mu.Unlock()
		s.release(stream)
		return Outcome{State: Failed, Err: &PermissionError{Err: context.Canceled}}
	}
	s.state = Recording
	s.mu.Unlock()
	s.cfg.Logger.Debug("practice: state", "state", Recording, "text", s.req.Text,
		"format", format.String(), "encoding", enc.MIMEType())
	s.cfg.Cue.Play(cue.Listening)

	p := &pump{session: s, stream: stream, enc: enc, analyser: analyser, format: format}
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		p.run()
	}()

	type monitorResult struct {
		reason StopReason
		at     time.Time
	}
	monCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	monDone := make(chan monitorResult, 1)
	mon := NewMonitor(s.cfg.Timing.For(s.req.Mode), analyser, startedAt)
	go func() {
		reason, at := mon.Run(monCtx, clk, s.cfg.FrameInterval)
		monDone <- monitorResult{reason, at}
	}()

	var (
		reason    StopReason
		stoppedAt time.Time
		monitored bool
	)
	select {
	case r := <-monDone:
		reason, stoppedAt, monitored = r.reason, r.at, true
	case <-s.stopCh:
		reason, stoppedAt = StopManual, clk.Now()
	case <-ctx.Done():
		reason, stoppedAt = StopCancelled, clk.Now()
	}

	// Stopping: monitor first, then the stream, then the pump and encoder.
	s.stopping()
	cancelMonitor()
	if !monitored {
		<-monDone
	}
	s.release(stream)
	<-pumpDone
	tail, ferr := enc.Finalize()

	out := Outcome{StopReason: reason, CaptureDuration: stoppedAt.Sub(startedAt)}

	// Encoding.
	s.setState(Encoding)
	if err := p.err; err != nil {
		out.State, out.Err = Failed, fmt.Errorf("practice: encode: %w", err)
		return out
	}
	if ferr != nil {
		out.State, out.Err = Failed, fmt.Errorf("practice: finalize encoding: %w", ferr)
		return out
	}
	art := &Artifact{
		Data:     bytes.Join(append(p.chunks, tail), nil),
		MIMEType: enc.MIMEType(),
		Duration: out.CaptureDuration,
	}
	out.Artifact = art

	// AwaitingEvaluation.
	s.setState(AwaitingEvaluation)
	res, err := s.cfg.Dispatcher.Evaluate(ctx, *art, s.req)
	if err != nil {
		out.State, out.Err = Failed, err
		return out
	}
	out.State, out.Result = Completed, &res
	return out
}

// requestStream asks for the microphone, honouring Stop and the permission
// timeout while the request is pending.
func (s *Session) requestStream(ctx context.Context) (audio.Stream, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.cfg.PermissionTimeout > 0 {
		var cancelTimeout context.CancelFunc
		reqCtx, cancelTimeout = context.WithTimeout(reqCtx, s.cfg.PermissionTimeout)
		defer cancelTimeout()
	}

	s.mu.Lock()
	if s.stopRequested {
		s.mu.Unlock()
		return nil, context.Canceled
	}
	s.state = Requesting
	s.cancelRequest = cancel
	s.mu.Unlock()
	s.cfg.Logger.Debug("practice: state", "state", Requesting, "text", s.req.Text)

	stream, err := s.cfg.Microphone.Request(reqCtx)
	s.mu.Lock()
	s.cancelRequest = nil
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, audio.ErrNoDevice
	}
	return stream, nil
}

// pump forwards captured frames to the analyser and encoder. Frames that
// arrive after the session left Recording are drained and discarded.
type pump struct {
	session  *Session
	stream   audio.Stream
	enc      encode.Encoder
	analyser Analyser
	format   audio.Format

	// Written by run only; read after run has returned.
	chunks [][]byte
	err    error
}

func (p *pump) run() {
	dropped := 0
	for f := range p.stream.Frames() {
		if p.err != nil || p.session.State() != Recording {
			dropped++
			continue
		}
		p.analyser.Write(f.Data, p.format)
		frag, err := p.enc.Write(f.Data)
		if err != nil {
			p.err = err
			continue
		}
		if len(frag) > 0 {
			p.chunks = append(p.chunks, frag)
		}
	}
	if dropped > 0 {
		p.session.cfg.Logger.Debug("practice: dropped frames after recording", "frames", dropped)
	}
}

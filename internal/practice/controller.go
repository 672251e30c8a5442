package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/joytutor/pkg/audio/cue"
)

// Speaker identifies the author of a transcript entry.
type Speaker string

const (
	Learner Speaker = "learner"
	Tutor   Speaker = "tutor"
)

// TranscriptEntry is one line of the lesson transcript.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript receives rendered entries. The controller never stores them.
type Transcript interface {
	Append(e TranscriptEntry)
}

// TranscriptFunc adapts a function to [Transcript].
type TranscriptFunc func(TranscriptEntry)

// Append implements [Transcript].
func (f TranscriptFunc) Append(e TranscriptEntry) { f(e) }

// Burst describes a confetti celebration.
type Burst struct {
	Particles int     `json:"particleCount"`
	Spread    float64 `json:"spread"`
	OriginY   float64 `json:"originY"`
}

// CorrectBurst is the celebration shown for a correct attempt.
var CorrectBurst = Burst{Particles: 150, Spread: 100, OriginY: 0.8}

// Celebrator shows celebrations. Celebrate must not block.
type Celebrator interface {
	Celebrate(b Burst)
}

// CelebratorFunc adapts a function to [Celebrator].
type CelebratorFunc func(Burst)

// Celebrate implements [Celebrator].
func (f CelebratorFunc) Celebrate(b Burst) { f(b) }

// Tutor messages for failed attempts.
const (
	MessagePermission = "Con cần cho phép sử dụng micro để luyện đọc nhé!"
	MessageEvaluation = "Có lỗi khi đánh giá phát âm, con thử lại nhé!"
)

// ControllerConfig holds the collaborators of a [Controller].
type ControllerConfig struct {
	// Session configures every attempt. Session.Cue also receives the
	// success and failure cues.
	Session SessionConfig

	// Transcript receives rendered entries. Required.
	Transcript Transcript

	// Celebrator is optional.
	Celebrator Celebrator

	// OnRecording, when set, is called with the current target whenever the
	// "recording for" indicator changes. An empty target means idle. It may
	// be called with the controller lock held and must not call back into
	// the controller.
	OnRecording func(target string)

	Logger *slog.Logger
}

// Attempt is a started practice attempt.
type Attempt struct {
	req     Request
	session *Session
	done    chan struct{}
	outcome Outcome
}

// Request returns the target of the attempt.
func (a *Attempt) Request() Request { return a.req }

// State returns the current session state.
func (a *Attempt) State() State { return a.session.State() }

// Done is closed after the outcome has been rendered and the gate released.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Outcome returns the terminal outcome. It must only be called after Done
// is closed.
func (a *Attempt) Outcome() Outcome { return a.outcome }

// Controller runs at most one attempt at a time and renders its outcome.
// All methods are safe for concurrent use.
type Controller struct {
	cfg ControllerConfig

	mu     sync.Mutex
	active *Attempt
}

// NewController creates a Controller. It returns an error if a required
// collaborator is missing.
func NewController(cfg ControllerConfig) (*Controller, error) {
	var errs []error
	if cfg.Session.Microphone == nil {
		errs = append(errs, errors.New("practice: controller needs a microphone"))
	}
	if cfg.Session.Dispatcher == nil {
		errs = append(errs, errors.New("practice: controller needs a dispatcher"))
	}
	if cfg.Transcript == nil {
		errs = append(errs, errors.New("practice: controller needs a transcript"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	cfg.Session = cfg.Session.withDefaults()
	if cfg.Celebrator == nil {
		cfg.Celebrator = CelebratorFunc(func(Burst) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.Session.Logger
	}
	return &Controller{cfg: cfg}, nil
}

// Start begins an attempt for req. If an attempt for the same target is
// already running it is returned unchanged; an attempt for a different
// target makes Start fail with [ErrSessionActive] without touching the
// microphone.
func (c *Controller) Start(ctx context.Context, req Request) (*Attempt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx, req)
}

// Toggle stops the running attempt when it addresses req and otherwise
// behaves like [Controller.Start].
func (c *Controller) Toggle(ctx context.Context, req Request) (*Attempt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if a := c.active; a != nil && a.req == req {
		a.session.Stop()
		return a, nil
	}
	return c.startLocked(ctx, req)
}

func (c *Controller) startLocked(ctx context.Context, req Request) (*Attempt, error) {
	if a := c.active; a != nil {
		if a.req == req {
			return a, nil
		}
		return nil, fmt.Errorf("%w: recording %q", ErrSessionActive, a.req.Text)
	}
	a := &Attempt{
		req:     req,
		session: NewSession(req, c.cfg.Session),
		done:    make(chan struct{}),
	}
	c.active = a
	c.indicate(req.Text)
	go c.run(ctx, a)
	return a, nil
}

// run owns a from start to release. Cancelling ctx stops the recording and
// abandons the evaluation.
func (c *Controller) run(ctx context.Context, a *Attempt) {
	out := a.session.Run(ctx)
	c.render(out)

	c.mu.Lock()
	if c.active == a {
		c.active = nil
		c.indicate("")
	}
	c.mu.Unlock()

	a.outcome = out
	close(a.done)
}

// Stop stops the running attempt, if any. It is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	a := c.active
	c.mu.Unlock()
	if a != nil {
		a.session.Stop()
	}
}

// Active returns the running attempt, or nil.
func (c *Controller) Active() *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// IsRecording reports whether an attempt is in flight.
func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// RecordingTarget returns the text of the running attempt.
func (c *Controller) RecordingTarget() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.req.Text, true
}

func (c *Controller) indicate(target string) {
	if c.cfg.OnRecording != nil {
		c.cfg.OnRecording(target)
	}
}

func (c *Controller) render(out Outcome) {
	if out.State != Completed || out.Result == nil {
		c.cfg.Transcript.Append(TranscriptEntry{Speaker: Tutor, Text: failureMessage(out.Err)})
		return
	}
	res := out.Result
	if res.IsCorrect {
		c.cfg.Session.Cue.Play(cue.Success)
	} else {
		c.cfg.Session.Cue.Play(cue.Failure)
	}
	c.cfg.Transcript.Append(TranscriptEntry{Speaker: Learner, Text: LearnerText(out.Request)})
	c.cfg.Transcript.Append(TranscriptEntry{Speaker: Tutor, Text: TutorText(*res)})
	if res.IsCorrect {
		c.cfg.Celebrator.Celebrate(CorrectBurst)
	}
}

// LearnerText renders the learner's side of an attempt.
func LearnerText(req Request) string {
	return fmt.Sprintf("[Âm thanh luyện đọc %s: %s]", req.Mode.label(), req.Text)
}

// TutorText renders an evaluation as markdown.
func TutorText(res Result) string {
	return fmt.Sprintf("**Điểm: %d%%**\n\n%s\n\n* **Trôi chảy:** %s\n* **Gợi ý:** %s",
		res.Accuracy, res.Feedback, res.Fluency, res.Suggestion)
}

func failureMessage(err error) string {
	var perm *PermissionError
	var enc *EncodingUnsupportedError
	if errors.As(err, &perm) || errors.As(err, &enc) {
		return MessagePermission
	}
	return MessageEvaluation
}

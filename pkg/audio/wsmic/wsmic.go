// Package wsmic bridges a browser microphone over a websocket.
//
// The browser keeps one websocket open per learner. A [Bridge] reads it,
// turning binary messages into PCM frames for the active capture and
// answering the permission handshake:
//
//	server → client  {"type":"mic.request"}
//	client → server  {"type":"mic.granted","payload":{"sampleRate":48000,"channels":1}}
//	client → server  {"type":"mic.denied","payload":{"reason":"NotAllowedError"}}
//	client → server  <binary s16le PCM>
//	server → client  {"type":"mic.stop"}
//
// Every other text message is handed to the registered [Handler], so the
// same socket can carry application traffic.
package wsmic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// Envelope is the JSON shape of every text message on the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message types owned by the bridge.
const (
	TypeMicRequest = "mic.request"
	TypeMicGranted = "mic.granted"
	TypeMicDenied  = "mic.denied"
	TypeMicStop    = "mic.stop"
)

// Grant is the payload of a mic.granted message.
type Grant struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
}

// Denial is the payload of a mic.denied message.
type Denial struct {
	Reason string `json:"reason"`
}

// ErrClosed is returned when the socket goes away.
var ErrClosed = errors.New("wsmic: connection closed")

// ErrRequestPending is returned when a second Request arrives while one is
// still waiting on the learner.
var ErrRequestPending = errors.New("wsmic: microphone request already pending")

// Handler receives application messages that are not part of the
// microphone handshake.
type Handler func(ctx context.Context, env Envelope)

type answer struct {
	grant Grant
	err   error
}

// Bridge is an [audio.Microphone] backed by one websocket connection.
type Bridge struct {
	conn    *websocket.Conn
	handler Handler

	mu      sync.Mutex
	pending chan answer
	active  *stream
	closed  bool
}

var _ audio.Microphone = (*Bridge)(nil)

// New wraps conn. handler may be nil.
func New(conn *websocket.Conn, handler Handler) *Bridge {
	return &Bridge{conn: conn, handler: handler}
}

// Send writes v as a typed JSON envelope.
func (b *Bridge) Send(ctx context.Context, typ string, v any) error {
	env := Envelope{Type: typ}
	if v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("wsmic: marshal %s: %w", typ, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wsmic: marshal envelope: %w", err)
	}
	if err := b.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("wsmic: write %s: %w", typ, err)
	}
	return nil
}

// Request implements [audio.Microphone]. It asks the browser for the
// microphone and waits for mic.granted or mic.denied.
func (b *Bridge) Request(ctx context.Context) (audio.Stream, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", audio.ErrNoDevice, ErrClosed)
	}
	if b.pending != nil {
		b.mu.Unlock()
		return nil, ErrRequestPending
	}
	ch := make(chan answer, 1)
	b.pending = ch
	b.mu.Unlock()

	drop := func() {
		b.mu.Lock()
		if b.pending == ch {
			b.pending = nil
		}
		b.mu.Unlock()
	}

	if err := b.Send(ctx, TypeMicRequest, nil); err != nil {
		drop()
		return nil, fmt.Errorf("%w: %w", audio.ErrNoDevice, err)
	}

	var ans answer
	select {
	case ans = <-ch:
	case <-ctx.Done():
		drop()
		return nil, ctx.Err()
	}
	if ans.err != nil {
		return nil, ans.err
	}

	format := audio.Format{SampleRate: ans.grant.SampleRate, Channels: ans.grant.Channels}
	if !format.Valid() {
		// The browser opened the device but described it badly; release it.
		_ = b.Send(context.WithoutCancel(ctx), TypeMicStop, nil)
		return nil, fmt.Errorf("wsmic: invalid granted format %s: %w", format, audio.ErrNoDevice)
	}

	s := &stream{
		bridge: b,
		format: format,
		frames: make(chan audio.Frame, 64),
		start:  time.Now(),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", audio.ErrNoDevice, ErrClosed)
	}
	b.active = s
	b.mu.Unlock()
	return s, nil
}

// Run reads the socket until ctx is cancelled or the connection fails. It
// always returns a non-nil error.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.shutdown()
	for {
		typ, data, err := b.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("wsmic: read: %w", err)
		}
		switch typ {
		case websocket.MessageBinary:
			b.deliver(data)
		case websocket.MessageText:
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				slog.Warn("wsmic: dropping malformed message", "err", err)
				continue
			}
			b.dispatch(ctx, env)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, env Envelope) {
	switch env.Type {
	case TypeMicGranted:
		var g Grant
		if err := json.Unmarshal(env.Payload, &g); err != nil {
			b.answer(answer{err: fmt.Errorf("wsmic: bad grant: %w: %w", audio.ErrNoDevice, err)})
			return
		}
		b.answer(answer{grant: g})
	case TypeMicDenied:
		var d Denial
		_ = json.Unmarshal(env.Payload, &d)
		err := audio.ErrPermissionDenied
		if d.Reason != "" {
			err = fmt.Errorf("%w: %s", audio.ErrPermissionDenied, d.Reason)
		}
		b.answer(answer{err: err})
	default:
		if b.handler != nil {
			b.handler(ctx, env)
		}
	}
}

func (b *Bridge) answer(a answer) {
	b.mu.Lock()
	ch := b.pending
	b.pending = nil
	b.mu.Unlock()
	if ch == nil {
		slog.Debug("wsmic: unsolicited microphone answer ignored")
		if a.err == nil {
			// Tell the browser to release a device nobody asked for.
			_ = b.Send(context.Background(), TypeMicStop, nil)
		}
		return
	}
	ch <- a
}

func (b *Bridge) deliver(data []byte) {
	b.mu.Lock()
	s := b.active
	b.mu.Unlock()
	if s != nil {
		s.push(data)
	}
}

// shutdown fails a pending request and ends the active stream.
func (b *Bridge) shutdown() {
	b.mu.Lock()
	b.closed = true
	ch := b.pending
	b.pending = nil
	s := b.active
	b.active = nil
	b.mu.Unlock()

	if ch != nil {
		ch <- answer{err: fmt.Errorf("%w: %w", audio.ErrNoDevice, ErrClosed)}
	}
	if s != nil {
		s.end()
	}
}

func (b *Bridge) release(s *stream) {
	b.mu.Lock()
	if b.active == s {
		b.active = nil
	}
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Send(ctx, TypeMicStop, nil); err != nil {
			slog.Debug("wsmic: mic.stop not delivered", "err", err)
		}
	}
}

type stream struct {
	bridge *Bridge
	format audio.Format
	frames chan audio.Frame
	start  time.Time

	mu    sync.Mutex
	ended bool
	once  sync.Once
}

func (s *stream) Format() audio.Format      { return s.format }
func (s *stream) Frames() <-chan audio.Frame { return s.frames }

func (s *stream) push(data []byte) {
	f := audio.Frame{
		Data:       data,
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Timestamp:  time.Since(s.start),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	select {
	case s.frames <- f:
	default:
		slog.Warn("wsmic: capture buffer full, dropping frame")
	}
}

// end closes the frame channel once.
func (s *stream) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.ended = true
		close(s.frames)
	}
}

func (s *stream) Stop() error {
	s.once.Do(func() {
		s.end()
		s.bridge.release(s)
	})
	return nil
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/audio/cue"
	"github.com/MrWong99/joytutor/pkg/audio/wsmic"
)

// Practice socket message types. The microphone handshake is documented in
// package wsmic; these ride on the same connection.
//
//	client → server  practice.start   {"text":"cat","mode":"word"}
//	client → server  practice.toggle  {"text":"cat","mode":"word"}
//	client → server  practice.stop
//	server → client  practice.state   {"recording":true,"target":"cat"}
//	server → client  transcript       {"speaker":"tutor","text":"..."}
//	server → client  cue              {"kind":"success"}
//	server → client  celebrate        {"particleCount":150,"spread":100,"originY":0.8}
//	server → client  error            {"code":"busy","message":"..."}
const (
	TypeStart      = "practice.start"
	TypeToggle     = "practice.toggle"
	TypeStop       = "practice.stop"
	TypeState      = "practice.state"
	TypeTranscript = "transcript"
	TypeCue        = "cue"
	TypeCelebrate  = "celebrate"
	TypeError      = "error"
)

// StartPayload is the payload of practice.start and practice.toggle. An
// empty mode means word.
type StartPayload struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

// StateEvent reports the "currently recording for" indicator.
type StateEvent struct {
	Recording bool   `json:"recording"`
	Target    string `json:"target,omitempty"`
}

// CueEvent asks the browser to play an acoustic cue.
type CueEvent struct {
	Kind string `json:"kind"`
}

// ErrorEvent reports a rejected client message.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// outboxSize bounds queued server messages per connection.
const outboxSize = 64

// PracticeHandler upgrades to the practice websocket and runs one
// [practice.Controller] per connection, with the browser as microphone.
type PracticeHandler struct {
	// Practice returns the session template for a new connection.
	Practice func() practice.SessionConfig

	OriginPatterns []string
	Logger         *slog.Logger
}

func (h *PracticeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.Logger
	if log == nil {
		log = slog.Default()
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		log.Debug("web: practice upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pc, err := newPracticeConn(conn, h.Practice(), log)
	if err != nil {
		log.Error("web: practice controller", "err", err)
		conn.Close(websocket.StatusInternalError, "practice unavailable")
		return
	}
	log.Debug("web: practice connection opened", "remote", r.RemoteAddr)
	err = pc.serve(ctx, cancel)
	log.Debug("web: practice connection closed", "remote", r.RemoteAddr, "err", err)
}

type outbound struct {
	typ string
	v   any
}

// practiceConn is one browser connection.
type practiceConn struct {
	bridge *wsmic.Bridge
	ctrl   *practice.Controller
	out    chan outbound
	log    *slog.Logger
}

func newPracticeConn(conn *websocket.Conn, tmpl practice.SessionConfig, log *slog.Logger) (*practiceConn, error) {
	pc := &practiceConn{out: make(chan outbound, outboxSize), log: log}
	pc.bridge = wsmic.New(conn, pc.handle)

	tmpl.Microphone = pc.bridge
	tmpl.Cue = cue.PlayerFunc(func(k cue.Kind) {
		pc.send(TypeCue, CueEvent{Kind: k.String()})
	})
	if tmpl.Logger == nil {
		tmpl.Logger = log
	}
	ctrl, err := practice.NewController(practice.ControllerConfig{
		Session: tmpl,
		Transcript: practice.TranscriptFunc(func(e practice.TranscriptEntry) {
			pc.send(TypeTranscript, e)
		}),
		Celebrator: practice.CelebratorFunc(func(b practice.Burst) {
			pc.send(TypeCelebrate, b)
		}),
		OnRecording: func(target string) {
			pc.send(TypeState, StateEvent{Recording: target != "", Target: target})
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}
	pc.ctrl = ctrl
	return pc, nil
}

// serve runs the connection until the socket closes, then abandons any
// running attempt and waits for it to finish.
func (pc *practiceConn) serve(ctx context.Context, cancel context.CancelFunc) error {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		pc.write(ctx)
	}()

	err := pc.bridge.Run(ctx)

	a := pc.ctrl.Active()
	cancel()
	if a != nil {
		<-a.Done()
	}
	<-writerDone
	return err
}

// send queues a message without blocking. Messages are dropped when the
// outbox is full.
func (pc *practiceConn) send(typ string, v any) {
	select {
	case pc.out <- outbound{typ: typ, v: v}:
	default:
		pc.log.Warn("web: practice outbox full, dropping message", "type", typ)
	}
}

func (pc *practiceConn) write(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-pc.out:
			if err := pc.bridge.Send(ctx, m.typ, m.v); err != nil {
				pc.log.Debug("web: practice write failed", "type", m.typ, "err", err)
			}
		}
	}
}

// handle receives application messages from the bridge's read loop.
func (pc *practiceConn) handle(ctx context.Context, env wsmic.Envelope) {
	switch env.Type {
	case TypeStart, TypeToggle:
		req, err := parseStart(env.Payload)
		if err != nil {
			pc.send(TypeError, ErrorEvent{Code: "invalid", Message: err.Error()})
			return
		}
		if env.Type == TypeStart {
			_, err = pc.ctrl.Start(ctx, req)
		} else {
			_, err = pc.ctrl.Toggle(ctx, req)
		}
		switch {
		case errors.Is(err, practice.ErrSessionActive):
			pc.send(TypeError, ErrorEvent{Code: "busy", Message: err.Error()})
		case err != nil:
			pc.send(TypeError, ErrorEvent{Code: "invalid", Message: err.Error()})
		}
	case TypeStop:
		pc.ctrl.Stop()
	default:
		pc.log.Debug("web: unknown practice message", "type", env.Type)
		pc.send(TypeError, ErrorEvent{Code: "unknown", Message: "unknown message type " + env.Type})
	}
}

func parseStart(raw json.RawMessage) (practice.Request, error) {
	var p StartPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return practice.Request{}, err
		}
	}
	mode := practice.ModeWord
	if strings.TrimSpace(p.Mode) != "" {
		m, err := practice.ParseMode(p.Mode)
		if err != nil {
			return practice.Request{}, err
		}
		mode = m
	}
	req := practice.Request{Text: p.Text, Mode: mode}
	return req, req.Validate()
}

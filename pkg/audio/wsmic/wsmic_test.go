package wsmic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/audio/wsmic"
)

// harness serves one bridge per connection and hands it to the test.
type harness struct {
	bridges chan *wsmic.Bridge
	app     chan wsmic.Envelope
	client  *websocket.Conn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bridges: make(chan *wsmic.Bridge, 1),
		app:     make(chan wsmic.Envelope, 4),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		b := wsmic.New(conn, func(_ context.Context, env wsmic.Envelope) { h.app <- env })
		h.bridges <- b
		_ = b.Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.CloseNow() })
	h.client = client
	return h
}

func (h *harness) bridge(t *testing.T) *wsmic.Bridge {
	t.Helper()
	select {
	case b := <-h.bridges:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("bridge not created")
		return nil
	}
}

func (h *harness) expect(t *testing.T, ctx context.Context, want string) {
	t.Helper()
	typ, data, err := h.client.Read(ctx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	var env wsmic.Envelope
	if typ != websocket.MessageText || json.Unmarshal(data, &env) != nil {
		t.Fatalf("unexpected message %v %q", typ, data)
	}
	if env.Type != want {
		t.Fatalf("message type = %q, want %q", env.Type, want)
	}
}

func (h *harness) send(t *testing.T, ctx context.Context, typ string, payload any) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	data, _ := json.Marshal(wsmic.Envelope{Type: typ, Payload: raw})
	if err := h.client.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("client write: %v", err)
	}
}

type result struct {
	stream audio.Stream
	err    error
}

func request(ctx context.Context, b *wsmic.Bridge) <-chan result {
	ch := make(chan result, 1)
	go func() {
		s, err := b.Request(ctx)
		ch <- result{s, err}
	}()
	return ch
}

func TestGrantStreamStop(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	b := h.bridge(t)

	res := request(ctx, b)
	h.expect(t, ctx, wsmic.TypeMicRequest)
	h.send(t, ctx, wsmic.TypeMicGranted, wsmic.Grant{SampleRate: 48000, Channels: 1})

	r := <-res
	if r.err != nil {
		t.Fatalf("Request: %v", r.err)
	}
	if got := r.stream.Format(); got != (audio.Format{SampleRate: 48000, Channels: 1}) {
		t.Errorf("Format = %v", got)
	}

	if err := h.client.Write(ctx, websocket.MessageBinary, []byte{1, 0, 2, 0}); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	select {
	case f := <-r.stream.Frames():
		if len(f.Data) != 4 || f.SampleRate != 48000 {
			t.Errorf("frame = %+v", f)
		}
	case <-ctx.Done():
		t.Fatal("no frame delivered")
	}

	if err := r.stream.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.expect(t, ctx, wsmic.TypeMicStop)
	if _, ok := <-r.stream.Frames(); ok {
		t.Error("frames channel still open after Stop")
	}
}

func TestDenied(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	b := h.bridge(t)

	res := request(ctx, b)
	h.expect(t, ctx, wsmic.TypeMicRequest)
	h.send(t, ctx, wsmic.TypeMicDenied, wsmic.Denial{Reason: "NotAllowedError"})

	r := <-res
	if !errors.Is(r.err, audio.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", r.err)
	}
}

func TestSecondRequestWhilePending(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	b := h.bridge(t)

	first := request(ctx, b)
	h.expect(t, ctx, wsmic.TypeMicRequest)
	if _, err := b.Request(ctx); !errors.Is(err, wsmic.ErrRequestPending) {
		t.Errorf("second Request err = %v, want ErrRequestPending", err)
	}
	h.send(t, ctx, wsmic.TypeMicDenied, nil)
	<-first
}

func TestApplicationMessagesForwarded(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	h.bridge(t)

	h.send(t, ctx, "practice.start", map[string]string{"text": "cat"})
	select {
	case env := <-h.app:
		if env.Type != "practice.start" || !strings.Contains(string(env.Payload), "cat") {
			t.Errorf("envelope = %+v", env)
		}
	case <-ctx.Done():
		t.Fatal("handler not called")
	}
}

func TestCloseFailsPendingRequest(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	b := h.bridge(t)

	res := request(ctx, b)
	h.expect(t, ctx, wsmic.TypeMicRequest)
	h.client.Close(websocket.StatusNormalClosure, "bye")

	r := <-res
	if !errors.Is(r.err, audio.ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", r.err)
	}
}

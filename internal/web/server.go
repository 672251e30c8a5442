// Package web serves the tutor's browser surface: the practice websocket,
// speech synthesis, lesson generation and tutor chat, plus the health and
// metrics endpoints.
//
// Routes:
//
//	GET  /healthz, /readyz   liveness and readiness
//	GET  /metrics            Prometheus scrape endpoint
//	GET  /ws/practice        practice websocket (see [PracticeHandler])
//	POST /api/tts            {"text","voice"} → audio/wav
//	POST /api/lesson         {"topic","grade"} → lesson JSON
//	POST /api/chat           lesson.ChatRequest → {"reply"}
//	GET  /api/roadmap        the topic roadmap
//
// Every route runs behind [observe.Middleware].
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/joytutor/internal/config"
	"github.com/MrWong99/joytutor/internal/health"
	"github.com/MrWong99/joytutor/internal/lesson"
	"github.com/MrWong99/joytutor/internal/observe"
	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/audio/encode"
	"github.com/MrWong99/joytutor/pkg/provider/tts"
)

const (
	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 64 << 10

	// clipCacheSize bounds the synthesized clip cache.
	clipCacheSize = 256

	// preloadTimeout bounds background lesson preloading.
	preloadTimeout = time.Minute
)

// Config holds the collaborators of a [Server]. Practice is required;
// a nil TTS or Lessons disables the matching endpoints with 503.
type Config struct {
	// Practice returns the session template for a new practice connection.
	// The microphone and cue player are replaced per connection.
	Practice func() practice.SessionConfig

	// Tutor returns the current tutor settings. Nil means the defaults.
	Tutor func() config.TutorConfig

	TTS     tts.Provider
	Lessons *lesson.Generator

	// Health is mounted at /healthz and /readyz. Nil mounts a handler with
	// no readiness checks.
	Health *health.Handler

	// OriginPatterns are the extra browser origins allowed to open the
	// practice websocket.
	OriginPatterns []string

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server is the HTTP surface. It is safe for concurrent use.
type Server struct {
	cfg     Config
	handler http.Handler

	mu    sync.Mutex
	clips map[string]*tts.Speech
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Practice == nil {
		return nil, errors.New("web: practice session template is required")
	}
	if cfg.Tutor == nil {
		cfg.Tutor = func() config.TutorConfig { return config.TutorConfig{Grade: 3} }
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{cfg: cfg, clips: make(map[string]*tts.Speech)}

	mux := http.NewServeMux()
	cfg.Health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /ws/practice", &PracticeHandler{
		Practice:       cfg.Practice,
		OriginPatterns: cfg.OriginPatterns,
		Logger:         cfg.Logger,
	})
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("POST /api/lesson", s.handleLesson)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/roadmap", s.handleRoadmap)

	s.handler = observe.Middleware(cfg.Metrics,
		observe.WithAccessLogger(cfg.Logger),
		observe.WithQuietPaths("/healthz", "/readyz", "/metrics"),
	)(mux)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ─── Speech ──────────────────────────────────────────────────────────────────

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TTS == nil {
		writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
		return
	}
	var req ttsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	voice := tts.VoiceProfile{ID: req.Voice}
	if voice.ID == "" {
		voice.ID = s.cfg.Tutor().Voice
	}

	speech, err := s.synthesize(r.Context(), text, voice)
	if err != nil {
		observe.LoggerFrom(r.Context(), s.cfg.Logger).Warn("web: synthesis failed", "text", text, "err", err)
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	if speech == nil || len(speech.PCM) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	wav, err := WAV(speech)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", encode.MIMEWAV)
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	_, _ = w.Write(wav)
}

// synthesize serves text from the clip cache or the provider.
func (s *Server) synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Speech, error) {
	key := clipKey(text, voice)
	s.mu.Lock()
	speech, ok := s.clips[key]
	s.mu.Unlock()
	if ok {
		return speech, nil
	}

	start := time.Now()
	speech, err := s.cfg.TTS.Synthesize(ctx, text, voice)
	status := "ok"
	if err != nil {
		status = "error"
		s.cfg.Metrics.RecordProviderError(ctx, "tts", "synthesize")
	}
	s.cfg.Metrics.RecordProviderRequest(ctx, "tts", "synthesize", status)
	observe.LoggerFrom(ctx, s.cfg.Logger).Debug("web: synthesized", "text", text, "duration", time.Since(start), "err", err)
	if err != nil {
		return nil, err
	}
	if speech != nil {
		s.storeClip(key, speech)
	}
	return speech, nil
}

func (s *Server) storeClip(key string, speech *tts.Speech) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clips) >= clipCacheSize {
		clear(s.clips)
	}
	s.clips[key] = speech
}

func clipKey(text string, voice tts.VoiceProfile) string {
	return voice.ID + "\x00" + text
}

// WAV wraps speech in a RIFF/WAVE container.
func WAV(speech *tts.Speech) ([]byte, error) {
	if !speech.Format.Valid() {
		return nil, fmt.Errorf("web: wav: invalid speech format %s", speech.Format)
	}
	return encode.WAV(speech.PCM, speech.Format), nil
}

// ─── Lessons ─────────────────────────────────────────────────────────────────

type lessonRequest struct {
	Topic string `json:"topic"`
	Grade string `json:"grade,omitempty"`
}

func (s *Server) handleLesson(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Lessons == nil {
		writeError(w, http.StatusServiceUnavailable, "lesson generation is not configured")
		return
	}
	var req lessonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic must not be empty")
		return
	}
	tutor := s.cfg.Tutor()
	if req.Grade == "" {
		req.Grade = strconv.Itoa(tutor.Grade)
	}

	l, err := s.cfg.Lessons.Generate(r.Context(), req.Topic, req.Grade)
	s.recordLLM(r.Context(), "lesson", err)
	if err != nil {
		observe.LoggerFrom(r.Context(), s.cfg.Logger).Warn("web: lesson generation failed", "topic", req.Topic, "err", err)
		writeError(w, http.StatusBadGateway, "lesson generation failed")
		return
	}

	if tutor.Preload && s.cfg.TTS != nil {
		go s.preload(context.WithoutCancel(r.Context()), l, tts.VoiceProfile{ID: tutor.Voice})
	}
	writeJSON(w, http.StatusOK, l)
}

// preload fills the clip cache with every word of l.
func (s *Server) preload(ctx context.Context, l *lesson.Lesson, voice tts.VoiceProfile) {
	ctx, cancel := context.WithTimeout(ctx, preloadTimeout)
	defer cancel()
	clips, err := lesson.Preload(ctx, s.cfg.TTS, l, voice)
	if err != nil {
		observe.LoggerFrom(ctx, s.cfg.Logger).Warn("web: lesson preload failed", "topic", l.Topic, "err", err)
		return
	}
	for word, speech := range clips {
		s.storeClip(clipKey(word, voice), speech)
	}
	observe.LoggerFrom(ctx, s.cfg.Logger).Debug("web: lesson preloaded", "topic", l.Topic, "clips", len(clips))
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Lessons == nil {
		writeError(w, http.StatusServiceUnavailable, "tutor chat is not configured")
		return
	}
	var req lesson.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	reply, err := s.cfg.Lessons.Chat(r.Context(), req)
	s.recordLLM(r.Context(), "chat", err)
	if err != nil {
		observe.LoggerFrom(r.Context(), s.cfg.Logger).Warn("web: chat failed", "err", err)
		writeError(w, http.StatusBadGateway, "tutor chat failed")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleRoadmap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lesson.Roadmap)
}

func (s *Server) recordLLM(ctx context.Context, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.cfg.Metrics.RecordProviderError(ctx, "llm", kind)
	}
	s.cfg.Metrics.RecordProviderRequest(ctx, "llm", kind, status)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

// decodeJSON decodes the request body into v. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("web: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Package evaluator defines the Provider interface for pronunciation
// evaluation backends.
//
// An evaluator receives one finished recording together with the text the
// learner was asked to read, and answers with a raw, ideally JSON-shaped,
// verdict:
//
//	{ "accuracy": 0-100, "feedback": "...", "fluency": "...",
//	  "suggestion": "...", "isCorrect": true }
//
// Providers return the text exactly as the backend produced it. Parsing,
// clamping and fallback handling belong to the caller, so a backend that
// ignores the requested shape still yields a usable answer.
//
// Implementations must be safe for concurrent use.
package evaluator

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
)

// Request is one pronunciation evaluation.
type Request struct {
	// AudioBase64 is the recorded artifact in standard base64.
	AudioBase64 string

	// MIMEType is the negotiated encoding tag of the artifact, e.g.
	// "audio/ogg;codecs=opus".
	MIMEType string

	// ExpectedText is what the learner was asked to say.
	ExpectedText string

	// Mode is "word" or "sentence".
	Mode string
}

// Audio decodes AudioBase64.
func (r Request) Audio() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(r.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("evaluator: decode audio: %w", err)
	}
	return b, nil
}

// MediaType returns MIMEType without parameters ("audio/ogg" for
// "audio/ogg;codecs=opus"). Unparsable tags are returned unchanged.
func (r Request) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.MIMEType)
	if err != nil {
		return r.MIMEType
	}
	return mt
}

// Provider is the abstraction over any pronunciation evaluator.
type Provider interface {
	// Evaluate scores the recording and returns the backend's raw answer.
	// A non-nil error means the backend could not be reached or refused
	// the request; a malformed answer is returned as text with a nil error.
	Evaluate(ctx context.Context, req Request) (string, error)
}

// Package mock provides an in-memory [evaluator.Provider] for unit tests.
//
// Typical usage:
//
//	p := &mock.Provider{Response: `{"accuracy":95,"isCorrect":true}`}
//	raw, err := p.Evaluate(ctx, req)
//	if len(p.Calls()) != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
)

// Provider is a mock implementation of [evaluator.Provider].
type Provider struct {
	mu sync.Mutex

	// Response is returned by Evaluate when Err is nil.
	Response string

	// Err is returned by Evaluate when non-nil.
	Err error

	// Gate, when non-nil, blocks Evaluate until a value is received or ctx is
	// cancelled.
	Gate chan struct{}

	calls []evaluator.Request
}

var _ evaluator.Provider = (*Provider)(nil)

// Evaluate implements [evaluator.Provider].
func (p *Provider) Evaluate(ctx context.Context, req evaluator.Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	gate, resp, err := p.Gate, p.Response, p.Err
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Calls returns a copy of every request received so far.
func (p *Provider) Calls() []evaluator.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]evaluator.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

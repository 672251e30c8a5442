// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    Speech:           &tts.Speech{PCM: pcm, Format: audio.Format{SampleRate: 24000, Channels: 1}},
//	    ListVoicesResult: []tts.VoiceProfile{{ID: "Kore", Name: "Kore"}},
//	}
//	speech, _ := p.Synthesize(ctx, "apple", tts.VoiceProfile{})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/joytutor/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Speech is returned by Synthesize when SynthesizeErr is nil. May be nil.
	Speech *tts.Speech

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	synthesizeCalls []SynthesizeCall
	listVoicesCalls int
}

// Synthesize records the call and returns Speech, SynthesizeErr.
func (p *Provider) Synthesize(_ context.Context, text string, voice tts.VoiceProfile) (*tts.Speech, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCalls = append(p.synthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	return p.Speech, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listVoicesCalls++
	return p.ListVoicesResult, p.ListVoicesErr
}

// SynthesizeCalls returns a copy of all recorded Synthesize calls.
func (p *Provider) SynthesizeCalls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.synthesizeCalls))
	copy(out, p.synthesizeCalls)
	return out
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCalls = nil
	p.listVoicesCalls = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

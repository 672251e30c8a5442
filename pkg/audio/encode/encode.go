// Package encode turns captured PCM into a container format an evaluator
// can accept.
//
// [Negotiate] walks an ordered preference list and returns the first
// [Encoder] that supports the stream's format. Opus in an Ogg container is
// preferred; container-only WAV is the fallback that supports any PCM
// format.
package encode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// Well-known encoding tags.
const (
	MIMEOggOpus = "audio/ogg;codecs=opus"
	MIMEWAV     = "audio/wav"
)

// DefaultPreferred is the preference order used when none is configured.
var DefaultPreferred = []string{MIMEOggOpus, MIMEWAV}

// ErrUnsupported is returned by [Negotiate] when no preferred format can
// encode the stream.
var ErrUnsupported = errors.New("encode: no supported encoding")

// Encoder incrementally encodes one capture. Fragments returned by Write and
// Finalize, concatenated in order, form the complete artifact.
//
// Encoders are owned by a single capture and are not safe for concurrent use.
type Encoder interface {
	// MIMEType returns the negotiated encoding tag.
	MIMEType() string

	// Write consumes 16-bit interleaved PCM and returns any container bytes
	// that are ready. The returned fragment may be empty.
	Write(pcm []byte) ([]byte, error)

	// Finalize flushes buffered audio and returns the last fragment. Write
	// must not be called after Finalize.
	Finalize() ([]byte, error)
}

type codec struct {
	supports func(audio.Format) bool
	create   func(audio.Format) (Encoder, error)
}

var codecs = map[string]codec{
	MIMEOggOpus: {supports: opusSupports, create: newOpusEncoder},
	MIMEWAV:     {supports: wavSupports, create: newWAVEncoder},
}

// normalize lower-cases a MIME tag and drops whitespace so "audio/ogg; codecs=opus"
// and "audio/ogg;codecs=opus" compare equal.
func normalize(mime string) string {
	return strings.ToLower(strings.Join(strings.Fields(mime), ""))
}

// Known reports whether mime names a registered encoding.
func Known(mime string) bool {
	_, ok := codecs[normalize(mime)]
	return ok
}

// Supported reports whether mime can encode a stream in format f.
func Supported(mime string, f audio.Format) bool {
	c, ok := codecs[normalize(mime)]
	return ok && f.Valid() && c.supports(f)
}

// Negotiate creates an encoder for the first entry of preferred that
// supports f. Unknown tags are skipped. It returns an error wrapping
// [ErrUnsupported] when nothing matches.
func Negotiate(preferred []string, f audio.Format) (Encoder, error) {
	if len(preferred) == 0 {
		preferred = DefaultPreferred
	}
	var errs []error
	for _, mime := range preferred {
		c, ok := codecs[normalize(mime)]
		if !ok || !f.Valid() || !c.supports(f) {
			continue
		}
		enc, err := c.create(f)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mime, err))
			continue
		}
		return enc, nil
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w for %s: %w", ErrUnsupported, f, errors.Join(errs...))
	}
	return nil, fmt.Errorf("%w for %s among %v", ErrUnsupported, f, preferred)
}

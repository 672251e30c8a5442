package encode

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/joytutor/pkg/audio"
)

const (
	opusFrameMs    = 20
	opusMaxPacket  = 4000
	opusGranuleHz  = 48000
	opusVendorName = "joytutor"
)

func opusSupports(f audio.Format) bool {
	switch f.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return false
	}
	return f.Channels == 1 || f.Channels == 2
}

// opusEncoder encodes 20 ms Opus packets and frames each into its own Ogg
// page. The newest packet is held back so the final page can carry the
// end-of-stream flag.
type opusEncoder struct {
	enc    *gopus.Encoder
	format audio.Format
	ogg    oggStream

	frameSamples int // per channel
	pending      []int16
	held         []byte
	heldGranule  uint64

	headersSent bool
	encoded     uint64 // samples per channel encoded so far, at the input rate
	real        uint64 // samples per channel actually captured
}

func newOpusEncoder(f audio.Format) (Encoder, error) {
	enc, err := gopus.NewEncoder(f.SampleRate, f.Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("encode: create opus encoder: %w", err)
	}
	var serial uint32
	if err := binary.Read(rand.Reader, binary.LittleEndian, &serial); err != nil {
		return nil, fmt.Errorf("encode: ogg serial: %w", err)
	}
	return &opusEncoder{
		enc:          enc,
		format:       f,
		ogg:          oggStream{serial: serial},
		frameSamples: f.SampleRate * opusFrameMs / 1000,
	}, nil
}

func (e *opusEncoder) MIMEType() string { return MIMEOggOpus }

// granule converts a per-channel sample count at the input rate to the
// 48 kHz granule position, including pre-skip.
func (e *opusEncoder) granule(samples uint64) uint64 {
	return opusPreSkip + samples*opusGranuleHz/uint64(e.format.SampleRate)
}

func (e *opusEncoder) headers() []byte {
	if e.headersSent {
		return nil
	}
	e.headersSent = true
	out := e.ogg.page(opusHead(e.format.SampleRate, e.format.Channels), oggBOS, 0)
	return append(out, e.ogg.page(opusTags(opusVendorName), oggContinued, 0)...)
}

func (e *opusEncoder) Write(pcm []byte) ([]byte, error) {
	samples := audio.Int16s(pcm)
	e.pending = append(e.pending, samples...)
	e.real += uint64(len(samples) / e.format.Channels)

	out := e.headers()
	frame := e.frameSamples * e.format.Channels
	for len(e.pending) >= frame {
		packet, err := e.enc.Encode(e.pending[:frame], e.frameSamples, opusMaxPacket)
		if err != nil {
			return out, fmt.Errorf("encode: opus encode: %w", err)
		}
		e.pending = e.pending[frame:]
		e.encoded += uint64(e.frameSamples)

		if e.held != nil {
			out = append(out, e.ogg.page(e.held, oggContinued, e.heldGranule)...)
		}
		e.held = packet
		e.heldGranule = e.granule(e.encoded)
	}
	return out, nil
}

func (e *opusEncoder) Finalize() ([]byte, error) {
	out := e.headers()
	if len(e.pending) > 0 {
		frame := e.frameSamples * e.format.Channels
		padded := make([]int16, frame)
		copy(padded, e.pending)
		e.pending = nil
		packet, err := e.enc.Encode(padded, e.frameSamples, opusMaxPacket)
		if err != nil {
			return out, fmt.Errorf("encode: opus encode: %w", err)
		}
		if e.held != nil {
			out = append(out, e.ogg.page(e.held, oggContinued, e.heldGranule)...)
		}
		e.held = packet
	}
	// The last granule trims the padding of the final frame.
	out = append(out, e.ogg.page(e.held, oggEOS, e.granule(e.real))...)
	e.held = nil
	return out, nil
}

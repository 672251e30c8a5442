package encode

import (
	"bytes"
	"encoding/binary"

	"github.com/MrWong99/joytutor/pkg/audio"
)

func wavSupports(f audio.Format) bool { return f.Channels <= 2 }

// wavEncoder buffers the whole capture and emits a canonical RIFF/WAVE file
// on Finalize, since the header carries the data length.
type wavEncoder struct {
	format audio.Format
	buf    bytes.Buffer
}

func newWAVEncoder(f audio.Format) (Encoder, error) {
	return &wavEncoder{format: f}, nil
}

func (e *wavEncoder) MIMEType() string { return MIMEWAV }

func (e *wavEncoder) Write(pcm []byte) ([]byte, error) {
	e.buf.Write(pcm)
	return nil, nil
}

func (e *wavEncoder) Finalize() ([]byte, error) {
	data := e.buf.Bytes()
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	return WAV(data, e.format), nil
}

// WAV wraps 16-bit little-endian PCM in a 44-byte RIFF/WAVE header.
func WAV(pcm []byte, f audio.Format) []byte {
	const headerSize = 44
	blockAlign := f.Channels * 2
	out := make([]byte, headerSize+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[headerSize:], pcm)
	return out
}

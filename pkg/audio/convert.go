package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// Int16s decodes little-endian 16-bit PCM into samples. A trailing odd byte
// is ignored.
func Int16s(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// PCM encodes samples as little-endian 16-bit PCM.
func PCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Downmix averages interleaved samples across channels into a mono signal.
// It uses int32 arithmetic so no intermediate sum overflows.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := range frames {
		var sum int32
		for c := range channels {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// Upmix duplicates every mono sample into the given number of channels.
func Upmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)*channels)
	for i, s := range samples {
		for c := range channels {
			out[i*channels+c] = s
		}
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. Equal or invalid rates return the input unchanged.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

// Converter rewrites PCM into a fixed target format. It logs a warning on the
// first mismatch it sees. Create one per stream; it is not meant to be shared
// across goroutines.
type Converter struct {
	Target Format

	warnMismatch sync.Once
}

// Convert returns pcm, which is in format from, re-expressed in c.Target.
// Matching formats return the input unchanged.
func (c *Converter) Convert(pcm []byte, from Format) []byte {
	if from == c.Target || !from.Valid() || !c.Target.Valid() {
		return pcm
	}
	c.warnMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting", "from", from.String(), "to", c.Target.String())
	})
	samples := Downmix(Int16s(pcm), from.Channels)
	samples = Resample(samples, from.SampleRate, c.Target.SampleRate)
	return PCM(Upmix(samples, c.Target.Channels))
}

package encode

import (
	"encoding/binary"
)

// Ogg page header flags (RFC 3533).
const (
	oggContinued = 0x00
	oggBOS       = 0x02
	oggEOS       = 0x04

	oggHeaderSize = 27

	// opusPreSkip is the 80 ms pre-skip recommended by RFC 7845 §5.1, in
	// 48 kHz samples.
	opusPreSkip = 3840
)

var oggCRC = func() *[256]uint32 {
	var table [256]uint32
	const poly = 0x04c11db7
	for i := range table {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = r<<1 ^ poly
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return &table
}()

// oggStream frames packets of one logical Ogg bitstream, one packet per page.
type oggStream struct {
	serial uint32
	seq    uint32
}

// page builds a single Ogg page carrying payload. Payloads up to 255*255
// bytes fit in one page.
func (s *oggStream) page(payload []byte, flags byte, granule uint64) []byte {
	segments := len(payload)/255 + 1
	p := make([]byte, oggHeaderSize+segments+len(payload))

	copy(p[0:4], "OggS")
	p[4] = 0 // version
	p[5] = flags
	binary.LittleEndian.PutUint64(p[6:14], granule)
	binary.LittleEndian.PutUint32(p[14:18], s.serial)
	binary.LittleEndian.PutUint32(p[18:22], s.seq)
	p[26] = byte(segments)
	for i := range segments - 1 {
		p[oggHeaderSize+i] = 255
	}
	p[oggHeaderSize+segments-1] = byte(len(payload) % 255)
	copy(p[oggHeaderSize+segments:], payload)

	var crc uint32
	for _, b := range p {
		crc = crc<<8 ^ oggCRC[byte(crc>>24)^b]
	}
	binary.LittleEndian.PutUint32(p[22:26], crc)

	s.seq++
	return p
}

// opusHead returns the RFC 7845 identification header.
func opusHead(sampleRate, channels int) []byte {
	h := make([]byte, 19)
	copy(h[0:8], "OpusHead")
	h[8] = 1 // version
	h[9] = byte(channels)
	binary.LittleEndian.PutUint16(h[10:12], opusPreSkip)
	binary.LittleEndian.PutUint32(h[12:16], uint32(sampleRate))
	binary.LittleEndian.PutUint16(h[16:18], 0) // output gain
	h[18] = 0                                  // mapping family 0: mono or stereo
	return h
}

// opusTags returns the RFC 7845 comment header with an empty comment list.
func opusTags(vendor string) []byte {
	h := make([]byte, 8+4+len(vendor)+4)
	copy(h[0:8], "OpusTags")
	binary.LittleEndian.PutUint32(h[8:12], uint32(len(vendor)))
	copy(h[12:], vendor)
	binary.LittleEndian.PutUint32(h[12+len(vendor):], 0)
	return h
}

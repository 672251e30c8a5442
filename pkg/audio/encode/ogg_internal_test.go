package encode

import (
	"encoding/binary"
	"testing"
)

func TestOggPageLayout(t *testing.T) {
	t.Parallel()
	s := oggStream{serial: 0xdeadbeef}
	payload := make([]byte, 300)
	p := s.page(payload, oggBOS, 42)

	if string(p[0:4]) != "OggS" {
		t.Fatalf("capture pattern = %q", p[0:4])
	}
	if p[26] != 2 || p[27] != 255 || p[28] != 45 {
		t.Errorf("lacing = %d [%d %d], want 2 [255 45]", p[26], p[27], p[28])
	}
	if got := binary.LittleEndian.Uint64(p[6:14]); got != 42 {
		t.Errorf("granule = %d, want 42", got)
	}
	if got := binary.LittleEndian.Uint32(p[14:18]); got != 0xdeadbeef {
		t.Errorf("serial = %#x", got)
	}
	if len(p) != 27+2+300 {
		t.Errorf("len = %d, want %d", len(p), 27+2+300)
	}

	// Recomputing the CRC with the checksum field zeroed must reproduce it.
	want := binary.LittleEndian.Uint32(p[22:26])
	binary.LittleEndian.PutUint32(p[22:26], 0)
	var crc uint32
	for _, b := range p {
		crc = crc<<8 ^ oggCRC[byte(crc>>24)^b]
	}
	if crc != want {
		t.Errorf("crc = %#x, want %#x", crc, want)
	}

	second := s.page(nil, oggEOS, 0)
	if got := binary.LittleEndian.Uint32(second[18:22]); got != 1 {
		t.Errorf("second page sequence = %d, want 1", got)
	}
}

func TestOggCRCKnownValue(t *testing.T) {
	t.Parallel()
	// CRC-32/OGG (poly 0x04c11db7, no reflection, init 0) of "123456789".
	var crc uint32
	for _, b := range []byte("123456789") {
		crc = crc<<8 ^ oggCRC[byte(crc>>24)^b]
	}
	if crc != 0x89a1897f {
		t.Errorf("crc = %#x, want 0x89a1897f", crc)
	}
}

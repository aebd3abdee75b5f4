package archive

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// Blob layout (little endian):
//
//	[0:4]   magic "LFH1"
//	[4]     codec
//	[5:9]   number of values
//	[9:17]  xxhash64 of the uncompressed payload
//	[17:]   compressed payload
//
// The payload stores each float64 XORed with its predecessor, which
// turns a smooth cost curve into mostly-zero high bytes.
const (
	magic      = "LFH1"
	headerSize = 17
)

// Stats describes one encoded blob.
type Stats struct {
	Codec        CodecType
	Values       int
	Uncompressed int
	Compressed   int
}

// Ratio returns Compressed/Uncompressed (0 for an empty history).
func (s Stats) Ratio() float64 {
	if s.Uncompressed == 0 {
		return 0
	}
	return float64(s.Compressed) / float64(s.Uncompressed)
}

// EncodeHistory packs values with codec t.
func EncodeHistory(values []float64, t CodecType) ([]byte, Stats, error) {
	codec, err := GetCodec(t)
	if err != nil {
		return nil, Stats{}, err
	}

	raw := make([]byte, 8*len(values))
	var prev uint64
	for i, v := range values {
		bits := math.Float64bits(v)
		binary.LittleEndian.PutUint64(raw[8*i:], bits^prev)
		prev = bits
	}

	payload, err := codec.Compress(raw)
	if err != nil {
		return nil, Stats{}, err
	}
	if payload == nil && len(raw) > 0 {
		t, payload = CodecNone, raw
	}

	out := make([]byte, headerSize, headerSize+len(payload))
	copy(out, magic)
	out[4] = byte(t)
	binary.LittleEndian.PutUint32(out[5:], uint32(len(values)))
	binary.LittleEndian.PutUint64(out[9:], xxhash.Sum64(raw))
	out = append(out, payload...)

	return out, Stats{Codec: t, Values: len(values), Uncompressed: len(raw), Compressed: len(out)}, nil
}

// DecodeHistory reverses EncodeHistory. A corrupted blob fails the
// checksum and returns a ModelError.
func DecodeHistory(blob []byte) ([]float64, error) {
	if len(blob) < headerSize || string(blob[:4]) != magic {
		return nil, errors.NewModelError("archive.DecodeHistory", "not a history archive", nil)
	}
	codec, err := GetCodec(CodecType(blob[4]))
	if err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(blob[5:]))
	sum := binary.LittleEndian.Uint64(blob[9:])

	if n == 0 {
		return []float64{}, nil
	}
	raw, err := codec.Decompress(blob[headerSize:], 8*n)
	if err != nil {
		return nil, errors.NewModelError("archive.DecodeHistory", "decompress", err)
	}
	if len(raw) != 8*n || xxhash.Sum64(raw) != sum {
		return nil, errors.NewModelError("archive.DecodeHistory", "checksum mismatch", nil)
	}

	values := make([]float64, n)
	var prev uint64
	for i := range values {
		bits := binary.LittleEndian.Uint64(raw[8*i:]) ^ prev
		values[i] = math.Float64frombits(bits)
		prev = bits
	}
	return values, nil
}

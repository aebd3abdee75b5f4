// Package archive packs a training run's per-epoch cost history into a
// compact, checksummed blob for storage alongside a saved model.
package archive

import (
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// CodecType identifies the compression applied to an archived payload.
type CodecType uint8

const (
	CodecNone CodecType = iota
	CodecZstd
	CodecS2
	CodecLZ4
)

func (c CodecType) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecS2:
		return "s2"
	case CodecLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseCodec maps "none", "zstd", "s2" or "lz4" to a CodecType.
func ParseCodec(name string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "s2":
		return CodecS2, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return CodecNone, errors.NewValidationError("archive_codec", "must be one of none, zstd, s2, lz4", name)
	}
}

// Codec compresses payloads. Decompress receives the exact uncompressed
// size, which the archive header records.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, size int) ([]byte, error)
}

// GetCodec returns the built-in codec for t.
func GetCodec(t CodecType) (Codec, error) {
	switch t {
	case CodecNone:
		return noopCodec{}, nil
	case CodecZstd:
		return zstdCodec{}, nil
	case CodecS2:
		return s2Codec{}, nil
	case CodecLZ4:
		return lz4Codec{}, nil
	default:
		return nil, errors.NewValidationError("archive_codec", "unsupported codec", uint8(t))
	}
}

type noopCodec struct{}

func (noopCodec) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (noopCodec) Decompress(data []byte, size int) ([]byte, error) {
	if len(data) != size {
		return nil, errors.NewDimensionError("archive.Decompress", size, len(data))
	}
	return append([]byte(nil), data...), nil
}

// zstd encoders and decoders are designed for reuse after warmup.
var (
	zstdEncoderPool = sync.Pool{
		New: func() any {
			enc, err := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
				zstd.WithEncoderCRC(false),
			)
			if err != nil {
				panic("archive: zstd encoder: " + err.Error())
			}
			return enc
		},
	}
	zstdDecoderPool = sync.Pool{
		New: func() any {
			dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				panic("archive: zstd decoder: " + err.Error())
			}
			return dec
		},
	}
)

type zstdCodec struct{}

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(data []byte, size int) ([]byte, error) {
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(data, make([]byte, 0, size))
	if err != nil {
		return nil, errors.Wrap(err, "zstd decompression failed")
	}
	return out, nil
}

type s2Codec struct{}

func (s2Codec) Compress(data []byte) ([]byte, error) {
	return s2.EncodeBetter(nil, data), nil
}

func (s2Codec) Decompress(data []byte, size int) ([]byte, error) {
	out, err := s2.Decode(make([]byte, size), data)
	if err != nil {
		return nil, errors.Wrap(err, "s2 decompression failed")
	}
	return out, nil
}

var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

type lz4Codec struct{}

// Compress returns nil when lz4 finds nothing to compress; the caller
// then stores the payload uncompressed.
func (lz4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 compression failed")
	}
	if n == 0 {
		return nil, nil
	}
	return dst[:n], nil
}

func (lz4Codec) Decompress(data []byte, size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := lz4.UncompressBlock(data, buf)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompression failed")
	}
	return buf[:n], nil
}

package audit

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression names how a stored change payload is encoded.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are compressed.
const DefaultCompressThreshold = 10 * 1024

// Codec compresses large change payloads with zstd. It is safe for concurrent use.
type Codec struct {
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewCodec creates a codec compressing payloads longer than threshold bytes.
func NewCodec(threshold int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{threshold: threshold, encoder: encoder, decoder: decoder}, nil
}

// Encode returns the payload to store and how it is encoded.
func (c *Codec) Encode(raw []byte) ([]byte, Compression) {
	if len(raw) <= c.threshold {
		return raw, CompressionNone
	}
	return c.encoder.EncodeAll(raw, nil), CompressionZstd
}

// Decode reverses Encode.
func (c *Codec) Decode(stored []byte, algo Compression) ([]byte, error) {
	switch algo {
	case CompressionNone, "":
		return stored, nil
	case CompressionZstd:
		raw, err := c.decoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress changes: %w", err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("unknown compression %q", algo)
}

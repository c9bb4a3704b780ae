package audit

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressThreshold is the payload size above which changes are compressed.
const DefaultCompressThreshold = 10 * 1024

// Codec compresses large change payloads with zstd. Safe for concurrent use.
type Codec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewCodec creates a codec. threshold <= 0 uses DefaultCompressThreshold.
func NewCodec(threshold int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &Codec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Compress moves oversized Changes into ChangesCompressed.
func (c *Codec) Compress(entry *Entry) {
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > c.threshold {
		entry.ChangesCompressed = c.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
}

// Decompress restores Changes for a compressed entry.
func (c *Codec) Decompress(entry *Entry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := c.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	entry.Changes = raw
	entry.ChangesCompressed = nil
	return nil
}

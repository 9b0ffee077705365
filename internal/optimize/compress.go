package optimize

import (
	"bytes"
	"fmt"

	"github.com/andybalholm/brotli"
)

// CompressedSuffix is appended to the name of every compressed companion.
const CompressedSuffix = ".br"

// Encoding is the Content-Encoding of compressed companions.
const Encoding = "br"

// Compressor encodes bytes for transfer.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Brotli compresses with the brotli codec at a fixed quality.
type Brotli struct {
	Level int
}

// NewBrotli returns a compressor at the given quality. Out-of-range levels
// use brotli.BestCompression.
func NewBrotli(level int) *Brotli {
	if level < brotli.BestSpeed || level > brotli.BestCompression {
		level = brotli.BestCompression
	}
	return &Brotli{Level: level}
}

// Compress implements Compressor.
func (b *Brotli) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, b.Level)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	return buf.Bytes(), nil
}

package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// SnappyCompressor writes the snappy framing format. Each chunk carries a CRC.
type SnappyCompressor struct{}

// NewSnappyCompressor creates a new Snappy compressor
func NewSnappyCompressor() *SnappyCompressor {
	return &SnappyCompressor{}
}

// Compress frames and compresses data. Empty input stays empty.
func (s *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("snappy compress failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("snappy compress failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reads a framed stream, verifying every chunk checksum
func (s *SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	out, err := io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("snappy decompress failed: %w", err)
	}
	return out, nil
}

// Algorithm returns Snappy
func (s *SnappyCompressor) Algorithm() Algorithm {
	return Snappy
}

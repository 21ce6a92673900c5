package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"snappy", Snappy, false},
		{"SNAPPY", Snappy, false},
		{"none", None, false},
		{"", None, false},
		{"zstd", None, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, name string) Algorithm {
	t.Helper()
	a, err := ParseAlgorithm(name)
	require.NoError(t, err)
	return a
}

func TestGetCompressor(t *testing.T) {
	c, err := GetCompressor(Snappy)
	require.NoError(t, err)
	assert.Equal(t, Snappy, c.Algorithm())

	c, err = GetCompressor(None)
	require.NoError(t, err)
	assert.Equal(t, None, c.Algorithm())

	_, err = GetCompressor(Algorithm(9))
	assert.Error(t, err)
}

func TestCompressors_Document(t *testing.T) {
	doc := []byte(strings.Repeat("[sensors.tank3.calibration]\nscaled_units = \"pH\"\n", 50))

	for _, algo := range []Algorithm{None, Snappy} {
		t.Run(algo.String(), func(t *testing.T) {
			c, err := GetCompressor(algo)
			require.NoError(t, err)

			packed, err := c.Compress(doc)
			require.NoError(t, err)
			if algo == Snappy {
				assert.Less(t, len(packed), len(doc))
			}

			unpacked, err := c.Decompress(packed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(doc, unpacked))
		})
	}
}

func TestSnappy_Empty(t *testing.T) {
	c := NewSnappyCompressor()

	out, err := c.Compress(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = c.Decompress([]byte{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSnappy_Corrupt(t *testing.T) {
	_, err := NewSnappyCompressor().Decompress([]byte{0xff, 0xff, 0xff, 0xff, 0x0f, 0x01})
	assert.Error(t, err)
}

func TestSnappy_Framed(t *testing.T) {
	c := NewSnappyCompressor()
	doc := []byte(strings.Repeat("0 = 414.1\n1 = -59.2\n", 40))

	packed, err := c.Compress(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(packed, []byte("\xff\x06\x00\x00sNaPpY")), "stream identifier")

	// a flipped payload byte fails the chunk checksum
	damaged := append([]byte(nil), packed...)
	damaged[len(damaged)-1] ^= 0x55
	_, err = c.Decompress(damaged)
	assert.Error(t, err)

	_, err = c.Decompress(packed[:len(packed)-3])
	assert.Error(t, err, "truncated archive")
}

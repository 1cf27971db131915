package lsp

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetFromPositionBasics(t *testing.T) {
	text := "MSH|^~\\&|A\nPID|1"

	for _, enc := range []PositionEncoding{PositionEncodingUTF8, PositionEncodingUTF16, PositionEncodingUTF32} {
		t.Run(string(enc), func(t *testing.T) {
			off, ok := OffsetFromPosition(text, 0, 0, enc)
			require.True(t, ok)
			assert.Equal(t, 0, off)

			off, ok = OffsetFromPosition(text, 1, 4, enc)
			require.True(t, ok)
			assert.Equal(t, 15, off)

			// Past line end clamps to the newline.
			off, ok = OffsetFromPosition(text, 0, 99, enc)
			require.True(t, ok)
			assert.Equal(t, 10, off)

			// Line past the document is rejected.
			_, ok = OffsetFromPosition(text, 5, 0, enc)
			assert.False(t, ok)
		})
	}
}

func TestTrailingCRBelongsToPrecedingLine(t *testing.T) {
	text := "MSH|^~\\&|A\r\nPID|1"

	// The \r at offset 10 is addressable on line 0.
	off, ok := OffsetFromPosition(text, 0, 10, PositionEncodingUTF8)
	require.True(t, ok)
	assert.Equal(t, 10, off)

	line, char := PositionFromOffset(text, 10, PositionEncodingUTF8)
	assert.Equal(t, 0, line)
	assert.Equal(t, 10, char)

	// Line 1 starts after the \n.
	off, ok = OffsetFromPosition(text, 1, 0, PositionEncodingUTF8)
	require.True(t, ok)
	assert.Equal(t, 12, off)
}

func TestMultiByteEncodings(t *testing.T) {
	// "José" has a two-byte é; 𝕏 (U+1D54F) needs a surrogate pair in
	// UTF-16 and four bytes in UTF-8.
	text := "PID|José|𝕏Y"
	idxY := len(text) - 1
	require.Equal(t, byte('Y'), text[idxY])

	tests := []struct {
		enc  PositionEncoding
		char int
	}{
		{PositionEncodingUTF8, idxY},
		{PositionEncodingUTF16, 4 + 4 + 1 + 2}, // PID| José | surrogate pair
		{PositionEncodingUTF32, 4 + 4 + 1 + 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.enc), func(t *testing.T) {
			off, ok := OffsetFromPosition(text, 0, tt.char, tt.enc)
			require.True(t, ok)
			assert.Equal(t, idxY, off)

			line, char := PositionFromOffset(text, idxY, tt.enc)
			assert.Equal(t, 0, line)
			assert.Equal(t, tt.char, char)
		})
	}
}

func TestMidSurrogateFloorsToRuneStart(t *testing.T) {
	text := "𝕏Y"
	off, ok := OffsetFromPosition(text, 0, 1, PositionEncodingUTF16)
	require.True(t, ok)
	assert.Equal(t, 0, off, "second half of a surrogate pair floors to the rune start")
}

func TestPositionRoundTrip(t *testing.T) {
	// offset_to_lsp(lsp_to_offset(p)) == p for every rune-aligned
	// position under every encoding.
	texts := []string{
		"MSH|^~\\&|ådt\rPID|Łukasz^José\nOBX|1|𝕏",
		"",
		"no newline at all",
	}
	for _, text := range texts {
		for _, enc := range []PositionEncoding{PositionEncodingUTF8, PositionEncodingUTF16, PositionEncodingUTF32} {
			for off := 0; off <= len(text); off++ {
				if off < len(text) && !utf8.RuneStart(text[off]) {
					continue
				}
				line, char := PositionFromOffset(text, off, enc)
				back, ok := OffsetFromPosition(text, line, char, enc)
				require.True(t, ok, "%s offset %d", enc, off)
				assert.Equal(t, off, back,
					fmt.Sprintf("%s: offset %d -> (%d,%d) -> %d", enc, off, line, char, back))
			}
		}
	}
}

func TestNegotiateEncoding(t *testing.T) {
	assert.Equal(t, PositionEncodingUTF16, negotiateEncoding(nil))
	assert.Equal(t, PositionEncodingUTF8, negotiateEncoding([]string{"utf-8", "utf-16"}))
	assert.Equal(t, PositionEncodingUTF32, negotiateEncoding([]string{"utf-32"}))
	assert.Equal(t, PositionEncodingUTF16, negotiateEncoding([]string{"ebcdic"}))
	assert.Equal(t, PositionEncodingUTF16, negotiateEncoding([]string{"utf-16", "utf-8"}))
}

// Package gridcodec converts ownership grids to and from their wire form: an
// upper-case hex string of a zlib stream holding one byte per cell, row-major,
// with 255 marking unclaimed cells.
package gridcodec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"

	"terrasync/world"
)

// MaxCells bounds width×height so a hostile header cannot force a huge
// allocation.
const MaxCells = 1 << 24

var (
	ErrMalformedEncoding = errors.New("gridcodec: malformed hex encoding")
	ErrDecompression     = errors.New("gridcodec: decompression failed")
	ErrSizeMismatch      = errors.New("gridcodec: size mismatch")
)

// Decode turns an encoded grid into a width×height matrix. The decompressed
// payload must hold exactly width×height bytes; short and long payloads both
// fail with ErrSizeMismatch.
func Decode(encoded string, width, height int) (*world.Grid, error) {
	if width <= 0 || height <= 0 || width > MaxCells/height {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", ErrSizeMismatch, width, height)
	}
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer zr.Close()

	want := width * height
	// One byte past want is enough to detect an oversized payload.
	cells, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if len(cells) != want {
		if len(cells) > want {
			return nil, fmt.Errorf("%w: payload exceeds %dx%d", ErrSizeMismatch, width, height)
		}
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrSizeMismatch, len(cells), want)
	}
	return world.NewGrid(width, height, cells)
}

// Encode produces the wire form of g.
func Encode(g *world.Grid) string {
	return EncodeBytes(g.Cells())
}

// EncodeBytes compresses and hex encodes raw cell bytes without checking
// them against any dimensions. Writes to a bytes.Buffer cannot fail.
func EncodeBytes(cells []byte) string {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(cells)
	zw.Close()
	return strings.ToUpper(hex.EncodeToString(buf.Bytes()))
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// Compression is the bundle compression method id (header flags bits 0-5).
type Compression uint32

// Bundle compression methods.
const (
	CompressionNone  Compression = 0
	CompressionLZMA  Compression = 1
	CompressionLZ4   Compression = 2
	CompressionLZ4HC Compression = 3
	// CompressionLZHAM is recognized but never decoded.
	CompressionLZHAM Compression = 4
)

const (
	// lzmaPropsSize is Unity LZMA header: properties byte and dictionary size.
	lzmaPropsSize = 5
	// lzmaClassicHeaderSize is .lzma header: properties, dictionary size, uncompressed size.
	lzmaClassicHeaderSize = 13
	// lz4FrameMagic is little-endian LZ4 frame signature.
	lz4FrameMagic = 0x184D2204
	// maxUnknownDecompressSize bounds output when the expected size is unknown.
	maxUnknownDecompressSize int64 = 1 << 30
)

// String returns short method name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZMA:
		return "lzma"
	case CompressionLZ4:
		return "lz4"
	case CompressionLZ4HC:
		return "lz4hc"
	case CompressionLZHAM:
		return "lzham"
	default:
		return "unknown(" + strconv.FormatUint(uint64(c), 10) + ")"
	}
}

// Supported reports whether Decompress can decode the method.
func (c Compression) Supported() bool {
	return c <= CompressionLZ4HC
}

// checkCompression validates method id without touching any data.
func checkCompression(method Compression) error {
	switch {
	case method == CompressionLZHAM:
		return fmt.Errorf("%w: method %d (%s)", ErrUnsupportedCodec, method, method)
	case !method.Supported():
		return fmt.Errorf("%w: method %d", ErrUnknownCodec, method)
	default:
		return nil
	}
}

// Decompress decodes src compressed with method. size is the expected output
// length; negative means unknown. Method none returns src unchanged.
func Decompress(method Compression, src []byte, size int) ([]byte, error) {
	if err := checkCompression(method); err != nil {
		return nil, err
	}

	var (
		out []byte
		err error
	)
	switch method {
	case CompressionNone:
		return src, nil
	case CompressionLZMA:
		out, err = decompressLZMA(src, size)
	case CompressionLZ4:
		if isLZ4Frame(src) {
			out, err = decompressLZ4Frame(src, size)
		} else {
			out, err = decompressLZ4Block(src, size)
		}
	case CompressionLZ4HC:
		out, err = decompressLZ4Block(src, size)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecompressFailed, method, err)
	}

	if size >= 0 && len(out) != size {
		return nil, fmt.Errorf("%w: %s: got %d bytes, want %d", ErrDecompressFailed, method, len(out), size)
	}

	return out, nil
}

// decompressLZMA decodes Unity LZMA stream (5-byte props header, no size, no end marker)
// by prepending the classic 13-byte header with the expected size.
func decompressLZMA(src []byte, size int) ([]byte, error) {
	if len(src) < lzmaPropsSize {
		return nil, fmt.Errorf("lzma stream shorter than %d-byte header", lzmaPropsSize)
	}

	var header [lzmaClassicHeaderSize]byte
	copy(header[:], src[:lzmaPropsSize])
	storedSize := ^uint64(0)
	if size >= 0 {
		storedSize = uint64(size)
	}
	binary.LittleEndian.PutUint64(header[lzmaPropsSize:], storedSize)
	stream := io.MultiReader(bytes.NewReader(header[:]), bytes.NewReader(src[lzmaPropsSize:]))

	lr, err := lzma.NewReader(stream)
	if err != nil {
		return nil, err
	}

	return readDecoded(lr, size)
}

// isLZ4Frame reports whether src starts with LZ4 frame magic.
func isLZ4Frame(src []byte) bool {
	return len(src) >= 4 && binary.LittleEndian.Uint32(src) == lz4FrameMagic
}

// decompressLZ4Frame decodes LZ4 frame bounded by size when known.
func decompressLZ4Frame(src []byte, size int) ([]byte, error) {
	return readDecoded(lz4.NewReader(bytes.NewReader(src)), size)
}

// decompressLZ4Block decodes raw LZ4 block; output size must be known.
func decompressLZ4Block(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("raw lz4 block requires expected size")
	}

	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}

	n, err := lz4.UncompressBlock(src, out)
	if err != nil {
		return nil, err
	}

	return out[:n], nil
}

// readDecoded reads decoder output: exactly size bytes when known, bounded otherwise.
func readDecoded(r io.Reader, size int) ([]byte, error) {
	if size < 0 {
		out, err := io.ReadAll(io.LimitReader(r, maxUnknownDecompressSize+1))
		if err != nil {
			return nil, err
		}
		if int64(len(out)) > maxUnknownDecompressSize {
			return nil, fmt.Errorf("%w: decoded stream exceeds %d bytes", ErrSizeOverflow, maxUnknownDecompressSize)
		}

		return out, nil
	}

	out := make([]byte, size)
	n, err := io.ReadFull(r, out)
	if err != nil {
		return nil, fmt.Errorf("decoded %d of %d bytes: %w", n, size, err)
	}

	var probe [1]byte
	if extra, _ := r.Read(probe[:]); extra > 0 {
		return nil, fmt.Errorf("decoded stream longer than %d bytes", size)
	}

	return out, nil
}

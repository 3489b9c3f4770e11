// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// headerWindowSize is the largest possible header: magic, version, two capped strings, fixed tail.
const headerWindowSize = bundleMagicLen + 4 + 2*(maxHeaderStringLen+1) + headerTailSize

// ParseHeader reads and validates UnityFS bundle header from the start of ra.
func ParseHeader(ra io.ReaderAt, size int64) (Header, error) {
	if ra == nil {
		return Header{}, ErrNilReader
	}

	if size < int64(bundleMagicLen) {
		return Header{}, fmt.Errorf("%w: source is %d bytes, magic needs %d", ErrTruncatedHeader, size, bundleMagicLen)
	}

	window := int64(headerWindowSize)
	if size < window {
		window = size
	}

	buf, err := readFullAt(ra, 0, int(window))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: read %d header bytes: %w", ErrTruncatedHeader, window, err)
		}

		return Header{}, fmt.Errorf("%w: read header: %w", ErrIOFailure, err)
	}

	return parseHeaderBytes(buf)
}

// parseHeaderBytes parses header fields from an in-memory header window.
func parseHeaderBytes(buf []byte) (Header, error) {
	c := newCursor(buf, binary.BigEndian)

	magic, err := c.next(bundleMagicLen)
	if err != nil {
		return Header{}, fmt.Errorf("%w: magic at offset 0", ErrTruncatedHeader)
	}

	if string(magic) != BundleMagic {
		return Header{}, fmt.Errorf("%w: expected %q, found %q", ErrInvalidMagic, BundleMagic, magic)
	}

	var h Header
	h.Signature = strings.TrimRight(BundleMagic, "\x00")

	if h.Version, err = c.uint32(); err != nil {
		return Header{}, truncatedAt("version", c.off)
	}

	if h.EngineVersion, err = c.cstring(maxHeaderStringLen); err != nil {
		return Header{}, truncatedAt("engine version", c.off)
	}

	if h.EngineRevision, err = c.cstring(maxHeaderStringLen); err != nil {
		return Header{}, truncatedAt("engine revision", c.off)
	}

	if h.FileSize, err = c.uint64(); err != nil {
		return Header{}, truncatedAt("file size", c.off)
	}

	if h.CompressedDirSize, err = c.uint32(); err != nil {
		return Header{}, truncatedAt("compressed directory size", c.off)
	}

	if h.DecompressedDirSize, err = c.uint32(); err != nil {
		return Header{}, truncatedAt("decompressed directory size", c.off)
	}

	if h.Flags, err = c.uint32(); err != nil {
		return Header{}, truncatedAt("flags", c.off)
	}

	h.Layout = parseLayout(h.Flags)
	h.EndOfHeader = int64(c.off)

	return h, nil
}

// truncatedAt builds TruncatedHeader error for named field at offset.
func truncatedAt(field string, offset int) error {
	return fmt.Errorf("%w: %s at offset %d", ErrTruncatedHeader, field, offset)
}

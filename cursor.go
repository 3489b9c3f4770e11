// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// errShortBuffer is returned by byteCursor when fewer bytes remain than requested.
	errShortBuffer = errors.New("short buffer")
	// errNoTerminator is returned when a NUL terminator is not found within scan bounds.
	errNoTerminator = errors.New("string terminator not found")
)

// byteCursor reads fixed-width fields from an in-memory buffer without running past its end.
type byteCursor struct {
	order binary.ByteOrder
	buf   []byte
	off   int
}

// newCursor creates cursor over buf with selected byte order.
func newCursor(buf []byte, order binary.ByteOrder) *byteCursor {
	return &byteCursor{buf: buf, order: order}
}

// remaining returns number of unread bytes.
func (c *byteCursor) remaining() int {
	return len(c.buf) - c.off
}

// next returns next n bytes and advances cursor.
func (c *byteCursor) next(n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, errShortBuffer
	}

	out := c.buf[c.off : c.off+n]
	c.off += n
	return out, nil
}

func (c *byteCursor) uint16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}

	return c.order.Uint16(b), nil
}

func (c *byteCursor) uint32() (uint32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}

	return c.order.Uint32(b), nil
}

func (c *byteCursor) uint64() (uint64, error) {
	b, err := c.next(8)
	if err != nil {
		return 0, err
	}

	return c.order.Uint64(b), nil
}

// cstring reads NUL-terminated string of at most limit bytes (terminator excluded).
func (c *byteCursor) cstring(limit int) (string, error) {
	s, n, err := scanCString(c.buf[c.off:], limit)
	if err != nil {
		return "", err
	}

	c.off += n
	return s, nil
}

// scanCString scans buf for NUL within limit bytes and returns decoded string
// and number of consumed bytes including the terminator.
func scanCString(buf []byte, limit int) (string, int, error) {
	window := buf
	if limit >= 0 && len(window) > limit+1 {
		window = window[:limit+1]
	}

	idx := bytes.IndexByte(window, 0)
	if idx < 0 {
		if len(window) < len(buf) {
			return "", 0, fmt.Errorf("%w within %d bytes", errNoTerminator, limit)
		}

		return "", 0, errNoTerminator
	}

	return string(window[:idx]), idx + 1, nil
}

// readFullAt reads exactly n bytes at offset from ReaderAt.
// Short reads return io.ErrUnexpectedEOF.
func readFullAt(ra io.ReaderAt, offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	got, err := ra.ReadAt(buf, offset)
	if got == n {
		return buf, nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}

	return nil, err
}

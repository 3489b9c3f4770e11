// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// WebData provides read-only access to a parsed UnityWebData container.
type WebData struct {
	ra      io.ReaderAt
	closer  io.Closer
	entries []Entry
	opts    ReaderOptions
	size    int64
	// tableSize is the declared header table length.
	tableSize uint32
	mu        sync.Mutex
	closed    bool
}

// OpenWebData opens UnityWebData container by path (gzip-wrapped files are unwrapped).
func OpenWebData(path string, opts ReaderOptions) (*WebData, error) {
	opts.applyDefaults()

	src, err := OpenSource(path, opts)
	if err != nil {
		return nil, err
	}

	w, err := NewWebData(src, src.Size(), opts)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	w.closer = src
	return w, nil
}

// NewWebData parses UnityWebData container from existing ReaderAt and known size.
func NewWebData(ra io.ReaderAt, size int64, opts ReaderOptions) (*WebData, error) {
	opts.applyDefaults()

	if ra == nil {
		return nil, ErrNilReader
	}

	tableSize, entries, err := parseWebData(ra, size, opts.MaxDirectorySize)
	if err != nil {
		return nil, err
	}

	return &WebData{
		ra:        ra,
		size:      size,
		entries:   entries,
		tableSize: tableSize,
		opts:      opts,
	}, nil
}

// ParseWebDataTable parses UnityWebData file table from ra.
func ParseWebDataTable(ra io.ReaderAt, size int64) ([]Entry, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	_, entries, err := parseWebData(ra, size, DefaultMaxDirectorySize)
	return entries, err
}

// parseWebData validates magic, reads the header table and parses its records.
func parseWebData(ra io.ReaderAt, size int64, maxTable uint32) (uint32, []Entry, error) {
	if size < webDataTableStart {
		return 0, nil, fmt.Errorf("%w: source is %d bytes, web data header needs %d",
			ErrTruncatedHeader, size, webDataTableStart)
	}

	head, err := readFullAt(ra, 0, webDataTableStart)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, fmt.Errorf("%w: %w", ErrTruncatedHeader, err)
		}

		return 0, nil, fmt.Errorf("%w: read web data header: %w", ErrIOFailure, err)
	}

	if string(head[:webDataMagicLen]) != WebDataMagic {
		return 0, nil, fmt.Errorf("%w: expected %q, found %q", ErrInvalidMagic, WebDataMagic, head[:webDataMagicLen])
	}

	tableSize := binary.LittleEndian.Uint32(head[webDataMagicLen:])
	if int64(tableSize) > size {
		return 0, nil, fmt.Errorf("%w: table length %d exceeds source size %d", ErrMalformedTable, tableSize, size)
	}

	if tableSize > maxTable {
		return 0, nil, fmt.Errorf("%w: table length %d exceeds limit %d", ErrMalformedTable, tableSize, maxTable)
	}

	if tableSize <= webDataTableStart {
		return tableSize, []Entry{}, nil
	}

	table, err := readFullAt(ra, webDataTableStart, int(tableSize)-webDataTableStart)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read web data table: %w", ErrIOFailure, err)
	}

	entries, err := parseWebDataRecords(table, size)
	if err != nil {
		return 0, nil, err
	}

	return tableSize, entries, nil
}

// parseWebDataRecords parses records until the table is consumed.
// Offsets in errors are absolute.
func parseWebDataRecords(table []byte, size int64) ([]Entry, error) {
	c := newCursor(table, binary.LittleEndian)
	entries := make([]Entry, 0, len(table)/(webDataRecordSize+1))

	for c.remaining() > 0 {
		recordOffset := webDataTableStart + c.off
		if c.remaining() < webDataRecordSize {
			return nil, fmt.Errorf("%w: record at offset %d needs %d bytes, %d left in table",
				ErrMalformedTable, recordOffset, webDataRecordSize, c.remaining())
		}

		dataOffset, _ := c.uint32()
		dataLength, _ := c.uint32()
		pathLength, _ := c.uint32()

		pathBytes, err := c.next(int(pathLength))
		if err != nil {
			return nil, fmt.Errorf("%w: record at offset %d path length %d exceeds table",
				ErrMalformedTable, recordOffset, pathLength)
		}

		end := uint64(dataOffset) + uint64(dataLength)
		if end > uint64(size) { //nolint:gosec // size is a non-negative file size
			return nil, fmt.Errorf("%w: entry %q range [%d,%d) exceeds archive size %d",
				ErrEntryOutOfBounds, pathBytes, dataOffset, end, size)
		}

		entries = append(entries, Entry{
			Path:   string(pathBytes),
			Offset: uint64(dataOffset),
			Size:   uint64(dataLength),
		})
	}

	return entries, nil
}

// TableSize returns declared header table length.
func (w *WebData) TableSize() uint32 {
	return w.tableSize
}

// Entries returns parsed entries, sanitized when ReaderOptions.SanitizeNames is set.
func (w *WebData) Entries() ([]Entry, error) {
	if w.opts.SanitizeNames {
		return sanitizeEntryPaths(w.entries)
	}

	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out, nil
}

// Close closes the underlying source if container owns one.
func (w *WebData) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}

	return nil
}

func (w *WebData) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// OpenEntry opens named entry for reading.
func (w *WebData) OpenEntry(name string) (io.ReadCloser, error) {
	if w == nil || w.ra == nil {
		return nil, ErrNilReader
	}
	if w.isClosed() {
		return nil, ErrClosed
	}

	e := findEntry(w.entries, name, w.opts.SanitizeNames)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	r, err := w.openEntry(*e)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(r), nil
}

// ReadEntry reads full content of the named entry.
func (w *WebData) ReadEntry(name string) ([]byte, error) {
	rc, err := w.OpenEntry(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}

// Extract writes selected entries below dstDir.
func (w *WebData) Extract(ctx context.Context, dstDir string, opts ExtractOptions) (*ExtractResult, error) {
	opts.applyDefaults()

	sink, err := NewDirSink(dstDir, opts.FileMode)
	if err != nil {
		return nil, err
	}

	return w.ExtractTo(ctx, sink, opts)
}

// ExtractTo writes selected entries to sink.
func (w *WebData) ExtractTo(ctx context.Context, sink Sink, opts ExtractOptions) (*ExtractResult, error) {
	if w == nil || w.ra == nil {
		return nil, ErrNilReader
	}
	if w.isClosed() {
		return nil, ErrClosed
	}

	return extractEntries(ctx, w.entries, w.openEntry, sink, opts)
}

// openEntry returns reader over entry bytes at its absolute offset.
func (w *WebData) openEntry(e Entry) (io.Reader, error) {
	return io.NewSectionReader(w.ra, int64(e.Offset), int64(e.Size)), nil //nolint:gosec // bounded by uint32 table fields
}

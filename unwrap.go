// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the gzip member signature.
var gzipMagic = []byte{0x1f, 0x8b}

// Source is a random-access archive source after the optional gzip pre-filter.
type Source struct {
	ra     io.ReaderAt
	closer io.Closer
	size   int64
	// unwrapped reports whether an outer gzip envelope was removed.
	unwrapped bool
}

// ReadAt implements io.ReaderAt.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	return s.ra.ReadAt(p, off)
}

// Size returns source size after unwrapping.
func (s *Source) Size() int64 {
	return s.size
}

// Unwrapped reports whether the file was gzip-wrapped.
func (s *Source) Unwrapped() bool {
	return s.unwrapped
}

// Close closes the underlying file when one is held.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}

	closer := s.closer
	s.closer = nil
	return closer.Close()
}

// OpenSource opens archive file as random-access source. Raw files are read
// in place; gzip-wrapped files are decoded into memory. A file that carries the
// gzip magic but fails to decode is used raw so format probing can decide.
func OpenSource(path string, opts ReaderOptions) (*Source, error) {
	opts.applyDefaults()

	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}

	raw := &Source{ra: f, closer: f, size: size}
	if opts.DisableUnwrap || !hasGzipMagic(f, size) {
		return raw, nil
	}

	data, ok := unwrapGzip(io.NewSectionReader(f, 0, size), opts.MaxUnwrappedSize)
	if !ok {
		return raw, nil
	}

	_ = f.Close()
	return &Source{
		ra:        bytes.NewReader(data),
		size:      int64(len(data)),
		unwrapped: true,
	}, nil
}

// Unwrap removes an outer gzip envelope from data. When data is not gzip or
// fails to decode, it is returned unchanged with false.
func Unwrap(data []byte, limit int64) ([]byte, bool) {
	if limit <= 0 {
		limit = DefaultMaxUnwrappedSize
	}

	if !bytes.HasPrefix(data, gzipMagic) {
		return data, false
	}

	out, ok := unwrapGzip(bytes.NewReader(data), limit)
	if !ok {
		return data, false
	}

	return out, true
}

// hasGzipMagic reports whether ReaderAt starts with gzip magic.
func hasGzipMagic(ra io.ReaderAt, size int64) bool {
	if size < int64(len(gzipMagic)) {
		return false
	}

	head, err := readFullAt(ra, 0, len(gzipMagic))
	return err == nil && bytes.Equal(head, gzipMagic)
}

// unwrapGzip decodes full gzip stream bounded by limit.
func unwrapGzip(r io.Reader, limit int64) ([]byte, bool) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, false
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil || int64(len(out)) > limit {
		return nil, false
	}

	return out, true
}


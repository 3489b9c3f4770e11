// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"fmt"
	"io"
	"os"
)

// ReadHeader opens an archive and returns only the UnityFS header without reading the directory.
func ReadHeader(path string, opts ReaderOptions) (Header, error) {
	src, err := OpenSource(path, opts)
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = src.Close() }()

	return ParseHeader(src, src.Size())
}

// ListEntries opens an archive of any supported kind and returns entry metadata without payload reads.
func ListEntries(path string, opts ReaderOptions) ([]Entry, error) {
	src, err := OpenSource(path, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	return ListEntriesFromReaderAt(src, src.Size(), opts)
}

// ListEntriesFromReaderAt probes a random-access source and returns entry metadata.
// Bundle block payloads are never decoded.
func ListEntriesFromReaderAt(ra io.ReaderAt, size int64, opts ReaderOptions) ([]Entry, error) {
	opts.applyDefaults()

	if ra == nil {
		return nil, ErrNilReader
	}

	kind, err := Probe(ra, size)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	switch kind {
	case KindBundle:
		h, err := ParseHeader(ra, size)
		if err != nil {
			return nil, err
		}

		dir, err := ReadDirectory(ra, size, h, opts)
		if err != nil {
			return nil, err
		}
		entries = dir.Nodes
	case KindWebData:
		_, entries, err = parseWebData(ra, size, opts.MaxDirectorySize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if opts.SanitizeNames {
		return sanitizeEntryPaths(entries)
	}

	return entries, nil
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open archive: %w", ErrIOFailure, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: stat: %w", ErrIOFailure, err)
	}

	return f, fi.Size(), nil
}

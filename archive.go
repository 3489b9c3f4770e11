// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"context"
	"fmt"
	"io"
)

// Kind identifies container format detected by Probe.
type Kind int

// Supported container kinds.
const (
	// KindUnknown is the zero value for undetected sources.
	KindUnknown Kind = iota
	// KindBundle is a UnityFS bundle.
	KindBundle
	// KindWebData is a UnityWebData container.
	KindWebData
)

// String returns stable lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindBundle:
		return "unityfs"
	case KindWebData:
		return "webdata"
	default:
		return "unknown"
	}
}

// Probe detects container kind by magic.
func Probe(ra io.ReaderAt, size int64) (Kind, error) {
	if ra == nil {
		return KindUnknown, ErrNilReader
	}

	if size < bundleMagicLen {
		return KindUnknown, fmt.Errorf("%w: source is %d bytes", ErrTruncatedHeader, size)
	}

	n := min(int64(webDataMagicLen), size)
	head, err := readFullAt(ra, 0, int(n))
	if err != nil {
		return KindUnknown, fmt.Errorf("%w: read magic: %w", ErrIOFailure, err)
	}

	if string(head[:bundleMagicLen]) == BundleMagic {
		return KindBundle, nil
	}

	if len(head) == webDataMagicLen && string(head) == WebDataMagic {
		return KindWebData, nil
	}

	return KindUnknown, fmt.Errorf("%w: found %q", ErrInvalidMagic, head)
}

// Archive is an opened container of any supported kind.
type Archive struct {
	bundle    *Bundle
	webData   *WebData
	closer    io.Closer
	kind      Kind
	unwrapped bool
}

// Open opens archive by path: removes an optional gzip envelope, probes the
// format and parses the matching container.
func Open(path string, opts ReaderOptions) (*Archive, error) {
	opts.applyDefaults()

	src, err := OpenSource(path, opts)
	if err != nil {
		return nil, err
	}

	a, err := NewArchive(src, src.Size(), opts)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	a.closer = src
	a.unwrapped = src.Unwrapped()
	return a, nil
}

// NewArchive probes ra and parses the matching container.
func NewArchive(ra io.ReaderAt, size int64, opts ReaderOptions) (*Archive, error) {
	kind, err := Probe(ra, size)
	if err != nil {
		return nil, err
	}

	a := &Archive{kind: kind}
	switch kind {
	case KindBundle:
		a.bundle, err = NewBundle(ra, size, opts)
	case KindWebData:
		a.webData, err = NewWebData(ra, size, opts)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Kind returns detected container kind.
func (a *Archive) Kind() Kind {
	return a.kind
}

// Bundle returns parsed bundle or nil for other kinds.
func (a *Archive) Bundle() *Bundle {
	return a.bundle
}

// WebData returns parsed web data container or nil for other kinds.
func (a *Archive) WebData() *WebData {
	return a.webData
}

// Unwrapped reports whether the source file was gzip-wrapped.
func (a *Archive) Unwrapped() bool {
	return a.unwrapped
}

// Entries returns container entries.
func (a *Archive) Entries() ([]Entry, error) {
	switch {
	case a.bundle != nil:
		return a.bundle.Entries()
	case a.webData != nil:
		return a.webData.Entries()
	default:
		return nil, ErrUnknownKind
	}
}

// ReadEntry reads full content of the named entry.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	switch {
	case a.bundle != nil:
		return a.bundle.ReadNode(name)
	case a.webData != nil:
		return a.webData.ReadEntry(name)
	default:
		return nil, ErrUnknownKind
	}
}

// Extract writes selected entries below dstDir.
func (a *Archive) Extract(ctx context.Context, dstDir string, opts ExtractOptions) (*ExtractResult, error) {
	switch {
	case a.bundle != nil:
		return a.bundle.Extract(ctx, dstDir, opts)
	case a.webData != nil:
		return a.webData.Extract(ctx, dstDir, opts)
	default:
		return nil, ErrUnknownKind
	}
}

// ExtractTo writes selected entries to sink.
func (a *Archive) ExtractTo(ctx context.Context, sink Sink, opts ExtractOptions) (*ExtractResult, error) {
	switch {
	case a.bundle != nil:
		return a.bundle.ExtractTo(ctx, sink, opts)
	case a.webData != nil:
		return a.webData.ExtractTo(ctx, sink, opts)
	default:
		return nil, ErrUnknownKind
	}
}

// Close releases parsed container and the owned source.
func (a *Archive) Close() error {
	var err error
	switch {
	case a.bundle != nil:
		err = a.bundle.Close()
	case a.webData != nil:
		err = a.webData.Close()
	}

	if a.closer != nil {
		closer := a.closer
		a.closer = nil
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

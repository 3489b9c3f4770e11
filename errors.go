// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive operations. Use errors.Is in callers.
var (
	// ErrInvalidMagic means the source does not start with a known signature.
	ErrInvalidMagic = errors.New("invalid archive magic")
	// ErrTruncatedHeader means the header ended before all fields were read.
	ErrTruncatedHeader = errors.New("truncated archive header")
	// ErrUnknownCodec means the compression method id is not recognized.
	ErrUnknownCodec = errors.New("unknown compression method")
	// ErrUnsupportedCodec means the compression method is recognized but not implemented (LZHAM).
	ErrUnsupportedCodec = errors.New("unsupported compression method")
	// ErrDecompressFailed means compressed data could not be decoded to the expected size.
	ErrDecompressFailed = errors.New("decompress failed")
	// ErrMalformedDirectoryBlock means the bundle directory block is truncated or inconsistent.
	ErrMalformedDirectoryBlock = errors.New("malformed directory block")
	// ErrMalformedTable means the web data file table is truncated or inconsistent.
	ErrMalformedTable = errors.New("malformed file table")
	// ErrPathTraversalRejected means an entry path would resolve outside the destination root.
	ErrPathTraversalRejected = errors.New("path traversal rejected")
	// ErrInvalidExtractPath means an entry path is empty or unusable as an output path.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrIOFailure means reading the source or writing the output failed.
	ErrIOFailure = errors.New("i/o failure")
	// ErrEntryOutOfBounds means an entry data range lies outside the archive or payload.
	ErrEntryOutOfBounds = errors.New("entry data out of bounds")
	// ErrEntryNotFound means the entry is not found.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrClosed means the reader or resource is already closed.
	ErrClosed = errors.New("reader or resource already closed")
	// ErrSizeOverflow means a size field exceeds configured or addressable limits.
	ErrSizeOverflow = errors.New("size exceeds limit")
	// ErrInvalidIncludePattern means extract include rules failed to compile.
	ErrInvalidIncludePattern = errors.New("invalid include pattern")
	// ErrUnknownKind means the container kind is not handled by the called operation.
	ErrUnknownKind = errors.New("unknown container kind")
)

// ExtractError reports one entry that failed to extract.
type ExtractError struct {
	// Err is the underlying cause.
	Err error
	// Path is the entry path as stored in the archive.
	Path string
	// Offset is the entry data offset as stored in the archive.
	Offset uint64
}

// Error implements error.
func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %q (offset %d): %v", e.Path, e.Offset, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
)

// DataStrategy selects how node bytes are located in a bundle.
type DataStrategy string

// Node data location strategies.
const (
	// StrategyDirect reads node bytes in place at DataOffset+Offset.
	StrategyDirect DataStrategy = "direct"
	// StrategyBlockStream decodes all blocks into one payload and slices nodes from it.
	StrategyBlockStream DataStrategy = "block_stream"
)

// Bundle provides read-only access to a parsed UnityFS bundle.
type Bundle struct {
	// ra is the underlying random-access reader used for payload reads.
	ra io.ReaderAt
	// closer is set when Bundle owns the source opened via OpenBundle.
	closer io.Closer
	// payloadErr stores block stream decode failure.
	payloadErr error
	// dir stores parsed directory block.
	dir *Directory
	// payload stores decoded block stream for StrategyBlockStream.
	payload []byte
	// strategy is selected once after directory parsing.
	strategy DataStrategy
	// opts are reader options with defaults applied.
	opts ReaderOptions
	// header stores parsed bundle header.
	header Header
	// size is total source size in bytes.
	size int64
	// payloadOnce guards lazy block stream decoding.
	payloadOnce sync.Once
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// OpenBundle opens UnityFS bundle by path (gzip-wrapped files are unwrapped).
func OpenBundle(path string, opts ReaderOptions) (*Bundle, error) {
	opts.applyDefaults()

	src, err := OpenSource(path, opts)
	if err != nil {
		return nil, err
	}

	b, err := NewBundle(src, src.Size(), opts)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	b.closer = src
	return b, nil
}

// NewBundle parses UnityFS bundle from existing ReaderAt and known size.
func NewBundle(ra io.ReaderAt, size int64, opts ReaderOptions) (*Bundle, error) {
	opts.applyDefaults()

	if ra == nil {
		return nil, ErrNilReader
	}

	h, err := ParseHeader(ra, size)
	if err != nil {
		return nil, err
	}

	dir, err := ReadDirectory(ra, size, h, opts)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		ra:     ra,
		size:   size,
		header: h,
		dir:    dir,
		opts:   opts,
	}
	b.strategy = selectStrategy(h.Layout.Method, dir.Blocks)

	if b.strategy == StrategyDirect {
		if err := validateDirectNodes(dir, h, size); err != nil {
			return nil, err
		}
	} else if err := validateBlocks(dir, size, opts.MaxPayloadSize); err != nil {
		return nil, err
	}

	return b, nil
}

// Header returns parsed bundle header.
func (b *Bundle) Header() Header {
	return b.header
}

// Blocks returns a copy of directory block list.
func (b *Bundle) Blocks() []BlockInfo {
	out := make([]BlockInfo, len(b.dir.Blocks))
	copy(out, b.dir.Blocks)
	return out
}

// Nodes returns a copy of directory nodes.
func (b *Bundle) Nodes() []Entry {
	out := make([]Entry, len(b.dir.Nodes))
	copy(out, b.dir.Nodes)
	return out
}

// Entries returns directory nodes, sanitized when ReaderOptions.SanitizeNames is set.
func (b *Bundle) Entries() ([]Entry, error) {
	if !b.opts.SanitizeNames {
		return b.Nodes(), nil
	}

	return sanitizeEntryPaths(b.dir.Nodes)
}

// DirectoryID returns opaque 16-byte directory identifier.
func (b *Bundle) DirectoryID() [16]byte {
	return b.dir.ID
}

// DataOffset returns absolute offset node offsets are relative to.
func (b *Bundle) DataOffset() int64 {
	return b.dir.DataOffset
}

// Strategy returns selected node data location strategy.
func (b *Bundle) Strategy() DataStrategy {
	return b.strategy
}

// Close closes the underlying source if bundle owns one.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.payload = nil
	if b.closer != nil {
		return b.closer.Close()
	}

	return nil
}

// isClosed reports closed state.
func (b *Bundle) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// OpenNode opens named node for reading.
func (b *Bundle) OpenNode(name string) (io.ReadCloser, error) {
	if b == nil || b.ra == nil {
		return nil, ErrNilReader
	}
	if b.isClosed() {
		return nil, ErrClosed
	}

	node := findEntry(b.dir.Nodes, name, b.opts.SanitizeNames)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	r, err := b.openEntry(*node)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(r), nil
}

// ReadNode reads full content of the named node.
func (b *Bundle) ReadNode(name string) ([]byte, error) {
	rc, err := b.OpenNode(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}

// ReadBlock reads and decodes one payload block by index.
func (b *Bundle) ReadBlock(index int) ([]byte, error) {
	if b == nil || b.ra == nil {
		return nil, ErrNilReader
	}
	if b.isClosed() {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(b.dir.Blocks) {
		return nil, fmt.Errorf("%w: block %d of %d", ErrEntryNotFound, index, len(b.dir.Blocks))
	}

	offset := b.dir.DataOffset
	for _, blk := range b.dir.Blocks[:index] {
		offset += int64(blk.CompressedSize)
	}

	blk := b.dir.Blocks[index]
	method := blockMethod(blk, b.header.Layout.Method)
	if err := checkCompression(method); err != nil {
		return nil, fmt.Errorf("block %d: %w", index, err)
	}
	if int64(blk.DecompressedSize) > b.opts.MaxPayloadSize {
		return nil, fmt.Errorf("%w: block %d decoded size %d exceeds limit %d",
			ErrSizeOverflow, index, blk.DecompressedSize, b.opts.MaxPayloadSize)
	}

	if offset+int64(blk.CompressedSize) > b.size {
		return nil, fmt.Errorf("%w: block %d at offset %d exceeds source size %d",
			ErrMalformedDirectoryBlock, index, offset, b.size)
	}

	raw, err := readFullAt(b.ra, offset, int(blk.CompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read block %d at offset %d: %w", ErrIOFailure, index, offset, err)
	}

	decoded, err := Decompress(method, raw, int(blk.DecompressedSize))
	if err != nil {
		return nil, fmt.Errorf("block %d at offset %d: %w", index, offset, err)
	}

	return decoded, nil
}

// Extract writes selected nodes below dstDir.
func (b *Bundle) Extract(ctx context.Context, dstDir string, opts ExtractOptions) (*ExtractResult, error) {
	opts.applyDefaults()

	sink, err := NewDirSink(dstDir, opts.FileMode)
	if err != nil {
		return nil, err
	}

	return b.ExtractTo(ctx, sink, opts)
}

// ExtractTo writes selected nodes to sink.
func (b *Bundle) ExtractTo(ctx context.Context, sink Sink, opts ExtractOptions) (*ExtractResult, error) {
	if b == nil || b.ra == nil {
		return nil, ErrNilReader
	}
	if b.isClosed() {
		return nil, ErrClosed
	}

	if b.strategy == StrategyBlockStream {
		if _, err := b.blockStream(); err != nil {
			return nil, err
		}
	}

	return extractEntries(ctx, b.dir.Nodes, b.openEntry, sink, opts)
}

// openEntry returns reader over node bytes according to selected strategy.
func (b *Bundle) openEntry(node Entry) (io.Reader, error) {
	if b.strategy == StrategyDirect {
		start := b.dir.DataOffset + int64(node.Offset) //nolint:gosec // bounded by validateDirectNodes
		return io.NewSectionReader(b.ra, start, int64(node.Size)), nil
	}

	payload, err := b.blockStream()
	if err != nil {
		return nil, err
	}

	end := node.Offset + node.Size
	if end < node.Offset || end > uint64(len(payload)) {
		return nil, fmt.Errorf("%w: node %s range [%d,%d) exceeds payload size %d",
			ErrEntryOutOfBounds, node.Path, node.Offset, end, len(payload))
	}

	return bytes.NewReader(payload[node.Offset:end]), nil
}

// blockStream decodes block payload once and returns it.
func (b *Bundle) blockStream() ([]byte, error) {
	b.payloadOnce.Do(func() {
		b.payload, b.payloadErr = decodeBlockStream(b.ra, b.dir, b.header.Layout.Method)
	})

	return b.payload, b.payloadErr
}

// selectStrategy chooses direct reads for uncompressed bundles and single stored blocks.
func selectStrategy(method Compression, blocks []BlockInfo) DataStrategy {
	if method == CompressionNone {
		return StrategyDirect
	}

	if len(blocks) == 1 && isStoredBlock(blocks[0]) {
		return StrategyDirect
	}

	return StrategyBlockStream
}

// isStoredBlock reports whether block holds raw bytes.
func isStoredBlock(b BlockInfo) bool {
	return b.Method() == CompressionNone && b.CompressedSize == b.DecompressedSize
}

// blockMethod resolves decode method for one block: block flags first,
// header method for blocks flagged uncompressed but with differing sizes.
func blockMethod(b BlockInfo, headerMethod Compression) Compression {
	if m := b.Method(); m != CompressionNone {
		return m
	}

	if b.CompressedSize == b.DecompressedSize {
		return CompressionNone
	}

	return headerMethod
}

// validateDirectNodes checks node ranges against declared and actual source size.
func validateDirectNodes(dir *Directory, h Header, size int64) error {
	limit := uint64(size) //nolint:gosec // size is a non-negative file size
	if h.FileSize < limit {
		limit = h.FileSize
	}

	base := uint64(dir.DataOffset) //nolint:gosec // derived from header offsets
	for _, node := range dir.Nodes {
		start := base + node.Offset
		end := start + node.Size
		if start < base || end < start || end > limit || end > math.MaxInt64 {
			return fmt.Errorf("%w: node %s range [%d,%d) exceeds archive size %d",
				ErrEntryOutOfBounds, node.Path, start, end, limit)
		}
	}

	return nil
}

// validateBlocks checks block ranges, decoded size and node ranges before any allocation.
func validateBlocks(dir *Directory, size int64, maxPayload int64) error {
	var compressed, decompressed uint64
	for i, blk := range dir.Blocks {
		if err := checkCompression(blk.Method()); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}

		compressed += uint64(blk.CompressedSize)
		decompressed += uint64(blk.DecompressedSize)
	}

	if uint64(dir.DataOffset)+compressed > uint64(size) { //nolint:gosec // non-negative offsets
		return fmt.Errorf("%w: %d block bytes at offset %d exceed source size %d",
			ErrMalformedDirectoryBlock, compressed, dir.DataOffset, size)
	}

	if decompressed > uint64(maxPayload) { //nolint:gosec // positive after defaults
		return fmt.Errorf("%w: decoded payload %d bytes exceeds limit %d", ErrSizeOverflow, decompressed, maxPayload)
	}

	for _, node := range dir.Nodes {
		end := node.Offset + node.Size
		if end < node.Offset || end > decompressed {
			return fmt.Errorf("%w: node %s range [%d,%d) exceeds payload size %d",
				ErrEntryOutOfBounds, node.Path, node.Offset, end, decompressed)
		}
	}

	return nil
}

// decodeBlockStream reads blocks consecutively from DataOffset and concatenates decoded bytes.
func decodeBlockStream(ra io.ReaderAt, dir *Directory, headerMethod Compression) ([]byte, error) {
	var total uint64
	for _, blk := range dir.Blocks {
		total += uint64(blk.DecompressedSize)
	}

	payload := make([]byte, 0, total)
	offset := dir.DataOffset
	for i, blk := range dir.Blocks {
		raw, err := readFullAt(ra, offset, int(blk.CompressedSize))
		if err != nil {
			return nil, fmt.Errorf("%w: read block %d at offset %d: %w", ErrIOFailure, i, offset, err)
		}

		method := blockMethod(blk, headerMethod)
		decoded, err := Decompress(method, raw, int(blk.DecompressedSize))
		if err != nil {
			return nil, fmt.Errorf("block %d at offset %d: %w", i, offset, err)
		}

		payload = append(payload, decoded...)
		offset += int64(blk.CompressedSize)
	}

	return payload, nil
}

// findEntry resolves one entry by normalized path. When sanitized is set,
// sanitized names are matched too.
func findEntry(entries []Entry, name string, sanitized bool) *Entry {
	lookupName := NormalizePath(name)
	for i := range entries {
		if NormalizePath(entries[i].Path) == lookupName {
			return &entries[i]
		}
	}

	if !sanitized {
		return nil
	}

	renamed, err := sanitizeEntryPaths(entries)
	if err != nil {
		return nil
	}

	for i := range renamed {
		if renamed[i].Path == lookupName {
			return &entries[i]
		}
	}

	return nil
}

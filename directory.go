// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadDirectory locates, decompresses and parses the bundle directory block.
func ReadDirectory(ra io.ReaderAt, size int64, h Header, opts ReaderOptions) (*Directory, error) {
	opts.applyDefaults()

	if ra == nil {
		return nil, ErrNilReader
	}

	if err := checkCompression(h.Layout.Method); err != nil {
		return nil, fmt.Errorf("directory block: %w", err)
	}

	if h.DecompressedDirSize > opts.MaxDirectorySize {
		return nil, fmt.Errorf("%w: decompressed size %d exceeds limit %d",
			ErrMalformedDirectoryBlock, h.DecompressedDirSize, opts.MaxDirectorySize)
	}

	compressedSize := int64(h.CompressedDirSize)
	dirOffset, dataOffset := directoryOffsets(h, size)
	if dirOffset < 0 || dirOffset+compressedSize > size {
		return nil, fmt.Errorf("%w: %d bytes at offset %d exceed source size %d",
			ErrMalformedDirectoryBlock, compressedSize, dirOffset, size)
	}

	raw, err := readFullAt(ra, dirOffset, int(compressedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read directory block at offset %d: %w", ErrIOFailure, dirOffset, err)
	}

	block, err := Decompress(h.Layout.Method, raw, int(h.DecompressedDirSize))
	if err != nil {
		return nil, fmt.Errorf("directory block at offset %d: %w", dirOffset, err)
	}

	dir, err := parseDirectory(block)
	if err != nil {
		return nil, err
	}

	dir.DataOffset = dataOffset
	return dir, nil
}

// directoryOffsets returns absolute directory block offset and payload start offset.
// Payload always follows the header; a head-stored directory sits between them.
func directoryOffsets(h Header, size int64) (int64, int64) {
	if h.Layout.DirectoryAtEnd {
		return size - int64(h.CompressedDirSize), h.EndOfHeader
	}

	return h.EndOfHeader, h.EndOfHeader + int64(h.CompressedDirSize)
}

// parseDirectory parses decompressed directory block bytes.
func parseDirectory(block []byte) (*Directory, error) {
	c := newCursor(block, binary.BigEndian)
	dir := &Directory{}

	id, err := c.next(directoryIDSize)
	if err != nil {
		return nil, malformedDirectory("identifier", c.off, err)
	}
	copy(dir.ID[:], id)

	blockCount, err := c.uint32()
	if err != nil {
		return nil, malformedDirectory("block count", c.off, err)
	}

	if uint64(blockCount)*blockRecordSize > uint64(c.remaining()) {
		return nil, fmt.Errorf("%w: block count %d does not fit in %d remaining bytes",
			ErrMalformedDirectoryBlock, blockCount, c.remaining())
	}

	dir.Blocks = make([]BlockInfo, 0, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		var b BlockInfo
		if b.DecompressedSize, err = c.uint32(); err != nil {
			return nil, malformedDirectory(fmt.Sprintf("block %d", i), c.off, err)
		}
		if b.CompressedSize, err = c.uint32(); err != nil {
			return nil, malformedDirectory(fmt.Sprintf("block %d", i), c.off, err)
		}
		if b.Flags, err = c.uint16(); err != nil {
			return nil, malformedDirectory(fmt.Sprintf("block %d", i), c.off, err)
		}

		dir.Blocks = append(dir.Blocks, b)
	}

	nodeCount, err := c.uint32()
	if err != nil {
		return nil, malformedDirectory("node count", c.off, err)
	}

	// Every node needs its fixed fields plus at least the path terminator.
	if uint64(nodeCount)*(nodeFixedSize+1) > uint64(c.remaining()) {
		return nil, fmt.Errorf("%w: node count %d does not fit in %d remaining bytes",
			ErrMalformedDirectoryBlock, nodeCount, c.remaining())
	}

	dir.Nodes = make([]Entry, 0, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		var n Entry
		if n.Offset, err = c.uint64(); err != nil {
			return nil, malformedDirectory(fmt.Sprintf("node %d offset", i), c.off, err)
		}
		if n.Size, err = c.uint64(); err != nil {
			return nil, malformedDirectory(fmt.Sprintf("node %d length", i), c.off, err)
		}
		if n.Flags, err = c.uint32(); err != nil {
			return nil, malformedDirectory(fmt.Sprintf("node %d flags", i), c.off, err)
		}
		if n.Path, err = c.cstring(maxNodePathLen); err != nil {
			return nil, malformedDirectory(fmt.Sprintf("node %d path", i), c.off, err)
		}

		dir.Nodes = append(dir.Nodes, n)
	}

	return dir, nil
}

// malformedDirectory builds MalformedDirectoryBlock error for named field at offset.
func malformedDirectory(field string, offset int, cause error) error {
	return fmt.Errorf("%w: %s at offset %d: %w", ErrMalformedDirectoryBlock, field, offset, cause)
}

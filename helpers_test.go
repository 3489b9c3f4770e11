// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// testNode is one file stored in a test archive.
type testNode struct {
	path string
	data []byte
}

// testBundle describes a UnityFS bundle built by buildBundle.
type testBundle struct {
	nodes []testNode
	// method is the header method used for the directory block and payload blocks.
	method Compression
	// blockSize splits payload into blocks of this many bytes; zero means one block.
	blockSize int
	// blockFlagsZero stores zero block flags even for compressed blocks.
	blockFlagsZero bool
	dirAtEnd       bool
	// fileSize overrides declared header file size when non-zero.
	fileSize uint64
}

// testDirectoryID is the opaque directory identifier written by buildBundle.
var testDirectoryID = [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// buildBundle writes an in-memory UnityFS bundle.
func buildBundle(t testing.TB, spec testBundle) []byte {
	t.Helper()

	var payload []byte
	offsets := make([]uint64, len(spec.nodes))
	for i, n := range spec.nodes {
		offsets[i] = uint64(len(payload))
		payload = append(payload, n.data...)
	}

	chunkSize := spec.blockSize
	if chunkSize <= 0 {
		chunkSize = max(len(payload), 1)
	}

	var (
		blocks  []BlockInfo
		rawData []byte
	)
	for start := 0; start < len(payload) || (start == 0 && len(blocks) == 0); start += chunkSize {
		end := min(start+chunkSize, len(payload))
		chunk := payload[start:end]
		packed := compressForTest(t, spec.method, chunk)

		flags := uint16(spec.method)
		if spec.blockFlagsZero {
			flags = 0
		}

		blocks = append(blocks, BlockInfo{
			DecompressedSize: uint32(len(chunk)),
			CompressedSize:   uint32(len(packed)),
			Flags:            flags,
		})
		rawData = append(rawData, packed...)
		if end >= len(payload) {
			break
		}
	}

	var dir bytes.Buffer
	dir.Write(testDirectoryID[:])
	writeBE32(&dir, uint32(len(blocks)))
	for _, b := range blocks {
		writeBE32(&dir, b.DecompressedSize)
		writeBE32(&dir, b.CompressedSize)
		_ = binary.Write(&dir, binary.BigEndian, b.Flags)
	}
	writeBE32(&dir, uint32(len(spec.nodes)))
	for i, n := range spec.nodes {
		_ = binary.Write(&dir, binary.BigEndian, offsets[i])
		_ = binary.Write(&dir, binary.BigEndian, uint64(len(n.data)))
		writeBE32(&dir, 4)
		dir.WriteString(n.path)
		dir.WriteByte(0)
	}

	packedDir := compressForTest(t, spec.method, dir.Bytes())

	flags := uint32(spec.method) | flagsHasDirInfo
	if spec.dirAtEnd {
		flags |= flagsDirAtEnd
	}

	header := bundleHeaderBytes(6, "5.x.x", "2019.4.1f1", 0, uint32(len(packedDir)), uint32(dir.Len()), flags)
	total := len(header) + len(packedDir) + len(rawData)
	fileSize := uint64(total)
	if spec.fileSize != 0 {
		fileSize = spec.fileSize
	}
	binary.BigEndian.PutUint64(header[len(header)-20:], fileSize)

	out := make([]byte, 0, total)
	out = append(out, header...)
	if spec.dirAtEnd {
		out = append(out, rawData...)
		out = append(out, packedDir...)
	} else {
		out = append(out, packedDir...)
		out = append(out, rawData...)
	}

	return out
}

// bundleHeaderBytes encodes UnityFS header fields.
func bundleHeaderBytes(version uint32, engine, revision string, fileSize uint64, compressedDir, decompressedDir, flags uint32) []byte {
	var b bytes.Buffer
	b.WriteString(BundleMagic)
	writeBE32(&b, version)
	b.WriteString(engine)
	b.WriteByte(0)
	b.WriteString(revision)
	b.WriteByte(0)
	_ = binary.Write(&b, binary.BigEndian, fileSize)
	writeBE32(&b, compressedDir)
	writeBE32(&b, decompressedDir)
	writeBE32(&b, flags)
	return b.Bytes()
}

func writeBE32(b *bytes.Buffer, v uint32) {
	_ = binary.Write(b, binary.BigEndian, v)
}

// buildWebData writes an in-memory UnityWebData container with files stored after the table.
func buildWebData(t testing.TB, files []testNode) []byte {
	t.Helper()

	tableSize := webDataTableStart
	for _, f := range files {
		tableSize += webDataRecordSize + len(f.path)
	}

	var b bytes.Buffer
	b.WriteString(WebDataMagic)
	_ = binary.Write(&b, binary.LittleEndian, uint32(tableSize))

	offset := tableSize
	for _, f := range files {
		_ = binary.Write(&b, binary.LittleEndian, uint32(offset))
		_ = binary.Write(&b, binary.LittleEndian, uint32(len(f.data)))
		_ = binary.Write(&b, binary.LittleEndian, uint32(len(f.path)))
		b.WriteString(f.path)
		offset += len(f.data)
	}

	for _, f := range files {
		b.Write(f.data)
	}

	return b.Bytes()
}

// compressForTest encodes data the way Unity stores it for method.
func compressForTest(t testing.TB, method Compression, data []byte) []byte {
	t.Helper()

	switch method {
	case CompressionNone:
		return append([]byte(nil), data...)
	case CompressionLZMA:
		classic := lzmaClassicForTest(t, data)
		unity := append([]byte(nil), classic[:lzmaPropsSize]...)
		return append(unity, classic[lzmaClassicHeaderSize:]...)
	case CompressionLZ4, CompressionLZ4HC:
		return lz4BlockForTest(t, data)
	default:
		t.Fatalf("compressForTest: unsupported method %s", method)
		return nil
	}
}

// lzmaClassicForTest encodes data as .lzma stream with 13-byte header and no end marker.
func lzmaClassicForTest(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := lzma.WriterConfig{
		SizeInHeader: true,
		Size:         int64(len(data)),
		EOSMarker:    false,
	}.NewWriter(&buf)
	if err != nil {
		t.Fatalf("lzma writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("lzma write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lzma close: %v", err)
	}

	return buf.Bytes()
}

// lz4BlockForTest encodes data as raw LZ4 block. Incompressible input is
// stored as one literal-only sequence.
func lz4BlockForTest(t testing.TB, data []byte) []byte {
	t.Helper()

	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		t.Fatalf("lz4 compress block: %v", err)
	}
	if n > 0 {
		return dst[:n]
	}

	return lz4LiteralBlock(data)
}

// lz4LiteralBlock encodes data as a single LZ4 sequence without match.
func lz4LiteralBlock(data []byte) []byte {
	n := len(data)
	out := make([]byte, 0, n+n/255+2)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xF0)
		rest := n - 15
		for rest >= 255 {
			out = append(out, 255)
			rest -= 255
		}
		out = append(out, byte(rest))
	}

	return append(out, data...)
}

// lz4FrameForTest encodes data as LZ4 frame.
func lz4FrameForTest(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("lz4 frame write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lz4 frame close: %v", err)
	}

	return buf.Bytes()
}

// writeTestFile stores data in a temp file and returns its path.
func writeTestFile(t testing.TB, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

// helloNodes is the two-file layout used across bundle tests.
func helloNodes() []testNode {
	return []testNode{
		{path: "a/b.txt", data: []byte("hello")},
		{path: "c.txt", data: []byte("xyz")},
	}
}

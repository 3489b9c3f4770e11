// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// extractCopyBufferSize defines per-write buffer size for file copy during extraction.
const extractCopyBufferSize = 64 * 1024

// Sink receives extracted entries. Paths are relative, slash-separated and
// already validated against traversal. WriteFile is called once per entry and
// may be called concurrently for distinct paths.
type Sink interface {
	// CreateDirectories creates relDir and its parents.
	CreateDirectories(relDir string) error
	// WriteFile writes full src content to relPath and returns bytes written.
	WriteFile(relPath string, src io.Reader) (int64, error)
}

// DirSink writes entries below a filesystem root.
type DirSink struct {
	root     string
	fileMode ExtractFileMode
	bufPool  sync.Pool
}

// NewDirSink creates root (if missing) and returns sink writing below it.
func NewDirSink(root string, mode ExtractFileMode) (*DirSink, error) {
	if mode == "" {
		mode = ExtractFileModeAuto
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve output dir: %w", ErrIOFailure, err)
	}

	if err := os.MkdirAll(rootAbs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %w", ErrIOFailure, err)
	}

	return &DirSink{
		root:     rootAbs,
		fileMode: mode,
		bufPool: sync.Pool{
			New: func() any {
				buf := make([]byte, extractCopyBufferSize)
				return &buf
			},
		},
	}, nil
}

// Root returns absolute sink root.
func (s *DirSink) Root() string {
	return s.root
}

// CreateDirectories creates relDir below root.
func (s *DirSink) CreateDirectories(relDir string) error {
	dirPath, err := s.resolve(relDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dirPath, 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return nil
}

// WriteFile writes src to relPath below root. On failure the partial file is removed.
func (s *DirSink) WriteFile(relPath string, src io.Reader) (int64, error) {
	outPath, err := s.resolve(relPath)
	if err != nil {
		return 0, err
	}

	file, err := openExtractFile(outPath, s.fileMode)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", ErrIOFailure, relPath, err)
	}

	bufPtr := s.bufPool.Get().(*[]byte) //nolint:forcetypeassert // pool contains only *[]byte
	defer s.bufPool.Put(bufPtr)

	written, copyErr := io.CopyBuffer(file, src, *bufPtr)
	closeErr := file.Close()
	if copyErr == nil && closeErr == nil {
		return written, nil
	}

	_ = os.Remove(outPath)
	if copyErr != nil {
		return written, fmt.Errorf("%w: write %s: %w", ErrIOFailure, relPath, copyErr)
	}

	return written, fmt.Errorf("%w: close %s: %w", ErrIOFailure, relPath, closeErr)
}

// resolve joins relPath with root and verifies the result stays inside root.
func (s *DirSink) resolve(relPath string) (string, error) {
	if filepath.IsAbs(filepath.FromSlash(relPath)) {
		return "", fmt.Errorf("%w: %q is absolute", ErrPathTraversalRejected, relPath)
	}

	full := filepath.Join(s.root, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves outside %s", ErrPathTraversalRejected, relPath, s.root)
	}

	return full, nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeAuto:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return file, nil
		}

		if !os.IsExist(err) {
			return nil, err
		}

		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeTruncate:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeCreateOnly:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// MemorySink keeps extracted entries in memory.
type MemorySink struct {
	files map[string][]byte
	dirs  map[string]struct{}
	mu    sync.Mutex
}

// NewMemorySink returns empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		files: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
	}
}

// CreateDirectories records relDir.
func (m *MemorySink) CreateDirectories(relDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[relDir] = struct{}{}
	return nil
}

// WriteFile stores full src content under relPath. Nothing is stored on failure.
func (m *MemorySink) WriteFile(relPath string, src io.Reader) (int64, error) {
	var buf bytes.Buffer
	written, err := buf.ReadFrom(src)
	if err != nil {
		return written, fmt.Errorf("%w: read %s: %w", ErrIOFailure, relPath, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[relPath] = buf.Bytes()
	return written, nil
}

// File returns stored content for relPath.
func (m *MemorySink) File(relPath string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[relPath]
	return data, ok
}

// Paths returns stored file paths in sorted order.
func (m *MemorySink) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"github.com/woozymasta/pathrules"
)

// Container signatures, including trailing NUL.
const (
	// BundleMagic is the UnityFS bundle signature.
	BundleMagic = "UnityFS\x00"
	// WebDataMagic is the UnityWebData container signature.
	WebDataMagic = "UnityWebData1.0\x00"
)

// Internal binary layout and format limits.
const (
	bundleMagicLen     = 8                   // len(BundleMagic)
	webDataMagicLen    = 16                  // len(WebDataMagic)
	webDataTableStart  = webDataMagicLen + 4 // magic + table length
	webDataRecordSize  = 12                  // data offset, data length, path length
	directoryIDSize    = 16                  // opaque directory identifier
	blockRecordSize    = 10                  // decompressed, compressed, flags
	nodeFixedSize      = 20                  // offset, length, flags
	headerTailSize     = 20                  // file size, two directory sizes, flags
	maxHeaderStringLen = 256                 // cap for engine version strings
	maxNodePathLen     = 1024                // cap for node path strings
)

// Header flags bitfield.
const (
	flagsCompressionMask = 0x3f
	flagsHasDirInfo      = 0x40
	flagsDirAtEnd        = 0x80
)

// Default reader limits.
const (
	DefaultMaxDirectorySize = 64 * 1024 * 1024
	DefaultMaxPayloadSize   = 2 * 1024 * 1024 * 1024
	DefaultMaxUnwrappedSize = 2 * 1024 * 1024 * 1024
)

// Header is the parsed UnityFS bundle header.
type Header struct {
	// Signature is the magic string without trailing NUL.
	Signature string `json:"signature" yaml:"signature"`
	// EngineVersion is the engine major version string (for example "5.x.x").
	EngineVersion string `json:"engine_version" yaml:"engine_version"`
	// EngineRevision is the full engine version string (for example "2019.4.1f1").
	EngineRevision string `json:"engine_revision" yaml:"engine_revision"`
	// Layout holds values derived from Flags.
	Layout HeaderLayout `json:"layout" yaml:"layout"`
	// FileSize is the declared total archive size.
	FileSize uint64 `json:"file_size" yaml:"file_size"`
	// EndOfHeader is the absolute offset right after the flags field.
	EndOfHeader int64 `json:"end_of_header" yaml:"end_of_header"`
	// Version is the bundle format version.
	Version uint32 `json:"version" yaml:"version"`
	// CompressedDirSize is the stored directory block size.
	CompressedDirSize uint32 `json:"compressed_dir_size" yaml:"compressed_dir_size"`
	// DecompressedDirSize is the directory block size after decompression.
	DecompressedDirSize uint32 `json:"decompressed_dir_size" yaml:"decompressed_dir_size"`
	// Flags is the raw flags bitfield.
	Flags uint32 `json:"flags" yaml:"flags"`
}

// HeaderLayout is the bitfield view of Header.Flags.
type HeaderLayout struct {
	// Method is the compression method (bits 0-5).
	Method Compression `json:"method" yaml:"method"`
	// HasDirectoryInfo reports bit 6; informational only.
	HasDirectoryInfo bool `json:"has_directory_info,omitempty" yaml:"has_directory_info,omitempty"`
	// DirectoryAtEnd reports bit 7: the directory block is stored at the end of the file.
	DirectoryAtEnd bool `json:"directory_at_end,omitempty" yaml:"directory_at_end,omitempty"`
}

// parseLayout derives layout values from raw header flags.
func parseLayout(flags uint32) HeaderLayout {
	return HeaderLayout{
		Method:           Compression(flags & flagsCompressionMask),
		HasDirectoryInfo: flags&flagsHasDirInfo != 0,
		DirectoryAtEnd:   flags&flagsDirAtEnd != 0,
	}
}

// BlockInfo describes one compressed payload block.
type BlockInfo struct {
	DecompressedSize uint32 `json:"decompressed_size" yaml:"decompressed_size"`
	CompressedSize   uint32 `json:"compressed_size" yaml:"compressed_size"`
	Flags            uint16 `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// Method returns compression method stored in block flags.
func (b BlockInfo) Method() Compression {
	return Compression(b.Flags & flagsCompressionMask)
}

// Entry describes one file stored in an archive: a bundle directory node or a web data record.
type Entry struct {
	// Path is the entry path as stored in the archive.
	Path string `json:"path" yaml:"path"`
	// Offset is the data offset: relative to the bundle data section, absolute for web data.
	Offset uint64 `json:"offset" yaml:"offset"`
	// Size is the data length in bytes.
	Size uint64 `json:"size" yaml:"size"`
	// Flags is the node flag; zero for web data.
	Flags uint32 `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// Directory is the decoded bundle directory block.
type Directory struct {
	// Blocks describe payload blocks in storage order.
	Blocks []BlockInfo `json:"blocks" yaml:"blocks"`
	// Nodes are files stored in the bundle.
	Nodes []Entry `json:"nodes" yaml:"nodes"`
	// DataOffset is the absolute offset of the first payload byte.
	DataOffset int64 `json:"data_offset" yaml:"data_offset"`
	// ID is the opaque 16-byte directory identifier.
	ID [directoryIDSize]byte `json:"id" yaml:"id"`
}

// ReaderOptions configures archive parsing limits and pre-filtering.
type ReaderOptions struct {
	// MaxDirectorySize bounds decompressed directory block and web data table size.
	MaxDirectorySize uint32 `json:"max_directory_size,omitempty" yaml:"max_directory_size,omitempty"`
	// MaxPayloadSize bounds total decompressed block payload held in memory.
	MaxPayloadSize int64 `json:"max_payload_size,omitempty" yaml:"max_payload_size,omitempty"`
	// MaxUnwrappedSize bounds gzip-decoded source size.
	MaxUnwrappedSize int64 `json:"max_unwrapped_size,omitempty" yaml:"max_unwrapped_size,omitempty"`
	// DisableUnwrap skips the gzip pre-filter.
	DisableUnwrap bool `json:"disable_unwrap,omitempty" yaml:"disable_unwrap,omitempty"`
	// SanitizeNames rewrites listed entry paths to filesystem-safe names.
	SanitizeNames bool `json:"sanitize_names,omitempty" yaml:"sanitize_names,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written.
	OnEntryDone func(entry Entry, written int64, outputPath string) `json:"-" yaml:"-"`
	// FileMode controls output file creation policy for DirSink.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// Include selects entries by ordered path rules; empty means all entries.
	Include []pathrules.Rule `json:"include,omitempty" yaml:"include,omitempty"`
	// IncludeMatcherOptions control Include rule matching.
	IncludeMatcherOptions pathrules.MatcherOptions `json:"include_matcher_options,omitzero" yaml:"include_matcher_options,omitzero"`
	// MaxWorkers is number of extraction workers (zero means one, sequential).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// RawNames disables default path sanitization during extract.
	// Traversal checks apply either way.
	RawNames bool `json:"raw_names,omitempty" yaml:"raw_names,omitempty"`
	// ContinueOnError collects per-entry failures instead of aborting.
	ContinueOnError bool `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// ExtractedEntry is one successfully written entry.
type ExtractedEntry struct {
	// Path is the output path relative to the sink root, slash-separated.
	Path string `json:"path" yaml:"path"`
	// Entry is the archive entry.
	Entry Entry `json:"entry" yaml:"entry"`
	// Written is the number of bytes written.
	Written int64 `json:"written" yaml:"written"`
}

// ExtractResult contains extraction outcome.
type ExtractResult struct {
	// Entries lists written entries in archive order.
	Entries []ExtractedEntry `json:"entries" yaml:"entries"`
	// Failures lists per-entry failures collected with ContinueOnError.
	Failures []*ExtractError `json:"-" yaml:"-"`
	// Skipped is number of entries excluded by Include rules.
	Skipped int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Count returns the number of extracted entries.
func (r *ExtractResult) Count() int {
	if r == nil {
		return 0
	}

	return len(r.Entries)
}

// Paths returns output paths of extracted entries.
func (r *ExtractResult) Paths() []string {
	if r == nil {
		return nil
	}

	out := make([]string, len(r.Entries))
	for i := range r.Entries {
		out[i] = r.Entries[i].Path
	}

	return out
}

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults() {
	if opts.MaxDirectorySize == 0 {
		opts.MaxDirectorySize = DefaultMaxDirectorySize
	}

	if opts.MaxPayloadSize <= 0 {
		opts.MaxPayloadSize = DefaultMaxPayloadSize
	}

	if opts.MaxUnwrappedSize <= 0 {
		opts.MaxUnwrappedSize = DefaultMaxUnwrappedSize
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}

	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}

	if opts.IncludeMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.IncludeMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.IncludeMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.IncludeMatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecompressMethods(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("UnityFS block payload "), 64)

	cases := []struct {
		name   string
		method Compression
		src    []byte
	}{
		{name: "lzma unity header", method: CompressionLZMA, src: compressForTest(t, CompressionLZMA, text)},
		{name: "lz4 raw block", method: CompressionLZ4, src: lz4BlockForTest(t, text)},
		{name: "lz4 frame", method: CompressionLZ4, src: lz4FrameForTest(t, text)},
		{name: "lz4hc raw block", method: CompressionLZ4HC, src: lz4BlockForTest(t, text)},
		{name: "lz4 literal block", method: CompressionLZ4, src: lz4LiteralBlock(text)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Decompress(tc.method, tc.src, len(text))
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(got, text) {
				t.Fatalf("Decompress returned %d bytes, want %d matching bytes", len(got), len(text))
			}
		})
	}
}

func TestDecompressNoneReturnsInput(t *testing.T) {
	t.Parallel()

	src := []byte("raw")
	got, err := Decompress(CompressionNone, src, 100)
	if err != nil {
		t.Fatalf("Decompress none: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatalf("got %q, want %q", got, src)
	}
}

func TestDecompressUnknownSize(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("abc"), 100)
	got, err := Decompress(CompressionLZ4, lz4FrameForTest(t, text), -1)
	if err != nil {
		t.Fatalf("Decompress frame unknown size: %v", err)
	}
	if !bytes.Equal(got, text) {
		t.Fatal("frame decoded with unknown size mismatch")
	}

	if _, err := Decompress(CompressionLZ4HC, lz4BlockForTest(t, text), -1); !errors.Is(err, ErrDecompressFailed) {
		t.Fatalf("raw block without size: expected ErrDecompressFailed, got %v", err)
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("mismatch"), 32)

	if _, err := Decompress(CompressionLZ4, lz4FrameForTest(t, text), len(text)-1); !errors.Is(err, ErrDecompressFailed) {
		t.Fatalf("short frame target: expected ErrDecompressFailed, got %v", err)
	}

	if _, err := Decompress(CompressionLZ4, lz4FrameForTest(t, text), len(text)+1); !errors.Is(err, ErrDecompressFailed) {
		t.Fatalf("long frame target: expected ErrDecompressFailed, got %v", err)
	}

	if _, err := Decompress(CompressionLZMA, []byte{0x5d, 0, 0}, 10); !errors.Is(err, ErrDecompressFailed) {
		t.Fatalf("short lzma: expected ErrDecompressFailed, got %v", err)
	}
}

func TestDecompressLZMAUnityFormOnly(t *testing.T) {
	t.Parallel()

	// Sizes divisible by 256 start the stored size with a zero byte, like the range coder stream.
	for _, size := range []int{256, 512, 4096} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 7 % 251)
		}

		got, err := Decompress(CompressionLZMA, compressForTest(t, CompressionLZMA, data), size)
		if err != nil {
			t.Fatalf("size=%d: Decompress: %v", size, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("size=%d: decoded bytes differ", size)
		}
	}

	// A 13-byte .lzma header is not a Unity block: its size field is read as range coder data.
	text := bytes.Repeat([]byte("classic"), 43)
	if _, err := Decompress(CompressionLZMA, lzmaClassicForTest(t, text), len(text)); !errors.Is(err, ErrDecompressFailed) {
		t.Fatalf("classic header: expected ErrDecompressFailed, got %v", err)
	}
}

func TestDecompressRejectsLZHAMBeforeAllocation(t *testing.T) {
	t.Parallel()

	// A huge declared size must not be touched for an unsupported method.
	_, err := Decompress(CompressionLZHAM, nil, 1<<30)
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func TestDecompressUnknownMethod(t *testing.T) {
	t.Parallel()

	for _, method := range []Compression{5, 7, 63} {
		if _, err := Decompress(method, []byte{1}, 1); !errors.Is(err, ErrUnknownCodec) {
			t.Fatalf("method %d: expected ErrUnknownCodec, got %v", method, err)
		}
	}
}

func TestCompressionString(t *testing.T) {
	t.Parallel()

	cases := map[Compression]string{
		CompressionNone:  "none",
		CompressionLZMA:  "lzma",
		CompressionLZ4:   "lz4",
		CompressionLZ4HC: "lz4hc",
		CompressionLZHAM: "lzham",
		9:                "unknown(9)",
	}

	for method, want := range cases {
		if got := method.String(); got != want {
			t.Fatalf("Compression(%d).String()=%q, want %q", uint32(method), got, want)
		}
	}

	if CompressionLZHAM.Supported() {
		t.Fatal("LZHAM must not be reported as supported")
	}
}

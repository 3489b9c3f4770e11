// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/woozymasta/unityfs"
)

// newInfoCmd builds info subcommand.
func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "Show container header and layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()

			return writeInfo(cmd.OutOrStdout(), archive)
		},
	}
}

// writeInfo prints container description as "key: value" lines.
func writeInfo(w io.Writer, archive *unityfs.Archive) error {
	p := func(key string, value any) {
		_, _ = fmt.Fprintf(w, "%-22s %v\n", key+":", value)
	}

	p("kind", archive.Kind())
	p("gzip", archive.Unwrapped())

	if b := archive.Bundle(); b != nil {
		h := b.Header()
		id := b.DirectoryID()
		p("format version", h.Version)
		p("engine version", h.EngineVersion)
		p("engine revision", h.EngineRevision)
		p("file size", h.FileSize)
		p("compressed dir size", h.CompressedDirSize)
		p("decompressed dir size", h.DecompressedDirSize)
		p("flags", fmt.Sprintf("%#b", h.Flags))
		p("compression", h.Layout.Method)
		p("directory info", h.Layout.HasDirectoryInfo)
		p("directory at end", h.Layout.DirectoryAtEnd)
		p("directory id", hex.EncodeToString(id[:]))
		p("data offset", b.DataOffset())
		p("strategy", b.Strategy())
		p("blocks", len(b.Blocks()))
		p("nodes", len(b.Nodes()))
	}

	if wd := archive.WebData(); wd != nil {
		entries, err := wd.Entries()
		if err != nil {
			return err
		}

		p("table size", wd.TableSize())
		p("entries", len(entries))
	}

	return nil
}

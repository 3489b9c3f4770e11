// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/woozymasta/unityfs"
)

// app holds flags and services shared by subcommands.
type app struct {
	log       zerolog.Logger
	logLevel  string
	logFormat string
	noUnwrap  bool
}

// newRootCmd builds command tree.
func newRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "unityfs",
		Short:         "List and extract UnityFS bundles and UnityWebData files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
			if err != nil {
				return err
			}

			a.log = logger
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "console", "log format: console or json")
	flags.BoolVar(&a.noUnwrap, "no-unwrap", false, "do not remove an outer gzip envelope")

	cmd.AddCommand(
		newExtractCmd(a),
		newListCmd(a),
		newInfoCmd(a),
	)

	return cmd
}

// newLogger builds zerolog logger writing to w.
func newLogger(w io.Writer, level string, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse --log-level: %w", err)
	}

	switch format {
	case "json":
	case "console", "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown --log-format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// readerOptions maps global flags to library reader options.
func (a *app) readerOptions() unityfs.ReaderOptions {
	return unityfs.ReaderOptions{DisableUnwrap: a.noUnwrap}
}

// open opens archive and logs container diagnostics.
func (a *app) open(path string) (*unityfs.Archive, error) {
	archive, err := unityfs.Open(path, a.readerOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if archive.Unwrapped() {
		a.log.Info().Str("file", path).Msg("removed gzip envelope")
	}

	if b := archive.Bundle(); b != nil {
		h := b.Header()
		a.log.Debug().
			Uint32("version", h.Version).
			Str("engine_version", h.EngineVersion).
			Str("engine_revision", h.EngineRevision).
			Uint64("file_size", h.FileSize).
			Uint32("compressed_dir_size", h.CompressedDirSize).
			Uint32("decompressed_dir_size", h.DecompressedDirSize).
			Str("flags", fmt.Sprintf("%#b", h.Flags)).
			Msg("bundle header")
		a.log.Info().
			Str("compression", h.Layout.Method.String()).
			Bool("directory_at_end", h.Layout.DirectoryAtEnd).
			Int("blocks", len(b.Blocks())).
			Int("nodes", len(b.Nodes())).
			Str("strategy", string(b.Strategy())).
			Msg("bundle")
	}

	if w := archive.WebData(); w != nil {
		entries, _ := w.Entries()
		a.log.Info().
			Uint32("table_size", w.TableSize()).
			Int("entries", len(entries)).
			Msg("web data")
	}

	return archive, nil
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/woozymasta/pathrules"
	"github.com/woozymasta/unityfs"
)

// extractFlags holds extract subcommand flags.
type extractFlags struct {
	output          string
	fileMode        string
	include         []string
	exclude         []string
	workers         int
	continueOnError bool
	rawNames        bool
	dumpBlocks      bool
}

// newExtractCmd builds extract subcommand.
func newExtractCmd(a *app) *cobra.Command {
	f := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Extract all files from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "output directory (default <archive>_extracted)")
	flags.IntVarP(&f.workers, "workers", "w", 1, "parallel extraction workers")
	flags.BoolVar(&f.continueOnError, "continue-on-error", false, "skip broken entries and report them at the end")
	flags.StringArrayVar(&f.include, "include", nil, "extract only paths matching pattern (repeatable)")
	flags.StringArrayVar(&f.exclude, "exclude", nil, "skip paths matching pattern (repeatable)")
	flags.BoolVar(&f.rawNames, "raw-names", false, "keep stored names without filesystem sanitization")
	flags.StringVar(&f.fileMode, "file-mode", string(unityfs.ExtractFileModeAuto), "existing file policy: auto, truncate, create_only")
	flags.BoolVar(&f.dumpBlocks, "dump-blocks", false, "also write decoded bundle blocks as __blockN__")

	return cmd
}

// runExtract opens archive and extracts it to output directory.
func (a *app) runExtract(cmd *cobra.Command, path string, f *extractFlags) error {
	mode, err := parseFileMode(f.fileMode)
	if err != nil {
		return err
	}

	outDir := f.output
	if outDir == "" {
		outDir = defaultOutputDir(path)
	}

	archive, err := a.open(path)
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	rules, matcherOpts := buildRules(f.include, f.exclude)
	opts := unityfs.ExtractOptions{
		MaxWorkers:            f.workers,
		ContinueOnError:       f.continueOnError,
		RawNames:              f.rawNames,
		FileMode:              mode,
		Include:               rules,
		IncludeMatcherOptions: matcherOpts,
		OnEntryDone: func(entry unityfs.Entry, written int64, outputPath string) {
			a.log.Info().
				Str("path", outputPath).
				Uint64("offset", entry.Offset).
				Int64("bytes", written).
				Msg("file")
		},
	}

	res, err := archive.Extract(cmd.Context(), outDir, opts)
	if res != nil {
		for _, failure := range res.Failures {
			a.log.Warn().Str("path", failure.Path).Uint64("offset", failure.Offset).Err(failure.Err).Msg("entry failed")
		}
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	if f.dumpBlocks {
		if err := a.dumpBlocks(archive.Bundle(), outDir, mode); err != nil {
			return err
		}
	}

	a.log.Info().
		Str("output", outDir).
		Int("files", res.Count()).
		Int("skipped", res.Skipped).
		Int("failed", len(res.Failures)).
		Msg("done")

	if len(res.Failures) > 0 {
		return fmt.Errorf("extract %s: %d entries failed", path, len(res.Failures))
	}

	return nil
}

// dumpBlocks writes decoded bundle blocks as __block1__, __block2__, ...
func (a *app) dumpBlocks(b *unityfs.Bundle, outDir string, mode unityfs.ExtractFileMode) error {
	if b == nil {
		a.log.Warn().Msg("--dump-blocks ignored: archive is not a bundle")
		return nil
	}

	sink, err := unityfs.NewDirSink(outDir, mode)
	if err != nil {
		return err
	}

	for i, blk := range b.Blocks() {
		data, err := b.ReadBlock(i)
		if err != nil {
			return fmt.Errorf("dump block %d: %w", i+1, err)
		}

		name := fmt.Sprintf("__block%d__", i+1)
		if _, err := sink.WriteFile(name, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("dump block %d: %w", i+1, err)
		}

		a.log.Info().Str("path", name).Uint32("bytes", blk.DecompressedSize).Str("method", blk.Method().String()).Msg("block")
	}

	return nil
}

// buildRules converts include and exclude patterns to ordered path rules.
// Without include patterns every path not excluded is selected.
func buildRules(include []string, exclude []string) ([]pathrules.Rule, pathrules.MatcherOptions) {
	rules := make([]pathrules.Rule, 0, len(include)+len(exclude))
	for _, pattern := range include {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: pattern})
	}
	for _, pattern := range exclude {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: pattern})
	}

	opts := pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	}
	if len(include) == 0 {
		opts.DefaultAction = pathrules.ActionInclude
	}

	return rules, opts
}

// parseFileMode validates --file-mode value.
func parseFileMode(value string) (unityfs.ExtractFileMode, error) {
	mode := unityfs.ExtractFileMode(strings.ToLower(strings.TrimSpace(value)))
	switch mode {
	case unityfs.ExtractFileModeAuto, unityfs.ExtractFileModeTruncate, unityfs.ExtractFileModeCreateOnly:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown --file-mode %q", value)
	}
}

// defaultOutputDir returns "<archive base without extension>_extracted" in working directory.
func defaultOutputDir(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}

	return base + "_extracted"
}

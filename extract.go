// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
)

// entryOpener returns a reader over one entry's bytes. Readers returned for
// different entries must be independent (ReaderAt sections or payload slices).
type entryOpener func(entry Entry) (io.Reader, error)

// extractWorkItem stores one selected entry with prepared output relative paths.
type extractWorkItem struct {
	// err is set when the entry was rejected during preparation.
	err     error
	relPath string
	relDir  string
	entry   Entry
}

// extractOutcome is one worker result.
type extractOutcome struct {
	err     error
	written int64
}

// extractEntries runs selection, path preparation and the worker pool shared by all container kinds.
func extractEntries(ctx context.Context, entries []Entry, open entryOpener, sink Sink, opts ExtractOptions) (*ExtractResult, error) {
	opts.applyDefaults()

	if sink == nil {
		return nil, fmt.Errorf("%w: sink is nil", ErrIOFailure)
	}

	matcher, err := newEntryMatcher(opts.Include, opts.IncludeMatcherOptions)
	if err != nil {
		return nil, err
	}

	// Output names are resolved over all entries so "~N" suffixes do not depend on Include.
	result := &ExtractResult{}
	items := prepareExtractWorkItems(entries, !opts.RawNames)
	ready := make([]extractWorkItem, 0, len(items))
	for _, item := range items {
		if !matcher.Match(item.entry.Path) {
			result.Skipped++
			continue
		}

		if item.err == nil {
			ready = append(ready, item)
			continue
		}

		failure := &ExtractError{Path: item.entry.Path, Offset: item.entry.Offset, Err: item.err}
		if !opts.ContinueOnError {
			return result, failure
		}

		result.Failures = append(result.Failures, failure)
	}

	if err := prepareExtractDirs(sink, ready); err != nil {
		return result, err
	}

	outcomes := runExtractWorkers(ctx, ready, open, sink, opts)

	var firstFailure, ctxErr error
	for i, item := range ready {
		out := outcomes[i]
		if out == nil {
			continue
		}

		if out.err == nil {
			result.Entries = append(result.Entries, ExtractedEntry{
				Entry:   item.entry,
				Path:    item.relPath,
				Written: out.written,
			})
			continue
		}

		if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
			if ctxErr == nil {
				ctxErr = out.err
			}
			continue
		}

		failure := &ExtractError{Path: item.entry.Path, Offset: item.entry.Offset, Err: out.err}
		if opts.ContinueOnError {
			result.Failures = append(result.Failures, failure)
			continue
		}

		if firstFailure == nil {
			firstFailure = failure
		}
	}

	if firstFailure != nil {
		return result, firstFailure
	}

	if ctxErr == nil {
		ctxErr = ctx.Err()
	}

	return result, ctxErr
}

// runExtractWorkers extracts ready items with opts.MaxWorkers workers.
// Outcomes are indexed like items; nil means the item was not attempted.
func runExtractWorkers(
	ctx context.Context,
	items []extractWorkItem,
	open entryOpener,
	sink Sink,
	opts ExtractOptions,
) []*extractOutcome {
	outcomes := make([]*extractOutcome, len(items))
	if len(items) == 0 {
		return outcomes
	}

	workers := min(opts.MaxWorkers, len(items))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for idx := range taskCh {
				written, err := extractPreparedEntry(ctx, items[idx], open, sink, opts.OnEntryDone)
				outcomes[idx] = &extractOutcome{written: written, err: err}
				if err != nil && !opts.ContinueOnError {
					cancel()
				}
			}
		})
	}

dispatch:
	for idx := range items {
		select {
		case <-ctx.Done():
			break dispatch
		case taskCh <- idx:
		}
	}

	close(taskCh)
	wg.Wait()

	return outcomes
}

// prepareExtractWorkItems validates entry paths and prepares relative output paths.
// Traversal is rejected on the stored path before any sanitization.
func prepareExtractWorkItems(entries []Entry, sanitize bool) []extractWorkItem {
	items := make([]extractWorkItem, len(entries))
	used := make(map[string]struct{}, len(entries))
	nextSuffix := make(map[string]int, len(entries))

	for i, entry := range entries {
		items[i] = extractWorkItem{entry: entry}

		relPath, err := normalizeExtractEntryPath(entry.Path)
		if err != nil {
			items[i].err = err
			continue
		}

		if sanitize {
			relPath, err = sanitizeRelativePath(relPath)
			if err == nil {
				relPath, err = makeSanitizedPathUnique(relPath, used, nextSuffix)
			}
			if err != nil {
				items[i].err = fmt.Errorf("sanitize path %s: %w", entry.Path, err)
				continue
			}
		}

		relDir := path.Dir(relPath)
		if relDir == "." {
			relDir = ""
		}

		items[i].relPath = relPath
		items[i].relDir = relDir
	}

	return items
}

// prepareExtractDirs creates all unique parent directories needed by work items.
func prepareExtractDirs(sink Sink, items []extractWorkItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.relDir == "" {
			continue
		}

		if _, exists := seen[item.relDir]; exists {
			continue
		}

		seen[item.relDir] = struct{}{}
		if err := sink.CreateDirectories(item.relDir); err != nil {
			return fmt.Errorf("create output directory %s: %w", item.relDir, err)
		}
	}

	return nil
}

// extractPreparedEntry writes one prepared work item to sink.
func extractPreparedEntry(
	ctx context.Context,
	item extractWorkItem,
	open entryOpener,
	sink Sink,
	onEntryDone func(entry Entry, written int64, outputPath string),
) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	r, err := open(item.entry)
	if err != nil {
		return 0, err
	}

	written, err := sink.WriteFile(item.relPath, &exactReader{r: r, remaining: item.entry.Size})
	if err != nil {
		return written, err
	}

	if onEntryDone != nil {
		onEntryDone(item.entry, written, item.relPath)
	}

	return written, nil
}

// exactReader fails with io.ErrUnexpectedEOF when the source ends before the
// declared entry size, so sinks never commit a silently truncated file.
type exactReader struct {
	r         io.Reader
	remaining uint64
}

// Read implements io.Reader.
func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining == 0 {
		return 0, io.EOF
	}

	if uint64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}

	n, err := e.r.Read(p)
	e.remaining -= uint64(n) //nolint:gosec // n is non-negative
	if errors.Is(err, io.EOF) {
		if e.remaining > 0 {
			return n, fmt.Errorf("%w: %d bytes missing", io.ErrUnexpectedEOF, e.remaining)
		}

		return n, io.EOF
	}

	return n, err
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

/*
Package unityfs provides read and extract operations for Unity engine
containers: UnityFS asset bundles and UnityWebData files. Sources are read
through io.ReaderAt, so listing and direct-mode extraction never load the full
archive into memory.

Container handling (summary):
  - gzip-wrapped files are unwrapped before format probing;
  - the UnityFS directory block may be stored after the header or at the end;
  - compression methods none, LZMA, LZ4 and LZ4HC are decoded; LZHAM is
    detected and reported with ErrUnsupportedCodec;
  - uncompressed bundles and single stored blocks are read in place, other
    bundles decode all blocks once into a shared payload;
  - every entry range is validated when the archive is opened.

# Reading

Open an archive of any supported kind and list or read entries:

	a, err := unityfs.Open("data.unity3d", unityfs.ReaderOptions{})
	if err != nil {
	    return err
	}
	defer a.Close()
	entries, err := a.Entries()
	if err != nil {
	    return err
	}
	for _, e := range entries {
	    data, _ := a.ReadEntry(e.Path)
	    // use data
	}

For metadata-only scans, use fast helpers without decoding block payload:

	hdr, err := unityfs.ReadHeader("data.unity3d", unityfs.ReaderOptions{})
	if err != nil {
	    return err
	}
	entries, err := unityfs.ListEntries("data.unity3d", unityfs.ReaderOptions{})
	if err != nil {
	    return err
	}
	_, _ = hdr, entries

Format-specific access is available through Archive.Bundle and
Archive.WebData, or directly with OpenBundle and OpenWebData.

# Extracting

Extract all entries to a directory (parallel workers):

	res, err := a.Extract(ctx, "out/", unityfs.ExtractOptions{MaxWorkers: 4})
	if err != nil {
	    return err
	}
	_ = res.Count()

Entries with absolute or parent-relative paths are rejected with
ErrPathTraversalRejected before anything is written. Names are sanitized
for portable filesystems unless RawNames is set. Select entries with
github.com/woozymasta/pathrules rules and keep going past broken entries:

	res, err := a.Extract(ctx, "out/", unityfs.ExtractOptions{
	    Include: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "*.resS"},
	        {Action: pathrules.ActionInclude, Pattern: "CAB-*"},
	    },
	    ContinueOnError: true,
	})
	for _, f := range res.Failures {
	    log.Printf("%s: %v", f.Path, f.Err)
	}

Any Sink implementation can receive entries instead of a directory:

	sink := unityfs.NewMemorySink()
	if _, err := a.ExtractTo(ctx, sink, unityfs.ExtractOptions{}); err != nil {
	    return err
	}
*/
package unityfs

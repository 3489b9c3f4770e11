// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/woozymasta/pathrules"
	"github.com/woozymasta/unityfs"
)

type fixtureFile struct {
	path string
	data string
}

var fixtureFiles = []fixtureFile{
	{path: "a/b.txt", data: "hello"},
	{path: "c.txt", data: "xyz"},
	{path: "skip.bin", data: "binary"},
}

// writeWebData writes an uncompressed UnityWebData file and returns its path.
func writeWebData(t *testing.T, files []fixtureFile) string {
	t.Helper()

	tableSize := 20
	for _, f := range files {
		tableSize += 12 + len(f.path)
	}

	var table, data bytes.Buffer
	table.WriteString(unityfs.WebDataMagic)
	require.NoError(t, binary.Write(&table, binary.LittleEndian, uint32(tableSize)))
	for _, f := range files {
		require.NoError(t, binary.Write(&table, binary.LittleEndian, uint32(tableSize+data.Len())))
		require.NoError(t, binary.Write(&table, binary.LittleEndian, uint32(len(f.data))))
		require.NoError(t, binary.Write(&table, binary.LittleEndian, uint32(len(f.path))))
		table.WriteString(f.path)
		data.WriteString(f.data)
	}

	path := filepath.Join(t.TempDir(), "game.data")
	require.NoError(t, os.WriteFile(path, append(table.Bytes(), data.Bytes()...), 0o600))
	return path
}

// writeStoredBundle writes a UnityFS bundle with an uncompressed directory and one stored block.
func writeStoredBundle(t *testing.T, files []fixtureFile) string {
	t.Helper()

	var payload bytes.Buffer
	var dir bytes.Buffer
	dir.Write(make([]byte, 16))

	total := 0
	for _, f := range files {
		total += len(f.data)
	}
	require.NoError(t, binary.Write(&dir, binary.BigEndian, uint32(1)))
	require.NoError(t, binary.Write(&dir, binary.BigEndian, uint32(total)))
	require.NoError(t, binary.Write(&dir, binary.BigEndian, uint32(total)))
	require.NoError(t, binary.Write(&dir, binary.BigEndian, uint16(0)))

	require.NoError(t, binary.Write(&dir, binary.BigEndian, uint32(len(files))))
	for _, f := range files {
		require.NoError(t, binary.Write(&dir, binary.BigEndian, uint64(payload.Len())))
		require.NoError(t, binary.Write(&dir, binary.BigEndian, uint64(len(f.data))))
		require.NoError(t, binary.Write(&dir, binary.BigEndian, uint32(0)))
		dir.WriteString(f.path)
		dir.WriteByte(0)
		payload.WriteString(f.data)
	}

	var header bytes.Buffer
	header.WriteString(unityfs.BundleMagic)
	require.NoError(t, binary.Write(&header, binary.BigEndian, uint32(6)))
	header.WriteString("5.x.x\x00")
	header.WriteString("2019.4.1f1\x00")
	fileSize := header.Len() + 20 + dir.Len() + payload.Len()
	require.NoError(t, binary.Write(&header, binary.BigEndian, uint64(fileSize)))
	require.NoError(t, binary.Write(&header, binary.BigEndian, uint32(dir.Len())))
	require.NoError(t, binary.Write(&header, binary.BigEndian, uint32(dir.Len())))
	require.NoError(t, binary.Write(&header, binary.BigEndian, uint32(0x40)))

	raw := append(header.Bytes(), dir.Bytes()...)
	raw = append(raw, payload.Bytes()...)

	path := filepath.Join(t.TempDir(), "data.unity3d")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestExtractCommandWebData(t *testing.T) {
	t.Parallel()

	archive := writeWebData(t, fixtureFiles)
	outDir := filepath.Join(t.TempDir(), "out")

	_, logs, err := runCLI(t, "extract", archive, "-o", outDir, "-w", "2", "--exclude", "*.bin")
	require.NoError(t, err)
	require.Contains(t, logs, "done")

	got, err := os.ReadFile(filepath.Join(outDir, "a", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	got, err = os.ReadFile(filepath.Join(outDir, "c.txt"))
	require.NoError(t, err)
	require.Equal(t, "xyz", string(got))

	require.NoFileExists(t, filepath.Join(outDir, "skip.bin"))
}

func TestExtractCommandBundleDumpBlocks(t *testing.T) {
	t.Parallel()

	archive := writeStoredBundle(t, fixtureFiles)
	outDir := t.TempDir()

	_, _, err := runCLI(t, "extract", archive, "-o", outDir, "--include", "*.txt", "--dump-blocks", "--log-format", "json")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(outDir, "a", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.NoFileExists(t, filepath.Join(outDir, "skip.bin"))

	block, err := os.ReadFile(filepath.Join(outDir, "__block1__"))
	require.NoError(t, err)
	require.Equal(t, "helloxyzbinary", string(block))
}

func TestExtractCommandRejectsTraversal(t *testing.T) {
	t.Parallel()

	archive := writeWebData(t, []fixtureFile{
		{path: "ok.txt", data: "fine"},
		{path: "../escape.txt", data: "evil"},
	})
	base := t.TempDir()
	outDir := filepath.Join(base, "out")

	_, logs, err := runCLI(t, "extract", archive, "-o", outDir, "--continue-on-error")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 entries failed")
	require.Contains(t, logs, "entry failed")
	require.FileExists(t, filepath.Join(outDir, "ok.txt"))
	require.NoFileExists(t, filepath.Join(base, "escape.txt"))
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	archive := writeWebData(t, []fixtureFile{
		{path: "CON.txt", data: "dev"},
		{path: "c.txt", data: "xyz"},
	})

	out, _, err := runCLI(t, "list", archive)
	require.NoError(t, err)
	require.Contains(t, out, "PATH")
	require.Contains(t, out, "CON.txt")
	require.Contains(t, out, "c.txt")

	out, _, err = runCLI(t, "list", "--sanitize", archive)
	require.NoError(t, err)
	require.Contains(t, out, "_CON.txt")
}

func TestInfoCommand(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "info", writeStoredBundle(t, fixtureFiles))
	require.NoError(t, err)
	require.Regexp(t, `kind:\s+unityfs`, out)
	require.Regexp(t, `compression:\s+none`, out)
	require.Regexp(t, `strategy:\s+direct`, out)
	require.Regexp(t, `nodes:\s+3`, out)

	out, _, err = runCLI(t, "info", writeWebData(t, fixtureFiles))
	require.NoError(t, err)
	require.Regexp(t, `kind:\s+webdata`, out)
	require.Regexp(t, `entries:\s+3`, out)
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()

	archive := writeWebData(t, fixtureFiles)

	_, _, err := runCLI(t, "info", filepath.Join(t.TempDir(), "missing.data"))
	require.ErrorIs(t, err, unityfs.ErrIOFailure)

	_, _, err = runCLI(t, "extract", archive, "--file-mode", "append")
	require.ErrorContains(t, err, "--file-mode")

	_, _, err = runCLI(t, "list", "--log-level", "loud", archive)
	require.ErrorContains(t, err, "--log-level")

	_, _, err = runCLI(t, "list", "--log-format", "xml", archive)
	require.ErrorContains(t, err, "--log-format")
}

func TestBuildRules(t *testing.T) {
	t.Parallel()

	rules, opts := buildRules(nil, []string{"*.bin"})
	require.Len(t, rules, 1)
	require.Equal(t, pathrules.ActionExclude, rules[0].Action)
	require.Equal(t, pathrules.ActionInclude, opts.DefaultAction)

	rules, opts = buildRules([]string{"*.txt"}, []string{"tmp/**"})
	require.Equal(t, []pathrules.Rule{
		{Action: pathrules.ActionInclude, Pattern: "*.txt"},
		{Action: pathrules.ActionExclude, Pattern: "tmp/**"},
	}, rules)
	require.Equal(t, pathrules.ActionExclude, opts.DefaultAction)
	require.True(t, opts.CaseInsensitive)
}

func TestParseFileMode(t *testing.T) {
	t.Parallel()

	mode, err := parseFileMode(" Create_Only ")
	require.NoError(t, err)
	require.Equal(t, unityfs.ExtractFileModeCreateOnly, mode)

	_, err = parseFileMode("overwrite")
	require.Error(t, err)
}

func TestDefaultOutputDir(t *testing.T) {
	t.Parallel()

	require.Equal(t, "game_extracted", defaultOutputDir(filepath.Join("builds", "game.data")))
	require.Equal(t, "data_extracted", defaultOutputDir("data"))
	require.Equal(t, ".hidden_extracted", defaultOutputDir(".hidden"))
}

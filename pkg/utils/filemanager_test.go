package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagedFile_Commit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "batch.txt")

	staged, err := CreateStaged(target)
	require.NoError(t, err)
	assert.Equal(t, target, staged.Target())

	_, err = staged.WriteString("01|A\n")
	require.NoError(t, err)
	assert.False(t, FileExists(target), "target must not exist before commit")

	require.NoError(t, staged.Commit())
	require.NoError(t, staged.Discard(), "discard after commit is a no-op")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "01|A\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStagedFile_CommitMode(t *testing.T) {
	target := filepath.Join(t.TempDir(), "batch.txt")

	staged, err := CreateStaged(target)
	require.NoError(t, err)
	_, err = staged.WriteString("01|A\n")
	require.NoError(t, err)
	require.NoError(t, staged.Commit())

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, OutputFileMode, info.Mode().Perm())
}

func TestStagedFile_Discard(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "batch.txt")

	staged, err := CreateStaged(target)
	require.NoError(t, err)
	_, err = staged.WriteString("partial")
	require.NoError(t, err)

	require.NoError(t, staged.Discard())

	assert.False(t, FileExists(target))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Error(t, staged.Commit())
}

func TestCreateStaged_MissingDir(t *testing.T) {
	_, err := CreateStaged(filepath.Join(t.TempDir(), "nope", "batch.txt"))
	assert.Error(t, err)
}

func TestArchiveInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "client.csv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0644))

	archived, err := ArchiveInput(input, filepath.Join(dir, "archive"))
	require.NoError(t, err)

	assert.False(t, FileExists(input))
	assert.True(t, FileExists(archived))
	assert.Equal(t, "client.csv", filepath.Base(archived))
}

func TestArchiveInput_Disabled(t *testing.T) {
	input := filepath.Join(t.TempDir(), "client.csv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0644))

	archived, err := ArchiveInput(input, "")
	require.NoError(t, err)
	assert.Equal(t, input, archived)
	assert.True(t, FileExists(input))
}

func TestArchivePathFor(t *testing.T) {
	now := time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC)
	got := archivePathFor("/arch", "/in/client.csv", now)
	assert.Equal(t, filepath.Join("/arch", "2024", "01", "05", "client.csv"), got)
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC)

	path, err := WriteSummaryLog(RunSummary{
		RunID:          "0123456789abcdef",
		StartTime:      start,
		EndTime:        start.Add(2 * time.Second),
		InputFile:      "client.csv",
		OutputFile:     "batch.txt",
		Packages:       2,
		Details:        8,
		ClientTotals:   "Total Amount=75 Receipt Count=3 Email Receipt Count=0",
		ComputedTotals: "Total Amount=75 Receipt Count=2 Email Receipt Count=0",
		Error:          "reconciliation totals do not match",
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, "run_summary_20240105_100000_01234567.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "Status:         FAILED")
	assert.Contains(t, text, "Packages:       2")
	assert.Contains(t, text, "Receipt Count=3")
	assert.True(t, strings.HasSuffix(text, "End of Summary\n"))
}

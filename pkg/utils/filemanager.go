// =============================================================================
// Receipt Batch Composer - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the commands:
//   - Output staging (write to a temporary file, commit or discard)
//   - Input archival (moving processed files)
//   - Run summary logs
//
// STAGING STRATEGY:
//   - Output is written to a hidden temporary file next to the target
//   - The temporary file is renamed onto the target only after the run
//     reconciled successfully
//   - On failure the temporary file is removed, so a failed run never leaves
//     a partial batch behind
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// OUTPUT STAGING
// =============================================================================

// OutputFileMode is the permission of committed output files.
const OutputFileMode os.FileMode = 0644

// StagedFile is an output file that only appears at its target path once
// committed.
type StagedFile struct {
	*os.File

	target string
	closed bool
}

// CreateStaged creates a temporary file in the directory of target.
//
// PARAMETERS:
//   - target: The final path of the output file.
//
// RETURNS:
//   - The staged file, open for writing.
//   - An error if the directory does not exist or is not writable.
func CreateStaged(target string) (*StagedFile, error) {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file for %s: %w", target, err)
	}
	return &StagedFile{File: tmp, target: target}, nil
}

// Target returns the final path of the file.
func (s *StagedFile) Target() string {
	return s.target
}

// Commit closes the staged file and renames it onto its target with
// OutputFileMode.
func (s *StagedFile) Commit() error {
	if s.closed {
		return fmt.Errorf("staged file %s already closed", s.target)
	}
	s.closed = true

	if err := s.File.Chmod(OutputFileMode); err != nil {
		s.File.Close()
		os.Remove(s.File.Name())
		return fmt.Errorf("failed to set mode of %s: %w", s.target, err)
	}
	if err := s.File.Sync(); err != nil {
		s.File.Close()
		os.Remove(s.File.Name())
		return fmt.Errorf("failed to sync %s: %w", s.target, err)
	}
	if err := s.File.Close(); err != nil {
		os.Remove(s.File.Name())
		return fmt.Errorf("failed to close %s: %w", s.target, err)
	}
	if err := os.Rename(s.File.Name(), s.target); err != nil {
		os.Remove(s.File.Name())
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// Discard closes and removes the staged file. It is a no-op after Commit,
// so it can be deferred.
func (s *StagedFile) Discard() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.File.Close()
	if err := os.Remove(s.File.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staging file: %w", err)
	}
	return nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInput moves an input file into a dated subdirectory of archiveDir
// (archiveDir/2024/01/15/file.csv).
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//   - archiveDir: The archive root. Empty disables archival.
//
// RETURNS:
//   - The path to the archived file (filePath when archival is disabled).
//   - An error if archival fails.
func ArchiveInput(filePath, archiveDir string) (string, error) {
	if archiveDir == "" {
		return filePath, nil
	}

	archivePath := archivePathFor(archiveDir, filePath, time.Now())

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	// Move the file.
	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func archivePathFor(archiveDir, filePath string, now time.Time) string {
	return filepath.Join(
		archiveDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
		filepath.Base(filePath),
	)
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one compose run.
type RunSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	InputFile   string
	OutputFile  string
	ArchivePath string

	Records       int
	Packages      int
	Details       int
	EmailPackages int
	TrailerLines  int

	// ClientTotals and ComputedTotals are the formatted control figures.
	ClientTotals   string
	ComputedTotals string

	// Error is empty for a successful run.
	Error string
}

// WriteSummaryLog writes a run summary to a text file in outputDir.
//
// PARAMETERS:
//   - summary: The run summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	id := summary.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	summaryFileName := fmt.Sprintf("run_summary_%s_%s.txt", summary.StartTime.Format("20060102_150405"), id)
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	status := "SUCCESS"
	if summary.Error != "" {
		status = "FAILED"
	}

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Receipt Batch Composer - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Status:         %s\n\n"+
		"Files:\n"+
		"  Input:          %s\n"+
		"  Output:         %s\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		status,
		summary.InputFile,
		summary.OutputFile)
	if summary.ArchivePath != "" {
		fmt.Fprintf(writer, "  Archived To:    %s\n", summary.ArchivePath)
	}

	fmt.Fprintf(writer, "\nStatistics:\n"+
		"  Records:        %d\n"+
		"  Packages:       %d\n"+
		"  Details:        %d\n"+
		"  Email Packages: %d\n"+
		"  Trailer Lines:  %d\n\n"+
		"Control Totals:\n"+
		"  Client:         %s\n"+
		"  Computed:       %s\n",
		summary.Records,
		summary.Packages,
		summary.Details,
		summary.EmailPackages,
		summary.TrailerLines,
		summary.ClientTotals,
		summary.ComputedTotals)

	if summary.Error != "" {
		fmt.Fprintf(writer, "\nError:\n  %s\n", summary.Error)
	}

	writer.WriteString("\n================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

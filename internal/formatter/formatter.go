// package formatter renders recorded sync runs to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/models"
)

// Format names accepted by [Export].
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Formats lists the supported format names.
var Formats = []string{FormatText, FormatCSV, FormatMarkdown}

var csvHeaders = []string{
	"ID", "Origin", "State", "CloudMode", "Destination", "DestinationCount", "SourceCount", "FailedSources",
	"Added", "StartedAt", "FinishedAt", "Error",
}

// RunsToCSV converts runs to CSV with one row per run.
func RunsToCSV(runs []*models.Run) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		record := []string{
			run.ID(),
			run.Origin(),
			run.State(),
			strconv.FormatBool(run.CloudMode()),
			run.DestinationID(),
			strconv.Itoa(run.DestinationCount()),
			strconv.Itoa(run.SourceCount()),
			strconv.Itoa(run.FailedSources()),
			strconv.Itoa(run.AddedCount()),
			run.StartedAt().UTC().Format(time.RFC3339),
			run.FinishedAt().UTC().Format(time.RFC3339),
			errorSummary(run),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RunsToMarkdown converts runs to a Markdown table.
func RunsToMarkdown(runs []*models.Run) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync History\n\n")
	buf.WriteString(fmt.Sprintf("**Runs**: %d\n\n", len(runs)))

	if len(runs) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| Started | Origin | State | Destination | Added | Duration | Error |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for _, run := range runs {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s (%d) | %d | %s | %s |\n",
			run.StartedAt().UTC().Format(time.DateTime),
			run.Origin(),
			run.State(),
			run.DestinationID(),
			run.DestinationCount(),
			run.AddedCount(),
			run.Duration().Round(time.Millisecond),
			strings.ReplaceAll(errorSummary(run), "|", `\|`),
		))
	}

	return buf.Bytes(), nil
}

// RunsToText converts runs to a numbered plain text listing.
func RunsToText(runs []*models.Run) ([]byte, error) {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes(), nil
	}

	buf.WriteString(fmt.Sprintf("Found %d runs:\n\n", len(runs)))
	for i, run := range runs {
		mark := "✓"
		if !run.Succeeded() {
			mark = "✗"
		}
		buf.WriteString(fmt.Sprintf("%d. %s %s [%s] %s\n",
			i+1, mark, run.StartedAt().Local().Format(time.DateTime), run.Origin(), run.ID()))
		buf.WriteString(fmt.Sprintf("   Destination: %s (%d tracks), added %d in %s\n",
			run.DestinationID(), run.DestinationCount(), run.AddedCount(), run.Duration().Round(time.Millisecond)))
		if run.FailedSources() > 0 {
			buf.WriteString(fmt.Sprintf("   Skipped sources: %d\n", run.FailedSources()))
		}
		for _, msg := range []string{run.ErrorMessage(), run.WriteError(), run.UploadError()} {
			if msg != "" {
				buf.WriteString(fmt.Sprintf("   Error: %s\n", msg))
			}
		}
	}

	return buf.Bytes(), nil
}

// Export renders runs in the named format.
func Export(runs []*models.Run, format string) ([]byte, error) {
	switch format {
	case FormatText, "":
		return RunsToText(runs)
	case FormatCSV:
		return RunsToCSV(runs)
	case FormatMarkdown, "md":
		return RunsToMarkdown(runs)
	default:
		return nil, fmt.Errorf("unsupported format %q (must be one of %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders runs in the named format and writes them to path.
func WriteExport(runs []*models.Run, format, path string) error {
	data, err := Export(runs, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	return nil
}

// errorSummary joins the fatal, write and upload errors of a run.
func errorSummary(run *models.Run) string {
	parts := []string{}
	for _, msg := range []string{run.ErrorMessage(), run.WriteError(), run.UploadError()} {
		if msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

// package formatter renders sync run reports and run history in text, Markdown, CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// Format names a report output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Extension returns the file extension used for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// ParseFormat resolves a user-supplied format name. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, s)
}

// Report is the outcome of a single run: what was added and what failed.
type Report struct {
	Run    *models.Run
	Added  []models.Track
	Failed []models.Track
}

type reportJSON struct {
	ID          string         `json:"id,omitempty"`
	Task        string         `json:"task,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Status      string         `json:"status,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Added       []models.Track `json:"added"`
	Failed      []models.Track `json:"failed"`
}

// ToText converts a Report to plain text format
func ToText(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, r, "")
	fmt.Fprintf(&buf, "Added: %d\nFailed: %d\n", len(r.Added), len(r.Failed))

	if len(r.Added) > 0 {
		buf.WriteString("\nAdded tracks:\n")
		writeList(&buf, r.Added)
	}
	if len(r.Failed) > 0 {
		buf.WriteString("\nFailed tracks:\n")
		writeList(&buf, r.Failed)
	}

	return buf.Bytes(), nil
}

// ToMarkdown converts a Report to Markdown format
func ToMarkdown(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync Report\n\n")
	writeHeader(&buf, r, "**")
	fmt.Fprintf(&buf, "**Added**: %d\n**Failed**: %d\n", len(r.Added), len(r.Failed))

	if len(r.Added) > 0 {
		buf.WriteString("\n## Added\n\n")
		writeList(&buf, r.Added)
	}
	if len(r.Failed) > 0 {
		buf.WriteString("\n## Failed\n\n")
		writeList(&buf, r.Failed)
	}

	return buf.Bytes(), nil
}

// ToCSV converts a Report to CSV format with columns: Status, Name, Artists.
//
// Multiple artists are joined with "; ".
func ToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Status", "Name", "Artists"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	rows := []struct {
		status string
		tracks []models.Track
	}{
		{"added", r.Added},
		{"failed", r.Failed},
	}
	for _, group := range rows {
		for _, track := range group.tracks {
			record := []string{group.status, track.Name, strings.Join(track.Artists, "; ")}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToJSON converts a Report to indented JSON.
func ToJSON(r *Report) ([]byte, error) {
	out := reportJSON{Added: r.Added, Failed: r.Failed}
	if out.Added == nil {
		out.Added = []models.Track{}
	}
	if out.Failed == nil {
		out.Failed = []models.Track{}
	}
	if run := r.Run; run != nil {
		out.ID = run.ID
		out.Task = run.Task
		out.Destination = run.Destination
		out.Status = string(run.Status)
		out.Error = run.Error
		if !run.StartedAt.IsZero() {
			started := run.StartedAt
			out.StartedAt = &started
		}
		out.FinishedAt = run.FinishedAt
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// Render converts a Report to the given format.
func Render(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return ToText(r)
	case FormatMarkdown:
		return ToMarkdown(r)
	case FormatCSV:
		return ToCSV(r)
	case FormatJSON:
		return ToJSON(r)
	}
	return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, f)
}

// WriteReport renders a Report and writes it to path.
//
// When path is a directory (or empty), the file is named report_{run id or timestamp}{ext} inside it.
func WriteReport(r *Report, f Format, path string) (string, error) {
	data, err := Render(r, f)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "."
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, reportName(r)+f.Extension())
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// FormatRuns renders run history as a bordered table.
func FormatRuns(runs []*models.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TASK", "DESTINATION", "STATUS", "ADDED", "FAILED", "STARTED", "DURATION")

	for _, run := range runs {
		duration := "-"
		if run.Finished() {
			duration = FormatDuration(run.Duration())
		}
		t.Row(
			shortID(run.ID),
			run.Task,
			run.Destination,
			string(run.Status),
			strconv.Itoa(run.Added),
			strconv.Itoa(run.Failed),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			duration,
		)
	}
	return t.String() + "\n"
}

// FormatDuration renders a duration as m:ss, or h:mm:ss past one hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func writeHeader(buf *bytes.Buffer, r *Report, em string) {
	run := r.Run
	if run == nil {
		return
	}
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(buf, "%s%s%s: %s\n", em, label, em, value)
		}
	}
	field("Run", run.ID)
	field("Task", run.Task)
	field("Destination", run.Destination)
	field("Status", string(run.Status))
	if run.Finished() {
		field("Duration", FormatDuration(run.Duration()))
	}
	field("Error", run.Error)
}

func writeList(buf *bytes.Buffer, tracks []models.Track) {
	for i, track := range tracks {
		fmt.Fprintf(buf, "%d. %s\n", i+1, track.String())
	}
}

func reportName(r *Report) string {
	if r.Run != nil && r.Run.ID != "" {
		return "report_" + shortID(r.Run.ID)
	}
	return fmt.Sprintf("report_%d", time.Now().Unix())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

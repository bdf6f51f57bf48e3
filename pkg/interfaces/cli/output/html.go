package output

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/dto"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTMLReport renders a generation run as a standalone HTML page
type HTMLReport struct {
	Title string

	// Now stamps the page; nil means time.Now
	Now func() time.Time
}

// reportRow is one quoted part with the assembly link it hangs from
type reportRow struct {
	partReport
	Link entities.Handle
}

// htmlTemplateData contains all data for rendering the HTML template
type htmlTemplateData struct {
	Title             string
	Report            generationReport
	Rows              []reportRow
	DurationFormatted string
	GeneratedAt       string
	DataJSON          template.JS
}

// NewHTMLReport creates a new HTML report generator
func NewHTMLReport() *HTMLReport {
	return &HTMLReport{
		Title: "RFQ Generation Report",
		Now:   time.Now,
	}
}

// Render writes the page for result to w
func (hr *HTMLReport) Render(w io.Writer, result *dto.GenerationResult) error {
	report := newGenerationReport(result)

	// Raw report for anyone scripting against the page
	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report data: %w", err)
	}

	links := make(map[entities.PartNumber]entities.Handle, len(report.Links))
	for _, l := range report.Links {
		links[l.PartNumber] = l.Link
	}
	rows := make([]reportRow, 0, len(report.Parts))
	for _, p := range report.Parts {
		rows = append(rows, reportRow{partReport: p, Link: links[p.PartNumber]})
	}

	now := hr.Now
	if now == nil {
		now = time.Now
	}
	data := htmlTemplateData{
		Title:             hr.Title,
		Report:            report,
		Rows:              rows,
		DurationFormatted: formatDuration(result.Duration),
		GeneratedAt:       now().Format("2006-01-02 15:04:05"),
		DataJSON:          template.JS(jsonData),
	}

	tmpl, err := template.ParseFS(templateFS, "templates/generation_report.html")
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}

// formatDuration formats a time duration into human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

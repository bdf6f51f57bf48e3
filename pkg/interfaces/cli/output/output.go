package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/dto"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/events"
)

// Format selects how reports are written
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatHTML:
		return Format(s), nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

type partReport struct {
	Key        entities.RecordKey  `json:"key"`
	PartNumber entities.PartNumber `json:"part_number"`
	Item       entities.Handle     `json:"item"`
	Quote      entities.Handle     `json:"quote"`
	Material   entities.Handle     `json:"material,omitempty"`
	HeatTreat  entities.Handle     `json:"heat_treat,omitempty"`
	Finish     entities.Handle     `json:"finish,omitempty"`
	Router     entities.Handle     `json:"router,omitempty"`
	BOMLines   int                 `json:"bom_lines"`
	Documents  int                 `json:"documents"`
}

type attachmentReport struct {
	Key      entities.RecordKey    `json:"key"`
	Kind     entities.HardwareKind `json:"kind"`
	Quote    entities.Handle       `json:"quote"`
	Item     entities.Handle       `json:"item"`
	Sequence int                   `json:"sequence"`
	Quantity entities.Quantity     `json:"quantity"`
}

type linkReport struct {
	PartNumber entities.PartNumber `json:"part_number"`
	Link       entities.Handle     `json:"link"`
}

type generationReport struct {
	RunID       string              `json:"run_id"`
	RFQ         entities.Handle     `json:"rfq"`
	Updated     bool                `json:"updated"`
	MainPart    entities.PartNumber `json:"main_part"`
	MainQuote   entities.Handle     `json:"main_quote"`
	LineItems   []entities.Handle   `json:"line_items"`
	Links       []linkReport        `json:"links"`
	Parts       []partReport        `json:"parts"`
	Attachments []attachmentReport  `json:"attachments"`
	BOMLines    int                 `json:"bom_lines"`
	Documents   int                 `json:"documents"`
	Attempts    int                 `json:"attempts"`
	DurationMS  int64               `json:"duration_ms"`
}

func newGenerationReport(r *dto.GenerationResult) generationReport {
	report := generationReport{
		RunID:       r.RunID,
		RFQ:         r.RFQ,
		Updated:     r.Updated,
		MainPart:    r.MainPart,
		MainQuote:   r.MainQuote,
		LineItems:   r.LineItems,
		Links:       make([]linkReport, 0, len(r.LinkOrder)),
		Parts:       make([]partReport, 0, len(r.Parts)),
		Attachments: make([]attachmentReport, 0, len(r.Attachments)),
		BOMLines:    r.BOMLineCount(),
		Documents:   r.Documents,
		Attempts:    r.Attempts,
		DurationMS:  r.Duration.Milliseconds(),
	}
	for _, pn := range r.LinkOrder {
		report.Links = append(report.Links, linkReport{PartNumber: pn, Link: r.Links[pn]})
	}
	for _, p := range r.Parts {
		report.Parts = append(report.Parts, partReport{
			Key:        p.Key,
			PartNumber: p.PartNumber,
			Item:       p.Item,
			Quote:      p.Quote,
			Material:   p.Operations.Material,
			HeatTreat:  p.Operations.HeatTreat,
			Finish:     p.Operations.Finish,
			Router:     p.Router,
			BOMLines:   p.BOMLines,
			Documents:  p.Documents,
		})
	}
	for _, a := range r.Attachments {
		report.Attachments = append(report.Attachments, attachmentReport(a))
	}
	return report
}

// WriteGeneration reports the records a generation run created
func WriteGeneration(w io.Writer, format Format, result *dto.GenerationResult) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, newGenerationReport(result))
	case FormatHTML:
		return NewHTMLReport().Render(w, result)
	}
	report := newGenerationReport(result)

	verb := "created"
	if report.Updated {
		verb = "updated"
	}
	fmt.Fprintf(w, "📊 RFQ %d %s\n", report.RFQ, verb)
	fmt.Fprintf(w, "======================\n\n")
	fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
	fmt.Fprintf(w, "Main Part: %s (quote %d)\n", report.MainPart, report.MainQuote)
	fmt.Fprintf(w, "Line Items: %d\n", len(report.LineItems))
	fmt.Fprintf(w, "Assembly Links: %d\n", len(report.Links))
	fmt.Fprintf(w, "BOM Lines: %d\n", report.BOMLines)
	fmt.Fprintf(w, "Documents: %d\n", report.Documents)
	fmt.Fprintf(w, "Attempts: %d\n", report.Attempts)
	fmt.Fprintf(w, "Duration: %dms\n\n", report.DurationMS)

	if len(report.Parts) > 0 {
		fmt.Fprintf(w, "📋 Quoted Parts:\n")
		fmt.Fprintf(w, "%-25s %-10s %-10s %-8s %-8s\n", "Part Number", "Item", "Quote", "BOM", "Router")
		fmt.Fprintf(w, "%-25s %-10s %-10s %-8s %-8s\n",
			"-------------------------", "----------", "----------", "--------", "--------")
		for _, p := range report.Parts {
			router := "-"
			if p.Router.Valid() {
				router = fmt.Sprint(p.Router)
			}
			fmt.Fprintf(w, "%-25s %-10d %-10d %-8d %-8s\n", p.Key, p.Item, p.Quote, p.BOMLines, router)
		}
		fmt.Fprintln(w)
	}

	if len(report.Attachments) > 0 {
		fmt.Fprintf(w, "🔩 Hardware and Tooling:\n")
		fmt.Fprintf(w, "%-25s %-10s %-10s %-8s %-8s\n", "Part Number", "Kind", "Quote", "Seq", "Qty")
		fmt.Fprintf(w, "%-25s %-10s %-10s %-8s %-8s\n",
			"-------------------------", "----------", "----------", "--------", "--------")
		for _, a := range report.Attachments {
			fmt.Fprintf(w, "%-25s %-10s %-10d %-8d %-8d\n", a.Key, a.Kind, a.Quote, a.Sequence, a.Quantity)
		}
		fmt.Fprintln(w)
	}
	return nil
}

type problemReport struct {
	Part   entities.PartNumber `json:"part,omitempty"`
	Reason string              `json:"reason"`
	Error  string              `json:"error"`
}

type validationReport struct {
	Rows            int                                           `json:"rows"`
	Valid           bool                                          `json:"valid"`
	MainParts       []entities.PartNumber                         `json:"main_parts"`
	DanglingParents map[entities.PartNumber][]entities.PartNumber `json:"dangling_parents,omitempty"`
	Cycles          [][]entities.PartNumber                       `json:"cycles,omitempty"`
	OutOfOrder      []entities.PartNumber                         `json:"out_of_order,omitempty"`
	ParentsFirst    []entities.RecordKey                          `json:"parents_first_order,omitempty"`
	Problems        []problemReport                               `json:"problems"`
}

func newValidationReport(records, reordered *entities.PartRecords, v *services.ValidationResult) validationReport {
	report := validationReport{
		Rows:            records.Len(),
		Valid:           v.Valid(),
		MainParts:       v.MainParts,
		DanglingParents: v.DanglingParents,
		Cycles:          v.CyclePaths,
		OutOfOrder:      v.OutOfOrder,
		Problems:        make([]problemReport, 0, len(v.Errors)),
	}
	for _, err := range v.Errors {
		p := problemReport{Error: err.Error()}
		var s *entities.StructuralDataError
		if errors.As(err, &s) {
			p.Part = s.Part
			p.Reason = s.Reason.Error()
		}
		report.Problems = append(report.Problems, p)
	}
	if reordered != nil {
		report.ParentsFirst = reordered.Keys()
	}
	return report
}

// WriteValidation reports the structural check of a parts sheet. reordered,
// when set, is the batch rearranged so every row follows its parent.
func WriteValidation(w io.Writer, format Format, records, reordered *entities.PartRecords, result *services.ValidationResult) error {
	report := newValidationReport(records, reordered, result)
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatHTML:
		return errHTMLUnsupported("validation")
	}

	fmt.Fprintf(w, "🔍 Parts Sheet Validation\n")
	fmt.Fprintf(w, "=========================\n\n")
	fmt.Fprintf(w, "Rows: %d\n", report.Rows)
	fmt.Fprintf(w, "Main Parts: %v\n", report.MainParts)

	if report.Valid {
		fmt.Fprintf(w, "\n✅ Sheet is valid\n")
		return nil
	}

	fmt.Fprintf(w, "\n⚠️  Problems (%d):\n", len(report.Problems))
	for _, p := range report.Problems {
		fmt.Fprintf(w, "  - %s\n", p.Error)
	}

	if len(report.DanglingParents) > 0 {
		parents := make([]entities.PartNumber, 0, len(report.DanglingParents))
		for parent := range report.DanglingParents {
			parents = append(parents, parent)
		}
		sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

		fmt.Fprintf(w, "\nMissing Parents:\n")
		for _, parent := range parents {
			fmt.Fprintf(w, "  %s <- %v\n", parent, report.DanglingParents[parent])
		}
	}

	if len(report.ParentsFirst) > 0 {
		fmt.Fprintf(w, "\nParents-First Order:\n")
		for i, key := range report.ParentsFirst {
			fmt.Fprintf(w, "  %3d. %s\n", i+1, key)
		}
	}
	return nil
}

type categorizedReport struct {
	Path      string `json:"path"`
	Group     int    `json:"group"`
	GroupName string `json:"group_name"`
}

// WriteCategorized reports the document group of every file
func WriteCategorized(w io.Writer, format Format, files []entities.CategorizedFile) error {
	reports := make([]categorizedReport, 0, len(files))
	for _, f := range files {
		reports = append(reports, categorizedReport{Path: f.Path, Group: int(f.Group), GroupName: f.Group.String()})
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, reports)
	case FormatHTML:
		return errHTMLUnsupported("categorize")
	}

	fmt.Fprintf(w, "%-15s %-6s %s\n", "Group", "ID", "Path")
	fmt.Fprintf(w, "%-15s %-6s %s\n", "---------------", "------", "----")
	for _, r := range reports {
		fmt.Fprintf(w, "%-15s %-6d %s\n", r.GroupName, r.Group, r.Path)
	}
	return nil
}

// WriteJournal lists the events of a run in append order. Events raised
// outside a transaction attempt show "-" as their attempt.
func WriteJournal(w io.Writer, journal []events.Event) error {
	fmt.Fprintf(w, "📜 Run Journal (%d events)\n", len(journal))
	fmt.Fprintf(w, "%-4s %-8s %-18s %s\n", "#", "Attempt", "Event", "Data")
	fmt.Fprintf(w, "%-4s %-8s %-18s %s\n", "----", "--------", "------------------", "----")
	for i, e := range journal {
		attempt := "-"
		if e.Attempt() > 0 {
			attempt = strconv.Itoa(e.Attempt())
		}
		data, err := json.Marshal(e.Data())
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", e.Type(), err)
		}
		fmt.Fprintf(w, "%-4d %-8s %-18s %s\n", i+1, attempt, e.Type(), data)
	}
	return nil
}

func errHTMLUnsupported(report string) error {
	return fmt.Errorf("html output is not available for the %s report", report)
}

func writeJSON(w io.Writer, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(jsonData)); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// Column headers of the requested-parts sheet
const (
	ColPart             = "Part"
	ColDescription      = "DESCRIPTION"
	ColPartLength       = "PartLength"
	ColThickness        = "Thickness"
	ColPartWidth        = "PartWidth"
	ColWeight           = "Weight"
	ColMaterial         = "Material"
	ColFinishCode       = "FinishCode"
	ColHeatTreat        = "HeatTreat"
	ColDrawingNumber    = "DrawingNumber"
	ColDrawingRevision  = "DrawingRevision"
	ColQuantityRequired = "QuantityRequired"
	ColPLRevision       = "PLRevision"
	ColAssyFor          = "AssyFor"
	ColHardwareTooling  = "Hardware/Tooling"
	ColStockLength      = "StockLength"
	ColStockWidth       = "StockWidth"
	ColStockThickness   = "StockThickness"
)

// RequiredColumns lists every header the sheet must carry, in sheet order
var RequiredColumns = []string{
	ColPart, ColDescription, ColPartLength, ColThickness, ColPartWidth, ColWeight,
	ColMaterial, ColFinishCode, ColHeatTreat, ColDrawingNumber, ColDrawingRevision,
	ColQuantityRequired, ColPLRevision, ColAssyFor, ColHardwareTooling,
	ColStockLength, ColStockWidth, ColStockThickness,
}

// FallbackPartPrefix names rows with an empty part number, "Tool-<row>"
const FallbackPartPrefix = "Tool-"

// RowError is a validation failure of one data row, numbered from 1
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %v", e.Row, e.Err)
}

// ValidationErrors collects every row that failed validation
type ValidationErrors []RowError

func (v ValidationErrors) Error() string {
	lines := make([]string, 0, len(v)+1)
	lines = append(lines, "data validation failed:")
	for _, e := range v {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// Loader reads the requested-parts sheet into an ordered batch of records
type Loader struct {
	validate *validator.Validate
	logger   *zap.Logger
}

// NewLoader creates a new spreadsheet loader
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		validate: validator.New(),
		logger:   logger.Named("spreadsheet"),
	}
}

// Load reads a .xlsx (first sheet) or .csv file
func (l *Loader) Load(filename string) (*entities.PartRecords, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(filename)
	case ".csv":
		rows, err = readCSV(filename)
	default:
		return nil, fmt.Errorf("unsupported parts sheet format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	records, err := l.LoadRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts sheet %s: %w", filename, err)
	}
	l.logger.Info("parts sheet loaded", zap.String("file", filename), zap.Int("records", records.Len()))
	return records, nil
}

// LoadRows normalizes a header row followed by data rows
func (l *Loader) LoadRows(rows [][]string) (*entities.PartRecords, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("parts sheet is empty")
	}

	index, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	records := entities.NewPartRecords(len(rows) - 1)
	var rowErrors ValidationErrors
	n := 0
	for _, raw := range rows[1:] {
		if blank(raw) {
			continue
		}
		n++

		rec, err := l.parseRow(n, raw, index)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: n, Err: err})
			continue
		}
		key := records.Add(rec)
		if key.IsDuplicate() {
			l.logger.Debug("duplicate part number", zap.String("part_number", string(rec.PartNumber)), zap.String("key", string(key)))
		}
	}

	if len(rowErrors) > 0 {
		return nil, rowErrors
	}
	if len(records.MainParts()) == 0 {
		return nil, &entities.StructuralDataError{
			Reason: entities.ErrNoMainPart,
			Detail: "check the " + ColAssyFor + " column",
		}
	}
	return records, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if _, ok := index[col]; !ok {
			index[col] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (l *Loader) parseRow(n int, raw []string, index map[string]int) (entities.PartRecord, error) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(raw) {
			return ""
		}
		return strings.TrimSpace(raw[i])
	}

	kind, err := entities.ParseHardwareKind(cell(ColHardwareTooling))
	if err != nil {
		return entities.PartRecord{}, err
	}

	pn := entities.PartNumber(cell(ColPart))
	if pn == "" {
		pn = entities.PartNumber(fmt.Sprintf("%s%d", FallbackPartPrefix, n))
	}

	rec := entities.PartRecord{
		PartNumber:         pn,
		Description:        cell(ColDescription),
		Length:             number(cell(ColPartLength)),
		Thickness:          number(cell(ColThickness)),
		Width:              number(cell(ColPartWidth)),
		Weight:             number(cell(ColWeight)),
		Material:           cell(ColMaterial),
		FinishCode:         cell(ColFinishCode),
		HeatTreat:          cell(ColHeatTreat),
		DrawingNumber:      cell(ColDrawingNumber),
		DrawingRevision:    cell(ColDrawingRevision),
		QuantityRequired:   quantity(cell(ColQuantityRequired)),
		PLRevision:         cell(ColPLRevision),
		AssyFor:            entities.PartNumber(cell(ColAssyFor)),
		HardwareOrSupplies: kind,
		StockLength:        number(cell(ColStockLength)),
		StockWidth:         number(cell(ColStockWidth)),
		StockThickness:     number(cell(ColStockThickness)),
	}
	if err := l.validate.Struct(rec); err != nil {
		return entities.PartRecord{}, err
	}
	return rec, nil
}

// number parses a numeric cell, coercing anything unparsable to zero
func number(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// quantity parses a quantity cell, dropping any fraction
func quantity(s string) entities.Quantity {
	return entities.Quantity(number(s).IntPart())
}

func readCSV(filename string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open parts file %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read parts CSV: %w", err)
	}
	return rows, nil
}

func readWorkbook(filename string) ([][]string, error) {
	f, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open parts workbook %s: %w", filename, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("parts workbook %s has no sheets", filename)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

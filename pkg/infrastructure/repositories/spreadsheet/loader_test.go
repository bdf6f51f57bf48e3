package spreadsheet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// sheetRow builds a data row from column -> value pairs
func sheetRow(values map[string]string) []string {
	row := make([]string, len(RequiredColumns))
	for i, col := range RequiredColumns {
		row[i] = values[col]
	}
	return row
}

func sheet(rows ...map[string]string) [][]string {
	out := [][]string{append([]string(nil), RequiredColumns...)}
	for _, r := range rows {
		out = append(out, sheetRow(r))
	}
	return out
}

func TestLoadRows_Normalizes(t *testing.T) {
	rows := sheet(
		map[string]string{
			ColPart: " MAIN-1 ", ColDescription: " Bracket assy ", ColPartLength: "12.5",
			ColThickness: "abc", ColQuantityRequired: "3", ColMaterial: "AL6061",
			ColFinishCode: "ANODIZE\nPASSIVATE", ColStockLength: "13",
		},
		map[string]string{ColPart: "SUB-1", ColAssyFor: "MAIN-1", ColQuantityRequired: "2.7"},
		map[string]string{ColPart: "BOLT", ColAssyFor: "MAIN-1", ColHardwareTooling: "hardware", ColQuantityRequired: "x"},
	)

	records, err := NewLoader(nil).LoadRows(rows)
	require.NoError(t, err)
	require.Equal(t, 3, records.Len())

	main, ok := records.Get("MAIN-1")
	require.True(t, ok)
	assert.Equal(t, "Bracket assy", main.Description)
	assert.True(t, decimal.RequireFromString("12.5").Equal(main.Length))
	assert.True(t, main.Thickness.IsZero(), "unparsable numbers coerce to zero")
	assert.Equal(t, entities.Quantity(3), main.QuantityRequired)
	assert.Equal(t, "ANODIZE\nPASSIVATE", main.FinishCode)
	assert.True(t, main.IsMainPart())

	sub, _ := records.Get("SUB-1")
	assert.Equal(t, entities.Quantity(2), sub.QuantityRequired)
	assert.Equal(t, entities.PartNumber("MAIN-1"), sub.AssyFor)

	bolt, _ := records.Get("BOLT")
	assert.Equal(t, entities.Hardware, bolt.HardwareOrSupplies)
	assert.Equal(t, entities.Quantity(0), bolt.QuantityRequired)
}

func TestLoadRows_DuplicatesAndFallbackNames(t *testing.T) {
	rows := sheet(
		map[string]string{ColPart: "MAIN"},
		map[string]string{ColPart: "A", ColAssyFor: "MAIN"},
		map[string]string{ColPart: "", ColAssyFor: "MAIN", ColHardwareTooling: "Tooling"},
		map[string]string{ColPart: "A", ColAssyFor: "MAIN"},
		map[string]string{ColPart: "A", ColAssyFor: "MAIN"},
	)

	records, err := NewLoader(nil).LoadRows(rows)
	require.NoError(t, err)

	expected := []entities.RecordKey{"MAIN", "A", "Tool-3", "A_____1", "A_____2"}
	assert.Equal(t, expected, records.Keys())

	tool, _ := records.Get("Tool-3")
	assert.Equal(t, entities.PartNumber("Tool-3"), tool.PartNumber)
}

func TestLoadRows_SkipsBlankRows(t *testing.T) {
	rows := sheet(map[string]string{ColPart: "MAIN"})
	rows = append(rows, []string{"", "  "}, nil)
	rows = append(rows, sheetRow(map[string]string{ColPart: "", ColAssyFor: "MAIN"}))

	records, err := NewLoader(nil).LoadRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []entities.RecordKey{"MAIN", "Tool-2"}, records.Keys())
}

func TestLoadRows_ShortRowsArePadded(t *testing.T) {
	rows := [][]string{
		append([]string(nil), RequiredColumns...),
		{"MAIN", "desc"},
	}
	records, err := NewLoader(nil).LoadRows(rows)
	require.NoError(t, err)

	main, _ := records.Get("MAIN")
	assert.Equal(t, "desc", main.Description)
	assert.True(t, main.StockThickness.IsZero())
}

func TestLoadRows_Errors(t *testing.T) {
	t.Run("empty sheet", func(t *testing.T) {
		_, err := NewLoader(nil).LoadRows(nil)
		assert.Error(t, err)
	})

	t.Run("missing columns", func(t *testing.T) {
		header := []string{ColPart, ColDescription, ColAssyFor}
		_, err := NewLoader(nil).LoadRows([][]string{header})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required columns")
		assert.Contains(t, err.Error(), ColHardwareTooling)
		assert.NotContains(t, err.Error(), ColDescription+",")
	})

	t.Run("row errors are collected", func(t *testing.T) {
		rows := sheet(
			map[string]string{ColPart: "MAIN"},
			map[string]string{ColPart: "A", ColAssyFor: "MAIN", ColHardwareTooling: "Consumable"},
			map[string]string{ColPart: "B", ColAssyFor: "MAIN", ColQuantityRequired: "-1"},
		)
		_, err := NewLoader(nil).LoadRows(rows)

		var rowErrs ValidationErrors
		require.True(t, errors.As(err, &rowErrs))
		require.Len(t, rowErrs, 2)
		assert.Equal(t, 2, rowErrs[0].Row)
		assert.Equal(t, 3, rowErrs[1].Row)
		assert.True(t, strings.HasPrefix(err.Error(), "data validation failed:\nRow 2:"))
	})

	t.Run("no main part", func(t *testing.T) {
		rows := sheet(map[string]string{ColPart: "A", ColAssyFor: "MAIN"})
		_, err := NewLoader(nil).LoadRows(rows)
		assert.ErrorIs(t, err, entities.ErrNoMainPart)
	})
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parts.csv")
	content := strings.Join(RequiredColumns, ",") + "\n" +
		"MAIN,Main part,1,2,3,4,,,,,,1,,,,,,\n" +
		"SUB,\"Sub, with comma\",,,,,,,,,,2,,MAIN,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, records.Len())

	sub, _ := records.Get("SUB")
	assert.Equal(t, "Sub, with comma", sub.Description)
	assert.Equal(t, entities.Quantity(2), sub.QuantityRequired)
}

func TestLoad_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parts.xlsx")

	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	for i, row := range sheet(
		map[string]string{ColPart: "MAIN", ColStockLength: "24.25", ColQuantityRequired: "1"},
		map[string]string{ColPart: "BOLT", ColAssyFor: "MAIN", ColHardwareTooling: "Hardware", ColQuantityRequired: "8"},
	) {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheetName, cellName, &cells))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	records, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, []entities.RecordKey{"MAIN", "BOLT"}, records.Keys())

	main, _ := records.Get("MAIN")
	assert.True(t, decimal.RequireFromString("24.25").Equal(main.StockLength))
	bolt, _ := records.Get("BOLT")
	assert.Equal(t, entities.Quantity(8), bolt.QuantityRequired)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := NewLoader(nil).Load("parts.json")
	assert.Error(t, err)
}

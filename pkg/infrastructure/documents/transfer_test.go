package documents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTransferAndCategorize(t *testing.T) {
	src := t.TempDir()
	files := []string{
		writeFile(t, src, "BR-100_dwg.pdf", "drawing"),
		writeFile(t, src, "BR-100.stp", "model"),
		writeFile(t, src, "notes.txt", "notes"),
	}
	dest := filepath.Join(t.TempDir(), "Acme", "BR-100")

	got, err := NewTransferer(nil).TransferAndCategorize(files, dest)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, filepath.Join(dest, "BR-100_dwg.pdf"), got[0].Path)
	assert.Equal(t, entities.DrawingDocuments, got[0].Group)
	assert.Equal(t, entities.StepModelDocuments, got[1].Group)
	assert.Equal(t, entities.Uncategorized, got[2].Group)

	data, err := os.ReadFile(got[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "model", string(data))
}

func TestTransferAndCategorize_MissingSource(t *testing.T) {
	_, err := NewTransferer(nil).TransferAndCategorize([]string{filepath.Join(t.TempDir(), "gone.pdf")}, t.TempDir())
	assert.Error(t, err)
}

func TestTransferAndCategorize_NoFiles(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "never")
	got, err := NewTransferer(nil).TransferAndCategorize(nil, dest)
	require.NoError(t, err)
	assert.Empty(t, got)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no folder is created for an empty list")
}

func TestLayout(t *testing.T) {
	l := Layout{PDMRoot: "/y/PDM", EstimatingRoot: "/y/Estimating", RestrictedDir: "Restricted", UnrestrictedDir: "Non-restricted"}

	partDir, err := l.PartDir(true, "Acme", "BR-100")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/y/PDM", "Restricted", "Acme", "BR-100"), partDir)
	estDir, err := l.EstimatingDir(false, "Acme", "RFQ-7")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/y/Estimating", "Non-restricted", "Acme", "RFQ-7"), estDir)

	assert.NoError(t, l.ValidateSources([]string{"/home/est/BR-100.pdf"}))
	assert.Error(t, l.ValidateSources([]string{"/home/est/BR-100.pdf", "/y/PDM/Non-restricted/Acme/x.pdf"}))
	assert.Error(t, l.ValidateSources([]string{`y:\Estimating\old.xlsx`}))
}

func TestLayout_RejectsUnsafeFolderNames(t *testing.T) {
	l := Layout{PDMRoot: "/y/PDM", EstimatingRoot: "/y/Estimating", RestrictedDir: "Restricted", UnrestrictedDir: "Non-restricted"}

	testCases := []struct {
		name     string
		customer string
		pn       entities.PartNumber
	}{
		{"parent part number", "Acme", "../../etc"},
		{"dot dot", "Acme", ".."},
		{"dot", "Acme", "."},
		{"slash in part number", "Acme", "BR/100"},
		{"backslash in part number", "Acme", `BR\100`},
		{"customer escapes root", "../Other", "BR-100"},
		{"blank customer", " ", "BR-100"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.PartDir(false, tc.customer, tc.pn)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsafeFolderName)
		})
	}

	_, err := l.EstimatingDir(true, "Acme/../..", "7")
	assert.ErrorIs(t, err, ErrUnsafeFolderName)
	_, err = l.PartDir(false, "Acme Corp.", "BR-100.A")
	assert.NoError(t, err, "dots inside a name are fine")
}

func TestMatchingPart(t *testing.T) {
	files := []entities.CategorizedFile{
		{Path: "/pdm/Acme/BR-100/BR-100_dwg.pdf"},
		{Path: "/pdm/Acme/BR-100/spec.pdf"},
		{Path: "/pdm/Acme/BR-100/BR-200.stp"},
	}
	assert.Len(t, MatchingPart(files, "BR-100"), 3, "the folder name carries the part number")
	assert.Len(t, MatchingPart(files, "BR-200"), 1)
	assert.Empty(t, MatchingPart(files, "BR-300"))
}

package generation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/dto"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/documents"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/events"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/metrics"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/repositories/memory"
)

const customer entities.Handle = 7

var (
	acmeAddress = entities.Address{Line1: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"}
	runDay      = time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
)

type harness struct {
	store   *memory.Store
	events  *events.InMemoryEventStore
	metrics *metrics.Recorder
	gen     *Generator
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	store := memory.NewStore(6, 8, 21, 22, 24)
	store.AddParty(customer, acmeAddress)

	opts := DefaultOptions()
	opts.Now = func() time.Time { return runDay }
	if mutate != nil {
		mutate(&opts)
	}

	h := &harness{
		store:   store,
		events:  events.NewInMemoryEventStore(zap.NewNop()),
		metrics: metrics.NewRecorder(),
	}
	gen, err := NewGenerator(store, h.events, h.metrics, zap.NewNop(), opts)
	require.NoError(t, err)
	h.gen = gen
	return h
}

func (h *harness) eventsOf(t *testing.T, runID, eventType string) []any {
	t.Helper()
	all, err := h.events.ReadRun(runID, 0)
	require.NoError(t, err)
	var out []any
	for _, e := range all {
		if e.Type() == eventType {
			out = append(out, e.Data())
		}
	}
	return out
}

func (h *harness) allEventsOf(t *testing.T, eventType string) []any {
	t.Helper()
	all, err := h.events.ReadAllEvents(0)
	require.NoError(t, err)
	var out []any
	for _, e := range all {
		if e.Type() == eventType {
			out = append(out, e.Data())
		}
	}
	return out
}

type row struct {
	pn        string
	assyFor   string
	kind      string
	material  string
	finish    string
	heatTreat string
	desc      string
	qty       entities.Quantity
}

func batch(t *testing.T, rows ...row) *entities.PartRecords {
	t.Helper()
	records := entities.NewPartRecords(len(rows))
	for _, r := range rows {
		records.Add(entities.PartRecord{
			PartNumber:         entities.PartNumber(r.pn),
			Description:        r.desc,
			AssyFor:            entities.PartNumber(r.assyFor),
			HardwareOrSupplies: entities.HardwareKind(r.kind),
			Material:           r.material,
			FinishCode:         r.finish,
			HeatTreat:          r.heatTreat,
			QuantityRequired:   r.qty,
			Length:             decimal.RequireFromString("10.5"),
			Width:              decimal.RequireFromString("2"),
			Thickness:          decimal.RequireFromString("0.25"),
			StockLength:        decimal.RequireFromString("12"),
			StockWidth:         decimal.RequireFromString("3"),
			StockThickness:     decimal.RequireFromString("0.5"),
			DrawingNumber:      "DWG-" + r.pn,
			DrawingRevision:    "B",
		})
	}
	return records
}

func request(records *entities.PartRecords) dto.GenerationRequest {
	return dto.GenerationRequest{
		Records:           records,
		Customer:          customer,
		CustomerName:      "Acme",
		CustomerRFQNumber: "RFQ-001",
	}
}

func bracketTree(t *testing.T) *entities.PartRecords {
	return batch(t,
		row{pn: "MAIN", material: "AL6061", finish: "ANODIZE\nPASSIVATE", heatTreat: "H900", desc: "Main bracket", qty: 2},
		row{pn: "A", assyFor: "MAIN", desc: "Arm", qty: 3},
		row{pn: "SCREW", assyFor: "MAIN", kind: "Hardware", desc: "10-32 SHCS", qty: 4},
		row{pn: "T-1", assyFor: "A", kind: "Tooling", desc: "Drill fixture", qty: 1},
	)
}

func TestGenerate_SingleLevelAssembly(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)

	require.True(t, result.RFQ.Valid())
	assert.False(t, result.Updated)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, entities.PartNumber("MAIN"), result.MainPart)

	rfqs := h.store.RFQs()
	require.Len(t, rfqs, 1)
	assert.Equal(t, customer, rfqs[0].RFQ.Customer)
	assert.Equal(t, acmeAddress, rfqs[0].RFQ.Address)
	assert.Equal(t, "RFQ-001", rfqs[0].RFQ.CustomerRFQNumber)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), rfqs[0].RFQ.CreateDate)

	lines := h.store.LineItems(result.RFQ)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Line.Sequence)
	assert.Equal(t, entities.Quantity(2), lines[0].Line.Quantity)
	assert.Equal(t, result.MainQuote, lines[0].Line.Quote)

	// Only manufactured rows get quotes
	require.Len(t, result.Parts, 2)
	assert.Len(t, h.store.Quotes(), 2)
	main, arm := result.Parts[0], result.Parts[1]
	assert.Equal(t, result.MainQuote, main.Quote)

	links := h.store.Links(main.Quote)
	require.Len(t, links, 1)
	assert.Equal(t, arm.Quote, links[0].ItemQuote)
	assert.Equal(t, entities.Quantity(3), links[0].Quantity)
	assert.Equal(t, []entities.PartNumber{"A"}, result.LinkOrder)

	mainBOM := h.store.BOMLines(main.Quote)
	require.Len(t, mainBOM, 4)
	for i, want := range []struct {
		item     entities.Handle
		sequence int
	}{
		{main.Operations.Material, 6},
		{main.Operations.HeatTreat, 21},
		{main.Operations.Finish, 22},
	} {
		assert.Equal(t, want.item, mainBOM[i].Item)
		assert.Equal(t, want.sequence, mainBOM[i].SequenceNumber)
		assert.Equal(t, i+1, mainBOM[i].OrderBy)
		assert.True(t, mainBOM[i].PartLength.Equal(decimal.RequireFromString("10.5")))
		assert.True(t, mainBOM[i].Thickness.Equal(decimal.RequireFromString("0.25")))
	}

	screw := mainBOM[3]
	assert.Equal(t, 24, screw.SequenceNumber)
	assert.Equal(t, 4, screw.OrderBy)
	assert.True(t, screw.QuantityRequired.Equal(decimal.NewFromInt(4)))
	hardware, ok := h.store.Item(screw.Item)
	require.True(t, ok)
	assert.Equal(t, entities.PartNumber("05-1"), hardware.Spec.PartNumber)
	assert.Equal(t, "10-32 SHCS", hardware.Spec.Description)

	armBOM := h.store.BOMLines(arm.Quote)
	require.Len(t, armBOM, 1)
	assert.Equal(t, 8, armBOM[0].SequenceNumber)
	assert.Equal(t, 5, armBOM[0].OrderBy)
	tooling, ok := h.store.Item(armBOM[0].Item)
	require.True(t, ok)
	assert.Equal(t, entities.PartNumber("T-1"), tooling.Spec.PartNumber)
	assert.Equal(t, entities.ItemTypeManufacturedTooling, tooling.Spec.Type)

	stored := 0
	for _, q := range h.store.Quotes() {
		stored += len(h.store.BOMLines(q.Handle))
	}
	assert.Equal(t, 5, stored)
	assert.Equal(t, stored, result.BOMLineCount())
	require.Len(t, result.Attachments, 2)
	assert.Equal(t, entities.Hardware, result.Attachments[0].Kind)
	assert.Equal(t, entities.Tooling, result.Attachments[1].Kind)
}

func TestGenerate_OperationItems(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)
	main := result.Parts[0]

	material, ok := h.store.ItemByPartNumber("AL6061")
	require.True(t, ok)
	assert.Equal(t, main.Operations.Material, material.Handle)
	assert.Equal(t, entities.ItemTypeMaterial, material.Spec.Type)
	require.NotNil(t, material.Details)
	assert.True(t, material.Details.Material)
	assert.Equal(t, " Dimensions (L x W x T): 12 x 3 x 0.5", material.Details.PurchaseOrderComment)

	ht, ok := h.store.ItemByPartNumber("MAIN - OP HT")
	require.True(t, ok)
	assert.Equal(t, "H900", ht.Spec.Description)
	assert.Equal(t, "Material: AL6061 \nH900", ht.Spec.Comment)
	require.NotNil(t, ht.Details)
	assert.Equal(t, "DWG-MAIN", ht.Details.DrawingNumber)

	fin, ok := h.store.ItemByPartNumber("MAIN - OP Finish")
	require.True(t, ok)
	assert.Empty(t, fin.Spec.Description)
	assert.Equal(t, "Material: AL6061 \nANODIZE\nPASSIVATE", fin.Spec.PurchaseOrderComment)

	part, ok := h.store.ItemByPartNumber("MAIN")
	require.True(t, ok)
	require.NotNil(t, part.Details)
	assert.Equal(t, entities.PartNumber("MAIN"), part.Details.VendorPartNumber)
	assert.Equal(t, "B", part.Details.DrawingRevision)

	// Rows without material, heat treat or finish get no operation items
	arm := result.Parts[1]
	assert.Equal(t, dto.OperationItems{}, arm.Operations)
	_, ok = h.store.ItemByPartNumber("A - OP Finish")
	assert.False(t, ok)
}

func TestGenerate_FinishRouter(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)

	routers := h.store.Routers()
	require.Len(t, routers, 1)
	assert.Equal(t, "MAIN - OP Finish", routers[0].Label)
	assert.Equal(t, result.Parts[0].Operations.Finish, routers[0].Item)
	assert.Equal(t, result.Parts[0].Router, routers[0].Handle)
	require.Len(t, routers[0].Steps, 2)

	for i, code := range []entities.PartNumber{"ANODIZE", "PASSIVATE"} {
		item, ok := h.store.ItemByPartNumber(code)
		require.True(t, ok)
		assert.Equal(t, item.Handle, routers[0].Steps[i].Item)
		assert.Equal(t, i+1, routers[0].Steps[i].Sequence)
	}
	assert.False(t, result.Parts[1].Router.Valid())
}

func TestGenerate_FormulaVariablesPerQuote(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)

	// The main quote carries its own five operations plus five copied under the link
	assert.Len(t, h.store.FormulaVariables(result.Parts[0].Quote), 20)
	assert.Len(t, h.store.FormulaVariables(result.Parts[1].Quote), 10)

	calls := h.store.CallsOf(memory.OpCreateFormulaVariables)
	require.Len(t, calls, 2)
	assert.Equal(t, result.Parts[0].Quote, calls[0].Handle)
	assert.Equal(t, result.Parts[1].Quote, calls[1].Handle)
}

func TestGenerate_NestedAssembly(t *testing.T) {
	h := newHarness(t, nil)
	records := batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "A", assyFor: "MAIN", qty: 2},
		row{pn: "B", assyFor: "A", qty: 5},
	)

	result, err := h.gen.Generate(context.Background(), request(records))
	require.NoError(t, err)
	assert.Equal(t, []entities.PartNumber{"A", "B"}, result.LinkOrder)

	links := h.store.Links(result.MainQuote)
	require.Len(t, links, 2)
	assert.False(t, links[0].ParentLink.Valid())
	assert.Equal(t, result.Links["A"], links[1].ParentLink)
	assert.Equal(t, result.Parts[1].Quote, links[1].ParentQuote)
	assert.Equal(t, result.Parts[2].Quote, links[1].ItemQuote)
}

func TestGenerate_OutOfOrderRows(t *testing.T) {
	rows := []row{
		{pn: "MAIN", qty: 1},
		{pn: "B", assyFor: "A", qty: 1},
		{pn: "A", assyFor: "MAIN", qty: 1},
	}

	t.Run("single pass rolls back", func(t *testing.T) {
		h := newHarness(t, nil)

		_, err := h.gen.Generate(context.Background(), request(batch(t, rows...)))

		var structural *entities.StructuralDataError
		require.ErrorAs(t, err, &structural)
		assert.ErrorIs(t, err, entities.ErrParentNotMaterialized)
		assert.Empty(t, h.store.RFQs())
		assert.Empty(t, h.store.Quotes())
		assert.Empty(t, h.store.Items())
	})

	t.Run("deferred resolves", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Mode = services.Deferred })

		result, err := h.gen.Generate(context.Background(), request(batch(t, rows...)))
		require.NoError(t, err)
		assert.Equal(t, []entities.PartNumber{"A", "B"}, result.LinkOrder)
	})
}

func TestGenerate_HardwareBeforeItsAssembly(t *testing.T) {
	h := newHarness(t, nil)
	records := batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "NUT", assyFor: "A", kind: "Hardware", desc: "Hex nut", qty: 6},
		row{pn: "A", assyFor: "MAIN", qty: 1},
	)

	result, err := h.gen.Generate(context.Background(), request(records))
	require.NoError(t, err)

	require.Len(t, result.Attachments, 1)
	assert.Equal(t, result.Parts[1].Quote, result.Attachments[0].Quote)
	assert.Len(t, h.store.BOMLines(result.Parts[1].Quote), 1)
}

func TestGenerate_HardwareReusedByDescription(t *testing.T) {
	h := newHarness(t, nil)
	records := batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "SCREW", assyFor: "MAIN", kind: "Hardware", desc: "10-32 SHCS", qty: 2},
		row{pn: "SCREW", assyFor: "MAIN", kind: "Hardware", desc: "10-32 SHCS", qty: 3},
		row{pn: "WASHER", assyFor: "MAIN", kind: "Hardware", desc: "#10 washer", qty: 2},
	)

	result, err := h.gen.Generate(context.Background(), request(records))
	require.NoError(t, err)

	require.Len(t, result.Attachments, 3)
	assert.Equal(t, entities.RecordKey("SCREW_____1"), result.Attachments[1].Key)
	assert.Equal(t, result.Attachments[0].Item, result.Attachments[1].Item)
	assert.NotEqual(t, result.Attachments[0].Item, result.Attachments[2].Item)

	washer, ok := h.store.Item(result.Attachments[2].Item)
	require.True(t, ok)
	assert.Equal(t, entities.PartNumber("05-2"), washer.Spec.PartNumber)
}

func TestGenerate_HardwareUnderHardwareFails(t *testing.T) {
	h := newHarness(t, nil)
	records := batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "KIT", assyFor: "MAIN", kind: "Hardware", desc: "Kit", qty: 1},
		row{pn: "PIN", assyFor: "KIT", kind: "Hardware", desc: "Pin", qty: 1},
	)

	_, err := h.gen.Generate(context.Background(), request(records))

	var lookup *entities.ExternalLookupFailure
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, entities.PartNumber("PIN"), lookup.Part)
	assert.Empty(t, h.store.RFQs())
}

func TestGenerate_ManufacturedTooling(t *testing.T) {
	h := newHarness(t, nil)
	records := batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "JIG", assyFor: "MAIN", kind: "Tooling - Manufactured", qty: 1},
	)

	result, err := h.gen.Generate(context.Background(), request(records))
	require.NoError(t, err)

	require.Len(t, result.Parts, 2)
	jig, ok := h.store.ItemByPartNumber("JIG")
	require.True(t, ok)
	assert.Equal(t, entities.ItemTypeManufacturedTooling, jig.Spec.Type)
	assert.True(t, jig.Spec.ManufacturedItem)
	// Tagged rows are never linked into the tree
	assert.Empty(t, result.Links)
}

func TestGenerate_ReusesItemsAcrossRuns(t *testing.T) {
	h := newHarness(t, nil)

	first, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)
	items := len(h.store.Items())

	second, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)

	assert.NotEqual(t, first.RFQ, second.RFQ)
	assert.Len(t, h.store.Items(), items)
	assert.Equal(t, first.Parts[0].Operations, second.Parts[0].Operations)
	assert.Len(t, h.store.Quotes(), 4, "quotes are created per run")
	assert.Len(t, h.store.Routers(), 2, "routers are created per run")
}

func TestGenerate_UpdateRFQ(t *testing.T) {
	h := newHarness(t, nil)

	first, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)
	h.store.ResetCalls()

	req := request(bracketTree(t))
	req.UpdateRFQ = first.RFQ
	second, err := h.gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Updated)
	assert.Equal(t, first.RFQ, second.RFQ)
	assert.Len(t, h.store.RFQs(), 1)
	assert.Empty(t, h.store.CallsOf(memory.OpCreateRFQ))
	assert.Empty(t, h.store.CallsOf(memory.OpGetPartyAddress))
	require.Len(t, h.store.CallsOf(memory.OpResetRFQ), 1)

	lines := h.store.LineItems(first.RFQ)
	require.Len(t, lines, 1)
	assert.Equal(t, second.MainQuote, lines[0].Line.Quote)
	assert.Empty(t, h.store.AssemblyRows(first.MainQuote), "the old main quote tree is cleared")

	assert.Len(t, h.eventsOf(t, second.RunID, events.RFQResetEvent), 1)
}

func TestGenerate_UpdateUnknownRFQ(t *testing.T) {
	h := newHarness(t, nil)
	req := request(bracketTree(t))
	req.UpdateRFQ = 999

	_, err := h.gen.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reset RFQ 999")
	assert.Empty(t, h.store.Quotes())
}

func TestGenerate_Documents(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	write := func(name string) string {
		p := filepath.Join(src, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		return p
	}

	layout := documents.Layout{
		PDMRoot:         filepath.Join(root, "pdm"),
		EstimatingRoot:  filepath.Join(root, "estimating"),
		RestrictedDir:   "Restricted",
		UnrestrictedDir: "Non-restricted",
	}
	h := newHarness(t, func(o *Options) { o.Layout = layout })

	req := request(batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "A", assyFor: "MAIN", qty: 1},
	))
	req.Restricted = true
	req.PartFiles = []string{write("MAIN_dwg.pdf"), write("notes.txt")}
	req.EstimationFiles = []string{write("quote.xlsx")}

	result, err := h.gen.Generate(context.Background(), req)
	require.NoError(t, err)

	estDir := filepath.Join(layout.EstimatingRoot, "Restricted", "Acme", fmt.Sprint(int64(result.RFQ)))
	assert.FileExists(t, filepath.Join(estDir, "quote.xlsx"))
	for _, pn := range []string{"MAIN", "A"} {
		assert.FileExists(t, filepath.Join(layout.PDMRoot, "Restricted", "Acme", pn, "MAIN_dwg.pdf"))
		assert.FileExists(t, filepath.Join(layout.PDMRoot, "Restricted", "Acme", pn, "notes.txt"))
	}

	docs := h.store.Documents()
	require.Len(t, docs, 5)
	assert.Equal(t, result.RFQ, docs[0].RFQ)
	assert.Equal(t, entities.EstimationDocument, docs[0].DocumentType)
	for _, d := range docs {
		assert.True(t, d.Secure)
	}

	var mainDocs []entities.DocumentUpload
	for _, d := range docs[1:] {
		assert.Equal(t, entities.ItemDocument, d.DocumentType)
		if d.Item == result.Parts[0].Item {
			mainDocs = append(mainDocs, d)
		}
	}
	require.Len(t, mainDocs, 2)
	assert.Equal(t, entities.DrawingDocuments, mainDocs[0].Group)
	assert.Equal(t, entities.Uncategorized, mainDocs[1].Group)

	assert.Equal(t, 5, result.Documents)
	assert.Equal(t, 2, result.Parts[0].Documents)
	assert.Len(t, h.eventsOf(t, result.RunID, events.DocumentStoredEvent), 5)
}

func TestGenerate_PartNumbersCannotLeaveDocumentRoot(t *testing.T) {
	root := t.TempDir()
	drawing := filepath.Join(root, "escape_dwg.pdf")
	require.NoError(t, os.WriteFile(drawing, []byte("x"), 0o644))
	layout := documents.Layout{
		PDMRoot:         filepath.Join(root, "pdm"),
		EstimatingRoot:  filepath.Join(root, "estimating"),
		RestrictedDir:   "Restricted",
		UnrestrictedDir: "Non-restricted",
	}
	h := newHarness(t, func(o *Options) { o.Layout = layout })

	req := request(batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "../../escape", assyFor: "MAIN", qty: 1},
	))
	req.PartFiles = []string{drawing}

	_, err := h.gen.Generate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, documents.ErrUnsafeFolderName)
	assert.Empty(t, h.store.RFQs())
	assert.NoDirExists(t, filepath.Join(layout.PDMRoot, "escape"))
	assert.NoDirExists(t, filepath.Join(root, "escape"))

	// Without files to file, part numbers are never used as folder names
	req.PartFiles = nil
	req.Records = batch(t,
		row{pn: "MAIN", qty: 1},
		row{pn: "1/4-20 SPACER", assyFor: "MAIN", qty: 1},
	)
	_, err = h.gen.Generate(context.Background(), req)
	require.NoError(t, err)
}

func TestGenerate_RejectsManagedSourceFiles(t *testing.T) {
	h := newHarness(t, nil)
	req := request(bracketTree(t))
	req.PartFiles = []string{"/mnt/y/PDM/Restricted/Acme/MAIN/MAIN_dwg.pdf"}

	_, err := h.gen.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be uploaded")
	assert.Empty(t, h.store.Calls())
}

func TestGenerate_RejectsInvalidRequests(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*dto.GenerationRequest)
		target error
	}{
		{
			name:   "no records",
			mutate: func(r *dto.GenerationRequest) { r.Records = entities.NewPartRecords(0) },
		},
		{
			name:   "missing customer",
			mutate: func(r *dto.GenerationRequest) { r.Customer = entities.NoHandle },
		},
		{
			name:   "missing customer name",
			mutate: func(r *dto.GenerationRequest) { r.CustomerName = "" },
		},
		{
			name: "two main parts",
			mutate: func(r *dto.GenerationRequest) {
				r.Records = batch(t, row{pn: "MAIN", qty: 1}, row{pn: "OTHER", qty: 1})
			},
			target: entities.ErrMultipleMainParts,
		},
		{
			name: "dangling parent",
			mutate: func(r *dto.GenerationRequest) {
				r.Records = batch(t, row{pn: "MAIN", qty: 1}, row{pn: "A", assyFor: "GHOST", qty: 1})
			},
			target: entities.ErrDanglingParent,
		},
		{
			name: "cycle",
			mutate: func(r *dto.GenerationRequest) {
				r.Records = batch(t,
					row{pn: "MAIN", qty: 1},
					row{pn: "A", assyFor: "B", qty: 1},
					row{pn: "B", assyFor: "A", qty: 1},
				)
			},
			target: entities.ErrAssemblyCycle,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			req := request(bracketTree(t))
			tc.mutate(&req)

			_, err := h.gen.Generate(context.Background(), req)
			require.Error(t, err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
			assert.Empty(t, h.store.Calls())
		})
	}
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	var retried []int
	h := newHarness(t, func(o *Options) {
		o.Retry = RetryPolicy{
			MaxAttempts: 3,
			Backoff:     time.Millisecond,
			OnRetry:     func(attempt int, _ error) { retried = append(retried, attempt) },
		}
	})
	h.store.FailTimes(memory.OpCreateQuote, 1, fmt.Errorf("%w: connection reset", entities.ErrTransient))

	result, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []int{1}, retried)
	assert.Len(t, h.store.RFQs(), 1, "the failed attempt was rolled back")
	assert.Len(t, h.store.Quotes(), 2)
	assert.Len(t, h.store.CallsOf(memory.OpCreateRFQ), 2)
	assert.Len(t, h.eventsOf(t, result.RunID, events.RetryScheduledEvent), 1)

	journal, err := h.events.ReadRun(result.RunID, 0)
	require.NoError(t, err)
	attemptsQuoted := map[int]int{}
	for _, e := range journal {
		assert.Equal(t, result.RunID, e.RunID())
		switch e.Type() {
		case events.RunStartedEvent, events.RunCompletedEvent:
			assert.Zero(t, e.Attempt(), e.Type())
		case events.RetryScheduledEvent:
			assert.Equal(t, 1, e.Attempt())
		case events.PartQuotedEvent:
			attemptsQuoted[e.Attempt()]++
		}
	}
	assert.Zero(t, attemptsQuoted[1], "the first attempt failed on its first quote")
	assert.Equal(t, 2, attemptsQuoted[2])
	retries, err := testutil.GatherAndCount(h.metrics.Registry(), "rfqgen_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, retries)
}

func TestGenerate_PermanentFailure(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Retry = RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
	})
	boom := errors.New("disk full")
	h.store.FailOn(memory.OpCreateBOMLine, boom)

	_, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.ErrorIs(t, err, boom)

	assert.Len(t, h.store.CallsOf(memory.OpCreateRFQ), 1, "permanent errors are not retried")
	assert.Empty(t, h.store.RFQs())
	assert.Empty(t, h.store.Items())

	failed := h.allEventsOf(t, events.RunFailedEvent)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].(events.RunFailed).Error, "disk full")
}

func TestGenerate_ProgressEvents(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)

	var percents []int
	for _, data := range h.eventsOf(t, result.RunID, events.RunProgressEvent) {
		percents = append(percents, data.(events.RunProgress).Percent)
	}
	assert.Equal(t, []int{20, 40, 60, 100}, percents)

	started := h.eventsOf(t, result.RunID, events.RunStartedEvent)
	require.Len(t, started, 1)
	assert.Equal(t, 4, started[0].(events.RunStarted).Records)

	completed := h.eventsOf(t, result.RunID, events.RunCompletedEvent)
	require.Len(t, completed, 1)
	assert.Equal(t, events.RunCompleted{RFQ: result.RFQ, LineItems: 1, Links: 1}, completed[0])

	assert.Len(t, h.eventsOf(t, result.RunID, events.PartQuotedEvent), 2)
	assert.Len(t, h.eventsOf(t, result.RunID, events.BOMAttachedEvent), 5)
	assert.Len(t, h.eventsOf(t, result.RunID, events.AssemblyBuiltEvent), 1)
}

func TestGenerate_RecordsMetrics(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)

	runs, err := testutil.GatherAndCount(h.metrics.Registry(), "rfqgen_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, runs)

	// quote, rfq_line_item, assembly_link, bom_line, router; no documents
	kinds, err := testutil.GatherAndCount(h.metrics.Registry(), "rfqgen_records_created_total")
	require.NoError(t, err)
	assert.Equal(t, 5, kinds)
}

func TestNewGenerator_Errors(t *testing.T) {
	_, err := NewGenerator(nil, nil, nil, nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.Operations.Finish = 0
	_, err = NewGenerator(memory.NewStore(), nil, nil, nil, opts)
	assert.Error(t, err)
}

func TestGenerate_WithoutEventsOrMetrics(t *testing.T) {
	store := memory.NewStore(6, 8, 21, 22, 24)
	store.AddParty(customer, acmeAddress)
	gen, err := NewGenerator(store, nil, nil, nil, DefaultOptions())
	require.NoError(t, err)

	result, err := gen.Generate(context.Background(), request(bracketTree(t)))
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
}

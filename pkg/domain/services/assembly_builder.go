package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// AssemblyWriter is the part of the gateway the assembly builder writes through
type AssemblyWriter interface {
	CreateRFQLineItem(ctx context.Context, line entities.RFQLineItem) (entities.Handle, error)
	CreateAssemblyLink(ctx context.Context, link entities.AssemblyLink) (entities.Handle, error)
}

// ResolveMode selects how rows whose parent has not been linked yet are handled
type ResolveMode int

const (
	// SinglePass walks rows once in input order and fails on the first row
	// whose parent link does not exist yet
	SinglePass ResolveMode = iota
	// Deferred links the main part first, then retries unresolved rows until
	// no further progress is made
	Deferred
)

// String method for ResolveMode enum
func (m ResolveMode) String() string {
	switch m {
	case SinglePass:
		return "single-pass"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// ParseResolveMode parses the String form of a ResolveMode
func ParseResolveMode(s string) (ResolveMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single-pass":
		return SinglePass, nil
	case "deferred":
		return Deferred, nil
	default:
		return SinglePass, fmt.Errorf("unknown resolve mode %q", s)
	}
}

// BuildRequest is the input of one assembly build
type BuildRequest struct {
	RFQ     entities.Handle
	Quotes  entities.HandleTable
	Items   entities.HandleTable
	Records *entities.PartRecords

	// LineItemStart is the first RFQ line sequence; zero means 1
	LineItemStart int
}

// AssemblyResult describes what a build created
type AssemblyResult struct {
	MainPart      entities.PartNumber
	MainQuote     entities.Handle
	LineItems     []entities.Handle
	Links         map[entities.PartNumber]entities.Handle
	LinkOrder     []entities.PartNumber
	Skipped       []entities.RecordKey
	NextLineIndex int
}

// AssemblyBuilder turns an ordered batch of rows into the RFQ line item of the
// main part and the assembly links of every manufactured sub-assembly
type AssemblyBuilder struct {
	writer AssemblyWriter
	mode   ResolveMode
	logger *zap.Logger
}

// NewAssemblyBuilder creates a builder writing through writer
func NewAssemblyBuilder(writer AssemblyWriter, mode ResolveMode, logger *zap.Logger) *AssemblyBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssemblyBuilder{
		writer: writer,
		mode:   mode,
		logger: logger.Named("assembly"),
	}
}

// buildState is the running context of one Build call
type buildState struct {
	req       BuildRequest
	result    *AssemblyResult
	mainPart  entities.PartNumber
	mainQuote entities.Handle
	hasMain   bool
	nextIndex int
}

// Build issues the creation calls for req. On error the calls already made are
// not undone; run it inside a gateway transaction.
func (b *AssemblyBuilder) Build(ctx context.Context, req BuildRequest) (*AssemblyResult, error) {
	if req.Records == nil {
		return nil, fmt.Errorf("build request has no records")
	}
	if req.LineItemStart <= 0 {
		req.LineItemStart = 1
	}

	if err := checkMainPart(req.Records); err != nil {
		return nil, err
	}

	state := &buildState{
		req:       req,
		nextIndex: req.LineItemStart,
		result: &AssemblyResult{
			Links: make(map[entities.PartNumber]entities.Handle),
		},
	}

	b.logger.Info("starting RFQ line item and assembly creation",
		zap.Int64("rfq", int64(req.RFQ)),
		zap.Int("rows", req.Records.Len()),
		zap.Stringer("mode", b.mode))

	var err error
	switch b.mode {
	case Deferred:
		err = b.buildDeferred(ctx, state)
	default:
		err = b.buildSinglePass(ctx, state)
	}
	if err != nil {
		return nil, err
	}

	state.result.MainPart = state.mainPart
	state.result.MainQuote = state.mainQuote
	state.result.NextLineIndex = state.nextIndex
	return state.result, nil
}

// checkMainPart enforces exactly one root row before anything is written
func checkMainPart(records *entities.PartRecords) error {
	mains := records.MainParts()
	switch len(mains) {
	case 1:
		return nil
	case 0:
		return &entities.StructuralDataError{Reason: entities.ErrNoMainPart, Detail: "check the assy_for column"}
	default:
		names := make([]string, 0, len(mains))
		for _, m := range mains {
			names = append(names, string(m.PartNumber()))
		}
		return &entities.StructuralDataError{
			Reason: entities.ErrMultipleMainParts,
			Detail: strings.Join(names, ", "),
		}
	}
}

func (b *AssemblyBuilder) buildSinglePass(ctx context.Context, state *buildState) error {
	for _, entry := range state.req.Records.Entries() {
		if err := b.processEntry(ctx, state, entry); err != nil {
			return err
		}
	}
	return nil
}

func (b *AssemblyBuilder) buildDeferred(ctx context.Context, state *buildState) error {
	var pending []entities.RecordEntry
	for _, entry := range state.req.Records.Entries() {
		if !entry.Record.IsMainPart() {
			pending = append(pending, entry)
			continue
		}
		if err := b.processEntry(ctx, state, entry); err != nil {
			return err
		}
	}

	for len(pending) > 0 {
		var unresolved []entities.RecordEntry
		for _, entry := range pending {
			err := b.processEntry(ctx, state, entry)
			if errors.Is(err, entities.ErrParentNotMaterialized) {
				unresolved = append(unresolved, entry)
				continue
			}
			if err != nil {
				return err
			}
		}

		if len(unresolved) == len(pending) {
			names := make([]string, 0, len(unresolved))
			for _, e := range unresolved {
				names = append(names, fmt.Sprintf("%s->%s", e.PartNumber(), e.Record.AssyFor))
			}
			return &entities.StructuralDataError{
				Part:   unresolved[0].PartNumber(),
				Reason: entities.ErrParentNotMaterialized,
				Detail: "unresolved after fixpoint: " + strings.Join(names, ", "),
			}
		}
		b.logger.Debug("deferred pass complete",
			zap.Int("resolved", len(pending)-len(unresolved)),
			zap.Int("remaining", len(unresolved)))
		pending = unresolved
	}
	return nil
}

func (b *AssemblyBuilder) processEntry(ctx context.Context, state *buildState, entry entities.RecordEntry) error {
	pn := entry.PartNumber()
	rec := entry.Record

	switch {
	case rec.IsMainPart():
		return b.createLineItem(ctx, state, pn, rec)
	case rec.HardwareOrSupplies.Tagged():
		state.result.Skipped = append(state.result.Skipped, entry.Key)
		return nil
	}

	if !state.hasMain {
		return &entities.StructuralDataError{
			Part:   pn,
			Reason: entities.ErrNoMainPart,
			Detail: "sub-assembly row precedes the main part",
		}
	}

	if rec.AssyFor == state.mainPart {
		return b.linkUnderMain(ctx, state, pn, rec)
	}
	return b.linkNested(ctx, state, pn, rec)
}

func (b *AssemblyBuilder) createLineItem(ctx context.Context, state *buildState, pn entities.PartNumber, rec entities.PartRecord) error {
	if state.hasMain {
		return &entities.StructuralDataError{Part: pn, Reason: entities.ErrMultipleMainParts}
	}

	quote, ok := state.req.Quotes.Lookup(pn)
	if !ok {
		return &entities.ExternalLookupFailure{Operation: "create RFQ line item (quote)", Part: pn}
	}
	item, ok := state.req.Items.Lookup(pn)
	if !ok {
		return &entities.ExternalLookupFailure{Operation: "create RFQ line item (item)", Part: pn}
	}

	b.logger.Info("creating RFQ line item", zap.String("part_number", string(pn)), zap.Int("sequence", state.nextIndex))
	line, err := b.writer.CreateRFQLineItem(ctx, entities.RFQLineItem{
		RFQ:      state.req.RFQ,
		Item:     item,
		Quote:    quote,
		Sequence: state.nextIndex,
		Quantity: rec.QuantityRequired,
	})
	if err != nil {
		return fmt.Errorf("failed to create RFQ line item for %s: %w", pn, err)
	}

	state.nextIndex++
	state.mainPart = pn
	state.mainQuote = quote
	state.hasMain = true
	state.result.LineItems = append(state.result.LineItems, line)
	b.logger.Info("line item created", zap.String("part_number", string(pn)), zap.Int64("quote_handle", int64(quote)))
	return nil
}

func (b *AssemblyBuilder) linkUnderMain(ctx context.Context, state *buildState, pn entities.PartNumber, rec entities.PartRecord) error {
	child, ok := state.req.Quotes.Lookup(pn)
	if !ok {
		return &entities.ExternalLookupFailure{Operation: "create assembly link", Part: pn}
	}

	link, err := entities.NewAssemblyLink(state.mainQuote, child, rec.QuantityRequired, entities.NoHandle, entities.NoHandle)
	if err != nil {
		return fmt.Errorf("invalid assembly link for %s: %w", pn, err)
	}
	return b.createLink(ctx, state, pn, rec, *link)
}

func (b *AssemblyBuilder) linkNested(ctx context.Context, state *buildState, pn entities.PartNumber, rec entities.PartRecord) error {
	parentLink, ok := state.result.Links[rec.AssyFor]
	if !ok {
		return &entities.StructuralDataError{
			Part:   pn,
			Reason: entities.ErrParentNotMaterialized,
			Detail: fmt.Sprintf("parent %s", rec.AssyFor),
		}
	}

	parentQuote, ok := state.req.Quotes.Lookup(rec.AssyFor)
	if !ok {
		return &entities.ExternalLookupFailure{Operation: "create nested assembly link (parent quote)", Part: rec.AssyFor}
	}
	child, ok := state.req.Quotes.Lookup(pn)
	if !ok {
		return &entities.ExternalLookupFailure{Operation: "create nested assembly link", Part: pn}
	}

	link, err := entities.NewAssemblyLink(state.mainQuote, child, rec.QuantityRequired, parentQuote, parentLink)
	if err != nil {
		return fmt.Errorf("invalid assembly link for %s: %w", pn, err)
	}
	return b.createLink(ctx, state, pn, rec, *link)
}

func (b *AssemblyBuilder) createLink(
	ctx context.Context,
	state *buildState,
	pn entities.PartNumber,
	rec entities.PartRecord,
	link entities.AssemblyLink,
) error {
	b.logger.Info("creating assembly link",
		zap.String("part_number", string(pn)),
		zap.String("assy_for", string(rec.AssyFor)),
		zap.Bool("nested", link.Nested()))

	handle, err := b.writer.CreateAssemblyLink(ctx, link)
	if err != nil {
		return fmt.Errorf("failed to create assembly link for %s: %w", pn, err)
	}
	if !handle.Valid() {
		return &entities.ExternalLookupFailure{Operation: "create assembly link", Part: pn}
	}

	state.result.Links[pn] = handle
	state.result.LinkOrder = append(state.result.LinkOrder, pn)
	b.logger.Debug("assembly link created", zap.String("part_number", string(pn)), zap.Int64("link_handle", int64(handle)))
	return nil
}

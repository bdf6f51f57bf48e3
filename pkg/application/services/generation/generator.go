// Package generation runs the full RFQ generation flow against a gateway
// transaction: per-part items and quotes, their bills of material, finish
// routers and documents, then the assembly tree of the main part.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/dto"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/repositories"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/documents"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/events"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/logging"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/metrics"
)

// Progress stages reported through RunProgress events.
const (
	StageOperationItems = "operation items"
	StageAssembly       = "assembly"
	StageFormulas       = "formula variables"
	StageDone           = "done"
)

// Options tune a Generator
type Options struct {
	QuoteType     int
	Division      int
	Operations    entities.OperationSequences
	LineItemStart int
	Mode          services.ResolveMode
	Layout        documents.Layout
	Retry         RetryPolicy

	// Now stamps the RFQ create date; nil means time.Now
	Now func() time.Time
}

// DefaultOptions returns options for the stock quote template
func DefaultOptions() Options {
	return Options{
		Division:      1,
		Operations:    entities.DefaultOperationSequences(),
		LineItemStart: 1,
		Mode:          services.SinglePass,
		Retry:         NoRetry,
	}
}

// Generator creates or updates one RFQ per Generate call
type Generator struct {
	tx       repositories.Transactor
	transfer *documents.Transferer
	events   events.EventStore
	metrics  *metrics.Recorder
	records  *services.RecordValidator
	validate *validator.Validate
	opts     Options
	logger   *zap.Logger
}

// NewGenerator creates a generator writing through tx. eventStore and
// recorder may be nil.
func NewGenerator(
	tx repositories.Transactor,
	eventStore events.EventStore,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	opts Options,
) (*Generator, error) {
	if tx == nil {
		return nil, fmt.Errorf("generator needs a transactor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	if err := v.Struct(opts.Operations); err != nil {
		return nil, fmt.Errorf("invalid operation sequences: %w", err)
	}
	if opts.LineItemStart <= 0 {
		opts.LineItemStart = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Generator{
		tx:       tx,
		transfer: documents.NewTransferer(logger),
		events:   eventStore,
		metrics:  recorder,
		records:  services.NewRecordValidator(),
		validate: v,
		opts:     opts,
		logger:   logger.Named("generator"),
	}, nil
}

// Generate runs one generation. Nothing is committed unless every step
// succeeds; transient gateway failures re-run the whole transaction as the
// retry policy allows.
func (g *Generator) Generate(ctx context.Context, req dto.GenerationRequest) (*dto.GenerationResult, error) {
	if err := g.check(req); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := logging.WithRun(g.logger, runID)
	start := time.Now()

	g.emit(runID, 0, events.RunStartedEvent, events.RunStarted{
		Records: req.Records.Len(),
		Update:  req.Update(),
		RFQ:     req.UpdateRFQ,
	})
	logger.Info("starting generation",
		zap.Int("rows", req.Records.Len()),
		zap.Bool("update", req.Update()),
		zap.Stringer("mode", g.opts.Mode))

	policy := g.opts.Retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		logger.Warn("transient failure, retrying generation", zap.Int("attempt", attempt), zap.Error(err))
		g.metrics.RecordRetry()
		g.emit(runID, attempt, events.RetryScheduledEvent, events.RetryScheduled{Attempt: attempt, Error: err.Error()})
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	var result *dto.GenerationResult
	attempt := 0
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		r := newRun(g, runID, attempt, req, logger)
		if err := g.tx.WithinTx(ctx, r.execute); err != nil {
			return err
		}
		result = r.result
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		logger.Error("generation failed", zap.Int("attempts", attempts), zap.Error(err))
		g.metrics.RecordRun(g.opts.Mode.String(), "failed", duration)
		g.emit(runID, 0, events.RunFailedEvent, events.RunFailed{Error: err.Error()})
		return nil, err
	}

	result.Attempts = attempts
	result.Duration = duration
	g.recordCreated(result)
	g.metrics.RecordRun(g.opts.Mode.String(), "succeeded", duration)
	g.emit(runID, 0, events.RunProgressEvent, events.RunProgress{Percent: 100, Stage: StageDone})
	g.emit(runID, 0, events.RunCompletedEvent, events.RunCompleted{
		RFQ:       result.RFQ,
		LineItems: len(result.LineItems),
		Links:     len(result.Links),
	})
	logger.Info("generation complete",
		zap.Int64("rfq", int64(result.RFQ)),
		zap.Int("parts", len(result.Parts)),
		zap.Int("links", len(result.Links)),
		zap.Duration("duration", duration))
	return result, nil
}

// check rejects requests that would fail before anything is written. Parent
// ordering is left to the assembly builder, which knows the resolve mode.
func (g *Generator) check(req dto.GenerationRequest) error {
	if req.Records == nil || req.Records.Len() == 0 {
		return fmt.Errorf("generation request has no records")
	}
	if err := g.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid generation request: %w", err)
	}

	var errs []error
	for _, err := range g.records.ValidateRecords(req.Records).Errors {
		if !errors.Is(err, entities.ErrParentNotMaterialized) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	files := append(append([]string(nil), req.PartFiles...), req.EstimationFiles...)
	return g.opts.Layout.ValidateSources(files)
}

func (g *Generator) emit(runID string, attempt int, eventType string, data any) {
	if g.events == nil {
		return
	}
	if err := g.events.AppendEvent(events.NewRunEvent(eventType, runID, attempt, data)); err != nil {
		g.logger.Warn("failed to append event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (g *Generator) recordCreated(result *dto.GenerationResult) {
	routers := 0
	for _, p := range result.Parts {
		if p.Router.Valid() {
			routers++
		}
	}
	g.metrics.RecordCreated(metrics.KindQuote, len(result.Parts))
	g.metrics.RecordCreated(metrics.KindLineItem, len(result.LineItems))
	g.metrics.RecordCreated(metrics.KindLink, len(result.Links))
	g.metrics.RecordCreated(metrics.KindBOMLine, result.BOMLineCount())
	g.metrics.RecordCreated(metrics.KindRouter, routers)
	g.metrics.RecordCreated(metrics.KindDocument, result.Documents)
}

// run is the state of one transaction attempt
type run struct {
	g       *Generator
	id      string
	attempt int
	req     dto.GenerationRequest
	gw      repositories.Gateway
	logger  *zap.Logger
	result  *dto.GenerationResult

	quotes     entities.HandleTable
	items      entities.HandleTable
	quoteOrder []entities.Handle
	orderBy    int
}

func newRun(g *Generator, id string, attempt int, req dto.GenerationRequest, logger *zap.Logger) *run {
	return &run{
		g:       g,
		id:      id,
		attempt: attempt,
		req:     req,
		logger:  logger,
		quotes:  make(entities.HandleTable),
		items:   make(entities.HandleTable),
		orderBy: 1,
		result: &dto.GenerationResult{
			RunID:   id,
			Updated: req.Update(),
		},
	}
}

func (r *run) execute(ctx context.Context, gw repositories.Gateway) error {
	r.gw = gw

	if err := r.openRFQ(ctx); err != nil {
		return err
	}

	entries := r.req.Records.Entries()
	ops := make(map[entities.RecordKey]dto.OperationItems, len(entries))
	for _, e := range entries {
		if !e.Record.HardwareOrSupplies.Manufactured() {
			continue
		}
		items, err := r.operationItems(ctx, e)
		if err != nil {
			return err
		}
		ops[e.Key] = items
	}
	r.progress(20, StageOperationItems)

	if err := r.uploadEstimationFiles(ctx); err != nil {
		return err
	}

	for _, e := range entries {
		if e.Record.HardwareOrSupplies.Manufactured() {
			if err := r.quotePart(ctx, e, ops[e.Key]); err != nil {
				return err
			}
		}
	}
	for _, e := range entries {
		if !e.Record.HardwareOrSupplies.Manufactured() {
			if err := r.attachToAssembly(ctx, e); err != nil {
				return err
			}
		}
	}
	r.progress(40, StageAssembly)

	builder := services.NewAssemblyBuilder(gw, r.g.opts.Mode, r.logger)
	asm, err := builder.Build(ctx, services.BuildRequest{
		RFQ:           r.result.RFQ,
		Quotes:        r.quotes,
		Items:         r.items,
		Records:       r.req.Records,
		LineItemStart: r.g.opts.LineItemStart,
	})
	if err != nil {
		return err
	}
	r.result.MainPart = asm.MainPart
	r.result.MainQuote = asm.MainQuote
	r.result.LineItems = asm.LineItems
	r.result.Links = asm.Links
	r.result.LinkOrder = asm.LinkOrder
	r.event(events.AssemblyBuiltEvent, events.AssemblyBuilt{
		LineItems: len(asm.LineItems),
		Links:     len(asm.Links),
		Skipped:   len(asm.Skipped),
	})
	r.progress(60, StageFormulas)

	for _, quote := range r.quoteOrder {
		if err := gw.CreateFormulaVariables(ctx, quote); err != nil {
			return fmt.Errorf("failed to create formula variables for quote %d: %w", quote, err)
		}
	}
	return nil
}

func (r *run) event(eventType string, data any) {
	r.g.emit(r.id, r.attempt, eventType, data)
}

func (r *run) progress(percent int, stage string) {
	r.event(events.RunProgressEvent, events.RunProgress{Percent: percent, Stage: stage})
}

// openRFQ resets the RFQ being updated or creates a new header
func (r *run) openRFQ(ctx context.Context) error {
	if r.req.Update() {
		if err := r.gw.ResetRFQ(ctx, r.req.UpdateRFQ); err != nil {
			return fmt.Errorf("failed to reset RFQ %d: %w", r.req.UpdateRFQ, err)
		}
		r.result.RFQ = r.req.UpdateRFQ
		r.logger.Info("RFQ reset for update", zap.Int64("rfq", int64(r.req.UpdateRFQ)))
		r.event(events.RFQResetEvent, events.RFQReset{RFQ: r.req.UpdateRFQ})
		return nil
	}

	address, err := r.gw.GetPartyAddress(ctx, r.req.Customer)
	if err != nil {
		return fmt.Errorf("failed to get customer address: %w", err)
	}
	created := r.g.opts.Now()
	created = time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, created.Location())

	rfq, err := entities.NewRFQ(r.req.Customer, r.req.Buyer, r.req.CustomerRFQNumber, address,
		r.req.InquiryDate, r.req.DueDate, created)
	if err != nil {
		return fmt.Errorf("invalid RFQ header: %w", err)
	}
	handle, err := r.gw.CreateRFQ(ctx, *rfq)
	if err != nil {
		return fmt.Errorf("failed to create RFQ: %w", err)
	}
	if !handle.Valid() {
		return &entities.ExternalLookupFailure{Operation: "create RFQ"}
	}
	r.result.RFQ = handle
	r.logger.Info("RFQ created", zap.Int64("rfq", int64(handle)))
	return nil
}

// operationComment prefixes an outside-process instruction with the material
func operationComment(material, instruction string) string {
	if material == "" {
		return instruction
	}
	return fmt.Sprintf("Material: %s \n%s", material, instruction)
}

// operationItems gets or creates the material, heat treat and finish items of
// a manufactured row
func (r *run) operationItems(ctx context.Context, e entities.RecordEntry) (dto.OperationItems, error) {
	var ops dto.OperationItems
	rec := e.Record
	pn := e.PartNumber()

	if rec.Material != "" {
		material := entities.PartNumber(rec.Material)
		h, err := r.gw.FindMaterialItem(ctx, material, rec.StockLength, rec.StockWidth, rec.StockThickness)
		if err != nil {
			return ops, fmt.Errorf("failed to look up material %s for %s: %w", material, pn, err)
		}
		if !h.Valid() {
			if h, err = r.getOrCreateItem(ctx, entities.NewMaterialItem(material)); err != nil {
				return ops, err
			}
		}
		ops.Material = h
	}

	if rec.HeatTreat != "" {
		desc, cut := entities.Truncate(rec.HeatTreat, entities.MaxItemDescriptionLength)
		if cut {
			r.logger.Warn("heat treat description truncated to ERP limits", zap.String("part_number", string(pn)))
		}
		spec := entities.NewOperationItem(HeatTreatPartNumber(pn), desc, operationComment(rec.Material, rec.HeatTreat))
		h, err := r.getOrCreateItem(ctx, spec)
		if err != nil {
			return ops, err
		}
		ops.HeatTreat = h
	}

	if rec.FinishCode != "" {
		spec := entities.NewOperationItem(FinishPartNumber(pn), "", operationComment(rec.Material, rec.FinishCode))
		h, err := r.getOrCreateItem(ctx, spec)
		if err != nil {
			return ops, err
		}
		ops.Finish = h
	}
	return ops, nil
}

// FinishPartNumber names the outside-process finish item of a part
func FinishPartNumber(pn entities.PartNumber) entities.PartNumber {
	return pn + " - OP Finish"
}

// HeatTreatPartNumber names the outside-process heat treat item of a part
func HeatTreatPartNumber(pn entities.PartNumber) entities.PartNumber {
	return pn + " - OP HT"
}

func (r *run) getOrCreateItem(ctx context.Context, spec entities.ItemSpec) (entities.Handle, error) {
	h, err := r.gw.GetOrCreateItem(ctx, spec)
	if err != nil {
		return entities.NoHandle, fmt.Errorf("failed to get or create item %s: %w", spec.PartNumber, err)
	}
	if !h.Valid() {
		return entities.NoHandle, &entities.ExternalLookupFailure{Operation: "get or create item", Part: spec.PartNumber}
	}
	return h, nil
}

func (r *run) uploadEstimationFiles(ctx context.Context) error {
	if len(r.req.EstimationFiles) == 0 {
		return nil
	}
	dir, err := r.g.opts.Layout.EstimatingDir(r.req.Restricted, r.req.CustomerName, strconv.FormatInt(int64(r.result.RFQ), 10))
	if err != nil {
		return fmt.Errorf("failed to locate estimation folder: %w", err)
	}
	files, err := r.g.transfer.TransferAndCategorize(r.req.EstimationFiles, dir)
	if err != nil {
		return fmt.Errorf("failed to transfer estimation files: %w", err)
	}
	for _, f := range files {
		doc := entities.DocumentUpload{
			Path:         f.Path,
			RFQ:          r.result.RFQ,
			DocumentType: entities.EstimationDocument,
			Secure:       r.req.Restricted,
			Group:        f.Group,
		}
		if err := r.upload(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) upload(ctx context.Context, doc entities.DocumentUpload) error {
	if err := r.gw.UploadDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to upload document %s: %w", doc.Path, err)
	}
	r.result.Documents++
	r.event(events.DocumentStoredEvent, events.DocumentStored{
		Path:  doc.Path,
		Group: doc.Group,
		RFQ:   doc.RFQ,
		Item:  doc.Item,
	})
	return nil
}

// transferPartFiles copies every selected file into the folder of pn, which
// repeated rows share, and returns the copies whose path names pn
func (r *run) transferPartFiles(pn entities.PartNumber) ([]entities.CategorizedFile, error) {
	if len(r.req.PartFiles) == 0 {
		return nil, nil
	}
	dir, err := r.g.opts.Layout.PartDir(r.req.Restricted, r.req.CustomerName, pn)
	if err != nil {
		return nil, fmt.Errorf("failed to locate folder of %s: %w", pn, err)
	}
	copied, err := r.g.transfer.TransferAndCategorize(r.req.PartFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer files of %s: %w", pn, err)
	}
	return documents.MatchingPart(copied, pn), nil
}

// quotePart creates the item, quote and bill of material of a manufactured row
func (r *run) quotePart(ctx context.Context, e entities.RecordEntry, ops dto.OperationItems) error {
	rec := e.Record
	pn := e.PartNumber()
	outcome := dto.PartOutcome{Key: e.Key, PartNumber: pn, Operations: ops}

	files, err := r.transferPartFiles(pn)
	if err != nil {
		return err
	}

	item, err := r.getOrCreateItem(ctx, entities.NewPartItem(pn, rec.Description, rec.HardwareOrSupplies))
	if err != nil {
		return err
	}
	outcome.Item = item
	r.items[pn] = item

	for _, f := range files {
		doc := entities.DocumentUpload{
			Path:         f.Path,
			Item:         item,
			DocumentType: entities.ItemDocument,
			Secure:       r.req.Restricted,
			Group:        f.Group,
		}
		if err := r.upload(ctx, doc); err != nil {
			return err
		}
		outcome.Documents++
	}

	quote, err := r.gw.CreateQuote(ctx, entities.Quote{
		Customer:   r.req.Customer,
		Item:       item,
		QuoteType:  r.g.opts.QuoteType,
		PartNumber: pn,
		Division:   r.g.opts.Division,
	})
	if err != nil {
		return fmt.Errorf("failed to create quote for %s: %w", pn, err)
	}
	if !quote.Valid() {
		return &entities.ExternalLookupFailure{Operation: "create quote", Part: pn}
	}
	outcome.Quote = quote
	r.quotes[pn] = quote
	r.quoteOrder = append(r.quoteOrder, quote)

	if err := r.gw.CopyTemplateOperations(ctx, quote); err != nil {
		return fmt.Errorf("failed to copy template operations to quote for %s: %w", pn, err)
	}

	seqs := r.g.opts.Operations
	for _, op := range []struct {
		item     entities.Handle
		sequence int
	}{
		{ops.Material, seqs.Material},
		{ops.HeatTreat, seqs.HeatTreat},
		{ops.Finish, seqs.Finish},
	} {
		if !op.item.Valid() {
			continue
		}
		line, err := r.bomLine(ctx, pn, quote, op.item, op.sequence)
		if err != nil {
			return err
		}
		if err := r.gw.CreateBOMLine(ctx, line.WithDimensions(rec)); err != nil {
			return fmt.Errorf("failed to create BOM line at sequence %d for %s: %w", op.sequence, pn, err)
		}
		outcome.BOMLines++
		r.event(events.BOMAttachedEvent, events.BOMAttached{Key: e.Key, Quote: quote, Item: op.item, Sequence: op.sequence})
	}

	if ops.Finish.Valid() {
		router, err := services.NewFinishRouterBuilder(r.gw, r.logger).
			AttachFinishes(ctx, rec.FinishCode, ops.Finish, string(FinishPartNumber(pn)))
		if err != nil {
			return err
		}
		outcome.Router = router.Router
	}

	if err := r.updateDetails(ctx, pn, rec, ops, item); err != nil {
		return err
	}

	r.result.Parts = append(r.result.Parts, outcome)
	r.event(events.PartQuotedEvent, events.PartQuoted{Key: e.Key, Item: item, Quote: quote})
	r.logger.Info("part quoted",
		zap.String("part_number", string(pn)),
		zap.Int64("quote_handle", int64(quote)),
		zap.Int("bom_lines", outcome.BOMLines))
	return nil
}

// bomLine finds the operation row at sequence and starts a line under it
func (r *run) bomLine(ctx context.Context, pn entities.PartNumber, quote, item entities.Handle, sequence int) (*entities.BOMLine, error) {
	op, err := r.gw.FindOperation(ctx, quote, sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to find operation %d on quote for %s: %w", sequence, pn, err)
	}
	if !op.Valid() {
		return nil, &entities.ExternalLookupFailure{
			Operation: fmt.Sprintf("find operation %d", sequence),
			Part:      pn,
		}
	}
	line, err := entities.NewBOMLine(quote, item, op, sequence, r.orderBy)
	if err != nil {
		return nil, fmt.Errorf("invalid BOM line for %s: %w", pn, err)
	}
	r.orderBy++
	return line, nil
}

func (r *run) updateDetails(ctx context.Context, pn entities.PartNumber, rec entities.PartRecord, ops dto.OperationItems, item entities.Handle) error {
	standard := entities.NewItemDetails(rec, pn, false)
	for _, h := range []entities.Handle{item, ops.HeatTreat, ops.Finish} {
		if !h.Valid() {
			continue
		}
		if err := r.gw.UpdateItemDetails(ctx, h, standard); err != nil {
			return fmt.Errorf("failed to update item details for %s: %w", pn, err)
		}
	}
	if ops.Material.Valid() {
		if err := r.gw.UpdateItemDetails(ctx, ops.Material, entities.NewItemDetails(rec, pn, true)); err != nil {
			return fmt.Errorf("failed to update material details for %s: %w", pn, err)
		}
	}
	return nil
}

// attachToAssembly places a hardware or tooling row on the bill of material
// of its assembly's quote
func (r *run) attachToAssembly(ctx context.Context, e entities.RecordEntry) error {
	rec := e.Record
	pn := e.PartNumber()

	parent, ok := r.quotes.Lookup(rec.AssyFor)
	if !ok {
		return &entities.ExternalLookupFailure{Operation: "attach " + string(rec.HardwareOrSupplies), Part: pn}
	}

	var (
		item     entities.Handle
		sequence int
		err      error
	)
	switch rec.HardwareOrSupplies {
	case entities.Hardware:
		sequence = r.g.opts.Operations.Hardware
		item, err = r.gw.GetOrCreateHardware(ctx, rec.Description)
		if err != nil {
			return fmt.Errorf("failed to get or create hardware for %s: %w", pn, err)
		}
		if !item.Valid() {
			return &entities.ExternalLookupFailure{Operation: "get or create hardware", Part: pn}
		}
	case entities.Tooling:
		sequence = r.g.opts.Operations.Tooling
		if item, err = r.getOrCreateItem(ctx, entities.NewToolingItem(pn, rec.Description)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("row %s is not a hardware or tooling line", e.Key)
	}

	line, err := r.bomLine(ctx, pn, parent, item, sequence)
	if err != nil {
		return err
	}
	if err := r.gw.CreateBOMLine(ctx, line.WithQuantity(rec.QuantityRequired)); err != nil {
		return fmt.Errorf("failed to attach %s to %s: %w", pn, rec.AssyFor, err)
	}

	r.result.Attachments = append(r.result.Attachments, dto.BOMAttachment{
		Key:      e.Key,
		Kind:     rec.HardwareOrSupplies,
		Quote:    parent,
		Item:     item,
		Sequence: sequence,
		Quantity: rec.QuantityRequired,
	})
	r.event(events.BOMAttachedEvent, events.BOMAttached{
		Key:      e.Key,
		Kind:     rec.HardwareOrSupplies,
		Quote:    parent,
		Item:     item,
		Sequence: sequence,
	})
	r.logger.Debug("attached to assembly",
		zap.String("part_number", string(pn)),
		zap.String("assy_for", string(rec.AssyFor)),
		zap.Int("sequence", sequence))
	return nil
}

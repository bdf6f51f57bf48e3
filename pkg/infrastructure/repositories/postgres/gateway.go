package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
)

// gateway issues the generator's statements against one querier
type gateway struct {
	q             querier
	logger        *zap.Logger
	templateQuote entities.Handle
}

// insertReturning runs an INSERT ... RETURNING <pk> statement
func (g *gateway) insertReturning(ctx context.Context, op, sql string, args ...any) (entities.Handle, error) {
	var pk int64
	if err := g.q.QueryRow(ctx, sql, args...).Scan(&pk); err != nil {
		return entities.NoHandle, classify(op, err)
	}
	if pk <= 0 {
		return entities.NoHandle, &entities.ExternalLookupFailure{Operation: op}
	}
	return entities.Handle(pk), nil
}

// lookup runs a single-column SELECT and maps no rows to NoHandle
func (g *gateway) lookup(ctx context.Context, op, sql string, args ...any) (entities.Handle, error) {
	var pk int64
	err := g.q.QueryRow(ctx, sql, args...).Scan(&pk)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.NoHandle, nil
	}
	if err != nil {
		return entities.NoHandle, classify(op, err)
	}
	return entities.Handle(pk), nil
}

const insertItemSQL = `
	INSERT INTO item (
		item_inventory_fk, part_number, description, comment, purchase_order_comment, item_type_fk,
		purchase, service_item, manufactured_item, inventoriable, only_create, bulk_ship, ship_loose,
		mps_item, forecast_on_mrp, mps_on_mrp,
		certifications_required_by_supplier, can_not_create_work_order, can_not_invoice,
		purchase_general_ledger_account_fk, sales_cogs_account_fk, calculation_type_fk
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	RETURNING item_pk`

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func (g *gateway) insertItem(ctx context.Context, spec entities.ItemSpec) (entities.Handle, error) {
	inventory, err := g.insertReturning(ctx, "create item inventory",
		`INSERT INTO item_inventory (quantity_on_hand) VALUES (0) RETURNING item_inventory_pk`)
	if err != nil {
		return entities.NoHandle, err
	}

	h, err := g.insertReturning(ctx, "create item "+string(spec.PartNumber), insertItemSQL,
		int64(inventory), string(spec.PartNumber), spec.Description, spec.Comment, spec.PurchaseOrderComment,
		nullableInt(int(spec.Type)),
		spec.Purchase, spec.ServiceItem, spec.ManufacturedItem, spec.Inventoriable, spec.OnlyCreate,
		spec.BulkShip, spec.ShipLoose, spec.MPSItem, spec.ForecastOnMRP, spec.MPSOnMRP,
		spec.CertificationsRequiredBySupplier, spec.CanNotCreateWorkOrder, spec.CanNotInvoice,
		nullableInt(spec.PurchaseAccount), nullableInt(spec.SalesCogsAccount), nullableInt(spec.CalculationType))
	if err != nil {
		return entities.NoHandle, err
	}
	g.logger.Info("inserted item", zap.String("part_number", string(spec.PartNumber)), zap.Int64("item", int64(h)))
	return h, nil
}

func (g *gateway) GetOrCreateItem(ctx context.Context, spec entities.ItemSpec) (entities.Handle, error) {
	if err := spec.Validate(); err != nil {
		return entities.NoHandle, fmt.Errorf("invalid item %s: %w", spec.PartNumber, err)
	}

	h, err := g.lookup(ctx, "look up item", `SELECT item_pk FROM item WHERE part_number = $1 ORDER BY item_pk LIMIT 1`,
		string(spec.PartNumber))
	if err != nil || h.Valid() {
		if h.Valid() {
			g.logger.Debug("item found", zap.String("part_number", string(spec.PartNumber)), zap.Int64("item", int64(h)))
		}
		return h, err
	}
	return g.insertItem(ctx, spec)
}

func (g *gateway) FindMaterialItem(
	ctx context.Context,
	partNumber entities.PartNumber,
	stockLength, stockWidth, thickness decimal.Decimal,
) (entities.Handle, error) {
	return g.lookup(ctx, "look up material item", `
		SELECT item_pk FROM item
		WHERE part_number = $1 AND stock_length = $2 AND stock_width = $3 AND thickness = $4
		ORDER BY item_pk LIMIT 1`,
		string(partNumber), stockLength, stockWidth, thickness)
}

func (g *gateway) UpdateItemDetails(ctx context.Context, item entities.Handle, d entities.ItemDetails) error {
	var err error
	if d.Material {
		_, err = g.q.Exec(ctx, `
			UPDATE item SET
				stock_length = $2, thickness = $3, stock_width = $4, weight = $5, part_length = $6, part_width = $7,
				purchase_order_comment = $8, manufactured_item = FALSE, purchase = TRUE, ship_loose = FALSE, bulk_ship = FALSE
			WHERE item_pk = $1`,
			int64(item), d.StockLength, d.Thickness, d.StockWidth, d.Weight, d.PartLength, d.PartWidth,
			d.PurchaseOrderComment)
	} else {
		_, err = g.q.Exec(ctx, `
			UPDATE item SET
				stock_length = $2, thickness = $3, stock_width = $4, weight = $5, part_length = $6, part_width = $7,
				drawing_number = $8, drawing_revision = $9, revision = $10, vendor_part_number = $11
			WHERE item_pk = $1`,
			int64(item), d.StockLength, d.Thickness, d.StockWidth, d.Weight, d.PartLength, d.PartWidth,
			d.DrawingNumber, d.DrawingRevision, d.Revision, string(d.VendorPartNumber))
	}
	return classify("update item details", err)
}

func (g *gateway) GetOrCreateHardware(ctx context.Context, description string) (entities.Handle, error) {
	seq := services.NewHardwareSequence()
	h, err := g.lookup(ctx, "look up hardware", `
		SELECT item_pk FROM item WHERE description = $1 AND part_number LIKE $2 ORDER BY item_pk LIMIT 1`,
		description, seq.Prefix()+"%")
	if err != nil || h.Valid() {
		return h, err
	}

	rows, err := g.q.Query(ctx, `SELECT part_number FROM item WHERE part_number LIKE $1`, seq.Prefix()+"%")
	if err != nil {
		return entities.NoHandle, classify("list hardware part numbers", err)
	}
	existing, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entities.PartNumber, error) {
		var pn string
		err := row.Scan(&pn)
		return entities.PartNumber(pn), err
	})
	if err != nil {
		return entities.NoHandle, classify("scan hardware part numbers", err)
	}

	return g.insertItem(ctx, entities.NewHardwareItem(seq.Next(existing), description))
}

func (g *gateway) CreateQuote(ctx context.Context, quote entities.Quote) (entities.Handle, error) {
	return g.insertReturning(ctx, "create quote", `
		INSERT INTO quote (customer_fk, item_fk, quote_type, part_number, division_fk)
		VALUES ($1, $2, $3, $4, $5) RETURNING quote_pk`,
		int64(quote.Customer), int64(quote.Item), quote.QuoteType, string(quote.PartNumber), quote.Division)
}

// templateColumns are copied from the template quote's operation rows
const templateColumns = `sequence_number, order_by, operation_fk, description, setup_formula_fk, run_formula_fk,
	setup_time, run_time, unit_of_measure_set_fk, calculation_type_fk`

func (g *gateway) CopyTemplateOperations(ctx context.Context, quote entities.Handle) error {
	tag, err := g.q.Exec(ctx, `
		INSERT INTO quote_assembly (`+templateColumns+`, quote_fk)
		SELECT `+templateColumns+`, $1::bigint
		FROM quote_assembly
		WHERE quote_fk = $2 AND parent_quote_assembly_fk IS NULL AND operation_fk IS NOT NULL
		ORDER BY quote_assembly_pk`,
		int64(quote), int64(g.templateQuote))
	if err != nil {
		return classify("copy template operations", err)
	}
	g.logger.Info("copied template operations",
		zap.Int64("template_quote", int64(g.templateQuote)),
		zap.Int64("quote_handle", int64(quote)),
		zap.Int64("rows", tag.RowsAffected()))
	return nil
}

func (g *gateway) FindOperation(ctx context.Context, quote entities.Handle, sequence int) (entities.Handle, error) {
	return g.lookup(ctx, "look up quote operation", `
		SELECT quote_assembly_pk FROM quote_assembly
		WHERE quote_fk = $1 AND sequence_number = $2 AND operation_fk IS NOT NULL AND parent_quote_assembly_fk IS NULL
		ORDER BY quote_assembly_pk LIMIT 1`,
		int64(quote), sequence)
}

func (g *gateway) CreateAssemblyLink(ctx context.Context, link entities.AssemblyLink) (entities.Handle, error) {
	h, err := g.insertReturning(ctx, "create assembly link", `
		INSERT INTO quote_assembly
			(quote_fk, item_quote_fk, sequence_number, pull, lock, order_by, quantity_required, parent_quote_fk, parent_quote_assembly_fk)
		VALUES ($1, $2, 1, FALSE, FALSE, 1, $3, $4, $5)
		RETURNING quote_assembly_pk`,
		int64(link.Quote), int64(link.ChildQuote), int64(link.Quantity), nullable(link.ParentQuote), nullable(link.ParentLink))
	if err != nil {
		return entities.NoHandle, err
	}

	// the linked quote's operations are repeated under the link row
	if _, err := g.q.Exec(ctx, `
		INSERT INTO quote_assembly (`+templateColumns+`, quote_fk, parent_quote_fk, parent_quote_assembly_fk)
		SELECT `+templateColumns+`, $1::bigint, $2::bigint, $3::bigint
		FROM quote_assembly
		WHERE quote_fk = $4 AND parent_quote_assembly_fk IS NULL AND operation_fk IS NOT NULL
		ORDER BY quote_assembly_pk`,
		int64(link.Quote), int64(link.ChildQuote), int64(h), int64(g.templateQuote)); err != nil {
		return entities.NoHandle, classify("copy template operations under link", err)
	}
	return h, nil
}

func (g *gateway) CreateFormulaVariables(ctx context.Context, quote entities.Handle) error {
	_, err := g.q.Exec(ctx, `
		INSERT INTO quote_assembly_formula_variable
			(quote_assembly_fk, operation_formula_variable_fk, formula_type, variable_value)
		SELECT quote_assembly_pk, setup_formula_fk, 0, setup_time
		FROM quote_assembly
		WHERE quote_fk = $1 AND operation_fk IS NOT NULL
		UNION ALL
		SELECT quote_assembly_pk, run_formula_fk, 1, run_time
		FROM quote_assembly
		WHERE quote_fk = $1 AND operation_fk IS NOT NULL`,
		int64(quote))
	return classify("create formula variables", err)
}

func (g *gateway) CreateBOMLine(ctx context.Context, l entities.BOMLine) error {
	_, err := g.q.Exec(ctx, `
		INSERT INTO quote_assembly (
			quote_fk, item_fk, quote_assembly_seq_number_fk, sequence_number, order_by,
			unit_of_measure_set_fk, calculation_type_fk, stock_pieces,
			tool, stop_sequence, unattended_operation, do_not_use_delivery_schedule, grain_direction,
			against_grain, double_sided, certifications_required, non_amortized_item, pull,
			not_include_in_piece_price, lock, nestable, bulk_ship, ship_loose, customer_supplied_material,
			vendor_unit, parts_per_blank, setup_time, scrap_rebate, part_width, part_length, thickness,
			parts_required, quantity_required, minimum_piece_price, parts_per_blank_scrap_percentage,
			markup_percentage1, piece_weight, custom_piece_weight, piece_cost, piece_price,
			stock_pieces_scrap_percentage
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38,
			$39, $40, $41
		)`,
		int64(l.Quote), int64(l.Item), nullable(l.QuoteAssembly), l.SequenceNumber, l.OrderBy,
		l.UnitOfMeasureSet, l.CalculationType, l.StockPieces,
		l.Tool, l.StopSequence, l.UnattendedOperation, l.DoNotUseDeliverySchedule, l.GrainDirection,
		l.AgainstGrain, l.DoubleSided, l.CertificationsRequired, l.NonAmortizedItem, l.Pull,
		l.NotIncludeInPiecePrice, l.Lock, l.Nestable, l.BulkShip, l.ShipLoose, l.CustomerSuppliedMaterial,
		l.VendorUnit, l.PartsPerBlank, l.SetupTime, l.ScrapRebate, l.PartWidth, l.PartLength, l.Thickness,
		l.PartsRequired, l.QuantityRequired, l.MinimumPiecePrice, l.PartsPerBlankScrapPercentage,
		l.MarkupPercentage, l.PieceWeight, l.CustomPieceWeight, l.PieceCost, l.PiecePrice,
		l.StockPiecesScrapPercentage)
	return classify("create BOM line", err)
}

func (g *gateway) CreateRouter(ctx context.Context, item entities.Handle, label string) (entities.Handle, error) {
	return g.insertReturning(ctx, "create router",
		`INSERT INTO router (item_fk, part_number) VALUES ($1, $2) RETURNING router_pk`,
		int64(item), label)
}

func (g *gateway) AttachRouterStep(ctx context.Context, step entities.RouterStep) error {
	_, err := g.q.Exec(ctx,
		`INSERT INTO router_work_center (router_fk, item_fk, sequence_number) VALUES ($1, $2, $3)`,
		int64(step.Router), int64(step.Item), step.Sequence)
	return classify("attach router step", err)
}

func (g *gateway) CreateRFQ(ctx context.Context, rfq entities.RFQ) (entities.Handle, error) {
	a := rfq.Address
	return g.insertReturning(ctx, "create RFQ", `
		INSERT INTO request_for_quote (
			customer_fk, buyer_fk, customer_rfq_number,
			address1, address2, city, state, zip_code, country,
			inquiry_date, due_date, create_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING request_for_quote_pk`,
		int64(rfq.Customer), nullable(rfq.Buyer), rfq.CustomerRFQNumber,
		a.Line1, a.Line2, a.City, a.State, a.ZipCode, a.Country,
		nullableTime(rfq.InquiryDate), nullableTime(rfq.DueDate), nullableTime(rfq.CreateDate))
}

func (g *gateway) CreateRFQLineItem(ctx context.Context, line entities.RFQLineItem) (entities.Handle, error) {
	return g.insertReturning(ctx, "create RFQ line item", `
		INSERT INTO request_for_quote_line (request_for_quote_fk, item_fk, quote_fk, line_reference, quantity)
		VALUES ($1, $2, $3, $4, $5) RETURNING request_for_quote_line_pk`,
		int64(line.RFQ), int64(line.Item), int64(line.Quote), line.Sequence, int64(line.Quantity))
}

func (g *gateway) ResetRFQ(ctx context.Context, rfq entities.Handle) error {
	exists, err := g.lookup(ctx, "look up RFQ",
		`SELECT request_for_quote_pk FROM request_for_quote WHERE request_for_quote_pk = $1`, int64(rfq))
	if err != nil {
		return err
	}
	if !exists.Valid() {
		return fmt.Errorf("rfq not found: %d", rfq)
	}

	statements := []struct {
		op  string
		sql string
	}{
		{"delete formula variables", `
			DELETE FROM quote_assembly_formula_variable WHERE quote_assembly_fk IN (
				SELECT qa.quote_assembly_pk FROM quote_assembly qa
				JOIN request_for_quote_line l ON l.quote_fk = qa.quote_fk
				WHERE l.request_for_quote_fk = $1)`},
		{"delete quote assemblies", `
			DELETE FROM quote_assembly WHERE quote_fk IN (
				SELECT quote_fk FROM request_for_quote_line WHERE request_for_quote_fk = $1)`},
		{"delete RFQ lines", `DELETE FROM request_for_quote_line WHERE request_for_quote_fk = $1`},
	}
	for _, s := range statements {
		if _, err := g.q.Exec(ctx, s.sql, int64(rfq)); err != nil {
			return classify(s.op, err)
		}
	}
	g.logger.Info("reset RFQ", zap.Int64("rfq", int64(rfq)))
	return nil
}

func (g *gateway) UploadDocument(ctx context.Context, doc entities.DocumentUpload) error {
	if doc.RFQ.Valid() == doc.Item.Valid() {
		return fmt.Errorf("document %s must be attached to exactly one of an RFQ or an item", doc.Path)
	}
	var group any
	if doc.Group != entities.Uncategorized {
		group = int(doc.Group)
	}
	tag, err := g.q.Exec(ctx, `
		INSERT INTO document (url, request_for_quote_fk, item_fk, document_type_fk, document_group_fk, secure_document)
		SELECT $1::text, $2::bigint, $3::bigint, $4::integer, $5::integer, $6::boolean
		WHERE NOT EXISTS (
			SELECT 1 FROM document
			WHERE url = $1::text
			AND request_for_quote_fk IS NOT DISTINCT FROM $2::bigint
			AND item_fk IS NOT DISTINCT FROM $3::bigint)`,
		doc.Path, nullable(doc.RFQ), nullable(doc.Item), doc.DocumentType, group, doc.Secure)
	if err != nil {
		return classify("upload document", err)
	}
	if tag.RowsAffected() == 0 {
		g.logger.Debug("document already attached", zap.String("path", doc.Path))
	}
	return nil
}

func (g *gateway) GetPartyAddress(ctx context.Context, party entities.Handle) (entities.Address, error) {
	var a entities.Address
	err := g.q.QueryRow(ctx, `
		SELECT address1, address2, city, state, zip_code, country
		FROM address WHERE party_fk = $1
		ORDER BY address_pk LIMIT 1`,
		int64(party)).Scan(&a.Line1, &a.Line2, &a.City, &a.State, &a.ZipCode, &a.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Address{}, &entities.ExternalLookupFailure{
			Operation: "get party address",
			Err:       fmt.Errorf("party not found: %d", party),
		}
	}
	if err != nil {
		return entities.Address{}, classify("get party address", err)
	}
	return a, nil
}

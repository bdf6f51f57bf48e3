package memory

import (
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// ItemRow is a stored item
type ItemRow struct {
	Handle  entities.Handle
	Spec    entities.ItemSpec
	Details *entities.ItemDetails
}

// QuoteRow is a stored quote header
type QuoteRow struct {
	Handle entities.Handle
	Quote  entities.Quote
}

// AssemblyRow is a stored quote assembly row. Depending on which fields are
// set it is a template operation, a BOM line or an assembly link.
type AssemblyRow struct {
	Handle      entities.Handle
	Quote       entities.Handle
	Sequence    int
	Operation   bool
	ItemQuote   entities.Handle
	Quantity    entities.Quantity
	ParentQuote entities.Handle
	ParentLink  entities.Handle
	BOM         *entities.BOMLine
}

// RouterRow is a stored router with its steps in attach order
type RouterRow struct {
	Handle entities.Handle
	Item   entities.Handle
	Label  string
	Steps  []entities.RouterStep
}

// RFQRow is a stored RFQ header
type RFQRow struct {
	Handle entities.Handle
	RFQ    entities.RFQ
}

// LineItemRow is a stored RFQ line item
type LineItemRow struct {
	Handle entities.Handle
	Line   entities.RFQLineItem
}

// FormulaVariable is a setup or run variable of a quote operation
type FormulaVariable struct {
	Operation entities.Handle
	Run       bool
}

type documentKey struct {
	path string
	rfq  entities.Handle
	item entities.Handle
}

type database struct {
	lastHandle entities.Handle
	template   []int

	items       []ItemRow
	itemsByPN   map[entities.PartNumber]int
	itemsByID   map[entities.Handle]int
	quotes      []QuoteRow
	assembly    []AssemblyRow
	routers     []RouterRow
	routersByID map[entities.Handle]int
	rfqs        []RFQRow
	lines       []LineItemRow
	documents   []entities.DocumentUpload
	documentSet map[documentKey]bool
	formulas    map[entities.Handle][]FormulaVariable
	parties     map[entities.Handle]entities.Address
}

func newDatabase(template []int) *database {
	return &database{
		template:    append([]int(nil), template...),
		itemsByPN:   make(map[entities.PartNumber]int),
		itemsByID:   make(map[entities.Handle]int),
		routersByID: make(map[entities.Handle]int),
		documentSet: make(map[documentKey]bool),
		formulas:    make(map[entities.Handle][]FormulaVariable),
		parties:     make(map[entities.Handle]entities.Address),
	}
}

func (d *database) nextHandle() entities.Handle {
	d.lastHandle++
	return d.lastHandle
}

func (d *database) insertItem(spec entities.ItemSpec) entities.Handle {
	h := d.nextHandle()
	d.itemsByPN[spec.PartNumber] = len(d.items)
	d.itemsByID[h] = len(d.items)
	d.items = append(d.items, ItemRow{Handle: h, Spec: spec})
	return h
}

// clone deep-copies everything a gateway call can mutate
func (d *database) clone() *database {
	c := &database{
		lastHandle:  d.lastHandle,
		template:    d.template,
		items:       make([]ItemRow, len(d.items)),
		itemsByPN:   make(map[entities.PartNumber]int, len(d.itemsByPN)),
		itemsByID:   make(map[entities.Handle]int, len(d.itemsByID)),
		quotes:      append([]QuoteRow(nil), d.quotes...),
		assembly:    append([]AssemblyRow(nil), d.assembly...),
		routers:     make([]RouterRow, len(d.routers)),
		routersByID: make(map[entities.Handle]int, len(d.routersByID)),
		rfqs:        append([]RFQRow(nil), d.rfqs...),
		lines:       append([]LineItemRow(nil), d.lines...),
		documents:   append([]entities.DocumentUpload(nil), d.documents...),
		documentSet: make(map[documentKey]bool, len(d.documentSet)),
		formulas:    make(map[entities.Handle][]FormulaVariable, len(d.formulas)),
		parties:     make(map[entities.Handle]entities.Address, len(d.parties)),
	}

	for i, row := range d.items {
		if row.Details != nil {
			details := *row.Details
			row.Details = &details
		}
		c.items[i] = row
	}
	for k, v := range d.itemsByPN {
		c.itemsByPN[k] = v
	}
	for k, v := range d.itemsByID {
		c.itemsByID[k] = v
	}
	for i, row := range d.routers {
		row.Steps = append([]entities.RouterStep(nil), row.Steps...)
		c.routers[i] = row
	}
	for k, v := range d.routersByID {
		c.routersByID[k] = v
	}
	for k, v := range d.documentSet {
		c.documentSet[k] = v
	}
	for k, v := range d.formulas {
		c.formulas[k] = append([]FormulaVariable(nil), v...)
	}
	for k, v := range d.parties {
		c.parties[k] = v
	}
	return c
}

// Items returns the committed items in creation order
func (s *Store) Items() []ItemRow {
	return append([]ItemRow(nil), s.db.items...)
}

// ItemByPartNumber returns the committed item with a part number
func (s *Store) ItemByPartNumber(pn entities.PartNumber) (ItemRow, bool) {
	i, ok := s.db.itemsByPN[pn]
	if !ok {
		return ItemRow{}, false
	}
	return s.db.items[i], true
}

// Item returns the committed item with a handle
func (s *Store) Item(h entities.Handle) (ItemRow, bool) {
	i, ok := s.db.itemsByID[h]
	if !ok {
		return ItemRow{}, false
	}
	return s.db.items[i], true
}

// Quotes returns the committed quotes in creation order
func (s *Store) Quotes() []QuoteRow {
	return append([]QuoteRow(nil), s.db.quotes...)
}

// AssemblyRows returns the committed assembly rows of a quote
func (s *Store) AssemblyRows(quote entities.Handle) []AssemblyRow {
	var rows []AssemblyRow
	for _, row := range s.db.assembly {
		if row.Quote == quote {
			rows = append(rows, row)
		}
	}
	return rows
}

// Links returns the committed assembly links of a main quote in creation order
func (s *Store) Links(quote entities.Handle) []AssemblyRow {
	var rows []AssemblyRow
	for _, row := range s.db.assembly {
		if row.Quote == quote && row.ItemQuote.Valid() {
			rows = append(rows, row)
		}
	}
	return rows
}

// BOMLines returns the committed BOM lines of a quote in creation order
func (s *Store) BOMLines(quote entities.Handle) []entities.BOMLine {
	var lines []entities.BOMLine
	for _, row := range s.db.assembly {
		if row.Quote == quote && row.BOM != nil {
			lines = append(lines, *row.BOM)
		}
	}
	return lines
}

// Routers returns the committed routers in creation order
func (s *Store) Routers() []RouterRow {
	return append([]RouterRow(nil), s.db.routers...)
}

// RFQs returns the committed RFQ headers
func (s *Store) RFQs() []RFQRow {
	return append([]RFQRow(nil), s.db.rfqs...)
}

// LineItems returns the committed line items of an RFQ
func (s *Store) LineItems(rfq entities.Handle) []LineItemRow {
	var rows []LineItemRow
	for _, row := range s.db.lines {
		if row.Line.RFQ == rfq {
			rows = append(rows, row)
		}
	}
	return rows
}

// Documents returns the committed document attachments
func (s *Store) Documents() []entities.DocumentUpload {
	return append([]entities.DocumentUpload(nil), s.db.documents...)
}

// FormulaVariables returns the committed formula variables of a quote
func (s *Store) FormulaVariables(quote entities.Handle) []FormulaVariable {
	return append([]FormulaVariable(nil), s.db.formulas[quote]...)
}

package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BOMLine is a bill-of-material row of a quote: an item consumed by the
// quote at one of its operation sequences
type BOMLine struct {
	Quote          Handle
	Item           Handle
	QuoteAssembly  Handle // operation row the line hangs under
	SequenceNumber int
	OrderBy        int

	UnitOfMeasureSet int
	CalculationType  int
	StockPieces      int

	Tool                     bool
	StopSequence             bool
	UnattendedOperation      bool
	DoNotUseDeliverySchedule bool
	GrainDirection           bool
	AgainstGrain             bool
	DoubleSided              bool
	CertificationsRequired   bool
	NonAmortizedItem         bool
	Pull                     bool
	NotIncludeInPiecePrice   bool
	Lock                     bool
	Nestable                 bool
	BulkShip                 bool
	ShipLoose                bool
	CustomerSuppliedMaterial bool

	VendorUnit                   decimal.Decimal
	PartsPerBlank                decimal.Decimal
	SetupTime                    decimal.Decimal
	ScrapRebate                  decimal.Decimal
	PartWidth                    decimal.Decimal
	PartLength                   decimal.Decimal
	Thickness                    decimal.Decimal
	PartsRequired                decimal.Decimal
	QuantityRequired             decimal.Decimal
	MinimumPiecePrice            decimal.Decimal
	PartsPerBlankScrapPercentage decimal.Decimal
	MarkupPercentage             decimal.Decimal
	PieceWeight                  decimal.Decimal
	CustomPieceWeight            decimal.Decimal
	PieceCost                    decimal.Decimal
	PiecePrice                   decimal.Decimal
	StockPiecesScrapPercentage   decimal.Decimal
}

// DefaultBOMLine holds the column values every generated BOM line starts from.
// Boolean columns and unlisted decimals default to zero.
func DefaultBOMLine() BOMLine {
	one := decimal.NewFromInt(1)
	return BOMLine{
		UnitOfMeasureSet: DefaultUnitOfMeasureID,
		CalculationType:  DefaultBOMCalculation,
		VendorUnit:       one,
		PartsPerBlank:    one,
		PartsRequired:    one,
		QuantityRequired: one,
		MarkupPercentage: decimal.RequireFromString("9.999999"),
	}
}

// NewBOMLine creates a validated BOMLine on top of DefaultBOMLine
func NewBOMLine(quote, item, quoteAssembly Handle, sequenceNumber, orderBy int) (*BOMLine, error) {
	if !quote.Valid() {
		return nil, fmt.Errorf("BOM line quote handle must be set")
	}
	if !item.Valid() {
		return nil, fmt.Errorf("BOM line item handle must be set")
	}
	if sequenceNumber <= 0 {
		return nil, fmt.Errorf("sequence number must be positive, got %d", sequenceNumber)
	}
	if orderBy <= 0 {
		return nil, fmt.Errorf("order by must be positive, got %d", orderBy)
	}

	line := DefaultBOMLine()
	line.Quote = quote
	line.Item = item
	line.QuoteAssembly = quoteAssembly
	line.SequenceNumber = sequenceNumber
	line.OrderBy = orderBy
	return &line, nil
}

// WithDimensions copies a row's part dimensions onto the line
func (l BOMLine) WithDimensions(rec PartRecord) BOMLine {
	l.PartLength = rec.Length
	l.PartWidth = rec.Width
	l.Thickness = rec.Thickness
	return l
}

// WithQuantity overrides the quantity required
func (l BOMLine) WithQuantity(qty Quantity) BOMLine {
	l.QuantityRequired = decimal.NewFromInt(int64(qty))
	return l
}

// AssemblyLink records that the quote of a sub-assembly is consumed by the
// assembly tree of the main quote. Links directly under the main part leave
// ParentQuote and ParentLink empty.
type AssemblyLink struct {
	Quote       Handle // main quote that owns the tree
	ChildQuote  Handle
	Quantity    Quantity
	ParentQuote Handle
	ParentLink  Handle
}

// Nested reports whether the link hangs below another link
func (l AssemblyLink) Nested() bool {
	return l.ParentLink.Valid()
}

// NewAssemblyLink creates a validated AssemblyLink
func NewAssemblyLink(quote, child Handle, qty Quantity, parentQuote, parentLink Handle) (*AssemblyLink, error) {
	if !quote.Valid() {
		return nil, fmt.Errorf("assembly link quote handle must be set")
	}
	if !child.Valid() {
		return nil, fmt.Errorf("assembly link child quote handle must be set")
	}
	if parentLink.Valid() != parentQuote.Valid() {
		return nil, fmt.Errorf("nested assembly link needs both parent quote and parent link, got %d and %d", parentQuote, parentLink)
	}
	return &AssemblyLink{
		Quote:       quote,
		ChildQuote:  child,
		Quantity:    qty,
		ParentQuote: parentQuote,
		ParentLink:  parentLink,
	}, nil
}

// OperationSequences are the sequence numbers of the template operations BOM
// lines attach to
type OperationSequences struct {
	Material  int `yaml:"material" validate:"gt=0"`
	HeatTreat int `yaml:"heat_treat" validate:"gt=0"`
	Finish    int `yaml:"finish" validate:"gt=0"`
	Hardware  int `yaml:"hardware" validate:"gt=0"`
	Tooling   int `yaml:"tooling" validate:"gt=0"`
}

// DefaultOperationSequences match the stock quote template
func DefaultOperationSequences() OperationSequences {
	return OperationSequences{
		Material:  6,
		HeatTreat: 21,
		Finish:    22,
		Hardware:  24,
		Tooling:   8,
	}
}

// Quote is the header of a part quote
type Quote struct {
	Customer   Handle
	Item       Handle
	QuoteType  int
	PartNumber PartNumber
	Division   int
}

// RouterStep places a finish-code item on a router
type RouterStep struct {
	Item     Handle
	Router   Handle
	Sequence int
}

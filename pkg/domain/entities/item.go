package entities

import (
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// PartNumber represents a logical part identifier as the ERP stores it
type PartNumber string

// Quantity represents an integer quantity value for discrete manufacturing units
type Quantity int64

// Handle is the opaque identifier the persistence gateway returns after a create.
// Zero means no record.
type Handle int64

// NoHandle marks an absent reference, written as NULL by SQL gateways.
const NoHandle Handle = 0

// Valid reports whether the handle refers to a record
func (h Handle) Valid() bool {
	return h > 0
}

// HandleTable maps logical part numbers to handles created earlier in a run
type HandleTable map[PartNumber]Handle

// Lookup returns the handle for a part number
func (t HandleTable) Lookup(pn PartNumber) (Handle, bool) {
	h, ok := t[pn]
	return h, ok && h.Valid()
}

// ItemType mirrors the ERP item type keys used by the generator
type ItemType int

const (
	ItemTypeUnset               ItemType = 0
	ItemTypeMaterial            ItemType = 2
	ItemTypeHardware            ItemType = 3
	ItemTypeOperation           ItemType = 5
	ItemTypeManufacturedTooling ItemType = 7
)

// String method for ItemType enum
func (t ItemType) String() string {
	switch t {
	case ItemTypeUnset:
		return "Unset"
	case ItemTypeMaterial:
		return "Material"
	case ItemTypeHardware:
		return "Hardware"
	case ItemTypeOperation:
		return "Operation"
	case ItemTypeManufacturedTooling:
		return "ManufacturedTooling"
	default:
		return "Unknown"
	}
}

// Hard column limits of the ERP item table.
const (
	MaxItemPartNumberLength  = 100
	MaxItemDescriptionLength = 490
)

// General ledger accounts and calculation types assigned to generated items.
const (
	OperationAccount       = 125
	MaterialAccount        = 127
	HardwareAccount        = 130
	OperationCalculation   = 17
	MaterialCalculation    = 4
	HardwareCalculation    = 12
	DefaultBOMCalculation  = OperationCalculation
	DefaultUnitOfMeasureID = 1
)

// ItemSpec is the full set of item columns the generator writes.
// Build one with the New*Item constructors rather than by hand.
type ItemSpec struct {
	PartNumber           PartNumber
	Description          string
	Comment              string
	PurchaseOrderComment string
	Type                 ItemType

	Purchase         bool
	ServiceItem      bool
	ManufacturedItem bool
	Inventoriable    bool
	OnlyCreate       bool
	BulkShip         bool
	ShipLoose        bool
	MPSItem          bool
	ForecastOnMRP    bool
	MPSOnMRP         bool

	CertificationsRequiredBySupplier bool
	CanNotCreateWorkOrder            bool
	CanNotInvoice                    bool

	PurchaseAccount  int
	SalesCogsAccount int
	CalculationType  int
}

// Validate checks the spec against the ERP column limits
func (s ItemSpec) Validate() error {
	if s.PartNumber == "" {
		return fmt.Errorf("item part number cannot be empty")
	}
	if n := utf8.RuneCountInString(string(s.PartNumber)); n > MaxItemPartNumberLength {
		return fmt.Errorf("item part number exceeds %d characters, got %d", MaxItemPartNumberLength, n)
	}
	if n := utf8.RuneCountInString(s.Description); n > MaxItemDescriptionLength {
		return fmt.Errorf("item description exceeds %d characters, got %d", MaxItemDescriptionLength, n)
	}
	return nil
}

// Truncate cuts s to at most limit characters and reports whether it had to
func Truncate(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]), true
}

// NewPartItem describes the manufactured item created for every quoted part
func NewPartItem(pn PartNumber, description string, kind HardwareKind) ItemSpec {
	spec := ItemSpec{
		PartNumber:       pn,
		Description:      description,
		ManufacturedItem: true,
		Inventoriable:    true,
	}
	if kind == ManufacturedTooling {
		spec.Type = ItemTypeManufacturedTooling
	}
	return spec
}

// NewMaterialItem describes the purchased stock item of a part
func NewMaterialItem(pn PartNumber) ItemSpec {
	return ItemSpec{
		PartNumber:                       pn,
		Type:                             ItemTypeMaterial,
		Purchase:                         true,
		Inventoriable:                    true,
		OnlyCreate:                       true,
		CertificationsRequiredBySupplier: true,
		PurchaseAccount:                  MaterialAccount,
		SalesCogsAccount:                 MaterialAccount,
		CalculationType:                  MaterialCalculation,
	}
}

// NewOperationItem describes an outside-process item such as "<pn> - OP Finish".
// comment is also used as the purchase order comment.
func NewOperationItem(pn PartNumber, description, comment string) ItemSpec {
	return ItemSpec{
		PartNumber:                       pn,
		Description:                      description,
		Comment:                          comment,
		PurchaseOrderComment:             comment,
		Type:                             ItemTypeOperation,
		OnlyCreate:                       true,
		CertificationsRequiredBySupplier: true,
		CanNotCreateWorkOrder:            true,
		CanNotInvoice:                    true,
		PurchaseAccount:                  OperationAccount,
		SalesCogsAccount:                 OperationAccount,
		CalculationType:                  OperationCalculation,
	}
}

// NewFinishCodeItem describes the item standing for a single finish instruction.
// The identifier and description are cut to the ERP limits; the comment keeps
// the full line. truncated reports whether either field was cut.
func NewFinishCodeItem(code string) (spec ItemSpec, truncated bool) {
	id, idCut := Truncate(code, MaxItemPartNumberLength)
	desc, descCut := Truncate(code, MaxItemDescriptionLength)
	return ItemSpec{
		PartNumber:                       PartNumber(id),
		Description:                      desc,
		Comment:                          code,
		Type:                             ItemTypeOperation,
		CertificationsRequiredBySupplier: true,
		CanNotCreateWorkOrder:            true,
		CanNotInvoice:                    true,
		PurchaseAccount:                  OperationAccount,
		SalesCogsAccount:                 OperationAccount,
		CalculationType:                  OperationCalculation,
	}, idCut || descCut
}

// NewToolingItem describes a customer tooling line attached to its assembly's BOM
func NewToolingItem(pn PartNumber, description string) ItemSpec {
	return ItemSpec{
		PartNumber:            pn,
		Description:           description,
		Type:                  ItemTypeManufacturedTooling,
		ManufacturedItem:      true,
		Inventoriable:         true,
		CanNotCreateWorkOrder: true,
		CanNotInvoice:         true,
	}
}

// ItemDetails carries the dimensional and drawing columns written onto an
// item after it exists
type ItemDetails struct {
	StockLength decimal.Decimal
	StockWidth  decimal.Decimal
	Thickness   decimal.Decimal
	Weight      decimal.Decimal
	PartLength  decimal.Decimal
	PartWidth   decimal.Decimal

	// Material items only
	Material             bool
	PurchaseOrderComment string

	// Everything else
	DrawingNumber    string
	DrawingRevision  string
	Revision         string
	VendorPartNumber PartNumber
}

// NewItemDetails derives the detail columns for an item from its source row
func NewItemDetails(rec PartRecord, pn PartNumber, material bool) ItemDetails {
	d := ItemDetails{
		StockLength: rec.StockLength,
		StockWidth:  rec.StockWidth,
		Thickness:   rec.StockThickness,
		Weight:      rec.Weight,
		PartLength:  rec.Length,
		PartWidth:   rec.Width,
	}
	if material {
		d.Material = true
		d.PurchaseOrderComment = fmt.Sprintf(" Dimensions (L x W x T): %s x %s x %s",
			rec.StockLength, rec.StockWidth, rec.StockThickness)
		return d
	}
	d.DrawingNumber = rec.DrawingNumber
	d.DrawingRevision = rec.DrawingRevision
	d.Revision = rec.PLRevision
	d.VendorPartNumber = pn
	return d
}

// HardwarePartPrefix starts the part number of every generated hardware item
const HardwarePartPrefix = "05-"

// NewHardwareItem describes a purchased hardware line numbered "05-<n>"
func NewHardwareItem(pn PartNumber, description string) ItemSpec {
	return ItemSpec{
		PartNumber:                       pn,
		Description:                      description,
		Type:                             ItemTypeHardware,
		CertificationsRequiredBySupplier: true,
		PurchaseAccount:                  HardwareAccount,
		SalesCogsAccount:                 HardwareAccount,
		CalculationType:                  HardwareCalculation,
	}
}

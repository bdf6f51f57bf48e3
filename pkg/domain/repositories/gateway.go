package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// ItemRepository provides access to ERP item records
type ItemRepository interface {
	// GetOrCreateItem returns the item with spec's part number, creating it on a miss
	GetOrCreateItem(ctx context.Context, spec entities.ItemSpec) (entities.Handle, error)

	// FindMaterialItem looks up a stock item by part number and stock dimensions.
	// Returns NoHandle when none exists.
	FindMaterialItem(
		ctx context.Context,
		partNumber entities.PartNumber,
		stockLength, stockWidth, thickness decimal.Decimal,
	) (entities.Handle, error)

	UpdateItemDetails(ctx context.Context, item entities.Handle, details entities.ItemDetails) error

	// GetOrCreateHardware returns the hardware item with the given description,
	// numbering new ones "05-<n>"
	GetOrCreateHardware(ctx context.Context, description string) (entities.Handle, error)
}

// QuoteRepository provides access to quotes and their assembly rows
type QuoteRepository interface {
	CreateQuote(ctx context.Context, quote entities.Quote) (entities.Handle, error)

	// CopyTemplateOperations copies the operation rows of the template quote
	CopyTemplateOperations(ctx context.Context, quote entities.Handle) error

	// FindOperation returns the assembly row of a quote at sequence.
	// Returns NoHandle when none exists.
	FindOperation(ctx context.Context, quote entities.Handle, sequence int) (entities.Handle, error)

	CreateAssemblyLink(ctx context.Context, link entities.AssemblyLink) (entities.Handle, error)
	CreateFormulaVariables(ctx context.Context, quote entities.Handle) error
}

// BOMRepository provides access to quote bills of material
type BOMRepository interface {
	CreateBOMLine(ctx context.Context, line entities.BOMLine) error
}

// RouterRepository provides access to item routers
type RouterRepository interface {
	CreateRouter(ctx context.Context, item entities.Handle, label string) (entities.Handle, error)
	AttachRouterStep(ctx context.Context, step entities.RouterStep) error
}

// RFQRepository provides access to RFQ headers, lines and documents
type RFQRepository interface {
	CreateRFQ(ctx context.Context, rfq entities.RFQ) (entities.Handle, error)
	CreateRFQLineItem(ctx context.Context, line entities.RFQLineItem) (entities.Handle, error)

	// ResetRFQ removes the lines and quotes of an RFQ so it can be regenerated
	ResetRFQ(ctx context.Context, rfq entities.Handle) error

	// UploadDocument attaches a file unless the same path is already attached
	UploadDocument(ctx context.Context, doc entities.DocumentUpload) error
}

// PartyRepository provides access to customers
type PartyRepository interface {
	GetPartyAddress(ctx context.Context, party entities.Handle) (entities.Address, error)
}

// Gateway is the full persistence surface of one generation run
type Gateway interface {
	ItemRepository
	QuoteRepository
	BOMRepository
	RouterRepository
	RFQRepository
	PartyRepository
}

// Transactor runs fn against a Gateway bound to one transaction, committing
// when fn returns nil and rolling back otherwise
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, gw Gateway) error) error
}

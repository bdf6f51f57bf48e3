package entities

// DocumentGroup is the ERP document group a transferred file is filed under
type DocumentGroup int

const (
	Uncategorized          DocumentGroup = 0
	CatiaModelDocuments    DocumentGroup = 16
	PartsListDocuments     DocumentGroup = 26
	DrawingDocuments       DocumentGroup = 27
	StepModelDocuments     DocumentGroup = 30
	SpecificationDocuments DocumentGroup = 33
)

// String method for DocumentGroup enum
func (g DocumentGroup) String() string {
	switch g {
	case Uncategorized:
		return "Uncategorized"
	case CatiaModelDocuments:
		return "CatiaModel"
	case PartsListDocuments:
		return "PartsList"
	case DrawingDocuments:
		return "Drawing"
	case StepModelDocuments:
		return "StepModel"
	case SpecificationDocuments:
		return "Specification"
	default:
		return "Unknown"
	}
}

// Document types of uploaded files.
const (
	ItemDocument       = 2
	EstimationDocument = 6
)

// CategorizedFile is a file copied into a document folder with its group
type CategorizedFile struct {
	Path  string
	Group DocumentGroup
}

// DocumentUpload attaches a stored file to an RFQ or an item
type DocumentUpload struct {
	Path         string
	RFQ          Handle
	Item         Handle
	DocumentType int
	Secure       bool
	Group        DocumentGroup
}

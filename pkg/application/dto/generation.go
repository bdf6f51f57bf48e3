package dto

import (
	"time"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// GenerationRequest describes one RFQ generation or update run
type GenerationRequest struct {
	Records *entities.PartRecords

	Customer          entities.Handle `validate:"gt=0"`
	CustomerName      string          `validate:"required"`
	Buyer             entities.Handle
	CustomerRFQNumber string
	InquiryDate       time.Time
	DueDate           time.Time

	// UpdateRFQ regenerates an existing RFQ after resetting it. NoHandle
	// creates a new RFQ.
	UpdateRFQ entities.Handle

	// Restricted files documents under the restricted folders and marks
	// uploads secure
	Restricted      bool
	PartFiles       []string
	EstimationFiles []string
}

// Update reports whether the request regenerates an existing RFQ
func (r GenerationRequest) Update() bool {
	return r.UpdateRFQ.Valid()
}

// OperationItems are the outside-process items of one part. Unset handles
// mean the row had no material, heat treat or finish.
type OperationItems struct {
	Material  entities.Handle
	HeatTreat entities.Handle
	Finish    entities.Handle
}

// PartOutcome is what the run created for one manufactured row
type PartOutcome struct {
	Key        entities.RecordKey
	PartNumber entities.PartNumber
	Item       entities.Handle
	Quote      entities.Handle
	Operations OperationItems
	Router     entities.Handle
	BOMLines   int
	Documents  int
}

// BOMAttachment is a hardware or tooling row placed on its assembly's quote
type BOMAttachment struct {
	Key      entities.RecordKey
	Kind     entities.HardwareKind
	Quote    entities.Handle
	Item     entities.Handle
	Sequence int
	Quantity entities.Quantity
}

// GenerationResult contains the complete output of a generation run
type GenerationResult struct {
	RunID     string
	RFQ       entities.Handle
	Updated   bool
	MainPart  entities.PartNumber
	MainQuote entities.Handle

	Parts       []PartOutcome
	Attachments []BOMAttachment
	LineItems   []entities.Handle
	Links       map[entities.PartNumber]entities.Handle
	LinkOrder   []entities.PartNumber
	Documents   int
	Attempts    int
	Duration    time.Duration
}

// BOMLineCount returns the number of BOM lines the run created
func (r *GenerationResult) BOMLineCount() int {
	n := len(r.Attachments)
	for _, p := range r.Parts {
		n += p.BOMLines
	}
	return n
}

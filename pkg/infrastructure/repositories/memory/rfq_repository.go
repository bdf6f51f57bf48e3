package memory

import (
	"context"
	"fmt"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// CreateRFQ inserts an RFQ header
func (s *session) CreateRFQ(_ context.Context, rfq entities.RFQ) (entities.Handle, error) {
	if err := s.fail(OpCreateRFQ); err != nil {
		return entities.NoHandle, err
	}
	h := s.db.nextHandle()
	s.db.rfqs = append(s.db.rfqs, RFQRow{Handle: h, RFQ: rfq})
	s.record(OpCreateRFQ, rfq, h)
	return h, nil
}

func (s *session) hasRFQ(rfq entities.Handle) bool {
	for _, row := range s.db.rfqs {
		if row.Handle == rfq {
			return true
		}
	}
	return false
}

// CreateRFQLineItem inserts an RFQ line item
func (s *session) CreateRFQLineItem(_ context.Context, line entities.RFQLineItem) (entities.Handle, error) {
	if err := s.fail(OpCreateRFQLineItem); err != nil {
		return entities.NoHandle, err
	}
	if !s.hasRFQ(line.RFQ) {
		return entities.NoHandle, fmt.Errorf("rfq not found: %d", line.RFQ)
	}
	h := s.db.nextHandle()
	s.db.lines = append(s.db.lines, LineItemRow{Handle: h, Line: line})
	s.record(OpCreateRFQLineItem, line, h)
	return h, nil
}

// ResetRFQ deletes the line items of an RFQ together with the assembly rows
// and formula variables of their quotes
func (s *session) ResetRFQ(_ context.Context, rfq entities.Handle) error {
	if err := s.fail(OpResetRFQ); err != nil {
		return err
	}
	if !s.hasRFQ(rfq) {
		return fmt.Errorf("rfq not found: %d", rfq)
	}

	quotes := make(map[entities.Handle]bool)
	lines := s.db.lines[:0:0]
	for _, row := range s.db.lines {
		if row.Line.RFQ == rfq {
			quotes[row.Line.Quote] = true
			continue
		}
		lines = append(lines, row)
	}
	s.db.lines = lines

	assembly := s.db.assembly[:0:0]
	for _, row := range s.db.assembly {
		if !quotes[row.Quote] {
			assembly = append(assembly, row)
		}
	}
	s.db.assembly = assembly
	for q := range quotes {
		delete(s.db.formulas, q)
	}

	s.record(OpResetRFQ, rfq, rfq)
	return nil
}

// UploadDocument attaches a file to an RFQ or an item once per path
func (s *session) UploadDocument(_ context.Context, doc entities.DocumentUpload) error {
	if err := s.fail(OpUploadDocument); err != nil {
		return err
	}
	if doc.RFQ.Valid() == doc.Item.Valid() {
		return fmt.Errorf("document %s must be attached to exactly one of an RFQ or an item", doc.Path)
	}
	key := documentKey{path: doc.Path, rfq: doc.RFQ, item: doc.Item}
	if !s.db.documentSet[key] {
		s.db.documentSet[key] = true
		s.db.documents = append(s.db.documents, doc)
	}
	s.record(OpUploadDocument, doc, entities.NoHandle)
	return nil
}

// GetPartyAddress returns the seeded address of a customer
func (s *session) GetPartyAddress(_ context.Context, party entities.Handle) (entities.Address, error) {
	if err := s.fail(OpGetPartyAddress); err != nil {
		return entities.Address{}, err
	}
	addr, ok := s.db.parties[party]
	if !ok {
		return entities.Address{}, &entities.ExternalLookupFailure{
			Operation: "get party address",
			Err:       fmt.Errorf("party not found: %d", party),
		}
	}
	s.record(OpGetPartyAddress, party, party)
	return addr, nil
}

package memory

import (
	"context"
	"fmt"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// CreateQuote inserts a quote header
func (s *session) CreateQuote(_ context.Context, quote entities.Quote) (entities.Handle, error) {
	if err := s.fail(OpCreateQuote); err != nil {
		return entities.NoHandle, err
	}
	if _, ok := s.db.itemsByID[quote.Item]; !ok {
		return entities.NoHandle, fmt.Errorf("quote item not found: %d", quote.Item)
	}
	h := s.db.nextHandle()
	s.db.quotes = append(s.db.quotes, QuoteRow{Handle: h, Quote: quote})
	s.record(OpCreateQuote, quote, h)
	return h, nil
}

func (s *session) hasQuote(quote entities.Handle) bool {
	for _, row := range s.db.quotes {
		if row.Handle == quote {
			return true
		}
	}
	return false
}

// copyTemplate appends one operation row per template sequence
func (s *session) copyTemplate(quote, parentQuote, parentLink entities.Handle) {
	for _, seq := range s.db.template {
		s.db.assembly = append(s.db.assembly, AssemblyRow{
			Handle:      s.db.nextHandle(),
			Quote:       quote,
			Sequence:    seq,
			Operation:   true,
			ParentQuote: parentQuote,
			ParentLink:  parentLink,
		})
	}
}

// CopyTemplateOperations copies the template operations onto a quote
func (s *session) CopyTemplateOperations(_ context.Context, quote entities.Handle) error {
	if err := s.fail(OpCopyTemplateOperations); err != nil {
		return err
	}
	if !s.hasQuote(quote) {
		return fmt.Errorf("quote not found: %d", quote)
	}
	s.copyTemplate(quote, entities.NoHandle, entities.NoHandle)
	s.record(OpCopyTemplateOperations, quote, quote)
	return nil
}

// OperationQuery is the journaled argument of FindOperation
type OperationQuery struct {
	Quote    entities.Handle
	Sequence int
}

// FindOperation returns the top-level operation row of a quote at a sequence
func (s *session) FindOperation(_ context.Context, quote entities.Handle, sequence int) (entities.Handle, error) {
	if err := s.fail(OpFindOperation); err != nil {
		return entities.NoHandle, err
	}
	found := entities.NoHandle
	for _, row := range s.db.assembly {
		if row.Operation && row.Quote == quote && row.Sequence == sequence && !row.ParentLink.Valid() {
			found = row.Handle
			break
		}
	}
	s.record(OpFindOperation, OperationQuery{quote, sequence}, found)
	return found, nil
}

// CreateAssemblyLink inserts a link row and copies the template operations
// under it
func (s *session) CreateAssemblyLink(_ context.Context, link entities.AssemblyLink) (entities.Handle, error) {
	if err := s.fail(OpCreateAssemblyLink); err != nil {
		return entities.NoHandle, err
	}
	if !s.hasQuote(link.Quote) || !s.hasQuote(link.ChildQuote) {
		return entities.NoHandle, fmt.Errorf("assembly link references unknown quote: %d -> %d", link.ChildQuote, link.Quote)
	}

	h := s.db.nextHandle()
	s.db.assembly = append(s.db.assembly, AssemblyRow{
		Handle:      h,
		Quote:       link.Quote,
		Sequence:    1,
		ItemQuote:   link.ChildQuote,
		Quantity:    link.Quantity,
		ParentQuote: link.ParentQuote,
		ParentLink:  link.ParentLink,
	})
	s.copyTemplate(link.Quote, link.ChildQuote, h)
	s.record(OpCreateAssemblyLink, link, h)
	return h, nil
}

// CreateFormulaVariables adds a setup and a run variable for every operation
// row of a quote
func (s *session) CreateFormulaVariables(_ context.Context, quote entities.Handle) error {
	if err := s.fail(OpCreateFormulaVariables); err != nil {
		return err
	}
	var vars []FormulaVariable
	for _, row := range s.db.assembly {
		if row.Quote == quote && row.Operation {
			vars = append(vars, FormulaVariable{Operation: row.Handle})
		}
	}
	for _, row := range s.db.assembly {
		if row.Quote == quote && row.Operation {
			vars = append(vars, FormulaVariable{Operation: row.Handle, Run: true})
		}
	}
	s.db.formulas[quote] = append(s.db.formulas[quote], vars...)
	s.record(OpCreateFormulaVariables, quote, quote)
	return nil
}

// CreateBOMLine inserts a BOM row under an operation of its quote
func (s *session) CreateBOMLine(_ context.Context, line entities.BOMLine) error {
	if err := s.fail(OpCreateBOMLine); err != nil {
		return err
	}
	if !s.hasQuote(line.Quote) {
		return fmt.Errorf("BOM line quote not found: %d", line.Quote)
	}
	if _, ok := s.db.itemsByID[line.Item]; !ok {
		return fmt.Errorf("BOM line item not found: %d", line.Item)
	}

	h := s.db.nextHandle()
	stored := line
	s.db.assembly = append(s.db.assembly, AssemblyRow{
		Handle:   h,
		Quote:    line.Quote,
		Sequence: line.SequenceNumber,
		BOM:      &stored,
	})
	s.record(OpCreateBOMLine, line, h)
	return nil
}

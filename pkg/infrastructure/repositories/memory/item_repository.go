package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
)

// GetOrCreateItem returns the item with spec's part number, inserting it on a miss
func (s *session) GetOrCreateItem(_ context.Context, spec entities.ItemSpec) (entities.Handle, error) {
	if err := s.fail(OpGetOrCreateItem); err != nil {
		return entities.NoHandle, err
	}
	if err := spec.Validate(); err != nil {
		return entities.NoHandle, fmt.Errorf("invalid item %s: %w", spec.PartNumber, err)
	}

	if i, ok := s.db.itemsByPN[spec.PartNumber]; ok {
		h := s.db.items[i].Handle
		s.record(OpGetOrCreateItem, spec, h)
		return h, nil
	}

	h := s.db.insertItem(spec)
	s.record(OpGetOrCreateItem, spec, h)
	return h, nil
}

// MaterialQuery is the journaled argument of FindMaterialItem
type MaterialQuery struct {
	PartNumber  entities.PartNumber
	StockLength decimal.Decimal
	StockWidth  decimal.Decimal
	Thickness   decimal.Decimal
}

// FindMaterialItem returns the stock item with matching part number and stock
// dimensions, or NoHandle
func (s *session) FindMaterialItem(
	_ context.Context,
	partNumber entities.PartNumber,
	stockLength, stockWidth, thickness decimal.Decimal,
) (entities.Handle, error) {
	if err := s.fail(OpFindMaterialItem); err != nil {
		return entities.NoHandle, err
	}

	found := entities.NoHandle
	for _, row := range s.db.items {
		d := row.Details
		if row.Spec.PartNumber != partNumber || d == nil || !d.Material {
			continue
		}
		if d.StockLength.Equal(stockLength) && d.StockWidth.Equal(stockWidth) && d.Thickness.Equal(thickness) {
			found = row.Handle
			break
		}
	}
	s.record(OpFindMaterialItem, MaterialQuery{partNumber, stockLength, stockWidth, thickness}, found)
	return found, nil
}

// DetailsUpdate is the journaled argument of UpdateItemDetails
type DetailsUpdate struct {
	Item    entities.Handle
	Details entities.ItemDetails
}

// UpdateItemDetails overwrites the detail columns of an item
func (s *session) UpdateItemDetails(_ context.Context, item entities.Handle, details entities.ItemDetails) error {
	if err := s.fail(OpUpdateItemDetails); err != nil {
		return err
	}
	i, ok := s.db.itemsByID[item]
	if !ok {
		return fmt.Errorf("item not found: %d", item)
	}
	d := details
	s.db.items[i].Details = &d
	s.record(OpUpdateItemDetails, DetailsUpdate{item, details}, item)
	return nil
}

// GetOrCreateHardware returns the "05-" item with the given description,
// numbering a new one after the highest existing "05-<n>"
func (s *session) GetOrCreateHardware(_ context.Context, description string) (entities.Handle, error) {
	if err := s.fail(OpGetOrCreateHardware); err != nil {
		return entities.NoHandle, err
	}

	seq := services.NewHardwareSequence()
	var existing []entities.PartNumber
	for _, row := range s.db.items {
		if !strings.HasPrefix(string(row.Spec.PartNumber), seq.Prefix()) {
			continue
		}
		if row.Spec.Description == description {
			s.record(OpGetOrCreateHardware, description, row.Handle)
			return row.Handle, nil
		}
		existing = append(existing, row.Spec.PartNumber)
	}

	h := s.db.insertItem(entities.NewHardwareItem(seq.Next(existing), description))
	s.record(OpGetOrCreateHardware, description, h)
	return h, nil
}

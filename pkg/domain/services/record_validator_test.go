package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

func TestRecordValidator_ValidTree(t *testing.T) {
	records := batch(
		row("Main", "", entities.NotHardware, 1),
		row("A", "Main", entities.NotHardware, 1),
		row("B", "A", entities.NotHardware, 1),
		row("BOLT", "B", entities.Hardware, 4),
		row("FIXTURE", "Main", entities.ManufacturedTooling, 1),
	)

	result := NewRecordValidator().ValidateRecords(records)

	if !result.Valid() {
		t.Errorf("Expected no validation errors, got %v", result.Errors)
	}
	if result.HasCycles {
		t.Error("Expected no cycles to be detected")
	}
	if len(result.MainParts) != 1 || result.MainParts[0] != "Main" {
		t.Errorf("Expected main part Main, got %v", result.MainParts)
	}
}

func TestRecordValidator_MainPartCount(t *testing.T) {
	none := NewRecordValidator().ValidateRecords(batch(row("A", "B", entities.NotHardware, 1)))
	if !hasReason(none.Errors, entities.ErrNoMainPart) {
		t.Errorf("Expected ErrNoMainPart, got %v", none.Errors)
	}

	two := NewRecordValidator().ValidateRecords(batch(
		row("M1", "", entities.NotHardware, 1),
		row("M2", "", entities.NotHardware, 1),
	))
	if !hasReason(two.Errors, entities.ErrMultipleMainParts) {
		t.Errorf("Expected ErrMultipleMainParts, got %v", two.Errors)
	}
}

func TestRecordValidator_DetectDanglingParent(t *testing.T) {
	records := batch(
		row("Main", "", entities.NotHardware, 1),
		row("A", "Ghost", entities.NotHardware, 1),
		row("B", "Ghost", entities.NotHardware, 1),
	)

	result := NewRecordValidator().ValidateRecords(records)

	children := result.DanglingParents["Ghost"]
	if !reflect.DeepEqual(children, []entities.PartNumber{"A", "B"}) {
		t.Errorf("Expected Ghost to be referenced by [A B], got %v", children)
	}
	if !hasReason(result.Errors, entities.ErrDanglingParent) {
		t.Errorf("Expected ErrDanglingParent, got %v", result.Errors)
	}
	if len(result.OutOfOrder) != 0 {
		t.Errorf("Missing parents are not ordering errors, got %v", result.OutOfOrder)
	}
}

func TestRecordValidator_DetectCycle(t *testing.T) {
	records := batch(
		row("Main", "", entities.NotHardware, 1),
		row("A", "Main", entities.NotHardware, 1),
		row("X", "Y", entities.NotHardware, 1),
		row("Y", "X", entities.NotHardware, 1),
	)

	result := NewRecordValidator().ValidateRecords(records)

	if !result.HasCycles {
		t.Fatal("Expected cycle to be detected")
	}
	expected := []entities.PartNumber{"X", "Y", "X"}
	if !reflect.DeepEqual(result.CyclePaths[0], expected) {
		t.Errorf("Expected cycle path %v, got %v", expected, result.CyclePaths[0])
	}
	if !hasReason(result.Errors, entities.ErrAssemblyCycle) {
		t.Errorf("Expected ErrAssemblyCycle, got %v", result.Errors)
	}
}

func TestRecordValidator_DetectOutOfOrder(t *testing.T) {
	records := batch(
		row("Main", "", entities.NotHardware, 1),
		row("B", "A", entities.NotHardware, 1),
		row("BOLT", "A", entities.Hardware, 2),
		row("JIG", "A", entities.ManufacturedTooling, 1),
		row("A", "Main", entities.NotHardware, 1),
	)

	result := NewRecordValidator().ValidateRecords(records)

	expected := []entities.PartNumber{"B", "BOLT"}
	if !reflect.DeepEqual(result.OutOfOrder, expected) {
		t.Errorf("Expected out-of-order rows %v, got %v", expected, result.OutOfOrder)
	}
	if !hasReason(result.Errors, entities.ErrParentNotMaterialized) {
		t.Errorf("Expected ErrParentNotMaterialized, got %v", result.Errors)
	}
}

func TestRecordValidator_OrderParentsFirst(t *testing.T) {
	records := batch(
		row("C", "B", entities.NotHardware, 1),
		row("B", "A", entities.NotHardware, 1),
		row("X", "Y", entities.NotHardware, 1),
		row("Main", "", entities.NotHardware, 1),
		row("A", "Main", entities.NotHardware, 1),
		row("A", "Main", entities.NotHardware, 2),
		row("Y", "X", entities.NotHardware, 1),
	)

	validator := NewRecordValidator()
	ordered := validator.OrderParentsFirst(records)

	expected := []entities.RecordKey{"Main", "A", "A_____1", "B", "C", "X", "Y"}
	if !reflect.DeepEqual(ordered.Keys(), expected) {
		t.Errorf("Expected order %v, got %v", expected, ordered.Keys())
	}
	if rec, _ := ordered.Get("A_____1"); rec.QuantityRequired != 2 {
		t.Errorf("Expected the repeated row to keep its quantity, got %d", rec.QuantityRequired)
	}

	reordered := validator.ValidateRecords(ordered)
	if len(reordered.OutOfOrder) != 1 || reordered.OutOfOrder[0] != "X" {
		t.Errorf("Expected only the cyclic X row out of order, got %v", reordered.OutOfOrder)
	}
}

func hasReason(errs []error, reason error) bool {
	for _, err := range errs {
		if errors.Is(err, reason) {
			return true
		}
	}
	return false
}

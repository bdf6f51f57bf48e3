package services

import (
	"fmt"
	"sort"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// RecordValidator checks a batch of rows for a well-formed assembly tree
// before anything is written
type RecordValidator struct{}

// NewRecordValidator creates a new record validator
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

// ValidationResult contains the results of record validation
type ValidationResult struct {
	MainParts       []entities.PartNumber
	DanglingParents map[entities.PartNumber][]entities.PartNumber // missing parent -> children
	HasCycles       bool
	CyclePaths      [][]entities.PartNumber
	OutOfOrder      []entities.PartNumber // rows listed before their parent
	Errors          []error
}

// Valid reports whether the batch can be built in its current order
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateRecords performs structural validation on a batch
func (v *RecordValidator) ValidateRecords(records *entities.PartRecords) *ValidationResult {
	result := &ValidationResult{
		DanglingParents: make(map[entities.PartNumber][]entities.PartNumber),
		CyclePaths:      make([][]entities.PartNumber, 0),
		Errors:          make([]error, 0),
	}

	entries := records.Entries()
	present := make(map[entities.PartNumber]bool, len(entries))
	for _, e := range entries {
		present[e.PartNumber()] = true
		if e.Record.IsMainPart() {
			result.MainParts = append(result.MainParts, e.PartNumber())
		}
	}

	switch len(result.MainParts) {
	case 0:
		result.Errors = append(result.Errors, &entities.StructuralDataError{Reason: entities.ErrNoMainPart})
	case 1:
	default:
		result.Errors = append(result.Errors, &entities.StructuralDataError{
			Reason: entities.ErrMultipleMainParts,
			Detail: fmt.Sprintf("%v", result.MainParts),
		})
	}

	for _, e := range entries {
		parent := e.Record.AssyFor
		if parent != "" && !present[parent] {
			result.DanglingParents[parent] = append(result.DanglingParents[parent], e.PartNumber())
		}
	}
	dangling := make([]entities.PartNumber, 0, len(result.DanglingParents))
	for parent := range result.DanglingParents {
		dangling = append(dangling, parent)
	}
	sort.Slice(dangling, func(i, j int) bool { return dangling[i] < dangling[j] })
	for _, parent := range dangling {
		result.Errors = append(result.Errors, &entities.StructuralDataError{
			Part:   parent,
			Reason: entities.ErrDanglingParent,
			Detail: fmt.Sprintf("referenced by %v", result.DanglingParents[parent]),
		})
	}

	adjacencyMap := v.buildAdjacencyMap(entries)
	cycles := v.detectCycles(adjacencyMap)
	result.HasCycles = len(cycles) > 0
	result.CyclePaths = cycles
	for _, cycle := range cycles {
		result.Errors = append(result.Errors, &entities.StructuralDataError{
			Part:   cycle[0],
			Reason: entities.ErrAssemblyCycle,
			Detail: fmt.Sprintf("%v", cycle),
		})
	}

	result.OutOfOrder = v.detectOutOfOrder(entries, present)
	for _, pn := range result.OutOfOrder {
		result.Errors = append(result.Errors, &entities.StructuralDataError{
			Part:   pn,
			Reason: entities.ErrParentNotMaterialized,
			Detail: "row precedes its assy_for parent",
		})
	}

	return result
}

// buildAdjacencyMap creates a map of parent -> children relationships for
// manufactured rows
func (v *RecordValidator) buildAdjacencyMap(entries []entities.RecordEntry) map[entities.PartNumber][]entities.PartNumber {
	adjacencyMap := make(map[entities.PartNumber][]entities.PartNumber)

	for _, e := range entries {
		if e.Record.IsMainPart() || e.Record.HardwareOrSupplies.Tagged() {
			continue
		}
		parent, child := e.Record.AssyFor, e.PartNumber()

		found := false
		for _, existing := range adjacencyMap[parent] {
			if existing == child {
				found = true
				break
			}
		}
		if !found {
			adjacencyMap[parent] = append(adjacencyMap[parent], child)
		}
	}

	return adjacencyMap
}

// detectCycles uses DFS to find cycles in the assy_for graph
func (v *RecordValidator) detectCycles(adjacencyMap map[entities.PartNumber][]entities.PartNumber) [][]entities.PartNumber {
	visited := make(map[entities.PartNumber]bool)
	recursionStack := make(map[entities.PartNumber]bool)
	cycles := make([][]entities.PartNumber, 0)

	parents := make([]entities.PartNumber, 0, len(adjacencyMap))
	for parent := range adjacencyMap {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	for _, parent := range parents {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacencyMap, visited, recursionStack, nil, &cycles)
		}
	}

	return cycles
}

// dfsDetectCycle performs depth-first search to detect cycles
func (v *RecordValidator) dfsDetectCycle(
	current entities.PartNumber,
	adjacencyMap map[entities.PartNumber][]entities.PartNumber,
	visited map[entities.PartNumber]bool,
	recursionStack map[entities.PartNumber]bool,
	path []entities.PartNumber,
	cycles *[][]entities.PartNumber,
) {
	visited[current] = true
	recursionStack[current] = true
	path = append(path, current)

	for _, child := range adjacencyMap[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacencyMap, visited, recursionStack, path, cycles)
			continue
		}
		if !recursionStack[child] {
			continue
		}
		for i, part := range path {
			if part == child {
				cycle := make([]entities.PartNumber, 0, len(path)-i+1)
				cycle = append(cycle, path[i:]...)
				cycle = append(cycle, child)
				*cycles = append(*cycles, cycle)
				break
			}
		}
	}

	recursionStack[current] = false
}

// detectOutOfOrder finds rows whose parent row appears later in the batch.
// Sub-assemblies need the parent link and hardware lines need the parent
// quote, so a single-pass build rejects both.
func (v *RecordValidator) detectOutOfOrder(entries []entities.RecordEntry, present map[entities.PartNumber]bool) []entities.PartNumber {
	seen := make(map[entities.PartNumber]bool, len(entries))
	var outOfOrder []entities.PartNumber
	for _, e := range entries {
		rec := e.Record
		needsParent := !rec.IsMainPart() && rec.HardwareOrSupplies != entities.ManufacturedTooling
		if needsParent && present[rec.AssyFor] && !seen[rec.AssyFor] {
			outOfOrder = append(outOfOrder, e.PartNumber())
		}
		seen[e.PartNumber()] = true
	}
	return outOfOrder
}

// OrderParentsFirst returns a copy of the batch in breadth-first order from the
// main part so every row follows its parent. Rows keep their relative input
// order within a level; rows that cannot be reached keep their input order at
// the end.
func (v *RecordValidator) OrderParentsFirst(records *entities.PartRecords) *entities.PartRecords {
	entries := records.Entries()
	children := make(map[entities.PartNumber][]entities.RecordEntry)
	var queue []entities.RecordEntry
	for _, e := range entries {
		if e.Record.IsMainPart() {
			queue = append(queue, e)
			continue
		}
		children[e.Record.AssyFor] = append(children[e.Record.AssyFor], e)
	}

	ordered := entities.NewPartRecords(len(entries))
	placed := make(map[entities.RecordKey]bool, len(entries))
	expanded := make(map[entities.PartNumber]bool)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if placed[e.Key] {
			continue
		}
		_ = ordered.Put(e.Key, e.Record)
		placed[e.Key] = true

		pn := e.PartNumber()
		if expanded[pn] {
			continue
		}
		expanded[pn] = true
		queue = append(queue, children[pn]...)
	}

	for _, e := range entries {
		if !placed[e.Key] {
			_ = ordered.Put(e.Key, e.Record)
		}
	}
	return ordered
}

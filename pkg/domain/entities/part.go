package entities

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// HardwareKind tags a row as a purchased or tooling line instead of a
// manufactured sub-assembly
type HardwareKind string

const (
	NotHardware         HardwareKind = ""
	Hardware            HardwareKind = "Hardware"
	Tooling             HardwareKind = "Tooling"
	ManufacturedTooling HardwareKind = "Tooling - Manufactured"
)

// ParseHardwareKind maps a spreadsheet cell to a HardwareKind, ignoring case
// and surrounding space
func ParseHardwareKind(s string) (HardwareKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range []HardwareKind{NotHardware, Hardware, Tooling, ManufacturedTooling} {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return NotHardware, fmt.Errorf("unknown hardware/tooling value %q", s)
}

// Tagged reports whether the row carries any hardware/tooling tag
func (k HardwareKind) Tagged() bool {
	return k != NotHardware
}

// Manufactured reports whether the row gets its own item and quote
func (k HardwareKind) Manufactured() bool {
	return k == NotHardware || k == ManufacturedTooling
}

// PartRecord is one normalized row of the requested-parts spreadsheet
type PartRecord struct {
	PartNumber         PartNumber `validate:"required"`
	Description        string
	Length             decimal.Decimal
	Thickness          decimal.Decimal
	Width              decimal.Decimal
	Weight             decimal.Decimal
	Material           string
	FinishCode         string
	HeatTreat          string
	DrawingNumber      string
	DrawingRevision    string
	QuantityRequired   Quantity `validate:"gte=0"`
	PLRevision         string
	AssyFor            PartNumber
	HardwareOrSupplies HardwareKind `validate:"oneof='' 'Hardware' 'Tooling' 'Tooling - Manufactured'"`
	StockLength        decimal.Decimal
	StockWidth         decimal.Decimal
	StockThickness     decimal.Decimal
}

// IsMainPart reports whether the row is the root the RFQ line item hangs from
func (r PartRecord) IsMainPart() bool {
	return r.AssyFor == ""
}

// DuplicateKeySeparator joins a repeated part number and its occurrence counter
const DuplicateKeySeparator = "_____"

var duplicateSuffix = regexp.MustCompile(DuplicateKeySeparator + `\d+$`)

// RecordKey identifies a row in a PartRecords batch. It equals the part number
// except for repeated part numbers, which carry a "_____<n>" suffix.
type RecordKey string

// DisambiguatedKey returns the key given to the n-th repeat of a part number
func DisambiguatedKey(pn PartNumber, n int) RecordKey {
	return RecordKey(fmt.Sprintf("%s%s%d", pn, DuplicateKeySeparator, n))
}

// PartNumber strips any duplicate suffix to recover the logical part number
func (k RecordKey) PartNumber() PartNumber {
	if loc := duplicateSuffix.FindStringIndex(string(k)); loc != nil {
		return PartNumber(k[:loc[0]])
	}
	return PartNumber(k)
}

// IsDuplicate reports whether the key carries a duplicate suffix
func (k RecordKey) IsDuplicate() bool {
	return duplicateSuffix.MatchString(string(k))
}

// RecordEntry pairs a key with its row
type RecordEntry struct {
	Key    RecordKey
	Record PartRecord
}

// PartNumber returns the logical part number of the entry
func (e RecordEntry) PartNumber() PartNumber {
	return e.Key.PartNumber()
}

// PartRecords is an insertion-ordered mapping of keys to rows. Row order is the
// order the rows were read and is significant to the assembly build.
type PartRecords struct {
	keys  []RecordKey
	byKey map[RecordKey]PartRecord
}

// NewPartRecords creates an empty batch
func NewPartRecords(expectedRows int) *PartRecords {
	return &PartRecords{
		keys:  make([]RecordKey, 0, expectedRows),
		byKey: make(map[RecordKey]PartRecord, expectedRows),
	}
}

// Add appends a row keyed by its part number, disambiguating repeats
func (p *PartRecords) Add(rec PartRecord) RecordKey {
	key := RecordKey(rec.PartNumber)
	for n := 1; p.Has(key); n++ {
		key = DisambiguatedKey(rec.PartNumber, n)
	}
	p.keys = append(p.keys, key)
	p.byKey[key] = rec
	return key
}

// Put appends a row under an explicit key
func (p *PartRecords) Put(key RecordKey, rec PartRecord) error {
	if key == "" {
		return fmt.Errorf("record key cannot be empty")
	}
	if p.Has(key) {
		return fmt.Errorf("duplicate record key: %s", key)
	}
	p.keys = append(p.keys, key)
	p.byKey[key] = rec
	return nil
}

// Has reports whether key is present
func (p *PartRecords) Has(key RecordKey) bool {
	_, ok := p.byKey[key]
	return ok
}

// Get returns the row stored under key
func (p *PartRecords) Get(key RecordKey) (PartRecord, bool) {
	rec, ok := p.byKey[key]
	return rec, ok
}

// Len returns the number of rows
func (p *PartRecords) Len() int {
	return len(p.keys)
}

// Keys returns the keys in insertion order
func (p *PartRecords) Keys() []RecordKey {
	keys := make([]RecordKey, len(p.keys))
	copy(keys, p.keys)
	return keys
}

// Entries returns the rows in insertion order
func (p *PartRecords) Entries() []RecordEntry {
	entries := make([]RecordEntry, 0, len(p.keys))
	for _, key := range p.keys {
		entries = append(entries, RecordEntry{Key: key, Record: p.byKey[key]})
	}
	return entries
}

// MainParts returns every row with an empty assy_for
func (p *PartRecords) MainParts() []RecordEntry {
	var mains []RecordEntry
	for _, e := range p.Entries() {
		if e.Record.IsMainPart() {
			mains = append(mains, e)
		}
	}
	return mains
}

package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// PartNumberSequence allocates numbered part numbers such as the "05-<n>"
// hardware items
type PartNumberSequence struct {
	prefix  string
	pattern *regexp.Regexp
}

// NewPartNumberSequence creates a sequence for part numbers "<prefix><n>"
func NewPartNumberSequence(prefix string) *PartNumberSequence {
	return &PartNumberSequence{
		prefix:  prefix,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d+)$`),
	}
}

// NewHardwareSequence creates the sequence of generated hardware items
func NewHardwareSequence() *PartNumberSequence {
	return NewPartNumberSequence(entities.HardwarePartPrefix)
}

// Prefix returns the fixed part of the sequence
func (s *PartNumberSequence) Prefix() string {
	return s.prefix
}

// Parse extracts the number of a part number in the sequence
func (s *PartNumberSequence) Parse(pn entities.PartNumber) (int, error) {
	matches := s.pattern.FindStringSubmatch(string(pn))
	if len(matches) != 2 {
		return 0, fmt.Errorf("part number %s is not in sequence %s<n>", pn, s.prefix)
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid numeric portion in part number %s: %v", pn, err)
	}
	return n, nil
}

// Compare orders part numbers of the sequence numerically.
// Returns: -1 if a < b, 0 if equal, 1 if a > b
func (s *PartNumberSequence) Compare(a, b entities.PartNumber) int {
	if a == b {
		return 0
	}
	na, errA := s.Parse(a)
	nb, errB := s.Parse(b)
	if errA != nil || errB != nil {
		return strings.Compare(string(a), string(b))
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	return 0
}

// Next returns the part number after the highest one in existing.
// Part numbers outside the sequence are ignored; the first number is 1.
func (s *PartNumberSequence) Next(existing []entities.PartNumber) entities.PartNumber {
	var highest entities.PartNumber
	for _, pn := range existing {
		if _, err := s.Parse(pn); err != nil {
			continue
		}
		if highest == "" || s.Compare(pn, highest) > 0 {
			highest = pn
		}
	}

	n := 0
	if highest != "" {
		n, _ = s.Parse(highest)
	}
	return entities.PartNumber(fmt.Sprintf("%s%d", s.prefix, n+1))
}

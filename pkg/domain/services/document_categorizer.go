package services

import (
	"strings"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// categoryRule files a path under group when any pattern is a substring of the
// lower-cased path
type categoryRule struct {
	group    entities.DocumentGroup
	patterns []string
	basename []string // matched against the lower-cased file name only
}

// categoryRules are checked in order; the first match wins
var categoryRules = []categoryRule{
	{group: entities.PartsListDocuments, patterns: []string{"_pl_", "spdl", "psdl"}, basename: []string{"pl"}},
	{group: entities.DrawingDocuments, patterns: []string{"dwg", "drw"}},
	{group: entities.StepModelDocuments, patterns: []string{"step", "stp"}},
	{group: entities.SpecificationDocuments, patterns: []string{"zsp", "speco"}},
	{group: entities.CatiaModelDocuments, patterns: []string{".cat"}},
}

// CategorizeDocument returns the document group of a file path, or
// Uncategorized when no rule matches
func CategorizeDocument(path string) entities.DocumentGroup {
	lower := strings.ToLower(path)
	base := lower
	if i := strings.LastIndexAny(lower, `/\`); i >= 0 {
		base = lower[i+1:]
	}

	for _, rule := range categoryRules {
		for _, p := range rule.patterns {
			if strings.Contains(lower, p) {
				return rule.group
			}
		}
		for _, p := range rule.basename {
			if strings.Contains(base, p) {
				return rule.group
			}
		}
	}
	return entities.Uncategorized
}

package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// FinishRouterWriter is the part of the gateway the finish router builder writes through
type FinishRouterWriter interface {
	GetOrCreateItem(ctx context.Context, spec entities.ItemSpec) (entities.Handle, error)
	CreateRouter(ctx context.Context, item entities.Handle, label string) (entities.Handle, error)
	AttachRouterStep(ctx context.Context, step entities.RouterStep) error
}

// FinishRouter describes the router created for one finish item
type FinishRouter struct {
	Router entities.Handle
	Steps  []entities.Handle // finish-code items, step i+1 at index i
}

// FinishRouterBuilder routes the finish instructions of a part
type FinishRouterBuilder struct {
	writer FinishRouterWriter
	logger *zap.Logger
}

// NewFinishRouterBuilder creates a builder writing through writer
func NewFinishRouterBuilder(writer FinishRouterWriter, logger *zap.Logger) *FinishRouterBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinishRouterBuilder{
		writer: writer,
		logger: logger.Named("finish_router"),
	}
}

// SplitFinishCodes returns the non-blank lines of a finish specification.
// Line text is kept as written, apart from a CRLF line ending, since finish
// code items are looked up by exact identifier.
func SplitFinishCodes(finishSpec string) []string {
	var codes []string
	for _, line := range strings.Split(finishSpec, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			codes = append(codes, line)
		}
	}
	return codes
}

// AttachFinishes creates one router on finishItem labelled partLabel with a
// step per finish line, in line order starting at 1. Finish-code items are
// reused by identifier; the router is always new, even for an empty spec.
func (b *FinishRouterBuilder) AttachFinishes(
	ctx context.Context,
	finishSpec string,
	finishItem entities.Handle,
	partLabel string,
) (*FinishRouter, error) {
	if !finishItem.Valid() {
		return nil, &entities.ExternalLookupFailure{Operation: "attach finishes", Part: entities.PartNumber(partLabel)}
	}

	codes := SplitFinishCodes(finishSpec)
	steps := make([]entities.Handle, 0, len(codes))
	for _, code := range codes {
		spec, truncated := entities.NewFinishCodeItem(code)
		if truncated {
			b.logger.Warn("finish code truncated to ERP limits",
				zap.String("part_label", partLabel),
				zap.Int("identifier_limit", entities.MaxItemPartNumberLength),
				zap.Int("description_limit", entities.MaxItemDescriptionLength),
				zap.Int("length", len([]rune(code))))
		}

		item, err := b.writer.GetOrCreateItem(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to get or create finish code item %q: %w", spec.PartNumber, err)
		}
		if !item.Valid() {
			return nil, &entities.ExternalLookupFailure{Operation: "get or create finish code item", Part: spec.PartNumber}
		}
		steps = append(steps, item)
	}

	router, err := b.writer.CreateRouter(ctx, finishItem, partLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to create router for %s: %w", partLabel, err)
	}
	if !router.Valid() {
		return nil, &entities.ExternalLookupFailure{Operation: "create router", Part: entities.PartNumber(partLabel)}
	}
	b.logger.Debug("created router", zap.String("part_label", partLabel), zap.Int64("router", int64(router)))

	for i, item := range steps {
		step := entities.RouterStep{Item: item, Router: router, Sequence: i + 1}
		if err := b.writer.AttachRouterStep(ctx, step); err != nil {
			return nil, fmt.Errorf("failed to attach router step %d for %s: %w", step.Sequence, partLabel, err)
		}
	}

	return &FinishRouter{Router: router, Steps: steps}, nil
}

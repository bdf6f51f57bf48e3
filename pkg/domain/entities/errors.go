package entities

import (
	"errors"
	"fmt"
)

var (
	ErrNoMainPart            = errors.New("no main part")
	ErrMultipleMainParts     = errors.New("more than one main part")
	ErrParentNotMaterialized = errors.New("assy_for target not yet materialized")
	ErrDanglingParent        = errors.New("assy_for target not in batch")
	ErrAssemblyCycle         = errors.New("assy_for cycle")
	ErrMissingHandle         = errors.New("no handle returned")
	ErrTransient             = errors.New("transient gateway failure")
)

// StructuralDataError reports input that violates the one-root assembly tree
// shape. It is always fatal to the run.
type StructuralDataError struct {
	Part   PartNumber
	Reason error
	Detail string
}

func (e *StructuralDataError) Error() string {
	msg := "structural data error"
	if e.Part != "" {
		msg += fmt.Sprintf(" at part %s", e.Part)
	}
	msg += ": " + e.Reason.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *StructuralDataError) Unwrap() error {
	return e.Reason
}

// ExternalLookupFailure reports that the gateway, or a handle table filled from
// it, had no handle where one was required
type ExternalLookupFailure struct {
	Operation string
	Part      PartNumber
	Err       error
}

func (e *ExternalLookupFailure) Error() string {
	msg := "external lookup failed in " + e.Operation
	if e.Part != "" {
		msg += fmt.Sprintf(" for part %s", e.Part)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalLookupFailure) Unwrap() error {
	if e.Err == nil {
		return ErrMissingHandle
	}
	return e.Err
}

// IsTransient reports whether err was classified as a retryable gateway failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

package events

import (
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

const (
	RunStartedEvent   = "run.started"
	RunProgressEvent  = "run.progress"
	RunCompletedEvent = "run.completed"
	RunFailedEvent    = "run.failed"

	PartQuotedEvent     = "part.quoted"
	BOMAttachedEvent    = "bom.attached"
	AssemblyBuiltEvent  = "assembly.built"
	DocumentStoredEvent = "document.stored"
	RFQResetEvent       = "rfq.reset"
	RetryScheduledEvent = "retry.scheduled"
)

type RunStarted struct {
	Sheet   string          `json:"sheet"`
	Records int             `json:"records"`
	Update  bool            `json:"update"`
	RFQ     entities.Handle `json:"rfq,omitempty"`
}

// RunProgress carries the completion percentage of a run, 0 to 100
type RunProgress struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

type RunCompleted struct {
	RFQ       entities.Handle `json:"rfq"`
	LineItems int             `json:"line_items"`
	Links     int             `json:"links"`
}

type RunFailed struct {
	Error string `json:"error"`
}

type PartQuoted struct {
	Key   entities.RecordKey `json:"key"`
	Item  entities.Handle    `json:"item"`
	Quote entities.Handle    `json:"quote"`
}

type BOMAttached struct {
	Key      entities.RecordKey    `json:"key"`
	Kind     entities.HardwareKind `json:"kind,omitempty"`
	Quote    entities.Handle       `json:"quote"`
	Item     entities.Handle       `json:"item"`
	Sequence int                   `json:"sequence"`
}

type AssemblyBuilt struct {
	LineItems int `json:"line_items"`
	Links     int `json:"links"`
	Skipped   int `json:"skipped"`
}

type DocumentStored struct {
	Path  string                 `json:"path"`
	Group entities.DocumentGroup `json:"group"`
	RFQ   entities.Handle        `json:"rfq,omitempty"`
	Item  entities.Handle        `json:"item,omitempty"`
}

type RFQReset struct {
	RFQ entities.Handle `json:"rfq"`
}

type RetryScheduled struct {
	Attempt int    `json:"attempt"`
	Error   string `json:"error"`
}

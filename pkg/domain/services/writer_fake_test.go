package services

import (
	"context"
	"errors"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

type writerCall struct {
	op    string
	line  entities.RFQLineItem
	link  entities.AssemblyLink
	spec  entities.ItemSpec
	step  entities.RouterStep
	item  entities.Handle
	label string
	out   entities.Handle
}

// recordingWriter implements AssemblyWriter and FinishRouterWriter, handing out
// increasing handles and remembering every call in order
type recordingWriter struct {
	next   entities.Handle
	calls  []writerCall
	items  map[entities.PartNumber]entities.Handle
	failOn string
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{
		next:  1000,
		items: make(map[entities.PartNumber]entities.Handle),
	}
}

var errWriterFailed = errors.New("writer failed")

func (w *recordingWriter) handle() entities.Handle {
	w.next++
	return w.next
}

func (w *recordingWriter) CreateRFQLineItem(_ context.Context, line entities.RFQLineItem) (entities.Handle, error) {
	if w.failOn == "line" {
		return entities.NoHandle, errWriterFailed
	}
	h := w.handle()
	w.calls = append(w.calls, writerCall{op: "line", line: line, out: h})
	return h, nil
}

func (w *recordingWriter) CreateAssemblyLink(_ context.Context, link entities.AssemblyLink) (entities.Handle, error) {
	if w.failOn == "link" {
		return entities.NoHandle, errWriterFailed
	}
	h := w.handle()
	w.calls = append(w.calls, writerCall{op: "link", link: link, out: h})
	return h, nil
}

func (w *recordingWriter) GetOrCreateItem(_ context.Context, spec entities.ItemSpec) (entities.Handle, error) {
	if w.failOn == "item" {
		return entities.NoHandle, errWriterFailed
	}
	h, ok := w.items[spec.PartNumber]
	if !ok {
		h = w.handle()
		w.items[spec.PartNumber] = h
	}
	w.calls = append(w.calls, writerCall{op: "item", spec: spec, out: h})
	return h, nil
}

func (w *recordingWriter) CreateRouter(_ context.Context, item entities.Handle, label string) (entities.Handle, error) {
	if w.failOn == "router" {
		return entities.NoHandle, errWriterFailed
	}
	h := w.handle()
	w.calls = append(w.calls, writerCall{op: "router", item: item, label: label, out: h})
	return h, nil
}

func (w *recordingWriter) AttachRouterStep(_ context.Context, step entities.RouterStep) error {
	w.calls = append(w.calls, writerCall{op: "step", step: step})
	return nil
}

func (w *recordingWriter) callsOf(op string) []writerCall {
	var out []writerCall
	for _, c := range w.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

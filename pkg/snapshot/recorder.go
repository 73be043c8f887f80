package snapshot

import (
	"context"
	"fmt"

	"github.com/kasuganosora/gridengine/pkg/actionsummary"
)

// Recorder appends every stored action of a Summary to a Sink in order,
// assigning each its own monotonic sequence number. Callers invoke Record
// once per applied user action, typically right after ApplyDataAction.
type Recorder struct {
	sink Sink
	next int64
}

// NewRecorder wraps sink for sequential snapshot recording.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record appends sum's stored actions (the ones that belong in the undo
// log proper, per spec.md §4.8) to the sink.
func (r *Recorder) Record(ctx context.Context, sum *actionsummary.Summary) error {
	for _, act := range sum.StoredActions() {
		if err := r.sink.Append(ctx, r.next, act); err != nil {
			return fmt.Errorf("snapshot: record action %s: %w", act.Variant(), err)
		}
		r.next++
	}
	return nil
}

// Close releases the underlying sink.
func (r *Recorder) Close() error {
	return r.sink.Close()
}

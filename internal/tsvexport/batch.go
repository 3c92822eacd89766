package tsvexport

// BatchTracker accumulates exported table names in dependency order and
// reports when a validation pass is due. Since tables are only ever handed
// to Add in dependency order (the same order the dependency resolver
// produces), every table's full dependency closure has already exported by
// the time Add(table) is called for it — so the only remaining condition to
// track is the pending batch size, grounded on the original engine's
// archive loop's idx > 10 check.
type BatchTracker struct {
	threshold int
	pending   []string
}

// NewBatchTracker builds a tracker that flushes once more than threshold
// tables have accumulated since the last flush. threshold <= 0 uses
// DefaultBatchThreshold.
func NewBatchTracker(threshold int) *BatchTracker {
	if threshold <= 0 {
		threshold = DefaultBatchThreshold
	}
	return &BatchTracker{threshold: threshold}
}

// Add records table as exported. If the pending batch now exceeds the
// threshold, Add returns the accumulated table names and resets the batch;
// otherwise it returns nil.
func (b *BatchTracker) Add(table string) []string {
	b.pending = append(b.pending, table)
	if len(b.pending) > b.threshold {
		return b.drain()
	}
	return nil
}

// Flush returns and clears any tables still pending, for the run's final
// validation pass once the export pipeline finishes.
func (b *BatchTracker) Flush() []string {
	if len(b.pending) == 0 {
		return nil
	}
	return b.drain()
}

func (b *BatchTracker) drain() []string {
	out := b.pending
	b.pending = nil
	return out
}

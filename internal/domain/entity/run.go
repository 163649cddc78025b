package entity

import (
	"time"

	"github.com/google/uuid"
)

// SkipRecord documents a source (or single operation) abandoned for the
// run after exhausting retries. Collected by the retry/skip executor and
// surfaced in the final RunSummary.
type SkipRecord struct {
	SourceID  string
	Operation string
	Reason    string
	Attempts  int
	ErrorKind string
	Timestamp time.Time
}

// SourceStats holds the per-source counters the batch processor
// accumulates across a run. discovered >= fetched+failed >= 0 and
// discovered <= requestedCount hold for every source in a run.
type SourceStats struct {
	Discovered int
	Fetched    int
	Failed     int
	Skipped    int
}

// RunSummary aggregates per-source counts, the cross-source duplicate
// count, and every SkipRecord produced during a single BatchProcessor run.
// Aggregation is ordering-independent: any merge order over per-source
// results produces the same summary.
type RunSummary struct {
	// RunID correlates every log line, skip record, and metric emitted by
	// one batch run.
	RunID string

	PerSource  map[string]*SourceStats
	Skips      []SkipRecord
	Duplicates int
}

// NewRunSummary returns an empty summary ready for accumulation, tagged
// with a fresh run ID.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		PerSource: make(map[string]*SourceStats),
	}
}

func (s *RunSummary) statsFor(sourceID string) *SourceStats {
	st, ok := s.PerSource[sourceID]
	if !ok {
		st = &SourceStats{}
		s.PerSource[sourceID] = st
	}
	return st
}

// RecordDiscovered records that a source yielded n candidate articles
// (before cross-source deduplication).
func (s *RunSummary) RecordDiscovered(sourceID string, n int) {
	s.statsFor(sourceID).Discovered += n
}

// RecordFetched records a single successful article fetch for a source.
func (s *RunSummary) RecordFetched(sourceID string) {
	s.statsFor(sourceID).Fetched++
}

// RecordFailed records a single failed article fetch for a source.
func (s *RunSummary) RecordFailed(sourceID string) {
	s.statsFor(sourceID).Failed++
}

// RecordSkip records a source-level skip (discovery exhausted retries) and
// appends the SkipRecord to the run-wide list.
func (s *RunSummary) RecordSkip(rec SkipRecord) {
	s.statsFor(rec.SourceID).Skipped++
	s.Skips = append(s.Skips, rec)
}

// RecordDuplicate records one cross-source duplicate URL elided during
// Phase 2.
func (s *RunSummary) RecordDuplicate() {
	s.Duplicates++
}

// SuccessRate returns the fraction of discovered-and-attempted articles
// that were fetched successfully across the whole run. Returns 0 when
// nothing was attempted.
func (s *RunSummary) SuccessRate() float64 {
	var fetched, attempted int
	for _, st := range s.PerSource {
		fetched += st.Fetched
		attempted += st.Fetched + st.Failed
	}
	if attempted == 0 {
		return 0
	}
	return float64(fetched) / float64(attempted)
}

package batch

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/capcat/capcat/internal/domain/entity"
)

// FormatSummary renders the end-of-run report: one line per source with
// its counters and success rate, then the skipped sources grouped with
// their error kind and attempt count, then the cross-source duplicate
// total.
func FormatSummary(s *entity.RunSummary) string {
	var b strings.Builder

	ids := make([]string, 0, len(s.PerSource))
	for id := range s.PerSource {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("Run summary:\n")
	for _, id := range ids {
		st := s.PerSource[id]
		attempted := st.Fetched + st.Failed
		rate := 0.0
		if attempted > 0 {
			rate = float64(st.Fetched) / float64(attempted) * 100
		}
		fmt.Fprintf(&b, "  %-24s successful=%d failed=%d skipped=%d (%.0f%%)\n",
			id, st.Fetched, st.Failed, st.Skipped, rate)
	}

	if len(s.Skips) > 0 {
		b.WriteString("Skipped sources:\n")
		for _, rec := range s.Skips {
			fmt.Fprintf(&b, "  %-24s %s (attempts=%d)\n", rec.SourceID, rec.ErrorKind, rec.Attempts)
		}
	}

	if s.Duplicates > 0 {
		fmt.Fprintf(&b, "Cross-source duplicates elided: %d\n", s.Duplicates)
	}

	return b.String()
}

func (p *Processor) logSummary(s *entity.RunSummary) {
	for id, st := range s.PerSource {
		attempted := st.Fetched + st.Failed
		rate := 0.0
		if attempted > 0 {
			rate = float64(st.Fetched) / float64(attempted)
		}
		p.logger.Info("source summary",
			slog.String("source_id", id),
			slog.Int("discovered", st.Discovered),
			slog.Int("successful", st.Fetched),
			slog.Int("failed", st.Failed),
			slog.Int("skipped", st.Skipped),
			slog.Float64("success_rate", rate))
	}
	p.logger.Info("run complete",
		slog.String("run_id", s.RunID),
		slog.Int("sources", len(s.PerSource)),
		slog.Int("skips", len(s.Skips)),
		slog.Int("duplicates_elided", s.Duplicates),
		slog.Float64("success_rate", s.SuccessRate()))
}

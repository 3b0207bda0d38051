package unify

import "sort"

// SourceReport counts what happened to one source's records.
type SourceReport struct {
	SourceID   string `json:"source_id"`
	Read       int    `json:"read"`
	Samples    int    `json:"samples"`
	Mapped     int    `json:"mapped"`
	Unmapped   int    `json:"unmapped"`
	Malformed  int    `json:"malformed"`
	Duplicates int    `json:"duplicates"`
	// UnmappedLabels counts each distinct raw label that had no table entry.
	UnmappedLabels map[string]int `json:"unmapped_labels,omitempty"`
}

// UnmappedRatio is the share of well-formed records whose label was unmapped.
func (r SourceReport) UnmappedRatio() float64 {
	n := r.Mapped + r.Unmapped
	if n == 0 {
		return 0
	}
	return float64(r.Unmapped) / float64(n)
}

// SourceFailure records a source whose batch was discarded.
type SourceFailure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// Report summarises a unification run.
type Report struct {
	TotalRead    int                     `json:"total_read"`
	TotalSamples int                     `json:"total_samples"`
	Sources      map[string]SourceReport `json:"sources"`
	Failed       []SourceFailure         `json:"failed,omitempty"`
}

// SourceIDs returns the reported sources in sorted order.
func (r Report) SourceIDs() []string {
	ids := make([]string, 0, len(r.Sources))
	for id := range r.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Malformed totals malformed records across sources.
func (r Report) Malformed() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Malformed
	}
	return n
}

// Unmapped totals unmapped samples across sources that unified.
func (r Report) Unmapped() int {
	n := 0
	for _, s := range r.Sources {
		if !r.failed(s.SourceID) {
			n += s.Unmapped
		}
	}
	return n
}

func (r Report) failed(sourceID string) bool {
	for _, f := range r.Failed {
		if f.SourceID == sourceID {
			return true
		}
	}
	return false
}

// Package validator checks mapping tables against the raw labels a source
// actually produces, and sanity-checks fairness BOMs before they are
// written.
package validator

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
)

// DefaultCeiling matches the unifier's default unmapped ceiling.
const DefaultCeiling = 0.01

// Options tune a coverage check.
type Options struct {
	// Ceiling is the tolerated share of unmapped records.
	Ceiling float64
}

// LabelCount is a raw label with its record count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Coverage reports how well a table covers observed labels.
type Coverage struct {
	Source  string `json:"source"`
	Version string `json:"version"`
	Valid   bool   `json:"valid"`
	// Coverage is the share of observed records whose label maps.
	Coverage float64      `json:"coverage"`
	Records  int          `json:"records"`
	Mapped   int          `json:"mapped"`
	Unmapped []LabelCount `json:"unmapped,omitempty"`
	// Unused lists table entries no record used.
	Unused   []string `json:"unused,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Observe counts normalised raw labels.
func Observe(records iter.Seq[dataset.Record]) map[string]int {
	out := map[string]int{}
	for r := range records {
		if key := labelmap.Normalize(r.RawLabel); key != "" {
			out[key]++
		}
	}
	return out
}

// Check tests a table against a list of observed raw labels, one entry per
// record.
func Check(t labelmap.Table, observed []string) Coverage {
	counts := map[string]int{}
	for _, raw := range observed {
		if key := labelmap.Normalize(raw); key != "" {
			counts[key]++
		}
	}
	return CheckTable(t, counts, Options{})
}

// CheckTable compares table entries with observed label counts.
func CheckTable(t labelmap.Table, observed map[string]int, opts Options) Coverage {
	if opts.Ceiling <= 0 || opts.Ceiling > 1 {
		opts.Ceiling = DefaultCeiling
	}
	res := Coverage{Source: t.Source, Version: t.Version}

	table, err := t.Validate()
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	used := map[string]bool{}
	for raw, n := range observed {
		key := labelmap.Normalize(raw)
		res.Records += n
		if _, ok := table.Labels[key]; ok {
			res.Mapped += n
			used[key] = true
			continue
		}
		res.Unmapped = append(res.Unmapped, LabelCount{Label: key, Count: n})
	}
	sort.Slice(res.Unmapped, func(i, j int) bool {
		if res.Unmapped[i].Count != res.Unmapped[j].Count {
			return res.Unmapped[i].Count > res.Unmapped[j].Count
		}
		return res.Unmapped[i].Label < res.Unmapped[j].Label
	})
	for _, raw := range table.RawLabels() {
		if !used[raw] {
			res.Unused = append(res.Unused, raw)
		}
	}

	if res.Records == 0 {
		res.Warnings = append(res.Warnings, "no records observed")
		res.Valid = true
		return res
	}
	res.Coverage = float64(res.Mapped) / float64(res.Records)
	if unmappedShare := 1 - res.Coverage; unmappedShare > opts.Ceiling {
		res.Errors = append(res.Errors, fmt.Sprintf("%.2f%% of records unmapped (ceiling %.2f%%): %s",
			unmappedShare*100, opts.Ceiling*100, joinLabels(res.Unmapped, 5)))
	} else if len(res.Unmapped) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d unmapped labels within ceiling: %s", len(res.Unmapped), joinLabels(res.Unmapped, 5)))
	}
	if len(res.Unused) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d table entries never observed", len(res.Unused)))
	}
	res.Valid = len(res.Errors) == 0
	return res
}

func joinLabels(labels []LabelCount, limit int) string {
	parts := make([]string, 0, min(limit, len(labels)))
	for i, l := range labels {
		if i == limit {
			parts = append(parts, fmt.Sprintf("… %d more", len(labels)-limit))
			break
		}
		parts = append(parts, fmt.Sprintf("%q×%d", l.Label, l.Count))
	}
	return strings.Join(parts, ", ")
}

package cmd

import (
	"fmt"
	"sort"

	"github.com/idlab-discover/FairDerm-cli/internal/alert"
	"github.com/idlab-discover/FairDerm-cli/internal/balance"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
	"github.com/idlab-discover/FairDerm-cli/internal/validator"
)

// topUnmapped caps the unmapped labels listed per source.
const topUnmapped = 5

func toUnifyReport(version, output string, r unify.Report, counts map[dataset.Label]int) ui.UnifyReport {
	out := ui.UnifyReport{
		Version:      version,
		Output:       output,
		TotalRead:    r.TotalRead,
		TotalSamples: r.TotalSamples,
		Counts:       map[string]int{},
	}
	for l, n := range counts {
		out.Counts[string(l)] = n
	}
	failures := map[string]string{}
	for _, f := range r.Failed {
		failures[f.SourceID] = f.Reason
	}
	for _, id := range r.SourceIDs() {
		s := r.Sources[id]
		out.Sources = append(out.Sources, ui.SourceRow{
			ID:          id,
			Read:        s.Read,
			Samples:     s.Samples,
			Mapped:      s.Mapped,
			Unmapped:    s.Unmapped,
			Malformed:   s.Malformed,
			Duplicates:  s.Duplicates,
			Failure:     failures[id],
			TopUnmapped: topLabels(s.UnmappedLabels, topUnmapped),
		})
	}
	return out
}

// topLabels renders the most frequent labels as "label×count".
func topLabels(counts map[string]int, limit int) []string {
	type lc struct {
		label string
		n     int
	}
	all := make([]lc, 0, len(counts))
	for l, n := range counts {
		all = append(all, lc{l, n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].n != all[j].n {
			return all[i].n > all[j].n
		}
		return all[i].label < all[j].label
	})
	var out []string
	for i, x := range all {
		if i == limit {
			break
		}
		out = append(out, fmt.Sprintf("%s×%d", x.label, x.n))
	}
	return out
}

func toBalancePlan(p balance.Plan) ui.BalancePlan {
	out := ui.BalancePlan{
		Total:    p.Total,
		Majority: string(p.Majority),
		Ratio:    p.Ratio(),
		Excluded: p.Excluded,
	}
	for _, l := range dataset.Classes() {
		out.Classes = append(out.Classes, ui.ClassRow{
			Label:        string(l),
			Count:        p.Counts[l],
			Weight:       p.Weights[l],
			Augmentation: p.Augmentation[l],
			Effective:    p.Effective(l),
		})
	}
	return out
}

func toFairnessReport(ev *fairness.Evaluation, groupBy string, a *alert.BiasAlert) ui.FairnessReport {
	out := ui.FairnessReport{
		Snapshot:     ev.Snapshot,
		GroupBy:      groupBy,
		Total:        ev.Total,
		Used:         ev.Used,
		Malformed:    ev.Malformed,
		Unverifiable: ev.Unverifiable,
		Ungrouped:    ev.Ungrouped,
		Warnings:     ev.Warnings,
	}
	results := append([]fairness.Result(nil), ev.Results...)
	if ev.AccuracyDisparity.Metric != "" {
		results = append(results, ev.AccuracyDisparity)
	}
	for _, r := range results {
		out.Metrics = append(out.Metrics, toMetricRow(r))
	}
	for _, p := range ev.Performance {
		out.Performance = append(out.Performance, ui.PerformanceRow{
			Group:          p.Group,
			Size:           p.Size,
			Accuracy:       p.Accuracy.String(),
			Precision:      p.Precision.String(),
			Recall:         p.Recall.String(),
			F1:             p.F1.String(),
			ErrorRate:      p.ErrorRate.String(),
			MeanConfidence: p.Confidence.Mean.String(),
		})
	}
	if a != nil {
		view := &ui.AlertView{
			Severity:      string(a.Severity),
			Overconfident: a.Overconfident.Count,
			Actions:       a.Actions,
			Narrative:     a.Narrative,
		}
		for _, t := range a.TriggeredMetrics {
			view.Triggered = append(view.Triggered, fmt.Sprintf("%s=%s (%s)", t.Metric, t.Score, t.Status))
		}
		for _, ex := range a.Overconfident.Examples {
			view.Examples = append(view.Examples, fmt.Sprintf("%s %s group=%s confidence=%.3f", ex.Timestamp, ex.SampleID, ex.Group, ex.Confidence))
		}
		out.Alert = view
	}
	return out
}

func toMetricRow(r fairness.Result) ui.MetricRow {
	row := ui.MetricRow{
		Name:     r.Metric,
		Score:    r.Score.String(),
		Status:   string(r.Status),
		Pass:     r.Threshold.Pass,
		Floor:    r.Threshold.Floor,
		Reason:   r.Reason,
		HasRatio: r.Score.Valid(),
		Excluded: r.InsufficientGroups,
	}
	if row.HasRatio {
		row.Ratio = float64(r.Score)
	}
	names := make([]string, 0, len(r.Groups))
	for g := range r.Groups {
		names = append(names, g)
	}
	sort.Strings(names)
	for _, g := range names {
		row.Groups = append(row.Groups, ui.GroupRow{Name: g, Score: r.Groups[g].String(), Size: r.GroupSizes[g]})
	}
	return row
}

func toCoverageReport(c validator.Coverage) ui.CoverageReport {
	out := ui.CoverageReport{
		Source:   c.Source,
		Version:  c.Version,
		Valid:    c.Valid,
		Coverage: c.Coverage,
		Records:  c.Records,
		Mapped:   c.Mapped,
		Unused:   c.Unused,
		Errors:   c.Errors,
		Warnings: c.Warnings,
	}
	for _, u := range c.Unmapped {
		out.Unmapped = append(out.Unmapped, ui.LabelRow{Label: u.Label, Count: u.Count})
	}
	return out
}

func toTableRows(tables []labelmap.Table) []ui.TableRow {
	out := make([]ui.TableRow, 0, len(tables))
	for _, t := range tables {
		row := ui.TableRow{
			Source:      t.Source,
			Version:     t.Version,
			Description: t.Description,
			Labels:      make(map[string]string, len(t.Labels)),
		}
		for raw, l := range t.Labels {
			row.Labels[raw] = string(l)
		}
		for name := range t.Attributes {
			row.Attributes = append(row.Attributes, name)
		}
		sort.Strings(row.Attributes)
		out = append(out, row)
	}
	return out
}

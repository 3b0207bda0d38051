// Package fairness measures whether a classifier's predictions are
// equitable across demographic groups.
//
// Evaluation always runs over a closed snapshot of the prediction log.
// Groups are processed in sorted order and nothing is random, so the same
// snapshot and options give bit-identical results.
package fairness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// DefaultMinGroupSize is the smallest group a metric will judge.
const DefaultMinGroupSize = 10

// DefaultThresholds returns the standard per-metric boundaries.
func DefaultThresholds() map[string]Threshold {
	return map[string]Threshold{
		DisparateImpact:    {Pass: 0.80, Floor: 0.80},
		DemographicParity:  {Pass: 0.95, Floor: 0.80},
		EqualizedOdds:      {Pass: 0.95, Floor: 0.80},
		IndividualFairness: {Pass: 0.95, Floor: 0.90},
	}
}

// Options tune an evaluation.
type Options struct {
	// MinGroupSize is the smallest group a metric judges. Zero or less
	// means DefaultMinGroupSize.
	MinGroupSize int
	// Thresholds override the defaults per metric name.
	Thresholds map[string]Threshold
	// Metrics restricts the run to these names. Empty means all.
	Metrics []string
}

// DefaultOptions returns the standard options.
func DefaultOptions() Options {
	return Options{MinGroupSize: DefaultMinGroupSize, Thresholds: DefaultThresholds()}
}

// Result is one metric's verdict.
type Result struct {
	Metric             string           `json:"metric"`
	Score              Score            `json:"score"`
	Status             Status           `json:"status"`
	Threshold          Threshold        `json:"threshold"`
	Groups             map[string]Score `json:"group_breakdown"`
	GroupSizes         map[string]int   `json:"group_sizes"`
	InsufficientGroups []string         `json:"insufficient_groups,omitempty"`
	Reason             string           `json:"reason,omitempty"`
	Details            map[string]Score `json:"details,omitempty"`
}

// Evaluation is the output of one run.
type Evaluation struct {
	Snapshot     string   `json:"snapshot"`
	MinGroupSize int      `json:"min_group_size"`
	Total        int      `json:"total_records"`
	Used         int      `json:"used_records"`
	Malformed    int      `json:"malformed_records"`
	Unverifiable int      `json:"unverifiable_records"`
	// Ungrouped counts valid records whose group is unknown; they are left
	// out of every group comparison.
	Ungrouped int      `json:"ungrouped_records"`
	Warnings  []string `json:"warnings,omitempty"`
	Results   []Result `json:"results"`
	// Performance is the per-group classification quality, sorted by group.
	Performance []GroupPerformance `json:"group_performance"`
	// AccuracyDisparity compares per-group accuracy.
	AccuracyDisparity Result `json:"accuracy_disparity"`
}

// Result returns the result for metric, if it was computed.
func (e *Evaluation) Result(metric string) (Result, bool) {
	for _, r := range e.Results {
		if r.Metric == metric {
			return r, true
		}
	}
	return Result{}, false
}

// Evaluate runs the selected metrics over log.
func Evaluate(log []Record, opts Options) (*Evaluation, error) {
	return EvaluateContext(context.Background(), log, opts)
}

// EvaluateContext is Evaluate with cancellation.
func EvaluateContext(ctx context.Context, log []Record, opts Options) (*Evaluation, error) {
	if opts.MinGroupSize <= 0 {
		opts.MinGroupSize = DefaultMinGroupSize
	}
	metrics, err := selectMetrics(opts.Metrics)
	if err != nil {
		return nil, err
	}
	thresholds := DefaultThresholds()
	for k, v := range opts.Thresholds {
		thresholds[k] = v
	}

	ev := &Evaluation{Snapshot: Snapshot(log), MinGroupSize: opts.MinGroupSize, Total: len(log)}
	valid := make([]Record, 0, len(log))
	for i, r := range log {
		if err := r.Validate(); err != nil {
			ev.Malformed++
			logf("", "skipping record %d: %v", i, err)
			continue
		}
		r.Group = strings.TrimSpace(r.Group)
		if strings.EqualFold(r.Group, dataset.Unknown) {
			ev.Ungrouped++
			continue
		}
		if _, ok := r.Truth(); !ok {
			ev.Unverifiable++
		}
		valid = append(valid, r)
	}
	ev.Used = len(valid)
	if len(valid) == 0 {
		return ev, apperr.ErrEmptyInput
	}
	if ev.Unverifiable > 0 {
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("%d of %d records have no ground truth; equalized odds ignores them", ev.Unverifiable, ev.Used))
	}
	if ev.Malformed > 0 {
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("%d malformed records skipped", ev.Malformed))
	}
	if ev.Ungrouped > 0 {
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("%d records with group %q left out of group comparisons", ev.Ungrouped, dataset.Unknown))
	}

	tallies, err := Tally(ctx, valid)
	if err != nil {
		return nil, err
	}
	for _, m := range metrics {
		o := m.Compute(tallies, opts.MinGroupSize)
		th := thresholds[m.Name()]
		sort.Strings(o.Insufficient)
		res := Result{
			Metric:             m.Name(),
			Score:              o.Score,
			Status:             th.Classify(o.Score),
			Threshold:          th,
			Groups:             o.Groups,
			GroupSizes:         o.Sizes,
			InsufficientGroups: o.Insufficient,
			Reason:             o.Reason,
			Details:            o.Details,
		}
		logf(res.Metric, "score %s status %s (%d groups, %d insufficient)", res.Score, res.Status, len(res.Groups), len(res.InsufficientGroups))
		ev.Results = append(ev.Results, res)
	}

	ev.Performance = make([]GroupPerformance, 0, len(tallies))
	for _, t := range tallies {
		ev.Performance = append(ev.Performance, t.Performance())
	}
	accTh := DefaultAccuracyThreshold
	if th, ok := opts.Thresholds[AccuracyDisparity]; ok {
		accTh = th
	}
	ev.AccuracyDisparity = accuracyDisparity(tallies, opts.MinGroupSize, accTh)
	sort.Strings(ev.AccuracyDisparity.InsufficientGroups)
	logf(AccuracyDisparity, "score %s status %s", ev.AccuracyDisparity.Score, ev.AccuracyDisparity.Status)
	return ev, nil
}

func selectMetrics(names []string) ([]Metric, error) {
	if len(names) == 0 {
		return Metrics(), nil
	}
	want := map[string]bool{}
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			return nil, apperr.Userf("unknown fairness metric %q (known: %v)", n, MetricNames())
		}
		want[n] = true
	}
	var out []Metric
	for _, m := range builtin {
		if want[m.Name()] {
			out = append(out, m)
		}
	}
	return out, nil
}

package fairness

import (
	"fmt"
	"math"
	"sort"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// Metric names.
const (
	DisparateImpact    = "disparate_impact"
	EqualizedOdds      = "equalized_odds"
	DemographicParity  = "demographic_parity"
	IndividualFairness = "individual_fairness"
)

// Outcome is a metric's raw computation, before thresholds apply.
type Outcome struct {
	Score  Score
	Groups map[string]Score
	// Sizes holds the record count each eligible group was judged on.
	Sizes        map[string]int
	Insufficient []string
	Reason       string
	Details      map[string]Score
}

// Metric computes one fairness measure over group tallies.
type Metric interface {
	Name() string
	Compute(tallies []GroupTally, minGroupSize int) Outcome
}

type metricFunc struct {
	name string
	fn   func([]GroupTally, int) Outcome
}

func (m metricFunc) Name() string { return m.name }

func (m metricFunc) Compute(t []GroupTally, minGroupSize int) Outcome { return m.fn(t, minGroupSize) }

var builtin = []Metric{
	metricFunc{DisparateImpact, disparateImpact},
	metricFunc{EqualizedOdds, equalizedOdds},
	metricFunc{DemographicParity, demographicParity},
	metricFunc{IndividualFairness, individualFairness},
}

// Metrics returns the built-in metrics in report order.
func Metrics() []Metric { return append([]Metric(nil), builtin...) }

// MetricNames lists the built-in metric names in report order.
func MetricNames() []string {
	out := make([]string, len(builtin))
	for i, m := range builtin {
		out[i] = m.Name()
	}
	return out
}

// Lookup returns the built-in metric called name.
func Lookup(name string) (Metric, bool) {
	for _, m := range builtin {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// eligible splits tallies by size, where size picks the count to judge.
func eligible(tallies []GroupTally, minGroupSize int, size func(GroupTally) int) (ok []GroupTally, sizes map[string]int, excluded []string) {
	sizes = map[string]int{}
	for _, t := range tallies {
		n := size(t)
		if n < minGroupSize || n == 0 {
			excluded = append(excluded, t.Group)
			continue
		}
		ok = append(ok, t)
		sizes[t.Group] = n
	}
	return ok, sizes, excluded
}

func insufficient(o Outcome, format string, args ...any) Outcome {
	o.Score = NaN()
	o.Reason = fmt.Sprintf(format, args...)
	return o
}

func total(t GroupTally) int    { return t.N }
func verified(t GroupTally) int { return t.Verified }

func favorableRates(tallies []GroupTally, minGroupSize int) (Outcome, map[string]float64, float64, float64) {
	groups, sizes, excluded := eligible(tallies, minGroupSize, total)
	o := Outcome{Groups: map[string]Score{}, Sizes: sizes, Insufficient: excluded}
	if len(groups) < 2 {
		return insufficient(o, "%d eligible groups (need 2, min group size %d)", len(groups), minGroupSize), nil, 0, 0
	}
	rates := make(map[string]float64, len(groups))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		r := g.FavorableRate()
		rates[g.Group] = r
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	return o, rates, lo, hi
}

// disparateImpact is min/max of benign-prediction rates. Each group scores
// its rate relative to the most favoured group.
func disparateImpact(tallies []GroupTally, minGroupSize int) Outcome {
	o, rates, lo, hi := favorableRates(tallies, minGroupSize)
	if rates == nil {
		return o
	}
	if hi == 0 {
		o.Score = 1
		for g := range rates {
			o.Groups[g] = 1
		}
		return o
	}
	o.Score = Score(lo / hi)
	for g, r := range rates {
		o.Groups[g] = Score(r / hi)
	}
	return o
}

// demographicParity is min/max of benign-prediction rates, independent of
// ground truth. Each group reports its raw rate.
func demographicParity(tallies []GroupTally, minGroupSize int) Outcome {
	o, rates, lo, hi := favorableRates(tallies, minGroupSize)
	if rates == nil {
		return o
	}
	if hi == 0 {
		o.Score = 1
	} else {
		o.Score = Score(lo / hi)
	}
	for g, r := range rates {
		o.Groups[g] = Score(r)
	}
	o.Details = map[string]Score{"min_rate": Score(lo), "max_rate": Score(hi)}
	return o
}

type rateSpread struct {
	values map[string]float64
	lo, hi float64
}

func spreadOf(groups []GroupTally, rate func(GroupTally) (float64, bool)) rateSpread {
	s := rateSpread{values: map[string]float64{}, lo: math.Inf(1), hi: math.Inf(-1)}
	for _, g := range groups {
		v, ok := rate(g)
		if !ok {
			continue
		}
		s.values[g.Group] = v
		s.lo = math.Min(s.lo, v)
		s.hi = math.Max(s.hi, v)
	}
	return s
}

func (s rateSpread) comparable() bool { return len(s.values) >= 2 }

func (s rateSpread) gap() float64 { return s.hi - s.lo }

// deviation is the group's largest distance to any other group's rate.
func (s rateSpread) deviation(group string) (float64, bool) {
	v, ok := s.values[group]
	if !ok || !s.comparable() {
		return 0, false
	}
	return math.Max(v-s.lo, s.hi-v), true
}

// equalizedOdds is 1 - max(TPR gap, FPR gap) over groups with verified
// ground truth, malignant being the positive class.
func equalizedOdds(tallies []GroupTally, minGroupSize int) Outcome {
	groups, sizes, excluded := eligible(tallies, minGroupSize, verified)
	o := Outcome{Groups: map[string]Score{}, Sizes: sizes, Insufficient: excluded}
	if len(groups) < 2 {
		return insufficient(o, "%d groups with enough verified records (need 2, min group size %d)", len(groups), minGroupSize)
	}

	tpr := spreadOf(groups, GroupTally.TPR)
	fpr := spreadOf(groups, GroupTally.FPR)
	if !tpr.comparable() && !fpr.comparable() {
		return insufficient(o, "no rate is defined for two or more groups")
	}

	o.Details = map[string]Score{"tpr_gap": NaN(), "fpr_gap": NaN()}
	worst := 0.0
	if tpr.comparable() {
		worst = math.Max(worst, tpr.gap())
		o.Details["tpr_gap"] = Score(tpr.gap())
	}
	if fpr.comparable() {
		worst = math.Max(worst, fpr.gap())
		o.Details["fpr_gap"] = Score(fpr.gap())
	}
	o.Score = Score(1 - worst)

	for _, g := range groups {
		d1, ok1 := tpr.deviation(g.Group)
		d2, ok2 := fpr.deviation(g.Group)
		if !ok1 && !ok2 {
			o.Groups[g.Group] = NaN()
			continue
		}
		o.Groups[g.Group] = Score(1 - math.Max(d1, d2))
	}
	return o
}

// individualFairness compares how confident the model is per group for the
// same predicted label: 1 - the largest population variance of per-group
// mean confidence across labels.
func individualFairness(tallies []GroupTally, minGroupSize int) Outcome {
	groups, sizes, excluded := eligible(tallies, minGroupSize, total)
	o := Outcome{Groups: map[string]Score{}, Sizes: sizes, Insufficient: excluded}
	if len(groups) < 2 {
		return insufficient(o, "%d eligible groups (need 2, min group size %d)", len(groups), minGroupSize)
	}

	sqDev := map[string]float64{}
	devN := map[string]int{}
	worst := math.Inf(-1)
	o.Details = map[string]Score{}
	for _, label := range dataset.Classes() {
		means := map[string]float64{}
		names := []string{}
		for _, g := range groups {
			if m, ok := g.MeanConfidence(label); ok {
				means[g.Group] = m
				names = append(names, g.Group)
			}
		}
		if len(means) < 2 {
			continue
		}
		sort.Strings(names)
		mu := 0.0
		for _, n := range names {
			mu += means[n]
		}
		mu /= float64(len(names))
		variance := 0.0
		for _, n := range names {
			d := means[n] - mu
			variance += d * d
			sqDev[n] += d * d
			devN[n]++
		}
		variance /= float64(len(names))
		o.Details["variance_"+string(label)] = Score(variance)
		worst = math.Max(worst, variance)
	}
	if math.IsInf(worst, -1) {
		return insufficient(o, "no predicted label is shared by two eligible groups")
	}
	o.Score = Score(1 - worst)
	for _, g := range groups {
		if devN[g.Group] == 0 {
			o.Groups[g.Group] = NaN()
			continue
		}
		o.Groups[g.Group] = Score(1 - sqDev[g.Group]/float64(devN[g.Group]))
	}
	return o
}

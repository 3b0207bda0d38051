package fairness

import (
	"math"
)

// AccuracyDisparity is the accuracy gap between the best and worst served
// groups, reported as 1 - gap so that higher is fairer like the other
// metrics.
const AccuracyDisparity = "accuracy_disparity"

// DefaultAccuracyThreshold flags gaps above 0.10 and calls gaps above 0.20
// biased.
var DefaultAccuracyThreshold = Threshold{Pass: 0.90, Floor: 0.80}

// DefaultThreshold returns the standard threshold for a metric name,
// including accuracy_disparity.
func DefaultThreshold(name string) (Threshold, bool) {
	if name == AccuracyDisparity {
		return DefaultAccuracyThreshold, true
	}
	th, ok := DefaultThresholds()[name]
	return th, ok
}

// Confidence summarises the confidence distribution of a group.
type Confidence struct {
	Mean Score `json:"mean"`
	Std  Score `json:"std"`
	Min  Score `json:"min"`
	Max  Score `json:"max"`
}

// GroupPerformance is the classification quality for one group. Malignant
// is the positive class; scores needing ground truth are NaN when the
// group has none.
type GroupPerformance struct {
	Group      string     `json:"group"`
	Size       int        `json:"sample_size"`
	Verified   int        `json:"verified"`
	Accuracy   Score      `json:"accuracy"`
	Precision  Score      `json:"precision"`
	Recall     Score      `json:"recall"`
	F1         Score      `json:"f1_score"`
	ErrorRate  Score      `json:"error_rate"`
	Confidence Confidence `json:"confidence"`
}

func ratio(num, den int) Score {
	if den == 0 {
		return NaN()
	}
	return Score(float64(num) / float64(den))
}

// Performance derives the per-group classification quality.
func (g GroupTally) Performance() GroupPerformance {
	p := GroupPerformance{
		Group:     g.Group,
		Size:      g.N,
		Verified:  g.Verified,
		Accuracy:  ratio(g.TP+g.TN, g.Verified),
		Precision: ratio(g.TP, g.TP+g.FP),
		Recall:    ratio(g.TP, g.TP+g.FN),
		F1:        NaN(),
		ErrorRate: ratio(g.FP+g.FN, g.Verified),
		Confidence: Confidence{
			Mean: NaN(), Std: NaN(), Min: NaN(), Max: NaN(),
		},
	}
	if p.Precision.Valid() && p.Recall.Valid() {
		if sum := p.Precision + p.Recall; sum > 0 {
			p.F1 = 2 * p.Precision * p.Recall / sum
		} else {
			p.F1 = 0
		}
	}
	if g.N > 0 {
		mean := g.confSum / float64(g.N)
		variance := math.Max(g.confSqSum/float64(g.N)-mean*mean, 0)
		p.Confidence = Confidence{
			Mean: Score(mean),
			Std:  Score(math.Sqrt(variance)),
			Min:  Score(g.confMin),
			Max:  Score(g.confMax),
		}
	}
	return p
}

// accuracyDisparity compares accuracy across groups with enough verified
// records.
func accuracyDisparity(tallies []GroupTally, minGroupSize int, th Threshold) Result {
	groups, sizes, excluded := eligible(tallies, minGroupSize, verified)
	res := Result{
		Metric:             AccuracyDisparity,
		Threshold:          th,
		Groups:             map[string]Score{},
		GroupSizes:         sizes,
		InsufficientGroups: excluded,
	}
	if len(groups) < 2 {
		res.Score = NaN()
		res.Status = StatusInsufficient
		res.Reason = "fewer than 2 groups with enough verified records"
		return res
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		acc := float64(g.TP+g.TN) / float64(g.Verified)
		res.Groups[g.Group] = Score(acc)
		lo = math.Min(lo, acc)
		hi = math.Max(hi, acc)
	}
	gap := hi - lo
	res.Score = Score(1 - gap)
	res.Status = th.Classify(res.Score)
	res.Details = map[string]Score{"gap": Score(gap), "min_accuracy": Score(lo), "max_accuracy": Score(hi)}
	return res
}

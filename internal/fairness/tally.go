package fairness

import (
	"context"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// GroupTally holds the per-group counts every metric is computed from.
type GroupTally struct {
	Group string
	N     int
	// Favorable counts benign predictions.
	Favorable int

	// Verified counts records with ground truth. Positive is malignant.
	Verified       int
	TP, FN, FP, TN int

	ConfSum   map[dataset.Label]float64
	ConfCount map[dataset.Label]int

	confSum, confSqSum, confMin, confMax float64
}

// FavorableRate is the share of benign predictions.
func (g GroupTally) FavorableRate() float64 {
	if g.N == 0 {
		return 0
	}
	return float64(g.Favorable) / float64(g.N)
}

// TPR is the true-positive rate, false when the group has no positives.
func (g GroupTally) TPR() (float64, bool) {
	if p := g.TP + g.FN; p > 0 {
		return float64(g.TP) / float64(p), true
	}
	return 0, false
}

// FPR is the false-positive rate, false when the group has no negatives.
func (g GroupTally) FPR() (float64, bool) {
	if n := g.FP + g.TN; n > 0 {
		return float64(g.FP) / float64(n), true
	}
	return 0, false
}

// MeanConfidence is the mean confidence of the group's predictions of label.
func (g GroupTally) MeanConfidence(label dataset.Label) (float64, bool) {
	n := g.ConfCount[label]
	if n == 0 {
		return 0, false
	}
	return g.ConfSum[label] / float64(n), true
}

// Tally partitions valid records by group and counts each group in
// parallel. Group names are trimmed. Tallies are returned sorted by group.
func Tally(ctx context.Context, log []Record) ([]GroupTally, error) {
	byGroup := map[string][]Record{}
	for _, r := range log {
		name := strings.TrimSpace(r.Group)
		byGroup[name] = append(byGroup[name], r)
	}
	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	out := make([]GroupTally, len(groups))
	g, _ := errgroup.WithContext(ctx)
	for i, name := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = tallyGroup(name, byGroup[name])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func tallyGroup(name string, records []Record) GroupTally {
	t := GroupTally{
		Group:     name,
		ConfSum:   map[dataset.Label]float64{},
		ConfCount: map[dataset.Label]int{},
	}
	for i, r := range records {
		if i == 0 {
			t.confMin, t.confMax = r.Confidence, r.Confidence
		}
		t.confSum += r.Confidence
		t.confSqSum += r.Confidence * r.Confidence
		t.confMin = math.Min(t.confMin, r.Confidence)
		t.confMax = math.Max(t.confMax, r.Confidence)
		t.N++
		if r.Predicted == dataset.Benign {
			t.Favorable++
		}
		t.ConfSum[r.Predicted] += r.Confidence
		t.ConfCount[r.Predicted]++

		truth, ok := r.Truth()
		if !ok {
			continue
		}
		t.Verified++
		switch {
		case truth == dataset.Malignant && r.Predicted == dataset.Malignant:
			t.TP++
		case truth == dataset.Malignant:
			t.FN++
		case r.Predicted == dataset.Malignant:
			t.FP++
		default:
			t.TN++
		}
	}
	return t
}

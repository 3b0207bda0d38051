// Package balance computes class weights and augmentation factors that
// counteract label imbalance in a unified corpus.
package balance

import (
	"iter"
	"math"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// DefaultMaxAugmentation caps how many augmented copies a minority sample
// may receive.
const DefaultMaxAugmentation = 8

// ceilTolerance absorbs float noise so that an exact ratio like 2.0000000001
// does not round up to 3.
const ceilTolerance = 1e-9

// Options tune a balancing plan.
type Options struct {
	MaxAugmentation int
}

// DefaultOptions returns the standard options.
func DefaultOptions() Options { return Options{MaxAugmentation: DefaultMaxAugmentation} }

// Plan is the resampling strategy for one corpus.
type Plan struct {
	Counts       map[dataset.Label]int     `json:"counts"`
	Weights      map[dataset.Label]float64 `json:"class_weights"`
	Augmentation map[dataset.Label]int     `json:"augmentation_factors"`
	Majority     dataset.Label             `json:"majority"`
	Total        int                       `json:"total"`
	// Excluded counts unmapped samples left out of the plan.
	Excluded int `json:"excluded_unmapped"`
}

// Ratio returns majority count over minority count.
func (p Plan) Ratio() float64 {
	lo, hi := math.MaxInt, 0
	for _, n := range p.Counts {
		lo = min(lo, n)
		hi = max(hi, n)
	}
	if lo == 0 || lo == math.MaxInt {
		return math.Inf(1)
	}
	return float64(hi) / float64(lo)
}

// Effective returns the sample count of label after augmentation.
func (p Plan) Effective(label dataset.Label) int {
	return p.Counts[label] * p.Augmentation[label]
}

// Balance counts trainable samples and derives weight_c = N / n_c, where N
// is the majority count, and an augmentation factor of min(ceil(weight_c),
// MaxAugmentation).
func Balance(samples iter.Seq[dataset.Sample], opts Options) (Plan, error) {
	if opts.MaxAugmentation < 1 {
		opts.MaxAugmentation = DefaultMaxAugmentation
	}

	p := Plan{
		Counts:       map[dataset.Label]int{},
		Weights:      map[dataset.Label]float64{},
		Augmentation: map[dataset.Label]int{},
	}
	for s := range samples {
		if !s.Label.Trainable() {
			p.Excluded++
			continue
		}
		p.Counts[s.Label]++
		p.Total++
	}
	if p.Total == 0 {
		return p, apperr.ErrEmptyInput
	}

	majority := 0
	for _, c := range dataset.Classes() {
		n := p.Counts[c]
		if n == 0 {
			return p, apperr.Insufficient("class "+string(c), "no %s samples among %d mapped", c, p.Total)
		}
		if n > majority {
			majority = n
			p.Majority = c
		}
	}

	for _, c := range dataset.Classes() {
		w := float64(majority) / float64(p.Counts[c])
		p.Weights[c] = w
		p.Augmentation[c] = min(int(math.Ceil(w-ceilTolerance)), opts.MaxAugmentation)
	}
	logf("", "counts %v, weights %v, augmentation %v (%d unmapped excluded)", p.Counts, p.Weights, p.Augmentation, p.Excluded)
	return p, nil
}

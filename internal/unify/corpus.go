package unify

import (
	"iter"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// Corpus is the unified sample collection. It holds references to images,
// never pixels.
type Corpus struct {
	// Version identifies the exact ordered sample set.
	Version string
	Report  Report

	samples []dataset.Sample
}

// Len returns the number of samples, unmapped ones included.
func (c *Corpus) Len() int { return len(c.samples) }

// Samples yields every sample in corpus order.
func (c *Corpus) Samples() iter.Seq[dataset.Sample] {
	return c.filter(func(dataset.Sample) bool { return true })
}

// Training yields only samples with a trainable label.
func (c *Corpus) Training() iter.Seq[dataset.Sample] {
	return c.filter(func(s dataset.Sample) bool { return s.Label.Trainable() })
}

// Audit yields the unmapped samples kept for review.
func (c *Corpus) Audit() iter.Seq[dataset.Sample] {
	return c.filter(func(s dataset.Sample) bool { return s.Label == dataset.Unmapped })
}

// Counts tallies samples per label.
func (c *Corpus) Counts() map[dataset.Label]int {
	out := map[dataset.Label]int{}
	for _, s := range c.samples {
		out[s.Label]++
	}
	return out
}

func (c *Corpus) filter(keep func(dataset.Sample) bool) iter.Seq[dataset.Sample] {
	return func(yield func(dataset.Sample) bool) {
		if c == nil {
			return
		}
		for _, s := range c.samples {
			if keep(s) && !yield(s) {
				return
			}
		}
	}
}

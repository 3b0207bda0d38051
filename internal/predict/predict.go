// Package predict defines the capabilities a dermatology classifier must
// offer and a Runner that turns a corpus into a prediction log for the
// fairness evaluator. No model architecture or runtime is assumed.
package predict

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
)

// Image is a loaded image. Data may be empty for classifiers that work
// from the reference alone.
type Image struct {
	Ref  string
	Data []byte
}

// Classifier predicts a binary label with a confidence in [0,1].
type Classifier interface {
	Predict(ctx context.Context, img Image) (dataset.Label, float64, error)
}

// Preprocessor prepares an image for the classifier.
type Preprocessor interface {
	Preprocess(ctx context.Context, img Image) (Image, error)
}

// Loader resolves an image reference.
type Loader interface {
	Load(ctx context.Context, ref string) (Image, error)
}

// RefLoader returns images that carry only their reference.
type RefLoader struct{}

func (RefLoader) Load(_ context.Context, ref string) (Image, error) { return Image{Ref: ref}, nil }

// FileLoader reads image files, resolving relative references against Root.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(_ context.Context, ref string) (Image, error) {
	p := ref
	if !filepath.IsAbs(p) && l.Root != "" {
		p = filepath.Join(l.Root, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return Image{}, err
	}
	return Image{Ref: ref, Data: data}, nil
}

// RunStats counts what a Run did.
type RunStats struct {
	Predicted int `json:"predicted"`
	// SkippedUnmapped counts samples without a trainable label.
	SkippedUnmapped int `json:"skipped_unmapped"`
	Failed          int `json:"failed"`
}

// Runner predicts every trainable sample and logs the outcome.
type Runner struct {
	Loader       Loader
	Preprocessor Preprocessor
	Classifier   Classifier
	// GroupBy is the demographic attribute used as the fairness group.
	GroupBy string
	// Now stamps records; time.Now when nil.
	Now func() time.Time
}

// Run predicts each sample in order. Ground truth is the sample's binary
// label. Per-sample failures are counted and skipped; cancellation stops
// the run.
func (r *Runner) Run(ctx context.Context, samples iter.Seq[dataset.Sample]) ([]fairness.Record, RunStats, error) {
	var stats RunStats
	if r.Classifier == nil {
		return nil, stats, errors.New("predict: no classifier configured")
	}
	loader := r.Loader
	if loader == nil {
		loader = RefLoader{}
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}
	groupBy := r.GroupBy
	if groupBy == "" {
		groupBy = "skin_type"
	}

	var log []fairness.Record
	for s := range samples {
		if err := ctx.Err(); err != nil {
			return log, stats, err
		}
		if !s.Label.Trainable() {
			stats.SkippedUnmapped++
			continue
		}
		rec, err := r.one(ctx, loader, s, groupBy, now)
		if err != nil {
			if ctx.Err() != nil {
				return log, stats, ctx.Err()
			}
			stats.Failed++
			logf(s.SourceID, "sample %s: %v", s.ID, err)
			continue
		}
		log = append(log, rec)
		stats.Predicted++
	}
	return log, stats, nil
}

func (r *Runner) one(ctx context.Context, loader Loader, s dataset.Sample, groupBy string, now func() time.Time) (fairness.Record, error) {
	img, err := loader.Load(ctx, s.ImageRef)
	if err != nil {
		return fairness.Record{}, fmt.Errorf("load: %w", err)
	}
	if r.Preprocessor != nil {
		if img, err = r.Preprocessor.Preprocess(ctx, img); err != nil {
			return fairness.Record{}, fmt.Errorf("preprocess: %w", err)
		}
	}
	label, conf, err := r.Classifier.Predict(ctx, img)
	if err != nil {
		return fairness.Record{}, fmt.Errorf("predict: %w", err)
	}
	rec := fairness.Record{
		Timestamp:   now().UTC(),
		SampleID:    s.ID,
		Predicted:   label,
		Confidence:  conf,
		GroundTruth: s.Label,
		Group:       s.Attribute(groupBy),
	}
	if err := rec.Validate(); err != nil {
		return fairness.Record{}, err
	}
	return rec, nil
}

// Package fairderm exposes dataset unification, class balancing and
// fairness auditing to library users.
package fairderm

import (
	"context"
	"iter"

	"github.com/idlab-discover/FairDerm-cli/internal/alert"
	"github.com/idlab-discover/FairDerm-cli/internal/balance"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/predict"
	"github.com/idlab-discover/FairDerm-cli/internal/scanner"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
)

type (
	Label  = dataset.Label
	Record = dataset.Record
	Sample = dataset.Sample

	Table  = labelmap.Table
	Mapper = labelmap.Mapper

	Stream        = unify.Stream
	Corpus        = unify.Corpus
	UnifyOptions  = unify.Options
	ProgressEvent = unify.ProgressEvent

	Plan           = balance.Plan
	BalanceOptions = balance.Options

	Prediction      = fairness.Record
	Evaluation      = fairness.Evaluation
	EvaluateOptions = fairness.Options
	Threshold       = fairness.Threshold

	AlertConfig = alert.Config
	BiasAlert   = alert.BiasAlert
	Severity    = alert.Severity

	Classifier   = predict.Classifier
	Preprocessor = predict.Preprocessor
	Loader       = predict.Loader
	RunStats     = predict.RunStats
)

const (
	Benign    = dataset.Benign
	Malignant = dataset.Malignant
	Unmapped  = dataset.Unmapped
)

// SliceStream wraps in-memory records as a source stream.
func SliceStream(sourceID string, records []Record) Stream {
	return unify.SliceStream(sourceID, records)
}

// OpenDatasets detects the datasets under paths and opens a stream for each.
func OpenDatasets(paths ...string) ([]Stream, error) {
	var sources []scanner.Source
	for _, p := range paths {
		src, ok, err := scanner.Detect(p)
		if err != nil {
			return nil, err
		}
		if ok {
			sources = append(sources, src)
			continue
		}
		found, err := scanner.Scan(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}
	return scanner.OpenAll(sources)
}

// Unify maps every stream through tables into one corpus. With no tables
// the built-in mapping tables are used. A zero UnmappedCeiling means
// unify.DefaultUnmappedCeiling.
func Unify(ctx context.Context, streams []Stream, tables []Table, opts UnifyOptions) (*Corpus, error) {
	if opts.UnmappedCeiling == 0 {
		opts.UnmappedCeiling = unify.DefaultUnmappedCeiling
	}
	if len(tables) == 0 {
		defaults, err := labelmap.Defaults()
		if err != nil {
			return nil, err
		}
		tables = defaults
	}
	mapper, err := labelmap.NewMapper(tables)
	if err != nil {
		return nil, err
	}
	return unify.New(mapper, opts).Unify(ctx, streams)
}

// Balance derives class weights and augmentation factors.
func Balance(samples iter.Seq[Sample], opts BalanceOptions) (Plan, error) {
	if opts.MaxAugmentation == 0 {
		opts.MaxAugmentation = balance.DefaultMaxAugmentation
	}
	return balance.Balance(samples, opts)
}

// Predict runs classifier over the trainable samples and returns the
// prediction log grouped on groupBy.
func Predict(ctx context.Context, classifier Classifier, samples iter.Seq[Sample], groupBy string) ([]Prediction, RunStats, error) {
	r := &predict.Runner{Classifier: classifier, GroupBy: groupBy}
	return r.Run(ctx, samples)
}

// DefaultEvaluateOptions returns the standard thresholds and group size.
func DefaultEvaluateOptions() EvaluateOptions { return fairness.DefaultOptions() }

// Evaluate computes the fairness metrics over a closed prediction log. A
// zero MinGroupSize means the default of 10.
func Evaluate(ctx context.Context, log []Prediction, opts EvaluateOptions) (*Evaluation, error) {
	return fairness.EvaluateContext(ctx, log, opts)
}

// Assess derives a bias alert from an evaluation. A zero cfg uses the
// default configuration.
func Assess(ev *Evaluation, log []Prediction, cfg AlertConfig) BiasAlert {
	if cfg == (AlertConfig{}) {
		cfg = alert.DefaultConfig()
	}
	return alert.NewEngine(cfg).AssessEvaluation(ev, log)
}

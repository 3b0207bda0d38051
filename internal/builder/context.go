package builder

import (
	"github.com/idlab-discover/FairDerm-cli/internal/alert"
	"github.com/idlab-discover/FairDerm-cli/internal/balance"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
)

// BuildContext carries the results of one fairness run. Only Evaluation is
// required.
type BuildContext struct {
	ModelName    string
	ModelVersion string
	// GroupBy names the demographic attribute groups were formed on.
	GroupBy string

	Evaluation *fairness.Evaluation
	Alert      *alert.BiasAlert

	// CorpusVersion and Report describe the unified training corpus.
	CorpusVersion string
	Report        *unify.Report
	Plan          *balance.Plan
	// Tables lists the mapping tables used per source.
	Tables []labelmap.Table
}

type Options struct {
	// IncludeGroupSlices adds one performance metric per group next to the
	// overall score.
	IncludeGroupSlices bool
	// IncludeExamples attaches overconfident examples as properties.
	IncludeExamples bool
}

func DefaultOptions() Options {
	return Options{
		IncludeGroupSlices: true,
		IncludeExamples:    true,
	}
}

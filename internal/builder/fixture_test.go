package builder

import (
	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/idlab-discover/FairDerm-cli/internal/alert"
	"github.com/idlab-discover/FairDerm-cli/internal/balance"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
)

func sampleContext() BuildContext {
	ev := &fairness.Evaluation{
		Snapshot:     "snap-1",
		MinGroupSize: 10,
		Total:        200,
		Used:         198,
		Results: []fairness.Result{
			{
				Metric: fairness.DisparateImpact,
				Score:  0.5,
				Status: fairness.StatusBiased,
				Groups: map[string]fairness.Score{"type-1": 1, "type-6": 0.5},
			},
			{
				Metric: fairness.EqualizedOdds,
				Score:  fairness.NaN(),
				Status: fairness.StatusInsufficient,
				Groups: map[string]fairness.Score{},
			},
		},
	}
	al := &alert.BiasAlert{
		Severity:         alert.Critical,
		TriggeredMetrics: []alert.Trigger{{Metric: fairness.DisparateImpact, Score: 0.5, Status: fairness.StatusBiased}},
		Biased:           1,
		Overconfident: alert.Overconfidence{Count: 1, Examples: []alert.Example{
			{Timestamp: "2026-01-02T03:04:05Z", SampleID: "isic:1", Group: "type-6", Confidence: 0.995},
		}},
		Actions:   []string{"collect more type-6 images"},
		Narrative: "critical",
	}
	report := &unify.Report{
		TotalRead:    12,
		TotalSamples: 10,
		Sources: map[string]unify.SourceReport{
			"isic":     {SourceID: "isic", Read: 10, Samples: 10, Mapped: 10},
			"ham10000": {SourceID: "ham10000", Read: 2, Samples: 2, Mapped: 1, Unmapped: 1},
		},
		Failed: []unify.SourceFailure{{SourceID: "ham10000", Reason: "unmapped ratio 0.50 above ceiling 0.01"}},
	}
	plan := &balance.Plan{
		Weights:      map[dataset.Label]float64{dataset.Benign: 1.25, dataset.Malignant: 5},
		Augmentation: map[dataset.Label]int{dataset.Benign: 1, dataset.Malignant: 5},
	}
	return BuildContext{
		ModelName:     "derm-net",
		ModelVersion:  "1.0",
		GroupBy:       "skin_type",
		Evaluation:    ev,
		Alert:         al,
		CorpusVersion: "0b5f6f4e-0000-5000-8000-000000000000",
		Report:        report,
		Plan:          plan,
		Tables:        []labelmap.Table{{Source: "isic", Version: "2024.1", Description: "ISIC archive"}},
	}
}

func property(props *[]cdx.Property, name string) (string, bool) {
	if props == nil {
		return "", false
	}
	for _, p := range *props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

package alert

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
)

func result(metric string, score fairness.Score, status fairness.Status) fairness.Result {
	return fairness.Result{Metric: metric, Score: score, Status: status}
}

func TestAssess_Severity(t *testing.T) {
	dangerous := []fairness.Record{{
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Predicted:   dataset.Malignant,
		GroundTruth: dataset.Benign,
		Confidence:  1.0,
		Group:       "type-6",
	}}

	tests := []struct {
		name    string
		results []fairness.Result
		log     []fairness.Record
		want    Severity
	}{
		{
			name: "all pass",
			results: []fairness.Result{
				result(fairness.DisparateImpact, 0.95, fairness.StatusPass),
				result(fairness.EqualizedOdds, 0.97, fairness.StatusPass),
			},
			want: Low,
		},
		{
			name: "overconfident without bias stays low",
			results: []fairness.Result{
				result(fairness.DisparateImpact, 0.95, fairness.StatusPass),
			},
			log:  dangerous,
			want: Low,
		},
		{
			name: "one concerning",
			results: []fairness.Result{
				result(fairness.DemographicParity, 0.9, fairness.StatusConcerning),
			},
			want: Medium,
		},
		{
			name: "one biased with disparate impact fine",
			results: []fairness.Result{
				result(fairness.DisparateImpact, 0.85, fairness.StatusPass),
				result(fairness.EqualizedOdds, 0.70, fairness.StatusBiased),
			},
			want: Medium,
		},
		{
			name: "one biased with low disparate impact",
			results: []fairness.Result{
				result(fairness.DisparateImpact, 0.60, fairness.StatusBiased),
			},
			want: MediumHigh,
		},
		{
			name: "two biased",
			results: []fairness.Result{
				result(fairness.EqualizedOdds, 0.70, fairness.StatusBiased),
				result(fairness.DemographicParity, 0.50, fairness.StatusBiased),
			},
			want: MediumHigh,
		},
		{
			name: "three biased",
			results: []fairness.Result{
				result(fairness.EqualizedOdds, 0.70, fairness.StatusBiased),
				result(fairness.DemographicParity, 0.50, fairness.StatusBiased),
				result(fairness.IndividualFairness, 0.85, fairness.StatusBiased),
			},
			want: High,
		},
		{
			name: "biased plus overconfident false malignant",
			results: []fairness.Result{
				result(fairness.DemographicParity, 0.40, fairness.StatusBiased),
			},
			log:  dangerous,
			want: Critical,
		},
		{
			name: "insufficient data does not trigger",
			results: []fairness.Result{
				result(fairness.EqualizedOdds, fairness.NaN(), fairness.StatusInsufficient),
			},
			want: Low,
		},
	}

	e := NewEngine(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Assess(tt.results, tt.log)
			if got.Severity != tt.want {
				t.Fatalf("Severity = %q, want %q (%+v)", got.Severity, tt.want, got)
			}
		})
	}
}

func TestAssess_CriticalDetails(t *testing.T) {
	var log []fairness.Record
	for i := 0; i < 7; i++ {
		log = append(log, fairness.Record{
			Timestamp:   time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC),
			SampleID:    "isic:" + string(rune('a'+i)),
			Predicted:   dataset.Malignant,
			GroundTruth: dataset.Benign,
			Confidence:  0.995,
			Group:       "type-5",
		})
	}
	log = append(log, fairness.Record{Predicted: dataset.Malignant, GroundTruth: dataset.Benign, Confidence: 0.98, Group: "type-1"})

	e := NewEngine(DefaultConfig())
	a := e.Assess([]fairness.Result{result(fairness.DemographicParity, 0.4, fairness.StatusBiased)}, log)
	if a.Severity != Critical {
		t.Fatalf("Severity = %q", a.Severity)
	}
	if a.Overconfident.Count != 7 || len(a.Overconfident.Examples) != 5 {
		t.Fatalf("Overconfident = %+v", a.Overconfident)
	}
	if a.Overconfident.Examples[0].Timestamp != "2026-03-01T12:00:00Z" {
		t.Fatalf("first example = %+v", a.Overconfident.Examples[0])
	}
	if len(a.TriggeredMetrics) != 1 || a.TriggeredMetrics[0].Metric != fairness.DemographicParity {
		t.Fatalf("TriggeredMetrics = %+v", a.TriggeredMetrics)
	}
	if !strings.Contains(a.Narrative, "critical") || !strings.Contains(a.Narrative, "7 malignant predictions") {
		t.Fatalf("Narrative = %q", a.Narrative)
	}
}

func TestAssess_ActionsOrderedAndUnique(t *testing.T) {
	e := NewEngine(DefaultConfig())
	results := []fairness.Result{
		result(fairness.DisparateImpact, 0.5, fairness.StatusBiased),
		result(fairness.DemographicParity, 0.5, fairness.StatusBiased),
		result(fairness.EqualizedOdds, 0.5, fairness.StatusBiased),
	}
	a := e.Assess(results, nil)
	if a.Severity != High {
		t.Fatalf("Severity = %q", a.Severity)
	}
	if a.Actions[0] != severityActions[High][0] {
		t.Fatalf("first action = %q, want the high-severity action", a.Actions[0])
	}
	seen := map[string]bool{}
	for _, s := range a.Actions {
		if seen[s] {
			t.Fatalf("duplicate action %q", s)
		}
		seen[s] = true
	}
	if !slices.Contains(a.Actions, metricActions[fairness.EqualizedOdds][0]) {
		t.Fatalf("missing equalized odds action: %v", a.Actions)
	}

	again := e.Assess(results, nil)
	if !slices.Equal(a.Actions, again.Actions) || a.Narrative != again.Narrative {
		t.Fatalf("assessment is not stable")
	}
}

func TestAssess_TriggerCarriesThresholdAndGroups(t *testing.T) {
	r := result(fairness.DemographicParity, 0.6, fairness.StatusBiased)
	r.Threshold = fairness.Threshold{Pass: 0.9, Floor: 0.8}
	r.Groups = map[string]fairness.Score{"I-II": 0.5, "V-VI": 0.2}

	a := NewEngine(DefaultConfig()).Assess([]fairness.Result{r, result(fairness.DisparateImpact, 1, fairness.StatusPass)}, nil)
	if len(a.TriggeredMetrics) != 1 {
		t.Fatalf("TriggeredMetrics = %+v, want one", a.TriggeredMetrics)
	}
	got := a.TriggeredMetrics[0]
	if got.Threshold != r.Threshold {
		t.Fatalf("Threshold = %v, want %v", got.Threshold, r.Threshold)
	}
	if len(got.Groups) != 2 || got.Groups["V-VI"] != 0.2 {
		t.Fatalf("Groups = %v, want %v", got.Groups, r.Groups)
	}
}

func TestAssessEvaluation_IncludesAccuracyDisparity(t *testing.T) {
	accuracy := result(fairness.AccuracyDisparity, 0.5, fairness.StatusBiased)
	accuracy.Threshold = fairness.DefaultAccuracyThreshold
	tests := []struct {
		name     string
		ev       *fairness.Evaluation
		severity Severity
		triggers int
	}{
		{"nil evaluation", nil, Low, 0},
		{"accuracy gap only", &fairness.Evaluation{
			Results:           []fairness.Result{result(fairness.DemographicParity, 1, fairness.StatusPass)},
			AccuracyDisparity: accuracy,
		}, Medium, 1},
		{"accuracy gap and parity", &fairness.Evaluation{
			Results:           []fairness.Result{result(fairness.DemographicParity, 0.5, fairness.StatusBiased)},
			AccuracyDisparity: accuracy,
		}, MediumHigh, 2},
		{"accuracy not computed", &fairness.Evaluation{
			Results: []fairness.Result{result(fairness.DemographicParity, 1, fairness.StatusPass)},
		}, Low, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewEngine(DefaultConfig()).AssessEvaluation(tt.ev, nil)
			if a.Severity != tt.severity {
				t.Fatalf("Severity = %q, want %q", a.Severity, tt.severity)
			}
			if len(a.TriggeredMetrics) != tt.triggers {
				t.Fatalf("TriggeredMetrics = %+v, want %d", a.TriggeredMetrics, tt.triggers)
			}
			if tt.triggers > 0 && !slices.Contains(a.Actions, metricActions[fairness.AccuracyDisparity][0]) {
				t.Fatalf("Actions = %v, want the accuracy action", a.Actions)
			}
		})
	}
}

func TestEngine_ConfigIsPerInstance(t *testing.T) {
	strict := NewEngine(Config{DisparateImpactFloor: 0.9, OverconfidenceThreshold: 0.9})
	lax := NewEngine(DefaultConfig())
	results := []fairness.Result{result(fairness.DisparateImpact, 0.85, fairness.StatusBiased)}
	log := []fairness.Record{{Predicted: dataset.Malignant, GroundTruth: dataset.Benign, Confidence: 0.95, Group: "g"}}

	if got := strict.Assess(results, log).Severity; got != Critical {
		t.Fatalf("strict Severity = %q, want critical", got)
	}
	if got := lax.Assess(results, log).Severity; got != Medium {
		t.Fatalf("lax Severity = %q, want medium", got)
	}
}

func TestAnnotate_IsAdvisory(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := fairness.Record{Predicted: dataset.Malignant, Confidence: 0.999, Group: "type-6"}

	a := e.Annotate(p, BiasAlert{Severity: Critical})
	if a.Record != p {
		t.Fatalf("prediction changed: %+v", a.Record)
	}
	if !a.Review || a.Note == "" {
		t.Fatalf("critical annotation = %+v", a)
	}

	low := e.Annotate(p, BiasAlert{Severity: Low})
	if low.Review || low.Note != "" {
		t.Fatalf("low annotation = %+v", low)
	}
}

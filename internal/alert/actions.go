package alert

import (
	"strings"
	"text/template"

	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
)

var metricActions = map[string][]string{
	fairness.DisparateImpact: {
		"Rebalance training data for the least favoured groups",
		"Review the decision threshold per demographic group",
	},
	fairness.DemographicParity: {
		"Compare benign prediction rates with clinical prevalence per group",
	},
	fairness.EqualizedOdds: {
		"Audit missed malignant cases in the group with the lowest true-positive rate",
		"Collect verified ground truth for under-represented groups",
	},
	fairness.IndividualFairness: {
		"Recalibrate confidence scores across groups",
	},
	fairness.AccuracyDisparity: {
		"Collect more labelled images for the group with the lowest accuracy",
		"Report per-group accuracy alongside overall accuracy",
	},
}

var severityActions = map[Severity][]string{
	Critical: {
		"Route overconfident malignant predictions to a dermatologist before any action",
		"Suspend automated triage until a clinical review signs off",
	},
	High: {
		"Retrain with augmented minority-group data before the next release",
	},
	MediumHigh: {
		"Flag predictions for the affected groups for clinician review",
	},
	Medium: {
		"Monitor the triggered metrics in the next evaluation",
	},
}

// severityOrder lists severities from most to least severe.
var severityOrder = []Severity{Critical, High, MediumHigh, Medium}

// actionsFor builds the ordered, de-duplicated action list: severity actions
// from the current level downwards, then per triggered metric.
func actionsFor(a BiasAlert) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(list []string) {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	for _, s := range severityOrder {
		if a.Severity.AtLeast(s) {
			add(severityActions[s])
		}
	}
	for _, t := range a.TriggeredMetrics {
		add(metricActions[t.Metric])
	}
	return out
}

var narrativeTmpl = template.Must(template.New("narrative").Parse(
	`Bias alert severity {{.Severity}}: {{.Triggered}} of {{.Evaluated}} fairness metrics need attention ` +
		`({{.Biased}} biased, {{.Concerning}} concerning){{if .Metrics}}: {{.Metrics}}{{end}}.` +
		`{{if .Overconfident}} {{.Overconfident}} malignant predictions at or above confidence {{printf "%.2f" .Threshold}} were benign on review.{{end}}` +
		`{{if eq .Triggered 0}} No action is required.{{end}}`))

func narrate(a BiasAlert, evaluated int, threshold float64) string {
	names := make([]string, 0, len(a.TriggeredMetrics))
	for _, t := range a.TriggeredMetrics {
		names = append(names, t.Metric+" "+t.Score.String())
	}
	var sb strings.Builder
	_ = narrativeTmpl.Execute(&sb, struct {
		Severity      Severity
		Triggered     int
		Evaluated     int
		Biased        int
		Concerning    int
		Metrics       string
		Overconfident int
		Threshold     float64
	}{
		Severity:      a.Severity,
		Triggered:     len(a.TriggeredMetrics),
		Evaluated:     evaluated,
		Biased:        a.Biased,
		Concerning:    a.Concerning,
		Metrics:       strings.Join(names, ", "),
		Overconfident: a.Overconfident.Count,
		Threshold:     threshold,
	})
	return sb.String()
}

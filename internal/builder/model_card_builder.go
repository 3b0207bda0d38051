package builder

import (
	"fmt"
	"sort"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
)

const modelTask = "binary-image-classification"

type ModelCardBuilder struct {
	Opts Options
}

// Build assembles the model card of a fairness run. datasetRefs are the
// BOM references of the data the model was trained on.
func (b ModelCardBuilder) Build(ctx BuildContext, datasetRefs []string) (*cdx.MLModelCard, error) {
	if ctx.Evaluation == nil {
		return nil, fmt.Errorf("model card: evaluation is required")
	}
	logf(ctx.ModelName, "model card start")
	card := &cdx.MLModelCard{
		ModelParameters: modelParameters(datasetRefs),
	}

	metrics := b.performanceMetrics(ctx)
	if len(metrics) > 0 {
		card.QuantitativeAnalysis = &cdx.MLQuantitativeAnalysis{PerformanceMetrics: &metrics}
	}
	if cons := considerations(ctx); cons != nil {
		card.Considerations = cons
	}
	logf(ctx.ModelName, "model card ok (%d metrics)", len(metrics))
	return card, nil
}

func modelParameters(datasetRefs []string) *cdx.MLModelParameters {
	mp := &cdx.MLModelParameters{
		Task: modelTask,
		Approach: &cdx.MLModelParametersApproach{
			Type: cdx.MLModelParametersApproachTypeSupervised,
		},
		Inputs:  &[]cdx.MLInputOutputParameters{{Format: "image"}},
		Outputs: &[]cdx.MLInputOutputParameters{{Format: "label (benign|malignant), confidence [0,1]"}},
	}
	if len(datasetRefs) > 0 {
		choices := make([]cdx.MLDatasetChoice, 0, len(datasetRefs))
		for _, ref := range datasetRefs {
			choices = append(choices, cdx.MLDatasetChoice{Ref: ref})
		}
		mp.Datasets = &choices
	}
	return mp
}

func (b ModelCardBuilder) performanceMetrics(ctx BuildContext) []cdx.MLPerformanceMetric {
	attr := groupAttribute(ctx)
	var out []cdx.MLPerformanceMetric
	for _, r := range ctx.Evaluation.Results {
		out = append(out, cdx.MLPerformanceMetric{
			Type:  r.Metric,
			Value: r.Score.String(),
			Slice: "all " + attr + " groups (" + string(r.Status) + ")",
		})
		if !b.Opts.IncludeGroupSlices {
			continue
		}
		for _, g := range sortedGroups(r.Groups) {
			out = append(out, cdx.MLPerformanceMetric{
				Type:  r.Metric,
				Value: r.Groups[g].String(),
				Slice: attr + "=" + g,
			})
		}
	}
	return out
}

// considerations lists one fairness assessment per triggered metric, naming
// the lowest-scoring group as the group at risk.
func considerations(ctx BuildContext) *cdx.MLModelCardConsiderations {
	attr := groupAttribute(ctx)
	mitigation := "review group coverage in the training corpus"
	if ctx.Alert != nil && len(ctx.Alert.Actions) > 0 {
		mitigation = strings.Join(ctx.Alert.Actions, "; ")
	}

	var assessments []cdx.MLModelCardFairnessAssessment
	for _, r := range ctx.Evaluation.Results {
		if !r.Status.Triggered() {
			continue
		}
		group, score, ok := worstGroup(r)
		if !ok {
			continue
		}
		assessments = append(assessments, cdx.MLModelCardFairnessAssessment{
			GroupAtRisk:        attr + "=" + group,
			Benefits:           "malignancy screening support",
			Harms:              fmt.Sprintf("%s %s (%s); group score %s", r.Metric, r.Score, r.Status, score),
			MitigationStrategy: mitigation,
		})
	}

	var ethics []cdx.MLModelCardEthicalConsideration
	if ctx.Alert != nil && ctx.Alert.Overconfident.Count > 0 {
		ethics = append(ethics, cdx.MLModelCardEthicalConsideration{
			Name:               fmt.Sprintf("%d overconfident malignant predictions contradicted by benign ground truth", ctx.Alert.Overconfident.Count),
			MitigationStrategy: "route high-confidence malignant predictions to dermatologist review",
		})
	}

	if len(assessments) == 0 && len(ethics) == 0 {
		return nil
	}
	cons := &cdx.MLModelCardConsiderations{}
	if len(assessments) > 0 {
		cons.FairnessAssessments = &assessments
	}
	if len(ethics) > 0 {
		cons.EthicalConsiderations = &ethics
	}
	return cons
}

func worstGroup(r fairness.Result) (string, fairness.Score, bool) {
	best, found := "", false
	var lo fairness.Score
	for _, g := range sortedGroups(r.Groups) {
		s := r.Groups[g]
		if !s.Valid() {
			continue
		}
		if !found || s < lo {
			best, lo, found = g, s, true
		}
	}
	return best, lo, found
}

func sortedGroups(m map[string]fairness.Score) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func groupAttribute(ctx BuildContext) string {
	if a := strings.TrimSpace(ctx.GroupBy); a != "" {
		return a
	}
	return "group"
}

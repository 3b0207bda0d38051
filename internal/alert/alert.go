// Package alert turns fairness results into a single advisory severity with
// recommended actions. Alerts never block a prediction; they only annotate.
package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
)

// Severity orders alert levels.
type Severity string

const (
	Low        Severity = "low"
	Medium     Severity = "medium"
	MediumHigh Severity = "medium-high"
	High       Severity = "high"
	Critical   Severity = "critical"
)

var severityRank = map[Severity]int{Low: 0, Medium: 1, MediumHigh: 2, High: 3, Critical: 4}

// Rank returns the ordinal of s; unknown severities rank below Low.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

func raise(cur, to Severity) Severity {
	if to.Rank() > cur.Rank() {
		return to
	}
	return cur
}

// Config holds the engine's boundaries. It is passed at construction so
// two engines with different settings can run side by side.
type Config struct {
	DisparateImpactFloor    float64 `json:"disparate_impact_floor" mapstructure:"disparate_impact_floor"`
	OverconfidenceThreshold float64 `json:"overconfidence_threshold" mapstructure:"overconfidence_threshold"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{DisparateImpactFloor: 0.80, OverconfidenceThreshold: 0.99}
}

// Trigger is a metric that called for attention, with the per-group scores
// and threshold it was judged on.
type Trigger struct {
	Metric    string                    `json:"metric"`
	Score     fairness.Score            `json:"score"`
	Status    fairness.Status           `json:"status"`
	Threshold fairness.Threshold        `json:"threshold"`
	Groups    map[string]fairness.Score `json:"group_breakdown,omitempty"`
}

// Example is one overconfident false malignant prediction.
type Example struct {
	Timestamp  string  `json:"timestamp"`
	SampleID   string  `json:"sample_id,omitempty"`
	Group      string  `json:"group"`
	Confidence float64 `json:"confidence"`
}

// maxExamples bounds Overconfidence.Examples.
const maxExamples = 5

// Overconfidence summarises malignant predictions at or above the
// overconfidence threshold whose ground truth is benign.
type Overconfidence struct {
	Count    int       `json:"count"`
	Examples []Example `json:"examples,omitempty"`
}

// BiasAlert is the engine's verdict for one evaluation.
type BiasAlert struct {
	Severity         Severity       `json:"severity"`
	TriggeredMetrics []Trigger      `json:"triggered_metrics"`
	Biased           int            `json:"biased"`
	Concerning       int            `json:"concerning"`
	Overconfident    Overconfidence `json:"overconfident"`
	Actions          []string       `json:"recommended_actions"`
	Narrative        string         `json:"narrative"`
}

// Engine assesses fairness results.
type Engine struct {
	cfg Config
}

// NewEngine returns an Engine. Non-finite or out-of-range values fall back
// to the defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if !inUnit(cfg.DisparateImpactFloor) {
		cfg.DisparateImpactFloor = def.DisparateImpactFloor
	}
	if !inUnit(cfg.OverconfidenceThreshold) || cfg.OverconfidenceThreshold == 0 {
		cfg.OverconfidenceThreshold = def.OverconfidenceThreshold
	}
	return &Engine{cfg: cfg}
}

func inUnit(f float64) bool { return !math.IsNaN(f) && f >= 0 && f <= 1 }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// AssessEvaluation derives the alert for an evaluation, its accuracy
// disparity included.
func (e *Engine) AssessEvaluation(ev *fairness.Evaluation, log []fairness.Record) BiasAlert {
	if ev == nil {
		return e.Assess(nil, log)
	}
	results := append([]fairness.Result(nil), ev.Results...)
	if ev.AccuracyDisparity.Metric != "" {
		results = append(results, ev.AccuracyDisparity)
	}
	return e.Assess(results, log)
}

// Assess derives the alert for results computed over log.
func (e *Engine) Assess(results []fairness.Result, log []fairness.Record) BiasAlert {
	a := BiasAlert{Severity: Low, TriggeredMetrics: []Trigger{}}

	diLow := false
	for _, r := range results {
		if r.Status.Triggered() {
			a.TriggeredMetrics = append(a.TriggeredMetrics, Trigger{
				Metric:    r.Metric,
				Score:     r.Score,
				Status:    r.Status,
				Threshold: r.Threshold,
				Groups:    r.Groups,
			})
		}
		switch r.Status {
		case fairness.StatusBiased:
			a.Biased++
		case fairness.StatusConcerning:
			a.Concerning++
		}
		if r.Metric == fairness.DisparateImpact && r.Score.Valid() && float64(r.Score) < e.cfg.DisparateImpactFloor {
			diLow = true
		}
	}
	a.Overconfident = e.overconfident(log)

	if a.Biased+a.Concerning > 0 {
		a.Severity = raise(a.Severity, Medium)
	}
	if a.Biased >= 2 || (a.Biased >= 1 && diLow) {
		a.Severity = raise(a.Severity, MediumHigh)
	}
	if a.Biased >= 3 {
		a.Severity = raise(a.Severity, High)
	}
	if a.Biased >= 1 && a.Overconfident.Count > 0 {
		a.Severity = raise(a.Severity, Critical)
	}

	a.Actions = actionsFor(a)
	a.Narrative = narrate(a, len(results), e.cfg.OverconfidenceThreshold)
	logf(string(a.Severity), "%d biased, %d concerning, %d overconfident", a.Biased, a.Concerning, a.Overconfident.Count)
	return a
}

// Dangerous reports whether r is an overconfident malignant prediction
// contradicted by benign ground truth.
func (e *Engine) Dangerous(r fairness.Record) bool {
	truth, ok := r.Truth()
	return ok && truth == dataset.Benign && r.Predicted == dataset.Malignant && r.Confidence >= e.cfg.OverconfidenceThreshold
}

func (e *Engine) overconfident(log []fairness.Record) Overconfidence {
	var o Overconfidence
	for _, r := range log {
		if r.Validate() != nil || !e.Dangerous(r) {
			continue
		}
		o.Count++
		if len(o.Examples) < maxExamples {
			o.Examples = append(o.Examples, Example{
				Timestamp:  r.Timestamp.UTC().Format(time.RFC3339),
				SampleID:   r.SampleID,
				Group:      r.Group,
				Confidence: r.Confidence,
			})
		}
	}
	return o
}

// Annotated is a prediction passed through with review guidance.
type Annotated struct {
	fairness.Record
	Review bool   `json:"needs_review"`
	Note   string `json:"review_note,omitempty"`
}

// Annotate attaches advisory guidance to a prediction under the current
// alert. The prediction itself is returned unchanged.
func (e *Engine) Annotate(p fairness.Record, a BiasAlert) Annotated {
	out := Annotated{Record: p}
	switch {
	case a.Severity == Critical && p.Predicted == dataset.Malignant && p.Confidence >= e.cfg.OverconfidenceThreshold:
		out.Review = true
		out.Note = fmt.Sprintf("critical bias alert: very confident malignant prediction (%.2f); confirm with a dermatologist", p.Confidence)
	case a.Severity.AtLeast(MediumHigh):
		out.Review = true
		out.Note = fmt.Sprintf("%s bias alert for this model; review before acting on group %q", a.Severity, p.Group)
	case a.Severity.AtLeast(Medium):
		out.Note = fmt.Sprintf("%s bias alert: monitor", a.Severity)
	}
	return out
}


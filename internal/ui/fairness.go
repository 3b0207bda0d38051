package ui

import (
	"fmt"
	"io"
	"strings"
)

// FairnessReport mirrors fairness.Evaluation and alert.BiasAlert
// to avoid circular imports
type FairnessReport struct {
	Snapshot     string
	GroupBy      string
	Total        int
	Used         int
	Malformed    int
	Unverifiable int
	Ungrouped    int
	Warnings     []string
	Metrics      []MetricRow
	Performance  []PerformanceRow
	Alert        *AlertView
}

// PerformanceRow is one group's classification quality, preformatted.
type PerformanceRow struct {
	Group          string
	Size           int
	Accuracy       string
	Precision      string
	Recall         string
	F1             string
	ErrorRate      string
	MeanConfidence string
}

// MetricRow is one fairness metric result. Score is preformatted so that
// insufficient data renders as "n/a".
type MetricRow struct {
	Name   string
	Score  string
	Status string
	Pass   float64
	Floor  float64
	Reason string
	// Ratio is the numeric score; HasRatio is false for insufficient data.
	Ratio    float64
	HasRatio bool
	Groups   []GroupRow
	Excluded []string
}

// GroupRow is one group's score within a metric.
type GroupRow struct {
	Name  string
	Score string
	Size  int
}

// AlertView mirrors alert.BiasAlert.
type AlertView struct {
	Severity      string
	Triggered     []string
	Overconfident int
	Examples      []string
	Actions       []string
	Narrative     string
}

// FairnessUI renders evaluation results and the bias alert.
type FairnessUI struct {
	writer  io.Writer
	quiet   bool
	verbose bool
}

// NewFairnessUI returns a renderer; verbose adds per-group breakdowns.
func NewFairnessUI(w io.Writer, quiet, verbose bool) *FairnessUI {
	return &FairnessUI{writer: w, quiet: quiet, verbose: verbose}
}

func (f *FairnessUI) PrintReport(r FairnessReport) {
	if f.quiet {
		return
	}
	var sb strings.Builder
	sb.WriteString(Title.Render("Fairness Evaluation"))
	sb.WriteString("\n")
	sb.WriteString(FormatKeyValue("Snapshot", Highlight.Render(r.Snapshot)))
	sb.WriteString("\n")
	if r.GroupBy != "" {
		sb.WriteString(FormatKeyValue("Groups by", r.GroupBy))
		sb.WriteString("\n")
	}
	sb.WriteString(FormatKeyValue("Records", fmt.Sprintf("%d used of %d (%d malformed, %d without ground truth, %d in no known group)",
		r.Used, r.Total, r.Malformed, r.Unverifiable, r.Ungrouped)))

	sb.WriteString("\n\n")
	sb.WriteString(SectionHeader.Render("Metrics"))
	for _, m := range r.Metrics {
		sb.WriteString("\n")
		sb.WriteString(f.renderMetric(m))
	}

	if len(r.Performance) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(SectionHeader.Render("Group performance"))
		for _, p := range r.Performance {
			sb.WriteString("\n")
			sb.WriteString(fmt.Sprintf("%s %s %s acc %s  prec %s  rec %s  f1 %s  err %s  conf %s",
				GetBullet(), Bold.Render(p.Group), Muted.Render(fmt.Sprintf("size %d", p.Size)),
				p.Accuracy, p.Precision, p.Recall, p.F1, p.ErrorRate, p.MeanConfidence))
		}
	}

	for _, w := range r.Warnings {
		sb.WriteString("\n")
		sb.WriteString(FormatStatus("warning", Warning.Render(w)))
	}
	fmt.Fprintln(f.writer, Box.Render(sb.String()))

	if r.Alert != nil {
		f.printAlert(*r.Alert)
	}
}

func (f *FairnessUI) renderMetric(m MetricRow) string {
	var sb strings.Builder
	score := Muted.Render(m.Score)
	if m.HasRatio {
		score = renderProgressBar(m.Ratio, 20) + " " + scoreStyle(m.Ratio).Render(m.Score)
	}
	sb.WriteString(fmt.Sprintf("%s %s %s %s", GetBullet(), Bold.Render(m.Name), score, StatusText(m.Status)))
	sb.WriteString(Muted.Render(fmt.Sprintf("  (pass ≥ %.2f, floor %.2f)", m.Pass, m.Floor)))
	if m.Reason != "" {
		sb.WriteString("\n    ")
		sb.WriteString(Dim.Render(m.Reason))
	}
	if f.verbose {
		for _, g := range m.Groups {
			sb.WriteString("\n    ")
			sb.WriteString(fmt.Sprintf("%s %s %s", Dim.Render(g.Name), g.Score, Muted.Render(fmt.Sprintf("n=%d", g.Size))))
		}
	}
	if len(m.Excluded) > 0 {
		sb.WriteString("\n    ")
		sb.WriteString(Muted.Render("too small: " + strings.Join(m.Excluded, ", ")))
	}
	return sb.String()
}

func (f *FairnessUI) printAlert(a AlertView) {
	var sb strings.Builder
	sb.WriteString(Title.Render("Bias Alert"))
	sb.WriteString(" ")
	sb.WriteString(SeverityText(a.Severity))
	if a.Narrative != "" {
		sb.WriteString("\n")
		sb.WriteString(a.Narrative)
	}
	if len(a.Triggered) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(SectionHeader.Render("Triggered"))
		for _, t := range a.Triggered {
			sb.WriteString("\n")
			sb.WriteString(GetWarnMark() + " " + t)
		}
	}
	if a.Overconfident > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(SectionHeader.Render(fmt.Sprintf("Overconfident malignant predictions (%d)", a.Overconfident)))
		for _, ex := range a.Examples {
			sb.WriteString("\n")
			sb.WriteString(GetCrossMark() + " " + ex)
		}
	}
	if len(a.Actions) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(SectionHeader.Render("Recommended actions"))
		for _, act := range a.Actions {
			sb.WriteString("\n")
			sb.WriteString(GetBullet() + " " + act)
		}
	}

	switch a.Severity {
	case "low":
		fmt.Fprintln(f.writer, SuccessBox.Render(sb.String()))
	case "high", "critical":
		fmt.Fprintln(f.writer, ErrorBox.Render(sb.String()))
	default:
		fmt.Fprintln(f.writer, HighlightBox.Render(sb.String()))
	}
}

// PrintSimpleReport prints a minimal text report
func (f *FairnessUI) PrintSimpleReport(r FairnessReport) {
	fmt.Fprintf(f.writer, "Snapshot %s: %d/%d records used\n", r.Snapshot, r.Used, r.Total)
	for _, m := range r.Metrics {
		fmt.Fprintf(f.writer, "  %s: %s (%s)\n", m.Name, m.Score, m.Status)
	}
	for _, p := range r.Performance {
		fmt.Fprintf(f.writer, "  group %s: size=%d accuracy=%s recall=%s\n", p.Group, p.Size, p.Accuracy, p.Recall)
	}
	if r.Alert != nil {
		fmt.Fprintf(f.writer, "Severity: %s\n", r.Alert.Severity)
		for _, act := range r.Alert.Actions {
			fmt.Fprintf(f.writer, "  - %s\n", act)
		}
	}
}

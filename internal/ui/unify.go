package ui

import (
	"fmt"
	"io"
	"strings"
)

// UnifyReport mirrors the unification report from internal/unify
// to avoid circular imports
type UnifyReport struct {
	Version      string
	Output       string
	TotalRead    int
	TotalSamples int
	Counts       map[string]int
	Sources      []SourceRow
}

// SourceRow is one source line of a unification report.
type SourceRow struct {
	ID         string
	Read       int
	Samples    int
	Mapped     int
	Unmapped   int
	Malformed  int
	Duplicates int
	// Failure is set when the source was excluded from the corpus.
	Failure string
	// TopUnmapped lists the most frequent unmapped raw labels.
	TopUnmapped []string
}

// UnifyUI renders the outcome of the unify command.
type UnifyUI struct {
	writer io.Writer
	quiet  bool
}

func NewUnifyUI(w io.Writer, quiet bool) *UnifyUI {
	return &UnifyUI{writer: w, quiet: quiet}
}

// PrintReport renders the unification report in a box.
func (u *UnifyUI) PrintReport(r UnifyReport) {
	if u.quiet {
		return
	}
	var sb strings.Builder

	sb.WriteString(Title.Render("Unified Corpus"))
	sb.WriteString("\n")
	if r.Version != "" {
		sb.WriteString(FormatKeyValue("Version", Highlight.Render(r.Version)))
		sb.WriteString("\n")
	}
	if r.Output != "" {
		sb.WriteString(FormatKeyValue("Output", r.Output))
		sb.WriteString("\n")
	}
	sb.WriteString(FormatKeyValue("Samples", fmt.Sprintf("%d of %d records", r.TotalSamples, r.TotalRead)))
	sb.WriteString("\n")
	for _, label := range []string{"benign", "malignant", "unmapped"} {
		if n, ok := r.Counts[label]; ok {
			sb.WriteString(fmt.Sprintf("  %s %s %d\n", GetBullet(), Dim.Render(label+":"), n))
		}
	}

	failed := 0
	sb.WriteString("\n")
	sb.WriteString(SectionHeader.Render("Sources"))
	for _, s := range r.Sources {
		sb.WriteString("\n")
		if s.Failure != "" {
			failed++
			sb.WriteString(fmt.Sprintf("%s %s %s", GetCrossMark(), Bold.Render(s.ID), Error.Render(s.Failure)))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s %s %s", GetCheckMark(), Bold.Render(s.ID),
			Dim.Render(fmt.Sprintf("%d samples (%d mapped, %d unmapped, %d malformed, %d duplicates)",
				s.Samples, s.Mapped, s.Unmapped, s.Malformed, s.Duplicates))))
		if len(s.TopUnmapped) > 0 {
			sb.WriteString("\n    ")
			sb.WriteString(Muted.Render("unmapped: " + strings.Join(s.TopUnmapped, ", ")))
		}
	}

	if failed > 0 {
		fmt.Fprintln(u.writer, ErrorBox.Render(sb.String()))
		return
	}
	fmt.Fprintln(u.writer, SuccessBox.Render(sb.String()))
}

// PrintSimpleReport prints a minimal text report
func (u *UnifyUI) PrintSimpleReport(r UnifyReport) {
	fmt.Fprintf(u.writer, "Corpus %s: %d samples from %d records\n", r.Version, r.TotalSamples, r.TotalRead)
	for _, s := range r.Sources {
		if s.Failure != "" {
			fmt.Fprintf(u.writer, "  %s: FAILED %s\n", s.ID, s.Failure)
			continue
		}
		fmt.Fprintf(u.writer, "  %s: %d samples, %d unmapped\n", s.ID, s.Samples, s.Unmapped)
	}
}

package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// CoverageReport mirrors validator.Coverage to avoid circular imports
type CoverageReport struct {
	Source   string
	Version  string
	Valid    bool
	Coverage float64
	Records  int
	Mapped   int
	Unmapped []LabelRow
	Unused   []string
	Errors   []string
	Warnings []string
}

// LabelRow is a raw label with its record count.
type LabelRow struct {
	Label string
	Count int
}

// CoverageUI renders mapping table coverage checks.
type CoverageUI struct {
	writer io.Writer
	quiet  bool
	// limit caps the number of labels listed per section.
	limit int
}

func NewCoverageUI(w io.Writer, quiet bool) *CoverageUI {
	return &CoverageUI{writer: w, quiet: quiet, limit: 15}
}

func (c *CoverageUI) PrintReport(r CoverageReport) {
	if c.quiet {
		return
	}
	var sb strings.Builder
	if r.Valid {
		sb.WriteString(Success.Bold(true).Render("✓ Mapping table covers " + r.Source))
	} else {
		sb.WriteString(Error.Bold(true).Render("✗ Mapping table does not cover " + r.Source))
	}
	sb.WriteString("\n\n")
	if r.Version != "" {
		sb.WriteString(FormatKeyValue("Version", r.Version))
		sb.WriteString("\n")
	}
	sb.WriteString(FormatKeyValue("Coverage", renderProgressBar(r.Coverage, 40)+" "+renderPercentage(r.Coverage)))
	sb.WriteString("\n")
	sb.WriteString(Dim.Render(fmt.Sprintf("(%d/%d records mapped)", r.Mapped, r.Records)))

	if len(r.Unmapped) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(SectionHeader.Render(fmt.Sprintf("Unmapped labels (%d)", len(r.Unmapped))))
		for i, l := range r.Unmapped {
			if i == c.limit {
				sb.WriteString("\n  " + Muted.Render(fmt.Sprintf("… %d more", len(r.Unmapped)-c.limit)))
				break
			}
			sb.WriteString(fmt.Sprintf("\n  %s %s %s", GetCrossMark(), l.Label, Muted.Render(fmt.Sprintf("×%d", l.Count))))
		}
	}
	if len(r.Unused) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(SectionHeader.Render(fmt.Sprintf("Unused entries (%d)", len(r.Unused))))
		sb.WriteString("\n  ")
		shown := r.Unused
		if len(shown) > c.limit {
			shown = shown[:c.limit]
		}
		sb.WriteString(Muted.Render(strings.Join(shown, ", ")))
	}
	for _, e := range r.Errors {
		sb.WriteString("\n")
		sb.WriteString(FormatStatus("error", e))
	}
	for _, w := range r.Warnings {
		sb.WriteString("\n")
		sb.WriteString(FormatStatus("warning", w))
	}

	if r.Valid {
		fmt.Fprintln(c.writer, SuccessBox.Render(sb.String()))
		return
	}
	fmt.Fprintln(c.writer, ErrorBox.Render(sb.String()))
}

// TableRow is one entry of a mapping table listing.
type TableRow struct {
	Source      string
	Version     string
	Description string
	Labels      map[string]string
	Attributes  []string
}

// PrintTables lists mapping tables; verbose includes every raw label.
func (c *CoverageUI) PrintTables(tables []TableRow, verbose bool) {
	if c.quiet {
		return
	}
	var sb strings.Builder
	sb.WriteString(Title.Render("Mapping Tables"))
	for _, t := range tables {
		benign, malignant := 0, 0
		for _, l := range t.Labels {
			if l == "malignant" {
				malignant++
			} else {
				benign++
			}
		}
		sb.WriteString("\n\n")
		sb.WriteString(fmt.Sprintf("%s %s %s", GetBullet(), Highlight.Render(t.Source), Muted.Render("v"+t.Version)))
		if t.Description != "" {
			sb.WriteString("\n  " + Dim.Render(t.Description))
		}
		sb.WriteString(fmt.Sprintf("\n  %s %d benign, %d malignant", Dim.Render("labels:"), benign, malignant))
		if len(t.Attributes) > 0 {
			sb.WriteString("\n  " + Dim.Render("attributes: ") + strings.Join(t.Attributes, ", "))
		}
		if verbose {
			for _, raw := range sortedKeys(t.Labels) {
				sb.WriteString(fmt.Sprintf("\n    %s → %s", raw, t.Labels[raw]))
			}
		}
	}
	fmt.Fprintln(c.writer, Box.Render(sb.String()))
}

// PrintSimpleReport prints a minimal text report
func (c *CoverageUI) PrintSimpleReport(r CoverageReport) {
	status := "PASSED"
	if !r.Valid {
		status = "FAILED"
	}
	fmt.Fprintf(c.writer, "%s %s: %.1f%% coverage (%d/%d)\n", r.Source, status, r.Coverage*100, r.Mapped, r.Records)
	for _, l := range r.Unmapped {
		fmt.Fprintf(c.writer, "  unmapped %q ×%d\n", l.Label, l.Count)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

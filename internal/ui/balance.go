package ui

import (
	"fmt"
	"io"
	"strings"
)

// BalancePlan mirrors balance.Plan to avoid circular imports
type BalancePlan struct {
	Total    int
	Majority string
	Ratio    float64
	Excluded int
	Classes  []ClassRow
}

// ClassRow is one class of a balancing plan.
type ClassRow struct {
	Label        string
	Count        int
	Weight       float64
	Augmentation int
	Effective    int
}

// BalanceUI renders class-balancing plans.
type BalanceUI struct {
	writer io.Writer
	quiet  bool
}

func NewBalanceUI(w io.Writer, quiet bool) *BalanceUI {
	return &BalanceUI{writer: w, quiet: quiet}
}

func (b *BalanceUI) PrintReport(p BalancePlan) {
	if b.quiet {
		return
	}
	var sb strings.Builder
	sb.WriteString(Title.Render("Class Balance Plan"))
	sb.WriteString("\n")
	sb.WriteString(FormatKeyValue("Samples", fmt.Sprintf("%d", p.Total)))
	sb.WriteString("\n")
	sb.WriteString(FormatKeyValue("Majority", p.Majority))
	sb.WriteString("\n")
	sb.WriteString(FormatKeyValue("Imbalance", fmt.Sprintf("%.2f : 1", p.Ratio)))
	if p.Excluded > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatStatus("warning", fmt.Sprintf("%d unmapped samples excluded", p.Excluded)))
	}
	sb.WriteString("\n\n")
	sb.WriteString(SectionHeader.Render("Classes"))
	for _, c := range p.Classes {
		share := 0.0
		if p.Total > 0 {
			share = float64(c.Count) / float64(p.Total)
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-10s %s %6d  %s %s  %s %s",
			Bold.Render(c.Label),
			renderProgressBar(share, 20), c.Count,
			Dim.Render("weight"), fmt.Sprintf("%.3f", c.Weight),
			Dim.Render("augment"), fmt.Sprintf("×%d → %d", c.Augmentation, c.Effective)))
	}
	fmt.Fprintln(b.writer, Box.Render(sb.String()))
}

// PrintSimpleReport prints a minimal text report
func (b *BalanceUI) PrintSimpleReport(p BalancePlan) {
	fmt.Fprintf(b.writer, "Total %d, majority %s, ratio %.2f\n", p.Total, p.Majority, p.Ratio)
	for _, c := range p.Classes {
		fmt.Fprintf(b.writer, "  %s: count=%d weight=%.3f augmentation=%d\n", c.Label, c.Count, c.Weight, c.Augmentation)
	}
}

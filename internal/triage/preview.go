package triage

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
)

// RenderPreview formats the pending table changes.
func RenderPreview(before, after labelmap.Table, changes []Change) string {
	var sb strings.Builder

	sb.WriteString(ui.Bold.Render("Preview Changes"))
	sb.WriteString("\n\n")
	sb.WriteString(ui.Primary.Render("Table:"))
	sb.WriteString(fmt.Sprintf(" %s %s → %s\n\n", before.Source,
		ui.Dim.Render(before.Version), ui.Highlight.Render(after.Version)))

	records := 0
	sb.WriteString(ui.Primary.Render("New entries:"))
	sb.WriteString("\n")
	for _, c := range sortedChanges(changes) {
		records += c.Count
		sb.WriteString(fmt.Sprintf("  %s %s: %s %s\n",
			ui.Success.Render("✓"),
			ui.Secondary.Render(truncateValue(c.Label, 40)),
			string(c.Decision),
			ui.Dim.Render(fmt.Sprintf("(%d records)", c.Count))))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Entries: %d → %d, %d record(s) now mapped",
		len(before.Labels), len(after.Labels), records))

	return ui.Box.Render(sb.String())
}

// ShowPreviewWithConfirm shows a preview of changes and asks for confirmation using huh
func ShowPreviewWithConfirm(w io.Writer, before, after labelmap.Table, changes []Change) (bool, error) {
	fmt.Fprintln(w, RenderPreview(before, after, changes))

	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save table?").
				Description("Write the new table version with these entries?").
				Value(&confirm).
				Affirmative("Yes").
				Negative("No"),
		),
	).WithOutput(w)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirm, nil
}

func truncateValue(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

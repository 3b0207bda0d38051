package triage

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
	"github.com/idlab-discover/FairDerm-cli/internal/validator"
)

// maxFormLabels caps how many labels one form asks about.
const maxFormLabels = 50

func (t *Triager) decideInteractive(table labelmap.Table, unmapped []validator.LabelCount) (map[string]Decision, error) {
	labels := unmapped
	if len(labels) > maxFormLabels {
		fmt.Fprintf(t.writer, "%s %d labels unmapped, asking about the %d most frequent\n",
			ui.GetWarnMark(), len(labels), maxFormLabels)
		labels = labels[:maxFormLabels]
	}

	// Storage for form values
	valueStore := make([]string, len(labels))
	for i := range valueStore {
		valueStore[i] = string(Skip)
	}

	formGroups := []*huh.Group{huh.NewGroup(
		huh.NewNote().
			Title("Label Triage: "+table.Source).
			Description(fmt.Sprintf("%d raw label(s) have no mapping in table version %s.\nChoose a class for each, or skip to leave it unmapped.",
				len(labels), table.Version)).
			Next(true).
			NextLabel("Continue"),
	)}
	for i, l := range labels {
		formGroups = append(formGroups, huh.NewGroup(labelSelect(l, &valueStore[i])))
	}

	form := huh.NewForm(formGroups...)
	if t.reader != nil {
		form = form.WithInput(t.reader)
	}
	form = form.WithOutput(t.writer)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, apperr.ErrCancelled
		}
		return nil, err
	}

	out := make(map[string]Decision, len(labels))
	for i, l := range labels {
		d, err := ParseDecision(valueStore[i])
		if err != nil {
			continue
		}
		out[labelmap.Normalize(l.Label)] = d
	}
	return out, nil
}

func labelSelect(l validator.LabelCount, value *string) huh.Field {
	return huh.NewSelect[string]().
		Title(l.Label).
		Description(ui.Dim.Render(fmt.Sprintf("%d record(s)", l.Count))).
		Options(
			huh.NewOption("skip (leave unmapped)", string(Skip)),
			huh.NewOption("benign", string(Benign)),
			huh.NewOption("malignant", string(Malignant)),
		).
		Value(value)
}

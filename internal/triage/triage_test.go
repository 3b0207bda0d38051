package triage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/validator"
)

func clinicTable() labelmap.Table {
	return labelmap.Table{
		Source:  "clinic",
		Version: "3",
		Labels:  map[string]dataset.Label{"nevus": dataset.Benign, "melanoma": dataset.Malignant},
	}
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3", "3-triage1"},
		{"3-triage1", "3-triage2"},
		{"2024.1-triage9", "2024.1-triage10"},
		{"", "0-triage1"},
		{"v1-triagex", "v1-triagex-triage1"},
	}
	for _, tt := range tests {
		if got := NextVersion(tt.in); got != tt.want {
			t.Fatalf("NextVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    Decision
		wantErr bool
	}{
		{"benign", Benign, false},
		{" Malignant ", Malignant, false},
		{"skip", Skip, false},
		{"", Skip, false},
		{"maybe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDecision(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDecision(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseDecision(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApply_CopiesAndBumps(t *testing.T) {
	before := clinicTable()
	after, err := Apply(before, []Change{{Label: "mole", Count: 2, Decision: Benign}})
	if err != nil {
		t.Fatalf("Apply err = %v", err)
	}
	if after.Labels["mole"] != dataset.Benign {
		t.Fatalf("Labels[mole] = %q, want benign", after.Labels["mole"])
	}
	if _, ok := before.Labels["mole"]; ok {
		t.Fatalf("Apply modified the input table")
	}
	if after.Version != "3-triage1" {
		t.Fatalf("Version = %q, want 3-triage1", after.Version)
	}
}

func TestDecodeAnswers(t *testing.T) {
	got, err := DecodeAnswers(strings.NewReader("labels:\n  Mole: benign\n  lentigo_maligna: malignant\n  odd: skip\n"))
	if err != nil {
		t.Fatalf("DecodeAnswers err = %v", err)
	}
	if got["mole"] != Benign || got["lentigo maligna"] != Malignant || got["odd"] != Skip {
		t.Fatalf("DecodeAnswers = %v", got)
	}

	if _, err := DecodeAnswers(strings.NewReader("labels:\n  mole: unsure\n")); !apperr.IsUser(err) {
		t.Fatalf("bad decision err = %v, want user error", err)
	}
	if got, err := DecodeAnswers(strings.NewReader("")); err != nil || len(got) != 0 {
		t.Fatalf("empty answers = %v, %v", got, err)
	}
}

func writeAnswers(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write answers: %v", err)
	}
	return path
}

func TestTriage_FileStrategy(t *testing.T) {
	path := writeAnswers(t, "labels:\n  mole: benign\n  lentigo maligna: malignant\n")
	tr := New(Options{Config: Config{Strategy: "file", AnswersFile: path}})

	unmapped := []validator.LabelCount{
		{Label: "lentigo maligna", Count: 3},
		{Label: "mole", Count: 2},
		{Label: "unknown", Count: 1},
	}
	next, changes, err := tr.Triage(clinicTable(), unmapped)
	if err != nil {
		t.Fatalf("Triage err = %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %+v, want 2", changes)
	}
	if changes[0].Label != "lentigo maligna" || changes[0].Count != 3 {
		t.Fatalf("changes[0] = %+v, want lentigo maligna ×3", changes[0])
	}
	if next.Labels["lentigo maligna"] != dataset.Malignant {
		t.Fatalf("Labels = %v", next.Labels)
	}
	if _, ok := next.Labels["unknown"]; ok {
		t.Fatalf("unanswered label was mapped")
	}
	if next.Version != "3-triage1" {
		t.Fatalf("Version = %q", next.Version)
	}
}

func TestTriage_NothingToDo(t *testing.T) {
	tr := New(Options{Config: Config{Strategy: "file", AnswersFile: writeAnswers(t, "labels:\n  mole: skip\n")}})
	table := clinicTable()

	next, changes, err := tr.Triage(table, nil)
	if err != nil || changes != nil || next.Version != table.Version {
		t.Fatalf("Triage(nil) = %v, %v, %v", next.Version, changes, err)
	}

	next, changes, err = tr.Triage(table, []validator.LabelCount{{Label: "mole", Count: 1}})
	if err != nil || len(changes) != 0 || next.Version != "3" {
		t.Fatalf("all skipped = %v, %v, %v", next.Version, changes, err)
	}
}

func TestTriage_Errors(t *testing.T) {
	unmapped := []validator.LabelCount{{Label: "mole", Count: 1}}

	_, _, err := New(Options{Config: Config{Strategy: "telepathy"}}).Triage(clinicTable(), unmapped)
	if !apperr.IsUser(err) {
		t.Fatalf("unknown strategy err = %v, want user error", err)
	}

	_, _, err = New(Options{Config: Config{Strategy: "file"}}).Triage(clinicTable(), unmapped)
	if !apperr.IsUser(err) {
		t.Fatalf("missing answers err = %v, want user error", err)
	}

	_, _, err = New(Options{Config: Config{Strategy: "file", AnswersFile: filepath.Join(t.TempDir(), "nope.yaml")}}).Triage(clinicTable(), unmapped)
	if err == nil || errors.Is(err, apperr.ErrCancelled) {
		t.Fatalf("missing file err = %v", err)
	}
}

func TestRenderPreview(t *testing.T) {
	before := clinicTable()
	changes := []Change{{Label: "mole", Count: 2, Decision: Benign}, {Label: "lmm", Count: 1, Decision: Malignant}}
	after, err := Apply(before, changes)
	if err != nil {
		t.Fatalf("Apply err = %v", err)
	}
	out := RenderPreview(before, after, changes)
	for _, want := range []string{"Preview Changes", "clinic", "3-triage1", "mole", "benign", "(2 records)", "Entries: 2 → 4, 3 record(s) now mapped"} {
		if !strings.Contains(out, want) {
			t.Errorf("preview missing %q.\nGot:\n%s", want, out)
		}
	}
	if strings.Index(out, "lmm") > strings.Index(out, "mole") {
		t.Errorf("changes not sorted:\n%s", out)
	}
}

// Package triage assigns canonical labels to raw labels a mapping table does
// not cover and produces the next version of the table.
package triage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/validator"
)

// Decision is the outcome for one raw label.
type Decision string

const (
	Benign    Decision = "benign"
	Malignant Decision = "malignant"
	Skip      Decision = "skip"
)

// ParseDecision accepts benign, malignant or skip in any case.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case Benign:
		return Benign, nil
	case Malignant:
		return Malignant, nil
	case Skip, "":
		return Skip, nil
	}
	return "", fmt.Errorf("unknown decision %q (want benign, malignant or skip)", s)
}

// Config holds triage configuration
type Config struct {
	Strategy    string // "interactive" or "file"
	AnswersFile string // path to the answers file (for file strategy)
	NoPreview   bool   // skip preview
}

// Options for creating a Triager
type Options struct {
	Reader io.Reader
	Writer io.Writer
	Config Config
}

// Change is one decision applied to a table.
type Change struct {
	Label    string   `json:"label" yaml:"label"`
	Count    int      `json:"count" yaml:"count"`
	Decision Decision `json:"decision" yaml:"decision"`
}

// Triager handles label triage
type Triager struct {
	reader io.Reader
	writer io.Writer
	config Config
}

// New creates a new Triager
func New(opts Options) *Triager {
	w := opts.Writer
	if w == nil {
		w = io.Discard
	}
	return &Triager{
		reader: opts.Reader,
		writer: w,
		config: opts.Config,
	}
}

// Triage decides each unmapped label and returns the updated table with its
// version bumped. Skipped labels stay unmapped. When nothing changes the
// input table is returned as is.
func (t *Triager) Triage(table labelmap.Table, unmapped []validator.LabelCount) (labelmap.Table, []Change, error) {
	if len(unmapped) == 0 {
		return table, nil, nil
	}

	var decisions map[string]Decision
	var err error
	switch t.config.Strategy {
	case "file":
		decisions, err = t.decideFromFile(unmapped)
	case "interactive", "":
		decisions, err = t.decideInteractive(table, unmapped)
	default:
		return table, nil, apperr.Userf("unknown triage strategy: %s", t.config.Strategy)
	}
	if err != nil {
		return table, nil, err
	}

	changes := collectChanges(unmapped, decisions)
	if len(changes) == 0 {
		logf(table.Source, "no labels assigned")
		return table, nil, nil
	}

	next, err := Apply(table, changes)
	if err != nil {
		return table, nil, err
	}

	if !t.config.NoPreview && t.config.Strategy != "file" {
		ok, err := ShowPreviewWithConfirm(t.writer, table, next, changes)
		if err != nil {
			return table, nil, fmt.Errorf("preview error: %w", err)
		}
		if !ok {
			return table, nil, apperr.ErrCancelled
		}
	}
	logf(table.Source, "assigned %d label(s), version %s -> %s", len(changes), table.Version, next.Version)
	return next, changes, nil
}

func collectChanges(unmapped []validator.LabelCount, decisions map[string]Decision) []Change {
	var changes []Change
	for _, u := range unmapped {
		d := decisions[labelmap.Normalize(u.Label)]
		if d == "" || d == Skip {
			continue
		}
		changes = append(changes, Change{Label: labelmap.Normalize(u.Label), Count: u.Count, Decision: d})
	}
	return changes
}

// Apply adds changes to a copy of table and bumps its version.
func Apply(table labelmap.Table, changes []Change) (labelmap.Table, error) {
	out := table
	out.Labels = make(map[string]dataset.Label, len(table.Labels)+len(changes))
	for k, v := range table.Labels {
		out.Labels[k] = v
	}
	for _, c := range changes {
		switch c.Decision {
		case Benign:
			out.Labels[c.Label] = dataset.Benign
		case Malignant:
			out.Labels[c.Label] = dataset.Malignant
		}
	}
	out.Version = NextVersion(table.Version)
	return out.Validate()
}

// NextVersion appends or increments a "-triageN" suffix.
func NextVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		v = "0"
	}
	if i := strings.LastIndex(v, "-triage"); i >= 0 {
		if n, err := strconv.Atoi(v[i+len("-triage"):]); err == nil {
			return v[:i] + "-triage" + strconv.Itoa(n+1)
		}
	}
	return v + "-triage1"
}

// answers is the file strategy document:
//
//	labels:
//	  mole: benign
//	  lentigo maligna: malignant
type answers struct {
	Labels map[string]string `yaml:"labels"`
}

func (t *Triager) decideFromFile(unmapped []validator.LabelCount) (map[string]Decision, error) {
	if t.config.AnswersFile == "" {
		return nil, apperr.User("file strategy requires an answers file")
	}
	data, err := os.ReadFile(t.config.AnswersFile)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	return DecodeAnswers(bytes.NewReader(data))
}

// DecodeAnswers parses an answers document into normalised decisions.
func DecodeAnswers(r io.Reader) (map[string]Decision, error) {
	var a answers
	if err := yaml.NewDecoder(r).Decode(&a); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	out := make(map[string]Decision, len(a.Labels))
	for raw, v := range a.Labels {
		d, err := ParseDecision(v)
		if err != nil {
			return nil, apperr.Userf("answers: label %q: %v", raw, err)
		}
		out[labelmap.Normalize(raw)] = d
	}
	return out, nil
}

func sortedChanges(changes []Change) []Change {
	out := append([]Change(nil), changes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

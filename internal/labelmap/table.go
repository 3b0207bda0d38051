// Package labelmap translates dataset-specific diagnosis vocabularies into
// the canonical benign/malignant taxonomy and harmonises demographic
// attributes across sources.
//
// Mapping tables are data, not code: one versioned YAML document per source,
// inspectable and testable against every raw label a source produces.
package labelmap

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// Table is the mapping artifact for one source.
type Table struct {
	Source      string                   `yaml:"source"`
	Version     string                   `yaml:"version"`
	Description string                   `yaml:"description,omitempty"`
	Labels      map[string]dataset.Label `yaml:"labels"`
	Attributes  map[string]AttributeRule `yaml:"attributes,omitempty"`
}

// AttributeRule harmonises one canonical demographic attribute.
type AttributeRule struct {
	// Fields lists the source field names that carry the attribute. The
	// canonical name itself is always tried last.
	Fields []string `yaml:"fields,omitempty"`
	// Values maps normalised source values to canonical values.
	Values map[string]string `yaml:"values,omitempty"`
	// Buckets turn numeric values into ranges when no value matches.
	Buckets []Bucket `yaml:"buckets,omitempty"`
}

// Bucket covers the half-open range [Min, Max).
type Bucket struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Value string  `yaml:"value"`
}

// Normalize canonicalises a raw label or attribute value for lookup:
// trimmed, lower-cased, underscores read as spaces, inner whitespace
// collapsed.
func Normalize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	return strings.Join(strings.Fields(s), " ")
}

// Validate checks that the table is usable and returns a copy with all keys
// normalised.
func (t Table) Validate() (Table, error) {
	src := strings.TrimSpace(t.Source)
	if src == "" {
		return Table{}, fmt.Errorf("mapping table: source is required")
	}
	if len(t.Labels) == 0 {
		return Table{}, fmt.Errorf("mapping table %q: no labels", src)
	}

	out := Table{
		Source:      src,
		Version:     strings.TrimSpace(t.Version),
		Description: t.Description,
		Labels:      make(map[string]dataset.Label, len(t.Labels)),
		Attributes:  make(map[string]AttributeRule, len(t.Attributes)),
	}
	for raw, target := range t.Labels {
		key := Normalize(raw)
		if key == "" {
			return Table{}, fmt.Errorf("mapping table %q: empty raw label", src)
		}
		if !target.Trainable() {
			return Table{}, fmt.Errorf("mapping table %q: raw label %q maps to %q (expected benign|malignant)", src, raw, target)
		}
		if prev, ok := out.Labels[key]; ok && prev != target {
			return Table{}, fmt.Errorf("mapping table %q: raw label %q maps to both %q and %q", src, key, prev, target)
		}
		out.Labels[key] = target
	}

	for name, rule := range t.Attributes {
		canonical := Normalize(name)
		if canonical == "" {
			return Table{}, fmt.Errorf("mapping table %q: empty attribute name", src)
		}
		norm := AttributeRule{Values: make(map[string]string, len(rule.Values))}
		for _, f := range rule.Fields {
			if f = Normalize(f); f != "" {
				norm.Fields = append(norm.Fields, f)
			}
		}
		for v, c := range rule.Values {
			norm.Values[Normalize(v)] = strings.TrimSpace(c)
		}
		for _, b := range rule.Buckets {
			if b.Max <= b.Min {
				return Table{}, fmt.Errorf("mapping table %q: attribute %q bucket %q has max <= min", src, canonical, b.Value)
			}
			norm.Buckets = append(norm.Buckets, b)
		}
		sort.Slice(norm.Buckets, func(i, j int) bool { return norm.Buckets[i].Min < norm.Buckets[j].Min })
		out.Attributes[strings.ReplaceAll(canonical, " ", "_")] = norm
	}
	return out, nil
}

// RawLabels returns the table's raw labels in sorted order.
func (t Table) RawLabels() []string {
	keys := make([]string, 0, len(t.Labels))
	for k := range t.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode reads one YAML table.
func Decode(r io.Reader) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Table{}, fmt.Errorf("decode mapping table: %w", err)
	}
	return t.Validate()
}

// LoadFile reads a YAML table from disk.
func LoadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Encode renders a table as YAML.
func Encode(t Table) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

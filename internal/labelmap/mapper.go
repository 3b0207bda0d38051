package labelmap

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// DefaultRequired lists the canonical attributes every sample carries.
var DefaultRequired = []string{"skin_type", "age_group", "sex"}

// Tally counts lookups for one source.
type Tally struct {
	Observed int
	Unmapped int
	// Labels counts each distinct unmapped raw label.
	Labels map[string]int
}

// Mapper resolves raw labels and attributes against per-source tables.
// A Mapper belongs to one unification run; its counters are safe for
// concurrent use by per-source workers.
type Mapper struct {
	tables   map[string]Table
	required []string

	mu     sync.Mutex
	tallys map[string]*Tally
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithRequired overrides the canonical attributes filled with "unknown"
// when absent.
func WithRequired(names ...string) Option {
	return func(m *Mapper) {
		m.required = append([]string(nil), names...)
	}
}

// NewMapper validates the tables and indexes them by source. Two tables for
// the same source are rejected.
func NewMapper(tables []Table, opts ...Option) (*Mapper, error) {
	m := &Mapper{
		tables:   make(map[string]Table, len(tables)),
		required: DefaultRequired,
		tallys:   make(map[string]*Tally),
	}
	for _, t := range tables {
		v, err := t.Validate()
		if err != nil {
			return nil, err
		}
		if _, dup := m.tables[v.Source]; dup {
			return nil, fmt.Errorf("duplicate mapping table for source %q", v.Source)
		}
		m.tables[v.Source] = v
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Map returns the canonical label for rawLabel in sourceID's vocabulary.
// Labels with no table entry, including labels of unknown sources, map to
// dataset.Unmapped and are counted.
func (m *Mapper) Map(rawLabel, sourceID string) dataset.Label {
	return m.MapIn(rawLabel, sourceID, sourceID)
}

// MapIn resolves rawLabel against table and counts the lookup under
// sourceID, so several sources can share one table and keep separate
// counters.
func (m *Mapper) MapIn(rawLabel, sourceID, table string) dataset.Label {
	key := Normalize(rawLabel)
	label := dataset.Unmapped
	if t, ok := m.tables[table]; ok {
		if l, found := t.Labels[key]; found {
			label = l
		}
	}

	m.mu.Lock()
	tally := m.tally(sourceID)
	tally.Observed++
	if label == dataset.Unmapped {
		tally.Unmapped++
		tally.Labels[key]++
	}
	m.mu.Unlock()

	if label == dataset.Unmapped {
		logf(sourceID, "unmapped raw label %q", rawLabel)
	}
	return label
}

func (m *Mapper) tally(sourceID string) *Tally {
	t, ok := m.tallys[sourceID]
	if !ok {
		t = &Tally{Labels: map[string]int{}}
		m.tallys[sourceID] = t
	}
	return t
}

// Tally returns a copy of the counters for sourceID.
func (m *Mapper) Tally(sourceID string) Tally {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tallys[sourceID]
	if !ok {
		return Tally{Labels: map[string]int{}}
	}
	labels := make(map[string]int, len(t.Labels))
	for k, v := range t.Labels {
		labels[k] = v
	}
	return Tally{Observed: t.Observed, Unmapped: t.Unmapped, Labels: labels}
}

// Unmapped returns how many lookups for sourceID yielded dataset.Unmapped.
func (m *Mapper) Unmapped(sourceID string) int { return m.Tally(sourceID).Unmapped }

// Observed returns how many lookups were made for sourceID.
func (m *Mapper) Observed(sourceID string) int { return m.Tally(sourceID).Observed }

// Table returns the validated table for sourceID.
func (m *Mapper) Table(sourceID string) (Table, bool) {
	t, ok := m.tables[sourceID]
	return t, ok
}

// Sources lists the sources with a table, sorted.
func (m *Mapper) Sources() []string {
	out := make([]string, 0, len(m.tables))
	for s := range m.tables {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Attributes harmonises raw demographic fields into canonical attributes.
// Values the table does not recognise become dataset.Unknown, and every
// required attribute is present in the result.
func (m *Mapper) Attributes(sourceID string, raw map[string]string) map[string]string {
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[Normalize(k)] = v
	}

	out := make(map[string]string, len(m.required))
	if t, ok := m.tables[sourceID]; ok {
		for name, rule := range t.Attributes {
			value, present := lookupField(fields, rule.Fields, name)
			if !present {
				continue
			}
			out[name] = rule.resolve(value)
		}
	}
	for _, name := range m.required {
		if _, ok := out[name]; !ok {
			out[name] = dataset.Unknown
		}
	}
	return out
}

func lookupField(fields map[string]string, names []string, canonical string) (string, bool) {
	candidates := append(append([]string(nil), names...), Normalize(canonical))
	for _, n := range candidates {
		if v, ok := fields[n]; ok && Normalize(v) != "" {
			return v, true
		}
	}
	return "", false
}

func (r AttributeRule) resolve(value string) string {
	key := Normalize(value)
	if c, ok := r.Values[key]; ok && c != "" {
		return c
	}
	if len(r.Buckets) > 0 {
		if f, err := strconv.ParseFloat(key, 64); err == nil {
			for _, b := range r.Buckets {
				if f >= b.Min && f < b.Max {
					return b.Value
				}
			}
		}
	}
	return dataset.Unknown
}

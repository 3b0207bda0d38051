package labelmap

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed tables/*.yaml
var builtin embed.FS

// Defaults returns the built-in tables for the supported public datasets,
// sorted by source.
func Defaults() ([]Table, error) {
	entries, err := fs.ReadDir(builtin, "tables")
	if err != nil {
		return nil, err
	}
	tables := make([]Table, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		f, err := builtin.Open(path.Join("tables", e.Name()))
		if err != nil {
			return nil, err
		}
		t, err := Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("built-in table %s: %w", e.Name(), err)
		}
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Source < tables[j].Source })
	return tables, nil
}

// Resolve merges user tables over the built-in defaults: a user table
// replaces the default for the same source.
func Resolve(paths []string) ([]Table, error) {
	defaults, err := Defaults()
	if err != nil {
		return nil, err
	}
	bySource := make(map[string]Table, len(defaults)+len(paths))
	for _, t := range defaults {
		bySource[t.Source] = t
	}
	for _, p := range paths {
		t, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		logf(t.Source, "using table %s (version %s)", p, t.Version)
		bySource[t.Source] = t
	}

	out := make([]Table, 0, len(bySource))
	for _, t := range bySource {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

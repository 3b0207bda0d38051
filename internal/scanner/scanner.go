// Package scanner discovers dermatology dataset sources on disk and opens
// them as lazy record streams.
package scanner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source kinds.
const (
	KindISIC        = "isic-dirs"
	KindHAM10000    = "ham10000-csv"
	KindFitzpatrick = "fitzpatrick-csv"
	KindRecords     = "records-jsonl"
)

// Source is a dataset found on disk.
type Source struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	// Table names the mapping table for the source's vocabulary.
	Table    string `json:"table"`
	Path     string `json:"path"`
	Evidence string `json:"evidence"`
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

func isImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scan walks root and returns the detected sources sorted by ID. Sources
// whose ID would collide get a numeric suffix.
func Scan(root string) ([]Source, error) {
	var found []Source
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		src, ok, derr := Detect(path)
		if derr != nil {
			logf("", "skipping %s: %v", path, derr)
			return nil
		}
		if ok {
			found = append(found, src)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dedupe(found), nil
}

// Detect classifies a single file or directory.
func Detect(path string) (Source, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, false, err
	}
	if info.IsDir() {
		return detectDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return detectCSV(path)
	case ".jsonl", ".ndjson":
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return Source{ID: strings.ToLower(stem), Table: strings.ToLower(stem), Kind: KindRecords, Path: path, Evidence: "extension:" + filepath.Ext(path)}, true, nil
	}
	return Source{}, false, nil
}

// detectDir recognises the ISIC layout: a Train directory whose
// subdirectories, named after the diagnosis, hold images.
func detectDir(path string) (Source, bool, error) {
	if !strings.EqualFold(filepath.Base(path), "train") {
		return Source{}, false, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return Source{}, false, err
	}
	classes := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(path, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if !f.IsDir() && isImage(f.Name()) {
				classes++
				break
			}
		}
	}
	if classes == 0 {
		return Source{}, false, nil
	}
	return Source{ID: "isic", Table: "isic", Kind: KindISIC, Path: path, Evidence: fmt.Sprintf("class directories:%d", classes)}, true, nil
}

func detectCSV(path string) (Source, bool, error) {
	header, err := readHeader(path)
	if err != nil {
		return Source{}, false, err
	}
	has := func(cols ...string) bool {
		for _, c := range cols {
			if _, ok := header[c]; !ok {
				return false
			}
		}
		return true
	}
	switch {
	case has("image_id", "dx"):
		return Source{ID: "ham10000", Table: "ham10000", Kind: KindHAM10000, Path: path, Evidence: "columns:image_id,dx"}, true, nil
	case has("md5hash", "three_partition_label"):
		return Source{ID: "fitzpatrick17k", Table: "fitzpatrick17k", Kind: KindFitzpatrick, Path: path, Evidence: "columns:md5hash,three_partition_label"}, true, nil
	}
	return Source{}, false, nil
}

func readHeader(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	row, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, err
	}
	return headerIndex(row), nil
}

func headerIndex(row []string) map[string]int {
	idx := make(map[string]int, len(row))
	for i, h := range row {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[h] = i
	}
	return idx
}

// dedupe drops repeated paths and disambiguates colliding IDs.
func dedupe(sources []Source) []Source {
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ID != sources[j].ID {
			return sources[i].ID < sources[j].ID
		}
		return sources[i].Path < sources[j].Path
	})
	seenPath := map[string]bool{}
	seenID := map[string]int{}
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if seenPath[s.Path] {
			continue
		}
		seenPath[s.Path] = true
		seenID[s.ID]++
		if n := seenID[s.ID]; n > 1 {
			s.ID = fmt.Sprintf("%s-%d", s.ID, n)
		}
		out = append(out, s)
	}
	return out
}

package scanner

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
)

// Open returns a lazy stream over the source's records. Files are opened
// when the stream is ranged over, and closed when it ends.
func Open(src Source) (unify.Stream, error) {
	var open func(*error) iter.Seq[dataset.Record]
	switch src.Kind {
	case KindISIC:
		open = func(errp *error) iter.Seq[dataset.Record] { return isicRecords(src, errp) }
	case KindHAM10000:
		open = func(errp *error) iter.Seq[dataset.Record] { return csvRecords(src, hamRow, errp) }
	case KindFitzpatrick:
		open = func(errp *error) iter.Seq[dataset.Record] { return csvRecords(src, fitzpatrickRow, errp) }
	case KindRecords:
		open = func(errp *error) iter.Seq[dataset.Record] { return jsonlRecords(src, errp) }
	default:
		return unify.Stream{}, fmt.Errorf("source %q: unsupported kind %q", src.ID, src.Kind)
	}

	var readErr error
	return unify.Stream{
		SourceID: src.ID,
		Table:    src.Table,
		Records:  open(&readErr),
		Err:      func() error { return readErr },
	}, nil
}

// OpenAll opens every source.
func OpenAll(sources []Source) ([]unify.Stream, error) {
	out := make([]unify.Stream, 0, len(sources))
	for _, s := range sources {
		st, err := Open(s)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// isicRecords yields one record per image under Train/<class>/, the class
// directory name being the raw label.
func isicRecords(src Source, errp *error) iter.Seq[dataset.Record] {
	return func(yield func(dataset.Record) bool) {
		classes, err := os.ReadDir(src.Path)
		if err != nil {
			*errp = err
			return
		}
		for _, c := range classes {
			if !c.IsDir() {
				continue
			}
			dir := filepath.Join(src.Path, c.Name())
			files, err := os.ReadDir(dir)
			if err != nil {
				*errp = err
				return
			}
			names := make([]string, 0, len(files))
			for _, f := range files {
				if !f.IsDir() && isImage(f.Name()) {
					names = append(names, f.Name())
				}
			}
			sort.Strings(names)
			for _, name := range names {
				rec := dataset.Record{
					SourceID: src.ID,
					ID:       c.Name() + "/" + name,
					RawLabel: c.Name(),
					ImageRef: filepath.Join(dir, name),
				}
				if !yield(rec) {
					return
				}
			}
		}
	}
}

type rowFunc func(src Source, col func(string) string) dataset.Record

func hamRow(src Source, col func(string) string) dataset.Record {
	id := col("image_id")
	return dataset.Record{
		SourceID: src.ID,
		ID:       id,
		RawLabel: col("dx"),
		ImageRef: hamImage(filepath.Dir(src.Path), id),
		Demographics: nonEmpty(map[string]string{
			"age":          col("age"),
			"sex":          col("sex"),
			"localization": col("localization"),
		}),
		Metadata: nonEmpty(map[string]string{
			"lesion_id": col("lesion_id"),
			"dx_type":   col("dx_type"),
		}),
	}
}

// hamImage resolves an image id against the two HAM10000 image folders.
func hamImage(dir, id string) string {
	if id == "" {
		return ""
	}
	for _, part := range []string{"HAM10000_images_part_1", "HAM10000_images_part_2"} {
		p := filepath.Join(dir, part, id+".jpg")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, id+".jpg")
}

func fitzpatrickRow(src Source, col func(string) string) dataset.Record {
	ref := col("url")
	if ref == "" {
		ref = col("md5hash")
	}
	return dataset.Record{
		SourceID: src.ID,
		ID:       col("md5hash"),
		RawLabel: col("three_partition_label"),
		ImageRef: ref,
		Demographics: nonEmpty(map[string]string{
			"fitzpatrick_scale":   col("fitzpatrick_scale"),
			"fitzpatrick_centaur": col("fitzpatrick_centaur"),
		}),
		Metadata: nonEmpty(map[string]string{
			"label":                col("label"),
			"nine_partition_label": col("nine_partition_label"),
		}),
	}
}

func nonEmpty(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// csvRecords yields one record per row. Rows that cannot be parsed yield
// an empty record so the unifier counts them as malformed.
func csvRecords(src Source, row rowFunc, errp *error) iter.Seq[dataset.Record] {
	return func(yield func(dataset.Record) bool) {
		f, err := os.Open(src.Path)
		if err != nil {
			*errp = err
			return
		}
		defer f.Close()

		cr := csv.NewReader(bufio.NewReader(f))
		cr.FieldsPerRecord = -1
		header, err := cr.Read()
		if err != nil {
			*errp = fmt.Errorf("read header: %w", err)
			return
		}
		idx := headerIndex(header)

		for {
			fields, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if !yield(dataset.Record{SourceID: src.ID}) {
					return
				}
				continue
			}
			if err != nil {
				*errp = err
				return
			}
			col := func(name string) string {
				i, ok := idx[name]
				if !ok || i >= len(fields) {
					return ""
				}
				return strings.TrimSpace(fields[i])
			}
			if !yield(row(src, col)) {
				return
			}
		}
	}
}

// jsonlRecords yields one record per line. Undecodable lines yield an empty
// record so the unifier counts them as malformed.
func jsonlRecords(src Source, errp *error) iter.Seq[dataset.Record] {
	return func(yield func(dataset.Record) bool) {
		f, err := os.Open(src.Path)
		if err != nil {
			*errp = err
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 4<<20)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var rec dataset.Record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				logf(src.ID, "undecodable line: %v", err)
				rec = dataset.Record{}
			}
			if !yield(rec) {
				return
			}
		}
		*errp = sc.Err()
	}
}

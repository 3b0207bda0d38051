package io

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	stdio "io"
	"iter"
	"os"
	"strings"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// maxLine bounds one JSON Lines entry.
const maxLine = 4 << 20

// DecodeLines yields one T per non-empty line of r. Lines that fail to
// decode are passed to onBad and skipped. The returned func reports the
// first read error once the sequence is exhausted.
func DecodeLines[T any](r stdio.Reader, onBad func(line int, err error)) (iter.Seq[T], func() error) {
	var readErr error
	seq := func(yield func(T) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLine)
		n := 0
		for sc.Scan() {
			n++
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				continue
			}
			var v T
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				if onBad != nil {
					onBad(n, err)
				}
				continue
			}
			if !yield(v) {
				return
			}
		}
		readErr = sc.Err()
	}
	return seq, func() error { return readErr }
}

// EncodeLines writes each value of seq as one JSON line.
func EncodeLines[T any](w stdio.Writer, seq iter.Seq[T]) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	n := 0
	for v := range seq {
		if err := enc.Encode(v); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// ReadSamples loads a unified corpus written by WriteSamples.
func ReadSamples(path string) ([]dataset.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bad []error
	seq, readErr := DecodeLines[dataset.Sample](f, func(line int, err error) {
		bad = append(bad, fmt.Errorf("%s:%d: %w", path, line, err))
	})
	var out []dataset.Sample
	for s := range seq {
		out = append(out, s)
	}
	if err := readErr(); err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return nil, errors.Join(bad...)
	}
	return out, nil
}

// WriteSamples writes the corpus as JSON Lines, one sample per line.
func WriteSamples(path string, samples iter.Seq[dataset.Sample]) (int, error) {
	if err := ensureDir(path); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := EncodeLines(f, samples)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

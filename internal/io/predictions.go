package io

import (
	"encoding/csv"
	"errors"
	"fmt"
	stdio "io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
)

// PredictionLog is a closed batch of predictions read from disk.
type PredictionLog struct {
	Records []fairness.Record
	// Unreadable counts lines or rows that could not be decoded at all.
	Unreadable int
}

// predictionColumns is the CSV header for prediction logs.
var predictionColumns = []string{"timestamp", "sample_id", "predicted_label", "confidence", "ground_truth_label", "group"}

// ReadPredictions reads a prediction log. format is "jsonl", "csv" or
// "auto", which picks CSV for .csv files and JSON Lines otherwise.
func ReadPredictions(path, format string) (PredictionLog, error) {
	actual := strings.ToLower(strings.TrimSpace(format))
	switch actual {
	case "", "auto":
		actual = "jsonl"
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			actual = "csv"
		}
	case "jsonl", "csv":
	default:
		return PredictionLog{}, fmt.Errorf("unsupported prediction log format: %q", format)
	}

	f, err := os.Open(path)
	if err != nil {
		return PredictionLog{}, err
	}
	defer f.Close()

	if actual == "csv" {
		return DecodePredictionsCSV(f)
	}
	var log PredictionLog
	seq, readErr := DecodeLines[fairness.Record](f, func(int, error) { log.Unreadable++ })
	for r := range seq {
		log.Records = append(log.Records, r)
	}
	return log, readErr()
}

// DecodePredictionsCSV reads a CSV prediction log with a header row. Column
// order is free; ground_truth_label and sample_id may be absent.
func DecodePredictionsCSV(r stdio.Reader) (PredictionLog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return PredictionLog{}, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"predicted_label", "confidence", "group"} {
		if _, ok := idx[req]; !ok {
			return PredictionLog{}, fmt.Errorf("prediction log is missing column %q", req)
		}
	}
	col := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var log PredictionLog
	for {
		row, err := cr.Read()
		if errors.Is(err, stdio.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			log.Unreadable++
			continue
		}
		if err != nil {
			return log, err
		}

		conf, err := strconv.ParseFloat(col(row, "confidence"), 64)
		if err != nil {
			log.Unreadable++
			continue
		}
		rec := fairness.Record{
			SampleID:    col(row, "sample_id"),
			Predicted:   dataset.Label(strings.ToLower(col(row, "predicted_label"))),
			Confidence:  conf,
			GroundTruth: dataset.Label(strings.ToLower(col(row, "ground_truth_label"))),
			Group:       col(row, "group"),
		}
		if ts := col(row, "timestamp"); ts != "" {
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				log.Unreadable++
				continue
			}
			rec.Timestamp = t
		}
		log.Records = append(log.Records, rec)
	}
	return log, nil
}

// WritePredictions writes a prediction log as JSON Lines or, for .csv
// paths, CSV.
func WritePredictions(path string, records []fairness.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		err = encodePredictionsCSV(f, records)
	} else {
		_, err = EncodeLines(f, slices.Values(records))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func encodePredictionsCSV(w stdio.Writer, records []fairness.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionColumns); err != nil {
		return err
	}
	for _, r := range records {
		ts := ""
		if !r.Timestamp.IsZero() {
			ts = r.Timestamp.UTC().Format(time.RFC3339)
		}
		row := []string{
			ts,
			r.SampleID,
			string(r.Predicted),
			strconv.FormatFloat(r.Confidence, 'g', -1, 64),
			string(r.GroundTruth),
			r.Group,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

package io

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
)

func TestDecodeLines_SkipsBadLines(t *testing.T) {
	in := strings.NewReader("{\"id\":\"1\",\"raw_label\":\"nv\"}\n\nnot json\n{\"id\":\"2\",\"raw_label\":\"mel\"}\n")
	var bad []int
	seq, readErr := DecodeLines[dataset.Record](in, func(line int, _ error) { bad = append(bad, line) })

	got := slices.Collect(seq)
	if err := readErr(); err != nil {
		t.Fatalf("read err = %v", err)
	}
	if len(got) != 2 || got[1].RawLabel != "mel" {
		t.Fatalf("records = %+v", got)
	}
	if !slices.Equal(bad, []int{3}) {
		t.Fatalf("bad lines = %v, want [3]", bad)
	}
}

func TestWriteSamples_ReadSamples(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out", "corpus.jsonl")
	in := []dataset.Sample{
		{ID: "isic:1", ImageRef: "Train/nevus/1.jpg", Label: dataset.Benign, Demographics: map[string]string{"sex": "female"}, SourceID: "isic"},
		{ID: "isic:2", ImageRef: "Train/melanoma/2.jpg", Label: dataset.Malignant, Demographics: map[string]string{}, SourceID: "isic"},
	}
	n, err := WriteSamples(p, slices.Values(in))
	if err != nil || n != 2 {
		t.Fatalf("WriteSamples = %d, %v", n, err)
	}
	data, _ := os.ReadFile(p)
	if !strings.Contains(string(data), `"binary_label":"benign"`) {
		t.Fatalf("unexpected encoding: %s", data)
	}

	out, err := ReadSamples(p)
	if err != nil {
		t.Fatalf("ReadSamples err = %v", err)
	}
	if len(out) != 2 || out[0].Demographics["sex"] != "female" || out[1].Label != dataset.Malignant {
		t.Fatalf("samples = %+v", out)
	}
}

func TestReadPredictions_CSV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log.csv")
	body := strings.Join([]string{
		"group,predicted_label,confidence,ground_truth_label,timestamp",
		"type-1,Benign,0.8,benign,2026-01-01T10:00:00Z",
		"type-6,malignant,1.0,,2026-01-01T10:01:00Z",
		"type-6,malignant,high,benign,",
		"type-2,benign,0.4,malignant,yesterday",
	}, "\n")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	log, err := ReadPredictions(p, "auto")
	if err != nil {
		t.Fatalf("ReadPredictions err = %v", err)
	}
	if len(log.Records) != 2 || log.Unreadable != 2 {
		t.Fatalf("log = %+v", log)
	}
	first := log.Records[0]
	if first.Predicted != dataset.Benign || first.Group != "type-1" || first.Confidence != 0.8 {
		t.Fatalf("first = %+v", first)
	}
	if _, ok := log.Records[1].Truth(); ok {
		t.Fatalf("empty ground truth must be absent")
	}
}

func TestDecodePredictionsCSV_MissingColumn(t *testing.T) {
	if _, err := DecodePredictionsCSV(strings.NewReader("group,confidence\nA,0.5\n")); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestWritePredictions_RoundTrip(t *testing.T) {
	records := []fairness.Record{
		{Timestamp: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC), SampleID: "ham10000:ISIC_1", Predicted: dataset.Malignant, Confidence: 0.97, GroundTruth: dataset.Benign, Group: "type-4"},
		{Predicted: dataset.Benign, Confidence: 0.5, Group: "type-1"},
	}
	for _, name := range []string{"log.jsonl", "log.csv"} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), name)
			if err := WritePredictions(p, records); err != nil {
				t.Fatalf("WritePredictions err = %v", err)
			}
			log, err := ReadPredictions(p, "")
			if err != nil {
				t.Fatalf("ReadPredictions err = %v", err)
			}
			if len(log.Records) != 2 || log.Unreadable != 0 {
				t.Fatalf("log = %+v", log)
			}
			got := log.Records[0]
			if !got.Timestamp.Equal(records[0].Timestamp) || got.SampleID != records[0].SampleID || got.GroundTruth != dataset.Benign {
				t.Fatalf("record = %+v", got)
			}
		})
	}
}

func TestReadPredictions_UnsupportedFormat(t *testing.T) {
	if _, err := ReadPredictions("log.parquet", "parquet"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestMarshalDocument_JSONAndYAML(t *testing.T) {
	doc := map[string]fairness.Score{"disparate_impact": 0.5, "equalized_odds": fairness.Score(math.NaN())}

	data, err := MarshalDocument("report.json", "auto", doc)
	if err != nil {
		t.Fatalf("json err = %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["equalized_odds"] != nil {
		t.Fatalf("NaN must encode as null, got %v", back["equalized_odds"])
	}

	data, err = MarshalDocument("report.yaml", "auto", doc)
	if err != nil {
		t.Fatalf("yaml err = %v", err)
	}
	if !strings.Contains(string(data), "disparate_impact: 0.5") || !strings.Contains(string(data), "equalized_odds: null") {
		t.Fatalf("yaml = %s", data)
	}

	if _, err := MarshalDocument("report.toml", "toml", doc); err == nil {
		t.Fatalf("expected unsupported format")
	}
}

func TestWriteDocument_ReadDocument(t *testing.T) {
	type doc struct {
		Version string         `json:"version"`
		Counts  map[string]int `json:"counts"`
	}
	in := doc{Version: "v1", Counts: map[string]int{"benign": 3}}

	for _, name := range []string{"report.json", "report.yaml"} {
		path := filepath.Join(t.TempDir(), "nested", name)
		if err := WriteDocument(path, "auto", in); err != nil {
			t.Fatalf("WriteDocument(%s) err = %v", name, err)
		}
		var out doc
		if err := ReadDocument(path, "auto", &out); err != nil {
			t.Fatalf("ReadDocument(%s) err = %v", name, err)
		}
		if out.Version != "v1" || out.Counts["benign"] != 3 {
			t.Fatalf("ReadDocument(%s) = %+v, want %+v", name, out, in)
		}
	}

	if err := ReadDocument(filepath.Join(t.TempDir(), "missing.json"), "auto", &in); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

package predict

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

func fixedNow() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

func TestRunner_Run(t *testing.T) {
	samples := []dataset.Sample{
		{ID: "isic:1", ImageRef: "a.jpg", Label: dataset.Benign, Demographics: map[string]string{"skin_type": "type-2"}, SourceID: "isic"},
		{ID: "isic:2", ImageRef: "b.jpg", Label: dataset.Malignant, Demographics: map[string]string{}, SourceID: "isic"},
		{ID: "isic:3", ImageRef: "c.jpg", Label: dataset.Unmapped, SourceID: "isic"},
		{ID: "isic:4", ImageRef: "missing.jpg", Label: dataset.Benign, SourceID: "isic"},
		{ID: "isic:5", ImageRef: "bad.jpg", Label: dataset.Benign, SourceID: "isic"},
	}
	clf := &ScriptedClassifier{Outputs: map[string]Output{
		"a.jpg":   {Label: dataset.Benign, Confidence: 0.7},
		"b.jpg":   {Label: dataset.Malignant, Confidence: 1.0},
		"c.jpg":   {Label: dataset.Benign, Confidence: 0.5},
		"bad.jpg": {Label: dataset.Unmapped, Confidence: 0.5},
	}}
	r := &Runner{Classifier: clf, Now: fixedNow}

	log, stats, err := r.Run(context.Background(), slices.Values(samples))
	if err != nil {
		t.Fatalf("Run err = %v", err)
	}
	if stats.Predicted != 2 || stats.SkippedUnmapped != 1 || stats.Failed != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if log[0].Group != "type-2" || log[1].Group != dataset.Unknown {
		t.Fatalf("groups = %q, %q", log[0].Group, log[1].Group)
	}
	if log[1].GroundTruth != dataset.Malignant || log[1].SampleID != "isic:2" || !log[1].Timestamp.Equal(fixedNow()) {
		t.Fatalf("record = %+v", log[1])
	}
	if slices.Contains(clf.Calls(), "c.jpg") {
		t.Fatalf("unmapped sample was predicted")
	}
}

func TestRunner_PreprocessorAndFileLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.jpg"), []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var seen []byte
	r := &Runner{
		Loader: FileLoader{Root: dir},
		Preprocessor: PreprocessFunc(func(_ context.Context, img Image) (Image, error) {
			seen = img.Data
			return img, nil
		}),
		Classifier: &ScriptedClassifier{Default: &Output{Label: dataset.Benign, Confidence: 0.6}},
		Now:        fixedNow,
	}
	_, stats, err := r.Run(context.Background(), slices.Values([]dataset.Sample{{ID: "s:x", ImageRef: "x.jpg", Label: dataset.Benign}}))
	if err != nil {
		t.Fatalf("Run err = %v", err)
	}
	if stats.Predicted != 1 || string(seen) != "pixels" {
		t.Fatalf("stats = %+v, seen = %q", stats, seen)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Classifier: &ScriptedClassifier{Default: &Output{Label: dataset.Benign, Confidence: 0.6}}}
	_, _, err := r.Run(ctx, slices.Values([]dataset.Sample{{ID: "s:1", Label: dataset.Benign}}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunner_NoClassifier(t *testing.T) {
	if _, _, err := (&Runner{}).Run(context.Background(), slices.Values([]dataset.Sample{})); err == nil {
		t.Fatalf("expected error without classifier")
	}
}

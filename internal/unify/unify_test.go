package unify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newMapper(t *testing.T) *labelmap.Mapper {
	t.Helper()
	m, err := labelmap.NewMapper([]labelmap.Table{
		{Source: "clinic", Labels: map[string]dataset.Label{"nevus": dataset.Benign, "melanoma": dataset.Malignant}},
		{Source: "atlas", Labels: map[string]dataset.Label{"mel": dataset.Malignant, "nv": dataset.Benign}},
	})
	if err != nil {
		t.Fatalf("NewMapper err = %v", err)
	}
	return m
}

func rec(id, label string) dataset.Record {
	return dataset.Record{ID: id, RawLabel: label, ImageRef: "img/" + id + ".jpg"}
}

func TestUnify_UnmappedRetainedForAudit(t *testing.T) {
	u := New(newMapper(t), Options{UnmappedCeiling: 0.5})
	c, err := u.Unify(context.Background(), []Stream{
		SliceStream("clinic", []dataset.Record{rec("1", "nevus"), rec("2", "nevus"), rec("3", "mole")}),
	})
	if err != nil {
		t.Fatalf("Unify err = %v", err)
	}

	counts := c.Counts()
	if counts[dataset.Benign] != 2 || counts[dataset.Unmapped] != 1 {
		t.Fatalf("Counts = %v, want 2 benign and 1 unmapped", counts)
	}
	if n := c.Report.Sources["clinic"].Unmapped; n != 1 {
		t.Fatalf("unmapped count = %d, want 1", n)
	}
	if got := slices.Collect(c.Training()); len(got) != 2 {
		t.Fatalf("Training() = %d samples, want 2", len(got))
	}
	audit := slices.Collect(c.Audit())
	if len(audit) != 1 || audit[0].ID != "clinic:3" {
		t.Fatalf("Audit() = %+v, want clinic:3", audit)
	}
	if c.Report.Sources["clinic"].UnmappedLabels["mole"] != 1 {
		t.Fatalf("UnmappedLabels = %v", c.Report.Sources["clinic"].UnmappedLabels)
	}
}

func TestUnify_OverflowFailsOnlyThatSource(t *testing.T) {
	u := New(newMapper(t), DefaultOptions())
	c, err := u.Unify(context.Background(), []Stream{
		SliceStream("clinic", []dataset.Record{rec("1", "nevus"), rec("2", "mole")}),
		SliceStream("atlas", []dataset.Record{rec("a", "mel"), rec("b", "nv")}),
	})
	if err != nil {
		t.Fatalf("Unify err = %v", err)
	}
	if len(c.Report.Failed) != 1 || c.Report.Failed[0].SourceID != "clinic" {
		t.Fatalf("Failed = %+v, want clinic only", c.Report.Failed)
	}
	if !apperr.IsOverflow(c.Report.Failed[0].Err) {
		t.Fatalf("failure err = %v, want overflow", c.Report.Failed[0].Err)
	}
	for s := range c.Samples() {
		if s.SourceID != "atlas" {
			t.Fatalf("sample %s from failed source kept", s.ID)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestUnify_MalformedAndDuplicatesSkipped(t *testing.T) {
	u := New(newMapper(t), DefaultOptions())
	records := []dataset.Record{
		rec("1", "nevus"),
		rec("1", "nevus"),
		{ID: "2"},
		{RawLabel: "nevus"},
		{SourceID: "atlas", ID: "3", RawLabel: "nevus"},
		{ID: "image 4", RawLabel: "Melanoma"},
	}
	c, err := u.Unify(context.Background(), []Stream{SliceStream("clinic", records)})
	if err != nil {
		t.Fatalf("Unify err = %v", err)
	}
	r := c.Report.Sources["clinic"]
	if r.Read != 6 || r.Malformed != 3 || r.Duplicates != 1 || r.Samples != 2 {
		t.Fatalf("report = %+v", r)
	}
	ids := []string{}
	for s := range c.Samples() {
		ids = append(ids, s.ID)
	}
	if !slices.Equal(ids, []string{"clinic:1", "clinic:image_4"}) {
		t.Fatalf("ids = %v", ids)
	}
}

func TestUnify_IsDeterministic(t *testing.T) {
	streams := func() []Stream {
		var a, b []dataset.Record
		for i := 0; i < 50; i++ {
			a = append(a, rec(fmt.Sprint(i), []string{"nevus", "melanoma"}[i%2]))
			b = append(b, rec(fmt.Sprint(i), []string{"nv", "mel"}[i%3%2]))
		}
		return []Stream{SliceStream("clinic", a), SliceStream("atlas", b)}
	}

	run := func() ([]byte, string) {
		c, err := New(newMapper(t), Options{Parallel: 2}).Unify(context.Background(), streams())
		if err != nil {
			t.Fatalf("Unify err = %v", err)
		}
		data, err := json.Marshal(slices.Collect(c.Samples()))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return data, c.Version
	}

	first, v1 := run()
	second, v2 := run()
	if string(first) != string(second) {
		t.Fatalf("corpus differs between runs")
	}
	if v1 != v2 || v1 == "" {
		t.Fatalf("Version = %q then %q", v1, v2)
	}
}

func TestUnify_EmptyInput(t *testing.T) {
	u := New(newMapper(t), DefaultOptions())
	_, err := u.Unify(context.Background(), []Stream{SliceStream("clinic", []dataset.Record{{ID: "x"}})})
	if !errors.Is(err, apperr.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestUnify_DuplicateStreamRejected(t *testing.T) {
	u := New(newMapper(t), DefaultOptions())
	_, err := u.Unify(context.Background(), []Stream{SliceStream("clinic", nil), SliceStream("clinic", nil)})
	if !apperr.IsUser(err) {
		t.Fatalf("err = %v, want user error", err)
	}
}

func TestUnify_ReadErrorFailsSource(t *testing.T) {
	u := New(newMapper(t), DefaultOptions())
	broken := SliceStream("clinic", []dataset.Record{rec("1", "nevus")})
	broken.Err = func() error { return errors.New("truncated csv") }

	c, err := u.Unify(context.Background(), []Stream{broken, SliceStream("atlas", []dataset.Record{rec("a", "nv")})})
	if err != nil {
		t.Fatalf("Unify err = %v", err)
	}
	if len(c.Report.Failed) != 1 || c.Report.Failed[0].SourceID != "clinic" {
		t.Fatalf("Failed = %+v", c.Report.Failed)
	}
}

func TestUnify_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := New(newMapper(t), DefaultOptions())
	_, err := u.Unify(ctx, []Stream{SliceStream("clinic", []dataset.Record{rec("1", "nevus")})})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestUnify_StreamTableOverridesSourceID(t *testing.T) {
	u := New(newMapper(t), DefaultOptions())
	st := SliceStream("atlas-2", []dataset.Record{rec("a", "mel")})
	st.Table = "atlas"

	c, err := u.Unify(context.Background(), []Stream{st})
	if err != nil {
		t.Fatalf("Unify err = %v", err)
	}
	got := slices.Collect(c.Samples())
	if len(got) != 1 || got[0].ID != "atlas-2:a" || got[0].Label != dataset.Malignant {
		t.Fatalf("samples = %+v", got)
	}
}

func TestUnify_SharedTableCountsPerSource(t *testing.T) {
	m, err := labelmap.NewMapper([]labelmap.Table{
		{Source: "shared", Labels: map[string]dataset.Label{"nevus": dataset.Benign}},
	})
	if err != nil {
		t.Fatalf("NewMapper err = %v", err)
	}
	records := []dataset.Record{rec("1", "nevus"), rec("2", "mole"), rec("2", "mole")}
	a := SliceStream("a", records)
	a.Table = "shared"
	b := SliceStream("b", records)
	b.Table = "shared"

	c, err := New(m, Options{UnmappedCeiling: 0.6}).Unify(context.Background(), []Stream{a, b})
	if err != nil {
		t.Fatalf("Unify err = %v", err)
	}
	if len(c.Report.Failed) != 0 {
		t.Fatalf("Failed = %+v, want none", c.Report.Failed)
	}
	for _, id := range []string{"a", "b"} {
		r := c.Report.Sources[id]
		if r.Mapped != 1 || r.Unmapped != 1 || r.Duplicates != 1 {
			t.Fatalf("%s report = %+v, want 1 mapped, 1 unmapped, 1 duplicate", id, r)
		}
		if len(r.UnmappedLabels) != 1 || r.UnmappedLabels["mole"] != 1 {
			t.Fatalf("%s UnmappedLabels = %v, want mole:1", id, r.UnmappedLabels)
		}
		if got := m.Tally(id); got.Observed != 2 || got.Unmapped != 1 {
			t.Fatalf("Tally(%q) = %+v, want 2 observed and 1 unmapped", id, got)
		}
	}
	if got := m.Tally("shared"); got.Observed != 0 {
		t.Fatalf("Tally(shared).Observed = %d, want 0", got.Observed)
	}
}

func TestUnify_ReportsProgress(t *testing.T) {
	var mu sync.Mutex
	events := map[string][]ProgressEventType{}
	opts := DefaultOptions()
	opts.OnProgress = func(evt ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if evt.Total != 2 {
			t.Errorf("Total = %d, want 2", evt.Total)
		}
		events[evt.SourceID] = append(events[evt.SourceID], evt.Type)
	}
	u := New(newMapper(t), opts)
	if _, err := u.Unify(context.Background(), []Stream{
		SliceStream("clinic", []dataset.Record{rec("1", "nevus"), rec("2", "mole")}),
		SliceStream("atlas", []dataset.Record{rec("a", "mel")}),
	}); err != nil {
		t.Fatalf("Unify err = %v", err)
	}
	if got := events["atlas"]; !slices.Equal(got, []ProgressEventType{EventSourceStart, EventSourceComplete}) {
		t.Fatalf("atlas events = %v", got)
	}
	if got := events["clinic"]; !slices.Equal(got, []ProgressEventType{EventSourceStart, EventSourceFailed}) {
		t.Fatalf("clinic events = %v", got)
	}
}

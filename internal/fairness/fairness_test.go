package fairness

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// group builds n records for g, the first favorable of which predict benign.
func group(g string, n, favorable int, truth dataset.Label) []Record {
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		p := dataset.Malignant
		if i < favorable {
			p = dataset.Benign
		}
		out = append(out, Record{
			Timestamp:   t0.Add(time.Duration(i) * time.Second),
			Predicted:   p,
			Confidence:  0.9,
			GroundTruth: truth,
			Group:       g,
		})
	}
	return out
}

func concat(parts ...[]Record) []Record {
	var out []Record
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func mustEvaluate(t *testing.T, log []Record, opts Options) *Evaluation {
	t.Helper()
	ev, err := Evaluate(log, opts)
	if err != nil {
		t.Fatalf("Evaluate err = %v", err)
	}
	return ev
}

func TestEvaluate_DemographicParityBiased(t *testing.T) {
	log := concat(group("A", 100, 50, ""), group("B", 100, 20, ""))
	ev := mustEvaluate(t, log, DefaultOptions())

	dp, ok := ev.Result(DemographicParity)
	if !ok {
		t.Fatalf("missing demographic parity")
	}
	if math.Abs(float64(dp.Score)-0.40) > 1e-12 {
		t.Fatalf("DP score = %v, want 0.40", dp.Score)
	}
	if dp.Status != StatusBiased {
		t.Fatalf("DP status = %q, want biased", dp.Status)
	}
	if dp.Groups["A"] != 0.5 || dp.Groups["B"] != 0.2 {
		t.Fatalf("DP breakdown = %v", dp.Groups)
	}

	di, _ := ev.Result(DisparateImpact)
	if di.Groups["A"] != 1 || math.Abs(float64(di.Groups["B"])-0.4) > 1e-12 {
		t.Fatalf("DI breakdown = %v", di.Groups)
	}
	if di.Status != StatusBiased {
		t.Fatalf("DI status = %q, want biased", di.Status)
	}
	if ev.Unverifiable != 200 {
		t.Fatalf("Unverifiable = %d, want 200", ev.Unverifiable)
	}
	eo, _ := ev.Result(EqualizedOdds)
	if eo.Status != StatusInsufficient || eo.Score.Valid() {
		t.Fatalf("EO = %+v, want insufficient without ground truth", eo)
	}
}

func TestEvaluate_EqualizedOdds(t *testing.T) {
	// Group A: perfect. Group B: half of malignant cases missed.
	var log []Record
	add := func(g string, truth, pred dataset.Label, n int) {
		for i := 0; i < n; i++ {
			log = append(log, Record{Timestamp: t0, Predicted: pred, Confidence: 0.8, GroundTruth: truth, Group: g})
		}
	}
	add("A", dataset.Malignant, dataset.Malignant, 10)
	add("A", dataset.Benign, dataset.Benign, 10)
	add("B", dataset.Malignant, dataset.Malignant, 5)
	add("B", dataset.Malignant, dataset.Benign, 5)
	add("B", dataset.Benign, dataset.Benign, 10)

	ev := mustEvaluate(t, log, DefaultOptions())
	eo, _ := ev.Result(EqualizedOdds)
	if math.Abs(float64(eo.Score)-0.5) > 1e-12 {
		t.Fatalf("EO score = %v, want 0.5", eo.Score)
	}
	if eo.Status != StatusBiased {
		t.Fatalf("EO status = %q", eo.Status)
	}
	if eo.Details["tpr_gap"] != 0.5 || eo.Details["fpr_gap"] != 0 {
		t.Fatalf("EO details = %v", eo.Details)
	}
}

func TestEvaluate_IndividualFairness(t *testing.T) {
	var log []Record
	for i := 0; i < 10; i++ {
		log = append(log,
			Record{Timestamp: t0, Predicted: dataset.Benign, Confidence: 0.9, Group: "A"},
			Record{Timestamp: t0, Predicted: dataset.Benign, Confidence: 0.4, Group: "B"},
		)
	}
	ev := mustEvaluate(t, log, DefaultOptions())
	ifr, _ := ev.Result(IndividualFairness)
	// means 0.9 and 0.4, population variance 0.0625
	if math.Abs(float64(ifr.Score)-0.9375) > 1e-9 {
		t.Fatalf("IF score = %v, want 0.9375", ifr.Score)
	}
	if ifr.Status != StatusConcerning {
		t.Fatalf("IF status = %q, want concerning", ifr.Status)
	}
}

func TestEvaluate_SmallGroupsExcluded(t *testing.T) {
	log := concat(group("A", 20, 10, ""), group("B", 20, 10, ""), group("tiny", 3, 0, ""))
	ev := mustEvaluate(t, log, DefaultOptions())
	di, _ := ev.Result(DisparateImpact)
	if !reflect.DeepEqual(di.InsufficientGroups, []string{"tiny"}) {
		t.Fatalf("InsufficientGroups = %v", di.InsufficientGroups)
	}
	if _, ok := di.Groups["tiny"]; ok {
		t.Fatalf("tiny group must not be in breakdown")
	}
	if di.Score != 1 || di.Status != StatusPass {
		t.Fatalf("DI = %v %q", di.Score, di.Status)
	}
}

func TestEvaluate_SingleEligibleGroupIsInsufficient(t *testing.T) {
	log := concat(group("A", 20, 10, ""), group("B", 5, 1, ""))
	ev := mustEvaluate(t, log, DefaultOptions())
	for _, r := range ev.Results {
		if r.Status != StatusInsufficient || r.Score.Valid() || r.Reason == "" {
			t.Fatalf("%s = %+v, want insufficient-data with reason", r.Metric, r)
		}
	}
}

func TestEvaluate_ScoresInRange(t *testing.T) {
	logs := [][]Record{
		concat(group("A", 30, 0, dataset.Benign), group("B", 30, 30, dataset.Malignant)),
		concat(group("A", 11, 3, dataset.Malignant), group("B", 17, 16, dataset.Benign), group("C", 40, 21, "")),
		concat(group("A", 10, 10, dataset.Benign), group("B", 10, 10, dataset.Benign)),
	}
	for i, log := range logs {
		ev := mustEvaluate(t, log, DefaultOptions())
		for _, r := range ev.Results {
			if !r.Score.Valid() {
				continue
			}
			if r.Score < 0 || r.Score > 1 {
				t.Fatalf("log %d %s score = %v, out of [0,1]", i, r.Metric, r.Score)
			}
			for g, s := range r.Groups {
				if s.Valid() && (s < 0 || s > 1) {
					t.Fatalf("log %d %s group %s = %v, out of [0,1]", i, r.Metric, g, s)
				}
			}
		}
	}
}

func TestEvaluate_MinGroupSizeMonotone(t *testing.T) {
	log := concat(group("A", 5, 2, dataset.Benign), group("B", 12, 6, dataset.Malignant), group("C", 30, 10, ""), group("D", 60, 59, dataset.Benign))
	prev := map[string]int{}
	for _, size := range []int{1, 5, 10, 12, 31, 61} {
		opts := DefaultOptions()
		opts.MinGroupSize = size
		ev, err := Evaluate(log, opts)
		if err != nil {
			t.Fatalf("Evaluate(%d) err = %v", size, err)
		}
		for _, r := range ev.Results {
			if n := len(r.InsufficientGroups); n < prev[r.Metric] {
				t.Fatalf("%s: %d insufficient groups at size %d, fewer than %d before", r.Metric, n, size, prev[r.Metric])
			}
			prev[r.Metric] = len(r.InsufficientGroups)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	log := concat(group("z", 40, 13, dataset.Malignant), group("a", 33, 20, dataset.Benign), group("m", 25, 24, ""))
	first, err := json.Marshal(mustEvaluate(t, log, DefaultOptions()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := json.Marshal(mustEvaluate(t, log, DefaultOptions()))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, again, first)
		}
	}
}

func TestEvaluate_MalformedRecordsSkipped(t *testing.T) {
	log := concat(group("A", 10, 5, ""), group("B", 10, 5, ""))
	log = append(log,
		Record{Predicted: "unmapped", Confidence: 0.5, Group: "A"},
		Record{Predicted: dataset.Benign, Confidence: 1.5, Group: "A"},
		Record{Predicted: dataset.Benign, Confidence: math.NaN(), Group: "B"},
		Record{Predicted: dataset.Benign, Confidence: 0.5},
	)
	ev := mustEvaluate(t, log, DefaultOptions())
	if ev.Malformed != 4 || ev.Used != 20 {
		t.Fatalf("Malformed = %d, Used = %d", ev.Malformed, ev.Used)
	}

	_, err := Evaluate(log[20:], DefaultOptions())
	if !errors.Is(err, apperr.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestEvaluate_MetricSubset(t *testing.T) {
	log := concat(group("A", 10, 5, ""), group("B", 10, 5, ""))
	opts := DefaultOptions()
	opts.Metrics = []string{DemographicParity}
	ev := mustEvaluate(t, log, opts)
	if len(ev.Results) != 1 || ev.Results[0].Metric != DemographicParity {
		t.Fatalf("Results = %+v", ev.Results)
	}

	opts.Metrics = []string{"calibration"}
	if _, err := Evaluate(log, opts); !apperr.IsUser(err) {
		t.Fatalf("err = %v, want user error", err)
	}
}

func TestScore_JSONNull(t *testing.T) {
	data, err := json.Marshal(map[string]Score{"a": NaN(), "b": 0.5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"a":null,"b":0.5}` {
		t.Fatalf("json = %s", data)
	}
	var back map[string]Score
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["a"].Valid() || back["b"] != 0.5 {
		t.Fatalf("decoded = %v", back)
	}
}

func TestThreshold_Classify(t *testing.T) {
	th := Threshold{Pass: 0.95, Floor: 0.80}
	tests := []struct {
		s    Score
		want Status
	}{
		{0.95, StatusPass},
		{1, StatusPass},
		{0.9, StatusConcerning},
		{0.80, StatusConcerning},
		{0.79, StatusBiased},
		{NaN(), StatusInsufficient},
	}
	for _, tt := range tests {
		if got := th.Classify(tt.s); got != tt.want {
			t.Fatalf("Classify(%v) = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestSnapshot_Stable(t *testing.T) {
	a := group("A", 3, 1, dataset.Benign)
	b := group("A", 3, 1, dataset.Benign)
	if Snapshot(a) != Snapshot(b) {
		t.Fatalf("identical logs differ in snapshot")
	}
	b[0].Confidence = 0.1
	if Snapshot(a) == Snapshot(b) {
		t.Fatalf("different logs share a snapshot")
	}
}

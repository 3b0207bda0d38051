package fairness

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

var snapshotNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/idlab-discover/FairDerm-cli/prediction-log"))

// Record is one logged prediction.
type Record struct {
	Timestamp  time.Time     `json:"timestamp"`
	SampleID   string        `json:"sample_id,omitempty"`
	Predicted  dataset.Label `json:"predicted_label"`
	Confidence float64       `json:"confidence"`
	// GroundTruth is optional; anything other than benign or malignant is
	// treated as absent.
	GroundTruth dataset.Label `json:"ground_truth_label,omitempty"`
	Group       string        `json:"group"`
}

// Truth returns the verified ground truth, if any.
func (r Record) Truth() (dataset.Label, bool) {
	l, ok := dataset.ParseLabel(string(r.GroundTruth))
	return l, ok
}

// Validate checks the structurally required fields.
func (r Record) Validate() error {
	if !r.Predicted.Trainable() {
		return fmt.Errorf("%w: predicted label %q", apperr.ErrMalformedRecord, r.Predicted)
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", apperr.ErrMalformedRecord, r.Confidence)
	}
	if strings.TrimSpace(r.Group) == "" {
		return fmt.Errorf("%w: empty group", apperr.ErrMalformedRecord)
	}
	return nil
}

// Snapshot derives a stable id for a closed log. Identical logs give
// identical ids.
func Snapshot(log []Record) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, r := range log {
		r.Timestamp = r.Timestamp.UTC()
		if err := enc.Encode(r); err != nil {
			// Non-finite confidences do not encode; hash their text form.
			fmt.Fprintf(h, "%s\x00%s\x00%s\x00%v\x00%s\x00%s\n",
				r.Timestamp.Format(time.RFC3339Nano), r.SampleID, r.Predicted, r.Confidence, r.GroundTruth, r.Group)
		}
	}
	return uuid.NewSHA1(snapshotNamespace, h.Sum(nil)).String()
}

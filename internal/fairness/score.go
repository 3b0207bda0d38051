package fairness

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Score is a fairness value in [0,1]. NaN means "not computable" and is
// encoded as JSON null.
type Score float64

// NaN returns the "not computable" score.
func NaN() Score { return Score(math.NaN()) }

// Valid reports whether s holds a computed value.
func (s Score) Valid() bool { return !math.IsNaN(float64(s)) && !math.IsInf(float64(s), 0) }

func (s Score) String() string {
	if !s.Valid() {
		return "n/a"
	}
	return strconv.FormatFloat(float64(s), 'f', 4, 64)
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(s), 'g', -1, 64), nil
}

func (s *Score) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = NaN()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// Status classifies a score against its threshold.
type Status string

const (
	StatusPass         Status = "pass"
	StatusConcerning   Status = "concerning"
	StatusBiased       Status = "biased"
	StatusInsufficient Status = "insufficient-data"
)

// Triggered reports whether the status calls for attention.
func (s Status) Triggered() bool { return s == StatusConcerning || s == StatusBiased }

// Threshold holds the pass and bias boundaries for one metric. A score at or
// above Pass passes; below Floor it is biased; in between it is concerning.
type Threshold struct {
	Pass  float64 `json:"pass" yaml:"pass" mapstructure:"pass"`
	Floor float64 `json:"floor" yaml:"floor" mapstructure:"floor"`
}

// Classify returns the status for s.
func (t Threshold) Classify(s Score) Status {
	switch {
	case !s.Valid():
		return StatusInsufficient
	case float64(s) >= t.Pass:
		return StatusPass
	case float64(s) >= t.Floor:
		return StatusConcerning
	default:
		return StatusBiased
	}
}

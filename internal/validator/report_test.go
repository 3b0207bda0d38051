package validator

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatSummary(t *testing.T) {
	tests := []struct {
		name string
		res  Coverage
		want string
	}{
		{
			name: "passed",
			res: Coverage{
				Source:   "isic",
				Valid:    true,
				Coverage: 0.995,
				Unmapped: []LabelCount{{Label: "mole", Count: 1}},
				Unused:   []string{"kaposi sarcoma", "vascular lesion"},
			},
			want: "Coverage isic: ✅ PASSED | 99.5% mapped | Unmapped labels: 1 | Unused entries: 2",
		},
		{
			name: "failed",
			res: Coverage{
				Source:   "ham10000",
				Valid:    false,
				Coverage: 0.42,
				Unmapped: []LabelCount{{Label: "x", Count: 3}, {Label: "y", Count: 1}},
			},
			want: "Coverage ham10000: ❌ FAILED | 42.0% mapped | Unmapped labels: 2 | Unused entries: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSummary(tt.res); got != tt.want {
				t.Fatalf("FormatSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(&buf)
	defer SetLogger(nil)

	PrintReport(Coverage{Source: "isic", Version: "1", Errors: []string{"boom"}, Warnings: []string{"careful"}})

	out := buf.String()
	for _, want := range []string{"source=isic", "❌ table 1", "errors (1):", "• boom", "warnings (1):", "• careful"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

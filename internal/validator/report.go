package validator

import "fmt"

// PrintReport writes the coverage report to the configured logger writer.
// If no logger writer is configured, it produces no output.
func PrintReport(r Coverage) {
	if r.Valid {
		logf(r.Source, "✅ table %s covers %.1f%% of %d records", r.Version, r.Coverage*100, r.Records)
	} else {
		logf(r.Source, "❌ table %s covers %.1f%% of %d records", r.Version, r.Coverage*100, r.Records)
	}

	if len(r.Errors) > 0 {
		logf(r.Source, "errors (%d):", len(r.Errors))
		for _, err := range r.Errors {
			logf(r.Source, "  • %s", err)
		}
	}
	if len(r.Warnings) > 0 {
		logf(r.Source, "warnings (%d):", len(r.Warnings))
		for _, warn := range r.Warnings {
			logf(r.Source, "  • %s", warn)
		}
	}
}

// FormatSummary returns a one-line summary of the result.
func FormatSummary(r Coverage) string {
	status := "✅ PASSED"
	if !r.Valid {
		status = "❌ FAILED"
	}
	return fmt.Sprintf("Coverage %s: %s | %.1f%% mapped | Unmapped labels: %d | Unused entries: %d",
		r.Source,
		status,
		r.Coverage*100,
		len(r.Unmapped),
		len(r.Unused))
}

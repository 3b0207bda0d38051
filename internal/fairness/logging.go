package fairness

import (
	"io"

	"github.com/idlab-discover/FairDerm-cli/internal/logging"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Fairness:", PrefixColor: ui.FgYellow}

// SetLogger sets an optional destination for debug logs.
// When set to nil, logging is disabled.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

// logf tags lines with the metric name in the source field.
func logf(metric, format string, args ...any) {
	logger.Logf(metric, format, args...)
}

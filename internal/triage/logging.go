package triage

import (
	"io"

	"github.com/idlab-discover/FairDerm-cli/internal/logging"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Triage:", PrefixColor: ui.FgRed}

// SetLogger sets an optional destination for triage logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(sourceID string, format string, args ...any) {
	logger.Logf(sourceID, format, args...)
}

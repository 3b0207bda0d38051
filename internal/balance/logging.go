package balance

import (
	"io"

	"github.com/idlab-discover/FairDerm-cli/internal/logging"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Balancer:", PrefixColor: ui.FgGreen, OmitSource: true}

// SetLogger sets an optional destination for debug logs.
// When set to nil, logging is disabled.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(sourceID, format string, args ...any) {
	logger.Logf(sourceID, format, args...)
}

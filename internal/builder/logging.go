package builder

import (
	"io"

	"github.com/idlab-discover/FairDerm-cli/internal/logging"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Build:", PrefixColor: ui.FgGreen}

// SetLogger sets an optional destination for builder logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(modelName string, format string, args ...any) {
	logger.Logf(modelName, format, args...)
}

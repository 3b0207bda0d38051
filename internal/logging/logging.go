package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/idlab-discover/FairDerm-cli/internal/ui"
)

// Logger is a tiny opt-in logger used across internal packages.
// When Writer is nil, logging is disabled.
//
// The output format is:
//
//	<ColoredPrefix> source=<sourceID> <formattedMessage>\n
//
// where <sourceID> is trimmed and defaults to "(all)".
type Logger struct {
	Writer io.Writer

	PrefixText  string
	PrefixColor string

	// OmitSource controls whether the source ID field is written.
	// When false (default), output includes: "source=<id>".
	OmitSource bool
}

func (l *Logger) SetWriter(w io.Writer) { l.Writer = w }

func (l *Logger) Enabled() bool { return l != nil && l.Writer != nil }

func (l *Logger) Logf(sourceID string, format string, args ...any) {
	if l == nil || l.Writer == nil {
		return
	}
	prefix := l.PrefixText
	if prefix == "" {
		prefix = "Log:"
	}
	if l.PrefixColor != "" {
		prefix = ui.Color(prefix, l.PrefixColor)
	}
	msg := fmt.Sprintf(format, args...)
	if l.OmitSource {
		fmt.Fprintf(l.Writer, "%s %s\n", prefix, msg)
		return
	}

	s := strings.TrimSpace(sourceID)
	if s == "" {
		s = "(all)"
	}
	fmt.Fprintf(l.Writer, "%s source=%s %s\n", prefix, s, msg)
}

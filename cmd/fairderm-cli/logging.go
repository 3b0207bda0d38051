package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/idlab-discover/FairDerm-cli/internal/alert"
	"github.com/idlab-discover/FairDerm-cli/internal/balance"
	"github.com/idlab-discover/FairDerm-cli/internal/builder"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/predict"
	"github.com/idlab-discover/FairDerm-cli/internal/scanner"
	"github.com/idlab-discover/FairDerm-cli/internal/triage"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
	"github.com/idlab-discover/FairDerm-cli/internal/validator"
)

// resolveLogLevel reads <command>.log-level from viper (config, env or
// flag).
func resolveLogLevel(command string) (string, error) {
	level := strings.ToLower(strings.TrimSpace(viper.GetString(command + ".log-level")))
	if level == "" {
		level = "standard"
	}
	switch level {
	case "quiet", "standard", "debug":
		// ok
	default:
		return "", fmt.Errorf("invalid --log-level %q (expected quiet|standard|debug)", level)
	}
	wireLoggers(level, os.Stderr)
	return level, nil
}

// wireLoggers routes package logs to w in debug mode and silences them
// otherwise.
func wireLoggers(level string, w io.Writer) {
	if level != "debug" {
		w = nil
	}
	for _, set := range []func(io.Writer){
		labelmap.SetLogger,
		scanner.SetLogger,
		unify.SetLogger,
		balance.SetLogger,
		fairness.SetLogger,
		alert.SetLogger,
		predict.SetLogger,
		validator.SetLogger,
		builder.SetLogger,
		triage.SetLogger,
	} {
		set(w)
	}
}

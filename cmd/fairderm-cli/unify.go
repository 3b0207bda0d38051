package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	bomio "github.com/idlab-discover/FairDerm-cli/internal/io"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/scanner"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
	"github.com/idlab-discover/FairDerm-cli/internal/unify"
)

var (
	unifyInputs   []string
	unifyTables   []string
	unifyOutput   string
	unifyReport   string
	unifyCeiling  float64
	unifyParallel int
	unifyLogLevel string
)

// corpusDocument is the report written next to a unified corpus.
type corpusDocument struct {
	Version string         `json:"version"`
	Output  string         `json:"output"`
	Sources []string       `json:"sources"`
	Counts  map[string]int `json:"counts"`
	Report  unify.Report   `json:"report"`
}

// unifyCmd represents the unify command
var unifyCmd = &cobra.Command{
	Use:   "unify",
	Short: "Merge dermatology datasets into one benign/malignant corpus",
	Long:  "Detects ISIC, HAM10000, Fitzpatrick17k and JSONL record sources under the given paths, maps every raw diagnosis through its mapping table, and writes the unified corpus as JSON Lines.",
	RunE:  runUnify,
}

func runUnify(cmd *cobra.Command, args []string) error {
	level, err := resolveLogLevel("unify")
	if err != nil {
		return err
	}
	quiet := level == "quiet"

	inputs := append(viper.GetStringSlice("unify.input"), args...)
	if len(inputs) == 0 {
		return apperr.User("at least one --input path is required")
	}
	sources, err := discoverSources(inputs)
	if err != nil {
		return err
	}

	tables, err := labelmap.Resolve(viper.GetStringSlice("unify.table"))
	if err != nil {
		return err
	}
	mapper, err := labelmap.NewMapper(tables)
	if err != nil {
		return err
	}

	streams, err := scanner.OpenAll(sources)
	if err != nil {
		return err
	}

	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	var tracker *ui.ProgressTracker
	if !quiet {
		tracker = ui.NewSourceTracker(cmd.ErrOrStderr(), ids)
		tracker.Start()
	}

	opts := unify.DefaultOptions()
	opts.UnmappedCeiling = viper.GetFloat64("unify.ceiling")
	opts.Parallel = viper.GetInt("unify.parallel")
	opts.OnProgress = func(evt unify.ProgressEvent) {
		if tracker == nil {
			return
		}
		switch evt.Type {
		case unify.EventSourceStart:
			tracker.UpdateStep(evt.Index, ui.StatusRunning, "")
		case unify.EventSourceComplete:
			tracker.UpdateStep(evt.Index, ui.StatusComplete, fmt.Sprintf("%d samples", evt.Report.Samples))
		case unify.EventSourceFailed:
			tracker.UpdateStep(evt.Index, ui.StatusFailed, evt.Error.Error())
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	corpus, err := unify.New(mapper, opts).Unify(ctx, streams)
	if tracker != nil {
		tracker.Complete(err)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyInput) && corpus != nil {
			unifyUI := ui.NewUnifyUI(cmd.OutOrStdout(), quiet)
			unifyUI.PrintReport(toUnifyReport("", "", corpus.Report, nil))
		}
		return err
	}

	output := strings.TrimSpace(viper.GetString("unify.output"))
	if output == "" {
		output = "dist/corpus.jsonl"
	}
	if _, err := bomio.WriteSamples(output, corpus.Samples()); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}

	counts := map[string]int{}
	for l, n := range corpus.Counts() {
		counts[string(l)] = n
	}
	if reportPath := strings.TrimSpace(viper.GetString("unify.report")); reportPath != "" {
		doc := corpusDocument{Version: corpus.Version, Output: output, Sources: ids, Counts: counts, Report: corpus.Report}
		if err := bomio.WriteDocument(reportPath, "auto", doc); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	unifyUI := ui.NewUnifyUI(cmd.OutOrStdout(), quiet)
	unifyUI.PrintReport(toUnifyReport(corpus.Version, output, corpus.Report, corpus.Counts()))
	return nil
}

// discoverSources detects each input as a source, scanning directories
// that are not a source themselves.
func discoverSources(inputs []string) ([]scanner.Source, error) {
	var out []scanner.Source
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		src, ok, err := scanner.Detect(in)
		if err != nil {
			return nil, apperr.Userf("input %s: %v", in, err)
		}
		if ok {
			out = append(out, src)
			continue
		}
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			return nil, apperr.Userf("input %s: not a recognised dataset", in)
		}
		found, err := scanner.Scan(in)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, apperr.User("no datasets found in the given inputs")
	}
	return out, nil
}

func init() {
	unifyCmd.Flags().StringSliceVarP(&unifyInputs, "input", "i", []string{}, "Dataset file or directory (repeatable or comma-separated)")
	unifyCmd.Flags().StringSliceVarP(&unifyTables, "table", "t", []string{}, "Mapping table YAML overriding the built-in table for its source")
	unifyCmd.Flags().StringVarP(&unifyOutput, "output", "o", "", "Output corpus path (default dist/corpus.jsonl)")
	unifyCmd.Flags().StringVar(&unifyReport, "report", "", "Write the unification report (json|yaml by extension)")
	unifyCmd.Flags().Float64Var(&unifyCeiling, "ceiling", unify.DefaultUnmappedCeiling, "Maximum unmapped-label share per source, in [0,1]")
	unifyCmd.Flags().IntVar(&unifyParallel, "parallel", 0, "Sources unified at once (0 = all)")
	unifyCmd.Flags().StringVar(&unifyLogLevel, "log-level", "", "Log level: quiet|standard|debug")

	// Bind all flags to viper for config file support
	viper.BindPFlag("unify.input", unifyCmd.Flags().Lookup("input"))
	viper.BindPFlag("unify.table", unifyCmd.Flags().Lookup("table"))
	viper.BindPFlag("unify.output", unifyCmd.Flags().Lookup("output"))
	viper.BindPFlag("unify.report", unifyCmd.Flags().Lookup("report"))
	viper.BindPFlag("unify.ceiling", unifyCmd.Flags().Lookup("ceiling"))
	viper.BindPFlag("unify.parallel", unifyCmd.Flags().Lookup("parallel"))
	viper.BindPFlag("unify.log-level", unifyCmd.Flags().Lookup("log-level"))
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/FairDerm-cli/internal/alert"
	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/balance"
	"github.com/idlab-discover/FairDerm-cli/internal/builder"
	"github.com/idlab-discover/FairDerm-cli/internal/fairness"
	bomio "github.com/idlab-discover/FairDerm-cli/internal/io"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
	"github.com/idlab-discover/FairDerm-cli/internal/validator"
)

var (
	evalPredictions  string
	evalFormat       string
	evalGroupBy      string
	evalMinGroupSize int
	evalMetrics      []string
	evalOutput       string
	evalAnnotate     string
	evalBOM          string
	evalBOMFormat    string
	evalSpecVersion  string
	evalModelName    string
	evalModelVersion string
	evalUnifyReport  string
	evalCorpus       string
	evalTables       []string
	evalStrict       bool
	evalFailOn       string
	evalVerbose      bool
	evalLogLevel     string
	evalPlainSummary bool
)

// evaluationDocument is the machine-readable result of evaluate.
type evaluationDocument struct {
	GroupBy    string               `json:"group_by"`
	Evaluation *fairness.Evaluation `json:"evaluation"`
	Alert      alert.BiasAlert      `json:"alert"`
}

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Audit a prediction log for demographic bias",
	Long:  "Computes disparate impact, equalized odds, demographic parity and individual fairness across demographic groups of a closed prediction log, derives a bias alert, and optionally records the run as a CycloneDX ML-BOM.",
	RunE:  runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	level, err := resolveLogLevel("evaluate")
	if err != nil {
		return err
	}
	quiet := level == "quiet"

	path := strings.TrimSpace(viper.GetString("evaluate.predictions"))
	if path == "" {
		return apperr.User("--predictions is required")
	}
	plog, err := bomio.ReadPredictions(path, viper.GetString("evaluate.format"))
	if err != nil {
		return err
	}

	opts := fairness.DefaultOptions()
	opts.MinGroupSize = viper.GetInt("evaluate.min-group-size")
	opts.Metrics = viper.GetStringSlice("evaluate.metrics")
	if err := mergeThresholds(opts.Thresholds); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ev, err := fairness.EvaluateContext(ctx, plog.Records, opts)
	if err != nil {
		return err
	}
	if plog.Unreadable > 0 {
		ev.Total += plog.Unreadable
		ev.Malformed += plog.Unreadable
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("%d unreadable lines skipped", plog.Unreadable))
	}

	engine := alert.NewEngine(alertConfig())
	verdict := engine.AssessEvaluation(ev, plog.Records)
	groupBy := viper.GetString("evaluate.group-by")

	if out := strings.TrimSpace(viper.GetString("evaluate.output")); out != "" {
		doc := evaluationDocument{GroupBy: groupBy, Evaluation: ev, Alert: verdict}
		if err := bomio.WriteDocument(out, "auto", doc); err != nil {
			return fmt.Errorf("write evaluation: %w", err)
		}
	}
	if out := strings.TrimSpace(viper.GetString("evaluate.annotate")); out != "" {
		if err := writeAnnotated(out, engine, verdict, plog.Records); err != nil {
			return err
		}
	}

	fairUI := ui.NewFairnessUI(cmd.OutOrStdout(), quiet, viper.GetBool("evaluate.verbose"))
	if viper.GetBool("evaluate.plain-summary") {
		fairUI.PrintSimpleReport(toFairnessReport(ev, groupBy, &verdict))
	} else {
		fairUI.PrintReport(toFairnessReport(ev, groupBy, &verdict))
	}

	if bomPath := strings.TrimSpace(viper.GetString("evaluate.bom")); bomPath != "" {
		if err := writeFairnessBOM(cmd, bomPath, groupBy, ev, &verdict, quiet); err != nil {
			return err
		}
	}

	if failOn := strings.TrimSpace(viper.GetString("evaluate.fail-on")); failOn != "" {
		threshold := alert.Severity(strings.ToLower(failOn))
		if threshold.Rank() < 0 {
			return apperr.Userf("invalid --fail-on %q (expected low|medium|medium-high|high|critical)", failOn)
		}
		if verdict.Severity.AtLeast(threshold) {
			return fmt.Errorf("bias alert severity %s reaches --fail-on %s", verdict.Severity, threshold)
		}
	}
	return nil
}

// mergeThresholds applies fairness.thresholds.<metric>.{pass,floor} from
// config over the defaults. A metric that sets only one bound keeps the
// default for the other.
func mergeThresholds(into map[string]fairness.Threshold) error {
	overrides := viper.GetStringMap("fairness.thresholds")
	for name := range overrides {
		th, ok := into[name]
		if !ok {
			th, ok = fairness.DefaultThreshold(name)
		}
		if !ok {
			return apperr.Userf("config fairness.thresholds: unknown metric %q", name)
		}
		key := "fairness.thresholds." + name
		if viper.IsSet(key + ".pass") {
			th.Pass = viper.GetFloat64(key + ".pass")
		}
		if viper.IsSet(key + ".floor") {
			th.Floor = viper.GetFloat64(key + ".floor")
		}
		if th.Floor > th.Pass {
			return apperr.Userf("config fairness.thresholds.%s: floor %.2f above pass %.2f", name, th.Floor, th.Pass)
		}
		into[name] = th
	}
	return nil
}

func alertConfig() alert.Config {
	cfg := alert.DefaultConfig()
	if viper.IsSet("alert.disparate_impact_floor") {
		cfg.DisparateImpactFloor = viper.GetFloat64("alert.disparate_impact_floor")
	}
	if viper.IsSet("alert.overconfidence_threshold") {
		cfg.OverconfidenceThreshold = viper.GetFloat64("alert.overconfidence_threshold")
	}
	return cfg
}

func writeAnnotated(path string, engine *alert.Engine, verdict alert.BiasAlert, records []fairness.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	annotated := func(yield func(alert.Annotated) bool) {
		for _, r := range records {
			if !yield(engine.Annotate(r, verdict)) {
				return
			}
		}
	}
	if _, err := bomio.EncodeLines[alert.Annotated](f, annotated); err != nil {
		return fmt.Errorf("write annotations: %w", err)
	}
	return f.Close()
}

func writeFairnessBOM(cmd *cobra.Command, path, groupBy string, ev *fairness.Evaluation, verdict *alert.BiasAlert, quiet bool) error {
	bctx := builder.BuildContext{
		ModelName:    viper.GetString("evaluate.model-name"),
		ModelVersion: viper.GetString("evaluate.model-version"),
		GroupBy:      groupBy,
		Evaluation:   ev,
		Alert:        verdict,
	}

	if reportPath := strings.TrimSpace(viper.GetString("evaluate.unify-report")); reportPath != "" {
		var doc corpusDocument
		if err := bomio.ReadDocument(reportPath, "auto", &doc); err != nil {
			return fmt.Errorf("read unify report: %w", err)
		}
		bctx.CorpusVersion = doc.Version
		bctx.Report = &doc.Report
	}
	if corpusPath := strings.TrimSpace(viper.GetString("evaluate.corpus")); corpusPath != "" {
		samples, err := bomio.ReadSamples(corpusPath)
		if err != nil {
			return fmt.Errorf("read corpus: %w", err)
		}
		plan, err := balance.Balance(slices.Values(samples), balance.DefaultOptions())
		if err != nil {
			return err
		}
		bctx.Plan = &plan
	}
	if bctx.Report != nil {
		tables, err := labelmap.Resolve(viper.GetStringSlice("evaluate.table"))
		if err != nil {
			return err
		}
		bctx.Tables = tables
	}

	bom, err := builder.NewBOMBuilder(builder.DefaultOptions()).Build(bctx)
	if err != nil {
		return err
	}

	res := validator.ValidateBOM(bom, viper.GetBool("evaluate.strict"))
	if !quiet {
		for _, w := range res.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatStatus("warning", w))
		}
	}
	if !res.Valid {
		return fmt.Errorf("generated BOM is invalid: %s", strings.Join(res.Errors, "; "))
	}

	if err := bomio.WriteBOM(bom, path, viper.GetString("evaluate.bom-format"), viper.GetString("evaluate.spec")); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatus("success", "ML-BOM written to "+ui.Highlight.Render(path)))
	}
	return nil
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalPredictions, "predictions", "p", "", "Prediction log, JSONL or CSV (required)")
	evaluateCmd.Flags().StringVarP(&evalFormat, "format", "f", "", "Prediction log format: jsonl|csv|auto")
	evaluateCmd.Flags().StringVar(&evalGroupBy, "group-by", "skin_type", "Demographic attribute the log's groups were formed on")
	evaluateCmd.Flags().IntVar(&evalMinGroupSize, "min-group-size", fairness.DefaultMinGroupSize, "Smallest group a metric will judge")
	evaluateCmd.Flags().StringSliceVar(&evalMetrics, "metrics", []string{}, "Metrics to compute (default all)")
	evaluateCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "Write the evaluation and alert (json|yaml by extension)")
	evaluateCmd.Flags().StringVar(&evalAnnotate, "annotate", "", "Write every prediction with review guidance as JSONL")
	evaluateCmd.Flags().StringVar(&evalBOM, "bom", "", "Write the run as a CycloneDX ML-BOM")
	evaluateCmd.Flags().StringVar(&evalBOMFormat, "bom-format", "", "BOM format: json|xml|auto")
	evaluateCmd.Flags().StringVar(&evalSpecVersion, "spec", "", "CycloneDX spec version for the BOM (1.5 or 1.6)")
	evaluateCmd.Flags().StringVar(&evalModelName, "model-name", "", "Model name recorded in the BOM")
	evaluateCmd.Flags().StringVar(&evalModelVersion, "model-version", "", "Model version recorded in the BOM")
	evaluateCmd.Flags().StringVar(&evalUnifyReport, "unify-report", "", "Unification report to describe the training corpus in the BOM")
	evaluateCmd.Flags().StringVar(&evalCorpus, "corpus", "", "Unified corpus to record class balance in the BOM")
	evaluateCmd.Flags().StringSliceVarP(&evalTables, "table", "t", []string{}, "Mapping tables used for the corpus")
	evaluateCmd.Flags().BoolVar(&evalStrict, "strict", false, "Treat BOM warnings as errors")
	evaluateCmd.Flags().StringVar(&evalFailOn, "fail-on", "", "Exit non-zero when the alert reaches this severity")
	evaluateCmd.Flags().BoolVarP(&evalVerbose, "verbose", "v", false, "Show per-group scores")
	evaluateCmd.Flags().StringVar(&evalLogLevel, "log-level", "", "Log level: quiet|standard|debug")
	evaluateCmd.Flags().BoolVar(&evalPlainSummary, "plain-summary", false, "Print a plain summary (no styling)")

	// Bind all flags to viper for config file support
	for _, name := range []string{
		"predictions", "format", "group-by", "min-group-size", "metrics", "output", "annotate",
		"bom", "bom-format", "spec", "model-name", "model-version", "unify-report", "corpus",
		"table", "strict", "fail-on", "verbose", "log-level", "plain-summary",
	} {
		viper.BindPFlag("evaluate."+name, evaluateCmd.Flags().Lookup(name))
	}
}

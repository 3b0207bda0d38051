package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	bomio "github.com/idlab-discover/FairDerm-cli/internal/io"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
	"github.com/idlab-discover/FairDerm-cli/internal/scanner"
	"github.com/idlab-discover/FairDerm-cli/internal/triage"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
	"github.com/idlab-discover/FairDerm-cli/internal/validator"
)

var (
	labelsTables   []string
	labelsLogLevel string

	listVerbose bool

	checkInputs       []string
	checkCeiling      float64
	checkOutput       string
	checkPlainSummary bool

	triageInput     string
	triageSource    string
	triageStrategy  string
	triageAnswers   string
	triageOutput    string
	triageNoPreview bool
)

// labelsCmd groups the mapping table commands
var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Inspect, check and extend label mapping tables",
}

var labelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the mapping tables in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := resolveLogLevel("labels")
		if err != nil {
			return err
		}
		tables, err := labelmap.Resolve(viper.GetStringSlice("labels.table"))
		if err != nil {
			return err
		}
		ui.NewCoverageUI(cmd.OutOrStdout(), level == "quiet").
			PrintTables(toTableRows(tables), viper.GetBool("labels.list.verbose"))
		return nil
	},
}

var labelsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check mapping tables against the raw labels datasets produce",
	Long:  "Reads every record of the given datasets and reports, per source, the share of records its mapping table covers, the unmapped raw labels and the table entries nobody uses.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := resolveLogLevel("labels")
		if err != nil {
			return err
		}
		quiet := level == "quiet"

		inputs := append(viper.GetStringSlice("labels.check.input"), args...)
		if len(inputs) == 0 {
			return apperr.User("at least one --input path is required")
		}
		sources, err := discoverSources(inputs)
		if err != nil {
			return err
		}
		tables, err := labelmap.Resolve(viper.GetStringSlice("labels.table"))
		if err != nil {
			return err
		}

		opts := validator.Options{Ceiling: viper.GetFloat64("labels.check.ceiling")}
		covUI := ui.NewCoverageUI(cmd.OutOrStdout(), quiet)
		var results []validator.Coverage
		failed := 0
		for _, src := range sources {
			observed, err := observe(src)
			if err != nil {
				return err
			}
			table, ok := findTable(tables, src.Table)
			if !ok {
				table = labelmap.Table{Source: src.Table}
			}
			res := validator.CheckTable(table, observed, opts)
			if res.Source != src.ID {
				res.Source = src.ID
			}
			validator.PrintReport(res)
			if viper.GetBool("labels.check.plain-summary") {
				fmt.Fprintln(cmd.OutOrStdout(), validator.FormatSummary(res))
			} else {
				covUI.PrintReport(toCoverageReport(res))
			}
			if !res.Valid {
				failed++
			}
			results = append(results, res)
		}

		if out := strings.TrimSpace(viper.GetString("labels.check.output")); out != "" {
			if err := bomio.WriteDocument(out, "auto", results); err != nil {
				return fmt.Errorf("write coverage: %w", err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d source(s) not covered by their mapping table", failed, len(results))
		}
		return nil
	},
}

var labelsTriageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Assign classes to unmapped raw labels and write a new table version",
	Long:  "Finds the raw labels of one dataset that its mapping table does not cover, asks for benign, malignant or skip for each (interactively, or from an answers file), and writes the next version of the table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := resolveLogLevel("labels"); err != nil {
			return err
		}

		input := strings.TrimSpace(viper.GetString("labels.triage.input"))
		if input == "" && len(args) > 0 {
			input = args[0]
		}
		if input == "" {
			return apperr.User("--input is required")
		}
		sources, err := discoverSources([]string{input})
		if err != nil {
			return err
		}
		src, err := pickSource(sources, viper.GetString("labels.triage.source"))
		if err != nil {
			return err
		}

		tables, err := labelmap.Resolve(viper.GetStringSlice("labels.table"))
		if err != nil {
			return err
		}
		table, ok := findTable(tables, src.Table)
		observed, err := observe(src)
		if err != nil {
			return err
		}
		var unmapped []validator.LabelCount
		if ok {
			unmapped = validator.CheckTable(table, observed, validator.Options{}).Unmapped
		} else {
			table = labelmap.Table{Source: src.Table}
			unmapped = sortedCounts(observed)
		}
		if len(unmapped) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatus("success", "every raw label of "+src.ID+" is mapped"))
			return nil
		}

		t := triage.New(triage.Options{
			Reader: cmd.InOrStdin(),
			Writer: cmd.OutOrStdout(),
			Config: triage.Config{
				Strategy:    viper.GetString("labels.triage.strategy"),
				AnswersFile: viper.GetString("labels.triage.answers"),
				NoPreview:   viper.GetBool("labels.triage.no-preview"),
			},
		})
		next, changes, err := t.Triage(table, unmapped)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatus("info", "no labels assigned; table unchanged"))
			return nil
		}

		out := strings.TrimSpace(viper.GetString("labels.triage.output"))
		if out == "" {
			out = filepath.Join("dist", "tables", next.Source+".yaml")
		}
		data, err := labelmap.Encode(next)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatus("success",
			fmt.Sprintf("%d label(s) added, table %s version %s written to %s", len(changes), next.Source, next.Version, ui.Highlight.Render(out))))
		return nil
	},
}

// observe counts the raw labels of every record in src.
func observe(src scanner.Source) (map[string]int, error) {
	stream, err := scanner.Open(src)
	if err != nil {
		return nil, err
	}
	observed := validator.Observe(stream.Records)
	if stream.Err != nil {
		if err := stream.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", src.ID, err)
		}
	}
	return observed, nil
}

func findTable(tables []labelmap.Table, source string) (labelmap.Table, bool) {
	for _, t := range tables {
		if t.Source == source {
			return t, true
		}
	}
	return labelmap.Table{}, false
}

func pickSource(sources []scanner.Source, id string) (scanner.Source, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		if len(sources) == 1 {
			return sources[0], nil
		}
		ids := make([]string, len(sources))
		for i, s := range sources {
			ids[i] = s.ID
		}
		return scanner.Source{}, apperr.Userf("input holds %d datasets (%s); choose one with --source", len(sources), strings.Join(ids, ", "))
	}
	for _, s := range sources {
		if s.ID == id {
			return s, nil
		}
	}
	return scanner.Source{}, apperr.Userf("no dataset %q in input", id)
}

func sortedCounts(observed map[string]int) []validator.LabelCount {
	out := make([]validator.LabelCount, 0, len(observed))
	for l, n := range observed {
		out = append(out, validator.LabelCount{Label: l, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func init() {
	labelsCmd.PersistentFlags().StringSliceVarP(&labelsTables, "table", "t", []string{}, "Mapping table YAML overriding the built-in table for its source")
	labelsCmd.PersistentFlags().StringVar(&labelsLogLevel, "log-level", "", "Log level: quiet|standard|debug")
	viper.BindPFlag("labels.table", labelsCmd.PersistentFlags().Lookup("table"))
	viper.BindPFlag("labels.log-level", labelsCmd.PersistentFlags().Lookup("log-level"))

	labelsListCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "List every raw label")
	viper.BindPFlag("labels.list.verbose", labelsListCmd.Flags().Lookup("verbose"))

	labelsCheckCmd.Flags().StringSliceVarP(&checkInputs, "input", "i", []string{}, "Dataset file or directory (repeatable or comma-separated)")
	labelsCheckCmd.Flags().Float64Var(&checkCeiling, "ceiling", validator.DefaultCeiling, "Tolerated unmapped share, in (0,1]")
	labelsCheckCmd.Flags().StringVarP(&checkOutput, "output", "o", "", "Write coverage results (json|yaml by extension)")
	labelsCheckCmd.Flags().BoolVar(&checkPlainSummary, "plain-summary", false, "Print one plain line per source (no styling)")
	viper.BindPFlag("labels.check.input", labelsCheckCmd.Flags().Lookup("input"))
	viper.BindPFlag("labels.check.ceiling", labelsCheckCmd.Flags().Lookup("ceiling"))
	viper.BindPFlag("labels.check.output", labelsCheckCmd.Flags().Lookup("output"))
	viper.BindPFlag("labels.check.plain-summary", labelsCheckCmd.Flags().Lookup("plain-summary"))

	labelsTriageCmd.Flags().StringVarP(&triageInput, "input", "i", "", "Dataset file or directory (required)")
	labelsTriageCmd.Flags().StringVar(&triageSource, "source", "", "Dataset id when the input holds several")
	labelsTriageCmd.Flags().StringVar(&triageStrategy, "strategy", "interactive", "Triage strategy: interactive|file")
	labelsTriageCmd.Flags().StringVar(&triageAnswers, "answers", "", "Answers YAML for the file strategy")
	labelsTriageCmd.Flags().StringVarP(&triageOutput, "output", "o", "", "Output table path (default dist/tables/<source>.yaml)")
	labelsTriageCmd.Flags().BoolVar(&triageNoPreview, "no-preview", false, "Skip the preview and confirmation")
	viper.BindPFlag("labels.triage.input", labelsTriageCmd.Flags().Lookup("input"))
	viper.BindPFlag("labels.triage.source", labelsTriageCmd.Flags().Lookup("source"))
	viper.BindPFlag("labels.triage.strategy", labelsTriageCmd.Flags().Lookup("strategy"))
	viper.BindPFlag("labels.triage.answers", labelsTriageCmd.Flags().Lookup("answers"))
	viper.BindPFlag("labels.triage.output", labelsTriageCmd.Flags().Lookup("output"))
	viper.BindPFlag("labels.triage.no-preview", labelsTriageCmd.Flags().Lookup("no-preview"))

	labelsCmd.AddCommand(labelsListCmd, labelsCheckCmd, labelsTriageCmd)
}

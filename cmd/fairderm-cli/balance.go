package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/balance"
	bomio "github.com/idlab-discover/FairDerm-cli/internal/io"
	"github.com/idlab-discover/FairDerm-cli/internal/ui"
)

var (
	balanceCorpus          string
	balanceOutput          string
	balanceMaxAugmentation int
	balanceLogLevel        string
	balancePlainSummary    bool
)

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Compute class weights and augmentation factors for a corpus",
	Long:  "Reads a unified corpus and derives per-class weights (majority count over class count) and augmentation factors capped at --max-augmentation. Unmapped samples are excluded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := resolveLogLevel("balance")
		if err != nil {
			return err
		}

		corpusPath := strings.TrimSpace(viper.GetString("balance.corpus"))
		if corpusPath == "" {
			return apperr.User("--corpus is required")
		}
		samples, err := bomio.ReadSamples(corpusPath)
		if err != nil {
			return fmt.Errorf("read corpus: %w", err)
		}

		plan, err := balance.Balance(slices.Values(samples), balance.Options{
			MaxAugmentation: viper.GetInt("balance.max-augmentation"),
		})
		if err != nil {
			return err
		}

		if out := strings.TrimSpace(viper.GetString("balance.output")); out != "" {
			if err := bomio.WriteDocument(out, "auto", plan); err != nil {
				return fmt.Errorf("write plan: %w", err)
			}
		}

		balanceUI := ui.NewBalanceUI(cmd.OutOrStdout(), level == "quiet")
		if viper.GetBool("balance.plain-summary") {
			balanceUI.PrintSimpleReport(toBalancePlan(plan))
			return nil
		}
		balanceUI.PrintReport(toBalancePlan(plan))
		return nil
	},
}

func init() {
	balanceCmd.Flags().StringVarP(&balanceCorpus, "corpus", "c", "", "Unified corpus JSONL (required)")
	balanceCmd.Flags().StringVarP(&balanceOutput, "output", "o", "", "Write the plan (json|yaml by extension)")
	balanceCmd.Flags().IntVar(&balanceMaxAugmentation, "max-augmentation", balance.DefaultMaxAugmentation, "Upper bound on augmentation factors")
	balanceCmd.Flags().StringVar(&balanceLogLevel, "log-level", "", "Log level: quiet|standard|debug")
	balanceCmd.Flags().BoolVar(&balancePlainSummary, "plain-summary", false, "Print a plain summary (no styling)")

	// Bind all flags to viper for config file support
	viper.BindPFlag("balance.corpus", balanceCmd.Flags().Lookup("corpus"))
	viper.BindPFlag("balance.output", balanceCmd.Flags().Lookup("output"))
	viper.BindPFlag("balance.max-augmentation", balanceCmd.Flags().Lookup("max-augmentation"))
	viper.BindPFlag("balance.log-level", balanceCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("balance.plain-summary", balanceCmd.Flags().Lookup("plain-summary"))
}

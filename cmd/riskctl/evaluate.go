package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/richxcame/order-risk/internal/review"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type evaluateFlags struct {
	orderFile   string
	historyFile string
	configFile  string
	profile     string
	baseline    float64
	now         string
}

type evaluateOutput struct {
	Result *risk.RiskResult `json:"result"`
	Review review.Decision  `json:"review"`
	Error  string           `json:"error,omitempty"`
}

func newEvaluateCmd() *cobra.Command {
	var f evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score one order against a history file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var order risk.Order
			if err := readJSONFile(f.orderFile, &order); err != nil {
				return err
			}

			var history []risk.Order
			if f.historyFile != "" {
				if err := readJSONFile(f.historyFile, &history); err != nil {
					return err
				}
			}

			cfg, err := loadConfig(f.configFile, f.profile)
			if err != nil {
				return err
			}

			var opts []risk.EvaluateOption
			if cmd.Flags().Changed("baseline") {
				opts = append(opts, risk.WithBaseline(f.baseline))
			}
			if f.now != "" {
				ref, err := time.Parse(time.RFC3339, f.now)
				if err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
				opts = append(opts, risk.WithReferenceTime(ref))
			}

			engine := risk.NewEngine(risk.StaticConfig(cfg), risk.WithLogger(zap.NewNop()))
			out := evaluateOutput{}
			result, evalErr := engine.Evaluate(order, history, opts...)
			out.Result = result
			if evalErr != nil {
				out.Error = evalErr.Error()
			}

			decision, err := review.DefaultPolicy().Decide(result)
			if err != nil {
				return err
			}
			out.Review = decision
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&f.orderFile, "order", "", "JSON file holding the order to score")
	cmd.Flags().StringVar(&f.historyFile, "history", "", "JSON file holding the customer's past orders")
	cmd.Flags().StringVar(&f.configFile, "config", "", "risk config file, defaults apply when empty")
	cmd.Flags().StringVar(&f.profile, "profile", "", "named profile applied on top of the config")
	cmd.Flags().Float64Var(&f.baseline, "baseline", 0, "customer's typical order value")
	cmd.Flags().StringVar(&f.now, "now", "", "RFC3339 end of the velocity window, defaults to the order time")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slidegauge/internal/evaluate"
	"slidegauge/internal/gate"
)

var triageFlags struct {
	top int
}

var triageCmd = &cobra.Command{
	Use:   "triage <run-result.json>",
	Short: "Triage a run result: buckets, attention ranking, diagnoses",
	Long: `Triage reads a run result produced by "evaluate -o" and summarizes where
the engineering attention should go: which failures are oracle problems,
which are fidelity regressions, and what a SmartArt mismatch probably is.`,
	Args: cobra.ExactArgs(1),
	RunE: runTriage,
}

func init() {
	triageCmd.Flags().IntVar(&triageFlags.top, "top", 15, "How many attention items to print")
}

func runTriage(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read run result: %w", err)
	}
	var run evaluate.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return fmt.Errorf("parse run result: %w", err)
	}
	out := cmd.OutOrStdout()

	buckets := map[string][]string{}
	for _, cr := range run.Cases {
		if cr.Passed {
			continue
		}
		bucket := cr.Bucket
		if bucket == "" {
			bucket = gate.BucketFailure(cr.Reasons)
		}
		buckets[bucket] = append(buckets[bucket], cr.Case)
	}
	if len(buckets) == 0 {
		fmt.Fprintln(out, "No failing cases.")
	}
	for _, bucket := range []string{gate.BucketOracleFailure, gate.BucketFidelityRegression, gate.BucketUnsupported} {
		if names := buckets[bucket]; len(names) > 0 {
			fmt.Fprintf(out, "%s (%d):\n", bucket, len(names))
			for _, n := range names {
				fmt.Fprintf(out, "  %s\n", n)
			}
		}
	}

	if len(run.Attention) > 0 {
		fmt.Fprintln(out, "Attention:")
		for i, item := range run.Attention {
			if i >= triageFlags.top {
				break
			}
			fmt.Fprintf(out, "  %.4f %s#%d %v\n", item.Severity, item.Case, item.SlideIdx, item.Reasons)
		}
	}

	for _, cr := range run.Cases {
		if cr.Passed {
			continue
		}
		fmt.Fprintf(out, "%s:\n", cr.Case)
		for _, d := range gate.DiagnoseFidelityGap(cr.Case, cr.Averages) {
			fmt.Fprintf(out, "  %s\n", d)
		}
	}
	return nil
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slidegauge/internal/catalog"
	"slidegauge/internal/review"
)

var reviewFlags struct {
	storePath   string
	catalogPath string
	casesDir    string
	note        string
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record and apply manual slide verdicts",
	Long: `Review records a human verdict on one slide of a case:

  slidegauge review record smartart-cycle 2 supported
  slidegauge review record smartart-cycle 3 unsupported --note "arrow missing"
  slidegauge review list smartart-cycle
  slidegauge review sync

Verdicts are supported, unsupported or unsure. "sync" folds confirmed
verdicts into the support catalog; unsure stays in the review ledger.`,
}

var reviewRecordCmd = &cobra.Command{
	Use:   "record <case> <slide> <verdict>",
	Short: "Record a verdict for one slide",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		slideIdx, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("slide index must be a number, got %q", args[1])
		}
		store, err := review.Load(reviewFlags.storePath)
		if err != nil {
			return err
		}
		entry, err := store.Record(args[0], slideIdx, args[2], reviewFlags.note)
		if err != nil {
			return err
		}
		if err := store.Save(reviewFlags.storePath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s = %s\n", entry.Key, entry.Verdict)
		return nil
	},
}

var reviewListCmd = &cobra.Command{
	Use:   "list <case>",
	Short: "List recorded verdicts for a case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := review.Load(reviewFlags.storePath)
		if err != nil {
			return err
		}
		entries := store.ByCase(args[0])
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No verdicts recorded for %s\n", args[0])
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("  slide %d: %s", e.SlideIdx, e.Verdict)
			if e.Note != "" {
				line += " (" + e.Note + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var reviewSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fold confirmed verdicts into the support catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := review.Load(reviewFlags.storePath)
		if err != nil {
			return err
		}
		cat, err := catalog.LoadOrInit(reviewFlags.catalogPath, reviewFlags.casesDir)
		if err != nil {
			return err
		}
		synced := store.SyncCatalog(cat)
		if err := cat.Save(reviewFlags.catalogPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d case(s) into %s\n", len(synced), reviewFlags.catalogPath)
		return nil
	},
}

func init() {
	pf := reviewCmd.PersistentFlags()
	pf.StringVar(&reviewFlags.storePath, "store", "testdata/manual-review.json", "Review ledger path")
	pf.StringVar(&reviewFlags.catalogPath, "catalog", "testdata/support-catalog.json", "Support catalog path")
	pf.StringVar(&reviewFlags.casesDir, "cases", "cases", "Directory of case descriptor files")
	reviewRecordCmd.Flags().StringVar(&reviewFlags.note, "note", "", "Free-form reviewer note")

	reviewCmd.AddCommand(reviewRecordCmd)
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewSyncCmd)
}

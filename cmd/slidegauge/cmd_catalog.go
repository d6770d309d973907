package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"slidegauge/internal/catalog"
)

var catalogFlags struct {
	casesDir    string
	catalogPath string
	scope       string
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and maintain the support catalog",
	Long: `Catalog shows what the run history says about each case. "init" seeds
entries for new case descriptors; "show" lists the cases in a scope.`,
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed catalog entries for new case descriptors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.LoadOrInit(catalogFlags.catalogPath, catalogFlags.casesDir)
		if err != nil {
			return err
		}
		if err := cat.Save(catalogFlags.catalogPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Catalog with %d case(s) written to: %s\n",
			len(cat.Cases), catalogFlags.catalogPath)
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List catalog entries in a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.LoadOrInit(catalogFlags.catalogPath, catalogFlags.casesDir)
		if err != nil {
			return err
		}
		names, err := cat.Select(catalogFlags.scope)
		if err != nil {
			return err
		}
		counts := map[catalog.Status]int{}
		for _, e := range cat.Cases {
			counts[e.Status]++
		}
		var statuses []string
		for s := range counts {
			statuses = append(statuses, string(s))
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", s, counts[catalog.Status(s)])
		}
		for _, name := range names {
			e := cat.Cases[name]
			line := fmt.Sprintf("  %-32s %s", name, e.Status)
			if len(e.LastReasons) > 0 {
				line += fmt.Sprintf("  %v", e.LastReasons)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	pf := catalogCmd.PersistentFlags()
	pf.StringVar(&catalogFlags.casesDir, "cases", "cases", "Directory of case descriptor files")
	pf.StringVar(&catalogFlags.catalogPath, "catalog", "testdata/support-catalog.json", "Support catalog path")
	catalogShowCmd.Flags().StringVar(&catalogFlags.scope, "scope", "all", "Case scope: all, unsupported or unknown")

	catalogCmd.AddCommand(catalogInitCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}

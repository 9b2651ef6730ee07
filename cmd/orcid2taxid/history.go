// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/orcid2taxid/internal/report"
	"github.com/pdiddy/orcid2taxid/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List stored runs or show one stored report",
	Long: `History reads the database given by --db. Without arguments it lists
stored runs, newest first, optionally filtered by researcher or organism.
With a run ID it prints that run's full report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("orcid", "", "only runs for this ORCID iD")
	historyCmd.Flags().String("organism", "", "only runs that found this organism")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyCmd.Flags().String("format", "table", "output format: table, json or yaml")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := viper.GetString("db")
	if path == "" {
		return errors.New("no database configured: pass --db or set db in orcid2taxid.yaml")
	}
	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		rep, err := st.LoadReport(ctx, args[0])
		if err != nil {
			return err
		}
		return report.Write(rep, format, cmd.OutOrStdout())
	}

	opts := store.HistoryOptions{}
	opts.ORCID, _ = cmd.Flags().GetString("orcid")
	opts.Organism, _ = cmd.Flags().GetString("organism")
	opts.Limit, _ = cmd.Flags().GetInt("limit")

	runs, err := st.History(ctx, opts)
	if err != nil {
		return err
	}
	switch format {
	case report.FormatJSONName:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case report.FormatYAMLName:
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(runs)
	}
	formatHistory(runs, cmd.OutOrStdout())
	return nil
}

func formatHistory(runs []store.RunSummary, w io.Writer) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-19s  %-16s  %-24s  %-5s  %-5s  %s\n",
		"Run", "ORCID", "Started", "Researcher", "Pubs", "Orgs", "Watch")
	fmt.Fprintln(w, strings.Repeat("-", 124))

	for _, r := range runs {
		name := r.DisplayName
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-19s  %-16s  %-24s  %-5d  %-5d  %d\n",
			r.RunID, r.ORCID, r.StartedAt.Local().Format("2006-01-02 15:04"), name, r.Publications, r.Organisms, r.Watchlisted)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/internal/pipeline"
	"github.com/pdiddy/orcid2taxid/internal/report"
	"github.com/pdiddy/orcid2taxid/internal/store"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

var taxonCmd = &cobra.Command{
	Use:   "taxon <name>...",
	Short: "Resolve organism names to NCBI taxonomy identifiers",
	Long: `Taxon resolves each organism name through the NCBI taxonomy service using
the same normalization, ranking and cache as a full run. Abbreviated and
common names are expanded first ("E. coli", "mouse").

With --db, resolutions are read from and written to the stored taxon cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTaxon,
}

func init() {
	taxonCmd.Flags().Bool("json", false, "output resolutions as JSON")
	rootCmd.AddCommand(taxonCmd)
}

func runTaxon(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := pipelineConfig()
	resolver := pipeline.NewResolver(cfg.Taxonomy, &http.Client{}, httputil.NewLimiter(cfg.RequestRateLimit))

	var st *store.Store
	if path := viper.GetString("db"); path != "" {
		var err error
		st, err = store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()

		taxa, err := st.LoadTaxa(ctx)
		if err != nil {
			return err
		}
		resolver.Cache.Warm(taxa)
	}

	out := make([]types.TaxonResolution, 0, len(args))
	for _, name := range args {
		res := resolver.Resolve(ctx, name)
		if !res.Resolved() {
			logging.FromContext(ctx).Warn().Str("name", name).Str("error", res.Error).Msg("unresolved")
		}
		out = append(out, res)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if st != nil {
		if err := st.SaveTaxa(ctx, resolver.Cache.Entries()); err != nil {
			return err
		}
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	report.FormatTaxa(out, cmd.OutOrStdout())
	return nil
}

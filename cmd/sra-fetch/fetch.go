package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sra-fetch/internal/filter"
	"github.com/pdiddy/sra-fetch/internal/pipeline"
	"github.com/pdiddy/sra-fetch/internal/secrets"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Search SRA, filter the matching experiments, and write them to CSV",
	Long: `Fetch runs an Entrez search against the SRA database, downloads the
document summary of every matching experiment in batches, parses each summary
into a flat record, keeps the records that satisfy every --filter predicate,
and writes them to --output.

Filters are written as "field op value", for example:

  --filter "library_layout = paired"
  --filter "read_average >= 100"
  --filter "instrument_model in Illumina HiSeq 2500,Illumina NovaSeq 6000"
  --filter "published is_null"

Run "sra-fetch fields" to list the fields and the comparators each accepts.`,
	Example: `  sra-fetch fetch --search 'chicken[Organism] AND "strategy rna seq"[Properties]' \
    --max-records 500 --filter "library_layout = paired" --output chicken.csv`,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("search", "", "Entrez search expression")
	f.Int("max-records", 0, "maximum number of identifiers to retrieve")
	f.StringP("output", "o", "", "CSV path for admitted records (.tsv writes tab-separated)")
	f.String("email", "", "contact email sent to NCBI (default: .secrets/ncbi-email)")
	f.String("api-key", "", "NCBI API key (default: .secrets/ncbi-api-key)")
	f.String("query-file", "", "YAML file holding search, max_records and filters")
	f.StringArray("filter", nil, `filter predicate "field op value" (repeatable, combined with AND)`)
	f.Int("page-size", types.DefaultPageSize, "identifiers per search page")
	f.Int("batch-size", types.DefaultBatchSize, "identifiers per summary request")
	f.Int("concurrency", types.DefaultConcurrency, "summary batches fetched in parallel")
	f.Int("retries", types.DefaultMaxRetries, "retries per page or batch after the first attempt (0 disables retrying)")
	f.Duration("timeout", types.DefaultTimeout, "HTTP request timeout")
	f.String("cache-dir", "", "directory for the SQLite document and taxonomy cache")
	f.Duration("cache-max-age", 0, "refetch cached documents older than this (0 keeps them forever)")
	f.Bool("lineage", false, "resolve taxonomic_lineage through the taxonomy database")
	f.String("unfiltered-output", "", "also write every parsed record to this path")
	f.String("taxa-output", "", "write the unique lineages of admitted records to this path")
	f.String("summary-output", "", "write the run summary as YAML to this path")
	f.String("save-query", "", "save the effective search and filters as a query file")

	for _, name := range []string{
		"search", "max-records", "output", "email", "api-key",
		"page-size", "batch-size", "concurrency", "retries", "timeout",
		"cache-dir", "cache-max-age", "lineage", "unfiltered-output", "taxa-output", "summary-output",
	} {
		viper.BindPFlag(name, f.Lookup(name))
	}

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := fetchConfig(cmd)
	if err != nil {
		return err
	}

	summary, runErr := pipeline.Run(cmd.Context(), nil, cfg, os.Stderr)
	summary.Print(os.Stdout)

	if path := cfg.SummaryOutput; path != "" {
		if err := pipeline.WriteSummary(path, summary); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}
	if path, _ := cmd.Flags().GetString("save-query"); path != "" && runErr == nil {
		if err := pipeline.WriteQueryFile(path, cfg.Query); err != nil {
			return fmt.Errorf("saving query: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Saved query to %s\n", path)
	}
	return runErr
}

// fetchConfig assembles the run configuration. A query file supplies the
// base query; search and max-records given on the command line replace its
// values and --filter predicates are added to its filters.
func fetchConfig(cmd *cobra.Command) (types.FetchConfig, error) {
	var q types.Query
	if path, _ := cmd.Flags().GetString("query-file"); path != "" {
		loaded, err := pipeline.ReadQueryFile(path)
		if err != nil {
			return types.FetchConfig{}, err
		}
		q = loaded
	}
	if s := viper.GetString("search"); s != "" {
		q.Search = s
	}
	if n := viper.GetInt("max-records"); n > 0 {
		q.MaxRecords = n
	}

	exprs, _ := cmd.Flags().GetStringArray("filter")
	preds, err := filter.ParsePredicates(exprs)
	if err != nil {
		return types.FetchConfig{}, err
	}
	q.Filters = append(q.Filters, preds...)

	cfg := types.FetchConfig{
		Query:            q,
		PageSize:         viper.GetInt("page-size"),
		BatchSize:        viper.GetInt("batch-size"),
		Concurrency:      viper.GetInt("concurrency"),
		CacheDir:         viper.GetString("cache-dir"),
		CacheMaxAge:      viper.GetDuration("cache-max-age"),
		ResolveLineage:   viper.GetBool("lineage"),
		Output:           viper.GetString("output"),
		UnfilteredOutput: viper.GetString("unfiltered-output"),
		TaxaOutput:       viper.GetString("taxa-output"),
		SummaryOutput:    viper.GetString("summary-output"),
	}
	cfg.Entrez.Email = loadedSecrets.Get(secrets.NCBIEmail, viper.GetString("email"))
	cfg.Entrez.APIKey = loadedSecrets.Get(secrets.NCBIAPIKey, viper.GetString("api-key"))
	cfg.Entrez.Timeout = viper.GetDuration("timeout")
	cfg.Entrez.MaxRetries = retrySetting(viper.GetInt("retries"))
	return cfg, nil
}

// retrySetting maps the --retries flag onto RetryConfig.MaxRetries, where
// zero means "default" rather than "none".
func retrySetting(n int) int {
	if n <= 0 {
		return types.NoRetries
	}
	return n
}

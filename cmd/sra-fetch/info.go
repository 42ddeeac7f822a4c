package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sra-fetch/internal/eutils"
	"github.com/pdiddy/sra-fetch/internal/search"
	"github.com/pdiddy/sra-fetch/internal/secrets"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the SRA database record count and searchable fields",
	Long: `Info asks the Entrez einfo endpoint for the current state of the SRA
database: the number of indexed experiments, the last update time, and the
field tags usable in a --search expression (for example [Organism] or
[Properties]).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := types.FetchConfig{}
		cfg.Entrez.Email = loadedSecrets.Get(secrets.NCBIEmail, viper.GetString("email"))
		cfg.Entrez.APIKey = loadedSecrets.Get(secrets.NCBIAPIKey, viper.GetString("api-key"))
		cfg = cfg.WithDefaults()

		ec := eutils.New(&http.Client{Timeout: cfg.Entrez.Timeout}, cfg.Entrez)
		info, err := search.New(ec, cfg.PageSize).Info(cmd.Context())
		if err != nil {
			return err
		}
		search.FormatInfo(info, os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

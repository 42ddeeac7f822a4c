// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the sra-fetch CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sra-fetch/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the sra-fetch CLI.
var rootCmd = &cobra.Command{
	Use:   "sra-fetch",
	Short: "Search the Sequence Read Archive and export filtered metadata",
	Long: `sra-fetch searches NCBI's Sequence Read Archive through the Entrez
E-utilities, fetches the metadata of every matching experiment, applies
filters the Entrez syntax cannot express (read length, library layout, any
exported column), and writes the surviving records to a CSV file.

NCBI asks every client for a contact email. Provide it with --email, the
SRA_FETCH_EMAIL environment variable, the config file, or .secrets/ncbi-email.
An API key in .secrets/ncbi-api-key raises the rate limit to 10 requests per
second.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/", os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Names())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./sra-fetch.yaml or ~/.config/sra-fetch/sra-fetch.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sra-fetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sra-fetch"))
		}
	}

	viper.SetEnvPrefix("SRA_FETCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

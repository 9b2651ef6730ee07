// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the orcid2taxid CLI. It maps a
// researcher's ORCID iD to the organisms they have worked with and to NCBI
// taxonomy identifiers.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys from .secrets/ and the environment.
var loadedSecrets map[string]string

// secretEnv maps environment variables (possibly set through .env) to
// secret key names.
var secretEnv = map[string]string{
	"NCBI_API_KEY":             secrets.NCBIAPIKey,
	"ANTHROPIC_API_KEY":        secrets.AnthropicAPIKey,
	"GEMINI_API_KEY":           secrets.GeminiAPIKey,
	"SEMANTIC_SCHOLAR_API_KEY": secrets.SemanticScholarAPIKey,
	"CONTACT_EMAIL":            secrets.ContactEmail,
}

// rootCmd is the base command for the orcid2taxid CLI.
var rootCmd = &cobra.Command{
	Use:   "orcid2taxid",
	Short: "Map a researcher to the organisms they work with",
	Long: `orcid2taxid mines a researcher's publication history across the ORCID
registry and literature indices, verifies authorship, extracts the organisms
experimentally worked with, and resolves them to NCBI taxonomy identifiers.

API keys are read from .secrets/ (one file per key), from a .env file, or
from the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(logging.Config{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
		})
		logging.SetDefault(logger)
		cmd.SetContext(logging.WithLogger(cmd.Context(), &logger))

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Msg("could not read .env")
		}

		s, err := secrets.Load(viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		for env, key := range secretEnv {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				s[key] = v
			}
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./orcid2taxid.yaml or ~/.config/orcid2taxid/orcid2taxid.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")
	rootCmd.PersistentFlags().String("db", "", "SQLite database for run history and the taxon cache")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log_level":   "log-level",
		"log_format":  "log-format",
		"secrets_dir": "secrets-dir",
		"db":          "db",
	})
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("orcid2taxid")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "orcid2taxid"))
		}
	}

	viper.SetEnvPrefix("ORCID2TAXID")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		logging.Default().Info().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

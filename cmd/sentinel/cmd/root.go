// Package cmd implements the sentinel operator CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielcipriano1979/sentinel/apiclient"
	"github.com/danielcipriano1979/sentinel/config"
	"github.com/danielcipriano1979/sentinel/httpclient"
	"github.com/danielcipriano1979/sentinel/tokenstore"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string
	apiBaseURL string

	// Shared state initialized by the persistent pre-run.
	cfg    config.Config
	tokens *tokenstore.FileStore
	client *apiclient.Client
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Operator CLI for the ops dashboard",
	Long: `sentinel manages the platform-admin session used by the ops dashboard:
sign in to obtain a bearer token, inspect the stored session, and sign out.

The token is persisted on disk and picked up by the desktop dashboard, so a
login here survives restarts of both tools.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}

		if err := config.LoadDotenv(""); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
		var err error
		cfg, err = config.Load(configPath, "SENTINEL_")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if apiBaseURL != "" {
			cfg.APIBaseURL = apiBaseURL
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}

		tokens, err = tokenstore.NewFileStore(cfg.TokenPath)
		if err != nil {
			return fmt.Errorf("open token store: %w", err)
		}

		clientOptions := httpclient.DefaultClientOptions()
		clientOptions.Timeout = cfg.RequestTimeout
		clientOptions.Retry = httpclient.RetryOptions{MaxRetries: cfg.RetryMax}

		client, err = apiclient.New(apiclient.Options{
			BaseURL: cfg.APIBaseURL,
			HTTP:    httpclient.New(clientOptions),
			Tokens: apiclient.TokenFunc(func() (string, bool) {
				token, ok, err := tokens.Get(cmd.Context())
				if err != nil {
					return "", false
				}
				return token, ok
			}),
		})
		if err != nil {
			return fmt.Errorf("build api client: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "dashboard API origin (overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

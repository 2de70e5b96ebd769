package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gerrit-tools/serviceuser-cli/internal/config"
	clierrors "github.com/gerrit-tools/serviceuser-cli/internal/errors"
	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/upgrade"
	"github.com/gerrit-tools/serviceuser-cli/tui"
)

// version is set at build time via -X github.com/gerrit-tools/serviceuser-cli/cli.version=<ver>.
var version = "1.2.0"

var (
	// global state resolved by initClient
	gerritClient    *gerrit.Client
	resolvedConfig  *config.Config
	resolvedSiteURL string

	// global flags
	flagSite     string
	flagURL      string
	flagUsername string
	flagPassword string
	flagSecure   bool
	flagOutput   string
	flagTUI      bool
	flagUpgrade  bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:     "gsu",
	Version: version,
	Short:   "A CLI for managing Gerrit service user accounts",
	Long: `gsu manages the non-human "service user" accounts of a Gerrit server
through the serviceuser plugin: creation, activation, SSH keys, HTTP
passwords, and owner groups.

Configure a Gerrit site with:
  gsu site add review --url https://review.example.com \
    --username admin --http-password <secret>
  gsu site use review`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if flagUpgrade {
			if err := upgrade.Run(version); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			return
		}
		if flagTUI {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			if err := tui.LaunchTUI(cfg); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			return
		}
		cmd.Help() //nolint:errcheck
	},
}

// Execute wires the command tree and runs it.
func Execute() {
	rootCmd.SetVersionTemplate("gsu {{.Version}}\n")

	// Local flags (root command only)
	rootCmd.Flags().BoolVar(&flagTUI, "tui", false, "launch interactive terminal UI")
	rootCmd.Flags().BoolVar(&flagUpgrade, "upgrade", false, "upgrade gsu to the latest release")

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&flagSite, "site", "s", "", "named Gerrit site from config (overrides current-site)")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "Gerrit URL (e.g. https://review.example.com) — one-shot, no config needed")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "username", "", "Gerrit username")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "http-password", "", "HTTP password generated in Gerrit account settings")
	rootCmd.PersistentFlags().BoolVar(&flagSecure, "secure", false, "enforce TLS certificate verification (default is to skip verification)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "output format: table or json")

	// Sub-command groups
	rootCmd.AddCommand(siteCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(activateCmd())
	rootCmd.AddCommand(deactivateCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(sshKeyCmd())
	rootCmd.AddCommand(passwordCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initClient is called by command RunE functions that need a Gerrit client.
// It resolves the site config and builds the client.
func initClient(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	resolvedConfig = cfg

	// Inline flags take precedence over everything when --url is provided
	if flagURL != "" {
		site := &config.SiteConfig{
			URL:          flagURL,
			Username:     flagUsername,
			HTTPPassword: flagPassword,
			VerifyTLS:    flagSecure,
		}
		resolvedSiteURL = flagURL
		c, err := gerrit.New(site)
		if err != nil {
			return err
		}
		gerritClient = c
		return nil
	}

	// Resolve named site
	site, _, err := cfg.Resolve(flagSite)
	if err != nil {
		return err
	}
	// --secure flag overrides config
	if flagSecure {
		site.VerifyTLS = true
	}
	resolvedSiteURL = site.URL

	c, err := gerrit.New(site)
	if err != nil {
		return err
	}
	gerritClient = c
	return nil
}

// handleErr maps an error through the error handler with the resolved URL for
// connection error messages. Commands call this in their RunE return.
func handleErr(err error) error {
	return clierrors.Handle(resolvedSiteURL, err)
}

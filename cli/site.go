package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gerrit-tools/serviceuser-cli/internal/config"
	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

func siteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage configured Gerrit sites",
		Long:  "Add, remove, list, and switch between configured Gerrit sites.",
	}

	cmd.AddCommand(siteListCmd())
	cmd.AddCommand(siteAddCmd())
	cmd.AddCommand(siteRemoveCmd())
	cmd.AddCommand(siteUseCmd())
	cmd.AddCommand(siteShowCmd())
	return cmd
}

// siteListCmd lists all configured sites.
func siteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if flagOutput == "json" {
				type row struct {
					Name     string `json:"name"`
					URL      string `json:"url"`
					Username string `json:"username"`
					Current  bool   `json:"current"`
				}
				var rows []row
				for name, site := range cfg.Sites {
					rows = append(rows, row{
						Name:     name,
						URL:      site.URL,
						Username: site.Username,
						Current:  name == cfg.CurrentSite,
					})
				}
				return jsonOut(cmd, rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tURL\tUSERNAME\tCURRENT")
			for name, site := range cfg.Sites {
				current := ""
				if name == cfg.CurrentSite {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, site.URL, site.Username, current)
			}
			return w.Flush()
		},
	}
}

// siteAddCmd adds a new named site to the config.
func siteAddCmd() *cobra.Command {
	var (
		url      string
		username string
		password string
		secure   bool
	)

	cmd := &cobra.Command{
		Use:          "add <name>",
		Short:        "Add a new Gerrit site",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: false, // show usage when required flags are missing
		Example: `  gsu site add review \
    --url https://review.example.com \
    --username admin \
    --http-password xxxxxxxx \
    --secure`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if username == "" || password == "" {
				return fmt.Errorf("provide --username and --http-password")
			}

			siteCfg := config.SiteConfig{
				URL:          url,
				Username:     username,
				HTTPPassword: password,
				VerifyTLS:    secure,
			}

			// Verify connectivity and credentials before saving.
			s := startSpinner(fmt.Sprintf("Verifying connection to %s...", url))
			connErr := verifySite(&siteCfg)
			s.Stop()
			if connErr != nil {
				return fmt.Errorf("connection check failed: %w\n\nHint: %s", connErr, connectionHint(&siteCfg, connErr))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection verified.\n")

			cfg.Sites[name] = siteCfg
			if err := config.Save(cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Site %q added.\n", name)
			if cfg.CurrentSite == "" {
				cfg.CurrentSite = name
				if err := config.Save(cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %q as the default site.\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Gerrit URL, e.g. https://review.example.com")
	cmd.Flags().StringVar(&username, "username", "", "Gerrit username")
	cmd.Flags().StringVar(&password, "http-password", "", "HTTP password generated in Gerrit account settings")
	cmd.Flags().BoolVar(&secure, "secure", false, "Enforce TLS certificate verification (default is to skip verification)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// siteRemoveCmd removes a named site from the config.
func siteRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a configured site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if _, ok := cfg.Sites[name]; !ok {
				return fmt.Errorf("site %q not found", name)
			}
			delete(cfg.Sites, name)

			if cfg.CurrentSite == name {
				cfg.CurrentSite = ""
			}

			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Site %q removed.\n", name)
			return nil
		},
	}
}

// siteUseCmd sets the default site.
func siteUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Set the default site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if _, ok := cfg.Sites[name]; !ok {
				return fmt.Errorf("site %q not found — add it first with 'site add'", name)
			}

			cfg.CurrentSite = name
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default site set to %q.\n", name)
			return nil
		},
	}
}

// siteShowCmd shows config for the current or named site.
func siteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show config for the current or named site",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			name := cfg.CurrentSite
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				return fmt.Errorf("no site selected and no name provided")
			}

			site, ok := cfg.Sites[name]
			if !ok {
				return fmt.Errorf("site %q not found", name)
			}

			if flagOutput == "json" {
				type out struct {
					Name      string `json:"name"`
					URL       string `json:"url"`
					Username  string `json:"username"`
					VerifyTLS bool   `json:"verify-tls"`
					Current   bool   `json:"current"`
				}
				return jsonOut(cmd, out{
					Name:      name,
					URL:       site.URL,
					Username:  site.Username,
					VerifyTLS: site.VerifyTLS,
					Current:   name == cfg.CurrentSite,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Name:\t%s\n", name)
			fmt.Fprintf(w, "URL:\t%s\n", site.URL)
			fmt.Fprintf(w, "Username:\t%s\n", site.Username)
			fmt.Fprintf(w, "HTTP Password:\t%s\n", mask(site.HTTPPassword))
			fmt.Fprintf(w, "Verify TLS:\t%v\n", site.VerifyTLS)
			fmt.Fprintf(w, "Current:\t%v\n", name == cfg.CurrentSite)
			return w.Flush()
		},
	}
}

// mask replaces all but the last 4 characters with asterisks.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	masked := make([]byte, len(s))
	for i := range masked {
		if i < len(s)-4 {
			masked[i] = '*'
		} else {
			masked[i] = s[i]
		}
	}
	return string(masked)
}

// jsonOut marshals v to JSON and writes it to cmd's output.
func jsonOut(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// verifySite builds a client from siteCfg and confirms the server is
// reachable and the credentials are accepted by fetching the caller's
// capability set.
func verifySite(siteCfg *config.SiteConfig) error {
	c, err := gerrit.New(siteCfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if _, err := serviceuser.Capabilities(ctx, c); err != nil {
		return err
	}
	return nil
}

// connectionHint returns a human-readable hint based on the error type.
func connectionHint(siteCfg *config.SiteConfig, err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout") || strings.Contains(msg, "dial"):
		return fmt.Sprintf("check that %s is reachable and the port is correct", siteCfg.URL)
	case strings.Contains(msg, "certificate") || strings.Contains(msg, "x509"):
		return "the server uses a self-signed certificate — TLS verification is skipped by default, this may indicate a network interception"
	case gerrit.IsNotAuthorized(err):
		return fmt.Sprintf("verify that username %q and the HTTP password are correct — note this is the generated HTTP password, not the login password", siteCfg.Username)
	default:
		return "check the URL, credentials, and network connectivity"
	}
}

package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

// configCmd shows the server-side plugin configuration and the caller's
// effective permissions.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the server's serviceuser plugin configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()

			s := startSpinner("Loading plugin config...")
			cfg, cfgErr := serviceuser.PluginConfig(ctx, gerritClient)
			caps, capsErr := serviceuser.Capabilities(ctx, gerritClient)
			s.Stop()
			if cfgErr != nil {
				return handleErr(cfgErr)
			}
			if capsErr != nil {
				return handleErr(capsErr)
			}

			perms := caps.Permissions()
			flags := serviceuser.Merge(cfg, perms)

			if flagOutput == "json" {
				type out struct {
					*serviceuser.ConfigInfo
					IsAdmin            bool `json:"is_admin"`
					CanCreate          bool `json:"can_create"`
					EffectiveEmail     bool `json:"effective_email"`
					EffectiveOwner     bool `json:"effective_owner"`
					EffectivePassword  bool `json:"effective_http_password"`
				}
				return jsonOut(cmd, out{
					ConfigInfo:        cfg,
					IsAdmin:           perms.IsAdmin,
					CanCreate:         perms.CanCreate,
					EffectiveEmail:    flags.Email,
					EffectiveOwner:    flags.Owner,
					EffectivePassword: flags.HTTPPassword,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Info message:\t%s\n", cfg.Info)
			fmt.Fprintf(w, "Success message:\t%s\n", cfg.OnSuccess)
			fmt.Fprintf(w, "Allow email:\t%s\n", yesNo(cfg.AllowEmail))
			fmt.Fprintf(w, "Allow owner:\t%s\n", yesNo(cfg.AllowOwner))
			fmt.Fprintf(w, "Allow HTTP password:\t%s\n", yesNo(cfg.AllowHTTPPassword))
			fmt.Fprintf(w, "Blocked names:\t%s\n", strings.Join(cfg.BlockedNames, ", "))
			fmt.Fprintf(w, "You are admin:\t%s\n", yesNo(perms.IsAdmin))
			fmt.Fprintf(w, "You can create:\t%s\n", yesNo(perms.CanCreate))
			fmt.Fprintf(w, "You may set email:\t%s\n", yesNo(flags.Email))
			fmt.Fprintf(w, "You may set owner:\t%s\n", yesNo(flags.Owner))
			fmt.Fprintf(w, "You may manage passwords:\t%s\n", yesNo(flags.HTTPPassword))
			return w.Flush()
		},
	}
}

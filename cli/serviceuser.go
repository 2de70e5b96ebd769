package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

// listCmd lists all service users.
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all service users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Loading service users...")
			users, err := serviceuser.List(ctx, gerritClient)
			s.Stop()
			if err != nil {
				return handleErr(err)
			}

			if flagOutput == "json" {
				return jsonOut(cmd, users)
			}

			usernames := make([]string, 0, len(users))
			for name := range users {
				usernames = append(usernames, name)
			}
			sort.Strings(usernames)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tFULL NAME\tEMAIL\tOWNER\tCREATED BY\tCREATED AT\tSTATE")
			for _, name := range usernames {
				u := users[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					name, u.Name, u.Email,
					serviceuser.OwnerLabel(&u),
					serviceuser.CreatorLabel(&u),
					u.CreatedAt,
					serviceuser.StateLabel(&u))
			}
			return w.Flush()
		},
	}
}

// createCmd creates a new service user.
func createCmd() *cobra.Command {
	var (
		email      string
		sshKey     string
		sshKeyFile string
	)
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a new service user",
		Long: `Create a new service user with an initial SSH key.

The key may be passed inline with --ssh-key or read from a file with
--ssh-key-file. The username is checked against the server's blocked-name
configuration before the request is sent.`,
		Example: `  gsu create jenkins --ssh-key-file ~/.ssh/jenkins.pub
  gsu create voter-bot --ssh-key "ssh-ed25519 AAAA... voter" --email bot@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if !serviceuser.ValidUsername(username) {
				return fmt.Errorf("username must not be empty")
			}
			if !serviceuser.ValidEmail(email) {
				return fmt.Errorf("invalid email %q — must contain '@'", email)
			}
			if sshKey == "" && sshKeyFile == "" {
				return fmt.Errorf("provide --ssh-key or --ssh-key-file")
			}
			if sshKeyFile != "" {
				data, err := os.ReadFile(sshKeyFile)
				if err != nil {
					return fmt.Errorf("reading key file: %w", err)
				}
				sshKey = string(data)
			}
			if !serviceuser.ValidKey(sshKey) {
				return fmt.Errorf("SSH key must not be empty")
			}
			// Parse locally so a malformed key fails before the round-trip.
			parsed, err := serviceuser.ParseKey(sshKey)
			if err != nil {
				return err
			}

			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()

			s := startSpinner("Loading plugin config...")
			cfg, err := serviceuser.PluginConfig(ctx, gerritClient)
			s.Stop()
			if err != nil {
				return handleErr(err)
			}
			if serviceuser.NewBlockedNameFilter(cfg.BlockedNames).Blocked(username) {
				return fmt.Errorf("username %q is blocked on this server", username)
			}

			s = startSpinner("Creating service user...")
			user, err := serviceuser.Create(ctx, gerritClient, username, sshKey, email)
			s.Stop()
			if err != nil {
				return handleErr(err)
			}

			if flagOutput == "json" {
				return jsonOut(cmd, user)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Service user %q created (account id %d).\n", username, user.AccountID)
			fmt.Fprintf(cmd.OutOrStdout(), "SSH key: %s %s\n", parsed.Algorithm, parsed.Fingerprint)
			if cfg.OnSuccess != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", cfg.OnSuccess)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (requires allow_email or admin)")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "public SSH key material")
	cmd.Flags().StringVar(&sshKeyFile, "ssh-key-file", "", "file containing the public SSH key")
	return cmd
}

// showCmd shows a single service user.
func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a service user by account id or username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Loading service user...")
			user, err := serviceuser.Get(ctx, gerritClient, args[0])
			s.Stop()
			if err != nil {
				return handleErr(err)
			}

			if flagOutput == "json" {
				return jsonOut(cmd, user)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Account ID:\t%d\n", user.AccountID)
			fmt.Fprintf(w, "Username:\t%s\n", user.Username)
			fmt.Fprintf(w, "Full Name:\t%s\n", user.Name)
			fmt.Fprintf(w, "Email:\t%s\n", user.Email)
			fmt.Fprintf(w, "Owner:\t%s\n", serviceuser.OwnerLabel(user))
			fmt.Fprintf(w, "Created By:\t%s\n", serviceuser.CreatorLabel(user))
			fmt.Fprintf(w, "Created At:\t%s\n", user.CreatedAt)
			fmt.Fprintf(w, "State:\t%s\n", serviceuser.StateLabel(user))
			return w.Flush()
		},
	}
}

// activateCmd activates a service user.
func activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Activate a service user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Activating...")
			err := serviceuser.Activate(ctx, gerritClient, args[0])
			s.Stop()
			if err != nil {
				return handleErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service user %q activated.\n", args[0])
			return nil
		},
	}
}

// deactivateCmd deactivates a service user.
func deactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a service user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Deactivating...")
			err := serviceuser.Deactivate(ctx, gerritClient, args[0])
			s.Stop()
			if err != nil {
				return handleErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service user %q deactivated.\n", args[0])
			return nil
		},
	}
}

// setCmd updates a service user's full name, email, or owner group.
func setCmd() *cobra.Command {
	var (
		fullName   string
		email      string
		owner      string
		clearOwner bool
	)
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update a service user's full name, email, or owner group",
		Long: `Update per-field account data. Each provided flag issues one write;
the owner group is resolved against the server's group suggestions first so
typos do not end up as dangling references.`,
		Example: `  gsu set 1000042 --name "CI Builder"
  gsu set jenkins --email ci@example.com --owner Administrators
  gsu set jenkins --clear-owner`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if fullName == "" && email == "" && owner == "" && !clearOwner {
				return fmt.Errorf("provide at least one of --name, --email, --owner, --clear-owner")
			}
			if owner != "" && clearOwner {
				return fmt.Errorf("--owner and --clear-owner are mutually exclusive")
			}
			if email != "" && !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email %q — must contain '@'", email)
			}
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()

			if owner != "" {
				s := startSpinner("Resolving owner group...")
				names, _, err := serviceuser.SuggestGroups(ctx, gerritClient, owner)
				s.Stop()
				if err != nil {
					return handleErr(err)
				}
				if !serviceuser.OwnerValid(owner, names) {
					return fmt.Errorf("group %q not found (suggestions: %s)", owner, strings.Join(names, ", "))
				}
			}

			s := startSpinner("Updating service user...")
			defer s.Stop()
			if fullName != "" {
				if err := serviceuser.SetName(ctx, gerritClient, id, fullName); err != nil {
					s.Stop()
					return handleErr(err)
				}
			}
			if email != "" {
				if err := serviceuser.SetEmail(ctx, gerritClient, id, email); err != nil {
					s.Stop()
					return handleErr(err)
				}
			}
			if owner != "" {
				if err := serviceuser.SetOwner(ctx, gerritClient, id, owner); err != nil {
					s.Stop()
					return handleErr(err)
				}
			}
			if clearOwner {
				if err := serviceuser.DeleteOwner(ctx, gerritClient, id); err != nil {
					s.Stop()
					return handleErr(err)
				}
			}
			s.Stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Service user %q updated.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "name", "", "new full name")
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&owner, "owner", "", "new owner group name")
	cmd.Flags().BoolVar(&clearOwner, "clear-owner", false, "remove the owner group")
	return cmd
}

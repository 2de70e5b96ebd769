package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

func sshKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sshkey",
		Short: "Manage a service user's SSH keys",
	}
	cmd.AddCommand(sshKeyListCmd())
	cmd.AddCommand(sshKeyAddCmd())
	cmd.AddCommand(sshKeyDeleteCmd())
	return cmd
}

// sshKeyListCmd lists the SSH keys of a service user.
func sshKeyListCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "list <id>",
		Short: "List SSH keys of a service user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Loading SSH keys...")
			keys, err := serviceuser.SSHKeys(ctx, gerritClient, args[0])
			s.Stop()
			if err != nil {
				return handleErr(err)
			}

			if flagOutput == "json" {
				return jsonOut(cmd, keys)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tALGORITHM\tCOMMENT\tVALID\tFINGERPRINT")
			for _, k := range keys {
				fingerprint := ""
				if parsed, err := serviceuser.ParseKey(k.SSHPublicKey); err == nil {
					fingerprint = parsed.Fingerprint
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					k.Seq, k.Algorithm, k.Comment, yesNo(k.Valid), fingerprint)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if full {
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "\n[%d] %s\n", k.Seq, k.SSHPublicKey)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "also print the full key material")
	return cmd
}

// sshKeyAddCmd adds an SSH key to a service user.
func sshKeyAddCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "add <id> [key]",
		Short: "Add an SSH key to a service user",
		Long: `Add a public SSH key. The key may be passed inline as the second
argument or read from a file with --key-file. The key is parsed locally
first so malformed material is rejected without a server round-trip.`,
		Example: `  gsu sshkey add jenkins --key-file ~/.ssh/jenkins.pub
  gsu sshkey add jenkins "ssh-ed25519 AAAA... ci@build"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			switch {
			case len(args) == 2:
				key = args[1]
			case keyFile != "":
				data, err := os.ReadFile(keyFile)
				if err != nil {
					return fmt.Errorf("reading key file: %w", err)
				}
				key = string(data)
			default:
				return fmt.Errorf("provide the key inline or via --key-file")
			}
			if !serviceuser.ValidKey(key) {
				return fmt.Errorf("SSH key must not be empty")
			}
			parsed, err := serviceuser.ParseKey(key)
			if err != nil {
				return err
			}

			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Adding SSH key...")
			stored, err := serviceuser.AddSSHKey(ctx, gerritClient, args[0], key)
			s.Stop()
			if err != nil {
				return handleErr(err)
			}

			if flagOutput == "json" {
				return jsonOut(cmd, stored)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key %d added: %s %s\n", stored.Seq, parsed.Algorithm, parsed.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "file containing the public SSH key")
	return cmd
}

// sshKeyDeleteCmd deletes an SSH key by sequence number.
func sshKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id> <seq>",
		Short: "Delete an SSH key by its sequence number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid sequence number %q", args[1])
			}
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Deleting SSH key...")
			err = serviceuser.DeleteSSHKey(ctx, gerritClient, args[0], seq)
			s.Stop()
			if err != nil {
				return handleErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key %d deleted.\n", seq)
			return nil
		},
	}
}

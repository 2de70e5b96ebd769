package cli

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

func passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage a service user's HTTP password",
	}
	cmd.AddCommand(passwordGenerateCmd())
	cmd.AddCommand(passwordDeleteCmd())
	return cmd
}

// passwordGenerateCmd generates a new HTTP password for a service user.
func passwordGenerateCmd() *cobra.Command {
	var copyToClipboard bool
	cmd := &cobra.Command{
		Use:   "generate <id>",
		Short: "Generate a new HTTP password",
		Long: `Generate a new HTTP password for the service user. The plaintext is
shown exactly once; the server only stores a hash. Any previous HTTP
password stops working immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Generating HTTP password...")
			password, err := serviceuser.GenerateHTTPPassword(ctx, gerritClient, args[0])
			s.Stop()
			if err != nil {
				return handleErr(err)
			}

			if flagOutput == "json" {
				return jsonOut(cmd, map[string]string{"http_password": password})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "New HTTP password for %q (shown only once):\n\n  %s\n\n", args[0], password)
			if copyToClipboard {
				if err := clipboard.WriteAll(password); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Could not copy to clipboard: %v\n", err)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Copied to clipboard.")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&copyToClipboard, "copy", "c", false, "copy the password to the clipboard")
	return cmd
}

// passwordDeleteCmd removes the HTTP password of a service user.
func passwordDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete the HTTP password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initClient(cmd); err != nil {
				return err
			}
			ctx := context.Background()
			s := startSpinner("Deleting HTTP password...")
			err := serviceuser.DeleteHTTPPassword(ctx, gerritClient, args[0])
			s.Stop()
			if err != nil {
				return handleErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HTTP password for %q deleted.\n", args[0])
			return nil
		},
	}
}

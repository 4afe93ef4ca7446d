package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aeolun/afternoon/pkg/updater"
)

func newVersionCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version, optionally checking for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			check, _ := cmd.Flags().GetBool("check")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "afternoon version %s\n", version)
			if !check {
				return nil
			}

			release, err := updater.Checker{}.Latest(cmd.Context())
			if err != nil {
				return err
			}
			if updater.IsNewer(version, release.TagName) {
				fmt.Fprintf(out, "New version available: %s %s\n", release.TagName, release.HTMLURL)
			} else {
				fmt.Fprintln(out, "You're already on the latest version!")
			}
			return nil
		},
	}

	cmd.Flags().Bool("check", false, "check GitHub for a newer release")
	return cmd
}

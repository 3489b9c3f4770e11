// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/woozymasta/unityfs"
)

// newListCmd builds list subcommand.
func newListCmd(a *app) *cobra.Command {
	var sanitize bool

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List archive entries without extracting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.readerOptions()
			opts.SanitizeNames = sanitize

			entries, err := unityfs.ListEntries(args[0], opts)
			if err != nil {
				return fmt.Errorf("list %s: %w", args[0], err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			_, _ = fmt.Fprintln(tw, "SIZE\tOFFSET\t\tPATH")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%d\t%d\t\t%s\n", e.Size, e.Offset, e.Path)
			}

			a.log.Debug().Int("entries", len(entries)).Msg("listed")
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&sanitize, "sanitize", false, "show filesystem-safe names used by extract")
	return cmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump/backend"
	"github.com/toy/git-dump/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Summary(backend.InstalledGitVersion()))
			return err
		},
	}
}

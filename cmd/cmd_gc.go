package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
)

func newGcCmd(a *app) *cobra.Command {
	var opts dump.GCOptions
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Drop objects no version refers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *dump.Repository) error {
				if err := repo.GC(opts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "collected garbage in %s\n", repo.GitDir())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Auto, "auto", false, "only run when enough loose objects piled up")
	cmd.Flags().BoolVar(&opts.Aggressive, "aggressive", false, "prune unreachable objects of any age")
	return cmd
}

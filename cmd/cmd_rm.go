package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
)

func newRmCmd(a *app) *cobra.Command {
	var gc bool
	cmd := &cobra.Command{
		Use:   "rm VERSION...",
		Short: "Remove versions",
		Long:  "Remove versions. Their objects stay in the repository until garbage collection.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *dump.Repository) error {
				for _, id := range args {
					v, err := findVersion(repo, id)
					if err != nil {
						return err
					}
					if err := v.Remove(); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
				}
				if gc {
					return repo.GC(dump.GCOptions{})
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&gc, "gc", false, "collect garbage afterwards")
	return cmd
}

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
)

func newListCmd(a *app) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"versions"},
		Short:   "List versions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *dump.Repository) error {
				versions, err := repo.Versions()
				if err != nil {
					return err
				}
				if !long {
					for _, v := range versions {
						fmt.Fprintln(cmd.OutOrStdout(), v.ID())
					}
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTIME\tCOMMIT\tANNOTATION")
				for _, v := range versions {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID(), formatTime(v.Time()), shortHash(v.Hash()), firstLine(v.Annotation()))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show time, commit and annotation")
	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/dump/backend"
)

func newLsCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls VERSION [PATH]",
		Short: "List the content of a version",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			return a.withRepo(func(repo *dump.Repository) error {
				v, err := findVersion(repo, args[0])
				if err != nil {
					return err
				}
				obj, err := lookup(v, path)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				tree, ok := obj.(*dump.Tree)
				if !ok {
					return printObject(out, obj)
				}
				if recursive {
					return tree.EachRecursive(func(e *dump.Entry) error {
						return printObject(out, e)
					})
				}
				return tree.Each(func(o dump.Object) error {
					return printObject(out, o)
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "list files below PATH recursively")
	return cmd
}

// printObject writes one line in the layout of git ls-tree.
func printObject(w io.Writer, obj dump.Object) error {
	var err error
	switch o := obj.(type) {
	case *dump.Entry:
		_, err = fmt.Fprintf(w, "%s blob %s\t%s\n", backend.BlobMode(uint32(o.Mode())), o.Hash(), o.Path())
	case *dump.Tree:
		_, err = fmt.Fprintf(w, "%s tree %s\t%s\n", backend.ModeTree, o.Hash(), o.Path())
	}
	return err
}

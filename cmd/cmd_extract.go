package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
)

func newExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract VERSION DEST [PATH]",
		Short: "Write the files of a version to the filesystem",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 3 {
				path = args[2]
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
				n, err := extract(obj, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "extracted %d file(s) to %s\n", n, args[1])
				return nil
			})
		},
	}
	return cmd
}

// extract writes an entry to dest, or every entry below a tree into the directory dest. An
// entry extracted onto an existing directory lands inside it.
func extract(obj dump.Object, dest string) (int, error) {
	switch o := obj.(type) {
	case *dump.Entry:
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			dest = filepath.Join(dest, o.Name())
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return 0, err
		}
		return 1, o.Extract(dest)
	case *dump.Tree:
		n := 0
		prefix := o.Path()
		err := o.EachRecursive(func(e *dump.Entry) error {
			rel := strings.TrimPrefix(strings.TrimPrefix(e.Path(), prefix), "/")
			target := filepath.Join(dest, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := e.Extract(target); err != nil {
				return err
			}
			n++
			return nil
		})
		return n, err
	default:
		return 0, fmt.Errorf("cannot extract %T", obj)
	}
}

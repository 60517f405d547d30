package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/dump/backend"
)

func newInitCmd(a *app) *cobra.Command {
	var nonBare bool
	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Create an empty dump repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Repository
			if len(args) == 1 {
				path = args[0]
			}
			kind, err := a.backendKind()
			if err != nil {
				return err
			}
			empty, err := isEmptyDir(path)
			if err != nil {
				return err
			}
			// Open only initializes paths that do not exist yet.
			if empty {
				if err := backend.Init(kind, path, !nonBare); err != nil {
					return err
				}
			}
			create := dump.CreateBare
			if nonBare {
				create = dump.CreateNonBare
			}
			repo, err := dump.Open(path, dump.Options{Create: create, Backend: kind})
			if err != nil {
				return err
			}
			defer repo.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "initialized git dump in %s\n", repo.GitDir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&nonBare, "non-bare", false, "create a repository with a work tree")
	return cmd
}

func isEmptyDir(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); errors.Is(err, io.EOF) {
		return true, nil
	} else if err != nil {
		return false, err
	}
	return false, nil
}

package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
)

func newRemoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remote URL",
		Short: "List the versions in another repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.backendKind()
			if err != nil {
				return err
			}
			ids, err := dump.RemoteVersionIDs(args[0], kind)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "fetch URL [VERSION...]",
		Short: "Copy versions from another repository",
		Long:  "Copy the named versions from URL. Without names, every version missing locally is fetched.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, ids := args[0], args[1:]
			opts := a.transferOptions(cmd, progress)
			return a.withRepo(func(repo *dump.Repository) error {
				if len(ids) == 0 {
					remote, err := repo.RemoteVersionIDs(url)
					if err != nil {
						return err
					}
					local, err := versionIDs(repo)
					if err != nil {
						return err
					}
					ids = missing(remote, local)
				}
				for _, id := range ids {
					if err := repo.Fetch(url, id, opts); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "fetched %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "report transfer progress on stderr")
	return cmd
}

func newPushCmd(a *app) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "push URL [VERSION...]",
		Short: "Copy versions to another repository",
		Long:  "Copy the named versions to URL. Without names, every version missing there is pushed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, ids := args[0], args[1:]
			opts := a.transferOptions(cmd, progress)
			return a.withRepo(func(repo *dump.Repository) error {
				if len(ids) == 0 {
					remote, err := repo.RemoteVersionIDs(url)
					if err != nil {
						return err
					}
					local, err := versionIDs(repo)
					if err != nil {
						return err
					}
					ids = missing(local, remote)
				}
				for _, id := range ids {
					v, err := findVersion(repo, id)
					if err != nil {
						return err
					}
					if err := v.Push(url, opts); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "report transfer progress on stderr")
	return cmd
}

func versionIDs(repo *dump.Repository) ([]string, error) {
	versions, err := repo.Versions()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.ID())
	}
	return ids, nil
}

// missing returns the ids in want that have lacks, in the order of want.
func missing(want, have []string) []string {
	var out []string
	for _, id := range want {
		if !slices.Contains(have, id) {
			out = append(out, id)
		}
	}
	return out
}

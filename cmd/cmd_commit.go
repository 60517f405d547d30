package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
)

type commitFlags struct {
	tags         []string
	annotation   string
	description  string
	at           string
	keepIdentity bool
	prefix       string
}

func newCommitCmd(a *app) *cobra.Command {
	var f commitFlags
	cmd := &cobra.Command{
		Use:   "commit [TARGET=]SOURCE...",
		Short: "Store files and directories as a new version",
		Long: `Store files and directories as a new version and print its id.

SOURCE is a file, a directory or "-" for standard input. Files are stored under their
base name and directories are merged into the root unless TARGET names another path.
Standard input needs an explicit TARGET.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(a)
			if err != nil {
				return err
			}
			return a.withRepo(func(repo *dump.Repository) error {
				vb := repo.NewVersion()
				for _, arg := range args {
					if err := stage(vb, f.prefix, arg, cmd.InOrStdin()); err != nil {
						return err
					}
				}
				v, err := vb.Commit(opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v.ID())
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVarP(&f.tags, "tag", "t", nil, "tag to include in the version id (repeatable)")
	flags.StringVarP(&f.annotation, "annotation", "a", "", "tag message")
	flags.StringVarP(&f.description, "description", "m", "", "commit message")
	flags.StringVar(&f.at, "time", "", "version time in RFC 3339 (default now)")
	flags.BoolVar(&f.keepIdentity, "keep-identity", false, "use the identity from git configuration")
	flags.StringVar(&f.prefix, "prefix", "", "directory to place every TARGET under")
	return cmd
}

func (f commitFlags) options(a *app) (dump.CommitOptions, error) {
	opts := dump.CommitOptions{
		Tags:         f.tags,
		Annotation:   f.annotation,
		Description:  f.description,
		KeepIdentity: f.keepIdentity,
		Identity:     a.identity(),
	}
	if f.at != "" {
		t, err := time.Parse(time.RFC3339, f.at)
		if err != nil {
			return dump.CommitOptions{}, fmt.Errorf("--time: %w", err)
		}
		opts.Time = t
	}
	return opts, nil
}

// stage adds one [TARGET=]SOURCE argument to vb.
func stage(vb *dump.VersionBuilder, prefix, arg string, stdin io.Reader) error {
	target, source, explicit := strings.Cut(arg, "=")
	if !explicit {
		source, target = arg, ""
	}
	if source == "-" {
		if target == "" {
			return fmt.Errorf("%q: standard input needs a TARGET", arg)
		}
		return vb.Put(joinTarget(prefix, target), stdin, 0o644)
	}
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return vb.PutDir(joinTarget(prefix, target), source)
	}
	if target == "" {
		target = filepath.Base(source)
	}
	return vb.PutFile(joinTarget(prefix, target), source)
}

func joinTarget(prefix, target string) string {
	prefix = strings.Trim(prefix, "/")
	target = strings.Trim(target, "/")
	switch {
	case prefix == "":
		return target
	case target == "":
		return prefix
	default:
		return prefix + "/" + target
	}
}

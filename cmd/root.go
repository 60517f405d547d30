// Package cmd implements the git-dump command line tool.
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/dump/backend"
	"github.com/toy/git-dump/internal/config"
	"github.com/toy/git-dump/internal/logging"
)

// Run executes the command line found in os.Args.
func Run() error {
	return newRootCmd().Execute()
}

// app carries the settings shared by every subcommand once flags and the config file are merged.
type app struct {
	configPath string
	repoPath   string
	backend    string
	create     string
	verbose    bool
	logLevel   string
	logFormat  string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "git-dump",
		Short:         "Versioned directory snapshots stored in a git repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvPath+" or the user config dir)")
	flags.StringVarP(&a.repoPath, "repo", "r", "", "path of the dump repository")
	flags.StringVar(&a.backend, "backend", "", "storage backend: native or cli")
	flags.StringVar(&a.create, "create", "", "create a missing repository: none, bare or non-bare")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newInitCmd(a),
		newCommitCmd(a),
		newListCmd(a),
		newLsCmd(a),
		newCatCmd(a),
		newExtractCmd(a),
		newDiffCmd(a),
		newRmCmd(a),
		newFetchCmd(a),
		newPushCmd(a),
		newRemoteCmd(a),
		newGcCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the config file, lays the flags the user set over it and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("repo") {
		cfg.Repository = a.repoPath
	}
	if flags.Changed("backend") {
		cfg.Backend = a.backend
	}
	if flags.Changed("create") {
		cfg.Create = a.create
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	return nil
}

func (a *app) backendKind() (backend.Kind, error) {
	return backend.ParseKind(a.cfg.Backend)
}

// openRepo opens the configured repository, creating it when the create setting allows.
func (a *app) openRepo() (*dump.Repository, error) {
	kind, err := a.backendKind()
	if err != nil {
		return nil, err
	}
	create, err := dump.ParseCreateMode(a.cfg.Create)
	if err != nil {
		return nil, err
	}
	return dump.Open(a.cfg.Repository, dump.Options{Create: create, Backend: kind})
}

// withRepo runs fn against the configured repository and closes it afterwards.
func (a *app) withRepo(fn func(*dump.Repository) error) (err error) {
	repo, err := a.openRepo()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := repo.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(repo)
}

func (a *app) identity() *dump.Identity {
	if a.cfg.Identity.Name == "" {
		return nil
	}
	return &dump.Identity{Name: a.cfg.Identity.Name, Email: a.cfg.Identity.Email}
}

func (a *app) transferOptions(cmd *cobra.Command, progress bool) dump.TransferOptions {
	if cmd.Flags().Changed("progress") {
		a.cfg.Transfer.Progress = progress
	}
	if !a.cfg.Transfer.Progress {
		return dump.TransferOptions{}
	}
	return dump.TransferOptions{Progress: cmd.ErrOrStderr()}
}

// findVersion fails with dump.ErrNotFound when id names no version.
func findVersion(repo *dump.Repository, id string) (*dump.Version, error) {
	v, err := repo.Version(id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("version %s: %w", id, dump.ErrNotFound)
	}
	return v, nil
}

// lookup resolves path inside v. An empty path or "/" is the root directory.
func lookup(v *dump.Version, path string) (dump.Object, error) {
	if strings.Trim(path, "/") == "" {
		return v.Tree(), nil
	}
	obj, err := v.Get(path)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%s: no such path in %s: %w", path, v.ID(), dump.ErrNotFound)
	}
	return obj, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimLeft(s, "\n"), "\n")
	return line
}

func formatTime(t time.Time) string {
	return t.Local().Format(time.DateTime)
}

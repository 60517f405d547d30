package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/internal/debounce"
)

func newWatchCmd(a *app) *cobra.Command {
	var delay time.Duration
	var f commitFlags
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Store a new version of DIR whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("delay") {
				a.cfg.Watch.Delay = delay
			}
			opts, err := f.options(a)
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.withRepo(func(repo *dump.Repository) error {
				if inside(dir, repo.Path()) || inside(dir, repo.GitDir()) {
					return fmt.Errorf("repository %s is inside the watched directory %s", repo.Path(), dir)
				}
				s := &snapshotter{repo: repo, dir: dir, opts: opts, out: cmd.OutOrStdout()}
				return s.watch(ctx, a.cfg.Watch.Delay)
			})
		},
	}
	flags := cmd.Flags()
	flags.DurationVar(&delay, "delay", 0, "quiet period before a change is stored (default from config)")
	flags.StringArrayVarP(&f.tags, "tag", "t", nil, "tag to include in every version id (repeatable)")
	flags.StringVarP(&f.annotation, "annotation", "a", "", "tag message of every version")
	flags.StringVarP(&f.description, "description", "m", "", "commit message of every version")
	flags.BoolVar(&f.keepIdentity, "keep-identity", false, "use the identity from git configuration")
	return cmd
}

// inside reports whether path is dir or below it.
func inside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// snapshotter stores the content of dir as a version whenever its tree changes.
type snapshotter struct {
	repo *dump.Repository
	dir  string
	opts dump.CommitOptions
	out  io.Writer

	last string
}

// snapshot commits dir unless its tree equals the last one stored. It reports whether a
// version was created.
func (s *snapshotter) snapshot() (bool, error) {
	vb := s.repo.NewVersion()
	if err := vb.PutDir("", s.dir); err != nil {
		return false, err
	}
	tree, err := vb.Tree().Hash()
	if err != nil {
		return false, err
	}
	if tree == s.last {
		slog.Debug("tree unchanged, no version stored", slog.String("tree", tree))
		return false, nil
	}
	v, err := vb.Commit(s.opts)
	if err != nil {
		return false, err
	}
	s.last = tree
	fmt.Fprintln(s.out, v.ID())
	return true, nil
}

func (s *snapshotter) watch(ctx context.Context, delay time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()
	if err := addTree(w, s.dir); err != nil {
		return err
	}
	if _, err := s.snapshot(); err != nil {
		return err
	}

	// The debouncer fires on its own goroutine; snapshots stay on this one.
	pending := make(chan struct{}, 1)
	var d *debounce.Debouncer
	defer func() {
		if d != nil {
			d.Stop()
		}
	}()

	slog.Info("watching directory", slog.String("dir", s.dir), slog.Duration("delay", delay))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) == 0 {
				continue
			}
			if ignoredWatchPath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event", slog.String("op", ev.Op.String()), slog.String("path", ev.Name))
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						slog.Error("watch new directory", slog.String("path", ev.Name), slog.Any("error", err))
					}
				}
			}
			debounce.Ensure(&d, delay, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			}).Trigger()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		case <-pending:
			if _, err := s.snapshot(); err != nil {
				slog.Error("snapshot failed", slog.String("dir", s.dir), slog.Any("error", err))
			}
		}
	}
}

// addTree watches root and every directory below it; fsnotify watches are not recursive.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		slog.Debug("adding path to FS watcher", slog.String("path", p))
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// ignoredWatchPath filters editor and lock file churn.
func ignoredWatchPath(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ".lock"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, "~"),
		strings.HasPrefix(base, ".#"):
		return true
	}
	return false
}

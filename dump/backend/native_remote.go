package backend

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
)

const anonymousRemote = "anonymous"

func newAnonymousRemote(s storage.Storer, url string) *gitlib.Remote {
	return gitlib.NewRemote(s, &config.RemoteConfig{Name: anonymousRemote, URLs: []string{url}})
}

func (n *native) ListRemoteTagNames(url string) ([]string, error) {
	return listRemoteTagsNative(url)
}

func listRemoteTagsNative(url string) ([]string, error) {
	refs, err := newAnonymousRemote(memory.NewStorage(), url).List(&gitlib.ListOptions{})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return []string{}, nil
	}
	if err != nil {
		return nil, libError("list remote "+url, err)
	}
	names := []string{}
	for _, ref := range refs {
		if !ref.Name().IsTag() {
			continue
		}
		name := strings.TrimPrefix(ref.Name().String(), "refs/tags/")
		if strings.HasSuffix(name, "^{}") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (n *native) Fetch(url, ref string, opts TransferOptions) error {
	err := newAnonymousRemote(n.repo.Storer, url).Fetch(&gitlib.FetchOptions{
		RemoteName: anonymousRemote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Tags:       gitlib.NoTags,
		Progress:   opts.Progress,
	})
	if err != nil && !errors.Is(err, gitlib.NoErrAlreadyUpToDate) {
		return libError("fetch "+ref, err)
	}
	return nil
}

func (n *native) Push(url, ref string, opts TransferOptions) error {
	err := newAnonymousRemote(n.repo.Storer, url).Push(&gitlib.PushOptions{
		RemoteName: anonymousRemote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Progress:   opts.Progress,
	})
	if err != nil && !errors.Is(err, gitlib.NoErrAlreadyUpToDate) {
		return libError("push "+ref, err)
	}
	return nil
}

// Same threshold as git's gc.auto default.
const autoGCLooseObjects = 6700

func (n *native) CollectGarbage(opts GCOptions) error {
	if opts.Auto {
		loose, err := n.countLooseObjects()
		if err != nil {
			return libError("gc", err)
		}
		if loose < autoGCLooseObjects {
			slog.Debug("gc skipped", slog.Int("loose_objects", loose))
			return nil
		}
	}
	cutoff := time.Now().Add(-14 * 24 * time.Hour)
	if opts.Aggressive {
		cutoff = time.Now()
	}
	err := n.repo.Prune(gitlib.PruneOptions{
		OnlyObjectsOlderThan: cutoff,
		Handler:              n.repo.DeleteObject,
	})
	if err != nil && !errors.Is(err, gitlib.ErrLooseObjectsNotSupported) {
		return libError("gc prune", err)
	}
	if err := n.repo.RepackObjects(&gitlib.RepackConfig{UseRefDeltas: true}); err != nil {
		return libError("gc repack", err)
	}
	// Repacking deletes the packfiles this handle has indexed.
	if err := n.reopen(); err != nil {
		return libError("gc reopen", err)
	}
	slog.Debug("gc done", slog.Bool("aggressive", opts.Aggressive))
	return nil
}

func (n *native) reopen() error {
	repo, err := gitlib.PlainOpen(n.path)
	if err != nil {
		return err
	}
	if err := closeStorer(n.repo); err != nil {
		slog.Debug("closing stale storer", slog.Any("error", err))
	}
	n.repo = repo
	return nil
}

type looseObjectLister interface {
	ForEachObjectHash(func(plumbing.Hash) error) error
}

func (n *native) countLooseObjects() (int, error) {
	lister, ok := n.repo.Storer.(looseObjectLister)
	if !ok {
		return 0, nil
	}
	count := 0
	err := lister.ForEachObjectHash(func(plumbing.Hash) error {
		count++
		return nil
	})
	return count, err
}

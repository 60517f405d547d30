package dump

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/toy/git-dump/dump/backend"
)

// Version is one committed snapshot, named by the tag it is stored under.
type Version struct {
	repo        *Repository
	id          string
	hash        string
	treeHash    string
	time        time.Time
	commitTime  time.Time
	annotation  string
	description string

	tree *Tree
}

func newVersion(repo *Repository, tag backend.TagInfo) *Version {
	return &Version{
		repo:        repo,
		id:          tag.Name,
		hash:        tag.CommitHash,
		treeHash:    tag.TreeHash,
		time:        tag.AuthorTime,
		commitTime:  tag.CommitTime,
		annotation:  tag.TagMessage,
		description: tag.CommitMessage,
	}
}

func (v *Version) ID() string { return v.id }

// Hash is the commit hash.
func (v *Version) Hash() string     { return v.hash }
func (v *Version) TreeHash() string { return v.treeHash }

// Time is the version time given at commit.
func (v *Version) Time() time.Time { return v.time }

// CommitTime is when the commit was actually made.
func (v *Version) CommitTime() time.Time { return v.commitTime }
func (v *Version) Annotation() string    { return v.annotation }
func (v *Version) Description() string   { return v.description }

// Tree returns the root directory. Directories are listed lazily as they are visited.
func (v *Version) Tree() *Tree {
	if v.tree == nil {
		v.tree = newTree(v.repo.store, "", v.treeHash)
	}
	return v.tree
}

func (v *Version) Get(path string) (Object, error) {
	return v.Tree().Get(path)
}

func (v *Version) Each(fn func(Object) error) error {
	return v.Tree().Each(fn)
}

func (v *Version) EachRecursive(fn func(*Entry) error) error {
	return v.Tree().EachRecursive(fn)
}

// Push sends this version, and nothing else, to the repository at url.
func (v *Version) Push(url string, opts TransferOptions) error {
	if err := v.repo.store.Push(url, backend.TagRef(v.id), opts); err != nil {
		return fmt.Errorf("push %s: %w", v.id, err)
	}
	return nil
}

// Remove deletes the version's tag. Its objects stay until garbage collection.
func (v *Version) Remove() error {
	if err := v.repo.store.DeleteTag(v.id); err != nil {
		return fmt.Errorf("remove %s: %w", v.id, err)
	}
	return nil
}

// Identity names the author, committer and tagger of a version.
type Identity struct {
	Name  string
	Email string
}

const defaultIdentityName = "git_dump"

// CommitOptions controls VersionBuilder.Commit.
type CommitOptions struct {
	// Time is the version time; zero means now.
	Time time.Time
	// Tags become the comma separated third component of the version id.
	Tags []string
	// Annotation is the tag message.
	Annotation string
	// Description is the commit message.
	Description string
	// KeepIdentity leaves the identity to the repository's git configuration.
	KeepIdentity bool
	// Identity replaces the default "git_dump <git_dump@HOSTNAME>" identity.
	Identity *Identity
}

// VersionBuilder stages the content of a new version.
type VersionBuilder struct {
	repo *Repository
	root *Builder
}

// Tree is the staged root directory.
func (vb *VersionBuilder) Tree() *Builder { return vb.root }

func (vb *VersionBuilder) Put(path string, r io.Reader, mode fs.FileMode) error {
	return vb.root.Put(path, r, mode)
}

func (vb *VersionBuilder) PutBytes(path string, data []byte) error {
	return vb.root.PutBytes(path, data)
}

func (vb *VersionBuilder) PutFile(path, src string) error {
	return vb.root.PutFile(path, src)
}

func (vb *VersionBuilder) PutFileMode(path, src string, mode fs.FileMode) error {
	return vb.root.PutFileMode(path, src, mode)
}

func (vb *VersionBuilder) PutDir(path, dir string) error {
	return vb.root.PutDir(path, dir)
}

func (vb *VersionBuilder) Remove(path string) error {
	return vb.root.Remove(path)
}

func (vb *VersionBuilder) Get(path string) (Object, error) {
	return vb.root.Get(path)
}

func (vb *VersionBuilder) Each(fn func(Object) error) error {
	return vb.root.Each(fn)
}

func (vb *VersionBuilder) EachRecursive(fn func(*Entry) error) error {
	return vb.root.EachRecursive(fn)
}

// Commit writes the staged tree, commits it and tags the commit with a new version id. The
// builder keeps its content and can be committed again.
func (vb *VersionBuilder) Commit(opts CommitOptions) (*Version, error) {
	repo := vb.repo
	tree, err := vb.root.Hash()
	if err != nil {
		return nil, err
	}
	when := opts.Time
	if when.IsZero() {
		when = repo.host.now()
	}
	ident := repo.signature(opts)

	author, committer, tagger := ident, ident, ident
	author.When = when
	committer.When = repo.host.now()
	tagger.When = when

	commit, err := repo.store.CreateCommit(tree, author, committer, opts.Description)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	id := versionID(repo.host, when, opts.Tags)
	if _, err := repo.store.CreateTag(commit, id, tagger, opts.Annotation); err != nil {
		return nil, fmt.Errorf("tag %s: %w", id, err)
	}
	slog.Debug("version committed", slog.String("id", id), slog.String("commit", commit), slog.String("tree", tree))

	if err := repo.store.CollectGarbage(GCOptions{Auto: true}); err != nil {
		slog.Warn("automatic gc failed", slog.String("repository", repo.path), slog.Any("error", err))
	}

	v, err := repo.Version(id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("version %s not listed after commit: %w", id, ErrNotFound)
	}
	return v, nil
}

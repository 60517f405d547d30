package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type native struct {
	repo   *gitlib.Repository
	path   string
	gitDir string
}

// OpenNative attaches the go-git backend to the repository at path (bare or with a work tree).
func OpenNative(path string) (Backend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpen(abs)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	gitDir := abs
	if info, err := os.Stat(filepath.Join(abs, gitlib.GitDirName)); err == nil && info.IsDir() {
		gitDir = filepath.Join(abs, gitlib.GitDirName)
	}
	return &native{repo: repo, path: abs, gitDir: gitDir}, nil
}

func InitNative(path string, bare bool) error {
	if _, err := gitlib.PlainInit(path, bare); err != nil {
		return &CommandError{Op: "init", Err: err}
	}
	return nil
}

func (n *native) GitDir() string {
	return n.gitDir
}

func (n *native) Close() error {
	return closeStorer(n.repo)
}

// closeStorer releases the packfile descriptors a filesystem storer keeps open.
func closeStorer(repo *gitlib.Repository) error {
	if c, ok := repo.Storer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func libError(op string, err error) error {
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &CommandError{Op: op, Err: err}
}

func (n *native) StoreBlob(r io.Reader) (string, error) {
	obj := n.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return "", libError("store blob", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", libError("store blob", err)
	}
	hash, err := n.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", libError("store blob", err)
	}
	return hash.String(), nil
}

func (n *native) StorePathBlob(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("store %q: not a regular file", path)
	}
	return n.StoreBlob(f)
}

func (n *native) BuildTree(entries []TreeEntry) (string, error) {
	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, entry := range entries {
		entry, err := normalizeEntry(entry)
		if err != nil {
			return "", err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: entry.Name,
			Mode: filemode.FileMode(entry.Mode),
			Hash: plumbing.NewHash(entry.Hash),
		})
	}
	sortTreeEntries(tree.Entries)
	obj := n.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return "", libError("build tree", err)
	}
	hash, err := n.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", libError("build tree", err)
	}
	return hash.String(), nil
}

// sortTreeEntries applies git's canonical order: names compare bytewise with a trailing
// slash appended to subtrees.
func sortTreeEntries(entries []object.TreeEntry) {
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool { return key(entries[i]) < key(entries[j]) })
}

func (n *native) blob(hash string) (*object.Blob, error) {
	if !validHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	blob, err := n.repo.BlobObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, libError("blob "+hash, err)
	}
	return blob, nil
}

func (n *native) ReadBlob(hash string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := n.ReadBlobTo(hash, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *native) ReadBlobTo(hash string, w io.Writer) (int64, error) {
	blob, err := n.blob(hash)
	if err != nil {
		return 0, err
	}
	r, err := blob.Reader()
	if err != nil {
		return 0, libError("blob "+hash, err)
	}
	defer r.Close()
	return io.Copy(w, r)
}

func (n *native) BlobSize(hash string) (int64, error) {
	blob, err := n.blob(hash)
	if err != nil {
		return 0, err
	}
	return blob.Size, nil
}

func (n *native) ListTree(hash string) ([]TreeEntry, error) {
	if !validHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	tree, err := n.repo.TreeObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, libError("tree "+hash, err)
	}
	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entry := TreeEntry{Name: e.Name, Hash: e.Hash.String(), Mode: Mode(e.Mode)}
		switch e.Mode {
		case filemode.Dir:
			entry.Type = TreeObject
		case filemode.Regular, filemode.Executable, filemode.Deprecated, filemode.Symlink:
			entry.Type = BlobObject
		default:
			return nil, &ProtocolError{Op: "tree " + hash, Detail: fmt.Sprintf("entry %q has unsupported mode %s", e.Name, e.Mode)}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (n *native) CreateCommit(tree string, author, committer Signature, message string) (string, error) {
	if !validHash(tree) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, tree)
	}
	treeHash := plumbing.NewHash(tree)
	if _, err := n.repo.TreeObject(treeHash); err != nil {
		return "", libError("commit tree "+tree, err)
	}
	authorSig, err := n.signature(author)
	if err != nil {
		return "", err
	}
	committerSig, err := n.signature(committer)
	if err != nil {
		return "", err
	}
	commit := &object.Commit{
		Author:    authorSig,
		Committer: committerSig,
		Message:   message,
		TreeHash:  treeHash,
	}
	obj := n.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", libError("create commit", err)
	}
	hash, err := n.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", libError("create commit", err)
	}
	slog.Debug("commit created", slog.String("commit", hash.String()), slog.String("tree", tree))
	return hash.String(), nil
}

// signature fills a default identity from git configuration, the way git itself would.
func (n *native) signature(sig Signature) (object.Signature, error) {
	out := object.Signature{Name: sig.Name, Email: sig.Email, When: sig.When}
	if out.When.IsZero() {
		out.When = time.Now()
	}
	if !sig.Default() {
		return out, nil
	}
	cfg, err := n.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return object.Signature{}, libError("read identity", err)
	}
	out.Name, out.Email = cfg.User.Name, cfg.User.Email
	if cfg.Committer.Name != "" {
		out.Name = cfg.Committer.Name
	}
	if cfg.Committer.Email != "" {
		out.Email = cfg.Committer.Email
	}
	if out.Name == "" || out.Email == "" {
		return object.Signature{}, &CommandError{Op: "read identity", Err: errors.New("user.name and user.email are not configured")}
	}
	return out, nil
}

func (n *native) CreateTag(commit, name string, tagger Signature, message string) (string, error) {
	if !validHash(commit) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, commit)
	}
	target := plumbing.NewHash(commit)
	if _, err := n.repo.CommitObject(target); err != nil {
		return "", libError("tag commit "+commit, err)
	}
	refName := plumbing.NewTagReferenceName(name)
	if _, err := n.repo.Storer.Reference(refName); err == nil {
		return "", &CommandError{Op: "create tag", Err: fmt.Errorf("tag %q already exists", name)}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", libError("create tag", err)
	}
	taggerSig, err := n.signature(tagger)
	if err != nil {
		return "", err
	}
	tag := &object.Tag{
		Name:       name,
		Tagger:     taggerSig,
		Message:    message,
		TargetType: plumbing.CommitObject,
		Target:     target,
	}
	obj := n.repo.Storer.NewEncodedObject()
	if err := tag.Encode(obj); err != nil {
		return "", libError("create tag", err)
	}
	tagHash, err := n.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", libError("create tag", err)
	}
	if err := n.repo.Storer.SetReference(plumbing.NewHashReference(refName, tagHash)); err != nil {
		return "", libError("create tag", err)
	}
	slog.Debug("tag created", slog.String("tag", name), slog.String("commit", commit))
	return name, nil
}

func (n *native) ListTags() ([]TagInfo, error) {
	refs, err := n.repo.Tags()
	if err != nil {
		return nil, libError("list tags", err)
	}
	defer refs.Close()
	var tags []TagInfo
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		info, ok, err := n.tagInfo(ref)
		if err != nil {
			return err
		}
		if ok {
			tags = append(tags, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (n *native) tagInfo(ref *plumbing.Reference) (TagInfo, bool, error) {
	info := TagInfo{Name: strings.TrimPrefix(ref.Name().String(), "refs/tags/")}
	commitHash := ref.Hash()
	// Lightweight tags point directly at a commit; annotated tags point at a tag object.
	tag, err := n.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		// go-git splits anything from a signature armor line on into PGPSignature.
		info.TagMessage = tag.Message + tag.PGPSignature
		if tag.TargetType != plumbing.CommitObject {
			slog.Debug("skipping tag without a commit target", slog.String("tag", info.Name))
			return TagInfo{}, false, nil
		}
		commitHash = tag.Target
	case !errors.Is(err, plumbing.ErrObjectNotFound):
		return TagInfo{}, false, libError("tag "+info.Name, err)
	}
	commit, err := n.repo.CommitObject(commitHash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		slog.Debug("skipping tag that does not point at a commit", slog.String("tag", info.Name))
		return TagInfo{}, false, nil
	}
	if err != nil {
		return TagInfo{}, false, libError("tag "+info.Name, err)
	}
	info.CommitHash = commit.Hash.String()
	info.TreeHash = commit.TreeHash.String()
	info.AuthorTime = commit.Author.When
	info.CommitTime = commit.Committer.When
	info.CommitMessage = commit.Message
	return info, true, nil
}

func (n *native) DeleteTag(name string) error {
	err := n.repo.DeleteTag(name)
	if errors.Is(err, gitlib.ErrTagNotFound) {
		return fmt.Errorf("tag %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return libError("delete tag", err)
	}
	return nil
}

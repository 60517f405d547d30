package backend

import (
	"fmt"
	"io"
	"strings"
)

// Backend is the content store a dump repository is built on.
//
// Two implementations exist: one drives the git executable through persistent pipes and the
// other uses go-git in process. Both read and write the same on-disk format, so a repository
// written through one can be read through the other.
//
// Implementations are not safe for concurrent use by multiple goroutines.
type Backend interface {
	// GitDir is the absolute path of the git directory backing the store.
	GitDir() string

	StoreBlob(r io.Reader) (string, error)
	StorePathBlob(path string) (string, error)
	BuildTree(entries []TreeEntry) (string, error)

	ReadBlob(hash string) ([]byte, error)
	ReadBlobTo(hash string, w io.Writer) (int64, error)
	BlobSize(hash string) (int64, error)
	ListTree(hash string) ([]TreeEntry, error)

	CreateCommit(tree string, author, committer Signature, message string) (string, error)
	CreateTag(commit, name string, tagger Signature, message string) (string, error)
	ListTags() ([]TagInfo, error)
	DeleteTag(name string) error

	ListRemoteTagNames(url string) ([]string, error)
	Fetch(url, ref string, opts TransferOptions) error
	Push(url, ref string, opts TransferOptions) error
	CollectGarbage(opts GCOptions) error

	Close() error
}

// Kind selects a Backend implementation.
type Kind string

const (
	KindNative Kind = "native"
	KindCLI    Kind = "cli"
)

// ParseKind accepts the names used in configuration files and flags.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native", "go-git":
		return KindNative, nil
	case "cli", "git":
		return KindCLI, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want native or cli)", s)
	}
}

func (k Kind) String() string {
	if k == "" {
		return string(KindNative)
	}
	return string(k)
}

// Open attaches to an existing repository at path.
func Open(kind Kind, path string) (Backend, error) {
	switch kind {
	case KindCLI:
		return OpenCLI(path)
	case KindNative, "":
		return OpenNative(path)
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// Init creates an empty repository at path.
func Init(kind Kind, path string, bare bool) error {
	switch kind {
	case KindCLI:
		return InitCLI(path, bare)
	case KindNative, "":
		return InitNative(path, bare)
	default:
		return fmt.Errorf("unknown backend %q", kind)
	}
}

// ListRemoteTagNames lists tag names at url without a local repository.
func ListRemoteTagNames(kind Kind, url string) ([]string, error) {
	switch kind {
	case KindCLI:
		return listRemoteTagsCLI(url)
	case KindNative, "":
		return listRemoteTagsNative(url)
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

package backend

import (
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
)

// ObjectType is a git object kind. Tree entries only ever point at blobs and trees.
type ObjectType string

const (
	BlobObject   ObjectType = "blob"
	TreeObject   ObjectType = "tree"
	CommitObject ObjectType = "commit"
	TagObject    ObjectType = "tag"
)

// Mode is a git tree entry mode. Only the three values below are ever written.
type Mode uint32

const (
	ModeTree       Mode = 0o040000
	ModeRegular    Mode = 0o100644
	ModeExecutable Mode = 0o100755
)

// BlobMode maps an arbitrary permission (0o755, 0o100, 0o100644, ...) to one of the two blob
// modes, keyed on the executable bits only.
func BlobMode(perm uint32) Mode {
	if perm&0o111 != 0 {
		return ModeExecutable
	}
	return ModeRegular
}

// Perm returns the permission bits a checked out file should carry.
func (m Mode) Perm() fs.FileMode {
	if m == ModeTree {
		return fs.ModeDir | 0o755
	}
	return fs.FileMode(m & 0o777)
}

func (m Mode) String() string {
	return fmt.Sprintf("%06o", uint32(m))
}

type TreeEntry struct {
	Name string
	Hash string
	Type ObjectType
	Mode Mode
}

type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Default reports whether the signature asks the backend for its configured identity.
func (s Signature) Default() bool {
	return s.Name == "" && s.Email == ""
}

// TagInfo describes one tag ref together with the commit it points at.
type TagInfo struct {
	Name          string
	CommitHash    string
	TreeHash      string
	AuthorTime    time.Time
	CommitTime    time.Time
	TagMessage    string
	CommitMessage string
}

// TransferOptions controls fetch and push. A nil Progress keeps the transfer quiet.
type TransferOptions struct {
	Progress io.Writer
}

type GCOptions struct {
	Auto       bool
	Aggressive bool
}

// TagRef returns the full ref name a version id is stored under.
func TagRef(name string) string {
	return "refs/tags/" + name
}

func validHash(hash string) bool {
	if len(hash) != 40 {
		return false
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ValidateName rejects names that cannot be stored as a single tree entry.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// normalizeEntry validates an entry handed to BuildTree and collapses its mode.
func normalizeEntry(entry TreeEntry) (TreeEntry, error) {
	if !validHash(entry.Hash) {
		return TreeEntry{}, fmt.Errorf("%w: expected sha1 hash, got %q", ErrInvalidHash, entry.Hash)
	}
	if err := ValidateName(entry.Name); err != nil {
		return TreeEntry{}, err
	}
	switch entry.Type {
	case TreeObject:
		entry.Mode = ModeTree
	case BlobObject:
		entry.Mode = BlobMode(uint32(entry.Mode))
	default:
		return TreeEntry{}, fmt.Errorf("unsupported entry type %q for %q", entry.Type, entry.Name)
	}
	return entry, nil
}

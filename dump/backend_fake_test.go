package dump

import (
	"errors"
	"io"

	"github.com/toy/git-dump/dump/backend"
)

type fakeBackend struct {
	storeBlobFunc      func(data []byte) (string, error)
	buildTreeFunc      func(entries []backend.TreeEntry) (string, error)
	listTreeFunc       func(hash string) ([]backend.TreeEntry, error)
	createCommitFunc   func(tree string, author, committer backend.Signature, message string) (string, error)
	createTagFunc      func(commit, name string, tagger backend.Signature, message string) (string, error)
	listTagsFunc       func() ([]backend.TagInfo, error)
	collectGarbageFunc func(opts backend.GCOptions) error

	buildTreeCalls int
	listTreeCalls  int
}

var _ backend.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) GitDir() string { return "/fake.git" }

func (f *fakeBackend) StoreBlob(r io.Reader) (string, error) {
	if f.storeBlobFunc == nil {
		return "", errors.New("unexpected StoreBlob call")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return f.storeBlobFunc(data)
}

func (f *fakeBackend) StorePathBlob(string) (string, error) {
	return "", errors.New("unexpected StorePathBlob call")
}

func (f *fakeBackend) BuildTree(entries []backend.TreeEntry) (string, error) {
	f.buildTreeCalls++
	if f.buildTreeFunc != nil {
		return f.buildTreeFunc(entries)
	}
	return "", errors.New("unexpected BuildTree call")
}

func (f *fakeBackend) ReadBlob(string) ([]byte, error) {
	return nil, errors.New("unexpected ReadBlob call")
}

func (f *fakeBackend) ReadBlobTo(string, io.Writer) (int64, error) {
	return 0, errors.New("unexpected ReadBlobTo call")
}

func (f *fakeBackend) BlobSize(string) (int64, error) {
	return 0, errors.New("unexpected BlobSize call")
}

func (f *fakeBackend) ListTree(hash string) ([]backend.TreeEntry, error) {
	f.listTreeCalls++
	if f.listTreeFunc != nil {
		return f.listTreeFunc(hash)
	}
	return nil, errors.New("unexpected ListTree call")
}

func (f *fakeBackend) CreateCommit(tree string, author, committer backend.Signature, message string) (string, error) {
	if f.createCommitFunc != nil {
		return f.createCommitFunc(tree, author, committer, message)
	}
	return "", errors.New("unexpected CreateCommit call")
}

func (f *fakeBackend) CreateTag(commit, name string, tagger backend.Signature, message string) (string, error) {
	if f.createTagFunc != nil {
		return f.createTagFunc(commit, name, tagger, message)
	}
	return "", errors.New("unexpected CreateTag call")
}

func (f *fakeBackend) ListTags() ([]backend.TagInfo, error) {
	if f.listTagsFunc != nil {
		return f.listTagsFunc()
	}
	return nil, errors.New("unexpected ListTags call")
}

func (f *fakeBackend) DeleteTag(string) error {
	return errors.New("unexpected DeleteTag call")
}

func (f *fakeBackend) ListRemoteTagNames(string) ([]string, error) {
	return nil, errors.New("unexpected ListRemoteTagNames call")
}

func (f *fakeBackend) Fetch(string, string, backend.TransferOptions) error {
	return errors.New("unexpected Fetch call")
}

func (f *fakeBackend) Push(string, string, backend.TransferOptions) error {
	return errors.New("unexpected Push call")
}

func (f *fakeBackend) CollectGarbage(opts backend.GCOptions) error {
	if f.collectGarbageFunc != nil {
		return f.collectGarbageFunc(opts)
	}
	return errors.New("unexpected CollectGarbage call")
}

func (f *fakeBackend) Close() error { return nil }

package dump

import (
	"errors"
	"testing"
	"time"

	"github.com/toy/git-dump/dump/backend"
)

type recordedCommit struct {
	tree              string
	author, committer backend.Signature
	message           string
	tag               string
	tagger            backend.Signature
	tagMessage        string
	gc                []backend.GCOptions
}

// newCommitFake records one commit and tag and lists them back.
func newCommitFake(rec *recordedCommit) *fakeBackend {
	fake := newMemoryFake()
	commitHash := fakeHash("commit")
	fake.createCommitFunc = func(tree string, author, committer backend.Signature, message string) (string, error) {
		rec.tree, rec.author, rec.committer, rec.message = tree, author, committer, message
		return commitHash, nil
	}
	fake.createTagFunc = func(commit, name string, tagger backend.Signature, message string) (string, error) {
		if commit != commitHash {
			return "", errors.New("tag on unknown commit")
		}
		rec.tag, rec.tagger, rec.tagMessage = name, tagger, message
		return name, nil
	}
	fake.listTagsFunc = func() ([]backend.TagInfo, error) {
		if rec.tag == "" {
			return nil, nil
		}
		return []backend.TagInfo{{
			Name:          rec.tag,
			CommitHash:    commitHash,
			TreeHash:      rec.tree,
			AuthorTime:    rec.author.When,
			CommitTime:    rec.committer.When,
			TagMessage:    rec.tagMessage,
			CommitMessage: rec.message,
		}}, nil
	}
	fake.collectGarbageFunc = func(opts backend.GCOptions) error {
		rec.gc = append(rec.gc, opts)
		return nil
	}
	return fake
}

var (
	testNow  = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	testHost = &Host{
		Hostname: "box",
		NewID:    func() string { return "uuid" },
		Now:      func() time.Time { return testNow },
	}
)

func TestCommitFlow(t *testing.T) {
	t.Parallel()

	var rec recordedCommit
	repo := &Repository{path: "/fake", store: newCommitFake(&rec), host: testHost}
	vb := repo.NewVersion()
	if err := vb.PutBytes("a/b", []byte("x")); err != nil {
		t.Fatal(err)
	}
	when := time.Date(2000, 10, 20, 12, 34, 56, 0, time.UTC)
	v, err := vb.Commit(CommitOptions{
		Time:        when,
		Tags:        []string{"hello", "world", "foo", "bar!@#$%^&*()"},
		Annotation:  "annotation",
		Description: "description",
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if v.ID() != "2000-10-20_12-34-56/box/hello,world,foo,bar_/uuid" {
		t.Fatalf("ID() = %q", v.ID())
	}
	tree, _ := vb.Tree().Hash()
	if rec.tree != tree || v.TreeHash() != tree {
		t.Fatalf("committed tree %s, version tree %s, builder tree %s", rec.tree, v.TreeHash(), tree)
	}
	if !rec.author.When.Equal(when) || !rec.tagger.When.Equal(when) || !rec.committer.When.Equal(testNow) {
		t.Fatalf("times: author %v tagger %v committer %v", rec.author.When, rec.tagger.When, rec.committer.When)
	}
	if rec.author.Name != "git_dump" || rec.author.Email != "git_dump@box" || rec.tagger != (backend.Signature{Name: "git_dump", Email: "git_dump@box", When: when}) {
		t.Fatalf("identity: author %+v tagger %+v", rec.author, rec.tagger)
	}
	if v.Annotation() != "annotation" || v.Description() != "description" {
		t.Fatalf("messages = %q / %q", v.Annotation(), v.Description())
	}
	if !v.Time().Equal(when) || !v.CommitTime().Equal(testNow) {
		t.Fatalf("Time() = %v, CommitTime() = %v", v.Time(), v.CommitTime())
	}
	if len(rec.gc) != 1 || !rec.gc[0].Auto || rec.gc[0].Aggressive {
		t.Fatalf("gc calls = %+v, want one auto gc", rec.gc)
	}
}

func TestCommitDefaultsTimeToNow(t *testing.T) {
	t.Parallel()

	var rec recordedCommit
	repo := &Repository{store: newCommitFake(&rec), host: testHost}
	v, err := repo.NewVersion().Commit(CommitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Time().Equal(testNow) || v.ID() != "2024-05-06_07-08-09/box/uuid" {
		t.Fatalf("Time() = %v, ID() = %q", v.Time(), v.ID())
	}
}

func TestCommitIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts CommitOptions
		want backend.Signature
	}{
		{name: "default", want: backend.Signature{Name: "git_dump", Email: "git_dump@box"}},
		{name: "keep", opts: CommitOptions{KeepIdentity: true}, want: backend.Signature{}},
		{name: "override", opts: CommitOptions{Identity: &Identity{Name: "Ops", Email: "ops@example.com"}}, want: backend.Signature{Name: "Ops", Email: "ops@example.com"}},
		{name: "keep_wins", opts: CommitOptions{KeepIdentity: true, Identity: &Identity{Name: "Ops", Email: "ops@example.com"}}, want: backend.Signature{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var rec recordedCommit
			repo := &Repository{store: newCommitFake(&rec), host: testHost}
			if _, err := repo.NewVersion().Commit(tt.opts); err != nil {
				t.Fatal(err)
			}
			for role, sig := range map[string]backend.Signature{"author": rec.author, "committer": rec.committer, "tagger": rec.tagger} {
				if sig.Name != tt.want.Name || sig.Email != tt.want.Email {
					t.Fatalf("%s = %+v, want %+v", role, sig, tt.want)
				}
			}
		})
	}
}

func TestCommitSurvivesGCFailure(t *testing.T) {
	t.Parallel()

	var rec recordedCommit
	fake := newCommitFake(&rec)
	fake.collectGarbageFunc = func(backend.GCOptions) error { return errors.New("gc exploded") }
	repo := &Repository{store: fake, host: testHost}
	v, err := repo.NewVersion().Commit(CommitOptions{})
	if err != nil || v == nil {
		t.Fatalf("Commit() = %v, %v; want the version despite gc failure", v, err)
	}
}

func TestCommitFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name     string
		sabotage func(f *fakeBackend)
	}{
		{name: "tree", sabotage: func(f *fakeBackend) {
			f.buildTreeFunc = func([]backend.TreeEntry) (string, error) { return "", boom }
		}},
		{name: "commit", sabotage: func(f *fakeBackend) {
			f.createCommitFunc = func(string, backend.Signature, backend.Signature, string) (string, error) { return "", boom }
		}},
		{name: "tag", sabotage: func(f *fakeBackend) {
			f.createTagFunc = func(string, string, backend.Signature, string) (string, error) { return "", boom }
		}},
		{name: "list", sabotage: func(f *fakeBackend) {
			f.listTagsFunc = func() ([]backend.TagInfo, error) { return nil, boom }
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var rec recordedCommit
			fake := newCommitFake(&rec)
			tt.sabotage(fake)
			repo := &Repository{store: fake, host: testHost}
			if _, err := repo.NewVersion().Commit(CommitOptions{}); !errors.Is(err, boom) {
				t.Fatalf("Commit() error = %v, want %v", err, boom)
			}
		})
	}
}

func TestCommitMissingTagAfterwards(t *testing.T) {
	t.Parallel()

	var rec recordedCommit
	fake := newCommitFake(&rec)
	fake.listTagsFunc = func() ([]backend.TagInfo, error) { return nil, nil }
	repo := &Repository{store: fake, host: testHost}
	if _, err := repo.NewVersion().Commit(CommitOptions{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Commit() error = %v, want ErrNotFound", err)
	}
}

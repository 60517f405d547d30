package backend

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func (g *gitCLI) StoreBlob(r io.Reader) (string, error) {
	// hash-object --stdin reads until EOF, so every blob gets its own process.
	res, err := g.run("git hash-object", []string{"hash-object", "-w", "--no-filters", "--stdin"}, runOptions{stdin: r})
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(string(res.stdout))
	if !validHash(hash) {
		return "", protocolErrorf("git hash-object", "%q is not an object hash", hash)
	}
	return hash, nil
}

func (g *gitCLI) StorePathBlob(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(abs, "\n\r") {
		return "", fmt.Errorf("store %q: path contains a line break", path)
	}
	// A missing file kills hash-object, so check before the path reaches the pipe.
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("store %q: not a regular file", path)
	}
	var hash string
	err = g.pathWrite.roundTrip(func(w *bufio.Writer, r *bufio.Reader) error {
		if _, err := fmt.Fprintf(w, "%s\n", abs); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		var err error
		hash, err = readHash("git hash-object --stdin-paths", r)
		return err
	})
	return hash, err
}

func (g *gitCLI) BuildTree(entries []TreeEntry) (string, error) {
	normalized := make([]TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entry, err := normalizeEntry(entry)
		if err != nil {
			return "", err
		}
		normalized = append(normalized, entry)
	}
	var hash string
	err := g.treeBuild.roundTrip(func(w *bufio.Writer, r *bufio.Reader) error {
		for _, entry := range normalized {
			if _, err := fmt.Fprintf(w, "%s %s %s\t%s\n", entry.Mode, entry.Type, entry.Hash, entry.Name); err != nil {
				return err
			}
		}
		// A blank line ends the batch.
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		var err error
		hash, err = readHash("git mktree --batch", r)
		return err
	})
	return hash, err
}

func (g *gitCLI) ReadBlob(hash string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := g.ReadBlobTo(hash, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *gitCLI) ReadBlobTo(hash string, w io.Writer) (int64, error) {
	return g.readObjectTo(hash, BlobObject, w)
}

// readObjectTo streams the content of hash to w through the cat-file pipe. An object of
// another type is consumed and reported as ErrNotFound.
func (g *gitCLI) readObjectTo(hash string, want ObjectType, w io.Writer) (int64, error) {
	if !validHash(hash) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	var n int64
	err := g.blobRead.roundTrip(func(pw *bufio.Writer, r *bufio.Reader) error {
		header, err := requestObjectHeader("git cat-file --batch", pw, r, hash)
		if err != nil {
			return err
		}
		sink := &sinkWriter{w: w}
		if header.typ != want {
			sink.w = io.Discard
		}
		if _, err := io.CopyN(sink, r, header.size); err != nil {
			return err
		}
		trailer, err := r.ReadByte()
		if err != nil {
			return err
		}
		if trailer != '\n' {
			return protocolErrorf("git cat-file --batch", "missing newline after %s content", hash)
		}
		if header.typ != want {
			return intact(fmt.Errorf("%s is a %s, not a %s: %w", hash, header.typ, want, ErrNotFound))
		}
		if sink.err != nil {
			return intact(sink.err)
		}
		n = header.size
		return nil
	})
	return n, err
}

func (g *gitCLI) BlobSize(hash string) (int64, error) {
	if !validHash(hash) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	var size int64
	err := g.blobCheck.roundTrip(func(w *bufio.Writer, r *bufio.Reader) error {
		header, err := requestObjectHeader("git cat-file --batch-check", w, r, hash)
		if err != nil {
			return err
		}
		if header.typ != BlobObject {
			return intact(fmt.Errorf("%s is a %s, not a blob: %w", hash, header.typ, ErrNotFound))
		}
		size = header.size
		return nil
	})
	return size, err
}

type objectHeader struct {
	typ  ObjectType
	size int64
}

// requestObjectHeader asks cat-file about hash and parses "<hash> <type> <size>".
func requestObjectHeader(op string, w *bufio.Writer, r *bufio.Reader, hash string) (objectHeader, error) {
	if _, err := fmt.Fprintf(w, "%s\n", hash); err != nil {
		return objectHeader{}, err
	}
	if err := w.Flush(); err != nil {
		return objectHeader{}, err
	}
	line, err := readLine(r)
	if err != nil {
		return objectHeader{}, err
	}
	return parseObjectHeader(op, hash, line)
}

func parseObjectHeader(op, hash, line string) (objectHeader, error) {
	fields := strings.Split(line, " ")
	if len(fields) == 2 && fields[0] == hash && fields[1] == "missing" {
		return objectHeader{}, intact(fmt.Errorf("object %s: %w", hash, ErrNotFound))
	}
	if len(fields) != 3 || fields[0] != hash {
		return objectHeader{}, protocolErrorf(op, "bad header %q for %s", line, hash)
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || size < 0 {
		return objectHeader{}, protocolErrorf(op, "bad size in header %q", line)
	}
	return objectHeader{typ: ObjectType(fields[1]), size: size}, nil
}

func (g *gitCLI) ListTree(hash string) ([]TreeEntry, error) {
	if !validHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	res, err := g.run("git ls-tree", []string{"ls-tree", "-z", hash}, runOptions{})
	if err != nil {
		if exitedWith(err, 128, "not a tree object", "Not a valid object name") {
			return nil, fmt.Errorf("tree %s: %w", hash, ErrNotFound)
		}
		return nil, err
	}
	return parseLsTree(res.stdout)
}

// parseLsTree parses NUL terminated "<mode> <type> <hash>\t<name>" records.
func parseLsTree(out []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for _, rec := range strings.Split(string(out), "\x00") {
		if rec == "" {
			continue
		}
		meta, name, ok := strings.Cut(rec, "\t")
		if !ok || name == "" {
			return nil, protocolErrorf("git ls-tree", "%q", rec)
		}
		fields := strings.Split(meta, " ")
		if len(fields) != 3 {
			return nil, protocolErrorf("git ls-tree", "%q", rec)
		}
		mode, err := strconv.ParseUint(fields[0], 8, 32)
		if err != nil || len(fields[0]) != 6 {
			return nil, protocolErrorf("git ls-tree", "bad mode in %q", rec)
		}
		typ := ObjectType(fields[1])
		if typ != BlobObject && typ != TreeObject {
			return nil, protocolErrorf("git ls-tree", "unsupported type in %q", rec)
		}
		if !validHash(fields[2]) {
			return nil, protocolErrorf("git ls-tree", "bad hash in %q", rec)
		}
		entries = append(entries, TreeEntry{Name: name, Hash: fields[2], Type: typ, Mode: Mode(mode)})
	}
	return entries, nil
}

func (g *gitCLI) CreateCommit(tree string, author, committer Signature, message string) (string, error) {
	if !validHash(tree) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, tree)
	}
	env := append(identityEnv("AUTHOR", author), identityEnv("COMMITTER", committer)...)
	res, err := g.run("git commit-tree", []string{"commit-tree", tree}, runOptions{
		stdin: strings.NewReader(message),
		env:   env,
	})
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(string(res.stdout))
	if !validHash(hash) {
		return "", protocolErrorf("git commit-tree", "%q is not an object hash", hash)
	}
	return hash, nil
}

func identityEnv(role string, sig Signature) []string {
	var env []string
	if !sig.Default() {
		env = append(env,
			"GIT_"+role+"_NAME="+sig.Name,
			"GIT_"+role+"_EMAIL="+sig.Email,
		)
	}
	if !sig.When.IsZero() {
		env = append(env, "GIT_"+role+"_DATE="+formatGitDate(sig.When))
	}
	return env
}

func formatGitDate(t time.Time) string {
	return fmt.Sprintf("@%d %s", t.Unix(), t.Format("-0700"))
}

func (g *gitCLI) CreateTag(commit, name string, tagger Signature, message string) (string, error) {
	if !validHash(commit) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, commit)
	}
	if tagger.Default() {
		ident, err := g.configuredIdentity()
		if err != nil {
			return "", err
		}
		tagger.Name, tagger.Email = ident.Name, ident.Email
		if tagger.When.IsZero() {
			tagger.When = ident.When
		}
	}
	if tagger.When.IsZero() {
		tagger.When = time.Now()
	}
	// mktag writes the message byte for byte; git tag -m would clean it up.
	body := fmt.Sprintf("object %s\ntype commit\ntag %s\ntagger %s <%s> %d %s\n\n%s",
		commit, name, tagger.Name, tagger.Email, tagger.When.Unix(), tagger.When.Format("-0700"), message)
	res, err := g.run("git mktag", []string{"mktag"}, runOptions{stdin: strings.NewReader(body)})
	if err != nil {
		return "", err
	}
	tagHash := strings.TrimSpace(string(res.stdout))
	if !validHash(tagHash) {
		return "", protocolErrorf("git mktag", "%q is not an object hash", tagHash)
	}
	// The empty old value makes update-ref refuse to overwrite an existing tag.
	if _, err := g.run("git update-ref", []string{"update-ref", TagRef(name), tagHash, ""}, runOptions{}); err != nil {
		return "", err
	}
	return name, nil
}

// configuredIdentity asks git for the committer identity it would use on its own.
func (g *gitCLI) configuredIdentity() (Signature, error) {
	res, err := g.run("git var", []string{"var", "GIT_COMMITTER_IDENT"}, runOptions{})
	if err != nil {
		return Signature{}, err
	}
	return parseIdent(strings.TrimSpace(string(res.stdout)))
}

// parseIdent parses "Name <email> 1700000000 +0200".
func parseIdent(line string) (Signature, error) {
	open := strings.LastIndexByte(line, '<')
	closing := strings.LastIndexByte(line, '>')
	if open < 0 || closing < open {
		return Signature{}, protocolErrorf("git var", "bad identity %q", line)
	}
	sig := Signature{
		Name:  strings.TrimSpace(line[:open]),
		Email: line[open+1 : closing],
	}
	when, err := parseRawDate(strings.TrimSpace(line[closing+1:]))
	if err != nil {
		return Signature{}, protocolErrorf("git var", "bad identity date %q", line)
	}
	sig.When = when
	return sig, nil
}

func (g *gitCLI) DeleteTag(name string) error {
	_, err := g.run("git tag --delete", []string{"tag", "--delete", name}, runOptions{})
	if exitedWith(err, 1, "not found") {
		return fmt.Errorf("tag %s: %w", name, ErrNotFound)
	}
	return err
}

func (g *gitCLI) Fetch(url, ref string, opts TransferOptions) error {
	return g.transfer("fetch", url, ref, opts)
}

func (g *gitCLI) Push(url, ref string, opts TransferOptions) error {
	return g.transfer("push", url, ref, opts)
}

// transfer moves exactly one ref, never a bulk sync.
func (g *gitCLI) transfer(command, url, ref string, opts TransferOptions) error {
	args := []string{command}
	if command == "fetch" {
		args = append(args, "--no-tags")
	}
	if opts.Progress != nil {
		args = append(args, "--progress")
	} else {
		args = append(args, "--quiet")
	}
	args = append(args, url, ref+":"+ref)
	_, err := g.run("git "+command, args, runOptions{progress: opts.Progress})
	return err
}

func (g *gitCLI) CollectGarbage(opts GCOptions) error {
	args := []string{"gc", "--quiet"}
	if opts.Auto {
		args = append(args, "--auto")
	}
	if opts.Aggressive {
		args = append(args, "--aggressive")
	}
	_, err := g.run("git gc", args, runOptions{})
	return err
}

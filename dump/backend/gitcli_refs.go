package backend

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fields of one for-each-ref record. Messages are not among them: %(contents) drops leading
// blank lines, so message text is read from the raw objects instead.
var tagRecordFields = []string{
	"%(refname:strip=2)",
	"%(objecttype)",
	"%(objectname)",
	"%(tree)",
	"%(authordate:raw)",
	"%(committerdate:raw)",
	"%(*objectname)",
	"%(*tree)",
	"%(*authordate:raw)",
	"%(*committerdate:raw)",
}

func tagRecordFormat() string {
	return strings.Join(tagRecordFields, "%00") + "%00"
}

// tagRecord is a listed tag before its messages are read. tagObject is empty for lightweight
// tags.
type tagRecord struct {
	info      TagInfo
	tagObject string
}

func (g *gitCLI) ListTags() ([]TagInfo, error) {
	res, err := g.run("git for-each-ref", []string{"for-each-ref", "--format=" + tagRecordFormat(), "refs/tags"}, runOptions{})
	if err != nil {
		return nil, err
	}
	records, err := parseTagRecords(res.stdout)
	if err != nil {
		return nil, err
	}
	tags := make([]TagInfo, 0, len(records))
	for _, rec := range records {
		info := rec.info
		if rec.tagObject != "" {
			if info.TagMessage, err = g.objectMessage(rec.tagObject, TagObject); err != nil {
				return nil, fmt.Errorf("tag %s: %w", info.Name, err)
			}
		}
		if info.CommitMessage, err = g.objectMessage(info.CommitHash, CommitObject); err != nil {
			return nil, fmt.Errorf("tag %s: %w", info.Name, err)
		}
		tags = append(tags, info)
	}
	return tags, nil
}

// objectMessage reads a tag or commit object through the cat-file pipe and returns the text
// after its headers, byte for byte.
func (g *gitCLI) objectMessage(hash string, typ ObjectType) (string, error) {
	var buf bytes.Buffer
	if _, err := g.readObjectTo(hash, typ, &buf); err != nil {
		return "", err
	}
	return parseObjectMessage(typ, buf.Bytes())
}

// parseObjectMessage splits a raw tag or commit object at the blank line ending its headers.
func parseObjectMessage(typ ObjectType, raw []byte) (string, error) {
	_, msg, ok := bytes.Cut(raw, []byte("\n\n"))
	if !ok {
		return "", protocolErrorf("git cat-file --batch", "%s object without a header terminator", typ)
	}
	return string(msg), nil
}

// parseTagRecords parses for-each-ref output: records of NUL terminated fields, each record
// followed by the newline for-each-ref appends.
func parseTagRecords(out []byte) ([]tagRecord, error) {
	const op = "git for-each-ref"
	r := bufio.NewReader(bytes.NewReader(out))
	var records []tagRecord
	for {
		if _, err := r.Peek(1); err == io.EOF {
			break
		}
		fields := make([]string, len(tagRecordFields))
		for i := range fields {
			field, err := r.ReadString(0)
			if err != nil {
				return nil, protocolErrorf(op, "record %d truncated at field %d", len(records)+1, i+1)
			}
			fields[i] = strings.TrimSuffix(field, "\x00")
		}
		if b, err := r.ReadByte(); err != nil || b != '\n' {
			return nil, protocolErrorf(op, "record %d not newline terminated", len(records)+1)
		}
		rec, ok, err := tagFromRecord(fields)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].info.Name < records[j].info.Name })
	return records, nil
}

func tagFromRecord(fields []string) (tagRecord, bool, error) {
	const op = "git for-each-ref"
	rec := tagRecord{info: TagInfo{Name: fields[0]}}
	var commit []string
	switch fields[1] {
	case "tag":
		if !validHash(fields[2]) {
			return tagRecord{}, false, protocolErrorf(op, "tag %s: bad tag object %q", rec.info.Name, fields[2])
		}
		rec.tagObject = fields[2]
		commit = fields[6:10]
	case "commit":
		commit = fields[2:6]
	default:
		slog.Debug("skipping tag that does not point at a commit",
			slog.String("tag", rec.info.Name), slog.String("type", fields[1]))
		return tagRecord{}, false, nil
	}
	if !validHash(commit[0]) {
		// Nested tags peel to another tag object, not a commit.
		slog.Debug("skipping tag without a commit target", slog.String("tag", rec.info.Name))
		return tagRecord{}, false, nil
	}
	tag := &rec.info
	tag.CommitHash = commit[0]
	if !validHash(commit[1]) {
		return tagRecord{}, false, protocolErrorf(op, "tag %s: bad tree %q", tag.Name, commit[1])
	}
	tag.TreeHash = commit[1]
	var err error
	if tag.AuthorTime, err = parseRawDate(commit[2]); err != nil {
		return tagRecord{}, false, protocolErrorf(op, "tag %s: %v", tag.Name, err)
	}
	if tag.CommitTime, err = parseRawDate(commit[3]); err != nil {
		return tagRecord{}, false, protocolErrorf(op, "tag %s: %v", tag.Name, err)
	}
	return rec, true, nil
}

// parseRawDate parses git's raw date format "1700000000 +0200".
func parseRawDate(s string) (time.Time, error) {
	secs, zone, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return time.Time{}, fmt.Errorf("bad raw date %q", s)
	}
	unix, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad raw date %q", s)
	}
	if len(zone) != 5 || (zone[0] != '+' && zone[0] != '-') {
		return time.Time{}, fmt.Errorf("bad raw date zone %q", s)
	}
	hours, errH := strconv.Atoi(zone[1:3])
	minutes, errM := strconv.Atoi(zone[3:5])
	if errH != nil || errM != nil {
		return time.Time{}, fmt.Errorf("bad raw date zone %q", s)
	}
	offset := hours*3600 + minutes*60
	if zone[0] == '-' {
		offset = -offset
	}
	return time.Unix(unix, 0).In(time.FixedZone("", offset)), nil
}

func (g *gitCLI) ListRemoteTagNames(url string) ([]string, error) {
	return listRemoteTagsCLI(url)
}

func listRemoteTagsCLI(url string) ([]string, error) {
	res, err := runGit("", "git ls-remote", []string{"ls-remote", "--tags", "--refs", "--exit-code", url}, runOptions{okExit: []int{2}})
	if err != nil {
		return nil, err
	}
	// --exit-code reports "no matching refs" as 2.
	if res.exitCode == 2 {
		return []string{}, nil
	}
	return parseLsRemoteTags(res.stdout)
}

// parseLsRemoteTags parses "<hash>\trefs/tags/<name>" lines.
func parseLsRemoteTags(out []byte) ([]string, error) {
	names := []string{}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		hash, ref, ok := strings.Cut(line, "\t")
		if !ok || !validHash(hash) {
			return nil, protocolErrorf("git ls-remote", "%q", line)
		}
		name, ok := strings.CutPrefix(ref, "refs/tags/")
		if !ok || name == "" {
			return nil, protocolErrorf("git ls-remote", "%q", line)
		}
		if strings.HasSuffix(name, "^{}") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

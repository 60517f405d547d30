package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/dump/backend"
)

const devNull = "/dev/null"

func newDiffCmd(a *app) *cobra.Command {
	var context int
	cmd := &cobra.Command{
		Use:   "diff VERSION1 VERSION2 [PATH]",
		Short: "Show changes between two versions",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 3 {
				path = args[2]
			}
			return a.withRepo(func(repo *dump.Repository) error {
				from, err := versionFiles(repo, args[0], path)
				if err != nil {
					return err
				}
				to, err := versionFiles(repo, args[1], path)
				if err != nil {
					return err
				}
				changes, err := collectChanges(from, to)
				if err != nil {
					return err
				}
				return renderDiff(cmd.OutOrStdout(), changes, context)
			})
		},
	}
	cmd.Flags().IntVarP(&context, "unified", "U", 3, "lines of context")
	return cmd
}

// versionFiles maps the path of every entry at or below path in version id to the entry. A
// path missing from the version yields no files.
func versionFiles(repo *dump.Repository, id, path string) (map[string]*dump.Entry, error) {
	v, err := findVersion(repo, id)
	if err != nil {
		return nil, err
	}
	files := map[string]*dump.Entry{}
	var obj dump.Object = v.Tree()
	if strings.Trim(path, "/") != "" {
		if obj, err = v.Get(path); err != nil {
			return nil, err
		}
	}
	switch o := obj.(type) {
	case *dump.Entry:
		files[o.Path()] = o
	case *dump.Tree:
		err = o.EachRecursive(func(e *dump.Entry) error {
			files[e.Path()] = e
			return nil
		})
	}
	return files, err
}

type diffSide struct {
	content []byte
	mode    fs.FileMode
}

type fileChange struct {
	path     string
	from, to *diffSide
}

func loadSide(e *dump.Entry) (*diffSide, error) {
	if e == nil {
		return nil, nil
	}
	content, err := e.Read()
	if err != nil {
		return nil, err
	}
	return &diffSide{content: content, mode: e.Mode()}, nil
}

// collectChanges pairs entries by path, sorted, skipping those stored identically on both sides.
func collectChanges(from, to map[string]*dump.Entry) ([]fileChange, error) {
	paths := make([]string, 0, len(from)+len(to))
	for p := range from {
		paths = append(paths, p)
	}
	for p := range to {
		if _, ok := from[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	var changes []fileChange
	for _, p := range paths {
		a, b := from[p], to[p]
		if a != nil && b != nil && a.Hash() == b.Hash() && a.Mode() == b.Mode() {
			continue
		}
		fromSide, err := loadSide(a)
		if err != nil {
			return nil, err
		}
		toSide, err := loadSide(b)
		if err != nil {
			return nil, err
		}
		changes = append(changes, fileChange{path: p, from: fromSide, to: toSide})
	}
	return changes, nil
}

func renderDiff(w io.Writer, changes []fileChange, context int) error {
	var b strings.Builder
	for _, ch := range changes {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", ch.path, ch.path)
		switch {
		case ch.from == nil:
			fmt.Fprintf(&b, "new file mode %s\n", gitMode(ch.to.mode))
		case ch.to == nil:
			fmt.Fprintf(&b, "deleted file mode %s\n", gitMode(ch.from.mode))
		case ch.from.mode != ch.to.mode:
			fmt.Fprintf(&b, "old mode %s\nnew mode %s\n", gitMode(ch.from.mode), gitMode(ch.to.mode))
		}
		fromFile, toFile := "a/"+ch.path, "b/"+ch.path
		if ch.from == nil {
			fromFile = devNull
		}
		if ch.to == nil {
			toFile = devNull
		}
		fromContent, toContent := sideContent(ch.from), sideContent(ch.to)
		if isBinary(fromContent) || isBinary(toContent) {
			fmt.Fprintf(&b, "Binary files %s and %s differ\n", fromFile, toFile)
			continue
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        splitLines(string(fromContent)),
			B:        splitLines(string(toContent)),
			FromFile: fromFile,
			ToFile:   toFile,
			Context:  context,
		})
		if err != nil {
			return err
		}
		b.WriteString(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// splitLines keeps line terminators. Unlike difflib.SplitLines it adds no empty line after a
// trailing newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if last := len(lines) - 1; lines[last] == "" {
		lines = lines[:last]
	} else {
		lines[last] += "\n"
	}
	return lines
}

func sideContent(s *diffSide) []byte {
	if s == nil {
		return nil
	}
	return s.content
}

func gitMode(mode fs.FileMode) string {
	return backend.BlobMode(uint32(mode)).String()
}

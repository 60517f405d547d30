package cmd

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/cobra"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/internal/logging"
)

const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

func newCatCmd(a *app) *cobra.Command {
	var color, style string
	cmd := &cobra.Command{
		Use:   "cat VERSION PATH",
		Short: "Print a file stored in a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			highlight, err := wantColor(color, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withRepo(func(repo *dump.Repository) error {
				v, err := findVersion(repo, args[0])
				if err != nil {
					return err
				}
				obj, err := lookup(v, args[1])
				if err != nil {
					return err
				}
				entry, ok := obj.(*dump.Entry)
				if !ok {
					return fmt.Errorf("%s: is a directory in %s", args[1], v.ID())
				}
				if !highlight {
					_, err := entry.WriteTo(cmd.OutOrStdout())
					return err
				}
				content, err := entry.Read()
				if err != nil {
					return err
				}
				return highlightTo(cmd.OutOrStdout(), entry.Path(), content, style)
			})
		},
	}
	cmd.Flags().StringVar(&color, "color", colorAuto, "syntax highlighting: auto, always or never")
	cmd.Flags().StringVar(&style, "style", "github-dark", "chroma style used for highlighting")
	return cmd
}

func wantColor(mode string, out io.Writer) (bool, error) {
	switch mode {
	case colorAuto:
		return logging.IsTerminal(out), nil
	case colorAlways:
		return true, nil
	case colorNever:
		return false, nil
	default:
		return false, fmt.Errorf("--color: unknown value %q (want auto, always or never)", mode)
	}
}

func lexerForPath(path string, content []byte) chroma.Lexer {
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Analyse(string(content))
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// highlightTo writes content with terminal colors. Binary content is written unchanged.
func highlightTo(w io.Writer, path string, content []byte, styleName string) error {
	if isBinary(content) {
		_, err := w.Write(content)
		return err
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	iterator, err := lexerForPath(path, content).Tokenise(nil, string(content))
	if err != nil {
		return fmt.Errorf("highlight %s: %w", path, err)
	}
	return formatter.Format(w, style, iterator)
}

func isBinary(content []byte) bool {
	return bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content)
}

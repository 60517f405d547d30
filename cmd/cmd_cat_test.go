package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestWantColor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mode    string
		want    bool
		wantErr bool
	}{
		{mode: colorAuto, want: false},
		{mode: colorAlways, want: true},
		{mode: colorNever, want: false},
		{mode: "rainbow", wantErr: true},
	}
	for _, tt := range tests {
		got, err := wantColor(tt.mode, &bytes.Buffer{})
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("wantColor(%q) = %v, %v; want %v, error %v", tt.mode, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestHighlightTo(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	src := "package main\n\nfunc main() {}\n"
	if err := highlightTo(&out, "main.go", []byte(src), "github-dark"); err != nil {
		t.Fatalf("highlightTo() error = %v", err)
	}
	if !strings.Contains(out.String(), "\x1b[") {
		t.Fatalf("expected terminal escapes, got %q", out.String())
	}
	if !strings.Contains(out.String(), "main") {
		t.Fatalf("highlighted output lost the source: %q", out.String())
	}
}

func TestHighlightToPassesBinaryThrough(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	data := []byte{0x7f, 'E', 'L', 'F', 0, 1, 2}
	if err := highlightTo(&out, "a.out", data, "github"); err != nil {
		t.Fatalf("highlightTo() error = %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("binary content changed: %q", out.Bytes())
	}
}

func TestLexerForPath(t *testing.T) {
	t.Parallel()
	if got := lexerForPath("x.go", nil).Config().Name; got != "Go" {
		t.Errorf("lexer for x.go = %q, want Go", got)
	}
	if lexerForPath("no-extension", []byte("just words")) == nil {
		t.Error("lexer for unknown content is nil")
	}
}

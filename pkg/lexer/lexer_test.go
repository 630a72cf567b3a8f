package lexer

import (
	"errors"
	"testing"

	"github.com/augurlabs/augur/pkg/parser"
)

const goSample = `package main

// add returns the sum.
func add(a, b int) int {
	return a + b // inline note
}
`

func lexSource(t *testing.T, source string, lang parser.Language, opts Options) *Stream {
	t.Helper()
	p := parser.New()
	defer p.Close()

	stream, err := Lex(p, []byte(source), lang, "test.src", opts)
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	return stream
}

func TestLexSkipsComments(t *testing.T) {
	stream := lexSource(t, goSample, parser.LangGo, Options{})

	for _, tok := range stream.Tokens {
		if tok.Text == "// add returns the sum." || tok.Text == "// inline note" {
			t.Errorf("comment token %q should not appear in stream", tok.Text)
		}
	}
	if len(stream.Tokens) == 0 {
		t.Fatal("expected tokens, got none")
	}
	if stream.Tokens[0].Text != "package" {
		t.Errorf("first token = %q, want %q", stream.Tokens[0].Text, "package")
	}
}

func TestLexTokenPositions(t *testing.T) {
	stream := lexSource(t, goSample, parser.LangGo, Options{})

	var found bool
	for _, tok := range stream.Tokens {
		if tok.Text == "add" {
			found = true
			if tok.StartLine != 4 {
				t.Errorf("add StartLine = %d, want 4", tok.StartLine)
			}
			if tok.StartCol != 6 {
				t.Errorf("add StartCol = %d, want 6", tok.StartCol)
			}
		}
	}
	if !found {
		t.Error("token \"add\" not found in stream")
	}
}

func TestLexStringsAreAtomic(t *testing.T) {
	source := "package main\n\nvar greeting = \"hello, world\"\n"
	stream := lexSource(t, source, parser.LangGo, Options{})

	var found bool
	for _, tok := range stream.Tokens {
		if tok.Text == `"hello, world"` {
			found = true
		}
		if tok.Text == "hello, world" {
			t.Error("string interior leaked as a separate token")
		}
	}
	if !found {
		t.Error("string literal should appear as one atomic token")
	}
}

func TestLexNormalizeIdentifiers(t *testing.T) {
	stream := lexSource(t, goSample, parser.LangGo, Options{NormalizeIdentifiers: true})

	for _, tok := range stream.Tokens {
		switch tok.Text {
		case "add", "a", "b":
			if tok.Norm != "ID" {
				t.Errorf("identifier %q Norm = %q, want ID", tok.Text, tok.Norm)
			}
			if tok.Match() != "ID" {
				t.Errorf("identifier %q Match() = %q, want ID", tok.Text, tok.Match())
			}
		case "func", "return", "package":
			if tok.Norm != "" {
				t.Errorf("keyword %q should not normalize, got %q", tok.Text, tok.Norm)
			}
		}
	}
}

func TestLexNormalizeLiterals(t *testing.T) {
	source := "package main\n\nvar x = 42\nvar s = \"str\"\n"
	stream := lexSource(t, source, parser.LangGo, Options{NormalizeLiterals: true})

	for _, tok := range stream.Tokens {
		switch tok.Text {
		case "42", `"str"`:
			if tok.Norm != "LIT" {
				t.Errorf("literal %q Norm = %q, want LIT", tok.Text, tok.Norm)
			}
		case "x", "s":
			if tok.Norm != "" {
				t.Errorf("identifier %q should not normalize under literal mode, got %q", tok.Text, tok.Norm)
			}
		}
	}
}

func TestLexExactModeProducesNoNorms(t *testing.T) {
	stream := lexSource(t, goSample, parser.LangGo, Options{})
	for _, tok := range stream.Tokens {
		if tok.Norm != "" {
			t.Errorf("token %q has Norm %q in exact mode", tok.Text, tok.Norm)
		}
		if tok.Match() != tok.Text {
			t.Errorf("token %q Match() = %q, want exact text", tok.Text, tok.Match())
		}
	}
}

func TestLexSyntaxError(t *testing.T) {
	p := parser.New()
	defer p.Close()

	_, err := Lex(p, []byte("package main\n\nfunc broken( {\n"), parser.LangGo, "broken.go", Options{})
	if !errors.Is(err, ErrTokenize) {
		t.Errorf("Lex() error = %v, want ErrTokenize", err)
	}
}

func TestLexPython(t *testing.T) {
	source := "def add(a, b):\n    # comment\n    return a + b\n"
	stream := lexSource(t, source, parser.LangPython, Options{})

	for _, tok := range stream.Tokens {
		if tok.Text == "# comment" {
			t.Error("python comment leaked into stream")
		}
	}
	if stream.Language != parser.LangPython {
		t.Errorf("Language = %q, want python", stream.Language)
	}
}

func TestLexDeterministic(t *testing.T) {
	a := lexSource(t, goSample, parser.LangGo, Options{})
	b := lexSource(t, goSample, parser.LangGo, Options{})

	if len(a.Tokens) != len(b.Tokens) {
		t.Fatalf("token counts differ: %d vs %d", len(a.Tokens), len(b.Tokens))
	}
	for i := range a.Tokens {
		if a.Tokens[i] != b.Tokens[i] {
			t.Errorf("token %d differs: %+v vs %+v", i, a.Tokens[i], b.Tokens[i])
		}
	}
}

// Package lexer turns source files into ordered, position-addressable token
// streams suitable for duplicate fingerprinting. Comments and insignificant
// whitespace never appear in the stream.
package lexer

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/augurlabs/augur/pkg/parser"
)

// ErrTokenize is returned for source that does not parse cleanly. Callers
// skip the file with a warning; duplicate windows over broken parse trees
// are noise.
var ErrTokenize = errors.New("tokenize failed")

// Token is the smallest syntactically meaningful unit of source text.
// Positions are 1-based lines and columns.
type Token struct {
	Text      string `json:"t"`
	Norm      string `json:"n,omitempty"`
	StartLine int    `json:"sl"`
	StartCol  int    `json:"sc"`
	EndLine   int    `json:"el"`
	EndCol    int    `json:"ec"`
}

// Match returns the form used for duplicate comparison: the normalized form
// when one was produced, the exact text otherwise.
func (t Token) Match() string {
	if t.Norm != "" {
		return t.Norm
	}
	return t.Text
}

// Stream is an ordered token stream for one file.
type Stream struct {
	Language parser.Language `json:"language"`
	Tokens   []Token         `json:"tokens"`
}

// Options selects the matching form. Exact token text is the conservative
// default; normalization treats differently-named identifiers or differing
// literal values as equivalent.
type Options struct {
	NormalizeIdentifiers bool
	NormalizeLiterals    bool
}

// Lex parses source and extracts its token stream. The parser is borrowed,
// not owned; callers manage its lifecycle (one per worker).
func Lex(p *parser.Parser, source []byte, lang parser.Language, path string, opts Options) (*Stream, error) {
	result, err := p.Parse(source, lang, path)
	if err != nil {
		return nil, err
	}
	defer result.Tree.Close()

	root := result.Tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s contains syntax errors", ErrTokenize, path)
	}

	stream := &Stream{Language: lang}
	parser.Walk(root, source, func(node *sitter.Node, nodeType string, src []byte) bool {
		if isCommentType(nodeType) {
			return false
		}
		// String-like nodes become one atomic token; their internal quote
		// and escape children are not meaningful units on their own.
		atomic := isStringType(nodeType)
		if !atomic && node.ChildCount() > 0 {
			return true
		}
		text := parser.NodeText(node, src)
		if text == "" {
			return false
		}

		tok := Token{
			Text:      text,
			StartLine: int(node.StartPoint().Row) + 1,
			StartCol:  int(node.StartPoint().Column) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			EndCol:    int(node.EndPoint().Column) + 1,
		}
		tok.Norm = normalize(nodeType, text, opts)
		stream.Tokens = append(stream.Tokens, tok)
		return !atomic
	})

	return stream, nil
}

// normalize returns the normalized form for a token, or "" when the exact
// text is the matching form.
func normalize(nodeType, text string, opts Options) string {
	if opts.NormalizeIdentifiers && isIdentifierType(nodeType) {
		return "ID"
	}
	if opts.NormalizeLiterals && isLiteralType(nodeType, text) {
		return "LIT"
	}
	return ""
}

// isIdentifierType reports whether a node is a named identifier. Anonymous
// keyword tokens (whose type equals their text, e.g. "func") never match.
func isIdentifierType(nodeType string) bool {
	return strings.HasSuffix(nodeType, "identifier")
}

func isLiteralType(nodeType, text string) bool {
	if isStringType(nodeType) {
		return true
	}
	if len(text) > 0 && text[0] >= '0' && text[0] <= '9' {
		return true
	}
	return strings.HasSuffix(nodeType, "_literal") || nodeType == "integer" || nodeType == "float" || nodeType == "number"
}

func isStringType(nodeType string) bool {
	return strings.Contains(nodeType, "string") || strings.Contains(nodeType, "char_literal") ||
		nodeType == "rune_literal" || nodeType == "heredoc_body" || nodeType == "template_string"
}

func isCommentType(nodeType string) bool {
	return strings.Contains(nodeType, "comment")
}

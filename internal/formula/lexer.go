package formula

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokQuestion
	tokColon
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of formula"
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError reports a malformed formula with the byte offset of the problem.
type SyntaxError struct {
	Formula string
	Pos     int
	Msg     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula %q: at %d: %s", e.Formula, e.Pos, e.Msg)
}

var twoCharOps = []string{"<=", ">=", "==", "!=", "&&", "||"}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			seenDot := false
			for i < len(src) && (isDigit(src[i]) || src[i] == '_' || src[i] == '.') {
				if src[i] == '.' {
					if seenDot {
						return nil, &SyntaxError{Formula: src, Pos: i, Msg: "second decimal point in number"}
					}
					seenDot = true
				}
				i++
			}
			text := src[start:i]
			if strings.HasSuffix(text, "_") || strings.Contains(text, "__") || strings.Contains(text, "_.") || strings.Contains(text, "._") {
				return nil, &SyntaxError{Formula: src, Pos: start, Msg: fmt.Sprintf("misplaced digit separator in %q", text)}
			}
			text = strings.ReplaceAll(text, "_", "")
			if text[0] == '.' {
				text = "0" + text
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start})
		case isLetter(c):
			start := i
			for i < len(src) && (isLetter(src[i]) || isDigit(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '?':
			toks = append(toks, token{kind: tokQuestion, text: "?", pos: i})
			i++
		case c == ':':
			toks = append(toks, token{kind: tokColon, text: ":", pos: i})
			i++
		default:
			matched := false
			for _, op := range twoCharOps {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op, pos: i})
					i += 2
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if strings.IndexByte("+-*/%<>!", c) >= 0 {
				toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
				i++
				continue
			}
			return nil, &SyntaxError{Formula: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' }

package formula

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokQuestion
	tokColon
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  float64
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of formula"
	}
	return strconv.Quote(t.text)
}

// two-character operators are matched before their one-character prefixes
var operators = []string{"==", "!=", "<=", ">=", "&&", "||", "+", "-", "*", "/", "<", ">", "!"}

func lex(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			out = append(out, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '?':
			out = append(out, token{kind: tokQuestion, text: "?", pos: i})
			i++
		case r == ':':
			out = append(out, token{kind: tokColon, text: ":", pos: i})
			i++
		case isDigit(r) || (r == '.' && i+1 < len(src) && isDigit(rune(src[i+1]))):
			start := i
			dots := 0
			for i < len(src) && (isDigit(rune(src[i])) || src[i] == '.') {
				if src[i] == '.' {
					dots++
				}
				i++
			}
			text := src[start:i]
			if dots > 1 {
				return nil, &Error{Pos: start, Token: text, Message: "malformed number"}
			}
			if i < len(src) && isIdentStart(rune(src[i])) {
				return nil, &Error{Pos: start, Token: src[start : i+1], Message: "malformed number"}
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &Error{Pos: start, Token: text, Message: "malformed number"}
			}
			out = append(out, token{kind: tokNumber, text: text, pos: start, num: v})
		case isIdentStart(r):
			start := i
			for i < len(src) {
				r2, s2 := utf8.DecodeRuneInString(src[i:])
				if !isIdentStart(r2) && !isDigit(r2) {
					break
				}
				i += s2
			}
			out = append(out, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			matched := false
			for _, op := range operators {
				if len(src)-i >= len(op) && src[i:i+len(op)] == op {
					out = append(out, token{kind: tokOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, &Error{Pos: i, Token: string(r), Message: "unexpected character"}
			}
		}
	}
	out = append(out, token{kind: tokEOF, pos: len(src)})
	return out, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type (
	tokenKind int

	token struct {
		value string
		num   float64
		kind  tokenKind
		pos   int
	}

	lexer struct {
		src    string
		tokens []token
		pos    int
	}
)

const (
	tokEOF tokenKind = iota
	tokPath
	tokNumber
	tokString
	tokTrue
	tokFalse
	tokNull
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNe
	tokLt
	tokLe
	tokGt
	tokGe
	tokLParen
	tokRParen
)

var keywords = map[string]tokenKind{
	"true":  tokTrue,
	"false": tokFalse,
	"null":  tokNull,
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
}

var operators = []struct {
	text string
	kind tokenKind
}{
	{"&&", tokAnd},
	{"||", tokOr},
	{"==", tokEq},
	{"!=", tokNe},
	{"<=", tokLe},
	{">=", tokGe},
	{"<", tokLt},
	{">", tokGt},
	{"!", tokNot},
	{"(", tokLParen},
	{")", tokRParen},
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, token{kind: tokEOF, pos: l.pos})
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
}

func (l *lexer) next() error {
	c := l.src[l.pos]
	switch {
	case c == '"' || c == '\'':
		return l.lexString(c)
	case isDigit(c) || (c == '-' && l.pos+1 < len(l.src) &&
		isDigit(l.src[l.pos+1])):
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexPath()
	}

	rest := l.src[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			l.emit(token{kind: op.kind, value: op.text, pos: l.pos})
			l.pos += len(op.text)
			return nil
		}
	}
	return fmt.Errorf("%w: unexpected character %q at %d",
		ErrSyntax, c, l.pos)
}

func (l *lexer) lexString(quote byte) error {
	start := l.pos
	var sb strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			if l.pos+1 >= len(l.src) {
				return fmt.Errorf("%w: unterminated string at %d",
					ErrSyntax, start)
			}
			sb.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case quote:
			l.pos++
			l.emit(token{kind: tokString, value: sb.String(), pos: start})
			return nil
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
}

func (l *lexer) lexNumber() error {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) &&
		(isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	text := l.src[start:l.pos]
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid number %q at %d", ErrSyntax, text, start)
	}
	l.emit(token{kind: tokNumber, value: text, num: num, pos: start})
	return nil
}

func (l *lexer) lexPath() error {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isIdentPart(c) {
			l.pos++
			continue
		}
		if c == '.' && l.pos+1 < len(l.src) &&
			(isIdentPart(l.src[l.pos+1]) || l.src[l.pos+1] == '#') {
			l.pos++
			if l.src[l.pos] == '#' {
				l.pos++
			}
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if kind, ok := keywords[text]; ok {
		l.emit(token{kind: kind, value: text, pos: start})
		return nil
	}
	l.emit(token{kind: tokPath, value: text, pos: start})
	return nil
}

func (l *lexer) emit(t token) {
	l.tokens = append(l.tokens, t)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}

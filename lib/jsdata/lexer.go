package jsdata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of input"
	case tokenIdent:
		return "identifier"
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenPunct:
		return "punctuator"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	// text is the identifier name, the punctuator, or the decoded string literal
	text   string
	number float64
	offset int
	// newlineBefore is set when a line terminator separates this token from the previous one
	newlineBefore bool
}

func (t token) String() string {
	switch t.kind {
	case tokenEOF:
		return "end of input"
	case tokenString:
		return strconv.Quote(t.text)
	case tokenNumber:
		return strconv.FormatFloat(t.number, 'g', -1, 64)
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError is returned when the source falls outside the supported grammar.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Message)
}

type lexer struct {
	src    string
	pos    int
	tokens []token
}

const punctuators = "{}[](),:;.=-+!"

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		newline, err := l.skipTrivia()
		if err != nil {
			return nil, err
		}
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, token{kind: tokenEOF, offset: l.pos, newlineBefore: newline})
			return l.tokens, nil
		}

		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tok.newlineBefore = newline
		l.tokens = append(l.tokens, tok)
	}
}

// skipTrivia skips whitespace and comments, reporting whether a line terminator was crossed.
func (l *lexer) skipTrivia() (bool, error) {
	newline := false
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029':
			newline = true
			l.pos += size
		case unicode.IsSpace(r) || r == '\ufeff':
			l.pos += size
		case strings.HasPrefix(l.src[l.pos:], "//"):
			end := strings.IndexAny(l.src[l.pos:], "\r\n")
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return newline, &SyntaxError{Offset: l.pos, Message: "unterminated block comment"}
			}
			if strings.ContainsAny(l.src[l.pos:l.pos+2+end], "\r\n") {
				newline = true
			}
			l.pos += end + 4
		default:
			return newline, nil
		}
	}
	return newline, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '\u200c' || r == '\u200d'
}

func (l *lexer) next() (token, error) {
	start := l.pos
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])

	switch {
	case isIdentStart(r):
		l.pos += size
		for l.pos < len(l.src) {
			r, size = utf8.DecodeRuneInString(l.src[l.pos:])
			if !isIdentPart(r) {
				break
			}
			l.pos += size
		}
		return token{kind: tokenIdent, text: l.src[start:l.pos], offset: start}, nil
	case r >= '0' && r <= '9', r == '.' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9':
		return l.number()
	case r == '"' || r == '\'':
		return l.string(byte(r))
	case strings.ContainsRune(punctuators, r):
		l.pos += size
		return token{kind: tokenPunct, text: string(r), offset: start}, nil
	}
	return token{}, &SyntaxError{Offset: start, Message: fmt.Sprintf("unexpected character %q", r)}
}

func (l *lexer) number() (token, error) {
	start := l.pos
	src := l.src

	if strings.HasPrefix(src[l.pos:], "0x") || strings.HasPrefix(src[l.pos:], "0X") {
		l.pos += 2
		digits := l.pos
		for l.pos < len(src) && strings.IndexByte("0123456789abcdefABCDEF", src[l.pos]) >= 0 {
			l.pos++
		}
		value, err := strconv.ParseUint(src[digits:l.pos], 16, 64)
		if err != nil {
			return token{}, &SyntaxError{Offset: start, Message: "invalid hex literal"}
		}
		return token{kind: tokenNumber, number: float64(value), offset: start}, nil
	}

	digitsRun := func() {
		for l.pos < len(src) && src[l.pos] >= '0' && src[l.pos] <= '9' {
			l.pos++
		}
	}
	digitsRun()
	if l.pos < len(src) && src[l.pos] == '.' {
		l.pos++
		digitsRun()
	}
	if l.pos < len(src) && (src[l.pos] == 'e' || src[l.pos] == 'E') {
		l.pos++
		if l.pos < len(src) && (src[l.pos] == '+' || src[l.pos] == '-') {
			l.pos++
		}
		expStart := l.pos
		digitsRun()
		if expStart == l.pos {
			return token{}, &SyntaxError{Offset: start, Message: "invalid exponent"}
		}
	}
	if l.pos < len(src) {
		r, _ := utf8.DecodeRuneInString(src[l.pos:])
		if isIdentStart(r) {
			return token{}, &SyntaxError{Offset: l.pos, Message: "identifier directly after number"}
		}
	}

	value, err := strconv.ParseFloat(src[start:l.pos], 64)
	if err != nil {
		return token{}, &SyntaxError{Offset: start, Message: "invalid number literal"}
	}
	return token{kind: tokenNumber, number: value, offset: start}, nil
}

func (l *lexer) string(quote byte) (token, error) {
	start := l.pos
	l.pos++

	var sb strings.Builder
	var pendingHigh rune = -1
	flushHigh := func() {
		if pendingHigh >= 0 {
			sb.WriteRune(utf8.RuneError)
			pendingHigh = -1
		}
	}
	writeUnit := func(u rune) {
		if utf16.IsSurrogate(u) {
			if u < 0xdc00 {
				flushHigh()
				pendingHigh = u
				return
			}
			if pendingHigh >= 0 {
				sb.WriteRune(utf16.DecodeRune(pendingHigh, u))
				pendingHigh = -1
				return
			}
			sb.WriteRune(utf8.RuneError)
			return
		}
		flushHigh()
		sb.WriteRune(u)
	}

	for {
		if l.pos >= len(l.src) {
			return token{}, &SyntaxError{Offset: start, Message: "unterminated string literal"}
		}
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			flushHigh()
			return token{kind: tokenString, text: sb.String(), offset: start}, nil
		case c == '\n' || c == '\r':
			return token{}, &SyntaxError{Offset: l.pos, Message: "line break inside string literal"}
		case c == '\\':
			l.pos++
			if l.pos >= len(l.src) {
				return token{}, &SyntaxError{Offset: start, Message: "unterminated string literal"}
			}
			esc := l.src[l.pos]
			l.pos++
			switch esc {
			case 'n':
				writeUnit('\n')
			case 't':
				writeUnit('\t')
			case 'r':
				writeUnit('\r')
			case 'b':
				writeUnit('\b')
			case 'f':
				writeUnit('\f')
			case 'v':
				writeUnit('\v')
			case '0':
				writeUnit(0)
			case 'x':
				u, err := l.hexEscape(2)
				if err != nil {
					return token{}, err
				}
				writeUnit(u)
			case 'u':
				var u rune
				var err error
				if l.pos < len(l.src) && l.src[l.pos] == '{' {
					end := strings.IndexByte(l.src[l.pos:], '}')
					if end < 0 {
						return token{}, &SyntaxError{Offset: l.pos, Message: "invalid unicode escape"}
					}
					var parsed uint64
					parsed, err = strconv.ParseUint(l.src[l.pos+1:l.pos+end], 16, 32)
					if err != nil || parsed > unicode.MaxRune {
						return token{}, &SyntaxError{Offset: l.pos, Message: "invalid unicode escape"}
					}
					u = rune(parsed)
					l.pos += end + 1
				} else {
					u, err = l.hexEscape(4)
					if err != nil {
						return token{}, err
					}
				}
				writeUnit(u)
			case '\r':
				// line continuation
				if l.pos < len(l.src) && l.src[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				r, size := utf8.DecodeRuneInString(l.src[l.pos-1:])
				l.pos += size - 1
				writeUnit(r)
			}
		default:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			l.pos += size
			flushHigh()
			sb.WriteRune(r)
		}
	}
}

func (l *lexer) hexEscape(n int) (rune, error) {
	if l.pos+n > len(l.src) {
		return 0, &SyntaxError{Offset: l.pos, Message: "invalid escape sequence"}
	}
	value, err := strconv.ParseUint(l.src[l.pos:l.pos+n], 16, 32)
	if err != nil {
		return 0, &SyntaxError{Offset: l.pos, Message: "invalid escape sequence"}
	}
	l.pos += n
	return rune(value), nil
}

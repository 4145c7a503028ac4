package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/angstrom/vm"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes source text.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // line of ch (1-based)
	lineStart int  // offset of the start of ch's line
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	tok := l.scan()
	tok.Pos = pos
	tok.End = l.position()
	return tok
}

// Tokenize returns every token of input up to and including EOF or the
// first error.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return toks
		}
	}
}

var twoCharTokens = map[[2]rune]TokenType{
	{':', ':'}: TokenDoubleColon,
	{'-', '>'}: TokenArrow,
	{'=', '>'}: TokenFatArrow,
	{'=', '='}: TokenEq,
	{'!', '='}: TokenNotEq,
	{'<', '='}: TokenLessEq,
	{'>', '='}: TokenGreaterEq,
}

var oneCharTokens = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	',': TokenComma,
	';': TokenSemicolon,
	':': TokenColon,
	'.': TokenDot,
	'|': TokenBar,
	'=': TokenAssign,
	'<': TokenLess,
	'>': TokenGreater,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'!': TokenBang,
}

func (l *Lexer) scan() Token {
	ch := l.ch
	switch {
	case ch == 0:
		return Token{Type: TokenEOF}
	case isDigit(ch):
		return l.readNumber()
	case ch == '"':
		return l.readString()
	case isLetter(ch):
		return l.readIdentifier()
	case ch == '_' && !isIdentChar(l.peekChar()):
		l.readChar()
		return Token{Type: TokenUnderscore, Literal: "_"}
	case ch == '_':
		return l.readIdentifier()
	}

	if tt, ok := twoCharTokens[[2]rune{ch, l.peekChar()}]; ok {
		l.readChar()
		l.readChar()
		return Token{Type: tt, Literal: tt.String()}
	}

	if tt, ok := oneCharTokens[ch]; ok {
		l.readChar()
		return Token{Type: tt, Literal: string(ch)}
	}

	l.readChar()
	return Token{
		Type:    TokenError,
		Literal: "unexpected character " + quoteRune(ch),
		Err:     vm.ErrUnexpectedCharacter,
	}
}

// skipWhitespaceAndComments skips spaces and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

// readNumber reads digits with an optional fractional part.
func (l *Lexer) readNumber() Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos]}
}

// readString reads a double-quoted string with backslash escapes. The
// literal is the unescaped contents.
func (l *Lexer) readString() Token {
	l.readChar() // opening "
	var sb strings.Builder
	for {
		switch l.ch {
		case 0:
			return Token{Type: TokenError, Literal: "unterminated string", Err: vm.ErrUnterminatedString}
		case '"':
			l.readChar()
			return Token{Type: TokenString, Literal: sb.String()}
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case 0:
				return Token{Type: TokenError, Literal: "unterminated string", Err: vm.ErrUnterminatedString}
			default:
				sb.WriteRune(l.ch)
			}
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for isIdentChar(l.ch) {
		l.readChar()
	}
	word := l.input[start:l.pos]
	if tt, ok := reservedWords[word]; ok {
		return Token{Type: tt, Literal: word}
	}
	return Token{Type: TokenIdentifier, Literal: word}
}

func isLetter(r rune) bool    { return unicode.IsLetter(r) }
func isDigit(r rune) bool     { return r >= '0' && r <= '9' }
func isIdentChar(r rune) bool { return isLetter(r) || isDigit(r) || r == '_' }

func quoteRune(r rune) string {
	if r == 0 {
		return "EOF"
	}
	return "'" + string(r) + "'"
}

package compiler

import (
	"fmt"
	"sort"

	"github.com/chazu/angstrom/vm"
)

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 3.14
	TokenString     // "hello"
	TokenIdentifier // foo, Point
	TokenUnderscore // _

	// Delimiters
	TokenLParen      // (
	TokenRParen      // )
	TokenLBracket    // [
	TokenRBracket    // ]
	TokenLBrace      // {
	TokenRBrace      // }
	TokenComma       // ,
	TokenSemicolon   // ;
	TokenColon       // :
	TokenDoubleColon // ::
	TokenDot         // .
	TokenBar         // |
	TokenArrow       // ->
	TokenFatArrow    // =>

	// Operators
	TokenAssign    // =
	TokenEq        // ==
	TokenNotEq     // !=
	TokenLess      // <
	TokenGreater   // >
	TokenLessEq    // <=
	TokenGreaterEq // >=
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenBang      // !

	// Keywords
	TokenVar
	TokenFn
	TokenMatch
	TokenTypeKw
	TokenReturn
	TokenTrue
	TokenFalse
	TokenNil
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenNumber:      "NUMBER",
	TokenString:      "STRING",
	TokenIdentifier:  "IDENTIFIER",
	TokenUnderscore:  "_",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenComma:       ",",
	TokenSemicolon:   ";",
	TokenColon:       ":",
	TokenDoubleColon: "::",
	TokenDot:         ".",
	TokenBar:         "|",
	TokenArrow:       "->",
	TokenFatArrow:    "=>",
	TokenAssign:      "=",
	TokenEq:          "==",
	TokenNotEq:       "!=",
	TokenLess:        "<",
	TokenGreater:     ">",
	TokenLessEq:      "<=",
	TokenGreaterEq:   ">=",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenBang:        "!",
	TokenVar:         "var",
	TokenFn:          "fn",
	TokenMatch:       "match",
	TokenTypeKw:      "type",
	TokenReturn:      "return",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenNil:         "nil",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the message for TokenError
	Pos     Position // start position
	End     Position // position just past the token

	// Err classifies a TokenError.
	Err vm.ErrorCode
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"var":    TokenVar,
	"fn":     TokenFn,
	"match":  TokenMatch,
	"type":   TokenTypeKw,
	"return": TokenReturn,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"nil":    TokenNil,
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool {
	_, ok := reservedWords[s]
	return ok
}

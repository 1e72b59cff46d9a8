package dsl

import (
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// Tokenizer
// =============================================================================

// Tokenize lexes group definition text into a flat token stream terminated
// by a TokenEOF marker. Whitespace separates tokens and is otherwise skipped.
func Tokenize(text string) ([]Token, error) {
	tokens := make([]Token, 0, 8)
	pos := 0

	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])

		switch {
		case unicode.IsSpace(r):
			pos += size

		case r == ':':
			tokens = append(tokens, Token{Kind: TokenColon, Text: ":", Pos: pos})
			pos += size

		case r == '&':
			tokens = append(tokens, Token{Kind: TokenAmpersand, Text: "&", Pos: pos})
			pos += size

		case r == '=':
			tokens = append(tokens, Token{Kind: TokenEquals, Text: "=", Pos: pos})
			pos += size

		case r == '"' || r == '\'':
			tok, next, err := lexLiteral(text, pos, r)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			pos = next

		case isIdentStart(r):
			tok, next := lexIdent(text, pos)
			tokens = append(tokens, tok)
			pos = next

		default:
			return nil, &LexError{Offset: pos, Char: r}
		}
	}

	tokens = append(tokens, Token{Kind: TokenEOF, Pos: len(text)})
	return tokens, nil
}

// lexIdent consumes an identifier starting at pos and returns the token and
// the offset just past it.
func lexIdent(text string, pos int) (Token, int) {
	start := pos
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !isIdentPart(r) {
			break
		}
		pos += size
	}
	return Token{Kind: TokenIdent, Text: text[start:pos], Pos: start}, pos
}

// lexLiteral consumes a quoted literal. The token text excludes the quotes.
func lexLiteral(text string, pos int, quote rune) (Token, int, error) {
	start := pos
	pos++ // opening quote
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if r == quote {
			return Token{Kind: TokenLiteral, Text: text[start+1 : pos], Pos: start}, pos + size, nil
		}
		pos += size
	}
	return Token{}, 0, NewParseError(start, text[start:], "unclosed string literal", ErrUnclosedLiteral)
}

// isIdentStart reports whether r can begin an identifier.
func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// isIdentPart reports whether r can appear inside an identifier. Dots and
// dashes are allowed so references like "my-http" and "log.sink" lex as one
// identifier.
func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

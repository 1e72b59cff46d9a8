package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Tokenize Tests
// =============================================================================

func TestTokenize_Empty(t *testing.T) {
	tokens, err := Tokenize("")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenEOF, tokens[0].Kind)
}

func TestTokenize_WhitespaceOnly(t *testing.T) {
	tokens, err := Tokenize("   \t\n  ")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenEOF, tokens[0].Kind)
}

func TestTokenize_SingleIdent(t *testing.T) {
	tokens, err := Tokenize("mainstream")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, TokenIdent, tokens[0].Kind)
	assert.Equal(t, "mainstream", tokens[0].Text)
	assert.Equal(t, 0, tokens[0].Pos)
}

func TestTokenize_IdentWithDotsAndDashes(t *testing.T) {
	tokens, err := Tokenize("my-http.v2_final")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "my-http.v2_final", tokens[0].Text)
}

func TestTokenize_MemberWithKindLabel(t *testing.T) {
	tokens, err := Tokenize("myHttp:stream")
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, TokenIdent, tokens[0].Kind)
	assert.Equal(t, "myHttp", tokens[0].Text)
	assert.Equal(t, TokenColon, tokens[1].Kind)
	assert.Equal(t, TokenIdent, tokens[2].Kind)
	assert.Equal(t, "stream", tokens[2].Text)
	assert.Equal(t, TokenEOF, tokens[3].Kind)
}

func TestTokenize_FullDefinition(t *testing.T) {
	tokens, err := Tokenize("foo = bar:stream & baz:task")
	require.NoError(t, err)

	kinds := make([]TokenKind, 0, len(tokens))
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []TokenKind{
		TokenIdent, TokenEquals,
		TokenIdent, TokenColon, TokenIdent,
		TokenAmpersand,
		TokenIdent, TokenColon, TokenIdent,
		TokenEOF,
	}, kinds)
}

func TestTokenize_NoWhitespaceBetweenTokens(t *testing.T) {
	tokens, err := Tokenize("a&b")
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, "a", tokens[0].Text)
	assert.Equal(t, TokenAmpersand, tokens[1].Kind)
	assert.Equal(t, "b", tokens[2].Text)
}

func TestTokenize_Positions(t *testing.T) {
	tokens, err := Tokenize("ab & cd")
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, 0, tokens[0].Pos)
	assert.Equal(t, 3, tokens[1].Pos)
	assert.Equal(t, 5, tokens[2].Pos)
	assert.Equal(t, 7, tokens[3].Pos)
}

// =============================================================================
// Literal Tests
// =============================================================================

func TestTokenize_DoubleQuotedLiteral(t *testing.T) {
	tokens, err := Tokenize(`"hello world"`)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, TokenLiteral, tokens[0].Kind)
	assert.Equal(t, "hello world", tokens[0].Text)
}

func TestTokenize_SingleQuotedLiteral(t *testing.T) {
	tokens, err := Tokenize("'a & b'")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, TokenLiteral, tokens[0].Kind)
	assert.Equal(t, "a & b", tokens[0].Text)
}

func TestTokenize_UnclosedLiteral(t *testing.T) {
	_, err := Tokenize(`"never closed`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnclosedLiteral)
}

// =============================================================================
// Lex Error Tests
// =============================================================================

func TestTokenize_UnexpectedChar(t *testing.T) {
	_, err := Tokenize("foo | bar")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedChar)

	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 4, lexErr.Offset)
	assert.Equal(t, '|', lexErr.Char)
}

func TestTokenize_UnexpectedCharAtStart(t *testing.T) {
	_, err := Tokenize("#comment")
	require.Error(t, err)

	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 0, lexErr.Offset)
}

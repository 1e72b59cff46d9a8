package dsl

// =============================================================================
// Definition Kinds
// =============================================================================

// Kind is the category of sub-definition a member reference points at.
type Kind string

const (
	KindStream     Kind = "stream"
	KindTask       Kind = "task"
	KindStandalone Kind = "standalone"
	KindGroup      Kind = "group"
)

// ValidKinds returns the closed set of definition kinds in a stable order.
func ValidKinds() []Kind {
	return []Kind{KindStream, KindTask, KindStandalone, KindGroup}
}

// ParseKind resolves a raw kind label. The match is case-sensitive; an
// unrecognized label returns false.
func ParseKind(label string) (Kind, bool) {
	switch Kind(label) {
	case KindStream, KindTask, KindStandalone, KindGroup:
		return Kind(label), true
	}
	return "", false
}

// =============================================================================
// Tokens
// =============================================================================

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenColon
	TokenAmpersand
	TokenEquals
	TokenLiteral
	TokenEOF
)

// String returns a human-readable token kind name for error messages.
func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "identifier"
	case TokenColon:
		return "':'"
	case TokenAmpersand:
		return "'&'"
	case TokenEquals:
		return "'='"
	case TokenLiteral:
		return "literal"
	case TokenEOF:
		return "end of input"
	default:
		return "unknown"
	}
}

// Token is one immutable lexical unit, produced in source order.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int // byte offset of the first character
}

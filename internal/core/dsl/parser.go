package dsl

import (
	"fmt"
	"unicode"
)

// =============================================================================
// Parser
// =============================================================================

// The grammar is small enough for single-token lookahead:
//
//	group  := [ IDENT '=' ] member ( '&' member )*
//	member := IDENT [ ':' IDENT ]
//
// A bare member name doubles as its kind label, so "mainstream = stream"
// declares one member named "stream" of kind stream.

// Parse parses group definition text into a GroupNode. Every member of the
// returned tree has a resolved Kind; a label outside the known kind set fails
// the whole parse with an UnknownKindError.
func Parse(text string) (GroupNode, error) {
	node, err := parseGroup(text)
	if err != nil {
		return GroupNode{}, err
	}
	for i := range node.Members {
		kind, ok := ParseKind(node.Members[i].Label)
		if !ok {
			return GroupNode{}, &UnknownKindError{
				Offending:   node.Members[i].Label,
				MemberIndex: i,
				Offset:      node.Members[i].Pos,
				ValidKinds:  ValidKinds(),
			}
		}
		node.Members[i].Kind = kind
	}
	return node, nil
}

// parseGroup runs the grammar without the kind resolution pass.
func parseGroup(text string) (GroupNode, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return GroupNode{}, err
	}

	p := &parser{tokens: tokens}
	if p.at(TokenEOF) {
		return GroupNode{}, NewParseError(0, "", "group definition is empty", ErrEmptyInput)
	}

	node := GroupNode{Source: text}

	// "name =" prefix, detected by lookahead so the first member of an
	// anonymous definition is not mistaken for a group name.
	if p.at(TokenIdent) && p.peek(1).Kind == TokenEquals {
		name := p.advance()
		if err := checkGroupName(name); err != nil {
			return GroupNode{}, err
		}
		node.Name = name.Text
		p.advance() // '='
	}

	member, err := p.parseMember()
	if err != nil {
		return GroupNode{}, err
	}
	node.Members = append(node.Members, member)

	for p.at(TokenAmpersand) {
		p.advance()
		member, err := p.parseMember()
		if err != nil {
			return GroupNode{}, err
		}
		node.Members = append(node.Members, member)
	}

	if !p.at(TokenEOF) {
		tok := p.current()
		return GroupNode{}, NewParseError(tok.Pos, tok.Text, "unexpected trailing input", ErrTrailingInput)
	}

	return node, nil
}

// parser is a cursor over the token stream. The stream always ends with a
// TokenEOF, so current() never runs off the slice.
type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

// peek returns the token n positions ahead, or the EOF token when the
// lookahead runs past the stream.
func (p *parser) peek(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) at(kind TokenKind) bool {
	return p.current().Kind == kind
}

// advance consumes the current token and returns it. The EOF token is never
// consumed.
func (p *parser) advance() Token {
	tok := p.current()
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

// parseMember parses a single member reference: IDENT [ ':' IDENT ]. The
// label defaults to the member name when the ':' suffix is absent.
func (p *parser) parseMember() (MemberNode, error) {
	if !p.at(TokenIdent) {
		tok := p.current()
		return MemberNode{}, NewParseError(tok.Pos, tok.Text,
			"expected a member reference, found "+tok.Kind.String(), ErrExpectedMember)
	}
	name := p.advance()
	member := MemberNode{
		Name:  name.Text,
		Label: name.Text,
		Pos:   name.Pos,
		End:   name.Pos + len(name.Text),
	}

	if p.at(TokenColon) {
		p.advance()
		if !p.at(TokenIdent) {
			tok := p.current()
			return MemberNode{}, NewParseError(tok.Pos, tok.Text,
				"expected a kind label after ':', found "+tok.Kind.String(), ErrExpectedKindLabel)
		}
		label := p.advance()
		member.Label = label.Text
		member.End = label.Pos + len(label.Text)
	}

	return member, nil
}

// checkGroupName rejects group names that cannot round-trip through the
// definition grammar, such as names starting with a digit. The token text
// already passed the lexer's identifier rules.
func checkGroupName(tok Token) error {
	for _, r := range tok.Text {
		if unicode.IsDigit(r) {
			return NewParseError(tok.Pos, tok.Text, "group name must not start with a digit", ErrIllegalName)
		}
		break
	}
	return nil
}

// ValidateName checks a group name supplied outside the definition text
// against the same rules the parser applies to an inline "name =" prefix.
func ValidateName(name string) error {
	if name == "" {
		return NewParseError(0, "", "group name is empty", ErrIllegalName)
	}
	for i, r := range name {
		if i == 0 {
			if unicode.IsDigit(r) {
				return NewParseError(0, name, "group name must not start with a digit", ErrIllegalName)
			}
			if !isIdentStart(r) {
				return NewParseError(0, name, "group name must start with a letter or underscore", ErrIllegalName)
			}
			continue
		}
		if !isIdentPart(r) {
			return NewParseError(i, name, fmt.Sprintf("group name contains illegal character %q", r), ErrIllegalName)
		}
	}
	return nil
}

// Package properties parses deployment property lists and scopes them to
// individual group members. This is part of the Functional Core - all
// functions are pure with no I/O.
package properties

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// WildcardPrefix scopes a property to every member of a group.
const WildcardPrefix = "app.*."

// ErrMalformedProperty reports a list entry without a '=' separator.
var ErrMalformedProperty = errors.New("property must be in key=value format")

// ParseList parses a comma-delimited "key=value,key=value" deployment
// property string into a map. Keys and values are trimmed; empty segments
// between commas are skipped; an empty input yields an empty map.
func ParseList(list string) (map[string]string, error) {
	props := make(map[string]string)
	if strings.TrimSpace(list) == "" {
		return props, nil
	}

	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedProperty, pair)
		}
		props[key] = strings.TrimSpace(value)
	}

	return props, nil
}

// ScopeForMember extracts the property subset that applies to one member.
// Wildcard "app.*." entries apply first, then "app.<member>." entries so a
// member-specific value overrides the wildcard. Prefixes are stripped from
// the returned keys. Keys scoped to other members, and unprefixed keys, do
// not leak through.
func ScopeForMember(props map[string]string, member string) map[string]string {
	scoped := make(map[string]string)
	copyWithPrefix(props, scoped, WildcardPrefix)
	copyWithPrefix(props, scoped, memberPrefix(member))
	return scoped
}

func memberPrefix(member string) string {
	return fmt.Sprintf("app.%s.", member)
}

func copyWithPrefix(src, dst map[string]string, prefix string) {
	for key, value := range src {
		if strings.HasPrefix(key, prefix) {
			dst[strings.TrimPrefix(key, prefix)] = value
		}
	}
}

// Format renders a property map back into the canonical comma-delimited
// list form with keys in lexical order.
func Format(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(props[key])
	}
	return b.String()
}

// Package privacy redacts participant data on reveal screens.
package privacy

import (
	"errors"
	"strings"
)

// MaskToken replaces the hidden part of a value.
const MaskToken = "***"

// emailPrefixLen is how many characters of an email local part stay visible.
const emailPrefixLen = 3

var ErrUnknownField = errors.New("unknown field")

// FieldKind identifies a displayed field of an entry.
type FieldKind string

const (
	Name    FieldKind = "name"
	Email   FieldKind = "email"
	Comment FieldKind = "comment"
	Date    FieldKind = "date"
)

// Kinds lists every field shown on a reveal screen, in display order.
var Kinds = []FieldKind{Name, Email, Comment, Date}

// ParseKind maps a field name to its kind.
func ParseKind(s string) (FieldKind, error) {
	k := FieldKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", ErrUnknownField
}

// Mask returns value unchanged when visible. Hidden emails keep the first
// three characters of the local part and the domain, e.g.
// "abc***@example.com"; anything else hidden, including an email without
// "@", becomes MaskToken.
func Mask(value string, kind FieldKind, visible bool) string {
	if visible {
		return value
	}
	if kind != Email {
		return MaskToken
	}

	local, domain, ok := strings.Cut(value, "@")
	if !ok {
		return MaskToken
	}
	prefix := []rune(local)
	if len(prefix) > emailPrefixLen {
		prefix = prefix[:emailPrefixLen]
	}
	return string(prefix) + MaskToken + "@" + domain
}

// FieldVisibility tracks which fields of the displayed entry are revealed.
type FieldVisibility map[FieldKind]bool

// Hidden returns a visibility with every field hidden.
func Hidden() FieldVisibility {
	v := make(FieldVisibility, len(Kinds))
	for _, k := range Kinds {
		v[k] = false
	}
	return v
}

// Toggle returns a copy of v with kind flipped.
func (v FieldVisibility) Toggle(kind FieldKind) FieldVisibility {
	out := make(FieldVisibility, len(v)+1)
	for k, visible := range v {
		out[k] = visible
	}
	out[kind] = !out[kind]
	return out
}

// Strings converts v for JSON output.
func (v FieldVisibility) Strings() map[string]bool {
	out := make(map[string]bool, len(v))
	for k, visible := range v {
		out[string(k)] = visible
	}
	return out
}

// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"fmt"
	"strings"
)

// Member is the tuple (owner?, name, descriptor?, matchAll) used
// throughout the engine to select a field or method reference. Ownership
// is optional when a selector is allowed to float across the hierarchy;
// descriptor is optional when a selector may match by name alone.
type Member struct {
	Owner      string // internal class name, empty if unset
	Name       string
	Descriptor string // empty if unset
	MatchAll   bool   // true if Name is the wildcard "*"
}

// ParseMember parses a reference string in one of the forms:
//
//	Lowner;name(argdesc)ret
//	owner.name(argdesc)ret
//	name(argdesc)ret
//	Lowner;name
//	name
//
// Any of owner/descriptor may be absent; name "*" sets MatchAll.
func ParseMember(s string) (Member, error) {
	m := Member{}
	s = strings.TrimSpace(s)
	if s == "" {
		return m, fmt.Errorf("empty member reference")
	}

	if strings.HasPrefix(s, "L") {
		end := strings.Index(s, ";")
		if end < 0 {
			return m, fmt.Errorf("unterminated owner in member reference %q", s)
		}
		m.Owner = s[1:end]
		s = s[end+1:]
	} else if idx := lastOwnerDot(s); idx >= 0 {
		m.Owner = strings.ReplaceAll(s[:idx], ".", "/")
		s = s[idx+1:]
	}

	if i := strings.IndexByte(s, '('); i >= 0 {
		m.Name = s[:i]
		m.Descriptor = s[i:]
	} else {
		m.Name = s
	}

	if m.Name == "" {
		return m, fmt.Errorf("member reference %q has no name", s)
	}
	m.MatchAll = m.Name == "*"
	return m, nil
}

// lastOwnerDot locates the '.' separating an owner prefix from the member
// name, i.e. the last dot that occurs before any '(' in s. Returns -1 if
// there is no such separator (s is a bare name/descriptor).
func lastOwnerDot(s string) int {
	paren := strings.IndexByte(s, '(')
	search := s
	if paren >= 0 {
		search = s[:paren]
	}
	return strings.LastIndexByte(search, '.')
}

// String renders the member back to its canonical Lowner;name(desc)ret
// form, omitting parts that are unset.
func (m Member) String() string {
	var b strings.Builder
	if m.Owner != "" {
		b.WriteByte('L')
		b.WriteString(m.Owner)
		b.WriteByte(';')
	}
	b.WriteString(m.Name)
	b.WriteString(m.Descriptor)
	return b.String()
}

// MatchesName reports whether m selects the given name, honoring the "*"
// wildcard.
func (m Member) MatchesName(name string) bool {
	return m.MatchAll || m.Name == name
}

// MatchesDescriptor reports whether m's descriptor constraint (if any)
// allows the given descriptor.
func (m Member) MatchesDescriptor(desc string) bool {
	return m.Descriptor == "" || m.Descriptor == desc
}

// MatchesOwner reports whether m's owner constraint (if any) allows the
// given owner.
func (m Member) MatchesOwner(owner string) bool {
	return m.Owner == "" || m.Owner == owner
}

// Matches reports whether m selects the given fully qualified member.
func (m Member) Matches(owner, name, desc string) bool {
	return m.MatchesOwner(owner) && m.MatchesName(name) && m.MatchesDescriptor(desc)
}

// SplitDescriptor breaks a method descriptor "(args)ret" into its
// parameter type slice and return type. Types are returned in JVM
// descriptor form (e.g. "I", "Ljava/lang/String;", "[I").
func SplitDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, "", fmt.Errorf("invalid method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		start := i
		for desc[i] == '[' {
			i++
		}
		switch desc[i] {
		case 'L':
			for desc[i] != ';' {
				i++
			}
			i++
		default:
			i++
		}
		params = append(params, desc[start:i])
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("unterminated method descriptor %q", desc)
	}
	ret = desc[i+1:]
	return params, ret, nil
}

// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

// LocalSelector discriminates which local-variable slot a LOAD/STORE
// injection point, or a @ModifyVariable/@ModifyArg(s) injector, refers
// to (§4.8). Precedence, highest first: explicit Names against the
// method's local-variable table, explicit Index (absolute slot), Ordinal
// (the Nth local of a matching type among candidates), and finally
// ArgsOnly (restrict candidates to method-parameter locals only,
// excluding the receiver and any locals introduced by earlier code).
type LocalSelector struct {
	Names   []string
	Index   int // -1 if unset
	Ordinal int // -1 if unset
	Type    VarType
	HasType bool
	ArgsOnly bool
}

// NewLocalSelector returns a selector matching every local of any type
// (index/ordinal unset), the widest possible (and therefore least safe)
// default.
func NewLocalSelector() LocalSelector {
	return LocalSelector{Index: -1, Ordinal: -1}
}

// Matches reports whether n (a LOAD or STORE instruction) satisfies the
// selector. Because the method's local-variable table may be absent
// (debug info is optional), a Names-based selector with no table
// available is always considered ambiguous and refused by the caller
// rather than silently falling through to an index-based guess — callers
// should check HasNames and the owning method's LocalVars themselves
// before relying on a name match.
func (s LocalSelector) Matches(n *Insn) bool {
	if s.HasType && n.VarType != s.Type {
		return false
	}
	if s.Index >= 0 {
		return n.Var == s.Index
	}
	return true
}

// HasNames reports whether the selector discriminates by name.
func (s LocalSelector) HasNames() bool { return len(s.Names) > 0 }

// ResolveNames looks up s.Names against method's local-variable table and
// returns the matching slot indices active at point. It is a fatal
// ambiguity (per §4.8's "implicit match must be unambiguous" rule) for
// more than one table entry to match the same name at the same point;
// callers surface that as an InvalidInjectionError.
func (s LocalSelector) ResolveNames(method *Method, point *Insn) ([]int, bool) {
	if !s.HasNames() {
		return nil, false
	}
	pos := method.Insns.Index(point)
	var out []int
	seen := map[int]bool{}
	for _, want := range s.Names {
		for _, lv := range method.LocalVars {
			if lv.Name != want {
				continue
			}
			if pos >= 0 && !localVarLiveAt(method, lv, pos) {
				continue
			}
			if !seen[lv.Index] {
				seen[lv.Index] = true
				out = append(out, lv.Index)
			}
		}
	}
	return out, len(out) > 0
}

func localVarLiveAt(method *Method, lv LocalVar, pos int) bool {
	startPos, endPos := -1, method.Insns.Len()
	if lv.Start != nil {
		startPos = method.Insns.Index(lv.Start)
	}
	if lv.End != nil {
		endPos = method.Insns.Index(lv.End)
	}
	return pos >= startPos && pos < endPos
}

// OrdinalCandidates filters method's argument locals (skipping the
// implicit receiver slot on an instance method) to those of type t, in
// slot order, for an Ordinal-based selector with ArgsOnly set.
func OrdinalCandidates(method *Method, t VarType) []int {
	params, _, err := SplitDescriptor(method.Desc)
	if err != nil {
		return nil
	}
	slot := 0
	if !method.IsStatic() {
		slot = 1
	}
	var out []int
	for _, p := range params {
		pt := varTypeFromDesc(p)
		if pt == t {
			out = append(out, slot)
		}
		slot += localWidth(pt)
	}
	return out
}

// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

// RootClass is the stack-machine's root object type, returned by the
// common-superclass policy whenever one side of the comparison is an
// interface (§4.1).
const RootClass = "java/lang/Object"

// FrameComputer implements the common-superclass policy of §4.1 and the
// post-apply max-stack/max-locals recomputation of §4.6.8. It delegates
// ancestry questions to a ClassInfoCache, which is itself the only
// component aware of mixin-declared logical supertypes.
type FrameComputer struct {
	Cache *ClassInfoCache
}

// CommonSuperClass walks each side's superclass chain (following
// mixin-declared logical supertypes through the cache) and returns the
// deepest ancestor common to both. Ties are broken by the earlier
// ancestor on a's chain. If either side cannot be resolved, it falls back
// to RootClass rather than failing the whole emit (emitting conservative
// frames is preferable to aborting a cycle over an unrelated hierarchy
// gap).
func (fc *FrameComputer) CommonSuperClass(a, b string) string {
	if a == b {
		return a
	}
	if fc == nil || fc.Cache == nil {
		return RootClass
	}

	aInfo, aErr := fc.Cache.forName(a)
	bInfo, bErr := fc.Cache.forName(b)
	if aErr != nil || bErr != nil {
		return RootClass
	}
	if aInfo.IsInterface || bInfo.IsInterface {
		return RootClass
	}

	// Each chain includes the class itself: one side may be the other's
	// ancestor.
	aChain := append([]string{a}, fc.Cache.superChain(a, TraversalBoth)...)
	bSet := map[string]bool{b: true}
	for _, name := range fc.Cache.superChain(b, TraversalBoth) {
		bSet[name] = true
	}
	for _, name := range aChain {
		if bSet[name] {
			return name
		}
	}
	return RootClass
}

// Recompute walks method's instruction list, tracking a conservative
// abstract stack-depth and local-variable liveness, and widens MaxStack
// and MaxLocals to the largest value observed. It never narrows an
// existing, larger declared value: a mixin author's explicit sizing is
// respected, this only grows what the applicator's own insertions
// require.
func (fc *FrameComputer) Recompute(class *Class, method *Method) {
	depth, maxDepth := 0, method.MaxStack
	maxLocal := method.MaxLocals

	push := func(n int) {
		depth += n
		if depth > maxDepth {
			maxDepth = depth
		}
		if depth < 0 {
			depth = 0
		}
	}

	for n := method.Insns.Head(); n != nil; n = n.Next() {
		switch {
		case n.Op.IsInvoke():
			params, ret, err := SplitDescriptor(n.Desc)
			if err == nil {
				args := len(params)
				if n.Op != OpInvokeStatic {
					args++ // implicit receiver
				}
				push(-args)
				if ret != "" && ret != "V" {
					push(1)
				}
			}
		case n.Op.IsFieldAccess():
			switch n.Op {
			case OpGetStatic:
				push(1)
			case OpPutStatic:
				push(-1)
			case OpGetField:
				push(0) // pop owner, push value
			case OpPutField:
				push(-2)
			}
		case n.Op == OpNew:
			push(1)
		case n.Op == OpDup:
			push(1)
		case n.Op == OpCheckCast, n.Op == OpInstanceOf:
			push(0)
		case n.Op == OpANewArray:
			push(0)
		case n.Op.IsLoad():
			push(1)
			if width := localWidth(n.VarType); n.Var+width > maxLocal {
				maxLocal = n.Var + width
			}
		case n.Op.IsStore():
			push(-1)
			if width := localWidth(n.VarType); n.Var+width > maxLocal {
				maxLocal = n.Var + width
			}
		case n.Op.IsConstant():
			if n.Op != OpAConstNull {
				push(1)
			} else {
				push(1)
			}
		case n.Op.IsJump():
			if n.Op != OpGoto {
				push(-1)
			}
		case n.Op.IsReturn():
			if n.Op != OpReturn {
				push(-1)
			}
		}
	}

	method.MaxStack = maxDepth
	method.MaxLocals = maxLocal
}

func localWidth(t VarType) int {
	if t == TypeLong || t == TypeDouble {
		return 2
	}
	return 1
}

// TraversalKind directs a hierarchy walk to follow either the "real"
// superclass chain, a mixin's declared logical chain, or both (§4.3).
type TraversalKind int

const (
	TraversalReal TraversalKind = iota
	TraversalLogical
	TraversalBoth
)

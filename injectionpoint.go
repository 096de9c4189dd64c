// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// InjectionPointKind names one of the twelve injection-point selector
// kinds of §4.7.
type InjectionPointKind string

const (
	PointHead          InjectionPointKind = "HEAD"
	PointReturn        InjectionPointKind = "RETURN"
	PointTail          InjectionPointKind = "TAIL"
	PointInvoke        InjectionPointKind = "INVOKE"
	PointInvokeAssign  InjectionPointKind = "INVOKE_ASSIGN"
	PointInvokeString  InjectionPointKind = "INVOKE_STRING"
	PointField         InjectionPointKind = "FIELD"
	PointNew           InjectionPointKind = "NEW"
	PointJump          InjectionPointKind = "JUMP"
	PointConstant      InjectionPointKind = "CONSTANT"
	PointLoad          InjectionPointKind = "LOAD"
	PointStore         InjectionPointKind = "STORE"
)

// ZeroCondition names one of the implicit-zero comparison-branch
// expansions a CONSTANT injection point can opt into (§4.7, §8 testable
// property 7): a CONSTANT point for integer zero additionally matches
// the IF* branches that compare an int against zero using that
// relation, since javac may emit either the direct or the negated
// opcode depending on how the surrounding if/else was shaped.
type ZeroCondition int

const (
	ZeroConditionNone ZeroCondition = iota
	ZeroConditionEqualZero
	ZeroConditionNotEqualZero
	ZeroConditionLessThanZero
	ZeroConditionGreaterThanZero
	ZeroConditionGreaterOrEqualZero
	ZeroConditionLessOrEqualZero
)

// opcodes returns the IF* opcodes this condition expands a zero constant
// match to; both the direct and the logically-negated opcode are
// included because the two are interchangeable depending on whether the
// compiler took the branch-taken or branch-skipped path.
func (z ZeroCondition) opcodes() []Opcode {
	switch z {
	case ZeroConditionEqualZero, ZeroConditionNotEqualZero:
		return []Opcode{OpIfEq, OpIfNe}
	case ZeroConditionLessThanZero, ZeroConditionGreaterOrEqualZero:
		return []Opcode{OpIfLt, OpIfGe}
	case ZeroConditionGreaterThanZero, ZeroConditionLessOrEqualZero:
		return []Opcode{OpIfGt, OpIfLe}
	default:
		return nil
	}
}

// Shift moves a matched coordinate relative to the matched instruction
// before the injector acts on it (§4.7). BEFORE (the default) keeps the
// matched node itself; AFTER moves to the following instruction; BY
// moves by a signed instruction count, clamped at the list ends.
type Shift int

const (
	ShiftNone Shift = iota
	ShiftBefore
	ShiftAfter
	ShiftBy
)

// shiftByCap is the hard bound on a BY shift's magnitude; values past
// the recommended ±3 draw a warning diagnostic, values past the cap are
// refused at parse time.
const shiftByCap = 8

// MatchLimit is a selector-suffix constraint on how many of a point's
// matches are kept (§4.7): FIRST keeps only the first, LAST only the
// last, ONE requires exactly one match and fails otherwise.
type MatchLimit int

const (
	LimitNone MatchLimit = iota
	LimitFirst
	LimitLast
	LimitOne
)

// InjectionPoint is a parsed selector: the kind of coordinate it finds,
// the member/constant/ordinal it narrows to, and the shift/slice
// modifiers applied to its raw matches.
type InjectionPoint struct {
	Kind InjectionPointKind

	// Target narrows INVOKE/INVOKE_ASSIGN/INVOKE_STRING/FIELD/NEW matches
	// to a specific member reference; empty matches every instruction of
	// the kind.
	Target Member

	// ConstantValue narrows a CONSTANT point to a specific literal; nil
	// matches every constant load.
	ConstantValue any

	// ExpandZeroConditions, when set alongside an integer-zero
	// ConstantValue, additionally matches the implicit-zero comparison
	// branches of §4.7/§8 property 7.
	ExpandZeroConditions ZeroCondition

	// StringValue narrows an INVOKE_STRING point to calls whose first
	// String-typed argument equals this literal.
	StringValue string

	// Local narrows LOAD/STORE per the discriminator of
	// §4.8.
	Local LocalSelector

	Ordinal int // -1 selects every match; a single value selects the Nth
	Shift   Shift
	By      int        // instruction count for Shift == ShiftBy
	Limit   MatchLimit // selector-suffix constraint (:FIRST/:LAST/:ONE)
	Slice   string     // named slice region this point is confined to, "" for the whole method
}

// Find returns every instruction in method matching ip, confined to
// slice if one is set, in method order, after ordinal/shift filtering
// has been applied.
func (ip InjectionPoint) Find(method *Method, slices map[string]SliceRegion) ([]*Insn, error) {
	region, err := ip.resolveSlice(method, slices)
	if err != nil {
		return nil, err
	}

	var raw []*Insn
	for n := region.start(method); n != region.end(method); n = n.Next() {
		if ip.matches(method, n) {
			raw = append(raw, n)
		}
	}

	shifted := make([]*Insn, 0, len(raw))
	for _, n := range raw {
		shifted = append(shifted, ip.applyShift(method, n))
	}

	if ip.Ordinal >= 0 {
		if ip.Ordinal >= len(shifted) {
			shifted = nil
		} else {
			shifted = []*Insn{shifted[ip.Ordinal]}
		}
	}
	return ip.applyLimit(shifted)
}

// applyLimit enforces the selector-suffix constraint on the final match
// set (§4.7): FIRST/LAST narrow to one end, ONE demands exactly one.
func (ip InjectionPoint) applyLimit(matches []*Insn) ([]*Insn, error) {
	switch ip.Limit {
	case LimitFirst:
		if len(matches) > 1 {
			return matches[:1], nil
		}
	case LimitLast:
		if len(matches) > 1 {
			return matches[len(matches)-1:], nil
		}
	case LimitOne:
		if len(matches) != 1 {
			return nil, fmt.Errorf("mixin: selector suffix :ONE requires exactly one match, found %d", len(matches))
		}
	}
	return matches, nil
}

func (ip InjectionPoint) resolveSlice(method *Method, slices map[string]SliceRegion) (SliceRegion, error) {
	if ip.Slice == "" {
		return SliceRegion{}, nil
	}
	region, ok := slices[ip.Slice]
	if !ok {
		return SliceRegion{}, fmt.Errorf("mixin: undefined slice %q", ip.Slice)
	}
	return region, nil
}

func (ip InjectionPoint) applyShift(method *Method, n *Insn) *Insn {
	switch ip.Shift {
	case ShiftBy:
		cur := n
		for i := ip.By; i > 0 && cur.Next() != nil; i-- {
			cur = cur.Next()
		}
		for i := ip.By; i < 0 && cur.Prev() != nil; i++ {
			cur = cur.Prev()
		}
		return cur
	case ShiftAfter:
		if n.Op.IsInvoke() {
			// §9: coercion-after-invoke is treated as part of the invoke
			// for shift=AFTER, so the shifted coordinate is the
			// instruction after any immediate CHECKCAST coercing the
			// call's return value, not the raw next instruction.
			after := n.Next()
			if after != nil && after.Op == OpCheckCast {
				if next := after.Next(); next != nil {
					return next
				}
			}
			if after != nil {
				return after
			}
			return n
		}
		if next := n.Next(); next != nil {
			return next
		}
		return n
	default:
		return n
	}
}

func (ip InjectionPoint) matches(method *Method, n *Insn) bool {
	switch ip.Kind {
	case PointHead:
		return n == headInsn(method)
	case PointTail:
		return n.Op.IsReturn() && n.Next() == nil
	case PointReturn:
		return n.Op.IsReturn() && n.Next() != nil
	case PointInvoke, PointInvokeAssign:
		if !n.Op.IsInvoke() {
			return false
		}
		if !ip.Target.Matches(n.Owner, n.Name, n.Desc) {
			return false
		}
		if ip.Kind == PointInvokeAssign {
			_, ret, err := SplitDescriptor(n.Desc)
			return err == nil && ret != "" && ret != "V"
		}
		return true
	case PointInvokeString:
		if !n.Op.IsInvoke() || !ip.Target.Matches(n.Owner, n.Name, n.Desc) {
			return false
		}
		if ip.StringValue == "" {
			return true
		}
		return stringArgMatches(n, ip.StringValue)
	case PointField:
		return n.Op.IsFieldAccess() && ip.Target.Matches(n.Owner, n.Name, n.Desc)
	case PointNew:
		return n.Op == OpNew && (ip.Target.Owner == "" || ip.Target.Owner == n.Owner)
	case PointJump:
		return n.Op.IsJump()
	case PointConstant:
		if n.Op.IsConstant() {
			if ip.ConstantValue == nil {
				return true
			}
			return constantsEqual(n.Const, ip.ConstantValue)
		}
		if ip.ExpandZeroConditions != ZeroConditionNone && isIntegerZero(ip.ConstantValue) && n.Op.IsZeroComparisonBranch() {
			for _, op := range ip.ExpandZeroConditions.opcodes() {
				if n.Op == op {
					return true
				}
			}
		}
		return false
	case PointLoad:
		return n.Op.IsLoad() && ip.Local.Matches(n)
	case PointStore:
		return n.Op.IsStore() && ip.Local.Matches(n)
	default:
		return false
	}
}

// headInsn returns the first "real" instruction of method (§4.7 HEAD):
// pseudo instructions are skipped, and in a constructor so is the
// synthetic init prologue up to and including the superclass
// constructor call.
func headInsn(method *Method) *Insn {
	n := method.Insns.Head()
	if method.Name == "<init>" {
		for c := n; c != nil; c = c.Next() {
			if c.Op == OpInvokeSpecial && c.Name == "<init>" {
				n = c.Next()
				break
			}
		}
	}
	for n != nil && (n.Op == OpLabel || n.Op == OpLineNumber || n.Op == OpFrame) {
		n = n.Next()
	}
	return n
}

// isIntegerZero reports whether v is the literal integer 0, the only
// constant value the zero-comparison-branch expansion applies to.
func isIntegerZero(v any) bool {
	n, ok := asInt64(v)
	return ok && n == 0
}

// asInt64 widens any integer-typed constant to int64; the wire codec
// stores integer constants as int64 while annotation args arrive as
// int, so direct interface equality would miss.
func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	default:
		return 0, false
	}
}

// constantsEqual compares two constant values, widening integer types
// to int64 first so an int annotation literal matches an int64
// instruction constant.
func constantsEqual(a, b any) bool {
	if an, ok := asInt64(a); ok {
		bn, ok := asInt64(b)
		return ok && an == bn
	}
	return a == b
}

// stringArgMatches reports whether the nearest string LDC before an
// invoke (scanning backwards, stopping at an earlier invoke or a label)
// loads the given string literal; this is the
// approximation INVOKE_STRING uses for "the call's (a) string-typed
// argument equals value" without a full abstract interpreter (§4.7).
func stringArgMatches(invoke *Insn, value string) bool {
	for p := invoke.Prev(); p != nil; p = p.Prev() {
		if p.Op == OpLdc {
			if s, ok := p.Const.(string); ok {
				return s == value
			}
			continue
		}
		if p.Op.IsInvoke() || p.Op == OpLabel {
			break
		}
	}
	return false
}

// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// applyModifyConstant implements §4.9.5. A matched constant load is
// left in place and a call to the handler is spliced immediately after
// it, taking the constant value off the stack and replacing it with the
// handler's result. A matched zero-comparison branch (the CONSTANT
// point's expandZeroConditions expansion, §4.7) carries its zero
// implicitly, so the zero is materialized instead: push 0, pass it
// through the handler, and convert the one-operand IFxx into the
// two-operand IF_ICMPxx comparing the original value against the
// handler's result.
func applyModifyConstant(model Model, tc *TargetContext, prep *PreparedInjector) error {
	handler := prep.Spec.HandlerClone
	hp, _, err := SplitDescriptor(handler.Desc)
	if err != nil || len(hp) != 1 {
		return fmt.Errorf("@ModifyConstant handler must take exactly one argument")
	}

	for _, site := range prep.Sites {
		coord := site.current()
		if coord == nil {
			continue // removed by an earlier injector this cycle
		}
		call := &Insn{Op: redirectInvokeOp(handler), Owner: tc.Class.InternalName, Name: handler.Name, Desc: handler.Desc}
		switch {
		case coord.Op.IsConstant():
			model.InsertAfter(site.Target, coord, call)
			tc.Retarget(coord, call)
		case coord.Op.IsZeroComparisonBranch():
			model.InsertBefore(site.Target, coord,
				&Insn{Op: OpIConst, Const: int64(0)},
				call,
			)
			replacement := &Insn{Op: zeroBranchComparison(coord.Op), Label: coord.Label}
			model.Replace(site.Target, coord, replacement)
			tc.Retarget(coord, replacement)
		default:
			return fmt.Errorf("@ModifyConstant target coordinate is not a constant load")
		}
	}
	return nil
}

// zeroBranchComparison maps an implicit-zero branch to the two-operand
// comparison with the same relation, so "value IFxx" becomes
// "value, replacement IF_ICMPxx".
func zeroBranchComparison(op Opcode) Opcode {
	switch op {
	case OpIfEq:
		return OpIfICmpEq
	case OpIfNe:
		return OpIfICmpNe
	case OpIfLt:
		return OpIfICmpLt
	case OpIfGe:
		return OpIfICmpGe
	case OpIfGt:
		return OpIfICmpGt
	default:
		return OpIfICmpLe
	}
}

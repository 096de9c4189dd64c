// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// applyRedirect implements §4.9.2 @Redirect: the matched instruction
// (an INVOKE, FIELD access, or NEW) is replaced in place by a call to
// the mixin's handler. Because the operand stack already holds whatever
// values the original instruction would have consumed (the receiver and
// arguments for an invoke, the owner for a field access), swapping the
// instruction for a call to the handler with a matching descriptor is
// sufficient — no extra loads are generated.
func applyRedirect(model Model, tc *TargetContext, prep *PreparedInjector) error {
	handler := prep.Spec.HandlerClone
	for _, site := range prep.Sites {
		coord := site.current()
		if coord == nil {
			continue // removed by an earlier injector this cycle
		}
		switch {
		case coord.Op.IsInvoke(), coord.Op.IsFieldAccess(), coord.Op == OpNew:
			replacement := &Insn{
				Op:    redirectInvokeOp(handler),
				Owner: tc.Class.InternalName,
				Name:  handler.Name,
				Desc:  handler.Desc,
			}
			model.Replace(site.Target, coord, replacement)
			tc.Retarget(coord, replacement)
		default:
			return fmt.Errorf("@Redirect cannot replace a %v coordinate", coord.Op)
		}
	}
	return nil
}

func redirectInvokeOp(handler *Method) Opcode {
	if handler.IsStatic() {
		return OpInvokeStatic
	}
	return OpInvokeSpecial
}

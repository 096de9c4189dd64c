// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// applyModifyVariable implements §4.9.4: at each resolved coordinate, the
// discriminated local is loaded, passed through the handler, and stored
// back, in place.
func applyModifyVariable(model Model, tc *TargetContext, prep *PreparedInjector) error {
	handler := prep.Spec.HandlerClone
	hp, _, err := SplitDescriptor(handler.Desc)
	if err != nil || len(hp) != 1 {
		return fmt.Errorf("@ModifyVariable handler must take exactly one argument")
	}
	wantType := varTypeFromDesc(hp[0])

	for _, site := range prep.Sites {
		coord := site.current()
		if coord == nil {
			continue // removed by an earlier injector this cycle
		}
		slot, err := resolveDiscriminatedLocal(site.Target, coord, prep.Spec.Local, wantType)
		if err != nil {
			return err
		}
		model.InsertBefore(site.Target, coord,
			&Insn{Op: loadOpFor(wantType), Var: slot, VarType: wantType},
			&Insn{Op: redirectInvokeOp(handler), Owner: tc.Class.InternalName, Name: handler.Name, Desc: handler.Desc},
			&Insn{Op: storeOpFor(wantType), Var: slot, VarType: wantType},
		)
	}
	return nil
}

// resolveDiscriminatedLocal applies §4.8's precedence order (names,
// explicit index, ordinal among same-typed candidates) to find the slot
// a @ModifyVariable or @ModifyConstant-adjacent local reference names.
func resolveDiscriminatedLocal(method *Method, at *Insn, sel LocalSelector, t VarType) (int, error) {
	if sel.HasNames() {
		slots, ok := sel.ResolveNames(method, at)
		if !ok {
			return 0, fmt.Errorf("no local-variable-table entry matches name(s) %v live at this point", sel.Names)
		}
		if len(slots) > 1 {
			return 0, fmt.Errorf("ambiguous local variable name match: %d candidates live at this point", len(slots))
		}
		return slots[0], nil
	}
	if sel.Index >= 0 {
		return sel.Index, nil
	}
	if sel.Ordinal >= 0 {
		candidates := liveLocalsOfType(method, at, t)
		if sel.Ordinal >= len(candidates) {
			return 0, fmt.Errorf("ordinal %d out of range: %d candidate locals of the requested type", sel.Ordinal, len(candidates))
		}
		return candidates[sel.Ordinal], nil
	}
	candidates := liveLocalsOfType(method, at, t)
	if len(candidates) != 1 {
		return 0, fmt.Errorf("implicit local match is ambiguous: %d candidates of the requested type", len(candidates))
	}
	return candidates[0], nil
}

// liveLocalsOfType scans method's declared local-variable-table entries
// of type t live at the instruction position of at, in slot order. If the
// table is absent, it falls back to the method's own parameter slots
// (argsOnly semantics), since that is the only locally-known typing
// information available without a table.
func liveLocalsOfType(method *Method, at *Insn, t VarType) []int {
	if len(method.LocalVars) > 0 {
		pos := method.Insns.Index(at)
		var out []int
		for _, lv := range method.LocalVars {
			if varTypeFromDesc(lv.Desc) != t {
				continue
			}
			if pos >= 0 && !localVarLiveAt(method, lv, pos) {
				continue
			}
			out = append(out, lv.Index)
		}
		return out
	}
	return OrdinalCandidates(method, t)
}

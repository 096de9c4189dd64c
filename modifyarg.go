// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// applyModifyArg implements §4.9.3's two annotations. @ModifyArg rewrites
// a single argument of a matched call; @ModifyArgs rewrites any subset by
// bundling every argument into a synthesized carrier object (§4.10),
// handing it to the handler, and unpacking the (possibly mutated) fields
// back onto the stack before the original call proceeds unmodified.
func applyModifyArg(model Model, tc *TargetContext, prep *PreparedInjector) error {
	if prep.Spec.Kind == KindModifyArgs {
		return applyModifyArgsBundle(model, tc, prep)
	}

	handler := prep.Spec.HandlerClone
	for _, site := range prep.Sites {
		coord := site.current()
		if coord == nil {
			continue // removed by an earlier injector this cycle
		}
		if !coord.Op.IsInvoke() {
			return fmt.Errorf("@ModifyArg target coordinate is not a method call")
		}
		params, _, err := SplitDescriptor(coord.Desc)
		if err != nil {
			return err
		}
		idx := prep.Spec.ArgIndex
		if idx < 0 {
			idx = soleCandidateIndex(params, handler.Desc)
			if idx < 0 {
				return fmt.Errorf("@ModifyArg has no explicit index and the handler's type does not uniquely identify one argument")
			}
		}
		if idx < 0 || idx >= len(params) {
			return fmt.Errorf("@ModifyArg index %d out of range for %d arguments", idx, len(params))
		}

		staged, err := stageArgsAround(model, site.Target, coord, params, idx)
		if err != nil {
			return err
		}

		call := &Insn{Op: redirectInvokeOp(handler), Owner: tc.Class.InternalName, Name: handler.Name, Desc: handler.Desc}
		model.InsertBefore(site.Target, coord, call)

		restoreTrailingArgs(model, site.Target, coord, staged)
	}
	return nil
}

// soleCandidateIndex finds the one parameter whose type matches the
// handler's single-parameter descriptor, used when @ModifyArg carries no
// explicit index.
func soleCandidateIndex(params []string, handlerDesc string) int {
	hp, _, err := SplitDescriptor(handlerDesc)
	if err != nil || len(hp) != 1 {
		return -1
	}
	found := -1
	for i, p := range params {
		if p == hp[0] {
			if found >= 0 {
				return -1 // ambiguous
			}
			found = i
		}
	}
	return found
}

// stagedArg is one trailing argument temporarily spilled to a local so
// the targeted argument can be isolated on top of the stack.
type stagedArg struct {
	Local int
	Type  VarType
}

// stageArgsAround inserts, before coord, the instructions that pop every
// argument after index idx into fresh locals, leaving argument idx alone
// on top of the stack for the handler call that follows. It returns the
// staged locals in call order so the caller can reload them afterward.
func stageArgsAround(model Model, method *Method, coord *Insn, params []string, idx int) ([]stagedArg, error) {
	var staged []stagedArg
	for i := len(params) - 1; i > idx; i-- {
		t := varTypeFromDesc(params[i])
		local := model.AllocateLocal(method, t)
		model.InsertBefore(method, coord, &Insn{Op: storeOpFor(t), Var: local, VarType: t})
		staged = append([]stagedArg{{Local: local, Type: t}}, staged...)
	}
	return staged, nil
}

// restoreTrailingArgs reloads every staged local, in original order,
// immediately before coord so the original call sees its full, correctly
// ordered argument list again.
func restoreTrailingArgs(model Model, method *Method, coord *Insn, staged []stagedArg) {
	for _, s := range staged {
		model.InsertBefore(method, coord, &Insn{Op: loadOpFor(s.Type), Var: s.Local, VarType: s.Type})
	}
}

// applyModifyArgsBundle implements @ModifyArgs: stage every argument to a
// local, construct a bundle instance from them, hand it to the handler,
// then unpack the bundle's (possibly mutated) fields back onto the stack
// in argument order.
func applyModifyArgsBundle(model Model, tc *TargetContext, prep *PreparedInjector) error {
	handler := prep.Spec.HandlerClone
	for _, site := range prep.Sites {
		coord := site.current()
		if coord == nil {
			continue // removed by an earlier injector this cycle
		}
		if !coord.Op.IsInvoke() {
			return fmt.Errorf("@ModifyArgs target coordinate is not a method call")
		}
		params, _, err := SplitDescriptor(coord.Desc)
		if err != nil {
			return err
		}
		bundleClass, err := ArgsBundleClass(coord.Desc)
		if err != nil {
			return err
		}
		tc.Synthesized = append(tc.Synthesized, bundleClass)

		staged, err := stageArgsAround(model, site.Target, coord, params, -1)
		if err != nil {
			return err
		}

		bundleLocal := model.AllocateLocal(site.Target, TypeObject)
		var insns []*Insn
		insns = append(insns, &Insn{Op: OpNew, Owner: bundleClass.InternalName})
		insns = append(insns, &Insn{Op: OpDup})
		for _, s := range staged {
			insns = append(insns, &Insn{Op: loadOpFor(s.Type), Var: s.Local, VarType: s.Type})
		}
		insns = append(insns, &Insn{Op: OpInvokeSpecial, Owner: bundleClass.InternalName, Name: "<init>", Desc: bundleClass.Methods[0].Desc})
		insns = append(insns, &Insn{Op: OpAStore, Var: bundleLocal, VarType: TypeObject})
		insns = append(insns, &Insn{Op: OpALoad, Var: bundleLocal, VarType: TypeObject})
		insns = append(insns, &Insn{Op: redirectInvokeOp(handler), Owner: tc.Class.InternalName, Name: handler.Name, Desc: handler.Desc})
		for i, p := range params {
			insns = append(insns,
				&Insn{Op: OpALoad, Var: bundleLocal, VarType: TypeObject},
				&Insn{Op: OpGetField, Owner: bundleClass.InternalName, Name: fmt.Sprintf("arg%d", i), Desc: p},
			)
		}
		model.InsertBefore(site.Target, coord, insns...)
	}
	return nil
}

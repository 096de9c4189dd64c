// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

// mergeInitializers implements §4.6.4: the instructions of a mixin's own
// no-arg constructor that fall between its call to the superclass
// constructor and its trailing return are spliced into each of the
// target's constructors, immediately after that constructor's own super
// call, in mixin priority order. Static initializer bodies are appended
// to the target's <clinit> the same way, without a super-call search.
func (a *Applicator) mergeInitializers(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	for _, mi := range tc.Mixins {
		if ctor := mixinInitializerCtor(mi.Class); ctor != nil {
			prologue := initializerPrologue(ctor, mi.Class.SuperName)
			if len(prologue) > 0 {
				for _, target := range tc.Class.FindMethodsByName("<init>") {
					spliceAfterSuperCall(a.Model, target, tc.Class.SuperName, cloneInsnRun(prologue))
				}
			}
		}
		if clinit := mi.Class.FindMethod("<clinit>", "()V"); clinit != nil {
			targetClinit := tc.Class.FindMethod("<clinit>", "()V")
			if targetClinit == nil {
				targetClinit = &Method{Name: "<clinit>", Desc: "()V", Access: AccStatic}
				tc.Class.Methods = append(tc.Class.Methods, targetClinit)
			}
			body := instructionsExcludingReturn(clinit)
			for _, n := range cloneInsnRun(body) {
				targetClinit.Insns.Append(n)
			}
		}
	}
	return diags, nil
}

// mixinInitializerCtor picks the mixin constructor whose body carries
// the field initializers: the no-arg constructor when present, else the
// first declared one.
func mixinInitializerCtor(class *Class) *Method {
	if ctor := class.FindMethod("<init>", "()V"); ctor != nil {
		return ctor
	}
	if ctors := class.FindMethodsByName("<init>"); len(ctors) > 0 {
		return ctors[0]
	}
	return nil
}

// initializerPrologue returns the instructions of ctor between its call
// to superName's <init> and its trailing return, exclusive of both.
func initializerPrologue(ctor *Method, superName string) []*Insn {
	var out []*Insn
	afterSuper := false
	for n := ctor.Insns.Head(); n != nil; n = n.Next() {
		if !afterSuper {
			if n.Op == OpInvokeSpecial && n.Name == "<init>" && n.Owner == superName {
				afterSuper = true
			}
			continue
		}
		if n.Next() == nil && n.Op.IsReturn() {
			break
		}
		out = append(out, n)
	}
	return out
}

// instructionsExcludingReturn returns every instruction of m except a
// trailing bare return.
func instructionsExcludingReturn(m *Method) []*Insn {
	var out []*Insn
	for n := m.Insns.Head(); n != nil; n = n.Next() {
		if n.Next() == nil && n.Op == OpReturn {
			break
		}
		out = append(out, n)
	}
	return out
}

// cloneInsnRun deep-copies a sequence of instructions belonging to one
// method body, remapping internal label references.
func cloneInsnRun(insns []*Insn) []*Insn {
	labelMap := make(map[*Insn]*Insn)
	for _, n := range insns {
		if n.IsLabel() {
			labelMap[n] = NewLabel()
		}
	}
	out := make([]*Insn, len(insns))
	for i, n := range insns {
		if n.IsLabel() {
			out[i] = labelMap[n]
		} else {
			out[i] = n.Clone(labelMap)
		}
	}
	return out
}

// spliceAfterSuperCall inserts insns into target immediately after its
// call to superName's <init>. If no such call is found (an unusual
// shape for a constructor), insns are inserted at the head instead
// rather than silently dropped.
func spliceAfterSuperCall(model Model, target *Method, superName string, insns []*Insn) {
	for n := target.Insns.Head(); n != nil; n = n.Next() {
		if n.Op == OpInvokeSpecial && n.Name == "<init>" && n.Owner == superName {
			model.InsertAfter(target, n, insns...)
			return
		}
	}
	if head := target.Insns.Head(); head != nil {
		model.InsertBefore(target, head, insns...)
	}
}

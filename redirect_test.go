// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

func staticHandler(name, desc string) *Method {
	m := &Method{Name: name, Desc: desc, Access: AccPrivate | AccStatic | AccSynthetic}
	m.Insns.Append(&Insn{Op: OpReturn})
	return m
}

func TestApplyRedirectSwapsInvokeInPlace(t *testing.T) {
	call := &Insn{Op: OpInvokeVirtual, Owner: "com/example/Sink", Name: "sink", Desc: "(I)V"}
	m := buildMethod("()V", &Insn{Op: OpIConst, Const: int64(1)}, call, &Insn{Op: OpReturn})
	target := &Class{InternalName: "com/example/Target", Methods: []*Method{m}}
	tc := newTestTargetContext(target)

	handler := staticHandler("Mixin$r", "(Lcom/example/Sink;I)V")
	prep := &PreparedInjector{
		Spec:  InjectorSpec{Kind: KindRedirect, HandlerClone: handler, Mixin: &MixinInfo{ClassName: "com/example/MixinA"}},
		Sites: []InjectionSite{{Target: m, Coord: call}},
	}
	if err := applyRedirect(Model{}, tc, prep); err != nil {
		t.Fatalf("applyRedirect: %v", err)
	}

	if m.Insns.Len() != 3 {
		t.Fatalf("Insns.Len = %d, want 3 (in-place swap)", m.Insns.Len())
	}
	swapped := m.Insns.Head().Next()
	if swapped.Op != OpInvokeStatic || swapped.Owner != "com/example/Target" || swapped.Name != "Mixin$r" {
		t.Errorf("swapped instruction = %v %s.%s, want INVOKESTATIC Target.Mixin$r", swapped.Op, swapped.Owner, swapped.Name)
	}
	if m.Insns.Index(call) != -1 {
		t.Error("the original call should be out of the list")
	}
}

func TestApplyRedirectOrdinalReplacesOnlyNthCall(t *testing.T) {
	// Ten identical calls; a redirect with ordinal 3 must touch only
	// the fourth.
	m := &Method{Name: "m", Desc: "()V"}
	var calls []*Insn
	for i := 0; i < 10; i++ {
		c := &Insn{Op: OpInvokeStatic, Owner: "com/example/Target", Name: "sink", Desc: "(I)V"}
		m.Insns.Append(&Insn{Op: OpIConst, Const: int64(1)})
		m.Insns.Append(c)
		calls = append(calls, c)
	}
	m.Insns.Append(&Insn{Op: OpReturn})
	target := &Class{InternalName: "com/example/Target", Methods: []*Method{m}}
	tc := newTestTargetContext(target)

	ip := InjectionPoint{Kind: PointInvoke, Target: Member{Name: "sink"}, Ordinal: 3}
	matches, err := ip.Find(m, nil)
	if err != nil || len(matches) != 1 || matches[0] != calls[3] {
		t.Fatalf("Find = %v, %v; want the fourth call", matches, err)
	}

	handler := staticHandler("Mixin$r", "(I)V")
	prep := &PreparedInjector{
		Spec:  InjectorSpec{Kind: KindRedirect, HandlerClone: handler, Mixin: &MixinInfo{ClassName: "com/example/MixinA"}},
		Sites: []InjectionSite{{Target: m, Coord: matches[0]}},
	}
	if err := applyRedirect(Model{}, tc, prep); err != nil {
		t.Fatalf("applyRedirect: %v", err)
	}

	remaining := 0
	for n := m.Insns.Head(); n != nil; n = n.Next() {
		if n.Name == "sink" {
			remaining++
		}
	}
	if remaining != 9 {
		t.Errorf("%d original calls remain, want 9", remaining)
	}
	if m.Insns.Index(calls[3]) != -1 {
		t.Error("the fourth call should be replaced")
	}
	if m.Insns.Index(calls[2]) < 0 || m.Insns.Index(calls[4]) < 0 {
		t.Error("neighboring calls must be untouched")
	}
}

func TestApplyRedirectUpdatesNodeRegistry(t *testing.T) {
	call := &Insn{Op: OpGetField, Owner: "com/example/Target", Name: "f", Desc: "I"}
	m := buildMethod("()V", call, &Insn{Op: OpReturn})
	target := &Class{InternalName: "com/example/Target", Methods: []*Method{m}}
	tc := newTestTargetContext(target)
	h := tc.Handle(call)

	handler := staticHandler("Mixin$r", "(Lcom/example/Target;)I")
	prep := &PreparedInjector{
		Spec:  InjectorSpec{Kind: KindRedirect, HandlerClone: handler, Mixin: &MixinInfo{ClassName: "com/example/MixinA"}},
		Sites: []InjectionSite{{Target: m, Coord: call}},
	}
	if err := applyRedirect(Model{}, tc, prep); err != nil {
		t.Fatalf("applyRedirect: %v", err)
	}
	if h.Current == call {
		t.Error("the node handle should track the replacement instruction")
	}
	if h.Current != m.Insns.Head() {
		t.Error("handle should point at the swapped-in call")
	}
}

func TestApplyRedirectRejectsNonRedirectableCoordinate(t *testing.T) {
	ret := &Insn{Op: OpReturn}
	m := buildMethod("()V", ret)
	tc := newTestTargetContext(&Class{InternalName: "com/example/Target", Methods: []*Method{m}})

	prep := &PreparedInjector{
		Spec:  InjectorSpec{Kind: KindRedirect, HandlerClone: staticHandler("Mixin$r", "()V"), Mixin: &MixinInfo{ClassName: "com/example/MixinA"}},
		Sites: []InjectionSite{{Target: m, Coord: ret}},
	}
	if err := applyRedirect(Model{}, tc, prep); err == nil {
		t.Error("a RETURN coordinate is not redirectable and must fail")
	}
}

func TestInjectorsChainThroughNodeRegistry(t *testing.T) {
	// Two injectors resolved to the same coordinate: after the first
	// replaces it, the second must act on the replacement via the
	// registry, not on the detached original.
	call := &Insn{Op: OpInvokeVirtual, Owner: "com/example/Sink", Name: "sink", Desc: "()V"}
	m := buildMethod("()V", &Insn{Op: OpNop}, call, &Insn{Op: OpReturn})
	target := &Class{InternalName: "com/example/Target", Methods: []*Method{m}}
	tc := newTestTargetContext(target)

	first := &PreparedInjector{
		Spec:  InjectorSpec{Kind: KindRedirect, HandlerClone: staticHandler("MixinA$r", "()V"), Mixin: &MixinInfo{ClassName: "com/example/MixinA"}},
		Sites: []InjectionSite{{Target: m, Coord: call, node: tc.Handle(call)}},
	}
	second := &PreparedInjector{
		Spec:  InjectorSpec{Kind: KindRedirect, HandlerClone: staticHandler("MixinB$r", "()V"), Mixin: &MixinInfo{ClassName: "com/example/MixinB"}},
		Sites: []InjectionSite{{Target: m, Coord: call, node: tc.Handle(call)}},
	}

	if err := applyRedirect(Model{}, tc, first); err != nil {
		t.Fatalf("first applyRedirect: %v", err)
	}
	if err := applyRedirect(Model{}, tc, second); err != nil {
		t.Fatalf("second applyRedirect: %v", err)
	}

	if m.Insns.Len() != 3 {
		t.Fatalf("Insns.Len = %d, want 3 (each redirect swaps in place)", m.Insns.Len())
	}
	swapped := m.Insns.Head().Next()
	if swapped.Name != "MixinB$r" {
		t.Errorf("final call = %q, want the second redirect's handler (applied to the first's replacement)", swapped.Name)
	}
	if m.Insns.Index(call) != -1 {
		t.Error("the original call must be out of the list")
	}
}

func TestInjectionSiteCurrentNilAfterRemoval(t *testing.T) {
	// A site whose instruction was removed without replacement resolves
	// to nil and the injector skips it instead of corrupting the list.
	call := &Insn{Op: OpInvokeVirtual, Owner: "com/example/Sink", Name: "sink", Desc: "()V"}
	m := buildMethod("()V", &Insn{Op: OpNop}, call, &Insn{Op: OpReturn})
	target := &Class{InternalName: "com/example/Target", Methods: []*Method{m}}
	tc := newTestTargetContext(target)

	site := InjectionSite{Target: m, Coord: call, node: tc.Handle(call)}
	m.Insns.Remove(call)
	if got := site.current(); got != nil {
		t.Fatalf("current() = %v, want nil for a removed instruction", got)
	}

	prep := &PreparedInjector{
		Spec:  InjectorSpec{Kind: KindRedirect, HandlerClone: staticHandler("Mixin$r", "()V"), Mixin: &MixinInfo{ClassName: "com/example/MixinA"}},
		Sites: []InjectionSite{site},
	}
	if err := applyRedirect(Model{}, tc, prep); err != nil {
		t.Fatalf("applyRedirect over a removed site: %v", err)
	}
	if m.Insns.Len() != 2 {
		t.Errorf("Insns.Len = %d, want 2 (removed site skipped, list untouched)", m.Insns.Len())
	}
}

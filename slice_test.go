// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

func sliceTestMethod() (*Method, *Insn, *Insn) {
	first := &Insn{Op: OpInvokeVirtual, Owner: "com/example/Target", Name: "open", Desc: "()V"}
	mid := &Insn{Op: OpInvokeVirtual, Owner: "com/example/Target", Name: "work", Desc: "()V"}
	last := &Insn{Op: OpInvokeVirtual, Owner: "com/example/Target", Name: "close", Desc: "()V"}
	m := buildMethod("()V", first, mid, last, &Insn{Op: OpReturn})
	return m, first, last
}

func TestResolveSliceBothBounds(t *testing.T) {
	m, first, last := sliceTestMethod()
	from := &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "open"}, Ordinal: -1}
	to := &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "close"}, Ordinal: -1}

	region, err := ResolveSlice(m, from, to, nil)
	if err != nil {
		t.Fatalf("ResolveSlice: %v", err)
	}
	if region.From != first || region.To != last {
		t.Errorf("region = [%v, %v], want [open, close]", region.From, region.To)
	}
	if got := region.start(m); got != first {
		t.Errorf("start = %v, want the from bound", got)
	}
}

func TestResolveSliceOpenBounds(t *testing.T) {
	m, _, last := sliceTestMethod()

	// No from: the region starts at the method head.
	to := &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "close"}, Ordinal: -1}
	region, err := ResolveSlice(m, nil, to, nil)
	if err != nil {
		t.Fatalf("ResolveSlice: %v", err)
	}
	if region.From != nil || region.To != last {
		t.Errorf("region = [%v, %v], want open start", region.From, region.To)
	}
	if got := region.start(m); got != m.Insns.Head() {
		t.Errorf("start of an open-from region = %v, want method head", got)
	}

	// A bound that matches nothing stays open rather than failing.
	miss := &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "absent"}, Ordinal: -1}
	region, err = ResolveSlice(m, miss, nil, nil)
	if err != nil {
		t.Fatalf("ResolveSlice with unmatched from: %v", err)
	}
	if region.From != nil {
		t.Errorf("unmatched from bound = %v, want open", region.From)
	}
}

func TestResolveSliceRejectsInvertedRegion(t *testing.T) {
	m, _, _ := sliceTestMethod()
	from := &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "close"}, Ordinal: -1}
	to := &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "open"}, Ordinal: -1}

	if _, err := ResolveSlice(m, from, to, nil); err == nil {
		t.Error("a slice whose to-bound precedes its from-bound must fail")
	}

	// Zero size (both bounds on the same instruction) is equally invalid.
	same := &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "work"}, Ordinal: -1}
	if _, err := ResolveSlice(m, same, same, nil); err == nil {
		t.Error("a zero-size slice must fail")
	}
}

func TestResolveSliceSpecs(t *testing.T) {
	m, first, last := sliceTestMethod()
	specs := map[string]SliceSpec{
		"": {
			From: &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "open"}, Ordinal: -1},
			To:   &InjectionPoint{Kind: PointInvoke, Target: Member{Name: "close"}, Ordinal: -1},
		},
	}
	regions, err := ResolveSliceSpecs(m, specs)
	if err != nil {
		t.Fatalf("ResolveSliceSpecs: %v", err)
	}
	if got := regions[""]; got.From != first || got.To != last {
		t.Errorf("resolved region = [%v, %v]", got.From, got.To)
	}

	if got, err := ResolveSliceSpecs(m, nil); got != nil || err != nil {
		t.Errorf("ResolveSliceSpecs with no specs = %v, %v; want nil, nil", got, err)
	}
}

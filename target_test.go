// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

func TestNewTargetContextDefaultsPlugin(t *testing.T) {
	tc := NewTargetContext(&Class{InternalName: "com/example/Target"}, nil, nil)
	if tc.Plugin == nil {
		t.Fatal("NewTargetContext should default a nil plugin to NoopPlugin")
	}
	if _, ok := tc.Plugin.(NoopPlugin); !ok {
		t.Errorf("Plugin = %T, want NoopPlugin", tc.Plugin)
	}
	if tc.Cycle == "" {
		t.Error("Cycle should be a non-empty generated identifier")
	}
}

func TestNewTargetContextGeneratesDistinctCycles(t *testing.T) {
	a := NewTargetContext(&Class{InternalName: "com/example/A"}, nil, nil)
	b := NewTargetContext(&Class{InternalName: "com/example/B"}, nil, nil)
	if a.Cycle == b.Cycle {
		t.Error("each apply cycle should get a distinct identifier")
	}
}

func TestHandleStableAcrossRepeatedLookup(t *testing.T) {
	tc := NewTargetContext(&Class{InternalName: "com/example/Target"}, nil, nil)
	insn := &Insn{Op: OpNop}
	h1 := tc.Handle(insn)
	h2 := tc.Handle(insn)
	if h1 != h2 {
		t.Fatal("Handle should return the same handle for the same instruction on repeated calls")
	}
	if h1.Current != insn {
		t.Errorf("Current = %v, want the original instruction", h1.Current)
	}
}

func TestRetargetMovesHandleToReplacement(t *testing.T) {
	tc := NewTargetContext(&Class{InternalName: "com/example/Target"}, nil, nil)
	original := &Insn{Op: OpNop}
	h := tc.Handle(original)

	replacement := &Insn{Op: OpPop}
	tc.Retarget(original, replacement)

	if h.Current != replacement {
		t.Fatalf("Current = %v, want replacement after Retarget", h.Current)
	}
	if tc.Handle(replacement) != h {
		t.Error("looking up the replacement instruction should now return the same handle")
	}
}

func TestRetargetNoOpWhenOldHasNoHandle(t *testing.T) {
	tc := NewTargetContext(&Class{InternalName: "com/example/Target"}, nil, nil)
	untracked := &Insn{Op: OpNop}
	replacement := &Insn{Op: OpPop}

	tc.Retarget(untracked, replacement)

	if h := tc.Handle(replacement); h.Current != replacement {
		t.Errorf("Current = %v, want replacement itself (fresh handle, untouched by the no-op Retarget)", h.Current)
	}
}

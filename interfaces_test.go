// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

func mixinWithInterfaces(t *testing.T, className, target string, ifaces ...string) *MixinInfo {
	t.Helper()
	class := &Class{
		InternalName: className,
		Interfaces:   ifaces,
		Visible: []Annotation{{Type: AnnMixin, Values: map[string]AnnotationValue{
			"value": target,
		}}},
	}
	mi, err := ParseMixinInfo(class, "com.example.mixins")
	if err != nil {
		t.Fatalf("ParseMixinInfo: %v", err)
	}
	return mi
}

func TestMergeInterfacesAppendsAndDedups(t *testing.T) {
	target := &Class{InternalName: "com/example/Target", Interfaces: []string{"com/example/Existing"}}
	mi := mixinWithInterfaces(t, "com/example/MixinA", "com/example/Target",
		"com/example/Existing", "com/example/Greeter")

	a := &Applicator{}
	tc := newTestTargetContext(target, mi)
	if _, err := a.mergeInterfaces(tc); err != nil {
		t.Fatalf("mergeInterfaces: %v", err)
	}
	if len(target.Interfaces) != 2 {
		t.Fatalf("Interfaces = %v, want [Existing, Greeter] (no duplicate of Existing)", target.Interfaces)
	}
	if target.Interfaces[1] != "com/example/Greeter" {
		t.Errorf("Interfaces[1] = %q, want com/example/Greeter", target.Interfaces[1])
	}
}

func TestMergeInterfacesMultipleMixinsInPriorityOrder(t *testing.T) {
	target := &Class{InternalName: "com/example/Target"}
	high := mixinWithInterfaces(t, "com/example/High", "com/example/Target", "com/example/First")
	high.Priority = 2000
	low := mixinWithInterfaces(t, "com/example/Low", "com/example/Target", "com/example/Second")
	low.Priority = 500

	a := &Applicator{}
	// mergeInterfaces appends in the order tc.Mixins lists them; this test
	// lists the higher-priority mixin first (Transformer.Transform itself
	// supplies ascending priority).
	tc := newTestTargetContext(target, high, low)
	if _, err := a.mergeInterfaces(tc); err != nil {
		t.Fatalf("mergeInterfaces: %v", err)
	}
	if len(target.Interfaces) != 2 || target.Interfaces[0] != "com/example/First" || target.Interfaces[1] != "com/example/Second" {
		t.Errorf("Interfaces = %v, want [First, Second] in priority order", target.Interfaces)
	}
}

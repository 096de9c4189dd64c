// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

func newTestTargetContext(target *Class, mixins ...*MixinInfo) *TargetContext {
	return NewTargetContext(target, mixins, NoopPlugin{})
}

func newShadowMixin(t *testing.T, targetName, className string, fields []*Field, methods []*Method) *MixinInfo {
	t.Helper()
	class := &Class{
		InternalName: className,
		Visible: []Annotation{{Type: AnnMixin, Values: map[string]AnnotationValue{
			"value": targetName,
		}}},
		Fields:  fields,
		Methods: methods,
	}
	mi, err := ParseMixinInfo(class, "com.example.mixins")
	if err != nil {
		t.Fatalf("ParseMixinInfo: %v", err)
	}
	return mi
}

func newPrioritizedMixin(t *testing.T, targetName, className string, priority int, fields []*Field, methods []*Method) *MixinInfo {
	t.Helper()
	class := &Class{
		InternalName: className,
		Visible: []Annotation{{Type: AnnMixin, Values: map[string]AnnotationValue{
			"value":    targetName,
			"priority": priority,
		}}},
		Fields:  fields,
		Methods: methods,
	}
	mi, err := ParseMixinInfo(class, "com.example.mixins")
	if err != nil {
		t.Fatalf("ParseMixinInfo: %v", err)
	}
	return mi
}

func TestMergeFieldsShadowRequiresExisting(t *testing.T) {
	target := &Class{InternalName: "com/example/Target"}
	mi := newShadowMixin(t, "com/example/Target", "com/example/MixinA",
		[]*Field{{Name: "count", Desc: "I", Visible: []Annotation{{Type: AnnShadow}}}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, mi)
	diags, err := a.mergeFields(tc)
	if err != nil {
		t.Fatalf("mergeFields: %v", err)
	}
	if len(diags) != 1 || diags[0].Kind != KindMixinResolution {
		t.Fatalf("diags = %v, want one MixinResolutionError", diags)
	}
	if len(target.Fields) != 0 {
		t.Error("a @Shadow field should not be added to the target's own field list")
	}
}

func TestMergeFieldsShadowSucceedsWhenPresent(t *testing.T) {
	target := &Class{InternalName: "com/example/Target", Fields: []*Field{{Name: "count", Desc: "I"}}}
	mi := newShadowMixin(t, "com/example/Target", "com/example/MixinA",
		[]*Field{{Name: "count", Desc: "I", Visible: []Annotation{{Type: AnnShadow}}}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, mi)
	diags, err := a.mergeFields(tc)
	if err != nil || len(diags) != 0 {
		t.Fatalf("mergeFields: diags=%v err=%v, want none", diags, err)
	}
	if len(target.Fields) != 1 {
		t.Error("a satisfied @Shadow field should not duplicate the target's field")
	}
}

func TestMergeFieldsPlainCollisionIsFatal(t *testing.T) {
	target := &Class{InternalName: "com/example/Target", Fields: []*Field{{Name: "count", Desc: "I"}}}
	mi := newShadowMixin(t, "com/example/Target", "com/example/MixinA",
		[]*Field{{Name: "count", Desc: "I"}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, mi)
	diags, err := a.mergeFields(tc)
	if err == nil {
		t.Fatal("expected a fatal ApplyError for a plain field colliding with an existing one")
	}
	if len(diags) != 1 || !diags[0].Fatal {
		t.Errorf("diags = %v, want one fatal diagnostic", diags)
	}
}

func TestMergeFieldsPlainNoCollisionAppends(t *testing.T) {
	target := &Class{InternalName: "com/example/Target"}
	mi := newShadowMixin(t, "com/example/Target", "com/example/MixinA",
		[]*Field{{Name: "extra", Desc: "I"}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, mi)
	if _, err := a.mergeFields(tc); err != nil {
		t.Fatalf("mergeFields: %v", err)
	}
	if len(target.Fields) != 1 || target.Fields[0].Name != "extra" {
		t.Errorf("target.Fields = %v, want one field named extra", target.Fields)
	}
}

func TestMergeFieldsUniqueManglesOnCollision(t *testing.T) {
	target := &Class{InternalName: "com/example/Target", Fields: []*Field{{Name: "cache", Desc: "I"}}}
	mi := newShadowMixin(t, "com/example/Target", "com/example/MixinA",
		[]*Field{{Name: "cache", Desc: "I", Visible: []Annotation{{Type: AnnUnique}}}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, mi)
	if _, err := a.mergeFields(tc); err != nil {
		t.Fatalf("mergeFields: %v", err)
	}
	if len(target.Fields) != 2 {
		t.Fatalf("target.Fields = %v, want the original plus the mangled unique field", target.Fields)
	}
	if got, want := target.Fields[1].Name, "MixinA$cache"; got != want {
		t.Errorf("mangled unique field name = %q, want %q", got, want)
	}
}

func TestMergeFieldsPriorityWinsOverLowerPriority(t *testing.T) {
	target := &Class{InternalName: "com/example/Target"}
	lo := newPrioritizedMixin(t, "com/example/Target", "com/example/MixinLo", 1000,
		[]*Field{{Name: "value", Desc: "I", Access: AccPrivate}}, nil)
	hi := newPrioritizedMixin(t, "com/example/Target", "com/example/MixinHi", 2000,
		[]*Field{{Name: "value", Desc: "I", Access: AccPublic}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, lo, hi)
	diags, err := a.mergeFields(tc)
	if err != nil || len(diags) != 0 {
		t.Fatalf("mergeFields: diags=%v err=%v, want none", diags, err)
	}
	if len(target.Fields) != 1 {
		t.Fatalf("target.Fields = %v, want exactly one merged field", target.Fields)
	}
	if got := target.Fields[0].Access; got != AccPublic {
		t.Errorf("field access = %d, want the higher-priority mixin's AccPublic", got)
	}
}

func TestMergeFieldsLowerPriorityLosesSilently(t *testing.T) {
	target := &Class{InternalName: "com/example/Target"}
	hi := newPrioritizedMixin(t, "com/example/Target", "com/example/MixinHi", 2000,
		[]*Field{{Name: "value", Desc: "I", Access: AccPublic}}, nil)
	lo := newPrioritizedMixin(t, "com/example/Target", "com/example/MixinLo", 1000,
		[]*Field{{Name: "value", Desc: "I", Access: AccPrivate}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, hi, lo)
	diags, err := a.mergeFields(tc)
	if err != nil || len(diags) != 0 {
		t.Fatalf("mergeFields: diags=%v err=%v, want none", diags, err)
	}
	if len(target.Fields) != 1 || target.Fields[0].Access != AccPublic {
		t.Errorf("target.Fields = %v, want the higher-priority field to remain even when merged first", target.Fields)
	}
}

func TestMergeFieldsEqualPriorityIsFatal(t *testing.T) {
	target := &Class{InternalName: "com/example/Target"}
	m1 := newPrioritizedMixin(t, "com/example/Target", "com/example/MixinA", 1000,
		[]*Field{{Name: "value", Desc: "I"}}, nil)
	m2 := newPrioritizedMixin(t, "com/example/Target", "com/example/MixinB", 1000,
		[]*Field{{Name: "value", Desc: "I"}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, m1, m2)
	diags, err := a.mergeFields(tc)
	if err == nil {
		t.Fatal("expected a fatal ApplyError for equal-priority field collision")
	}
	if len(diags) != 1 || !diags[0].Fatal {
		t.Errorf("diags = %v, want one fatal diagnostic", diags)
	}
}

func TestMergeFieldsUniqueNoCollisionKeepsName(t *testing.T) {
	target := &Class{InternalName: "com/example/Target"}
	mi := newShadowMixin(t, "com/example/Target", "com/example/MixinA",
		[]*Field{{Name: "cache", Desc: "I", Visible: []Annotation{{Type: AnnUnique}}}}, nil)

	a := &Applicator{}
	tc := newTestTargetContext(target, mi)
	if _, err := a.mergeFields(tc); err != nil {
		t.Fatalf("mergeFields: %v", err)
	}
	if len(target.Fields) != 1 || target.Fields[0].Name != "cache" {
		t.Errorf("target.Fields = %v, want one field named cache (no collision, no mangling)", target.Fields)
	}
}

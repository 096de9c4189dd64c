// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"errors"
	"testing"
)

// richTestClass builds a class exercising every corner of the wire
// codec: annotations, a constant-valued field, a method with jumps,
// a switch, try-catch ranges and a local variable table.
func richTestClass() *Class {
	class := &Class{
		InternalName: "com/example/Rich",
		SuperName:    "java/lang/Object",
		Interfaces:   []string{"com/example/Greeter", "java/io/Serializable"},
		Access:       AccPublic,
		Version:      classVersion,
		Signature:    "<T:Ljava/lang/Object;>Ljava/lang/Object;",
		SourceFile:   "Rich.java",
		Visible: []Annotation{{Type: AnnMixin, Values: map[string]AnnotationValue{
			"value":    "com/example/Target",
			"priority": int64(1500),
			"pseudo":   false,
			"nested":   &Annotation{Type: "Lmixin/At;", Values: map[string]AnnotationValue{"value": "HEAD"}},
			"list":     []AnnotationValue{"a", int64(2)},
		}}},
	}
	class.Fields = append(class.Fields, &Field{
		Name: "counter", Desc: "I", Access: AccPrivate, Value: int64(42),
	})

	m := &Method{Name: "loop", Desc: "(I)I", Access: AccPublic, MaxStack: 2, MaxLocals: 2}
	top := NewLabel()
	exit := NewLabel()
	load := &Insn{Op: OpILoad, Var: 1, VarType: TypeInt}
	m.Insns.Append(top)
	m.Insns.Append(&Insn{Op: OpLineNumber, Line: 10})
	m.Insns.Append(load)
	m.Insns.Append(&Insn{Op: OpIfEq, Label: exit})
	m.Insns.Append(&Insn{Op: OpLdc, Const: "tick"})
	m.Insns.Append(&Insn{Op: OpInvokeStatic, Owner: "com/example/Log", Name: "print", Desc: "(Ljava/lang/String;)V"})
	sw := &Insn{Op: OpLookupSwitch, SwitchDefault: top, SwitchCases: map[int]*Insn{0: exit, 7: top}}
	m.Insns.Append(sw)
	m.Insns.Append(exit)
	ret := &Insn{Op: OpIConst, Const: int64(0)}
	m.Insns.Append(ret)
	m.Insns.Append(&Insn{Op: OpIReturn})
	m.TryCatch = []TryCatch{{Start: top, End: exit, Handler: exit, Type: "java/lang/Exception"}}
	m.LocalVars = []LocalVar{{Index: 1, Name: "x", Desc: "I", Start: top, End: exit}}
	m.ParamAnnotations = [][]Annotation{{{Type: "Lmixin/Coerce;", Values: map[string]AnnotationValue{}}}}
	class.Methods = append(class.Methods, m)
	return class
}

func TestModelParseEmitRoundTrip(t *testing.T) {
	var model Model
	data, err := model.Emit(richTestClass())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got, err := model.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got.InternalName != "com/example/Rich" || got.SuperName != "java/lang/Object" {
		t.Errorf("name/super = %s/%s", got.InternalName, got.SuperName)
	}
	if len(got.Interfaces) != 2 || got.Interfaces[0] != "com/example/Greeter" {
		t.Errorf("Interfaces = %v", got.Interfaces)
	}
	if got.Signature == "" || got.SourceFile != "Rich.java" {
		t.Errorf("Signature/SourceFile = %q/%q", got.Signature, got.SourceFile)
	}
	if len(got.Fields) != 1 || got.Fields[0].Value != int64(42) {
		t.Fatalf("Fields = %v", got.Fields)
	}

	ann := findAnnotation(got.Visible, AnnMixin)
	if ann == nil {
		t.Fatal("class annotation lost in round trip")
	}
	if ann.Values["priority"] != int64(1500) {
		t.Errorf("annotation priority = %v", ann.Values["priority"])
	}
	if nested, ok := ann.Values["nested"].(*Annotation); !ok || nested.Values["value"] != "HEAD" {
		t.Errorf("nested annotation = %v", ann.Values["nested"])
	}
	if list, ok := ann.Values["list"].([]AnnotationValue); !ok || len(list) != 2 || list[0] != "a" {
		t.Errorf("annotation array = %v", ann.Values["list"])
	}

	if len(got.Methods) != 1 {
		t.Fatalf("Methods = %d, want 1", len(got.Methods))
	}
	m := got.Methods[0]
	if m.MaxStack != 2 || m.MaxLocals != 2 {
		t.Errorf("MaxStack/MaxLocals = %d/%d", m.MaxStack, m.MaxLocals)
	}
	if m.Insns.Len() != 10 {
		t.Fatalf("Insns.Len = %d, want 10", m.Insns.Len())
	}

	// Jump and switch targets must resolve to the decoded label nodes,
	// not dangle at positions.
	var jump, swGot *Insn
	for n := m.Insns.Head(); n != nil; n = n.Next() {
		switch n.Op {
		case OpIfEq:
			jump = n
		case OpLookupSwitch:
			swGot = n
		}
	}
	if jump == nil || jump.Label == nil || !jump.Label.IsLabel() {
		t.Fatal("decoded jump lost its label target")
	}
	if m.Insns.Index(jump.Label) != 7 {
		t.Errorf("jump target at index %d, want 7", m.Insns.Index(jump.Label))
	}
	if swGot == nil || swGot.SwitchDefault == nil || len(swGot.SwitchCases) != 2 {
		t.Fatalf("decoded switch = %+v", swGot)
	}
	if m.Insns.Index(swGot.SwitchCases[7]) != 0 {
		t.Errorf("switch case 7 at index %d, want 0 (the top label)", m.Insns.Index(swGot.SwitchCases[7]))
	}

	if len(m.TryCatch) != 1 || m.TryCatch[0].Type != "java/lang/Exception" || m.TryCatch[0].Start == nil {
		t.Errorf("TryCatch = %+v", m.TryCatch)
	}
	if len(m.LocalVars) != 1 || m.LocalVars[0].Name != "x" || m.LocalVars[0].Start == nil {
		t.Errorf("LocalVars = %+v", m.LocalVars)
	}
	if len(m.ParamAnnotations) != 1 || len(m.ParamAnnotations[0]) != 1 {
		t.Errorf("ParamAnnotations = %+v", m.ParamAnnotations)
	}
}

func TestModelParseTruncatedInput(t *testing.T) {
	var model Model
	data, err := model.Emit(richTestClass())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for _, cut := range []int{0, 1, len(data) / 2, len(data) - 1} {
		if _, err := model.Parse(data[:cut]); err == nil {
			t.Errorf("Parse of %d/%d bytes should fail", cut, len(data))
		}
	}
	if _, err := model.Parse(data[:1]); !errors.Is(err, ErrOutsideBoundary) {
		t.Errorf("truncated parse error = %v, want ErrOutsideBoundary in the chain", err)
	}
}

func TestModelParseRejectsUnknownWireVersion(t *testing.T) {
	var model Model
	if _, err := model.Parse([]byte{0xFF, 0xFF}); err == nil {
		t.Error("an unknown wire version should be rejected")
	}
}

func TestCloneMethodIsDeep(t *testing.T) {
	var model Model
	orig := richTestClass().Methods[0]
	clone := model.CloneMethod(orig)

	if clone.Insns.Len() != orig.Insns.Len() {
		t.Fatalf("clone has %d instructions, original %d", clone.Insns.Len(), orig.Insns.Len())
	}
	// Mutating the clone must not touch the original.
	clone.Insns.Remove(clone.Insns.Head())
	if orig.Insns.Len() != 10 {
		t.Error("removing from the clone mutated the original's instruction list")
	}

	// Cloned jumps must target cloned labels, and table references must
	// point into the clone.
	for n := clone.Insns.Head(); n != nil; n = n.Next() {
		if n.Label != nil && clone.Insns.Index(n.Label) < 0 {
			t.Error("cloned jump targets a label outside the cloned list")
		}
	}
	if len(clone.TryCatch) != 1 || clone.Insns.Index(clone.TryCatch[0].End) < 0 {
		t.Error("cloned try-catch range does not point into the cloned list")
	}
}

func TestAllocateLocalWidths(t *testing.T) {
	var model Model
	m := &Method{MaxLocals: 3}
	if got := model.AllocateLocal(m, TypeInt); got != 3 {
		t.Errorf("int slot = %d, want 3", got)
	}
	if got := model.AllocateLocal(m, TypeLong); got != 4 {
		t.Errorf("long slot = %d, want 4", got)
	}
	if got := model.AllocateLocal(m, TypeObject); got != 6 {
		t.Errorf("object slot after a long = %d, want 6 (longs occupy two slots)", got)
	}
	if m.MaxLocals != 7 {
		t.Errorf("MaxLocals = %d, want 7", m.MaxLocals)
	}
	got := model.AllocateLocals(m, []VarType{TypeDouble, TypeInt})
	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Errorf("AllocateLocals = %v, want [7 9]", got)
	}
}

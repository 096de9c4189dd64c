// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"fmt"
	"strings"
)

// synthesizeAccessors implements §4.5/§4.6.5: every abstract
// @Accessor/@Invoker method a mixin declares gets a concrete body
// synthesized on the target, appended after every field/method merge
// pass has run (the Open Question resolution recorded for accessor
// placement: synthesis happens last among the merge passes, strictly
// before injector-prepare begins, so injectors may target a synthesized
// accessor by name like any other merged method).
func (a *Applicator) synthesizeAccessors(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	for _, mi := range tc.Mixins {
		for _, m := range mi.Class.Methods {
			switch mi.RoleOf(m) {
			case RoleAccessor:
				d := a.synthesizeAccessor(tc, mi, m)
				if d != nil {
					diags = append(diags, d)
					if d.Fatal {
						return diags, d
					}
				}
			case RoleInvoker:
				d := a.synthesizeInvoker(tc, mi, m)
				if d != nil {
					diags = append(diags, d)
					if d.Fatal {
						return diags, d
					}
				}
			}
		}
	}
	return diags, nil
}

func (a *Applicator) synthesizeAccessor(tc *TargetContext, mi *MixinInfo, m *Method) *Diagnostic {
	fieldName := accessorTargetName(m.Name)
	if override := annotationValueOverride(m, AnnAccessor); override != "" {
		fieldName = override
	}
	params, ret, err := SplitDescriptor(m.Desc)
	if err != nil {
		return InvalidInjectionError(tc.Class.InternalName, mi.ClassName, m.Name+m.Desc, "unparseable accessor descriptor", false)
	}

	var field *Field
	if f := tc.Class.FindField(fieldName, ""); f != nil {
		field = f
	} else if len(params) == 1 {
		field = tc.Class.FindField(fieldName, params[0])
	} else if ret != "" && ret != "V" {
		field = tc.Class.FindField(fieldName, ret)
	}
	if field == nil {
		return MixinResolutionError(tc.Class.InternalName, mi.ClassName,
			fmt.Sprintf("@Accessor %s names field %q which does not exist on target", m.Name, fieldName), false)
	}

	synthesized := &Method{Name: m.Name, Desc: m.Desc, Access: AccPublic, mergedBy: mi.ClassName}
	isStatic := field.Access&AccStatic != 0
	getGet := OpGetField
	if isStatic {
		getGet = OpGetStatic
	}
	putOp := OpPutField
	if isStatic {
		putOp = OpPutStatic
	}

	if len(params) == 0 && ret != "" && ret != "V" {
		// getter
		if !isStatic {
			synthesized.Insns.Append(&Insn{Op: OpALoad, Var: 0, VarType: TypeObject})
		}
		synthesized.Insns.Append(&Insn{Op: getGet, Owner: tc.Class.InternalName, Name: field.Name, Desc: field.Desc})
		synthesized.Insns.Append(returnFor(ret))
	} else if len(params) == 1 {
		// setter
		slot := 0
		if !isStatic {
			synthesized.Insns.Append(&Insn{Op: OpALoad, Var: 0, VarType: TypeObject})
			slot = 1
		}
		pt := varTypeFromDesc(params[0])
		synthesized.Insns.Append(&Insn{Op: loadOpFor(pt), Var: slot, VarType: pt})
		synthesized.Insns.Append(&Insn{Op: putOp, Owner: tc.Class.InternalName, Name: field.Name, Desc: field.Desc})
		synthesized.Insns.Append(&Insn{Op: OpReturn})
		synthesized.MaxLocals = slot + 1
	} else {
		return InvalidInjectionError(tc.Class.InternalName, mi.ClassName, m.Name+m.Desc, "@Accessor must be a zero-arg getter or one-arg setter", false)
	}
	synthesized.MaxStack = 2

	tc.Class.Methods = append(tc.Class.Methods, synthesized)
	return nil
}

func (a *Applicator) synthesizeInvoker(tc *TargetContext, mi *MixinInfo, m *Method) *Diagnostic {
	methodName := invokerTargetName(m.Name)
	if override := annotationValueOverride(m, AnnInvoker); override != "" {
		methodName = override
	}
	candidates := tc.Class.FindMethodsByName(methodName)
	var found *Method
	for _, c := range candidates {
		if c.Desc == m.Desc {
			found = c
			break
		}
	}
	if found == nil {
		return MixinResolutionError(tc.Class.InternalName, mi.ClassName,
			fmt.Sprintf("@Invoker %s names method %q which does not exist on target with a matching descriptor", m.Name, methodName), false)
	}

	synthesized := &Method{Name: m.Name, Desc: m.Desc, Access: AccPublic, mergedBy: mi.ClassName}
	params, ret, _ := SplitDescriptor(m.Desc)
	isStatic := found.IsStatic()
	slot := 0
	if !isStatic {
		synthesized.Insns.Append(&Insn{Op: OpALoad, Var: 0, VarType: TypeObject})
		slot = 1
	}
	for _, p := range params {
		pt := varTypeFromDesc(p)
		synthesized.Insns.Append(&Insn{Op: loadOpFor(pt), Var: slot, VarType: pt})
		slot += localWidth(pt)
	}
	op := OpInvokeVirtual
	if isStatic {
		op = OpInvokeStatic
	} else if found.Access&AccPrivate != 0 {
		op = OpInvokeSpecial
	}
	synthesized.Insns.Append(&Insn{Op: op, Owner: tc.Class.InternalName, Name: found.Name, Desc: found.Desc})
	synthesized.Insns.Append(returnFor(ret))
	synthesized.MaxLocals = slot
	synthesized.MaxStack = slot + 1

	tc.Class.Methods = append(tc.Class.Methods, synthesized)
	return nil
}

// annotationValueOverride reads the explicit "value" argument off m's
// @Accessor/@Invoker annotation, which §4.6.5 says takes precedence over
// name inflection; "" if the annotation carries no such argument.
func annotationValueOverride(m *Method, annType string) string {
	ann := findAnnotation(m.Visible, annType)
	if ann == nil {
		ann = findAnnotation(m.Invisible, annType)
	}
	if ann == nil {
		return ""
	}
	v, ok := ann.Values["value"]
	if !ok {
		return ""
	}
	return firstString(v)
}

// accessorTargetName strips a get/is/set prefix to recover the field
// name an @Accessor method names implicitly, lowercasing the first
// remaining letter.
func accessorTargetName(methodName string) string {
	for _, prefix := range []string{"get", "is", "set"} {
		if strings.HasPrefix(methodName, prefix) && len(methodName) > len(prefix) {
			rest := methodName[len(prefix):]
			return strings.ToLower(rest[:1]) + rest[1:]
		}
	}
	return methodName
}

// invokerTargetName strips a call/invoke prefix to recover the method
// name an @Invoker method names implicitly.
func invokerTargetName(methodName string) string {
	for _, prefix := range []string{"call", "invoke"} {
		if strings.HasPrefix(methodName, prefix) && len(methodName) > len(prefix) {
			rest := methodName[len(prefix):]
			return strings.ToLower(rest[:1]) + rest[1:]
		}
	}
	return methodName
}

func returnFor(desc string) *Insn {
	switch desc {
	case "", "V":
		return &Insn{Op: OpReturn}
	case "I", "Z", "B", "C", "S":
		return &Insn{Op: OpIReturn}
	case "J":
		return &Insn{Op: OpLReturn}
	case "F":
		return &Insn{Op: OpFReturn}
	case "D":
		return &Insn{Op: OpDReturn}
	default:
		return &Insn{Op: OpAReturn}
	}
}

func loadOpFor(t VarType) Opcode {
	switch t {
	case TypeLong:
		return OpLLoad
	case TypeFloat:
		return OpFLoad
	case TypeDouble:
		return OpDLoad
	case TypeObject:
		return OpALoad
	default:
		return OpILoad
	}
}

func storeOpFor(t VarType) Opcode {
	switch t {
	case TypeLong:
		return OpLStore
	case TypeFloat:
		return OpFStore
	case TypeDouble:
		return OpDStore
	case TypeObject:
		return OpAStore
	default:
		return OpIStore
	}
}

func varTypeFromDesc(desc string) VarType {
	switch desc {
	case "I", "Z", "B", "C", "S":
		return TypeInt
	case "J":
		return TypeLong
	case "F":
		return TypeFloat
	case "D":
		return TypeDouble
	default:
		return TypeObject
	}
}

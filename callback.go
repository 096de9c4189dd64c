// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"fmt"
	"strings"
)

// Runtime callback-carrier classes §4.9.1 requires the handler's last
// parameter be an instance of: a void target method passes CallbackInfo,
// a non-void one passes CallbackInfoReturnable so the handler has
// somewhere to store a replacement return value. Both classes are
// external collaborators (§1): their bytecode ships with the engine's
// runtime support jar, not this module; only their names/signatures are
// needed to emit calls against them.
const (
	callbackInfoOwner           = "mixin/injection/callback/CallbackInfo"
	callbackInfoReturnableOwner = "mixin/injection/callback/CallbackInfoReturnable"
)

// applyCallback implements §4.9.1 @Inject: at every resolved site, a
// CallbackInfo(Returnable) is constructed and passed to the mixin's
// handler alongside the target method's own parameters, then the
// generated code checks whether the handler cancelled it and, if so,
// returns immediately with the stored value (or nothing, for a void
// target).
func applyCallback(model Model, tc *TargetContext, prep *PreparedInjector) error {
	handler := prep.Spec.HandlerClone
	for _, site := range prep.Sites {
		coord := site.current()
		if coord == nil {
			continue // removed by an earlier injector this cycle
		}
		ciOwner, wantDesc, voidReturn := callbackDescriptor(site.Target)
		if handler.Desc != wantDesc {
			return fmt.Errorf("@Inject handler descriptor %s does not match expected %s for target %s%s",
				handler.Desc, wantDesc, site.Target.Name, site.Target.Desc)
		}
		_, ret, _ := SplitDescriptor(site.Target.Desc)

		var cancellable int64
		if prep.Spec.Cancellable {
			cancellable = 1
		}

		ciSlot := model.AllocateLocal(site.Target, TypeObject)
		var insns []*Insn
		insns = append(insns,
			&Insn{Op: OpNew, Owner: ciOwner},
			&Insn{Op: OpDup},
			&Insn{Op: OpLdc, Const: site.Target.Name},
			&Insn{Op: OpIConst, Const: cancellable},
			&Insn{Op: OpInvokeSpecial, Owner: ciOwner, Name: "<init>", Desc: "(Ljava/lang/String;Z)V"},
			&Insn{Op: OpAStore, Var: ciSlot, VarType: TypeObject},
		)
		insns = append(insns, buildCallbackPassthroughCall(site.Target, handler, ciSlot, tc.Class.InternalName)...)

		notCancelled := NewLabel()
		insns = append(insns,
			&Insn{Op: OpALoad, Var: ciSlot, VarType: TypeObject},
			&Insn{Op: OpInvokeVirtual, Owner: ciOwner, Name: "isCancelled", Desc: "()Z"},
			&Insn{Op: OpIfEq, Label: notCancelled},
		)
		if voidReturn {
			insns = append(insns, &Insn{Op: OpReturn})
		} else {
			insns = append(insns,
				&Insn{Op: OpALoad, Var: ciSlot, VarType: TypeObject},
				&Insn{Op: OpInvokeVirtual, Owner: ciOwner, Name: "getReturnValue", Desc: "()Ljava/lang/Object;"},
			)
			insns = append(insns, unboxAndReturn(ret)...)
		}
		insns = append(insns, notCancelled)

		// The matched instruction itself survives (code is inserted in
		// front of it), so its registry handle stays valid as-is.
		model.InsertBefore(site.Target, coord, insns...)
	}
	return nil
}

// callbackDescriptor computes the CallbackInfo(Returnable) owner and the
// handler descriptor §4.9.1 requires for target: the target's own
// parameters followed by the callback object, returning void.
func callbackDescriptor(target *Method) (ciOwner, handlerDesc string, voidReturn bool) {
	params, ret, _ := SplitDescriptor(target.Desc)
	voidReturn = ret == "" || ret == "V"
	ciOwner = callbackInfoOwner
	if !voidReturn {
		ciOwner = callbackInfoReturnableOwner
	}
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p)
	}
	b.WriteString("L" + ciOwner + ";)V")
	return ciOwner, b.String(), voidReturn
}

// buildCallbackPassthroughCall emits "this, arg0, arg1, ..., callbackInfo"
// loads followed by an invoke of handler on owner.
func buildCallbackPassthroughCall(target, handler *Method, ciSlot int, owner string) []*Insn {
	out := buildPassthroughArgLoads(target)
	out = append(out, &Insn{Op: OpALoad, Var: ciSlot, VarType: TypeObject})
	out = append(out, &Insn{Op: redirectInvokeOp(handler), Owner: owner, Name: handler.Name, Desc: handler.Desc})
	return out
}

// buildPassthroughArgLoads emits "this, arg0, arg1, ..." loads for
// target's own receiver and parameters, shared by @Inject's callback call
// and @Redirect's original-call fallback.
func buildPassthroughArgLoads(target *Method) []*Insn {
	var out []*Insn
	slot := 0
	if !target.IsStatic() {
		out = append(out, &Insn{Op: OpALoad, Var: 0, VarType: TypeObject})
		slot = 1
	}
	params, _, err := SplitDescriptor(target.Desc)
	if err == nil {
		for _, p := range params {
			pt := varTypeFromDesc(p)
			out = append(out, &Insn{Op: loadOpFor(pt), Var: slot, VarType: pt})
			slot += localWidth(pt)
		}
	}
	return out
}

// wrapperFor maps a primitive descriptor to its boxed wrapper class and
// the unboxing accessor that recovers the primitive value from it; ""
// for a reference type, which needs no unboxing.
func wrapperFor(desc string) (owner, method, methodDesc string) {
	switch desc {
	case "I":
		return "java/lang/Integer", "intValue", "()I"
	case "Z":
		return "java/lang/Boolean", "booleanValue", "()Z"
	case "B":
		return "java/lang/Byte", "byteValue", "()B"
	case "C":
		return "java/lang/Character", "charValue", "()C"
	case "S":
		return "java/lang/Short", "shortValue", "()S"
	case "J":
		return "java/lang/Long", "longValue", "()J"
	case "F":
		return "java/lang/Float", "floatValue", "()F"
	case "D":
		return "java/lang/Double", "doubleValue", "()D"
	default:
		return "", "", ""
	}
}

// unboxAndReturn emits the instructions that take the boxed Object
// CallbackInfoReturnable.getReturnValue() left on the stack, coerce it to
// ret, and return it from the target method.
func unboxAndReturn(ret string) []*Insn {
	if owner, method, methodDesc := wrapperFor(ret); owner != "" {
		return []*Insn{
			{Op: OpCheckCast, Owner: owner},
			{Op: OpInvokeVirtual, Owner: owner, Name: method, Desc: methodDesc},
			returnFor(ret),
		}
	}
	return []*Insn{
		{Op: OpCheckCast, Owner: checkCastOwner(ret)},
		returnFor(ret),
	}
}

// checkCastOwner strips the "L...;" wrapper a reference descriptor
// carries so it can be used as CHECKCAST's operand; array descriptors
// (which CHECKCAST also accepts, e.g. "[I") are returned unchanged.
func checkCastOwner(desc string) string {
	if strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";") {
		return desc[1 : len(desc)-1]
	}
	return desc
}

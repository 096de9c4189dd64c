// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"fmt"
	"strings"
)

// bundlePackage is the internal package the engine synthesizes @ModifyArgs
// bundle classes under (§4.10).
const bundlePackage = "mixinforge/runtime/"

// ArgsBundleClass synthesizes a support class carrying one public field
// per parameter of desc, named arg0..argN-1, plus a constructor assigning
// each field from a same-typed parameter (§4.10). The class is returned
// for the caller to register alongside the target class in the current
// apply cycle's output.
func ArgsBundleClass(desc string) (*Class, error) {
	params, _, err := SplitDescriptor(desc)
	if err != nil {
		return nil, fmt.Errorf("mixin: synthesizing args bundle for %q: %w", desc, err)
	}

	class := &Class{
		InternalName: bundlePackage + "Args$" + bundleSuffix(desc),
		SuperName:    RootClass,
		Access:       AccPublic | AccSynthetic,
	}
	for i, p := range params {
		class.Fields = append(class.Fields, &Field{
			Name:   fmt.Sprintf("arg%d", i),
			Desc:   p,
			Access: AccPublic,
		})
	}

	ctor := &Method{Name: "<init>", Desc: desc[:strings.Index(desc, ")")+1] + "V", Access: AccPublic}
	ctor.Insns.Append(&Insn{Op: OpALoad, Var: 0, VarType: TypeObject})
	ctor.Insns.Append(&Insn{Op: OpInvokeSpecial, Owner: RootClass, Name: "<init>", Desc: "()V"})
	slot := 1
	for i, p := range params {
		pt := varTypeFromDesc(p)
		ctor.Insns.Append(&Insn{Op: OpALoad, Var: 0, VarType: TypeObject})
		ctor.Insns.Append(&Insn{Op: loadOpFor(pt), Var: slot, VarType: pt})
		ctor.Insns.Append(&Insn{Op: OpPutField, Owner: class.InternalName, Name: fmt.Sprintf("arg%d", i), Desc: p})
		slot += localWidth(pt)
	}
	ctor.Insns.Append(&Insn{Op: OpReturn})
	ctor.MaxLocals = slot
	ctor.MaxStack = 2
	class.Methods = append(class.Methods, ctor)

	return class, nil
}

// bundleSuffix derives a filesystem/identifier-safe suffix for a bundle
// class name from its originating descriptor.
func bundleSuffix(desc string) string {
	var b strings.Builder
	for _, r := range desc {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// BundleDescriptor returns the descriptor of bundleClass used as a
// single-argument handler parameter type.
func BundleDescriptor(bundleClass *Class) string {
	return "L" + bundleClass.InternalName + ";"
}

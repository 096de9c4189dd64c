// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// mergeMethods implements §4.6.3. @Shadow methods are reference-only.
// @Overwrite methods replace an existing target method's body outright,
// refused if a higher-or-equal priority mixin already claimed the same
// method this cycle (the overwrite-priority-refusal rule). @Unique
// methods are renamed on collision like unique fields. Plain methods are
// new contributions and must not already exist.
func (a *Applicator) mergeMethods(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	for _, mi := range tc.Mixins {
		for _, m := range mi.Class.Methods {
			switch mi.RoleOf(m) {
			case RoleShadow, RoleAccessor, RoleInvoker, RoleInjector:
				continue // handled by other passes, or reference-only
			case RoleOverwrite:
				d := a.overwriteMethod(tc, mi, m)
				if d != nil {
					diags = append(diags, d)
					if d.Fatal {
						return diags, d
					}
				}
			case RoleUnique:
				a.mergeNewMethod(tc, mi, m, true)
			default:
				if existing := tc.Class.FindMethod(m.Name, m.Desc); existing != nil {
					if m.Access&AccSynthetic != 0 && existing.Access&AccSynthetic != 0 {
						// Colliding synthetic bridges are compared
						// instruction-by-instruction: identical bridges
						// dedup silently, divergent ones are a conflict.
						if bridgesEquivalent(existing, m) {
							continue
						}
						d := ApplyError(tc.Class.InternalName, mi.ClassName,
							m.Name+m.Desc, "synthetic bridge collides with a non-equivalent bridge on the target")
						diags = append(diags, d)
						return diags, d
					}
					d := ApplyError(tc.Class.InternalName, mi.ClassName,
						m.Name+m.Desc, "method collides with an existing target method; annotate with @Overwrite or @Unique")
					diags = append(diags, d)
					return diags, d
				}
				a.mergeNewMethod(tc, mi, m, false)
			}
		}
	}
	return diags, nil
}

func (a *Applicator) overwriteMethod(tc *TargetContext, mi *MixinInfo, m *Method) *Diagnostic {
	existing := tc.Class.FindMethod(m.Name, m.Desc)
	if existing == nil {
		return MixinResolutionError(tc.Class.InternalName, mi.ClassName,
			fmt.Sprintf("@Overwrite method %s%s does not exist on target", m.Name, m.Desc), false)
	}
	if existing.mergedBy != "" && existing.mergedAtPriority >= mi.Priority {
		// The refusal is reported but does not abort the cycle: the
		// existing higher-or-equal priority body stays in place.
		d := ApplyError(tc.Class.InternalName, mi.ClassName, m.Name+m.Desc,
			fmt.Sprintf("refused: already overwritten by %s at priority %d", existing.overwrittenBy, existing.mergedAtPriority))
		d.Fatal = false
		return d
	}

	clone := a.Model.CloneMethod(m)
	existing.Insns = clone.Insns
	existing.MaxStack = clone.MaxStack
	existing.MaxLocals = clone.MaxLocals
	existing.TryCatch = clone.TryCatch
	existing.LocalVars = clone.LocalVars
	existing.mergedBy = mi.ClassName
	existing.overwrittenBy = mi.ClassName
	existing.mergedAtPriority = mi.Priority
	return nil
}

// bridgesEquivalent compares two synthetic bridge bodies for semantic
// equality: same opcode sequence with matching operands, jump targets
// compared by list position rather than label identity.
func bridgesEquivalent(a, b *Method) bool {
	if a.Insns.Len() != b.Insns.Len() {
		return false
	}
	an, bn := a.Insns.Head(), b.Insns.Head()
	for an != nil && bn != nil {
		if an.Op != bn.Op ||
			an.Var != bn.Var || an.VarType != bn.VarType ||
			an.Owner != bn.Owner || an.Name != bn.Name || an.Desc != bn.Desc ||
			an.Const != bn.Const {
			return false
		}
		if (an.Label == nil) != (bn.Label == nil) {
			return false
		}
		if an.Label != nil && a.Insns.Index(an.Label) != b.Insns.Index(bn.Label) {
			return false
		}
		an, bn = an.Next(), bn.Next()
	}
	return an == nil && bn == nil
}

func (a *Applicator) mergeNewMethod(tc *TargetContext, mi *MixinInfo, m *Method, unique bool) {
	clone := a.Model.CloneMethod(m)
	if unique {
		if tc.Class.FindMethod(m.Name, m.Desc) != nil {
			clone.Name = mangledMemberName(mi.ClassName, m.Name)
		}
	}
	clone.mergedBy = mi.ClassName
	clone.mergedAtPriority = mi.Priority
	tc.Class.Methods = append(tc.Class.Methods, clone)
}

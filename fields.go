// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// mergeFields implements §4.6.2. @Shadow fields are reference-only and
// must already exist on the target; @Unique fields are renamed on
// collision so two mixins can each carry a same-named private field
// without clashing; plain fields merged by two differently-prioritized
// mixins resolve by priority (higher wins, equal is an error), much as
// overwriteMethod in methods.go lets the higher priority win for methods,
// though it refuses an equal- or lower-priority overwrite with a
// non-fatal diagnostic. A plain field
// colliding with a field the target itself declares (never merged by
// any mixin) signals the author meant @Shadow and forgot the
// annotation.
func (a *Applicator) mergeFields(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	for _, mi := range tc.Mixins {
		for _, f := range mi.Class.Fields {
			role := mi.FieldRoleOf(f)
			existing := tc.Class.FindField(f.Name, f.Desc)

			switch role {
			case RoleShadow:
				if existing == nil {
					diags = append(diags, MixinResolutionError(tc.Class.InternalName, mi.ClassName,
						fmt.Sprintf("@Shadow field %s%s does not exist on target", f.Name, f.Desc), false))
				}
			case RoleUnique:
				name := f.Name
				if existing != nil {
					name = mangledMemberName(mi.ClassName, f.Name)
				}
				clone := *f
				clone.Name = name
				tc.Class.Fields = append(tc.Class.Fields, &clone)
			default:
				if existing != nil {
					if existing.mergedBy == "" {
						d := ApplyError(tc.Class.InternalName, mi.ClassName,
							f.Name+f.Desc, "field collides with an existing target field; annotate with @Shadow or @Unique")
						diags = append(diags, d)
						return diags, d
					}
					if existing.mergedAtPriority == mi.Priority {
						d := ApplyError(tc.Class.InternalName, mi.ClassName, f.Name+f.Desc,
							fmt.Sprintf("field collides with %s at equal priority %d", existing.mergedBy, existing.mergedAtPriority))
						diags = append(diags, d)
						return diags, d
					}
					if existing.mergedAtPriority > mi.Priority {
						continue // lower priority loses, keep the existing field
					}
					existing.Desc = f.Desc
					existing.Access = f.Access
					existing.Value = f.Value
					existing.Visible = f.Visible
					existing.Invisible = f.Invisible
					existing.mergedBy = mi.ClassName
					existing.mergedAtPriority = mi.Priority
					continue
				}
				clone := *f
				clone.mergedBy = mi.ClassName
				clone.mergedAtPriority = mi.Priority
				tc.Class.Fields = append(tc.Class.Fields, &clone)
			}
		}
	}
	return diags, nil
}

// mangledMemberName produces a collision-free name for a @Unique member
// by folding in its owning mixin's simple class name.
func mangledMemberName(mixinClass, name string) string {
	simple := mixinClass
	for i := len(mixinClass) - 1; i >= 0; i-- {
		if mixinClass[i] == '/' {
			simple = mixinClass[i+1:]
			break
		}
	}
	return simple + "$" + name
}

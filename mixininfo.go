// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"fmt"
	"strings"
)

// Annotation type names recognized on a mixin class's members (§3, §4.5).
// These are the fully-qualified marker annotation names the parser looks
// for on each Field/Method's Visible/Invisible lists.
const (
	AnnMixin          = "Lmixin/Mixin;"
	AnnShadow         = "Lmixin/Shadow;"
	AnnOverwrite      = "Lmixin/Overwrite;"
	AnnUnique         = "Lmixin/Unique;"
	AnnAccessor       = "Lmixin/Accessor;"
	AnnInvoker        = "Lmixin/Invoker;"
	AnnInject         = "Lmixin/Inject;"
	AnnRedirect       = "Lmixin/Redirect;"
	AnnModifyArg      = "Lmixin/ModifyArg;"
	AnnModifyArgs     = "Lmixin/ModifyArgs;"
	AnnModifyVariable = "Lmixin/ModifyVariable;"
	AnnModifyConstant = "Lmixin/ModifyConstant;"
)

// MemberRole classifies a mixin-declared field or method by the marker
// annotation it carries (§3 Mixin info).
type MemberRole int

const (
	RolePlain MemberRole = iota
	RoleShadow
	RoleOverwrite
	RoleUnique
	RoleAccessor
	RoleInvoker
	RoleInjector
)

// MixinInfo is the parsed metadata of one mixin class (§3, §4.5): its
// declared targets, conflict-resolution priority, detached-superclass
// relaxation, and the role of each of its members.
type MixinInfo struct {
	ClassName   string
	Class       *Class
	Targets     []string
	Priority    int
	Detached    bool // declares a superclass other than its real compiled one
	Pseudo      bool // relaxes strict target-hierarchy checks (§9)
	ConfigPkg   string

	// Mapper is the reference mapper of the configuration that declared
	// this mixin, nil if that configuration carries no refmap (§4.2).
	Mapper *ReferenceMapper

	// Plugin is the companion plugin of the declaring configuration
	// (§6.3), nil if it names none; the applicator brackets this
	// mixin's application with its PreApply/PostApply hooks.
	Plugin CompanionPlugin

	fieldRole  map[Signature]MemberRole
	methodRole map[Signature]MemberRole
}

// remap resolves an annotation-declared member reference string through
// mi's reference mapper, keyed by mi's own dotted class name per §6.1.
// Setting a mapper's "current context" is a process-wide operation
// (§4.2), so this scopes it to ConfigPkg only for the duration of the
// lookup and restores whatever context was active before, rather than
// leaving it set for whichever apply cycle happens to run next (§5). A
// mixin with no attached mapper (no refmap declared by its
// configuration) returns reference unchanged.
func (mi *MixinInfo) remap(reference string) string {
	if mi.Mapper == nil {
		return reference
	}
	prev := mi.Mapper.Context()
	mi.Mapper.SetContext(mi.ConfigPkg)
	defer mi.Mapper.SetContext(prev)
	return mi.Mapper.Remap(strings.ReplaceAll(mi.ClassName, "/", "."), reference)
}

// mixinAnnotationArgs is the subset of @Mixin's declared arguments the
// parser consumes: target class names (by internal name or string
// literal) and optional priority/pseudo overrides.
type mixinAnnotationArgs struct {
	Targets  []string
	Priority int
	Pseudo   bool
}

// ParseMixinInfo builds a MixinInfo from a parsed mixin class tree. It
// requires the class carry an @Mixin annotation naming at least one
// target, unless pseudo is set by that same annotation, in which case a
// detached superclass stands in for an explicit target list (§9).
func ParseMixinInfo(class *Class, configPkg string) (*MixinInfo, error) {
	ann := findAnnotation(class.Visible, AnnMixin)
	if ann == nil {
		ann = findAnnotation(class.Invisible, AnnMixin)
	}
	if ann == nil {
		return nil, MixinResolutionError("", class.InternalName, "class carries no @Mixin annotation", false)
	}

	args := parseMixinAnnotationArgs(ann)
	info := &MixinInfo{
		ClassName:  class.InternalName,
		Class:      class,
		Targets:    args.Targets,
		Priority:   args.Priority,
		Pseudo:     args.Pseudo,
		ConfigPkg:  configPkg,
		fieldRole:  make(map[Signature]MemberRole),
		methodRole: make(map[Signature]MemberRole),
	}
	if info.Priority == 0 {
		info.Priority = defaultPriority
	}

	if len(info.Targets) == 0 {
		if !info.Pseudo {
			return nil, MixinResolutionError("", class.InternalName, "@Mixin declares no targets and is not pseudo", false)
		}
		info.Detached = true
		info.Targets = []string{class.SuperName}
	}

	for _, f := range class.Fields {
		info.fieldRole[f.signature()] = classifyField(f)
	}
	for _, m := range class.Methods {
		info.methodRole[m.signature()] = classifyMethod(m)
	}

	return info, nil
}

// RoleOf returns the classification for a mixin-declared method.
func (mi *MixinInfo) RoleOf(m *Method) MemberRole {
	return mi.methodRole[m.signature()]
}

// FieldRoleOf returns the classification for a mixin-declared field.
func (mi *MixinInfo) FieldRoleOf(f *Field) MemberRole {
	return mi.fieldRole[f.signature()]
}

// TargetsInclude reports whether internalName is one of this mixin's
// declared targets.
func (mi *MixinInfo) TargetsInclude(internalName string) bool {
	for _, t := range mi.Targets {
		if t == internalName {
			return true
		}
	}
	return false
}

func classifyField(f *Field) MemberRole {
	switch {
	case findAnnotation(f.Visible, AnnShadow) != nil, findAnnotation(f.Invisible, AnnShadow) != nil:
		return RoleShadow
	case findAnnotation(f.Visible, AnnUnique) != nil, findAnnotation(f.Invisible, AnnUnique) != nil:
		return RoleUnique
	default:
		return RolePlain
	}
}

func classifyMethod(m *Method) MemberRole {
	for _, name := range []string{AnnInject, AnnRedirect, AnnModifyArg, AnnModifyArgs, AnnModifyVariable, AnnModifyConstant} {
		if findAnnotation(m.Visible, name) != nil || findAnnotation(m.Invisible, name) != nil {
			return RoleInjector
		}
	}
	switch {
	case findAnnotation(m.Visible, AnnShadow) != nil, findAnnotation(m.Invisible, AnnShadow) != nil:
		return RoleShadow
	case findAnnotation(m.Visible, AnnOverwrite) != nil, findAnnotation(m.Invisible, AnnOverwrite) != nil:
		return RoleOverwrite
	case findAnnotation(m.Visible, AnnUnique) != nil, findAnnotation(m.Invisible, AnnUnique) != nil:
		return RoleUnique
	case findAnnotation(m.Visible, AnnAccessor) != nil, findAnnotation(m.Invisible, AnnAccessor) != nil:
		return RoleAccessor
	case findAnnotation(m.Visible, AnnInvoker) != nil, findAnnotation(m.Invisible, AnnInvoker) != nil:
		return RoleInvoker
	default:
		return RolePlain
	}
}

func findAnnotation(list []Annotation, typeName string) *Annotation {
	for i := range list {
		if list[i].Type == typeName {
			return &list[i]
		}
	}
	return nil
}

func parseMixinAnnotationArgs(ann *Annotation) mixinAnnotationArgs {
	var args mixinAnnotationArgs
	if v, ok := ann.Values["value"]; ok {
		args.Targets = append(args.Targets, stringsFromValue(v)...)
	}
	if v, ok := ann.Values["targets"]; ok {
		args.Targets = append(args.Targets, stringsFromValue(v)...)
	}
	if v, ok := ann.Values["priority"]; ok {
		args.Priority = intFromValue(v)
	}
	if v, ok := ann.Values["pseudo"]; ok {
		if b, ok := v.(bool); ok {
			args.Pseudo = b
		}
	}
	return args
}

func stringsFromValue(v AnnotationValue) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []AnnotationValue:
		var out []string
		for _, e := range t {
			out = append(out, stringsFromValue(e)...)
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

func intFromValue(v AnnotationValue) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"fmt"
	"strconv"
	"strings"
)

// InjectorKind names one of the six injector annotations of §4.9.
type InjectorKind string

const (
	KindCallback       InjectorKind = "Inject"
	KindRedirect       InjectorKind = "Redirect"
	KindModifyArg      InjectorKind = "ModifyArg"
	KindModifyArgs     InjectorKind = "ModifyArgs"
	KindModifyVariable InjectorKind = "ModifyVariable"
	KindModifyConstant InjectorKind = "ModifyConstant"
)

// InjectorSpec is the parsed, common shape of every injector annotation:
// which target methods it applies to, which points within them it
// selects, and its require/expect/allow cardinality constraints (§4.9).
type InjectorSpec struct {
	Kind    InjectorKind
	Handler *Method
	Mixin   *MixinInfo

	// HandlerClone is the handler's body cloned onto the target class
	// under a collision-free name, set during the prepare pass so the
	// apply pass has something concrete to invoke.
	HandlerClone *Method

	// TargetMethods is every method reference the injector's "method"
	// value names (one, or several via the annotation's array form);
	// TargetMethod aliases the first for the common single-target case.
	TargetMethod  Member
	TargetMethods []Member
	Points        []InjectionPoint
	SliceSpecs    map[string]SliceSpec

	Require int // minimum matches across all target methods combined, -1 for "at least one"
	Expect  int // exact expected match count, -1 if unset
	Allow   int // maximum allowed match count, -1 for unbounded

	Group       string
	ArgIndex    int // @ModifyArg target parameter index, -1 if unset (means "the sole candidate")
	Local       LocalSelector
	ConstantOld any // @ModifyConstant's narrowing constant, nil to match any

	// Cancellable is @Inject's "cancellable" flag, threaded into the
	// constructed CallbackInfo(Returnable) so its cancel() can refuse to
	// honor a handler that never declared intent to cancel (§4.9.1).
	Cancellable bool
}

// InjectionSite is one resolved (target method, coordinate) pair an
// injector will act on. Coord is the instruction as matched at prepare
// time; the live coordinate comes from the injection-node registry via
// current(), since an earlier injector of the same cycle may have
// replaced the matched instruction (§4.6.7).
type InjectionSite struct {
	Target *Method
	Coord  *Insn
	node   *nodeHandle
}

// current resolves the site's live instruction through the registry
// handle: the tracked replacement if one landed, nil if an earlier
// injector removed the instruction without replacement (the handle
// outlives the node, marked removed, per §3), and the raw prepare-time
// coordinate for sites built without a registry.
func (s InjectionSite) current() *Insn {
	n := s.Coord
	if s.node != nil {
		n = s.node.Current
	}
	if n != nil && n.owner == nil {
		return nil
	}
	return n
}

// PreparedInjector is the output of the injector-prepare pass (§4.6.6):
// a spec plus the concrete sites it resolved against the target class,
// ready for the injector-apply pass (§4.6.7) to act on.
type PreparedInjector struct {
	Spec  InjectorSpec
	Sites []InjectionSite
}

// injectorGroup accumulates the shared require count of every injector
// declaring the same group name (§4.9): members pool their matches, and
// the group as a whole must meet the largest require any member
// declared.
type injectorGroup struct {
	mixin, member string
	count         int
	require       int
}

// prepareInjectors implements §4.6.6: every injector-role method on
// every mixin is parsed into a spec, resolved against the target's
// current (fully merged) method set, and checked against its
// require/expect/allow bounds. No existing method body is mutated in
// this pass (its only change to the target is appending the handler
// clones) — body mutation is deferred to applyInjectors so every injector sees the
// target in the same, fully-resolved state its sibling injectors do.
func (a *Applicator) prepareInjectors(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	groups := make(map[string]*injectorGroup)
	for _, mi := range tc.Mixins {
		for _, m := range mi.Class.Methods {
			if mi.RoleOf(m) != RoleInjector {
				continue
			}
			spec, err := parseInjectorSpec(mi, m)
			if err != nil {
				d := InvalidInjectionError(tc.Class.InternalName, mi.ClassName, m.Name+m.Desc, err.Error(), false)
				diags = append(diags, d)
				continue
			}
			for _, point := range spec.Points {
				if point.Shift == ShiftBy && (point.By > 3 || point.By < -3) {
					diags = append(diags, InvalidInjectionError(tc.Class.InternalName, mi.ClassName, m.Name+m.Desc,
						fmt.Sprintf("shift by %d exceeds the recommended range of +/-3", point.By), false))
				}
			}

			targets := resolveTargetMethods(tc.Class, spec.TargetMethods)
			if len(targets) == 0 {
				diags = append(diags, InjectionNotFoundError(tc.Class.InternalName, mi.ClassName, m.Name,
					fmt.Sprintf("no target method matches %s", spec.TargetMethod.String()), false))
				continue
			}

			var sites []InjectionSite
			for _, target := range targets {
				regions, err := ResolveSliceSpecs(target, spec.SliceSpecs)
				if err != nil {
					diags = append(diags, InvalidInjectionError(tc.Class.InternalName, mi.ClassName, m.Name, err.Error(), true))
					continue
				}
				for _, point := range spec.Points {
					matches, err := point.Find(target, regions)
					if err != nil {
						diags = append(diags, InvalidInjectionError(tc.Class.InternalName, mi.ClassName, m.Name, err.Error(), false))
						continue
					}
					for _, coord := range matches {
						sites = append(sites, InjectionSite{Target: target, Coord: coord, node: tc.Handle(coord)})
					}
				}
			}

			if spec.Group != "" {
				// Grouped injectors pool their matches; the require check
				// runs once per group after every member has resolved.
				g, ok := groups[spec.Group]
				if !ok {
					g = &injectorGroup{mixin: mi.ClassName, member: m.Name}
					groups[spec.Group] = g
				}
				g.count += len(sites)
				if spec.Require > g.require {
					g.require = spec.Require
				}
			} else if d := checkInjectionCardinality(tc, mi, m, spec, len(sites)); d != nil {
				diags = append(diags, d)
				if d.Fatal {
					continue
				}
			}

			clone := a.Model.CloneMethod(m)
			clone.Name = mangledMemberName(mi.ClassName, m.Name)
			clone.Access = AccPrivate | AccSynthetic | (m.Access & AccStatic)
			clone.mergedBy = mi.ClassName
			tc.Class.Methods = append(tc.Class.Methods, clone)
			spec.HandlerClone = clone

			tc.Prepared = append(tc.Prepared, &PreparedInjector{Spec: spec, Sites: sites})
		}
	}
	for name, g := range groups {
		if g.count < g.require {
			diags = append(diags, InjectionNotFoundError(tc.Class.InternalName, g.mixin, g.member,
				fmt.Sprintf("group %q found %d matches across its members, fewer than require=%d", name, g.count, g.require), true))
		}
	}
	if d := firstFatal(diags); d != nil {
		return diags, d
	}
	return diags, nil
}

// resolveTargetMethods collects, in declaration order, every declared
// method of class that any of refs selects, deduplicated. A wildcard
// ref ("*") matches all; a descriptor-less ref matches by name alone.
func resolveTargetMethods(class *Class, refs []Member) []*Method {
	seen := make(map[*Method]bool)
	var out []*Method
	for _, ref := range refs {
		for _, m := range class.Methods {
			if !ref.MatchesName(m.Name) || !ref.MatchesDescriptor(m.Desc) {
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func checkInjectionCardinality(tc *TargetContext, mi *MixinInfo, m *Method, spec InjectorSpec, count int) *Diagnostic {
	switch {
	case spec.Expect >= 0 && count != spec.Expect:
		return InjectionNotFoundError(tc.Class.InternalName, mi.ClassName, m.Name,
			fmt.Sprintf("expected exactly %d matches, found %d", spec.Expect, count), !mi.Pseudo)
	case spec.Allow >= 0 && count > spec.Allow:
		return InjectionNotFoundError(tc.Class.InternalName, mi.ClassName, m.Name,
			fmt.Sprintf("found %d matches, more than allow=%d permits", count, spec.Allow), true)
	case count < spec.Require:
		return InjectionNotFoundError(tc.Class.InternalName, mi.ClassName, m.Name,
			fmt.Sprintf("found %d matches, fewer than require=%d", count, spec.Require), true)
	}
	return nil
}

// applyInjectors implements §4.6.7: every prepared injector rewrites its
// resolved sites, in priority order, one kind-specific code generator
// per injector kind.
func (a *Applicator) applyInjectors(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	for _, prep := range tc.Prepared {
		var err error
		switch prep.Spec.Kind {
		case KindCallback:
			err = applyCallback(a.Model, tc, prep)
		case KindRedirect:
			err = applyRedirect(a.Model, tc, prep)
		case KindModifyArg, KindModifyArgs:
			err = applyModifyArg(a.Model, tc, prep)
		case KindModifyVariable:
			err = applyModifyVariable(a.Model, tc, prep)
		case KindModifyConstant:
			err = applyModifyConstant(a.Model, tc, prep)
		}
		if err != nil {
			d := ApplyError(tc.Class.InternalName, prep.Spec.Mixin.ClassName, prep.Spec.Handler.Name, err.Error())
			diags = append(diags, d)
			return diags, d
		}
	}
	return diags, nil
}

func parseInjectorSpec(mi *MixinInfo, m *Method) (InjectorSpec, error) {
	ann := findInjectorAnnotation(m)
	if ann == nil {
		return InjectorSpec{}, fmt.Errorf("injector-role method carries no recognized injector annotation")
	}

	spec := InjectorSpec{
		Kind:    injectorKindFor(ann.Type),
		Handler: m,
		Mixin:   mi,
		Require: -1,
		Expect:  -1,
		Allow:   -1,
		ArgIndex: -1,
		Local:   NewLocalSelector(),
	}

	if v, ok := ann.Values["method"]; ok {
		refs := stringsFromValue(v)
		if len(refs) == 0 {
			return spec, fmt.Errorf("injector annotation has an empty \"method\" value")
		}
		for _, ref := range refs {
			methodRef := mi.remap(ref)
			parsed, err := ParseMember(methodRef)
			if err != nil {
				return spec, fmt.Errorf("parsing method reference %q: %w", methodRef, err)
			}
			spec.TargetMethods = append(spec.TargetMethods, parsed)
		}
		spec.TargetMethod = spec.TargetMethods[0]
	} else {
		return spec, fmt.Errorf("injector annotation missing required \"method\" value")
	}

	if v, ok := ann.Values["at"]; ok {
		points, err := parseInjectionPoints(v, mi)
		if err != nil {
			return spec, err
		}
		spec.Points = points
	} else {
		return spec, fmt.Errorf("injector annotation missing required \"at\" value")
	}

	if v, ok := ann.Values["slice"]; ok {
		specs, err := parseSliceSpecs(v, mi)
		if err != nil {
			return spec, err
		}
		spec.SliceSpecs = specs
	}

	if v, ok := ann.Values["require"]; ok {
		spec.Require = intFromValue(v)
	}
	if v, ok := ann.Values["expect"]; ok {
		spec.Expect = intFromValue(v)
	}
	if v, ok := ann.Values["allow"]; ok {
		spec.Allow = intFromValue(v)
	}
	if spec.Require < 0 {
		spec.Require = 1
	}
	if v, ok := ann.Values["group"]; ok {
		spec.Group = firstString(v)
	}
	if v, ok := ann.Values["index"]; ok {
		spec.ArgIndex = intFromValue(v)
	}
	if v, ok := ann.Values["ordinal"]; ok {
		spec.Local.Ordinal = intFromValue(v)
	}
	if v, ok := ann.Values["name"]; ok {
		spec.Local.Names = stringsFromValue(v)
	}
	if v, ok := ann.Values["constant"]; ok {
		spec.ConstantOld = v
	}
	if v, ok := ann.Values["cancellable"]; ok {
		if b, ok := v.(bool); ok {
			spec.Cancellable = b
		}
	}

	return spec, nil
}

func findInjectorAnnotation(m *Method) *Annotation {
	for _, name := range []string{AnnInject, AnnRedirect, AnnModifyArg, AnnModifyArgs, AnnModifyVariable, AnnModifyConstant} {
		if a := findAnnotation(m.Visible, name); a != nil {
			return a
		}
		if a := findAnnotation(m.Invisible, name); a != nil {
			return a
		}
	}
	return nil
}

func injectorKindFor(annType string) InjectorKind {
	switch annType {
	case AnnInject:
		return KindCallback
	case AnnRedirect:
		return KindRedirect
	case AnnModifyArg:
		return KindModifyArg
	case AnnModifyArgs:
		return KindModifyArgs
	case AnnModifyVariable:
		return KindModifyVariable
	case AnnModifyConstant:
		return KindModifyConstant
	default:
		return ""
	}
}

func firstString(v AnnotationValue) string {
	ss := stringsFromValue(v)
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

// parseInjectionPoints reads an "at" annotation value, which is either a
// single @At-shaped nested annotation or an array of them, into the
// InjectionPoint slice.
func parseInjectionPoints(v AnnotationValue, mi *MixinInfo) ([]InjectionPoint, error) {
	anns, err := nestedAnnotations(v)
	if err != nil {
		return nil, fmt.Errorf("\"at\" value is not an @At annotation or array of them")
	}

	var points []InjectionPoint
	for _, a := range anns {
		p, err := parseOneInjectionPoint(a, mi)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// parseSliceSpecs reads a "slice" annotation value — one or more
// @Slice-shaped nested annotations carrying "id" plus "from"/"to" @At
// annotations — into the named SliceSpec map (§4.6.6). The unnamed
// slice uses id "", matching an @At with no slice argument of its own.
func parseSliceSpecs(v AnnotationValue, mi *MixinInfo) (map[string]SliceSpec, error) {
	anns, err := nestedAnnotations(v)
	if err != nil {
		return nil, fmt.Errorf("\"slice\" value is not an @Slice annotation or array of them")
	}

	out := make(map[string]SliceSpec, len(anns))
	for _, a := range anns {
		var spec SliceSpec
		id := ""
		if idv, ok := a.Values["id"]; ok {
			id = firstString(idv)
		}
		if fv, ok := a.Values["from"]; ok {
			fa, ok := fv.(*Annotation)
			if !ok {
				return nil, fmt.Errorf("@Slice \"from\" is not an @At annotation")
			}
			p, err := parseOneInjectionPoint(fa, mi)
			if err != nil {
				return nil, fmt.Errorf("parsing @Slice from: %w", err)
			}
			spec.From = &p
		}
		if tv, ok := a.Values["to"]; ok {
			ta, ok := tv.(*Annotation)
			if !ok {
				return nil, fmt.Errorf("@Slice \"to\" is not an @At annotation")
			}
			p, err := parseOneInjectionPoint(ta, mi)
			if err != nil {
				return nil, fmt.Errorf("parsing @Slice to: %w", err)
			}
			spec.To = &p
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("duplicate @Slice id %q", id)
		}
		out[id] = spec
	}
	return out, nil
}

// nestedAnnotations normalizes an annotation value holding one nested
// annotation or an array of them into a slice.
func nestedAnnotations(v AnnotationValue) ([]*Annotation, error) {
	switch t := v.(type) {
	case *Annotation:
		return []*Annotation{t}, nil
	case []AnnotationValue:
		var out []*Annotation
		for _, e := range t {
			if a, ok := e.(*Annotation); ok {
				out = append(out, a)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a nested annotation")
	}
}

func parseOneInjectionPoint(a *Annotation, mi *MixinInfo) (InjectionPoint, error) {
	p := InjectionPoint{Ordinal: -1}
	kindStr, ok := a.Values["value"]
	if !ok {
		return p, fmt.Errorf("@At annotation missing required \"value\"")
	}
	kind, suffix, hasSuffix := strings.Cut(firstString(kindStr), ":")
	p.Kind = InjectionPointKind(kind)
	if hasSuffix {
		switch suffix {
		case "FIRST":
			p.Limit = LimitFirst
		case "LAST":
			p.Limit = LimitLast
		case "ONE":
			p.Limit = LimitOne
		default:
			return p, fmt.Errorf("unknown selector suffix %q", suffix)
		}
	}

	if v, ok := a.Values["target"]; ok {
		targetRef := mi.remap(firstString(v))
		member, err := ParseMember(targetRef)
		if err != nil {
			return p, fmt.Errorf("parsing @At target %q: %w", targetRef, err)
		}
		p.Target = member
	}
	if v, ok := a.Values["ordinal"]; ok {
		p.Ordinal = intFromValue(v)
	}
	if v, ok := a.Values["shift"]; ok {
		switch firstString(v) {
		case "BEFORE":
			p.Shift = ShiftBefore
		case "AFTER":
			p.Shift = ShiftAfter
		case "BY":
			p.Shift = ShiftBy
		}
	}
	if v, ok := a.Values["by"]; ok {
		p.By = intFromValue(v)
		if p.By > shiftByCap || p.By < -shiftByCap {
			return p, fmt.Errorf("shift by %d exceeds the hard cap of +/-%d", p.By, shiftByCap)
		}
	}
	if v, ok := a.Values["slice"]; ok {
		p.Slice = firstString(v)
	}
	if v, ok := a.Values["constant"]; ok {
		p.ConstantValue = v
	}
	if v, ok := a.Values["args"]; ok {
		applyAtArgs(&p, parseAtArgs(v))
	}
	return p, nil
}

// parseAtArgs splits @At's "args" value — one or more "key=value" strings,
// e.g. {"ldc=foo", "expandZeroConditions=LESS_THAN_ZERO"} — into a map.
// An entry with no "=" is ignored.
func parseAtArgs(v AnnotationValue) map[string]string {
	out := make(map[string]string)
	for _, s := range stringsFromValue(v) {
		k, val, ok := strings.Cut(s, "=")
		if !ok {
			continue
		}
		out[k] = val
	}
	return out
}

// applyAtArgs dispatches the named @At args this module recognizes onto the
// InjectionPoint fields they configure: "ldc" narrows INVOKE_STRING, and
// "intValue"/"expandZeroConditions" narrow CONSTANT's zero-comparison
// expansion (§4.7, §8 property 7).
func applyAtArgs(p *InjectionPoint, args map[string]string) {
	if ldc, ok := args["ldc"]; ok {
		p.StringValue = ldc
	}
	if iv, ok := args["intValue"]; ok {
		// Stored as int64, the integer representation the wire model
		// uses for instruction constants.
		if n, err := strconv.ParseInt(iv, 10, 64); err == nil {
			p.ConstantValue = n
		}
	}
	if ez, ok := args["expandZeroConditions"]; ok {
		p.ExpandZeroConditions = zeroConditionFromString(ez)
	}
}

func zeroConditionFromString(s string) ZeroCondition {
	switch s {
	case "EQUAL_TO_ZERO":
		return ZeroConditionEqualZero
	case "NOT_EQUAL_TO_ZERO":
		return ZeroConditionNotEqualZero
	case "LESS_THAN_ZERO":
		return ZeroConditionLessThanZero
	case "GREATER_THAN_ZERO":
		return ZeroConditionGreaterThanZero
	case "GREATER_THAN_OR_EQUAL_TO_ZERO":
		return ZeroConditionGreaterOrEqualZero
	case "LESS_THAN_OR_EQUAL_TO_ZERO":
		return ZeroConditionLessOrEqualZero
	default:
		return ZeroConditionNone
	}
}

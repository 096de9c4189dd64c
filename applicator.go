// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

// Applicator runs the eight ordered merge passes of §4.6 over a
// TargetContext: interfaces, fields, methods, initializers, accessors,
// injector-prepare, injector-apply, post-apply.
type Applicator struct {
	Model Model
	Cache *ClassInfoCache
}

// NewApplicator returns an Applicator sharing model's frame computer and
// cache with the rest of the engine.
func NewApplicator(model Model, cache *ClassInfoCache) *Applicator {
	return &Applicator{Model: model, Cache: cache}
}

// Apply runs every pass over tc in order, collecting non-fatal
// diagnostics and returning the first fatal one as an error. A fatal
// diagnostic aborts the whole target transform (§7): the caller should
// discard any partial mutation of tc.Class and return the
// pre-transform bytes.
func (a *Applicator) Apply(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	for _, mi := range tc.Mixins {
		tc.pluginFor(mi).PreApply(tc.Class.InternalName, mi.ClassName)
	}
	passes := []func(*TargetContext) ([]*Diagnostic, error){
		a.mergeInterfaces,
		a.mergeFields,
		a.mergeMethods,
		a.mergeInitializers,
		a.synthesizeAccessors,
		a.prepareInjectors,
		a.applyInjectors,
		a.postApply,
	}
	for _, pass := range passes {
		passDiags, err := pass(tc)
		diags = append(diags, passDiags...)
		if err != nil {
			return diags, err
		}
	}
	for _, mi := range tc.Mixins {
		tc.pluginFor(mi).PostApply(tc.Class.InternalName, mi.ClassName)
	}
	return diags, nil
}

// postApply recomputes stack/locals for every method the cycle may have
// touched and re-registers the target's new shape with the class-info
// cache, so subsequent cycles and hierarchy lookups observe it (§4.6.8).
func (a *Applicator) postApply(tc *TargetContext) ([]*Diagnostic, error) {
	if a.Model.Frames != nil {
		for _, m := range tc.Class.Methods {
			a.Model.Frames.Recompute(tc.Class, m)
		}
	}
	for _, iface := range tc.Class.Interfaces {
		if a.Cache != nil {
			a.Cache.RecordInterface(tc.Class.InternalName, iface)
		}
	}
	return nil, nil
}

// firstFatal returns the first diagnostic in diags with Fatal set, or
// nil.
func firstFatal(diags []*Diagnostic) *Diagnostic {
	for _, d := range diags {
		if d.Fatal {
			return d
		}
	}
	return nil
}

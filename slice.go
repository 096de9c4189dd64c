// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// SliceSpec is the parsed, unresolved form of an @Slice annotation: the
// from/to injection points bounding the region, evaluated once per
// target method during injector preparation (§4.6.6).
type SliceSpec struct {
	From *InjectionPoint
	To   *InjectionPoint
}

// SliceRegion names a sub-range of a method's instruction list, bounded
// by two other injection points resolved once per apply cycle (§4.7
// slice regions). From/To being nil means "start of method"/"end of
// method" respectively.
type SliceRegion struct {
	From *Insn
	To   *Insn
}

func (s SliceRegion) start(method *Method) *Insn {
	if s.From != nil {
		return s.From
	}
	return method.Insns.Head()
}

func (s SliceRegion) end(method *Method) *Insn {
	return s.To
}

// ResolveSlice runs a "from" and "to" injection point once each against
// method and returns the SliceRegion they bound. A from/to selector
// matching nothing leaves that bound open (start-of-method / end-of-
// method respectively), which is preferable to erroring: a slice that
// can't narrow one side still narrows the other. A region whose bounds
// resolve to zero or negative size (To at or before From) is an error
// per §4.7.
func ResolveSlice(method *Method, from, to *InjectionPoint, slices map[string]SliceRegion) (SliceRegion, error) {
	var region SliceRegion
	if from != nil {
		matches, err := from.Find(method, slices)
		if err != nil {
			return region, err
		}
		if len(matches) > 0 {
			region.From = matches[0]
		}
	}
	if to != nil {
		matches, err := to.Find(method, slices)
		if err != nil {
			return region, err
		}
		if len(matches) > 0 {
			region.To = matches[0]
		}
	}
	if region.From != nil && region.To != nil {
		if method.Insns.Index(region.To) <= method.Insns.Index(region.From) {
			return region, fmt.Errorf("mixin: slice has no positive size: to-bound does not follow from-bound")
		}
	}
	return region, nil
}

// ResolveSliceSpecs evaluates every named SliceSpec of an injector
// against one target method, producing the region map its injection
// points consult.
func ResolveSliceSpecs(method *Method, specs map[string]SliceSpec) (map[string]SliceRegion, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]SliceRegion, len(specs))
	for id, spec := range specs {
		region, err := ResolveSlice(method, spec.From, spec.To, nil)
		if err != nil {
			return nil, fmt.Errorf("resolving slice %q: %w", id, err)
		}
		out[id] = region
	}
	return out, nil
}

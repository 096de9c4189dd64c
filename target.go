// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "github.com/google/uuid"

// TargetContext is the per-apply-cycle state for one target class: the
// class tree being transformed, the ordered list of mixins contributing
// to it, and the injection-node registry instruction-identity tracking
// needs so a later pass can still find a node an earlier pass spliced in
// place of the one it was originally handed (§9).
type TargetContext struct {
	Class   *Class
	Mixins  []*MixinInfo
	Cycle   string
	Plugin  CompanionPlugin

	nodes        map[*Insn]*nodeHandle
	Prepared     []*PreparedInjector
	Synthesized  []*Class
}

// nodeHandle is a stable identity for an instruction across in-place
// replacement: injector code holds a *nodeHandle rather than a raw *Insn,
// so InsertBefore/Replace during a later pass can update Current without
// invalidating anything already holding the handle.
type nodeHandle struct {
	Current *Insn
}

// NewTargetContext starts a fresh apply cycle for class, with mixins
// already ordered by ascending priority, declaration order among equals
// (§4.6 merge order).
func NewTargetContext(class *Class, mixins []*MixinInfo, plugin CompanionPlugin) *TargetContext {
	if plugin == nil {
		plugin = NoopPlugin{}
	}
	return &TargetContext{
		Class:  class,
		Mixins: mixins,
		Cycle:  uuid.NewString(),
		Plugin: plugin,
		nodes:  make(map[*Insn]*nodeHandle),
	}
}

// pluginFor returns the companion plugin bracketing mi's application:
// the declaring configuration's own plugin when it has one, else the
// context-wide default (§6.3).
func (tc *TargetContext) pluginFor(mi *MixinInfo) CompanionPlugin {
	if mi.Plugin != nil {
		return mi.Plugin
	}
	return tc.Plugin
}

// Handle returns the stable handle for insn, creating one on first
// request.
func (tc *TargetContext) Handle(insn *Insn) *nodeHandle {
	if h, ok := tc.nodes[insn]; ok {
		return h
	}
	h := &nodeHandle{Current: insn}
	tc.nodes[insn] = h
	return h
}

// Retarget moves every handle currently pointing at old to point at
// replacement instead, called by the applicator whenever a pass replaces
// a node a handle may already reference.
func (tc *TargetContext) Retarget(old, replacement *Insn) {
	if h, ok := tc.nodes[old]; ok {
		h.Current = replacement
		delete(tc.nodes, old)
		tc.nodes[replacement] = h
	}
}

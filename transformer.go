// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// reentranceKey is the context key holding the set of internal class
// names currently mid-transform on this call chain (§5). Context
// propagation, not goroutine-local state, is what threads this set down
// the host's own class-loading call graph; a host that hands the same
// context through a reentrant load naturally gets the guard for free.
type reentranceKey struct{}

// Transformer is the process-wide bytecode transform entry point of
// §6.4: given a target class's raw bytes, it resolves every mixin
// targeting it from the registry, runs the eight-pass applicator, and
// re-emits the result. It refuses to recurse into the same class on the
// same call chain (§5).
type Transformer struct {
	Registry *Registry
	Cache    *ClassInfoCache
	Model    Model
	Apply    *Applicator
	Board    *Blackboard
	Log      *zap.SugaredLogger
}

// NewTransformer wires the pieces of one engine instance together.
func NewTransformer(registry *Registry, cache *ClassInfoCache, model Model, log *zap.SugaredLogger) *Transformer {
	if log == nil {
		l, _ := zap.NewProduction()
		log = l.Sugar()
	}
	return &Transformer{
		Registry: registry,
		Cache:    cache,
		Model:    model,
		Apply:    NewApplicator(model, cache),
		Board:    NewBlackboard(),
		Log:      log,
	}
}

// TransformResult is everything one Transform call produced: the
// re-emitted bytes, any support classes @ModifyArgs synthesized that
// cycle, and every non-fatal diagnostic collected along the way.
type TransformResult struct {
	Bytes       []byte
	Synthesized []*Class
	Diagnostics []*Diagnostic
}

// Transform runs one apply cycle for internalName's raw bytes. If no
// mixin targets internalName, data is returned unchanged. A reentrant
// call for a class already mid-transform on this call chain returns data
// unchanged with a single ReentranceWarning diagnostic rather than
// recursing (§5).
func (t *Transformer) Transform(ctx context.Context, internalName string, data []byte) (*TransformResult, error) {
	active, _ := ctx.Value(reentranceKey{}).(map[string]bool)
	if active[internalName] {
		return &TransformResult{Bytes: data, Diagnostics: []*Diagnostic{ReentranceWarning(internalName)}}, nil
	}
	nextActive := make(map[string]bool, len(active)+1)
	for k := range active {
		nextActive[k] = true
	}
	nextActive[internalName] = true
	ctx = context.WithValue(ctx, reentranceKey{}, nextActive)

	mixins := t.collectMixins(internalName)
	if len(mixins) == 0 {
		return &TransformResult{Bytes: data}, nil
	}

	class, err := t.Model.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("mixin: parsing %s: %w", internalName, err)
	}

	sortMixinsByPriority(mixins)
	tc := NewTargetContext(class, mixins, nil)

	diags, applyErr := t.Apply.Apply(tc)
	if applyErr != nil {
		t.Log.Warnw("mixin apply aborted", "target", internalName, "error", applyErr)
		return &TransformResult{Bytes: data, Diagnostics: diags}, applyErr
	}

	out, err := t.Model.Emit(class)
	if err != nil {
		return nil, fmt.Errorf("mixin: emitting %s: %w", internalName, err)
	}

	if t.Cache != nil {
		t.Cache.forName(internalName) // refresh now that the shape changed
	}

	return &TransformResult{Bytes: out, Synthesized: tc.Synthesized, Diagnostics: diags}, nil
}

// collectMixins gathers every parsed MixinInfo, across every applied
// configuration, that declares internalName as a target, attaching each
// configuration's companion plugin so the applicator can bracket every
// mixin's application with that plugin's PreApply/PostApply hooks
// (§6.3).
func (t *Transformer) collectMixins(internalName string) []*MixinInfo {
	var out []*MixinInfo
	for _, cfg := range t.Registry.Applied() {
		plugin := cfg.Plugin
		if plugin == nil {
			plugin = NoopPlugin{}
		}
		for _, mi := range cfg.mixins {
			if mi.TargetsInclude(internalName) {
				if !plugin.ShouldApplyMixin(internalName, mi.ClassName) {
					continue
				}
				mi.Plugin = plugin
				out = append(out, mi)
			}
		}
	}
	return out
}

// sortMixinsByPriority orders mixins by ascending priority, declaration
// order preserved among equals (§5): a lower-priority mixin merges and
// injects first, so a higher-priority one can overwrite its
// contributions and its hooks run closer to the original code.
func sortMixinsByPriority(mixins []*MixinInfo) {
	for i := 1; i < len(mixins); i++ {
		for j := i; j > 0 && mixins[j-1].Priority > mixins[j].Priority; j-- {
			mixins[j-1], mixins[j] = mixins[j], mixins[j-1]
		}
	}
}

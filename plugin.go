// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

// CompanionPlugin is the optional per-configuration hook of §6.3: a
// configuration may name a plugin class implementing this interface to
// veto individual mixins, rewrite the set of targets a wildcard mixin
// applies to, or observe each merge as it happens.
type CompanionPlugin interface {
	// ShouldApplyMixin is consulted once per declared (target, mixin)
	// pair before resolution begins. Returning false silently drops the
	// mixin from that target with no diagnostic: the plugin is assumed
	// to know this combination does not apply in the host's current
	// environment (optional feature module, wrong game side, and so on).
	ShouldApplyMixin(targetName, mixinName string) bool

	// AcceptTargets is called once per mixin that declares itself
	// dynamically targetable (no fixed @Target), with the set of
	// candidate names the engine discovered; it returns the subset (or
	// superset) the plugin wants the mixin to actually apply to.
	AcceptTargets(mixinName string, candidates []string) []string

	// PreApply and PostApply bracket a single mixin's application to a
	// single target, letting the plugin react to or veto nothing (the
	// apply itself cannot be vetoed here; that's ShouldApplyMixin's job)
	// but can use these hooks to log, profile, or mutate shared state
	// published on the Blackboard.
	PreApply(targetName, mixinName string)
	PostApply(targetName, mixinName string)
}

// NoopPlugin is a CompanionPlugin that accepts everything and observes
// nothing, used as the default when a configuration names no plugin
// class, or in tests that only need the interface satisfied.
type NoopPlugin struct{}

func (NoopPlugin) ShouldApplyMixin(string, string) bool                { return true }
func (NoopPlugin) AcceptTargets(_ string, candidates []string) []string { return candidates }
func (NoopPlugin) PreApply(string, string)                             {}
func (NoopPlugin) PostApply(string, string)                            {}

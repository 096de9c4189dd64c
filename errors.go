// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// Kind classifies a failure produced anywhere in the pipeline, per the
// error handling design (configuration, mixin resolution, injection,
// apply, verification).
type Kind int

const (
	// KindConfiguration covers malformed or version-incompatible
	// configuration documents. The owning configuration is skipped; the
	// engine continues.
	KindConfiguration Kind = iota

	// KindMixinResolution covers an unresolvable declared target, a
	// detached-superclass mismatch on a non-pseudo mixin, or a shadow
	// member that does not exist on the target.
	KindMixinResolution

	// KindInvalidInjection covers a structurally invalid injector: wrong
	// handler signature, unparseable method string, ambiguous target.
	KindInvalidInjection

	// KindInjectionNotFound covers an injection point that located fewer
	// matches than its injector required.
	KindInjectionNotFound

	// KindApply covers a merge conflict: same-priority field collision,
	// disallowed method override, incompatible bridge methods.
	KindApply

	// KindVerification covers a failed post-apply verification pass.
	KindVerification

	// KindReentrance covers a transform call for a class already being
	// transformed on the same goroutine's call stack.
	KindReentrance
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindMixinResolution:
		return "MixinResolutionError"
	case KindInvalidInjection:
		return "InvalidInjectionError"
	case KindInjectionNotFound:
		return "InjectionNotFoundError"
	case KindApply:
		return "ApplyError"
	case KindVerification:
		return "VerificationError"
	case KindReentrance:
		return "TransformerReentrance"
	default:
		return "UnknownError"
	}
}

// Diagnostic is the structured failure every error path produces: it
// always names the mixin and target involved plus, where applicable, the
// offending member or instruction coordinate.
type Diagnostic struct {
	Kind     Kind
	Mixin    string // fully qualified mixin class name, may be empty
	Target   string // internal target class name, may be empty
	Member   string // owner/name/descriptor string, may be empty
	Cycle    string // apply-cycle correlation id, see NewTargetContext in target.go
	Reason   string
	Fatal    bool // true if this failure aborts the whole target transform
	Required bool // true if the owning mixin/config was required
}

func (d *Diagnostic) Error() string {
	switch {
	case d.Mixin != "" && d.Target != "" && d.Member != "":
		return fmt.Sprintf("%s: mixin %s -> target %s, member %s: %s",
			d.Kind, d.Mixin, d.Target, d.Member, d.Reason)
	case d.Mixin != "" && d.Target != "":
		return fmt.Sprintf("%s: mixin %s -> target %s: %s",
			d.Kind, d.Mixin, d.Target, d.Reason)
	case d.Target != "":
		return fmt.Sprintf("%s: target %s: %s", d.Kind, d.Target, d.Reason)
	case d.Member != "":
		return fmt.Sprintf("%s: %s: %s", d.Kind, d.Member, d.Reason)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Reason)
	}
}

func newDiag(kind Kind, target, mixin, member, reason string, fatal bool) *Diagnostic {
	return &Diagnostic{
		Kind:   kind,
		Mixin:  mixin,
		Target: target,
		Member: member,
		Reason: reason,
		Fatal:  fatal,
	}
}

// ConfigurationError reports a malformed or version-incompatible
// configuration document. Never fatal to the engine; the owning
// configuration is simply skipped.
func ConfigurationError(configName, reason string) *Diagnostic {
	return newDiag(KindConfiguration, "", "", configName, reason, false)
}

// MixinResolutionError reports an unresolvable mixin-declared relationship.
// Fatal only when the mixin belongs to a required configuration.
func MixinResolutionError(target, mixin, reason string, required bool) *Diagnostic {
	return newDiag(KindMixinResolution, target, mixin, "", reason, required)
}

// InvalidInjectionError reports a structurally invalid injector
// declaration. Fatal only when the owning mixin is required.
func InvalidInjectionError(target, mixin, member, reason string, required bool) *Diagnostic {
	return newDiag(KindInvalidInjection, target, mixin, member, reason, required)
}

// InjectionNotFoundError reports too few (or, for allow-bounded injectors,
// too many) injection-point matches.
func InjectionNotFoundError(target, mixin, member, reason string, fatal bool) *Diagnostic {
	return newDiag(KindInjectionNotFound, target, mixin, member, reason, fatal)
}

// ApplyError reports a merge conflict. Always fatal for the target.
func ApplyError(target, mixin, member, reason string) *Diagnostic {
	return newDiag(KindApply, target, mixin, member, reason, true)
}

// VerificationError reports a failed post-apply verification. Always
// fatal for the target.
func VerificationError(target, reason string) *Diagnostic {
	return newDiag(KindVerification, target, "", "", reason, true)
}

// ReentranceWarning reports a refused nested transform of the same class.
// Never fatal: the inner call returns the untransformed bytes.
func ReentranceWarning(target string) *Diagnostic {
	return newDiag(KindReentrance, target, "", "", "nested transform of the same class refused", false)
}

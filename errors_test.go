// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindConfiguration:     "ConfigurationError",
		KindMixinResolution:   "MixinResolutionError",
		KindInvalidInjection:  "InvalidInjectionError",
		KindInjectionNotFound: "InjectionNotFoundError",
		KindApply:             "ApplyError",
		KindVerification:      "VerificationError",
		KindReentrance:        "TransformerReentrance",
		Kind(999):             "UnknownError",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestConfigurationErrorReportsConfigName(t *testing.T) {
	d := ConfigurationError("com.example.mixins.json", "declares no mixin classes")
	if got, want := d.Error(), "ConfigurationError: com.example.mixins.json: declares no mixin classes"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if d.Fatal {
		t.Error("ConfigurationError should never be fatal")
	}
}

func TestMixinResolutionErrorFatality(t *testing.T) {
	required := MixinResolutionError("com/example/Target", "com.example.MixinA", "shadow member does not exist", true)
	if !required.Fatal {
		t.Error("a required mixin's resolution error should be fatal")
	}
	notRequired := MixinResolutionError("com/example/Target", "com.example.MixinA", "shadow member does not exist", false)
	if notRequired.Fatal {
		t.Error("a non-required mixin's resolution error should not be fatal")
	}
}

func TestApplyErrorAlwaysFatal(t *testing.T) {
	d := ApplyError("com/example/Target", "com.example.MixinA", "doIt()V", "overwrite refused: lower priority")
	if !d.Fatal {
		t.Error("ApplyError should always be fatal")
	}
	want := "ApplyError: mixin com.example.MixinA -> target com/example/Target, member doIt()V: overwrite refused: lower priority"
	if got := d.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestReentranceWarningNeverFatal(t *testing.T) {
	d := ReentranceWarning("com/example/Target")
	if d.Fatal {
		t.Error("ReentranceWarning should never be fatal")
	}
	want := "TransformerReentrance: target com/example/Target: nested transform of the same class refused"
	if got := d.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

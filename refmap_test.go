// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

const testRefmapJSON = `{
	"mappings": {
		"com.example.MixinA": {
			"originalName": "a",
			"Lcom/example/Target;helper()V": "Lcom/example/Target;b()V"
		}
	},
	"data": {
		"dev": {
			"com.example.MixinA": {"originalName": "devName"}
		}
	}
}`

func TestReferenceMapperDefaultIsIdentity(t *testing.T) {
	r := NewReferenceMapper()
	if !r.IsDefault() {
		t.Error("a fresh mapper should report IsDefault")
	}
	if got := r.Remap("com.example.MixinA", "anything"); got != "anything" {
		t.Errorf("Remap on the default mapper = %q, want input unchanged", got)
	}
}

func TestReferenceMapperRemapsLoadedReferences(t *testing.T) {
	r := NewReferenceMapper()
	if err := r.LoadJSON([]byte(testRefmapJSON)); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if r.IsDefault() {
		t.Error("a loaded mapper should not report IsDefault")
	}

	if got := r.Remap("com.example.MixinA", "originalName"); got != "a" {
		t.Errorf("Remap = %q, want %q", got, "a")
	}
	if got := r.Remap("com.example.MixinA", "Lcom/example/Target;helper()V"); got != "Lcom/example/Target;b()V" {
		t.Errorf("Remap full reference = %q", got)
	}
	// Unmapped references and unknown mixin classes pass through.
	if got := r.Remap("com.example.MixinA", "unmapped"); got != "unmapped" {
		t.Errorf("unmapped reference = %q, want unchanged", got)
	}
	if got := r.Remap("com.example.Unknown", "originalName"); got != "originalName" {
		t.Errorf("unknown mixin class = %q, want unchanged", got)
	}
}

func TestReferenceMapperContextPrecedence(t *testing.T) {
	r := NewReferenceMapper()
	if err := r.LoadJSON([]byte(testRefmapJSON)); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}

	// The named context wins over the default mappings table.
	if got := r.RemapWithContext("dev", "com.example.MixinA", "originalName"); got != "devName" {
		t.Errorf("dev-context remap = %q, want %q", got, "devName")
	}
	// An unknown context falls through to the default mappings.
	if got := r.RemapWithContext("prod", "com.example.MixinA", "originalName"); got != "a" {
		t.Errorf("unknown-context remap = %q, want fallthrough %q", got, "a")
	}
	// A context hit for one reference does not shadow default entries
	// for others.
	if got := r.RemapWithContext("dev", "com.example.MixinA", "Lcom/example/Target;helper()V"); got != "Lcom/example/Target;b()V" {
		t.Errorf("dev-context fallthrough for unlisted reference = %q", got)
	}

	r.SetContext("dev")
	if got := r.Remap("com.example.MixinA", "originalName"); got != "devName" {
		t.Errorf("Remap under SetContext = %q, want %q", got, "devName")
	}
	if r.Context() != "dev" {
		t.Errorf("Context() = %q, want %q", r.Context(), "dev")
	}
}

func TestReferenceMapperLoadYAML(t *testing.T) {
	r := NewReferenceMapper()
	err := r.LoadYAML([]byte(`
mappings:
  com.example.MixinA:
    originalName: a
`))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if got := r.Remap("com.example.MixinA", "originalName"); got != "a" {
		t.Errorf("Remap after YAML load = %q, want %q", got, "a")
	}
}

func TestReferenceMapperLoadRejectsMalformed(t *testing.T) {
	r := NewReferenceMapper()
	if err := r.LoadJSON([]byte(`{not json`)); err == nil {
		t.Error("malformed JSON should be rejected")
	}
	if !r.IsDefault() {
		t.Error("a failed load must leave the mapper in its default state")
	}
}

func TestReferenceMapperLoadUTF16Document(t *testing.T) {
	plain := `{"mappings": {"com.example.MixinA": {"originalName": "a"}}}`
	encoded := []byte{0xFF, 0xFE}
	for _, r := range plain {
		encoded = append(encoded, byte(r), 0x00)
	}

	r := NewReferenceMapper()
	if err := r.LoadJSON(encoded); err != nil {
		t.Fatalf("LoadJSON of a UTF-16LE document: %v", err)
	}
	if got := r.Remap("com.example.MixinA", "originalName"); got != "a" {
		t.Errorf("Remap after UTF-16 load = %q, want %q", got, "a")
	}
}

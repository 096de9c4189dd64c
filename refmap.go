// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	mstrings "github.com/mixinforge/mixin/internal/strings"
)

// normalizeDocEncoding converts a UTF-16LE document (leading FF FE byte
// order mark, the encoding some legacy mixin toolchains save refmap and
// configuration files in) to UTF-8; anything else passes through
// untouched.
func normalizeDocEncoding(data []byte) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		s, err := mstrings.DecodeUTF16String(data[2:])
		if err != nil {
			return nil, fmt.Errorf("mixin: decoding utf-16 document: %w", err)
		}
		return []byte(s), nil
	}
	return data, nil
}

// RefmapDoc is the on-disk shape of a reference map file (§6.1): a
// default "mappings" namespace keyed by the dotted mixin class that
// declared the reference, and any number of named "data" contexts
// (mod id, loader id, ...) layering further renames over it.
type RefmapDoc struct {
	MappingVersion string                                `json:"mappingVersion,omitempty" yaml:"mappingVersion,omitempty"`
	Mappings       map[string]map[string]string           `json:"mappings" yaml:"mappings"`
	Data           map[string]map[string]map[string]string `json:"data" yaml:"data"`
}

// ReferenceMapper implements §4.2: it resolves a literal member reference
// string written against development-time names into the reference the
// current runtime environment actually uses. Lookups are keyed by the
// dotted name of the mixin class that declared the reference, not the
// reference's own owner — the same symbolic reference can be remapped
// differently per mixin depending on which context generated its refmap
// entry. A mapper with no loaded document is the identity mapper.
type ReferenceMapper struct {
	doc     RefmapDoc
	loaded  bool
	context string
}

// NewReferenceMapper returns the identity mapper; IsDefault reports true
// until LoadJSON/LoadYAML is called.
func NewReferenceMapper() *ReferenceMapper {
	return &ReferenceMapper{}
}

// LoadJSON parses data as a refmap document (§6.1 JSON form). UTF-16LE
// input with a byte order mark is accepted and normalized.
func (r *ReferenceMapper) LoadJSON(data []byte) error {
	data, err := normalizeDocEncoding(data)
	if err != nil {
		return err
	}
	var doc RefmapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("mixin: parsing refmap json: %w", err)
	}
	r.doc = doc
	r.loaded = true
	return nil
}

// LoadYAML parses data as a refmap document authored in YAML, bridging
// through the same RefmapDoc shape JSON uses (§6.1 notes the file format
// is "JSON-like"; YAML is accepted as a friendlier authoring surface and
// normalized to the same in-memory document).
func (r *ReferenceMapper) LoadYAML(data []byte) error {
	data, err := normalizeDocEncoding(data)
	if err != nil {
		return err
	}
	var doc RefmapDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("mixin: parsing refmap yaml: %w", err)
	}
	r.doc = doc
	r.loaded = true
	return nil
}

// IsDefault reports whether no refmap document has been loaded, meaning
// remap is the identity function (§4.2).
func (r *ReferenceMapper) IsDefault() bool { return !r.loaded }

// Context returns the mapper's current "current context" string (§4.2);
// "" means default-only resolution.
func (r *ReferenceMapper) Context() string { return r.context }

// SetContext sets the named context (e.g. a mod id) consulted before the
// default "mappings" namespace for subsequent Remap calls; "" restores
// default-only resolution. Setting this is a process-wide operation per
// §4.2 — callers that don't own the whole apply cycle should save the
// previous value and restore it when done (§5), which is exactly what
// MixinInfo.remap does around each lookup.
func (r *ReferenceMapper) SetContext(context string) { r.context = context }

// Remap resolves reference (a bare member name, or name+descriptor)
// declared by mixinClass (its dotted name, as it appears in the refmap's
// keys), under the mapper's current context. Reference strings the
// mapper has no entry for are returned unchanged: an unmapped reference
// is not an error, since most references never need remapping at all.
func (r *ReferenceMapper) Remap(mixinClass, reference string) string {
	return r.RemapWithContext(r.context, mixinClass, reference)
}

// RemapWithContext resolves reference as declared by mixinClass,
// consulting context's namespace before the default "mappings"
// namespace, and returning reference unchanged if neither has an entry.
func (r *ReferenceMapper) RemapWithContext(context, mixinClass, reference string) string {
	if !r.loaded {
		return reference
	}
	if context != "" {
		if ns, ok := r.doc.Data[context]; ok {
			if mapped, ok := lookupRemap(ns, mixinClass, reference); ok {
				return mapped
			}
		}
	}
	if mapped, ok := lookupRemap(r.doc.Mappings, mixinClass, reference); ok {
		return mapped
	}
	return reference
}

func lookupRemap(ns map[string]map[string]string, mixinClass, reference string) (string, bool) {
	members, ok := ns[mixinClass]
	if !ok {
		return "", false
	}
	mapped, ok := members[reference]
	return mapped, ok
}

// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Phase names the point in the host's load sequence a configuration's
// mixins are eligible to apply (§4.4, §6.2).
type Phase string

const (
	PhasePreInit  Phase = "preinit"
	PhaseDefault  Phase = "default"
	PhaseLate     Phase = "late"
)

// defaultPriority is applied to a configuration that declares none
// (§4.4).
const defaultPriority = 1000

// ConfigDoc is the on-disk shape of a configuration file (§6.2).
type ConfigDoc struct {
	Package             string   `json:"package" yaml:"package"`
	Refmap              string   `json:"refmap,omitempty" yaml:"refmap,omitempty"`
	Priority            int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	Required            bool     `json:"required,omitempty" yaml:"required,omitempty"`
	CompatibilityLevel  string   `json:"compatibilityLevel,omitempty" yaml:"compatibilityLevel,omitempty"`
	MinVersion          string   `json:"minVersion,omitempty" yaml:"minVersion,omitempty"`
	Plugin              string   `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	Mixins              []string `json:"mixins,omitempty" yaml:"mixins,omitempty"`
	ClientMixins        []string `json:"client,omitempty" yaml:"client,omitempty"`
	ServerMixins        []string `json:"server,omitempty" yaml:"server,omitempty"`
	SetSourceFile        string   `json:"setSourceFile,omitempty" yaml:"setSourceFile,omitempty"`
}

// Configuration is the loaded, host-side representation of one
// configuration file (§4.4): its declared mixin classes, the phase they
// run in, conflict-resolution priority, and its companion plugin if any.
type Configuration struct {
	Doc     ConfigDoc
	Phase   Phase
	Mapper  *ReferenceMapper
	Plugin  CompanionPlugin

	// visited marks a configuration already processed by a phase drain
	// so a later DrainPhase never returns it again.
	visited bool

	mixins []*MixinInfo
}

// SetMixins records the parsed MixinInfo set this configuration's
// "mixins"/"client"/"server" lists resolved to, once the host has loaded
// and parsed each declared mixin class (§4.5).
func (cfg *Configuration) SetMixins(mixins []*MixinInfo) { cfg.mixins = mixins }

// Mixins returns the configuration's parsed mixins.
func (cfg *Configuration) Mixins() []*MixinInfo { return cfg.mixins }

// Priority returns the configuration's declared priority, or
// defaultPriority if none was set (§4.4).
func (cfg *Configuration) Priority() int {
	if cfg.Doc.Priority == 0 {
		return defaultPriority
	}
	return cfg.Doc.Priority
}

// MixinClasses returns the full set of mixin class names this
// configuration declares for the given side ("client"/"server"), which
// is Mixins plus whichever of ClientMixins/ServerMixins matches side.
// An empty side returns just the common Mixins list.
func (cfg *Configuration) MixinClasses(side string) []string {
	out := append([]string(nil), cfg.Doc.Mixins...)
	switch side {
	case "client":
		out = append(out, cfg.Doc.ClientMixins...)
	case "server":
		out = append(out, cfg.Doc.ServerMixins...)
	}
	return out
}

// CheckCompatibility validates the configuration's declared
// compatibilityLevel/minVersion against the engine's own runningVersion,
// using semantic-version comparison (§4.4). A configuration with no
// compatibilityLevel declared is always compatible.
func (cfg *Configuration) CheckCompatibility(runningVersion string) error {
	if cfg.Doc.CompatibilityLevel == "" {
		return nil
	}
	want := canonicalSemver(cfg.Doc.CompatibilityLevel)
	have := canonicalSemver(runningVersion)
	if !semver.IsValid(want) || !semver.IsValid(have) {
		return ConfigurationError(cfg.Doc.Package, fmt.Sprintf("invalid compatibilityLevel %q", cfg.Doc.CompatibilityLevel))
	}
	if semver.Compare(have, want) < 0 {
		return ConfigurationError(cfg.Doc.Package,
			fmt.Sprintf("requires compatibility level %s, running %s", cfg.Doc.CompatibilityLevel, runningVersion))
	}
	if cfg.Doc.MinVersion != "" {
		min := canonicalSemver(cfg.Doc.MinVersion)
		if semver.IsValid(min) && semver.Compare(have, min) < 0 {
			return ConfigurationError(cfg.Doc.Package, fmt.Sprintf("requires minVersion %s, running %s", cfg.Doc.MinVersion, runningVersion))
		}
	}
	return nil
}

func canonicalSemver(v string) string {
	if len(v) == 0 || v[0] != 'v' {
		return "v" + v
	}
	return v
}

// ParseConfigJSON decodes a configuration document from JSON (§6.2).
// UTF-16LE input with a byte order mark is accepted and normalized, as
// for refmap documents.
func ParseConfigJSON(data []byte) (ConfigDoc, error) {
	var doc ConfigDoc
	data, err := normalizeDocEncoding(data)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("mixin: parsing config json: %w", err)
	}
	return doc, validateConfigDoc(doc)
}

// ParseConfigYAML decodes a configuration document authored in YAML,
// bridged to the same ConfigDoc shape JSON uses.
func ParseConfigYAML(data []byte) (ConfigDoc, error) {
	var doc ConfigDoc
	data, err := normalizeDocEncoding(data)
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("mixin: parsing config yaml: %w", err)
	}
	return doc, validateConfigDoc(doc)
}

func validateConfigDoc(doc ConfigDoc) error {
	if doc.Package == "" {
		return ConfigurationError("", `missing required field "package"`)
	}
	if len(doc.Mixins) == 0 && len(doc.ClientMixins) == 0 && len(doc.ServerMixins) == 0 {
		return ConfigurationError(doc.Package, "declares no mixin classes")
	}
	return nil
}

// Registry is the process-wide configuration registry of §4.4: every
// Configuration known to the engine, bucketed by the phase it is pending
// for, with per-phase draining as the host crosses each phase boundary.
type Registry struct {
	mu      sync.Mutex
	pending map[Phase][]*Configuration
	applied []*Configuration
}

// NewRegistry returns an empty configuration registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[Phase][]*Configuration)}
}

// Register adds cfg to the registry, queued under its declared phase. A
// required configuration that fails CheckCompatibility is returned as an
// error rather than silently registered; any other configuration that
// fails it is skipped without being queued.
func (r *Registry) Register(cfg *Configuration, runningVersion string) error {
	if err := cfg.CheckCompatibility(runningVersion); err != nil {
		if cfg.Doc.Required {
			return err
		}
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[cfg.Phase] = append(r.pending[cfg.Phase], cfg)
	return nil
}

// PendingForPhase returns the not-yet-applied configurations queued for
// phase, in registration order, without marking them visited.
func (r *Registry) PendingForPhase(phase Phase) []*Configuration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Configuration
	for _, cfg := range r.pending[phase] {
		if !cfg.visited {
			out = append(out, cfg)
		}
	}
	return out
}

// DrainPhase marks every not-yet-visited configuration queued for phase
// as visited and returns them sorted by ascending priority, registration
// order among equals — the same total order the applicator visits mixins
// in (§5), so declaration-order tie-breaks between equal-priority mixins
// of different configurations follow the configurations' own priorities.
func (r *Registry) DrainPhase(phase Phase) []*Configuration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cfgs []*Configuration
	for _, cfg := range r.pending[phase] {
		if !cfg.visited {
			cfgs = append(cfgs, cfg)
		}
	}
	sortConfigsByPriority(cfgs)
	for _, cfg := range cfgs {
		cfg.visited = true
	}
	r.applied = append(r.applied, cfgs...)
	return cfgs
}

// Applied returns every configuration drained so far, across all phases.
func (r *Registry) Applied() []*Configuration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Configuration(nil), r.applied...)
}

func sortConfigsByPriority(cfgs []*Configuration) {
	for i := 1; i < len(cfgs); i++ {
		for j := i; j > 0 && cfgs[j-1].Priority() > cfgs[j].Priority(); j-- {
			cfgs[j-1], cfgs[j] = cfgs[j], cfgs[j-1]
		}
	}
}

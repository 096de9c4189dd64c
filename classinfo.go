// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// AccessFilter is a bitmask selecting which members a hierarchy search
// considers (§4.3).
type AccessFilter int

const (
	IncludePrivate AccessFilter = 1 << iota
	IncludeStatic
	IncludeAll = IncludePrivate | IncludeStatic
)

// SearchType directs findMethodInHierarchy/findFieldInHierarchy to
// declared members of one class (DECLARED), ancestors only (SUPER), or
// both (ALL).
type SearchType int

const (
	SearchAll SearchType = iota
	SearchSuper
	SearchDeclared
)

type memberInfo struct {
	Name, Desc string
	Access     uint32
}

// ClassInfo is the per-class summary the cache keeps: superclass,
// interfaces, declared methods/fields, and mixin-declared relationships
// layered on top of the "real" hierarchy (§9 parallel-hierarchy note).
type ClassInfo struct {
	InternalName string
	SuperName    string
	Interfaces   []string
	IsInterface  bool
	Final        bool
	Methods      map[Signature]memberInfo
	Fields       map[Signature]memberInfo

	// LogicalSupers holds superclass names contributed by mixins with a
	// detached superclass; traversal following TraversalLogical or
	// TraversalBoth includes these.
	LogicalSupers []string

	// AddedInterfaces holds interfaces a mixin contributed to this class
	// during an apply cycle, recorded here so later hierarchy lookups in
	// the same or a later cycle observe them (§4.6.1).
	AddedInterfaces []string
}

// ClassLoader resolves an internal class name to its parsed header. It is
// the engine's only dependency on the host's class-loading machinery
// (§1: the host-platform bootstrap is an external collaborator).
type ClassLoader interface {
	// LoadHeader returns a Class populated with everything but method
	// bodies: superclass, interfaces, access, declared method/field
	// signatures. Returning an error means the class is not loadable.
	LoadHeader(internalName string) (*Class, error)
}

// ClassInfoCache is the per-process (or per-test, via NewClassInfoCache)
// class metadata cache of §4.3. Entries are keyed by canonical internal
// name; writes are serialized by a single mutex per §5, and concurrent
// forName calls for the same not-yet-cached name collapse into one parse
// via singleflight rather than each independently acquiring the mutex.
type ClassInfoCache struct {
	loader ClassLoader

	mu      sync.Mutex
	entries map[string]*ClassInfo
	group   singleflight.Group
}

// NewClassInfoCache constructs a cache backed by loader. Use one instance
// per test; production code shares a single process-wide instance (the
// Transformer holds it in its Cache field).
func NewClassInfoCache(loader ClassLoader) *ClassInfoCache {
	return &ClassInfoCache{loader: loader, entries: make(map[string]*ClassInfo)}
}

// forName returns the cached ClassInfo for internalName, parsing and
// caching it on first access.
func (c *ClassInfoCache) forName(internalName string) (*ClassInfo, error) {
	c.mu.Lock()
	if info, ok := c.entries[internalName]; ok {
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(internalName, func() (any, error) {
		c.mu.Lock()
		if info, ok := c.entries[internalName]; ok {
			c.mu.Unlock()
			return info, nil
		}
		c.mu.Unlock()

		class, err := c.loader.LoadHeader(internalName)
		if err != nil {
			return nil, fmt.Errorf("mixin: loading class %s: %w", internalName, err)
		}
		info := infoFromClass(class)

		c.mu.Lock()
		c.entries[internalName] = info
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ClassInfo), nil
}

// ForName is the exported form of forName.
func (c *ClassInfoCache) ForName(internalName string) (*ClassInfo, error) {
	return c.forName(internalName)
}

func infoFromClass(class *Class) *ClassInfo {
	info := &ClassInfo{
		InternalName: class.InternalName,
		SuperName:    class.SuperName,
		Interfaces:   append([]string(nil), class.Interfaces...),
		IsInterface:  class.Access&AccInterface != 0,
		Final:        class.Access&AccFinal != 0,
		Methods:      make(map[Signature]memberInfo, len(class.Methods)),
		Fields:       make(map[Signature]memberInfo, len(class.Fields)),
	}
	for _, m := range class.Methods {
		info.Methods[m.signature()] = memberInfo{m.Name, m.Desc, m.Access}
	}
	for _, f := range class.Fields {
		info.Fields[f.signature()] = memberInfo{f.Name, f.Desc, f.Access}
	}
	return info
}

// RegisterTarget records that a mixin declares internalName as a target:
// if detached is true, mixinSuperName is added to the cached entry's
// logical supertypes rather than overwriting the real one. Only an
// existing cache entry is updated; a name with no entry yet is left
// alone, and no entry is created for it.
func (c *ClassInfoCache) RegisterTarget(internalName string, mixinSuperName string, detached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.entries[internalName]
	if !ok {
		return
	}
	if detached && mixinSuperName != "" && !stringSliceContains(info.LogicalSupers, mixinSuperName) {
		info.LogicalSupers = append(info.LogicalSupers, mixinSuperName)
	}
}

// RecordInterface adds iface to internalName's AddedInterfaces so later
// lookups in this or a subsequent cycle see it (§4.6.1).
func (c *ClassInfoCache) RecordInterface(internalName, iface string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.entries[internalName]; ok && !stringSliceContains(info.AddedInterfaces, iface) {
		info.AddedInterfaces = append(info.AddedInterfaces, iface)
	}
}

// superChain returns internalName's ancestors in order (nearest first),
// per traversal.
func (c *ClassInfoCache) superChain(internalName string, traversal TraversalKind) []string {
	var chain []string
	seen := map[string]bool{internalName: true}
	cur := internalName
	for i := 0; i < 4096; i++ { // hard cap guards a corrupt/cyclic hierarchy
		info, err := c.forName(cur)
		if err != nil {
			break
		}
		var nexts []string
		if traversal != TraversalLogical && info.SuperName != "" {
			nexts = append(nexts, info.SuperName)
		}
		if traversal != TraversalReal {
			nexts = append(nexts, info.LogicalSupers...)
		}
		if len(nexts) == 0 {
			break
		}
		cur = nexts[0]
		if seen[cur] {
			break
		}
		seen[cur] = true
		chain = append(chain, cur)
		for _, extra := range nexts[1:] {
			if !seen[extra] {
				chain = append(chain, extra)
				seen[extra] = true
			}
		}
	}
	return chain
}

// HasSuperClass reports whether ancestor appears in child's chain under
// traversal.
func (c *ClassInfoCache) HasSuperClass(child, ancestor string, traversal TraversalKind) bool {
	if child == ancestor {
		return true
	}
	for _, name := range c.superChain(child, traversal) {
		if name == ancestor {
			return true
		}
	}
	return false
}

// FindMethodInHierarchy searches for name+desc per searchType/access,
// walking classes depth-first then interfaces breadth-first,
// suppressing duplicate visits (§4.3).
func (c *ClassInfoCache) FindMethodInHierarchy(internalName, name, desc string, searchType SearchType, traversal TraversalKind, access AccessFilter) (owner string, found bool) {
	return c.findMemberInHierarchy(internalName, name, desc, searchType, traversal, access, true)
}

// FindFieldInHierarchy is the field-table counterpart of
// FindMethodInHierarchy.
func (c *ClassInfoCache) FindFieldInHierarchy(internalName, name, desc string, searchType SearchType, traversal TraversalKind, access AccessFilter) (owner string, found bool) {
	return c.findMemberInHierarchy(internalName, name, desc, searchType, traversal, access, false)
}

func (c *ClassInfoCache) findMemberInHierarchy(internalName, name, desc string, searchType SearchType, traversal TraversalKind, access AccessFilter, methods bool) (string, bool) {
	visited := make(map[string]bool)
	sig := Signature{name, desc}

	var classesToSearch []string
	switch searchType {
	case SearchDeclared:
		classesToSearch = []string{internalName}
	case SearchSuper:
		classesToSearch = c.superChain(internalName, traversal)
	default:
		classesToSearch = append([]string{internalName}, c.superChain(internalName, traversal)...)
	}

	for _, cls := range classesToSearch {
		if visited[cls] {
			continue
		}
		visited[cls] = true
		info, err := c.forName(cls)
		if err != nil {
			continue
		}
		table := info.Fields
		if methods {
			table = info.Methods
		}
		if mi, ok := lookupMember(table, sig, desc == ""); ok {
			if memberAllowed(mi.Access, access) {
				return cls, true
			}
		}
	}

	// Interfaces are walked breadth-first after classes.
	var queue []string
	for _, cls := range classesToSearch {
		if info, err := c.forName(cls); err == nil {
			queue = append(queue, append(info.Interfaces, info.AddedInterfaces...)...)
		}
	}
	ifaceVisited := make(map[string]bool)
	for len(queue) > 0 {
		iface := queue[0]
		queue = queue[1:]
		if ifaceVisited[iface] {
			continue
		}
		ifaceVisited[iface] = true
		info, err := c.forName(iface)
		if err != nil {
			continue
		}
		table := info.Fields
		if methods {
			table = info.Methods
		}
		if mi, ok := lookupMember(table, sig, desc == ""); ok {
			if memberAllowed(mi.Access, access) {
				return iface, true
			}
		}
		queue = append(queue, append(info.Interfaces, info.AddedInterfaces...)...)
	}

	return "", false
}

func lookupMember(table map[Signature]memberInfo, sig Signature, nameOnly bool) (memberInfo, bool) {
	if !nameOnly {
		mi, ok := table[sig]
		return mi, ok
	}
	for s, mi := range table {
		if s.Name == sig.Name {
			return mi, true
		}
	}
	return memberInfo{}, false
}

func memberAllowed(access uint32, filter AccessFilter) bool {
	if access&AccPrivate != 0 && filter&IncludePrivate == 0 {
		return false
	}
	if access&AccStatic != 0 && filter&IncludeStatic == 0 {
		return false
	}
	return true
}

func stringSliceContains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

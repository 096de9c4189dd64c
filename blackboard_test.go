// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"sync"
	"testing"
)

func TestBlackboardPutGetRemove(t *testing.T) {
	b := NewBlackboard()
	if _, ok := b.Get("mixin.configs"); ok {
		t.Error("a fresh blackboard should hold nothing")
	}

	b.Put("mixin.configs", []string{"a", "b"})
	v, ok := b.Get("mixin.configs")
	if !ok {
		t.Fatal("Get after Put should find the value")
	}
	if got := v.([]string); len(got) != 2 || got[0] != "a" {
		t.Errorf("Get = %v", got)
	}

	b.Put("mixin.configs", "replaced")
	if v, _ := b.Get("mixin.configs"); v != "replaced" {
		t.Errorf("Put should overwrite: got %v", v)
	}

	b.Remove("mixin.configs")
	if _, ok := b.Get("mixin.configs"); ok {
		t.Error("Get after Remove should find nothing")
	}
}

func TestBlackboardKeys(t *testing.T) {
	b := NewBlackboard()
	b.Put("one", 1)
	b.Put("two", 2)
	keys := b.Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys = %v, want 2 entries", keys)
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["one"] || !seen["two"] {
		t.Errorf("Keys = %v, want one and two", keys)
	}
}

func TestBlackboardConcurrentAccess(t *testing.T) {
	b := NewBlackboard()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			b.Put(key, n)
			b.Get(key)
			b.Keys()
		}(i)
	}
	wg.Wait()
	if len(b.Keys()) != 8 {
		t.Errorf("Keys after concurrent writes = %d, want 8", len(b.Keys()))
	}
}

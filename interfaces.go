// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

// mergeInterfaces implements §4.6.1: every interface a mixin
// declares is added to the target's interface list, deduplicated, in
// mixin priority order.
func (a *Applicator) mergeInterfaces(tc *TargetContext) ([]*Diagnostic, error) {
	var diags []*Diagnostic
	for _, mi := range tc.Mixins {
		for _, iface := range mi.Class.Interfaces {
			if tc.Class.AddInterface(iface) && a.Cache != nil {
				a.Cache.RecordInterface(tc.Class.InternalName, iface)
			}
		}
	}
	return diags, nil
}

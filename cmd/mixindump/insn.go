// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	mixin "github.com/mixinforge/mixin"
)

// describeInsn renders one instruction for the dump command's human-
// readable listing.
func describeInsn(n *mixin.Insn) string {
	switch {
	case n.IsLabel():
		return "LABEL"
	case n.Op.IsInvoke():
		return fmt.Sprintf("%s %s.%s%s", opName(n.Op), n.Owner, n.Name, n.Desc)
	case n.Op.IsFieldAccess():
		return fmt.Sprintf("%s %s.%s:%s", opName(n.Op), n.Owner, n.Name, n.Desc)
	case n.Op.IsLoad(), n.Op.IsStore():
		return fmt.Sprintf("%s %d", opName(n.Op), n.Var)
	case n.Op.IsConstant():
		return fmt.Sprintf("%s %v", opName(n.Op), n.Const)
	case n.Op.IsJump():
		return opName(n.Op)
	default:
		return opName(n.Op)
	}
}

func opName(op mixin.Opcode) string {
	return op.String()
}

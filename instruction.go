// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

// Opcode identifies the operation an instruction performs. Values mirror
// the stack-machine opcode vocabulary named throughout the spec
// (INVOKEVIRTUAL, GETFIELD, ...); the numeric values themselves are not
// significant outside this package.
type Opcode int

const (
	OpNop Opcode = iota

	// Method calls.
	OpInvokeVirtual
	OpInvokeStatic
	OpInvokeSpecial
	OpInvokeInterface

	// Field access.
	OpGetField
	OpPutField
	OpGetStatic
	OpPutStatic

	// Type operations.
	OpNew
	OpCheckCast
	OpInstanceOf
	OpANewArray

	// Stack management.
	OpPop
	OpDup

	// Returns.
	OpReturn
	OpAReturn
	OpIReturn
	OpLReturn
	OpFReturn
	OpDReturn

	// Local variable access.
	OpILoad
	OpLLoad
	OpFLoad
	OpDLoad
	OpALoad
	OpIStore
	OpLStore
	OpFStore
	OpDStore
	OpAStore

	// Jumps.
	OpGoto
	OpIfEq
	OpIfNe
	OpIfLt
	OpIfGe
	OpIfGt
	OpIfLe
	OpIfICmpEq
	OpIfICmpNe
	OpIfICmpLt
	OpIfICmpGe
	OpIfICmpGt
	OpIfICmpLe

	// Constants.
	OpLdc
	OpBiPush
	OpSiPush
	OpIConst
	OpLConst
	OpFConst
	OpDConst
	OpAConstNull

	// Switches.
	OpTableSwitch
	OpLookupSwitch

	// Pseudo instructions.
	OpLabel
	OpLineNumber
	OpFrame
)

var opcodeNames = map[Opcode]string{
	OpNop:             "NOP",
	OpInvokeVirtual:   "INVOKEVIRTUAL",
	OpInvokeStatic:    "INVOKESTATIC",
	OpInvokeSpecial:   "INVOKESPECIAL",
	OpInvokeInterface: "INVOKEINTERFACE",
	OpGetField:        "GETFIELD",
	OpPutField:        "PUTFIELD",
	OpGetStatic:       "GETSTATIC",
	OpPutStatic:       "PUTSTATIC",
	OpNew:             "NEW",
	OpCheckCast:       "CHECKCAST",
	OpInstanceOf:      "INSTANCEOF",
	OpANewArray:       "ANEWARRAY",
	OpPop:             "POP",
	OpDup:             "DUP",
	OpReturn:          "RETURN",
	OpAReturn:         "ARETURN",
	OpIReturn:         "IRETURN",
	OpLReturn:         "LRETURN",
	OpFReturn:         "FRETURN",
	OpDReturn:         "DRETURN",
	OpILoad:           "ILOAD",
	OpLLoad:           "LLOAD",
	OpFLoad:           "FLOAD",
	OpDLoad:           "DLOAD",
	OpALoad:           "ALOAD",
	OpIStore:          "ISTORE",
	OpLStore:          "LSTORE",
	OpFStore:          "FSTORE",
	OpDStore:          "DSTORE",
	OpAStore:          "ASTORE",
	OpGoto:            "GOTO",
	OpIfEq:            "IFEQ",
	OpIfNe:            "IFNE",
	OpIfLt:            "IFLT",
	OpIfGe:            "IFGE",
	OpIfGt:            "IFGT",
	OpIfLe:            "IFLE",
	OpIfICmpEq:        "IF_ICMPEQ",
	OpIfICmpNe:        "IF_ICMPNE",
	OpIfICmpLt:        "IF_ICMPLT",
	OpIfICmpGe:        "IF_ICMPGE",
	OpIfICmpGt:        "IF_ICMPGT",
	OpIfICmpLe:        "IF_ICMPLE",
	OpLdc:             "LDC",
	OpBiPush:          "BIPUSH",
	OpSiPush:          "SIPUSH",
	OpIConst:          "ICONST",
	OpLConst:          "LCONST",
	OpFConst:          "FCONST",
	OpDConst:          "DCONST",
	OpAConstNull:      "ACONST_NULL",
	OpTableSwitch:     "TABLESWITCH",
	OpLookupSwitch:    "LOOKUPSWITCH",
	OpLabel:           "LABEL",
	OpLineNumber:      "LINENUMBER",
	OpFrame:           "FRAME",
}

// String renders op's mnemonic, matching the vocabulary used in
// diagnostics and the dump CLI.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsReturn reports whether op is one of the RETURN family.
func (op Opcode) IsReturn() bool {
	switch op {
	case OpReturn, OpAReturn, OpIReturn, OpLReturn, OpFReturn, OpDReturn:
		return true
	}
	return false
}

// IsInvoke reports whether op is one of the INVOKE* family.
func (op Opcode) IsInvoke() bool {
	switch op {
	case OpInvokeVirtual, OpInvokeStatic, OpInvokeSpecial, OpInvokeInterface:
		return true
	}
	return false
}

// IsFieldAccess reports whether op is one of the GETFIELD/PUTFIELD family.
func (op Opcode) IsFieldAccess() bool {
	switch op {
	case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
		return true
	}
	return false
}

// IsLoad reports whether op is one of the xLOAD family.
func (op Opcode) IsLoad() bool {
	switch op {
	case OpILoad, OpLLoad, OpFLoad, OpDLoad, OpALoad:
		return true
	}
	return false
}

// IsStore reports whether op is one of the xSTORE family.
func (op Opcode) IsStore() bool {
	switch op {
	case OpIStore, OpLStore, OpFStore, OpDStore, OpAStore:
		return true
	}
	return false
}

// IsJump reports whether op is a conditional or unconditional jump.
func (op Opcode) IsJump() bool {
	switch op {
	case OpGoto, OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe,
		OpIfICmpEq, OpIfICmpNe, OpIfICmpLt, OpIfICmpGe, OpIfICmpGt, OpIfICmpLe:
		return true
	}
	return false
}

// IsConstant reports whether op loads a constant value onto the stack.
func (op Opcode) IsConstant() bool {
	switch op {
	case OpLdc, OpBiPush, OpSiPush, OpIConst, OpLConst, OpFConst, OpDConst, OpAConstNull:
		return true
	}
	return false
}

// IsZeroComparisonBranch reports whether op is one of the implicit-zero
// comparison branches (IFEQ/IFNE/IFLT/IFGE/IFGT/IFLE) that §4.7 lets a
// CONSTANT injection point expand to.
func (op Opcode) IsZeroComparisonBranch() bool {
	switch op {
	case OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe:
		return true
	}
	return false
}

// VarType names the primitive/reference kind of a local variable, used by
// xLOAD/xSTORE instructions and by the discriminator (§4.8).
type VarType int

const (
	TypeInt VarType = iota
	TypeLong
	TypeFloat
	TypeDouble
	TypeObject
)

// Insn is a node in a method's instruction list. It is a tagged variant:
// only the fields relevant to Op are meaningful. Ordering within a
// method's list is authoritative (§3 Instruction).
type Insn struct {
	Op Opcode

	prev, next *Insn
	owner      *InsnList

	// Local variable access (xLOAD/xSTORE).
	Var     int
	VarType VarType

	// Field/method/type operations.
	Owner string
	Name  string
	Desc  string

	// Jumps: target label. Switches: default + case table.
	Label         *Insn // must be an OpLabel node
	SwitchDefault *Insn
	SwitchCases   map[int]*Insn

	// Constant loads: int64, float64, string, or a Member (TYPE const).
	Const any

	// Pseudo instructions.
	Line int // OpLineNumber

	// labelID is assigned to OpLabel nodes for stable textual identity in
	// diagnostics and tests; it has no bearing on program semantics.
	labelID int
}

// NewLabel creates a fresh, unattached label pseudo-instruction.
func NewLabel() *Insn { return &Insn{Op: OpLabel} }

// IsLabel reports whether n is a label pseudo-instruction.
func (n *Insn) IsLabel() bool { return n.Op == OpLabel }

// Next returns the instruction following n in its list, or nil at the
// tail.
func (n *Insn) Next() *Insn { return n.next }

// Prev returns the instruction preceding n in its list, or nil at the
// head.
func (n *Insn) Prev() *Insn { return n.prev }

// InsnList is the doubly linked, connected instruction sequence owned by
// a Method (§3 Method invariants: "the instruction list is a single
// connected sequence with labels resolvable within it").
type InsnList struct {
	head, tail *Insn
	size       int
	nextLabel  int
}

// Head returns the first instruction, or nil if the list is empty.
func (l *InsnList) Head() *Insn { return l.head }

// Tail returns the last instruction, or nil if the list is empty.
func (l *InsnList) Tail() *Insn { return l.tail }

// Len returns the number of instructions in the list, including pseudo
// instructions.
func (l *InsnList) Len() int { return l.size }

// Append adds n to the end of the list.
func (l *InsnList) Append(n *Insn) {
	if n.Op == OpLabel && n.labelID == 0 {
		l.nextLabel++
		n.labelID = l.nextLabel
	}
	n.owner = l
	if l.tail == nil {
		l.head, l.tail = n, n
		l.size++
		return
	}
	n.prev = l.tail
	l.tail.next = n
	l.tail = n
	l.size++
}

// InsertBefore splices insns immediately before location, which must be a
// node already in l. Implements the bytecode model's insertBefore
// operation (§4.1).
func (l *InsnList) InsertBefore(location *Insn, insns ...*Insn) {
	for _, n := range insns {
		n.owner = l
		prev := location.prev
		n.prev, n.next = prev, location
		if prev != nil {
			prev.next = n
		} else {
			l.head = n
		}
		location.prev = n
		l.size++
	}
}

// InsertAfter splices insns immediately after location.
func (l *InsnList) InsertAfter(location *Insn, insns ...*Insn) {
	cur := location
	for _, n := range insns {
		n.owner = l
		next := cur.next
		n.prev, n.next = cur, next
		cur.next = n
		if next != nil {
			next.prev = n
		} else {
			l.tail = n
		}
		cur = n
		l.size++
	}
}

// Replace substitutes the node at location with insns, preserving order.
// Any Insn elsewhere in the list whose Label field pointed at location
// must be repointed by the caller before calling Replace if location is a
// label (callers route replacement through the injection-node registry,
// see target.go, for exactly this reason).
func (l *InsnList) Replace(location *Insn, insns ...*Insn) {
	if len(insns) == 0 {
		l.Remove(location)
		return
	}
	l.InsertBefore(location, insns...)
	l.Remove(location)
}

// Remove unlinks n from the list. n's prev/next are cleared so a stale
// reference cannot be mistaken for still being attached.
func (l *InsnList) Remove(n *Insn) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if l.head == n {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next, n.owner = nil, nil, nil
	l.size--
}

// Index returns the zero-based position of n within l, or -1 if n is not
// in l. O(n); intended for diagnostics, not hot paths.
func (l *InsnList) Index(n *Insn) int {
	i := 0
	for c := l.head; c != nil; c = c.next {
		if c == n {
			return i
		}
		i++
	}
	return -1
}

// Range returns the instructions in [from, to) as a new slice, walking
// the list. Both bounds may be nil to mean "start"/"end" of the list.
func (l *InsnList) Range(from, to *Insn) []*Insn {
	start := l.head
	if from != nil {
		start = from
	}
	var out []*Insn
	for n := start; n != nil && n != to; n = n.next {
		out = append(out, n)
	}
	return out
}

// Clone deep-copies n: pointer fields that refer to other instructions
// (Label, SwitchDefault, SwitchCases) are remapped through labelMap so a
// cloned jump still targets the corresponding cloned label. Callers clone
// a whole method body label-first so labelMap is complete before cloning
// jumps (see Model.CloneMethod).
func (n *Insn) Clone(labelMap map[*Insn]*Insn) *Insn {
	c := *n
	c.prev, c.next, c.owner = nil, nil, nil
	if n.Label != nil {
		c.Label = labelMap[n.Label]
	}
	if n.SwitchDefault != nil {
		c.SwitchDefault = labelMap[n.SwitchDefault]
	}
	if n.SwitchCases != nil {
		c.SwitchCases = make(map[int]*Insn, len(n.SwitchCases))
		for k, v := range n.SwitchCases {
			c.SwitchCases[k] = labelMap[v]
		}
	}
	return &c
}

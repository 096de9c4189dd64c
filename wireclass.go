// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// Annotation value type tags for the wire codec.
const (
	avString byte = iota
	avInt
	avFloat
	avBool
	avArray
	avAnnotation
)

func encodeAnnotationValue(w *writer, v AnnotationValue) {
	switch val := v.(type) {
	case string:
		w.u8(avString)
		w.str(val)
	case int64:
		w.u8(avInt)
		w.i64(val)
	case int:
		w.u8(avInt)
		w.i64(int64(val))
	case float64:
		w.u8(avFloat)
		w.f64(val)
	case bool:
		w.u8(avBool)
		w.boolean(val)
	case []AnnotationValue:
		w.u8(avArray)
		w.u16(uint16(len(val)))
		for _, e := range val {
			encodeAnnotationValue(w, e)
		}
	case *Annotation:
		w.u8(avAnnotation)
		encodeAnnotation(w, *val)
	default:
		// Unknown value types degrade to their string form rather than
		// corrupting the stream; mixin authors get a readable, if lossy,
		// round trip instead of a hard failure.
		w.u8(avString)
		w.str(fmt.Sprint(val))
	}
}

func decodeAnnotationValue(c *cursor) (AnnotationValue, error) {
	tag, err := c.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case avString:
		return c.str()
	case avInt:
		return c.i64()
	case avFloat:
		return c.f64()
	case avBool:
		return c.boolean()
	case avArray:
		n, err := c.u16()
		if err != nil {
			return nil, err
		}
		out := make([]AnnotationValue, 0, n)
		for i := 0; i < int(n); i++ {
			v, err := decodeAnnotationValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case avAnnotation:
		a, err := decodeAnnotation(c)
		if err != nil {
			return nil, err
		}
		return &a, nil
	default:
		return nil, fmt.Errorf("mixin: unknown annotation value tag %d", tag)
	}
}

func encodeAnnotation(w *writer, a Annotation) {
	w.str(a.Type)
	w.u16(uint16(len(a.Values)))
	for k, v := range a.Values {
		w.str(k)
		encodeAnnotationValue(w, v)
	}
}

func decodeAnnotation(c *cursor) (Annotation, error) {
	a := Annotation{}
	var err error
	if a.Type, err = c.str(); err != nil {
		return a, err
	}
	n, err := c.u16()
	if err != nil {
		return a, err
	}
	a.Values = make(map[string]AnnotationValue, n)
	for i := 0; i < int(n); i++ {
		k, err := c.str()
		if err != nil {
			return a, err
		}
		v, err := decodeAnnotationValue(c)
		if err != nil {
			return a, err
		}
		a.Values[k] = v
	}
	return a, nil
}

func encodeAnnotations(w *writer, anns []Annotation) {
	w.u16(uint16(len(anns)))
	for _, a := range anns {
		encodeAnnotation(w, a)
	}
}

func decodeAnnotations(c *cursor) ([]Annotation, error) {
	n, err := c.u16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]Annotation, 0, n)
	for i := 0; i < int(n); i++ {
		a, err := decodeAnnotation(c)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func encodeField(w *writer, f *Field) {
	w.str(f.Name)
	w.str(f.Desc)
	w.u32(f.Access)
	if f.Value == nil {
		w.boolean(false)
	} else {
		w.boolean(true)
		encodeAnnotationValue(w, f.Value)
	}
	encodeAnnotations(w, f.Visible)
	encodeAnnotations(w, f.Invisible)
}

func decodeField(c *cursor) (*Field, error) {
	f := &Field{}
	var err error
	if f.Name, err = c.str(); err != nil {
		return nil, err
	}
	if f.Desc, err = c.str(); err != nil {
		return nil, err
	}
	if f.Access, err = c.u32(); err != nil {
		return nil, err
	}
	hasValue, err := c.boolean()
	if err != nil {
		return nil, err
	}
	if hasValue {
		if f.Value, err = decodeAnnotationValue(c); err != nil {
			return nil, err
		}
	}
	if f.Visible, err = decodeAnnotations(c); err != nil {
		return nil, err
	}
	if f.Invisible, err = decodeAnnotations(c); err != nil {
		return nil, err
	}
	return f, nil
}

// Instruction wire tags. Jump/switch targets and try-catch/local-var
// table entries are encoded as instruction-list positions and patched to
// pointers in a second pass (decodeMethod), since Insn nodes do not exist
// yet while the list is being read.
const (
	iOpNop byte = iota
	iInvoke
	iField
	iType
	iReturn
	iVarAccess
	iJump
	iLdcConst
	iIntConst
	iSwitch
	iLabel
	iLineNumber
)

func wireTagForOp(op Opcode) byte {
	switch {
	case op.IsInvoke():
		return iInvoke
	case op.IsFieldAccess():
		return iField
	case op == OpNew || op == OpCheckCast || op == OpInstanceOf || op == OpANewArray:
		return iType
	case op.IsReturn():
		return iReturn
	case op.IsLoad() || op.IsStore():
		return iVarAccess
	case op.IsJump():
		return iJump
	case op == OpLdc || op == OpAConstNull:
		return iLdcConst
	case op == OpBiPush || op == OpSiPush || op == OpIConst || op == OpLConst || op == OpFConst || op == OpDConst:
		return iIntConst
	case op == OpTableSwitch || op == OpLookupSwitch:
		return iSwitch
	case op == OpLabel:
		return iLabel
	case op == OpLineNumber:
		return iLineNumber
	default:
		return iOpNop
	}
}

func encodeMethod(w *writer, m *Method) error {
	w.str(m.Name)
	w.str(m.Desc)
	w.u32(m.Access)
	w.u32(uint32(m.MaxStack))
	w.u32(uint32(m.MaxLocals))

	// Index every node (labels included) so jump/switch/try-catch/local
	// references can be written as positions.
	index := make(map[*Insn]int)
	i := 0
	for n := m.Insns.Head(); n != nil; n = n.Next() {
		index[n] = i
		i++
	}
	idxOf := func(n *Insn) int32 {
		if n == nil {
			return -1
		}
		if v, ok := index[n]; ok {
			return int32(v)
		}
		return -1
	}

	w.u32(uint32(m.Insns.Len()))
	for n := m.Insns.Head(); n != nil; n = n.Next() {
		if err := encodeInsn(w, n, idxOf); err != nil {
			return fmt.Errorf("mixin: encoding instruction in %s%s: %w", m.Name, m.Desc, err)
		}
	}

	w.u16(uint16(len(m.TryCatch)))
	for _, tc := range m.TryCatch {
		w.u32(uint32(idxOf(tc.Start)))
		w.u32(uint32(idxOf(tc.End)))
		w.u32(uint32(idxOf(tc.Handler)))
		w.str(tc.Type)
	}

	w.u16(uint16(len(m.LocalVars)))
	for _, lv := range m.LocalVars {
		w.u32(uint32(lv.Index))
		w.str(lv.Name)
		w.str(lv.Desc)
		w.u32(uint32(idxOf(lv.Start)))
		w.u32(uint32(idxOf(lv.End)))
	}

	w.u16(uint16(len(m.ParamAnnotations)))
	for _, anns := range m.ParamAnnotations {
		encodeAnnotations(w, anns)
	}
	encodeAnnotations(w, m.Visible)
	encodeAnnotations(w, m.Invisible)
	return nil
}

func encodeInsn(w *writer, n *Insn, idxOf func(*Insn) int32) error {
	w.u8(wireTagForOp(n.Op))
	w.u8(uint8(n.Op))
	switch wireTagForOp(n.Op) {
	case iInvoke, iField, iType:
		w.str(n.Owner)
		w.str(n.Name)
		w.str(n.Desc)
	case iReturn, iLabel, iOpNop:
		// no payload
	case iVarAccess:
		w.u32(uint32(n.Var))
		w.u8(uint8(n.VarType))
	case iJump:
		w.u32(uint32(idxOf(n.Label)))
	case iLdcConst:
		if n.Op == OpAConstNull {
			return nil
		}
		encodeAnnotationValue(w, n.Const)
	case iIntConst:
		encodeAnnotationValue(w, n.Const)
	case iSwitch:
		w.u32(uint32(idxOf(n.SwitchDefault)))
		w.u16(uint16(len(n.SwitchCases)))
		for k, v := range n.SwitchCases {
			w.i64(int64(k))
			w.u32(uint32(idxOf(v)))
		}
	case iLineNumber:
		w.u32(uint32(n.Line))
	}
	return nil
}

// decodeMethod reads a method body in two passes: first materialize every
// node with its non-pointer fields, then patch label/switch references
// now that the full node slice is known.
func decodeMethod(c *cursor) (*Method, error) {
	m := &Method{}
	var err error
	if m.Name, err = c.str(); err != nil {
		return nil, err
	}
	if m.Desc, err = c.str(); err != nil {
		return nil, err
	}
	if m.Access, err = c.u32(); err != nil {
		return nil, err
	}
	maxStack, err := c.u32()
	if err != nil {
		return nil, err
	}
	m.MaxStack = int(maxStack)
	maxLocals, err := c.u32()
	if err != nil {
		return nil, err
	}
	m.MaxLocals = int(maxLocals)

	count, err := c.u32()
	if err != nil {
		return nil, err
	}

	nodes := make([]*Insn, count)
	fixups := make([]insnFixup, count)

	for i := 0; i < int(count); i++ {
		n, p, err := decodeInsn(c)
		if err != nil {
			return nil, fmt.Errorf("mixin: decoding instruction %d: %w", i, err)
		}
		nodes[i] = n
		fixups[i] = p
	}
	for i, n := range nodes {
		p := fixups[i]
		if n.Op.IsJump() && p.labelIdx >= 0 {
			n.Label = nodes[p.labelIdx]
		}
		if (n.Op == OpTableSwitch || n.Op == OpLookupSwitch) && p.switchDefault >= 0 {
			n.SwitchDefault = nodes[p.switchDefault]
			n.SwitchCases = make(map[int]*Insn, len(p.switchCaseKeys))
			for k := range p.switchCaseKeys {
				n.SwitchCases[int(p.switchCaseKeys[k])] = nodes[p.switchCaseIdx[k]]
			}
		}
		m.Insns.Append(n)
	}

	tcCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	atIndex := func(idx uint32) *Insn {
		if int(idx) >= len(nodes) {
			return nil
		}
		return nodes[idx]
	}
	for i := 0; i < int(tcCount); i++ {
		var startIdx, endIdx, handlerIdx uint32
		if startIdx, err = c.u32(); err != nil {
			return nil, err
		}
		if endIdx, err = c.u32(); err != nil {
			return nil, err
		}
		if handlerIdx, err = c.u32(); err != nil {
			return nil, err
		}
		typ, err := c.str()
		if err != nil {
			return nil, err
		}
		m.TryCatch = append(m.TryCatch, TryCatch{
			Start: atIndex(startIdx), End: atIndex(endIdx), Handler: atIndex(handlerIdx), Type: typ,
		})
	}

	lvCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(lvCount); i++ {
		idx, err := c.u32()
		if err != nil {
			return nil, err
		}
		name, err := c.str()
		if err != nil {
			return nil, err
		}
		desc, err := c.str()
		if err != nil {
			return nil, err
		}
		startIdx, err := c.u32()
		if err != nil {
			return nil, err
		}
		endIdx, err := c.u32()
		if err != nil {
			return nil, err
		}
		m.LocalVars = append(m.LocalVars, LocalVar{
			Index: int(idx), Name: name, Desc: desc, Start: atIndex(startIdx), End: atIndex(endIdx),
		})
	}

	paramCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(paramCount); i++ {
		anns, err := decodeAnnotations(c)
		if err != nil {
			return nil, err
		}
		m.ParamAnnotations = append(m.ParamAnnotations, anns)
	}
	if m.Visible, err = decodeAnnotations(c); err != nil {
		return nil, err
	}
	if m.Invisible, err = decodeAnnotations(c); err != nil {
		return nil, err
	}
	return m, nil
}

type insnFixup struct {
	labelIdx       int32
	switchDefault  int32
	switchCaseKeys []int64
	switchCaseIdx  []int32
}

func decodeInsn(c *cursor) (*Insn, insnFixup, error) {
	tag, err := c.u8()
	if err != nil {
		return nil, insnFixup{}, err
	}
	opByte, err := c.u8()
	if err != nil {
		return nil, insnFixup{}, err
	}
	n := &Insn{Op: Opcode(opByte)}
	fx := insnFixup{labelIdx: -1, switchDefault: -1}

	switch tag {
	case iInvoke, iField, iType:
		if n.Owner, err = c.str(); err != nil {
			return nil, fx, err
		}
		if n.Name, err = c.str(); err != nil {
			return nil, fx, err
		}
		if n.Desc, err = c.str(); err != nil {
			return nil, fx, err
		}
	case iReturn, iLabel, iOpNop:
		// no payload
	case iVarAccess:
		v, err := c.u32()
		if err != nil {
			return nil, fx, err
		}
		n.Var = int(v)
		t, err := c.u8()
		if err != nil {
			return nil, fx, err
		}
		n.VarType = VarType(t)
	case iJump:
		idx, err := c.u32()
		if err != nil {
			return nil, fx, err
		}
		fx.labelIdx = int32(idx)
	case iLdcConst:
		if n.Op != OpAConstNull {
			if n.Const, err = decodeAnnotationValue(c); err != nil {
				return nil, fx, err
			}
		}
	case iIntConst:
		if n.Const, err = decodeAnnotationValue(c); err != nil {
			return nil, fx, err
		}
	case iSwitch:
		def, err := c.u32()
		if err != nil {
			return nil, fx, err
		}
		fx.switchDefault = int32(def)
		caseCount, err := c.u16()
		if err != nil {
			return nil, fx, err
		}
		for i := 0; i < int(caseCount); i++ {
			k, err := c.i64()
			if err != nil {
				return nil, fx, err
			}
			v, err := c.u32()
			if err != nil {
				return nil, fx, err
			}
			fx.switchCaseKeys = append(fx.switchCaseKeys, k)
			fx.switchCaseIdx = append(fx.switchCaseIdx, int32(v))
		}
	case iLineNumber:
		line, err := c.u32()
		if err != nil {
			return nil, fx, err
		}
		n.Line = int(line)
	}
	return n, fx, nil
}

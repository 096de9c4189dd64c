// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "fmt"

// classVersion is the wire format version this package's codec speaks.
// Bumped only if the on-disk layout changes incompatibly.
const classVersion = 1

// Access flag bits shared by classes, fields and methods.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccAbstract  = 0x0400
	AccSynthetic = 0x1000
	AccInterface = 0x0200
)

// Annotation is a bytecode-carried metadata entry: a type name plus a set
// of named values. Values are one of string, int64, float64, bool,
// []AnnotationValue, or *Annotation (nested annotation), matching the
// small tagged union mixin-marker annotations are written in.
type Annotation struct {
	Type   string
	Values map[string]AnnotationValue
}

// AnnotationValue is the open union of annotation value kinds.
type AnnotationValue = any

// Field is a declared field of a Class (§3 Method/Field invariants:
// unique by name+descriptor except for synthetic bridges, which does not
// apply to fields).
type Field struct {
	Name       string
	Desc       string
	Access     uint32
	Value      AnnotationValue // constant value, nil if none
	Visible    []Annotation
	Invisible  []Annotation

	// mergedBy/mergedAtPriority record which mixin last contributed this
	// field and at what priority (§4.6.2 priority-wins merge rule); empty
	// for fields declared by the target itself.
	mergedBy         string
	mergedAtPriority int
}

// TryCatch is one try-catch range of a Method.
type TryCatch struct {
	Start, End, Handler *Insn
	Type                string // internal exception class name, "" for finally
}

// LocalVar is one local-variable-table entry of a Method.
type LocalVar struct {
	Index      int
	Name       string
	Desc       string
	Start, End *Insn
}

// Method is a declared method of a Class. Invariants per §3: max-locals
// is at least the live-local count at every instruction, max-stack is at
// least the maximum stack depth at every instruction, and Insns is a
// single connected sequence with labels resolvable within it.
type Method struct {
	Name      string
	Desc      string
	Access    uint32
	Insns     InsnList
	TryCatch  []TryCatch
	LocalVars []LocalVar
	ParamAnnotations [][]Annotation
	Visible   []Annotation
	Invisible []Annotation

	MaxStack  int
	MaxLocals int

	// mergedBy/overwrittenBy/mergedAtPriority record the
	// applicator's own bookkeeping (§4.6.3 overwrite-priority refusal
	// rule); empty for methods nobody has touched yet.
	mergedBy         string
	overwrittenBy    string
	mergedAtPriority int
}

// IsStatic reports whether the method has the static access flag.
func (m *Method) IsStatic() bool { return m.Access&AccStatic != 0 }

// IsAbstract reports whether the method has the abstract access flag.
func (m *Method) IsAbstract() bool { return m.Access&AccAbstract != 0 }

// Signature uniquely names a method or field by name+descriptor, the key
// used for "same name+descriptor" collision checks throughout §4.6.
type Signature struct{ Name, Desc string }

func (m *Method) signature() Signature { return Signature{m.Name, m.Desc} }
func (f *Field) signature() Signature  { return Signature{f.Name, f.Desc} }

// Class is the in-memory tree of a compiled class (§3 Class). Method and
// field order is preserved from parse through emit; the applicator
// appends new members rather than reordering existing ones.
type Class struct {
	InternalName string
	SuperName    string
	Interfaces   []string
	Access       uint32
	Version      int
	Fields       []*Field
	Methods      []*Method
	Signature    string // generic signature, "" if none
	SourceFile   string // "" if none
	Visible      []Annotation
	Invisible    []Annotation
}

// FindMethod returns the declared method matching name+desc, or nil.
func (c *Class) FindMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// FindMethodsByName returns every declared method named name, used by
// wildcard and name-only target resolution (§4.6.6).
func (c *Class) FindMethodsByName(name string) []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// FindField returns the declared field matching name+desc, or nil.
func (c *Class) FindField(name, desc string) *Field {
	for _, f := range c.Fields {
		if f.Name == name && (desc == "" || f.Desc == desc) {
			return f
		}
	}
	return nil
}

// AddInterface appends iface to the class's interface list if not already
// present (§4.6.1 dedup).
func (c *Class) AddInterface(iface string) bool {
	for _, existing := range c.Interfaces {
		if existing == iface {
			return false
		}
	}
	c.Interfaces = append(c.Interfaces, iface)
	return true
}

// Model exposes the bytecode I/O and mutation primitives of §4.1: Parse,
// Emit, CloneMethod, InsertBefore/Replace/Remove and local allocation. It
// is a value type; all state lives on the Class/Method it operates over.
type Model struct {
	// Frames supplies the common-superclass callback §4.1 requires when
	// recomputing stack map frames on Emit. A nil Frames disables frame
	// recomputation (tests and the debug CLI that never re-verify output
	// commonly run with this unset).
	Frames *FrameComputer
}

// Parse decodes raw bytes into a Class tree. Returns an error wrapping
// ErrOutsideBoundary or a malformed-wire detail if bytes is truncated or
// inconsistent.
func (Model) Parse(data []byte) (*Class, error) {
	c := newCursor(data)

	version, err := c.u16()
	if err != nil {
		return nil, fmt.Errorf("mixin: reading class version: %w", err)
	}
	if int(version) != classVersion {
		return nil, fmt.Errorf("mixin: unsupported class wire version %d", version)
	}

	class := &Class{Version: int(version)}
	if class.InternalName, err = c.str(); err != nil {
		return nil, err
	}
	if class.SuperName, err = c.str(); err != nil {
		return nil, err
	}
	if class.Access, err = c.u32(); err != nil {
		return nil, err
	}

	ifaceCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(ifaceCount); i++ {
		s, err := c.str()
		if err != nil {
			return nil, err
		}
		class.Interfaces = append(class.Interfaces, s)
	}

	if class.Signature, err = c.str(); err != nil {
		return nil, err
	}
	if class.SourceFile, err = c.str(); err != nil {
		return nil, err
	}
	if class.Visible, err = decodeAnnotations(c); err != nil {
		return nil, err
	}
	if class.Invisible, err = decodeAnnotations(c); err != nil {
		return nil, err
	}

	fieldCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(fieldCount); i++ {
		f, err := decodeField(c)
		if err != nil {
			return nil, fmt.Errorf("mixin: decoding field %d: %w", i, err)
		}
		class.Fields = append(class.Fields, f)
	}

	methodCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(methodCount); i++ {
		m, err := decodeMethod(c)
		if err != nil {
			return nil, fmt.Errorf("mixin: decoding method %d: %w", i, err)
		}
		class.Methods = append(class.Methods, m)
	}

	return class, nil
}

// Emit serializes a Class tree back to raw bytes. If m.Frames is set, it
// recomputes MaxStack/MaxLocals for every method first (§4.6.8 post-apply
// pass calls this indirectly through Applicator).
func (m Model) Emit(class *Class) ([]byte, error) {
	if m.Frames != nil {
		for _, method := range class.Methods {
			m.Frames.Recompute(class, method)
		}
	}

	w := &writer{}
	w.u16(classVersion)
	w.str(class.InternalName)
	w.str(class.SuperName)
	w.u32(class.Access)
	w.u16(uint16(len(class.Interfaces)))
	for _, iface := range class.Interfaces {
		w.str(iface)
	}
	w.str(class.Signature)
	w.str(class.SourceFile)
	encodeAnnotations(w, class.Visible)
	encodeAnnotations(w, class.Invisible)

	w.u16(uint16(len(class.Fields)))
	for _, f := range class.Fields {
		encodeField(w, f)
	}

	w.u16(uint16(len(class.Methods)))
	for _, meth := range class.Methods {
		if err := encodeMethod(w, meth); err != nil {
			return nil, err
		}
	}

	return w.Bytes(), nil
}

// CloneMethod deep-copies method, including its instruction list, so the
// applicator can add a mixin's method body to a target without aliasing
// the mixin's own tree (§3 ownership summary: "mixins contribute by
// cloning").
func (Model) CloneMethod(method *Method) *Method {
	clone := &Method{
		Name:      method.Name,
		Desc:      method.Desc,
		Access:    method.Access,
		MaxStack:  method.MaxStack,
		MaxLocals: method.MaxLocals,
	}
	clone.TryCatch = append([]TryCatch(nil), method.TryCatch...)
	clone.LocalVars = append([]LocalVar(nil), method.LocalVars...)
	clone.ParamAnnotations = append([][]Annotation(nil), method.ParamAnnotations...)
	clone.Visible = append([]Annotation(nil), method.Visible...)
	clone.Invisible = append([]Annotation(nil), method.Invisible...)

	labelMap := make(map[*Insn]*Insn)
	for n := method.Insns.Head(); n != nil; n = n.Next() {
		if n.IsLabel() {
			labelMap[n] = NewLabel()
		}
	}
	var clonedNodes []*Insn
	for n := method.Insns.Head(); n != nil; n = n.Next() {
		var cn *Insn
		if n.IsLabel() {
			cn = labelMap[n]
		} else {
			cn = n.Clone(labelMap)
		}
		clonedNodes = append(clonedNodes, cn)
	}
	for _, cn := range clonedNodes {
		clone.Insns.Append(cn)
	}

	// Re-point try-catch and local-variable-table references at the
	// cloned instruction nodes via position correspondence.
	orig := method.Insns
	origIdx := make(map[*Insn]int)
	i := 0
	for n := orig.Head(); n != nil; n = n.Next() {
		origIdx[n] = i
		i++
	}
	atIndex := func(idx int) *Insn {
		if idx < 0 || idx >= len(clonedNodes) {
			return nil
		}
		return clonedNodes[idx]
	}
	for i := range clone.TryCatch {
		tc := &clone.TryCatch[i]
		tc.Start = atIndex(origIdx[tc.Start])
		tc.End = atIndex(origIdx[tc.End])
		tc.Handler = atIndex(origIdx[tc.Handler])
	}
	for i := range clone.LocalVars {
		lv := &clone.LocalVars[i]
		lv.Start = atIndex(origIdx[lv.Start])
		lv.End = atIndex(origIdx[lv.End])
	}

	return clone
}

// InsertBefore splices insns before location in method's instruction list.
func (Model) InsertBefore(method *Method, location *Insn, insns ...*Insn) {
	method.Insns.InsertBefore(location, insns...)
}

// InsertAfter splices insns after location in method's instruction list.
func (Model) InsertAfter(method *Method, location *Insn, insns ...*Insn) {
	method.Insns.InsertAfter(location, insns...)
}

// Replace substitutes the node at location with insns.
func (Model) Replace(method *Method, location *Insn, insns ...*Insn) {
	method.Insns.Replace(location, insns...)
}

// Remove deletes insn from method's instruction list.
func (Model) Remove(method *Method, insn *Insn) {
	method.Insns.Remove(insn)
}

// AllocateLocal reserves one fresh local variable slot of the given type
// and returns its index, widening MaxLocals as needed. Long/double
// locals occupy two slots.
func (Model) AllocateLocal(method *Method, t VarType) int {
	idx := method.MaxLocals
	width := 1
	if t == TypeLong || t == TypeDouble {
		width = 2
	}
	method.MaxLocals += width
	return idx
}

// AllocateLocals reserves one fresh slot per type in order, returning
// their indices.
func (m Model) AllocateLocals(method *Method, types []VarType) []int {
	out := make([]int, len(types))
	for i, t := range types {
		out[i] = m.AllocateLocal(method, t)
	}
	return out
}

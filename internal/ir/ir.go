// Package ir is a small control-flow IR: modules of functions, functions of
// basic blocks, blocks of instructions.
//
// The instrumentation engine treats this package as its editor capability.
// It can locate instructions, read their types and insert or remove
// instructions around a given point. Nothing here knows about counting.
//
// Entities are addressed by stable identifiers. Branch targets are
// BlockIDs, functions are looked up by FuncID or name, and every
// instruction carries a function-unique InstrID that survives edits.
// Nothing outside this package should hold on to a block's instruction
// slice across an edit.
//
// Thread Safety: NOT thread-safe. Module-level changes (adding functions,
// setting globals) must come from one goroutine. Distinct functions may be
// edited concurrently, and a finished module may be read concurrently.
package ir

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/kolkov/bytesflops/internal/bf/abi"
)

// FuncID identifies a function within its module.
type FuncID int

// BlockID identifies a basic block within its function.
type BlockID int

// InstrID identifies an instruction within its function.
type InstrID int

// Value is anything an instruction can consume.
type Value interface {
	Type() *Type
	Ref() string
}

// Const is an immediate scalar.
type Const struct {
	Ty    *Type
	Int   int64
	Float float64
}

// ConstInt returns an integer (or pointer) constant of type t.
func ConstInt(t *Type, v int64) *Const {
	return &Const{Ty: t, Int: v}
}

// ConstFloat returns a floating-point constant of type t.
func ConstFloat(t *Type, v float64) *Const {
	return &Const{Ty: t, Float: v}
}

// Type implements Value.
func (c *Const) Type() *Type { return c.Ty }

// Ref implements Value.
func (c *Const) Ref() string {
	if c.Ty.IsFloat() {
		return c.Ty.String() + ":" + strconv.FormatFloat(c.Float, 'g', -1, 64)
	}
	return c.Ty.String() + ":" + strconv.FormatInt(c.Int, 10)
}

// Symbol names a function or call site. Runtime hooks take symbols where
// a native program would pass a pointer to a name string.
type Symbol struct {
	Name string
}

// Sym returns a symbol for name.
func Sym(name string) *Symbol {
	return &Symbol{Name: name}
}

// Type implements Value.
func (s *Symbol) Type() *Type { return Ptr }

// Ref implements Value.
func (s *Symbol) Ref() string { return "@" + strconv.Quote(s.Name) }

// Param is a function parameter.
type Param struct {
	Ty    *Type
	Index int
	Name  string
}

// Type implements Value.
func (p *Param) Type() *Type { return p.Ty }

// Ref implements Value.
func (p *Param) Ref() string { return "$" + strconv.Itoa(p.Index) }

// Instr is a single IR instruction. An instruction producing a value is
// itself a Value.
//
// Operand conventions by opcode:
//   - OpLoad:      Args[0] address; Elem is the loaded type (== Ty)
//   - OpStore:     Args[0] address, Args[1] value; Elem is the stored type
//   - OpAlloca:    Elem is the allocated type; Ty is Ptr
//   - OpMemSet:    Args[0] address, Args[1] byte value, Args[2] length
//   - OpCall:      Callee, Args are the call arguments
//   - OpIncrement: Counter += Args[0]
//   - OpCondBr:    Args[0] condition, Targets {then, else}
//   - OpSwitch:    Args[0] selector, Args[1:] case values,
//     Targets[0] default, Targets[1:] case blocks
//   - OpPhi:       Args[i] flows in from Targets[i]
//   - OpRet:       optional Args[0]
type Instr struct {
	ID       InstrID
	Op       Opcode
	Ty       *Type
	Elem     *Type
	Args     []Value
	Targets  []BlockID
	Callee   string
	Pred     string
	Counter  abi.CounterRef
	Name     string
	Injected bool

	block *Block
}

// Type implements Value.
func (in *Instr) Type() *Type {
	if in.Ty == nil {
		return Void
	}
	return in.Ty
}

// Ref implements Value.
func (in *Instr) Ref() string {
	if in.Name != "" {
		return "%" + in.Name
	}
	return "%" + strconv.Itoa(int(in.ID))
}

// Block returns the block holding in, or nil once removed.
func (in *Instr) Block() *Block { return in.block }

// AccessType returns the type moved by a load or store, or nil.
func (in *Instr) AccessType() *Type {
	switch in.Op {
	case OpLoad, OpStore:
		return in.Elem
	}
	return nil
}

// Block is a basic block: straight-line instructions ending in exactly one
// terminator.
type Block struct {
	ID     BlockID
	Label  string
	Instrs []*Instr

	fn *Function
}

// Func returns the enclosing function.
func (b *Block) Func() *Function { return b.fn }

// Terminator returns the final instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Name returns the label or a synthesized bN name.
func (b *Block) Name() string {
	if b.Label != "" {
		return b.Label
	}
	return "b" + strconv.Itoa(int(b.ID))
}

// Function is a named function. A function without blocks is an external
// declaration.
type Function struct {
	ID     FuncID
	Name   string
	Params []*Param
	Result *Type
	Blocks []*Block

	nextInstr InstrID
	module    *Module
}

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// Module returns the enclosing module.
func (f *Function) Module() *Module { return f.module }

// Block returns the block with the given id, or nil.
func (f *Function) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return f.Blocks[id]
}

// BlockByLabel returns the block with the given label, or nil.
func (f *Function) BlockByLabel(label string) *Block {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// AddBlock appends a new empty block.
func (f *Function) AddBlock(label string) *Block {
	b := &Block{ID: BlockID(len(f.Blocks)), Label: label, fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewInstr allocates an instruction with a fresh id. The instruction is
// not placed in any block.
func (f *Function) NewInstr(op Opcode, ty *Type, args ...Value) *Instr {
	if ty == nil {
		ty = Void
	}
	in := &Instr{ID: f.nextInstr, Op: op, Ty: ty, Args: args}
	f.nextInstr++
	return in
}

// NumInstrs returns the number of instructions currently placed in f.
func (f *Function) NumInstrs() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// Module is a collection of functions plus named integer globals.
type Module struct {
	Name    string
	Funcs   []*Function
	Globals map[string]int64

	byName map[string]FuncID
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		Globals: make(map[string]int64),
		byName:  make(map[string]FuncID),
	}
}

// AddFunction appends a function. Names must be unique.
func (m *Module) AddFunction(name string, result *Type, params ...*Type) (*Function, error) {
	if _, dup := m.byName[name]; dup {
		return nil, fmt.Errorf("duplicate function %q", name)
	}
	if result == nil {
		result = Void
	}
	f := &Function{ID: FuncID(len(m.Funcs)), Name: name, Result: result, module: m}
	for i, pt := range params {
		f.Params = append(f.Params, &Param{Ty: pt, Index: i})
	}
	m.Funcs = append(m.Funcs, f)
	m.byName[name] = f.ID
	return f, nil
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Function {
	id, ok := m.byName[name]
	if !ok {
		return nil
	}
	return m.Funcs[id]
}

// FuncByID returns the function with the given id, or nil.
func (m *Module) FuncByID(id FuncID) *Function {
	if id < 0 || int(id) >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[id]
}

// SetGlobal records a named integer global.
func (m *Module) SetGlobal(name string, v int64) {
	if m.Globals == nil {
		m.Globals = make(map[string]int64)
	}
	m.Globals[name] = v
}

// Global returns a named global and whether it is set.
func (m *Module) Global(name string) (int64, bool) {
	v, ok := m.Globals[name]
	return v, ok
}

// GlobalNames returns the global names in sorted order.
func (m *Module) GlobalNames() []string {
	names := make([]string, 0, len(m.Globals))
	for k := range m.Globals {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

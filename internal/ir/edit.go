package ir

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrNotInBlock is returned when an edit names an instruction that the
// block does not hold.
var ErrNotInBlock = errors.New("instruction not in block")

// Index returns the position of in within b, or -1.
func (b *Block) Index(in *Instr) int {
	if in == nil || in.block != b {
		return -1
	}
	for i, x := range b.Instrs {
		if x == in {
			return i
		}
	}
	return -1
}

// Append places instructions at the end of b.
func (b *Block) Append(ins ...*Instr) {
	for _, in := range ins {
		in.block = b
	}
	b.Instrs = append(b.Instrs, ins...)
}

// InsertBefore places instructions immediately before at.
func (b *Block) InsertBefore(at *Instr, ins ...*Instr) error {
	i := b.Index(at)
	if i < 0 {
		return fmt.Errorf("insert before %s: %w", at.Ref(), ErrNotInBlock)
	}
	b.insertAt(i, ins)
	return nil
}

// InsertAfter places instructions immediately after at.
func (b *Block) InsertAfter(at *Instr, ins ...*Instr) error {
	i := b.Index(at)
	if i < 0 {
		return fmt.Errorf("insert after %s: %w", at.Ref(), ErrNotInBlock)
	}
	b.insertAt(i+1, ins)
	return nil
}

// Remove takes in out of b.
func (b *Block) Remove(in *Instr) error {
	i := b.Index(in)
	if i < 0 {
		return fmt.Errorf("remove %s: %w", in.Ref(), ErrNotInBlock)
	}
	copy(b.Instrs[i:], b.Instrs[i+1:])
	b.Instrs[len(b.Instrs)-1] = nil
	b.Instrs = b.Instrs[:len(b.Instrs)-1]
	in.block = nil
	return nil
}

func (b *Block) insertAt(i int, ins []*Instr) {
	if len(ins) == 0 {
		return
	}
	for _, in := range ins {
		in.block = b
	}
	grown := make([]*Instr, 0, len(b.Instrs)+len(ins))
	grown = append(grown, b.Instrs[:i]...)
	grown = append(grown, ins...)
	grown = append(grown, b.Instrs[i:]...)
	b.Instrs = grown
}

// VerifyError describes a structural defect in a function body.
type VerifyError struct {
	Func  string
	Block string
	Index int
	Msg   string
}

func (e *VerifyError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s:%s:%d: %s", e.Func, e.Block, e.Index, e.Msg)
	}
	return fmt.Sprintf("%s:%s: %s", e.Func, e.Block, e.Msg)
}

// Verify checks that every block ends in exactly one terminator and that
// every branch target exists.
func (f *Function) Verify() error {
	for _, b := range f.Blocks {
		if len(b.Instrs) == 0 {
			return &VerifyError{Func: f.Name, Block: b.Name(), Index: -1, Msg: "empty block"}
		}
		for i, in := range b.Instrs {
			last := i == len(b.Instrs)-1
			if in.Op.IsTerminator() != last {
				msg := "terminator before end of block"
				if last {
					msg = "block does not end in a terminator"
				}
				return &VerifyError{Func: f.Name, Block: b.Name(), Index: i, Msg: msg}
			}
			if in.Op == OpPhi {
				if len(in.Targets) != len(in.Args) {
					return &VerifyError{Func: f.Name, Block: b.Name(), Index: i, Msg: "phi edges and values differ in number"}
				}
			} else if !in.Op.IsTerminator() && len(in.Targets) > 0 {
				return &VerifyError{Func: f.Name, Block: b.Name(), Index: i, Msg: "non-branch instruction has targets"}
			}
			for _, t := range in.Targets {
				if f.Block(t) == nil {
					return &VerifyError{Func: f.Name, Block: b.Name(), Index: i, Msg: fmt.Sprintf("unknown target block %d", t)}
				}
			}
		}
	}
	return nil
}

// Verify checks every function body in m.
func (m *Module) Verify() error {
	var result *multierror.Error
	for _, f := range m.Funcs {
		if err := f.Verify(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

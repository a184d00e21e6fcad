package ir

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// programFile is the on-disk YAML form of a module.
type programFile struct {
	Name      string     `yaml:"name"`
	Functions []funcFile `yaml:"functions"`
}

type funcFile struct {
	Name   string      `yaml:"name"`
	Result string      `yaml:"result"`
	Params []string    `yaml:"params"`
	Blocks []blockFile `yaml:"blocks"`
}

type blockFile struct {
	Label  string      `yaml:"label"`
	Instrs []instrFile `yaml:"instrs"`
}

type instrFile struct {
	ID      string   `yaml:"id"`
	Op      string   `yaml:"op"`
	Type    string   `yaml:"type"`
	Pred    string   `yaml:"pred"`
	Callee  string   `yaml:"callee"`
	Args    []string `yaml:"args"`
	Targets []string `yaml:"targets"`
}

// LoadFile reads a YAML program from path.
func LoadFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a YAML program and returns the module it describes.
//
// Instructions may reference results defined later in the listing (phi
// nodes on loop back edges need this), so decoding happens in two passes:
// the first allocates every instruction, the second resolves operands and
// branch targets.
func Decode(r io.Reader) (*Module, error) {
	var pf programFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to decode program: %w", err)
	}

	m := NewModule(pf.Name)
	for _, ff := range pf.Functions {
		result, err := ParseType(ff.Result)
		if err != nil {
			return nil, fmt.Errorf("function %s: result: %w", ff.Name, err)
		}
		params := make([]*Type, len(ff.Params))
		for i, p := range ff.Params {
			if params[i], err = ParseType(p); err != nil {
				return nil, fmt.Errorf("function %s: param %d: %w", ff.Name, i, err)
			}
		}
		if _, err := m.AddFunction(ff.Name, result, params...); err != nil {
			return nil, err
		}
	}
	for i, ff := range pf.Functions {
		if err := decodeBody(m.Funcs[i], ff); err != nil {
			return nil, fmt.Errorf("function %s: %w", ff.Name, err)
		}
	}
	if err := m.Verify(); err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}
	return m, nil
}

func decodeBody(f *Function, ff funcFile) error {
	for _, bf := range ff.Blocks {
		if bf.Label != "" && f.BlockByLabel(bf.Label) != nil {
			return fmt.Errorf("duplicate block label %q", bf.Label)
		}
		f.AddBlock(bf.Label)
	}

	named := make(map[string]*Instr)
	pending := make([][]*Instr, len(ff.Blocks))
	for bi, bf := range ff.Blocks {
		for ii, spec := range bf.Instrs {
			op, ok := ParseOpcode(spec.Op)
			if !ok || op == OpIncrement {
				return fmt.Errorf("block %s: instr %d: unknown opcode %q", f.Blocks[bi].Name(), ii, spec.Op)
			}
			in := f.NewInstr(op, Void)
			in.Pred = spec.Pred
			in.Callee = spec.Callee
			if spec.ID != "" {
				if _, dup := named[spec.ID]; dup {
					return fmt.Errorf("duplicate instruction id %q", spec.ID)
				}
				in.Name = spec.ID
				named[spec.ID] = in
			}
			pending[bi] = append(pending[bi], in)
		}
	}

	for bi, bf := range ff.Blocks {
		blk := f.Blocks[bi]
		for ii, spec := range bf.Instrs {
			in := pending[bi][ii]
			if err := resolveInstr(f, in, spec, named); err != nil {
				return fmt.Errorf("block %s: instr %d (%s): %w", blk.Name(), ii, spec.Op, err)
			}
			blk.Append(in)
		}
	}
	return nil
}

func resolveInstr(f *Function, in *Instr, spec instrFile, named map[string]*Instr) error {
	for _, a := range spec.Args {
		v, err := parseOperand(f, a, named)
		if err != nil {
			return err
		}
		in.Args = append(in.Args, v)
	}
	for _, label := range spec.Targets {
		blk := f.BlockByLabel(label)
		if blk == nil {
			return fmt.Errorf("unknown target %q", label)
		}
		in.Targets = append(in.Targets, blk.ID)
	}

	ty, err := ParseType(spec.Type)
	if err != nil {
		return err
	}
	switch in.Op {
	case OpLoad:
		in.Ty, in.Elem = ty, ty
		return wantArgs(in, 1)
	case OpStore:
		if err := wantArgs(in, 2); err != nil {
			return err
		}
		in.Elem = ty
		if ty.IsVoid() {
			in.Elem = in.Args[1].Type()
		}
	case OpAlloca:
		in.Ty, in.Elem = Ptr, ty
	case OpMemSet:
		return wantArgs(in, 3)
	case OpICmp, OpFCmp:
		if err := wantArgs(in, 2); err != nil {
			return err
		}
		in.Ty = I1
		if t := in.Args[0].Type(); t.IsVector() {
			in.Ty = VectorOf(I1, t.Len)
		}
	case OpPtrAdd:
		in.Ty = Ptr
		return wantArgs(in, 2)
	case OpCall, OpCast, OpOther:
		in.Ty = ty
	case OpSelect:
		if err := wantArgs(in, 3); err != nil {
			return err
		}
		in.Ty = in.Args[1].Type()
	case OpBr, OpCondBr, OpSwitch, OpRet, OpUnreachable:
		in.Ty = Void
	default:
		in.Ty = ty
		if ty.IsVoid() && len(in.Args) > 0 {
			in.Ty = in.Args[0].Type()
		}
	}
	return nil
}

func wantArgs(in *Instr, n int) error {
	if len(in.Args) != n {
		return fmt.Errorf("%s wants %d operands, got %d", in.Op, n, len(in.Args))
	}
	return nil
}

// parseOperand understands "%id", "$n", "@symbol" and "type:literal".
func parseOperand(f *Function, s string, named map[string]*Instr) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "%"):
		in, ok := named[s[1:]]
		if !ok {
			return nil, fmt.Errorf("undefined value %s", s)
		}
		return in, nil
	case strings.HasPrefix(s, "$"):
		i, err := strconv.Atoi(s[1:])
		if err != nil || i < 0 || i >= len(f.Params) {
			return nil, fmt.Errorf("bad parameter reference %s", s)
		}
		return f.Params[i], nil
	case strings.HasPrefix(s, "@"):
		name := s[1:]
		if strings.HasPrefix(name, `"`) {
			uq, err := strconv.Unquote(name)
			if err != nil {
				return nil, fmt.Errorf("bad symbol %s: %w", s, err)
			}
			name = uq
		}
		return Sym(name), nil
	}
	tyStr, lit, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("bad operand %q", s)
	}
	ty, err := ParseType(tyStr)
	if err != nil {
		return nil, err
	}
	if ty.IsFloat() {
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %q: %w", lit, err)
		}
		return ConstFloat(ty, v), nil
	}
	v, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("bad integer literal %q: %w", lit, err)
	}
	return ConstInt(ty, v), nil
}

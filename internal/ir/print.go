package ir

import (
	"fmt"
	"io"
	"strings"
)

// String renders a single instruction.
func (in *Instr) String() string {
	var sb strings.Builder
	if !in.Type().IsVoid() {
		fmt.Fprintf(&sb, "%s = ", in.Ref())
	}
	sb.WriteString(in.Op.String())
	if in.Pred != "" {
		sb.WriteString(" " + in.Pred)
	}
	switch in.Op {
	case OpLoad, OpStore, OpAlloca:
		fmt.Fprintf(&sb, " %s", in.Elem)
	case OpCall:
		fmt.Fprintf(&sb, " %s @%s", in.Type(), in.Callee)
	case OpIncrement:
		fmt.Fprintf(&sb, " %s", in.Counter)
	default:
		if !in.Type().IsVoid() {
			fmt.Fprintf(&sb, " %s", in.Type())
		}
	}
	for i, a := range in.Args {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Ref())
	}
	if len(in.Targets) > 0 {
		sb.WriteString(" ->")
		for _, t := range in.Targets {
			fmt.Fprintf(&sb, " b%d", t)
		}
	}
	if in.Injected {
		sb.WriteString("  ; bf")
	}
	return sb.String()
}

// Print writes f in textual form.
func (f *Function) Print(w io.Writer) error {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %s", p.Ref(), p.Ty)
	}
	if f.IsDeclaration() {
		_, err := fmt.Fprintf(w, "declare %s @%s(%s)\n", f.Result, f.Name, strings.Join(params, ", "))
		return err
	}
	if _, err := fmt.Fprintf(w, "func %s @%s(%s) {\n", f.Result, f.Name, strings.Join(params, ", ")); err != nil {
		return err
	}
	for _, b := range f.Blocks {
		if _, err := fmt.Fprintf(w, "%s:  ; b%d\n", b.Name(), b.ID); err != nil {
			return err
		}
		for _, in := range b.Instrs {
			if _, err := fmt.Fprintf(w, "  %s\n", in); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// Print writes m in textual form.
func (m *Module) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "module %s\n", m.Name); err != nil {
		return err
	}
	for _, name := range m.GlobalNames() {
		if _, err := fmt.Fprintf(w, "global %s = %d\n", name, m.Globals[name]); err != nil {
			return err
		}
	}
	for _, f := range m.Funcs {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if err := f.Print(w); err != nil {
			return err
		}
	}
	return nil
}

func (f *Function) String() string {
	var sb strings.Builder
	_ = f.Print(&sb)
	return sb.String()
}

func (m *Module) String() string {
	var sb strings.Builder
	_ = m.Print(&sb)
	return sb.String()
}

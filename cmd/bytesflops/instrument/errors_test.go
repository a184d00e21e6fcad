// Package instrument - Tests for error handling.
package instrument

import (
	"errors"
	"strings"
	"testing"

	"github.com/kolkov/bytesflops/internal/ir"
)

// TestInstrumentationError_Error tests error message formatting.
func TestInstrumentationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *InstrumentationError
		expected string
	}{
		{
			name: "basic error without suggestion",
			err: &InstrumentationError{
				Func:    "axpy",
				Block:   "loop",
				Index:   3,
				Message: "branch to unknown block 9",
			},
			expected: "axpy:loop:3: branch to unknown block 9",
		},
		{
			name: "block-level error",
			err: &InstrumentationError{
				Func:    "main",
				Block:   "b0",
				Index:   -1,
				Message: "empty block",
			},
			expected: "main:b0: empty block",
		},
		{
			name: "error with suggestion",
			err: &InstrumentationError{
				Func:       "main",
				Block:      "entry",
				Index:      0,
				Message:    "block does not end in a terminator",
				Suggestion: "End every block with ret",
			},
			expected: "main:entry:0: block does not end in a terminator\n\nSuggestion: End every block with ret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

// TestNewInstrumentationError tests error creation from a block position.
func TestNewInstrumentationError(t *testing.T) {
	m := ir.NewModule("m")
	f, err := m.AddFunction("main", ir.Void)
	if err != nil {
		t.Fatal(err)
	}
	b := ir.NewBuilder(f)
	blk := f.AddBlock("entry")
	b.SetBlock(blk)
	b.Alloca(ir.I64)
	ret := b.Ret()

	e := NewInstrumentationError(blk, ret, "cannot instrument")
	if e.Func != "main" || e.Block != "entry" || e.Index != 1 {
		t.Errorf("position = %s:%s:%d, want main:entry:1", e.Func, e.Block, e.Index)
	}
	if e.Suggestion != "" {
		t.Errorf("Suggestion = %q, want empty", e.Suggestion)
	}

	e = NewInstrumentationError(blk, nil, "block error")
	if e.Index != -1 {
		t.Errorf("Index = %d, want -1 for block-level error", e.Index)
	}
}

// TestNewInstrumentationErrorWithSuggestion tests suggestion propagation.
func TestNewInstrumentationErrorWithSuggestion(t *testing.T) {
	m := ir.NewModule("m")
	f, _ := m.AddFunction("main", ir.Void)
	blk := f.AddBlock("")
	e := NewInstrumentationErrorWithSuggestion(blk, nil, "empty block", "Add a ret")
	if !strings.Contains(e.Error(), "Suggestion: Add a ret") {
		t.Errorf("Error() = %q, missing suggestion", e.Error())
	}
	if e.Block != "b0" {
		t.Errorf("Block = %q, want b0", e.Block)
	}
}

// TestFromVerifyError tests conversion of IR verification failures.
func TestFromVerifyError(t *testing.T) {
	ve := &ir.VerifyError{Func: "f", Block: "entry", Index: 2, Msg: "terminator before end of block"}
	err := fromVerifyError(ve)

	var ie *InstrumentationError
	if !errors.As(err, &ie) {
		t.Fatalf("fromVerifyError returned %T, want *InstrumentationError", err)
	}
	if ie.Func != "f" || ie.Index != 2 || ie.Suggestion == "" {
		t.Errorf("got %+v", ie)
	}

	other := errors.New("boom")
	if got := fromVerifyError(other); got != other {
		t.Errorf("non-verify error changed: %v", got)
	}
}

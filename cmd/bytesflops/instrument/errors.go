// Package instrument - Positioned errors for instrumentation.
//
// Errors name the function, block and instruction index where
// instrumentation stopped, plus an optional suggestion.
//
// Example output:
//
//	axpy:loop:3: block does not end in a terminator
//
//	Suggestion: End every block with br, condbr, switch, ret or unreachable
package instrument

import (
	"errors"
	"fmt"

	"github.com/kolkov/bytesflops/internal/ir"
)

// ErrAlreadyInstrumented is returned for a module that already carries the
// instrumentation globals.
var ErrAlreadyInstrumented = errors.New("module is already instrumented")

// InstrumentationError represents an error during instrumentation with context.
//
// Fields:
//   - Func: Function being instrumented
//   - Block: Block name (label or bN)
//   - Index: Instruction index within the block, -1 for the block itself
//   - Message: Human-readable error description
//   - Suggestion: Optional hint for fixing the error
//
// Example:
//
//	err := &InstrumentationError{
//	    Func:    "axpy",
//	    Block:   "loop",
//	    Index:   3,
//	    Message: "branch to unknown block 9",
//	}
//	fmt.Println(err) // Output: axpy:loop:3: branch to unknown block 9
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type InstrumentationError struct {
	Func       string // Function name
	Block      string // Block name
	Index      int    // Instruction index, -1 if none
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
}

// Error implements the error interface.
//
// Format: func:block:index: message, or func:block: message when Index is
// negative. A non-empty Suggestion follows on a new paragraph.
func (e *InstrumentationError) Error() string {
	var result string
	if e.Index >= 0 {
		result = fmt.Sprintf("%s:%s:%d: %s", e.Func, e.Block, e.Index, e.Message)
	} else {
		result = fmt.Sprintf("%s:%s: %s", e.Func, e.Block, e.Message)
	}
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewInstrumentationError creates an error positioned at in within blk.
// A nil in positions the error at the block itself.
//
// Parameters:
//   - blk: Block holding the offending instruction
//   - in: Offending instruction, or nil
//   - msg: Error message describing what went wrong
//
// Returns:
//   - *InstrumentationError: Error with position populated
func NewInstrumentationError(blk *ir.Block, in *ir.Instr, msg string) *InstrumentationError {
	e := &InstrumentationError{Block: blk.Name(), Index: blk.Index(in), Message: msg}
	if f := blk.Func(); f != nil {
		e.Func = f.Name
	}
	return e
}

// NewInstrumentationErrorWithSuggestion creates a positioned error with a
// suggestion.
func NewInstrumentationErrorWithSuggestion(blk *ir.Block, in *ir.Instr, msg, suggestion string) *InstrumentationError {
	err := NewInstrumentationError(blk, in, msg)
	err.Suggestion = suggestion
	return err
}

// fromVerifyError turns a structural defect reported by the IR into an
// InstrumentationError with a suggestion.
func fromVerifyError(err error) error {
	var ve *ir.VerifyError
	if !errors.As(err, &ve) {
		return err
	}
	return &InstrumentationError{
		Func:       ve.Func,
		Block:      ve.Block,
		Index:      ve.Index,
		Message:    ve.Msg,
		Suggestion: "End every block with exactly one br, condbr, switch, ret or unreachable and branch only to blocks of the same function",
	}
}

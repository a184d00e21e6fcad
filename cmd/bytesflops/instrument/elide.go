// Package instrument - Mega-lock elision.
//
// Injection wraps every counter update in its own critical section:
//
//	acquire; Loads += 1; release
//	acquire; LoadBytes += 8; release
//	acquire; accumulate(NOT_END); release
//
// A release immediately followed by an acquire protects nothing, so the
// pair is removed and the neighbouring regions merge:
//
//	acquire; Loads += 1; LoadBytes += 8; accumulate(NOT_END); release
//
// Safety Invariants:
//   - Only a release directly followed by an acquire in the same block is
//     removed
//   - Every remaining acquire still has exactly one matching release
//   - No counter update is added, removed or reordered
//
// Thread Safety: NOT thread-safe (edits a single function).
package instrument

import (
	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/ir"
)

// ElideMegaLocks removes every release/acquire pair that abuts within a
// block of f and returns the number of pairs removed.
//
// Example:
//
//	n := ElideMegaLocks(fn)
//	log.Debug().Int("elided", n).Msg("mega-lock pairs merged")
func ElideMegaLocks(f *ir.Function) int {
	removed := 0
	for _, b := range f.Blocks {
		i := 0
		for i+1 < len(b.Instrs) {
			rel, acq := b.Instrs[i], b.Instrs[i+1]
			if !isHookCall(rel, abi.HookReleaseMegaLock) || !isHookCall(acq, abi.HookAcquireMegaLock) {
				i++
				continue
			}
			// Both are known to be in b, so Remove cannot fail.
			_ = b.Remove(rel)
			_ = b.Remove(acq)
			removed++
		}
	}
	return removed
}

func isHookCall(in *ir.Instr, h abi.Hook) bool {
	return in.Op == ir.OpCall && in.Callee == string(h)
}

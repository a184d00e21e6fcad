// Package abi defines the contract shared by the instrumentation engine and
// the counting runtime.
//
// The engine never owns counter storage. It emits CounterRef handles and
// calls to the hooks named here; the runtime resolves both at execution
// time. Keeping the enumerations in one leaf package lets the instrument,
// interp and api packages agree on indices without importing each other.
package abi

import "fmt"

// Hook is the callee name of a runtime entry point emitted by the engine.
type Hook string

// Runtime hooks. Every injected call targets one of these names.
const (
	HookPushFunction      Hook = "bf_push_function"
	HookPopFunction       Hook = "bf_pop_function"
	HookNoteCallSite      Hook = "bf_note_call_site"
	HookIncrFuncTally     Hook = "bf_incr_func_tally"
	HookAccumulateBB      Hook = "bf_accumulate_bb_tallies"
	HookReportBB          Hook = "bf_report_bb_tallies"
	HookResetBB           Hook = "bf_reset_bb_tallies"
	HookAssocCountersFunc Hook = "bf_assoc_counters_with_func"
	HookAssocAddrsFunc    Hook = "bf_assoc_addresses_with_func"
	HookAssocAddrsProg    Hook = "bf_assoc_addresses_with_prog"
	HookAcquireMegaLock   Hook = "bf_acquire_mega_lock"
	HookReleaseMegaLock   Hook = "bf_release_mega_lock"
	HookTallyVector       Hook = "bf_tally_vector_operation"
	HookReuseDistAddrs    Hook = "bf_reuse_dist_addrs"
)

// HookPrefix starts every runtime entry point name. Functions carrying it
// are never instrumented.
const HookPrefix = "bf_"

var hooks = map[Hook]struct{}{
	HookPushFunction:      {},
	HookPopFunction:       {},
	HookNoteCallSite:      {},
	HookIncrFuncTally:     {},
	HookAccumulateBB:      {},
	HookReportBB:          {},
	HookResetBB:           {},
	HookAssocCountersFunc: {},
	HookAssocAddrsFunc:    {},
	HookAssocAddrsProg:    {},
	HookAcquireMegaLock:   {},
	HookReleaseMegaLock:   {},
	HookTallyVector:       {},
	HookReuseDistAddrs:    {},
}

// IsHook reports whether name is one of the runtime entry points.
func IsHook(name string) bool {
	_, ok := hooks[Hook(name)]
	return ok
}

// BlockEnd tags the reason a basic-block tally is flushed.
type BlockEnd uint8

const (
	// NotEnd marks a flush that does not end in a branch: a return, an
	// unreachable terminator, or a mid-block flush before a call.
	NotEnd BlockEnd = iota
	// UncondBranchEnd marks a block ending in an unconditional branch.
	UncondBranchEnd
	// CondBranchEnd marks a block ending in a conditional or multiway branch.
	CondBranchEnd
)

func (e BlockEnd) String() string {
	switch e {
	case NotEnd:
		return "NOT_END"
	case UncondBranchEnd:
		return "UNCOND_BRANCH_END"
	case CondBranchEnd:
		return "COND_BRANCH_END"
	}
	return fmt.Sprintf("BlockEnd(%d)", uint8(e))
}

// AccessKind is a bit set selecting which memory accesses feed the
// reuse-distance tracker.
type AccessKind uint8

const (
	AccessLoads AccessKind = 1 << iota
	AccessStores

	AccessBoth = AccessLoads | AccessStores
)

// ParseAccessKind maps an option value to its bits.
func ParseAccessKind(s string) (AccessKind, error) {
	switch s {
	case "loads":
		return AccessLoads, nil
	case "stores":
		return AccessStores, nil
	case "both":
		return AccessBoth, nil
	}
	return 0, fmt.Errorf("unknown reuse-distance access kind %q (want loads, stores or both)", s)
}

func (k AccessKind) String() string {
	switch k {
	case 0:
		return "none"
	case AccessLoads:
		return "loads"
	case AccessStores:
		return "stores"
	case AccessBoth:
		return "both"
	}
	return fmt.Sprintf("AccessKind(%d)", uint8(k))
}

package abi

// Module globals recording how a module was instrumented. The engine
// writes them; a runtime reads them to configure itself for that module.
const (
	GlobalEveryBB       = "bf_every_bb"
	GlobalByFunc        = "bf_by_func"
	GlobalCallStack     = "bf_call_stack"
	GlobalUniqueBytes   = "bf_unique_bytes"
	GlobalAllOps        = "bf_all_ops"
	GlobalTypes         = "bf_types"
	GlobalInstMix       = "bf_inst_mix"
	GlobalMergeCount    = "bf_merge_count"
	GlobalThreadSafe    = "bf_thread_safe"
	GlobalVectors       = "bf_vectors"
	GlobalReuseDist     = "bf_reuse_dist"
	GlobalMaxReuseDist  = "bf_max_reuse_distance"
	GlobalStaticLoads   = "bf_static_loads"
	GlobalStaticStores  = "bf_static_stores"
	GlobalStaticFlops   = "bf_static_flops"
	GlobalStaticOps     = "bf_static_ops"
	GlobalStaticCondBrs = "bf_static_cond_brs"
)

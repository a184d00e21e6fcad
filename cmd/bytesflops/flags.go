package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kolkov/bytesflops/cmd/bytesflops/instrument"
	"github.com/kolkov/bytesflops/internal/bf/abi"
)

// flagPrefix marks instrumentation options on the command line.
const flagPrefix = "bf-"

// addInstrumentFlags registers the instrumentation options on fs.
func addInstrumentFlags(fs *pflag.FlagSet) {
	fs.Bool("bf-every-bb", false, "report counter values at the end of every basic block")
	fs.Bool("bf-by-func", false, "tally counters per function")
	fs.Bool("bf-call-stack", false, "tally counters per call stack (implies --bf-by-func)")
	fs.Bool("bf-unique-bytes", false, "track the number of unique bytes touched")
	fs.Bool("bf-all-ops", false, "count every operation, not only flops")
	fs.Bool("bf-types", false, "tally loads and stores per data type (implies --bf-all-ops)")
	fs.Bool("bf-inst-mix", false, "tally executed instructions per opcode")
	fs.Int("bf-merge", 1, "merge this many basic-block reports into one")
	fs.StringSlice("bf-include", nil, "instrument only these functions")
	fs.StringSlice("bf-exclude", nil, "do not instrument these functions")
	fs.Bool("bf-thread-safe", false, "serialize counter aggregation across threads")
	fs.Bool("bf-vectors", false, "tally vector operations by shape")
	fs.StringSlice("bf-reuse-dist", nil, "compute reuse distance over loads, stores or both (repeatable)")
	fs.Int64("bf-max-reuse-dist", 0, "cap on tracked reuse distance (0 = unbounded)")
}

// instrumentOptions builds instrument.Options from the bound flags,
// environment and config file. Numbers that do not parse are errors, not
// zeros.
func instrumentOptions(v *viper.Viper) (instrument.Options, error) {
	var errs *multierror.Error
	opts := instrument.DefaultOptions()
	opts.EveryBB = v.GetBool("every-bb")
	opts.ByFunc = v.GetBool("by-func")
	opts.CallStack = v.GetBool("call-stack")
	opts.UniqueBytes = v.GetBool("unique-bytes")
	opts.AllOps = v.GetBool("all-ops")
	opts.Types = v.GetBool("types")
	opts.InstMix = v.GetBool("inst-mix")
	if n, err := cast.ToIntE(v.Get("merge")); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid merge count %q: %w", v.GetString("merge"), err))
	} else {
		opts.MergeCount = n
	}
	opts.Include = v.GetStringSlice("include")
	opts.Exclude = v.GetStringSlice("exclude")
	opts.ThreadSafe = v.GetBool("thread-safe")
	opts.Vectors = v.GetBool("vectors")
	if n, err := cast.ToInt64E(v.Get("max-reuse-dist")); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid max reuse distance %q: %w", v.GetString("max-reuse-dist"), err))
	} else {
		opts.MaxReuseDist = n
	}

	for _, s := range v.GetStringSlice("reuse-dist") {
		kind, err := abi.ParseAccessKind(s)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		opts.ReuseDist |= kind
	}
	if err := opts.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return opts, errs.ErrorOrNil()
}

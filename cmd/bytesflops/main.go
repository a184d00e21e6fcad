// Package main implements the bytesflops CLI tool.
//
// The bytesflops tool measures how many bytes a program moves and how many
// floating-point operations it performs. It works by:
//
//  1. Loading a program, either an IR program file (YAML) or Go packages
//     lowered through SSA
//  2. Instrumenting every selected function with counter updates and
//     end-of-block accounting calls
//  3. Interpreting the instrumented program against the counting runtime,
//     or summarizing the instrumentation statically
//
// Usage:
//
//	bytesflops run --bf-by-func prog.yaml     # Count a run of prog.yaml
//	bytesflops analyze ./kernels/...          # Static counts for Go code
//	bytesflops version                        # Show version information
//
// Every --bf-* option can also come from the environment (BF_BY_FUNC=1)
// or from a config file (default $HOME/.bytesflops.yaml).
package main

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatal(err)
	}
}

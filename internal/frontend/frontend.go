// Package frontend lowers Go packages into the instrumentation IR.
//
// Packages are loaded with golang.org/x/tools/go/packages, built into SSA
// form, and every function belonging to the main module is translated into
// an ir.Function. The resulting module can be instrumented and statically
// summarized like any hand-written program, which lets the tool report the
// bytes and flops a Go kernel would move without running it.
//
// Lowering is approximate by construction: the IR only models the
// operations that matter for counting (loads, stores, arithmetic, calls
// and branches). Everything else becomes an opaque "other" instruction
// with the right result type.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/kolkov/bytesflops/internal/ir"
)

// ErrNoPackages is returned when the patterns match nothing.
var ErrNoPackages = errors.New("no packages matched")

// LoadMode is the package information the SSA builder needs.
const LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
	packages.NeedTypesSizes | packages.NeedSyntax | packages.NeedTypesInfo

// Config controls package loading.
type Config struct {
	// Dir is the directory patterns are resolved in. Empty means the
	// current directory.
	Dir string

	// Tests includes test packages.
	Tests bool

	// AllModules lowers functions from every loaded package instead of
	// only the main module.
	AllModules bool

	Logger zerolog.Logger
}

// Load loads the packages matching patterns and lowers their functions
// into a fresh ir.Module named after the main module.
//
// Parameters:
//   - ctx: Cancels package loading and lowering
//   - cfg: Loading configuration
//   - patterns: go list patterns, e.g. "./..."
//
// Returns:
//   - Lowered module, functions sorted by name
//   - Error if loading fails or a package has errors
func Load(ctx context.Context, cfg Config, patterns ...string) (*ir.Module, error) {
	log := cfg.Logger
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	initial, err := packages.Load(&packages.Config{
		Context: ctx,
		Mode:    LoadMode,
		Dir:     cfg.Dir,
		Tests:   cfg.Tests,
	}, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(initial) == 0 {
		return nil, ErrNoPackages
	}
	if err := packageErrors(initial); err != nil {
		return nil, err
	}

	prog, pkgs := ssautil.Packages(initial, ssa.InstantiateGenerics)
	prog.Build()

	modPath := ""
	if !cfg.AllModules {
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		if modPath, err = MainModulePath(dir); err != nil {
			log.Debug().Err(err).Msg("no main module, restricting to matched packages")
		}
	}
	keep := packageFilter(cfg.AllModules, modPath, pkgs)
	funcs := selectFunctions(prog, keep)

	name := modPath
	if name == "" {
		name = initial[0].PkgPath
	}
	mod, err := lowerAll(ctx, name, funcs)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("module", name).
		Int("packages", len(initial)).
		Int("functions", len(mod.Funcs)).
		Msg("packages lowered")
	return mod, nil
}

func packageErrors(pkgs []*packages.Package) error {
	var result *multierror.Error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			result = multierror.Append(result, e)
		}
	})
	return result.ErrorOrNil()
}

// packageFilter decides which SSA packages contribute functions.
func packageFilter(all bool, modPath string, initial []*ssa.Package) func(*ssa.Package) bool {
	if all {
		return func(*ssa.Package) bool { return true }
	}
	if modPath != "" {
		return func(p *ssa.Package) bool {
			path := p.Pkg.Path()
			return path == modPath || strings.HasPrefix(path, modPath+"/")
		}
	}
	matched := make(map[*ssa.Package]bool, len(initial))
	for _, p := range initial {
		if p != nil {
			matched[p] = true
		}
	}
	return func(p *ssa.Package) bool { return matched[p] }
}

// selectFunctions returns every function with a body whose package passes
// keep, sorted by name. Compiler-synthesized wrappers are skipped, but
// generic instantiations are kept.
func selectFunctions(prog *ssa.Program, keep func(*ssa.Package) bool) []*ssa.Function {
	var funcs []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if len(fn.Blocks) == 0 {
			continue
		}
		if fn.Synthetic != "" && fn.Origin() == nil {
			continue
		}
		pkg := fn.Pkg
		if pkg == nil && fn.Origin() != nil {
			pkg = fn.Origin().Pkg
		}
		if pkg == nil || !keep(pkg) {
			continue
		}
		funcs = append(funcs, fn)
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].String() < funcs[j].String() })
	return funcs
}

// lowerAll declares every function up front, then lowers bodies in
// parallel. Distinct functions never share IR state.
func lowerAll(ctx context.Context, name string, funcs []*ssa.Function) (*ir.Module, error) {
	mod := ir.NewModule(name)
	targets := make([]*ir.Function, 0, len(funcs))
	sources := make([]*ssa.Function, 0, len(funcs))
	for _, fn := range funcs {
		result, params := signature(fn)
		f, err := mod.AddFunction(fn.String(), result, params...)
		if err != nil {
			// Two SSA functions printing alike; keep the first.
			continue
		}
		targets = append(targets, f)
		sources = append(sources, fn)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range targets {
		src, dst := sources[i], targets[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			newLowerer(src, dst).lower()
			return dst.Verify()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("lowering failed: %w", err)
	}
	return mod, nil
}

package instrument

import (
	"strings"

	"github.com/kolkov/bytesflops/internal/bf/abi"
)

// ParseFunctionNames rebuilds function names from comma-split tokens.
//
// Option parsers split list values on commas, which also breaks names
// whose signatures contain commas, such as "foo(int, double)" or a Go
// generic instantiation "Map[K, V]". Tokens are rejoined with a comma
// while parentheses or brackets are still open. Raw entries that contain
// commas themselves are split first, so a single "a,b(x, y)" entry yields
// "a" and "b(x, y)".
//
// Example:
//
//	ParseFunctionNames([]string{"foo(int", " double)", "bar"})
//	// → ["foo(int, double)", "bar"]
func ParseFunctionNames(raw []string) []string {
	var tokens []string
	for _, r := range raw {
		tokens = append(tokens, strings.Split(r, ",")...)
	}

	var names []string
	var cur strings.Builder
	depth := 0
	pending := false
	for _, tok := range tokens {
		if pending {
			cur.WriteByte(',')
		}
		cur.WriteString(tok)
		pending = true
		for _, c := range tok {
			switch c {
			case '(', '[':
				depth++
			case ')', ']':
				if depth > 0 {
					depth--
				}
			}
		}
		if depth == 0 {
			if name := strings.TrimSpace(cur.String()); name != "" {
				names = append(names, name)
			}
			cur.Reset()
			pending = false
		}
	}
	// An unbalanced tail is still a name.
	if name := strings.TrimSpace(cur.String()); name != "" {
		names = append(names, name)
	}
	return names
}

// Selector decides which functions are instrumented.
//
// Rule: a non-empty include set instruments only the listed functions;
// otherwise a non-empty exclude set instruments everything else;
// otherwise every function is instrumented. Runtime hooks (names with
// the bf_ prefix) are never instrumented.
//
// Thread Safety: Immutable after construction, safe for concurrent use.
type Selector struct {
	include map[string]bool
	exclude map[string]bool
}

// NewSelector builds a selector from raw include and exclude tokens.
// Both lists non-empty is ErrConflictingFilters.
func NewSelector(include, exclude []string) (*Selector, error) {
	inc := ParseFunctionNames(include)
	exc := ParseFunctionNames(exclude)
	if len(inc) > 0 && len(exc) > 0 {
		return nil, ErrConflictingFilters
	}
	s := &Selector{
		include: make(map[string]bool, len(inc)),
		exclude: make(map[string]bool, len(exc)),
	}
	for _, n := range inc {
		s.include[n] = true
	}
	for _, n := range exc {
		s.exclude[n] = true
	}
	return s, nil
}

// Selectable reports whether the function called name is instrumented.
func (s *Selector) Selectable(name string) bool {
	if strings.HasPrefix(name, abi.HookPrefix) {
		return false
	}
	if len(s.include) > 0 {
		return s.include[name]
	}
	return !s.exclude[name]
}

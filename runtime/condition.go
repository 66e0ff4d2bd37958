package runtime

import (
	"fmt"
	"net/http"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Guard expressions let a middleware module narrow when it fires beyond
// route matching, e.g.
//
//	var Condition = `method == "POST" && header("Content-Type") == "application/json"`
//
// Expressions compile once at load time; a compile error excludes the
// module like any other load error.
type conditionGuard struct {
	source  string
	program *vm.Program
}

func compileCondition(source string) (*conditionGuard, error) {
	program, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling condition %q: %w", source, err)
	}
	return &conditionGuard{source: source, program: program}, nil
}

// allows evaluates the guard for a request. A nil guard allows everything;
// an evaluation error counts as no match.
func (g *conditionGuard) allows(r *http.Request) bool {
	if g == nil {
		return true
	}
	out, err := expr.Run(g.program, conditionEnv(r))
	if err != nil {
		return false
	}
	allowed, ok := out.(bool)
	return ok && allowed
}

func conditionEnv(r *http.Request) map[string]any {
	return map[string]any{
		"path":   r.URL.Path,
		"method": r.Method,
		"host":   r.Host,
		"query":  r.URL.RawQuery,
		"header": func(name string) string {
			return r.Header.Get(name)
		},
	}
}

// Package codecheck statically screens untrusted Python source before it is
// ever executed. It closes the obvious escape hatches (filesystem, network,
// process control, reflective execution) but is advisory: it is not a
// security boundary against obfuscated or side-channel attacks.
package codecheck

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"
)

// MaxSourceLen is the hard ceiling on submitted source length, in characters.
const MaxSourceLen = 50000

// Rejection describes why a source program was refused. Syntax is set when
// the source failed to parse at all, which callers report as a compilation
// failure rather than a policy violation.
type Rejection struct {
	Reason string
	Syntax bool
}

func (r *Rejection) Error() string { return r.Reason }

// AsRejection unwraps err into a *Rejection when possible.
func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

// deniedModules are modules whose import, or attribute access rooted at the
// module name, is refused: OS access, process spawning, networking, HTTP
// clients, reflective loading, native interop, concurrency and
// deserialization.
var deniedModules = map[string]struct{}{
	"os": {}, "sys": {}, "subprocess": {}, "socket": {}, "urllib": {},
	"requests": {}, "open": {}, "file": {}, "eval": {}, "exec": {},
	"compile": {}, "importlib": {}, "imp": {}, "pkgutil": {},
	"__import__": {}, "ctypes": {}, "multiprocessing": {}, "threading": {},
	"pickle": {}, "marshal": {},
}

// deniedCalls are capability-granting built-ins that must not be called
// directly. input() stays allowed: stdin is injected by the executor.
var deniedCalls = map[string]struct{}{
	"open": {}, "file": {}, "eval": {}, "exec": {}, "compile": {},
	"__import__": {}, "execfile": {}, "reload": {}, "exit": {}, "quit": {},
	"raw_input": {}, "help": {}, "license": {}, "credits": {},
}

// callPatterns is the cheap regex pre-pass over deny-listed built-in call
// names. Regex alone misses aliased or nested references, so the AST walk
// below remains the authoritative check.
var callPatterns = buildCallPatterns()

func buildCallPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(deniedCalls))
	for name := range deniedCalls {
		patterns[name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`)
	}
	return patterns
}

// Validate screens Python source and returns a *Rejection when the program
// must not run. A nil return means the source passed every static check.
func Validate(source string) error {
	if utf8.RuneCountInString(source) > MaxSourceLen {
		return &Rejection{Reason: fmt.Sprintf("source exceeds %d characters", MaxSourceLen)}
	}
	if strings.TrimSpace(source) == "" {
		return &Rejection{Reason: "source must not be empty"}
	}

	for name, pattern := range callPatterns {
		if pattern.MatchString(source) {
			return &Rejection{Reason: fmt.Sprintf("use of function %s is not allowed", name)}
		}
	}

	tree, err := parser.ParseString(source, "exec")
	if err != nil {
		return &Rejection{Reason: fmt.Sprintf("syntax error: %v", err), Syntax: true}
	}

	var rejection *Rejection
	ast.Walk(tree, func(node ast.Ast) bool {
		if rejection != nil {
			return false
		}

		switch n := node.(type) {
		case *ast.Import:
			for _, alias := range n.Names {
				module := rootModule(string(alias.Name))
				if _, denied := deniedModules[module]; denied {
					rejection = &Rejection{Reason: fmt.Sprintf("import of module %s is not allowed", module)}
					return false
				}
			}
		case *ast.ImportFrom:
			module := rootModule(string(n.Module))
			if _, denied := deniedModules[module]; denied {
				rejection = &Rejection{Reason: fmt.Sprintf("import of module %s is not allowed", module)}
				return false
			}
		case *ast.Call:
			switch fn := n.Func.(type) {
			case *ast.Name:
				if _, denied := deniedCalls[string(fn.Id)]; denied {
					rejection = &Rejection{Reason: fmt.Sprintf("call to function %s is not allowed", fn.Id)}
					return false
				}
			case *ast.Attribute:
				if name, ok := fn.Value.(*ast.Name); ok {
					if _, denied := deniedModules[string(name.Id)]; denied {
						rejection = &Rejection{Reason: fmt.Sprintf("use of module %s is not allowed", name.Id)}
						return false
					}
				}
			}
		}
		return true
	})

	if rejection != nil {
		return rejection
	}
	return nil
}

func rootModule(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return name
}

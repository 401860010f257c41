package env

import (
	"maps"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/fetchforge/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// HasPlaceholders reports whether s contains at least one {{...}} placeholder.
func HasPlaceholders(s string) bool {
	return variablePattern.MatchString(s)
}

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver interpolates {{...}} placeholders. A placeholder names a request
// argument or stored variable, an environment variable ($NAME) or a builtin
// function call. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// Funcs returns the function registry used for {{name(args)}} placeholders.
func (r *Resolver) Funcs() *builtin.Registry {
	return r.funcs
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps.Copy(r.variables, vars)
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// Resolve interpolates input using the stored variables only.
func (r *Resolver) Resolve(input string) string {
	return r.ResolveWith(input, nil)
}

// ResolveWith interpolates input. Entries of args shadow stored variables of
// the same name. Unresolved placeholders are left as they are.
func (r *Resolver) ResolveWith(input string, args map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.lookup(expr, args); ok {
			return val
		}
		return match
	})
}

func (r *Resolver) lookup(expr string, args map[string]string) (string, bool) {
	if envVar, ok := strings.CutPrefix(expr, "$"); ok {
		if val := os.Getenv(envVar); val != "" {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", envVar)
		return "", false
	}

	if builtin.IsCall(expr) {
		result, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("unresolved function call %s: %v", expr, err)
			return "", false
		}
		return result, true
	}

	if val, ok := args[expr]; ok {
		return val, true
	}
	if val, ok := r.GetVariable(expr); ok {
		return val, true
	}

	r.warn("unresolved variable: %s", expr)
	return "", false
}

// UnresolvedVariables lists the variable placeholders of input that neither
// args nor the stored variables define, in order of appearance. Environment
// and function placeholders are not reported.
func (r *Resolver) UnresolvedVariables(input string, args map[string]string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) {
			continue
		}
		if _, ok := args[expr]; ok {
			continue
		}
		if _, ok := r.GetVariable(expr); ok {
			continue
		}
		missing = append(missing, expr)
	}
	return missing
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.funcs = r.funcs
	clone.warnFunc = r.warnFunc
	maps.Copy(clone.variables, r.variables)
	return clone
}

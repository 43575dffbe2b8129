// Package expand resolves ${NAME} and $NAME placeholders in job settings against the
// build environment and a set of computed macros.
package expand

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// ErrUndefined is returned by strict expansion when a placeholder has no value.
var ErrUndefined = errors.New("undefined variable")

// Expander expands placeholders in a template.
type Expander interface {
	Expand(template string) (string, error)
}

// MacroFunc computes a value at expansion time.
type MacroFunc func() string

// Vars is an Expander backed by environment variables and macros. Macros take
// precedence over variables of the same name.
type Vars struct {
	vars   map[string]string
	macros map[string]MacroFunc
}

// NewVars returns Vars holding a copy of vars.
func NewVars(vars map[string]string) *Vars {
	v := &Vars{vars: make(map[string]string, len(vars)), macros: map[string]MacroFunc{}}
	maps.Copy(v.vars, vars)
	return v
}

// FromEnviron builds Vars from KEY=VALUE pairs as returned by os.Environ.
func FromEnviron(environ []string) *Vars {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = val
	}
	return NewVars(vars)
}

// FromProcess builds Vars from the current process environment.
func FromProcess() *Vars {
	return FromEnviron(os.Environ())
}

// Set adds or replaces a variable.
func (v *Vars) Set(name, value string) *Vars {
	v.vars[name] = value
	return v
}

// WithMacro registers a computed variable.
func (v *Vars) WithMacro(name string, fn MacroFunc) *Vars {
	v.macros[name] = fn
	return v
}

// Lookup returns the value of name.
func (v *Vars) Lookup(name string) (string, bool) {
	if fn, ok := v.macros[name]; ok {
		return fn(), true
	}
	val, ok := v.vars[name]
	return val, ok
}

// Environ returns the plain variables as sorted KEY=VALUE pairs, suitable for
// a subprocess environment. Macros are not included.
func (v *Vars) Environ() []string {
	keys := slices.Sorted(maps.Keys(v.vars))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+v.vars[k])
	}
	return out
}

// Expand replaces every placeholder and fails with ErrUndefined on the first
// unknown name.
func (v *Vars) Expand(template string) (string, error) {
	var missing []string
	out := expand(template, func(name string) (string, bool) {
		val, ok := v.Lookup(name)
		if !ok {
			missing = append(missing, name)
		}
		return val, ok
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUndefined, strings.Join(missing, ", "))
	}
	return out, nil
}

// ExpandLenient replaces known placeholders and leaves unknown ones verbatim.
func (v *Vars) ExpandLenient(template string) string {
	return expand(template, v.Lookup)
}

// Lenient expands template with e and returns template unchanged on error.
func Lenient(e Expander, template string) string {
	if vars, ok := e.(*Vars); ok {
		return vars.ExpandLenient(template)
	}
	out, err := e.Expand(template)
	if err != nil {
		return template
	}
	return out
}

// expand walks s once. Unknown names are written back in their original form.
// "$$" produces a literal dollar sign.
func expand(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch next := s[i+1]; {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			name := s[i+2 : i+2+end]
			if val, ok := lookup(name); ok && name != "" {
				b.WriteString(val)
			} else {
				b.WriteString(s[i : i+3+end])
			}
			i += 2 + end
		case isNameStart(next):
			j := i + 1
			for j < len(s) && isNameChar(s[j]) {
				j++
			}
			name := s[i+1 : j]
			if val, ok := lookup(name); ok {
				b.WriteString(val)
			} else {
				b.WriteString(s[i:j])
			}
			i = j - 1
		default:
			b.WriteByte('$')
		}
	}
	return b.String()
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

package env

import (
	"os"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives unresolved placeholder names
type WarnFunc func(name string)

type Expander struct {
	vars map[string]string
	warn WarnFunc
}

// NewExpander resolves placeholders against vars, then the process
// environment. vars may be nil.
func NewExpander(vars map[string]string) *Expander {
	return &Expander{vars: vars}
}

// OnMissing registers fn to be told about unresolved placeholders
func (e *Expander) OnMissing(fn WarnFunc) *Expander {
	e.warn = fn
	return e
}

func (e *Expander) Expand(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return placeholder.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := e.lookup(name); ok {
			return v
		}
		if e.warn != nil {
			e.warn(name)
		}
		return match
	})
}

// ExpandAll returns a copy of values with every value expanded
func (e *Expander) ExpandAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = e.Expand(v)
	}
	return out
}

func (e *Expander) lookup(name string) (string, bool) {
	if envName, ok := strings.CutPrefix(name, "$"); ok {
		return os.LookupEnv(envName)
	}
	if v, ok := e.vars[name]; ok {
		return v, true
	}
	return os.LookupEnv(name)
}

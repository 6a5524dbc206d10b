package args

import (
	"strings"

	"jobqueue/internal/config"
)

// Registry is the table of worker flags recognized when deriving a step's
// args from a larger command line. It is immutable once built.
type Registry struct {
	values   map[string]struct{}
	switches map[string]struct{}
	outputs  []string
}

// NewRegistry builds a registry from value-taking flags and standalone switches.
// A name listed in both is treated as a value flag.
func NewRegistry(valueFlags, switchFlags []string) *Registry {
	r := &Registry{
		values:   make(map[string]struct{}, len(valueFlags)),
		switches: make(map[string]struct{}, len(switchFlags)),
	}
	for _, flag := range valueFlags {
		if flag = strings.TrimSpace(flag); flag != "" {
			r.values[flag] = struct{}{}
		}
	}
	for _, flag := range switchFlags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}
		if _, isValue := r.values[flag]; isValue {
			continue
		}
		r.switches[flag] = struct{}{}
	}
	return r
}

// FromConfig builds the registry described by the [args] section.
func FromConfig(cfg *config.Config) *Registry {
	r := NewRegistry(cfg.Args.ValueFlags, cfg.Args.SwitchFlags)
	for _, flag := range cfg.Args.OutputFlags {
		if r.TakesValue(flag) {
			r.outputs = append(r.outputs, flag)
		}
	}
	return r
}

// WithOutputFlags returns a copy of r that reads the output path from names.
func (r *Registry) WithOutputFlags(names ...string) *Registry {
	cp := &Registry{values: r.values, switches: r.switches}
	for _, name := range names {
		if r.TakesValue(name) {
			cp.outputs = append(cp.outputs, name)
		}
	}
	return cp
}

// TakesValue reports whether name consumes the following token.
func (r *Registry) TakesValue(name string) bool {
	_, ok := r.values[name]
	return ok
}

// IsSwitch reports whether name is a recognized standalone flag.
func (r *Registry) IsSwitch(name string) bool {
	_, ok := r.switches[name]
	return ok
}

// Filter keeps recognized flags, plus the value following each value-taking
// flag, in their original order. Inline "--flag=value" tokens are kept whole.
// A value flag at the end of tokens has no value and is dropped.
func (r *Registry) Filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if name, _, inline := strings.Cut(token, "="); inline && strings.HasPrefix(name, "-") {
			if r.TakesValue(name) {
				out = append(out, token)
			}
			continue
		}
		switch {
		case r.TakesValue(token):
			if i+1 < len(tokens) {
				out = append(out, token, tokens[i+1])
				i++
			}
		case r.IsSwitch(token):
			out = append(out, token)
		}
	}
	return out
}

// Value returns the value of the last occurrence of any of names in args.
func (r *Registry) Value(args []string, names ...string) (string, bool) {
	var (
		value string
		found bool
	)
	for i := 0; i < len(args); i++ {
		token := args[i]
		if name, inlineValue, inline := strings.Cut(token, "="); inline && containsName(names, name) {
			value, found = inlineValue, true
			continue
		}
		if containsName(names, token) && r.TakesValue(token) && i+1 < len(args) {
			value, found = args[i+1], true
			i++
		}
	}
	return value, found
}

// OutputPath returns the value of the configured output flag, if present.
func (r *Registry) OutputPath(args []string) (string, bool) {
	if len(r.outputs) == 0 {
		return "", false
	}
	return r.Value(args, r.outputs...)
}

func containsName(names []string, candidate string) bool {
	for _, name := range names {
		if name == candidate {
			return true
		}
	}
	return false
}

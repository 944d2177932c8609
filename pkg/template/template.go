// Package template resolves {{name}} placeholders inside action parameters.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

// TriggerPrefix addresses trigger data explicitly: {{trigger.email}}.
const TriggerPrefix = "trigger."

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// Placeholders returns every placeholder name referenced in v, in first-seen order.
// Map keys are walked in sorted order so the result is stable.
func Placeholders(v any) []string {
	seen := map[string]bool{}

	var names []string

	walk(v, func(s string) {
		for _, match := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				names = append(names, match[1])
			}
		}
	})

	return names
}

// IsTriggerReference reports whether name reads trigger data explicitly.
func IsTriggerReference(name string) bool {
	return strings.HasPrefix(name, TriggerPrefix)
}

// Resolver looks placeholders up in workflow variables first, then in trigger data.
type Resolver struct {
	Variables   map[string]any
	TriggerData map[string]any
}

// Lookup returns the value bound to a placeholder name.
func (r Resolver) Lookup(name string) (any, bool) {
	if IsTriggerReference(name) {
		return models.Lookup(r.TriggerData, strings.TrimPrefix(name, TriggerPrefix))
	}

	if value, ok := r.Variables[name]; ok && value != nil {
		return value, true
	}

	return models.Lookup(r.TriggerData, name)
}

// Resolve returns a copy of v with every placeholder substituted. A string made of a
// single placeholder takes the raw bound value; placeholders inside longer strings are
// formatted. Unbound placeholders are left untouched and reported.
func (r Resolver) Resolve(v any) (any, []string) {
	var unresolved []string

	seen := map[string]bool{}
	miss := func(name string) {
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
	}

	return r.resolve(v, miss), unresolved
}

// ResolveMap is Resolve for a parameter map.
func (r Resolver) ResolveMap(params map[string]any) (map[string]any, []string) {
	resolved, unresolved := r.Resolve(params)

	out, _ := resolved.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}

	return out, unresolved
}

func (r Resolver) resolve(v any, miss func(string)) any {
	switch typed := v.(type) {
	case string:
		return r.resolveString(typed, miss)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for _, key := range sortedKeys(typed) {
			out[key] = r.resolve(typed[key], miss)
		}

		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = r.resolve(item, miss)
		}

		return out
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = r.resolveString(item, miss)
		}

		return out
	default:
		return v
	}
}

func (r Resolver) resolveString(s string, miss func(string)) any {
	if match := placeholderPattern.FindStringSubmatchIndex(s); match != nil && match[0] == 0 && match[1] == len(s) {
		name := s[match[2]:match[3]]
		if value, ok := r.Lookup(name); ok {
			return value
		}

		miss(name)

		return s
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]

		value, ok := r.Lookup(name)
		if !ok {
			miss(name)
			return token
		}

		return fmt.Sprint(value)
	})
}

func walk(v any, visit func(string)) {
	switch typed := v.(type) {
	case string:
		visit(typed)
	case map[string]any:
		for _, key := range sortedKeys(typed) {
			walk(typed[key], visit)
		}
	case []any:
		for _, item := range typed {
			walk(item, visit)
		}
	case []string:
		for _, item := range typed {
			visit(item)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

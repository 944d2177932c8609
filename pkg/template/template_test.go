package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	params := map[string]any{
		"subject": "Hi {{client_name}}, welcome to {{ company }}",
		"body":    []any{"{{client_name}}", map[string]any{"cta": "{{trigger.url}}"}},
		"count":   3,
	}

	assert.Equal(t, []string{"client_name", "trigger.url", "company"}, Placeholders(params))
	assert.Empty(t, Placeholders(map[string]any{"plain": "no placeholders {here}"}))
}

func TestResolver_InterpolatesStrings(t *testing.T) {
	resolver := Resolver{
		Variables:   map[string]any{"client_name": "Acme"},
		TriggerData: map[string]any{"client_name": "Ignored", "email": "jane@acme.io"},
	}

	resolved, unresolved := resolver.ResolveMap(map[string]any{
		"subject": "Hi {{client_name}}",
		"to":      "{{ email }}",
	})

	assert.Equal(t, "Hi Acme", resolved["subject"])
	assert.Equal(t, "jane@acme.io", resolved["to"])
	assert.Empty(t, unresolved)
}

func TestResolver_WholePlaceholderKeepsType(t *testing.T) {
	resolver := Resolver{
		Variables:   map[string]any{"threshold": 80},
		TriggerData: map[string]any{"lead": map[string]any{"tags": []any{"vip"}}},
	}

	resolved, _ := resolver.ResolveMap(map[string]any{
		"threshold": "{{threshold}}",
		"tags":      "{{trigger.lead.tags}}",
		"label":     "score>{{threshold}}",
	})

	assert.Equal(t, 80, resolved["threshold"])
	assert.Equal(t, []any{"vip"}, resolved["tags"])
	assert.Equal(t, "score>80", resolved["label"])
}

func TestResolver_FallsBackToTriggerData(t *testing.T) {
	resolver := Resolver{
		Variables:   map[string]any{"owner": nil},
		TriggerData: map[string]any{"owner": "sales@acme.io"},
	}

	value, ok := resolver.Lookup("owner")
	assert.True(t, ok)
	assert.Equal(t, "sales@acme.io", value)
}

func TestResolver_ReportsUnresolved(t *testing.T) {
	resolver := Resolver{}

	resolved, unresolved := resolver.ResolveMap(map[string]any{
		"a": "{{missing}}",
		"b": "x {{missing}} {{other}}",
	})

	assert.Equal(t, "{{missing}}", resolved["a"])
	assert.Equal(t, "x {{missing}} {{other}}", resolved["b"])
	assert.Equal(t, []string{"missing", "other"}, unresolved)
}

func TestResolver_DoesNotMutateInput(t *testing.T) {
	params := map[string]any{"nested": map[string]any{"v": "{{name}}"}}
	resolver := Resolver{Variables: map[string]any{"name": "Acme"}}

	resolved, _ := resolver.ResolveMap(params)

	assert.Equal(t, "Acme", resolved["nested"].(map[string]any)["v"])
	assert.Equal(t, "{{name}}", params["nested"].(map[string]any)["v"])
}

package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpander_Expand(t *testing.T) {
	t.Setenv("HITQUERY_HOST", "env.example.com")
	t.Setenv("HITQUERY_SHADOWED", "from-env")

	e := NewExpander(map[string]string{
		"token":             "abc",
		"HITQUERY_SHADOWED": "from-file",
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no placeholders", input: "plain", want: "plain"},
		{name: "loaded variable", input: "Bearer {{token}}", want: "Bearer abc"},
		{name: "spaces inside braces", input: "{{ token }}", want: "abc"},
		{name: "falls back to environment", input: "https://{{HITQUERY_HOST}}/v1", want: "https://env.example.com/v1"},
		{name: "loaded variable wins", input: "{{HITQUERY_SHADOWED}}", want: "from-file"},
		{name: "dollar forces environment", input: "{{$HITQUERY_SHADOWED}}", want: "from-env"},
		{name: "unresolved kept", input: "{{missing}}", want: "{{missing}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Expand(tt.input))
		})
	}
}

func TestExpander_OnMissing(t *testing.T) {
	var missing []string
	e := NewExpander(nil).OnMissing(func(name string) { missing = append(missing, name) })

	e.Expand("{{a}}-{{$HITQUERY_DOES_NOT_EXIST}}")

	assert.Equal(t, []string{"a", "$HITQUERY_DOES_NOT_EXIST"}, missing)
}

func TestExpander_ExpandAll(t *testing.T) {
	e := NewExpander(map[string]string{"team": "core"})

	in := map[string]string{"X-Team": "{{team}}"}
	out := e.ExpandAll(in)

	assert.Equal(t, map[string]string{"X-Team": "core"}, out)
	assert.Equal(t, "{{team}}", in["X-Team"])
	assert.Nil(t, e.ExpandAll(nil))
}

package hcl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func TestRender_RoundTrip(t *testing.T) {
	// --- Arrange ---
	rec := config.Struct{
		Kind:     "library",
		Name:     "core",
		Abstract: true,
		Extends:  &config.Ref{Address: ":base"},
		Merges: []config.Ref{
			{Address: ":m1"},
			{Inline: &config.Struct{Kind: "target", Fields: map[string]cty.Value{"lang": cty.StringVal("go")}}},
		},
		Dependencies: []string{":dep"},
		Fields: map[string]cty.Value{
			"sources": strs("a.go", "b.go"),
			"count":   cty.NumberIntVal(2),
			"options": config.StructVal(&config.Struct{Fields: map[string]cty.Value{"race": cty.True}}),
		},
	}

	// --- Act ---
	out := Render(rec)
	records, err := NewParser().Parse("rendered", out, nil)

	// --- Assert ---
	require.NoError(t, err, string(out))
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, "library", got.Kind)
	assert.Equal(t, "core", got.Name)
	assert.True(t, got.Abstract)
	assert.Equal(t, ":base", got.Extends.Address)
	require.Len(t, got.Merges, 2)
	assert.Equal(t, ":m1", got.Merges[0].Address)
	assert.Equal(t, "go", got.Merges[1].Inline.Fields["lang"].AsString())
	assert.Equal(t, "target", got.Merges[1].Inline.Kind)
	assert.Equal(t, []string{":dep"}, got.Dependencies)
	assert.True(t, strs("a.go", "b.go").RawEquals(got.Fields["sources"]))
	assert.True(t, cty.NumberIntVal(2).RawEquals(got.Fields["count"]))

	options, ok := config.AsStruct(got.Fields["options"])
	require.True(t, ok)
	assert.True(t, options.Fields["race"].True())
}

func TestRender_HydratedRecord(t *testing.T) {
	rec := config.Struct{
		Kind: "target",
		Name: "app",
		Fields: map[string]cty.Value{
			"options": cty.ObjectVal(map[string]cty.Value{"race": cty.False}),
		},
	}

	out := string(Render(rec))

	assert.Contains(t, out, `target "app" {`)
	assert.Contains(t, out, "race = false")
}

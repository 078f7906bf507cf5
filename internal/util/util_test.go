package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	Location string `json:"location" jsonschema:"description=City name"`
	Unit     string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(weatherArgs{})
	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "location")
	assert.Contains(t, props, "unit")
	assert.Equal(t, "City name", props["location"].(map[string]any)["description"])
	assert.Equal(t, []any{"location"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(weatherArgs{})

	assert.NoError(t, ValidateParameters(map[string]any{"location": "Paris", "unit": "celsius"}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "location")

	err = ValidateParameters(map[string]any{"location": 3}, schema)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "location", ve.Field)

	err = ValidateParameters(map[string]any{"location": "Paris", "unit": "kelvin"}, schema)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unit", ve.Field)

	assert.NoError(t, ValidateParameters(map[string]any{"anything": true}, nil))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("https://api.example.com/v1/{{ .city | urlquery }}?units={{ default \"metric\" .units }}", map[string]any{"city": "New York"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1/New+York?units=metric", out)

	plain, err := RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", plain)

	_, err = RenderTemplate("{{ .broken", nil)
	assert.Error(t, err)
}

func TestRenderTemplate_MissingKeys(t *testing.T) {
	args := map[string]any{
		"note":   "<no value>",
		"filter": map[string]any{"name": "x"},
		"empty":  nil,
	}
	out, err := RenderTemplate("{{.note}}|{{.absent}}|{{.filter.name}}/{{.filter.sku}}|{{.deep.a.b}}|{{.empty}}", args)
	require.NoError(t, err)
	assert.Equal(t, "<no value>||x/||", out)

	// the caller's arguments are left untouched
	assert.NotContains(t, args, "absent")
	assert.NotContains(t, args, "deep")
	assert.Equal(t, map[string]any{"name": "x"}, args["filter"])
	assert.Nil(t, args["empty"])

	cond, err := RenderTemplate(`{{if .flag}}on{{else}}off{{end}} {{ .q | upper }}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "off ", cond)
}

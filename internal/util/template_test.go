package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.Name}} <{{upper .Role}}> {{default \"none\" .Missing}}", map[string]any{
		"Name": "a&b",
		"Role": "critic",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello a&b <CRITIC> none", out)
}

func TestRenderTemplate_NoMarkers(t *testing.T) {
	out, err := RenderTemplate(`{"findings":[]}`, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"findings":[]}`, out)
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{.Name", nil)
	assert.Error(t, err)
}

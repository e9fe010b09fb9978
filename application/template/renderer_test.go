package template_test

import (
	"testing"

	"github.com/reglet-dev/reglet-broker/application/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoTemplateEngine_Render(t *testing.T) {
	engine := template.NewGoTemplateEngine()

	t.Run("Successful Resolution", func(t *testing.T) {
		out, err := engine.Render([]byte(`The site at {{.origin}} asks`), map[string]interface{}{
			"origin": "https://dapp.example",
		})
		require.NoError(t, err)
		assert.Equal(t, "The site at https://dapp.example asks", string(out))
	})

	t.Run("Missing Key Fails", func(t *testing.T) {
		_, err := engine.Render([]byte(`{{.missing}}`), map[string]interface{}{"origin": "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "map has no entry for key")
	})

	t.Run("Missing Key Lenient", func(t *testing.T) {
		lenient := template.NewGoTemplateEngine(template.WithStrict(false))
		out, err := lenient.Render([]byte(`[{{.missing}}]`), map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, "[<no value>]", string(out))
	})

	t.Run("Invalid Template Syntax", func(t *testing.T) {
		_, err := engine.Render([]byte(`{{.origin`), map[string]interface{}{"origin": "x"})
		require.Error(t, err)
	})
}

func TestCopywriter_Text(t *testing.T) {
	c := template.NewCopywriter(nil, nil)

	intro, err := c.Text(template.RequestIntro, map[string]interface{}{
		"origin": "https://dapp.example",
		"type":   "Asset",
	})
	require.NoError(t, err)
	assert.Equal(t, "The site at https://dapp.example requests access to **Asset**", intro)

	_, err = c.Text("no.such.key", nil)
	assert.Error(t, err)
}

func TestCopywriter_Overrides(t *testing.T) {
	messages := template.DefaultMessages().Merge(map[string]string{
		template.InventoryHeading: "Pick one, {{.user}}",
	})
	c := template.NewCopywriter(nil, messages)

	out, err := c.Text(template.InventoryHeading, map[string]interface{}{"user": "ana"})
	require.NoError(t, err)
	assert.Equal(t, "Pick one, ana", out)

	// defaults are untouched
	assert.Equal(t, "Your Inventory", template.DefaultMessages()[template.InventoryHeading])
}

func TestCopywriter_Check(t *testing.T) {
	full := map[string]interface{}{
		"origin": "o", "type": "t", "input": "9", "attempt": 1, "max": 2, "name": "n",
	}
	require.NoError(t, template.NewCopywriter(nil, nil).Check(full))

	broken := template.DefaultMessages().Merge(map[string]string{template.RequestHeading: "{{.nope}}"})
	assert.Error(t, template.NewCopywriter(nil, broken).Check(full))
}

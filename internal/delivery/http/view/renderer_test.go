package view

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"beershop/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_EscapesBeerPage(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.Render(&buf, PageBeer, BeerPage{
		Beer:      entity.Beer{ID: uuid.New(), Name: `<img src=x onerror=alert(1)>`, Price: 4.5, Currency: entity.CurrencyEUR},
		Message:   r.Message(`<b>hi</b>`, "..."),
		CSRFToken: `"><script>`,
	}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "<img src=x")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "4.50 EUR")
}

func TestRenderer_UnknownPage(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)
	assert.Error(t, r.Render(&bytes.Buffer{}, "admin.html", nil, nil))
}

func TestRenderer_Message(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	assert.Equal(t, "fallback", r.Message("", "fallback"))
	assert.Equal(t, "fallback", r.Message("<script></script>", "fallback"))
	assert.Equal(t, "Hello", r.Message("<script>x</script>Hello", "fallback"))
	assert.Len(t, []rune(r.Message(string(bytes.Repeat([]byte("a"), 500)), "")), maxMessageLen)
}

func TestRenderer_TemplatesDirOverride(t *testing.T) {
	dir := t.TempDir()
	entries, err := embedded.ReadDir("templates")
	require.NoError(t, err)
	for _, e := range entries {
		data, err := embedded.ReadFile("templates/" + e.Name())
		require.NoError(t, err)
		if e.Name() == PageLogin {
			data = []byte(`{{define "content"}}custom {{.Message}}{{end}}`)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), data, 0o600))
	}

	r, err := NewRenderer(dir)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, PageLogin, FormPage{Message: "m"}, nil))
	assert.Contains(t, buf.String(), "custom m")

	_, err = NewRenderer(t.TempDir())
	assert.Error(t, err)
}

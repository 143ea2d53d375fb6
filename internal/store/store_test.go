package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleResult() *model.ExtractionResult {
	size := geom.Size{Width: 595.28, Height: 841.89}
	box := geom.NewBox(72, 72, 200, 86)
	el := model.NewElement(1, box, size, 1, &model.TextSpan{Text: "Hello World", FontSize: 12, Source: "native"})
	el.ID = model.StableID(1, model.ElementText, 0, box)
	return &model.ExtractionResult{
		Extracted:        true,
		ExtractionMethod: "faithful_native",
		Text:             "Hello World",
		HTML:             "<html></html>",
		Pages: []model.Page{{
			PageNumber:     1,
			Text:           "Hello World",
			PageDimensions: size,
			Elements:       []model.Element{el},
			HTML:           `<div class="pdf-page" data-page="1"></div>`,
		}},
		Structure: model.Structure{
			Elements: []model.Element{el},
			Metadata: model.Metadata{PageCount: 1, Status: model.StatusCompleted},
		},
		Errors: []string{},
	}
}

func TestCache_StoreAndLookup(t *testing.T) {
	c := openCache(t)

	_, ok := c.Lookup("missing")
	assert.False(t, ok)

	require.NoError(t, c.Store("abc:123", sampleResult()))
	got, ok := c.Lookup("abc:123")
	require.True(t, ok)

	assert.True(t, got.Extracted)
	assert.Equal(t, "Hello World", got.Text)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, `<div class="pdf-page" data-page="1"></div>`, got.Pages[0].HTML)
	require.Len(t, got.Pages[0].Elements, 1)
	span := got.Pages[0].Elements[0].TextSpan()
	require.NotNil(t, span)
	assert.Equal(t, "Hello World", span.Text)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_Overwrite(t *testing.T) {
	c := openCache(t)
	first := sampleResult()
	require.NoError(t, c.Store("k", first))

	second := sampleResult()
	second.Text = "Changed"
	require.NoError(t, c.Store("k", second))

	got, ok := c.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "Changed", got.Text)
}

func TestCache_RefusesFailures(t *testing.T) {
	c := openCache(t)
	failed := sampleResult()
	failed.Extracted = false

	assert.Error(t, c.Store("k", failed))
	assert.Error(t, c.Store("k", nil))
	_, ok := c.Lookup("k")
	assert.False(t, ok)
}

func TestCache_DeleteAndEvict(t *testing.T) {
	c := openCache(t)
	require.NoError(t, c.Store("a", sampleResult()))
	require.NoError(t, c.Store("b", sampleResult()))

	require.NoError(t, c.Delete("a"))
	require.NoError(t, c.Delete("a"))
	_, ok := c.Lookup("a")
	assert.False(t, ok)

	require.NoError(t, c.Evict(time.Now().Add(-time.Hour)))
	_, ok = c.Lookup("b")
	assert.True(t, ok)

	require.NoError(t, c.Evict(time.Now().Add(time.Hour)))
	n, err := c.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_EmptyDir(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}

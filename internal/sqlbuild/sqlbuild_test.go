package sqlbuild

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var insectColumns = map[string]string{
	"price":     "price_cents",
	"image_url": "image_url",
}

func TestBuildPartialUpdate_EmptyData(t *testing.T) {
	_, _, err := BuildPartialUpdate(map[string]any{}, insectColumns)
	require.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestBuildPartialUpdate_OnlyUnknownKeys(t *testing.T) {
	data := map[string]any{
		"species": "Phidippus regius",
		"id":      7,
	}

	_, _, err := BuildPartialUpdate(data, insectColumns)
	require.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestBuildPartialUpdate_UnknownKeysIgnored(t *testing.T) {
	data := map[string]any{
		"price":   int64(999),
		"species": "Phidippus regius",
	}

	assignments, values, err := BuildPartialUpdate(data, insectColumns)
	require.NoError(t, err)

	assert.Equal(t, []string{"price_cents = $1"}, assignments)
	assert.Equal(t, []any{int64(999)}, values)
}

func TestBuildPartialUpdate_OrderingAndAlignment(t *testing.T) {
	data := map[string]any{
		"image_url": "https://img.example/phid.jpg",
		"price":     int64(1250),
	}

	assignments, values, err := BuildPartialUpdate(data, insectColumns)
	require.NoError(t, err)

	// поля идут в отсортированном порядке, плейсхолдеры подряд с $1
	assert.Equal(t, []string{"image_url = $1", "price_cents = $2"}, assignments)
	assert.Equal(t, []any{"https://img.example/phid.jpg", int64(1250)}, values)
}

func TestBuildPartialUpdate_LookupKeyAppendable(t *testing.T) {
	data := map[string]any{
		"image_url": "x",
		"price":     int64(100),
	}

	assignments, values, err := BuildPartialUpdate(data, insectColumns)
	require.NoError(t, err)
	require.Len(t, assignments, len(values))

	next := fmt.Sprintf("$%d", len(values)+1)
	assert.Equal(t, "$3", next)
}

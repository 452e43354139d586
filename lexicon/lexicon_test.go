package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_Label(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{Plastic, "Plastic"},
		{Electronic, "Electronic"},
		{General, "General"},
		{Category(""), ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.Label())
		})
	}
}

func TestEntries(t *testing.T) {
	t.Run("keeps declaration order", func(t *testing.T) {
		got := Entries()
		require.Len(t, got, 7)

		order := []Category{Plastic, Organic, Electronic, Paper, Metal, Glass, General}
		for i, c := range order {
			assert.Equal(t, c, got[i].Category)
			assert.NotEmpty(t, got[i].Keywords)
			assert.NotEmpty(t, got[i].Guidance.Suggestion)
		}
	})

	t.Run("returns a copy", func(t *testing.T) {
		got := Entries()
		got[0].Keywords[0] = "changed"

		assert.Equal(t, "plastic", Entries()[0].Keywords[0])
	})
}

func TestLookup(t *testing.T) {
	e, ok := Lookup("  GLASS ")
	require.True(t, ok)
	assert.Equal(t, Glass, e.Category)
	assert.Contains(t, e.Keywords, "jar")

	_, ok = Lookup("textile")
	assert.False(t, ok)
}

func TestHasKeyword(t *testing.T) {
	assert.True(t, HasKeyword(Plastic, "bottle"))
	assert.True(t, HasKeyword(Glass, "bottle"))
	assert.False(t, HasKeyword(Paper, "bottle"))
	assert.False(t, HasKeyword(Category("unknown"), "bottle"))
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryNames_TotalAndStable(t *testing.T) {
	names := CategoryNames()
	require.Len(t, names, 18)
	assert.Equal(t, "Other", names[0])
	assert.Equal(t, "Food and drinks", names[1])
	assert.Equal(t, "Cash transfer", names[17])

	seen := make(map[string]bool)
	for id := 0; id < NumCategories; id++ {
		name, err := CategoryID(id).Name()
		require.NoError(t, err)
		assert.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true

		back, ok := CategoryByName(name)
		require.True(t, ok)
		assert.Equal(t, CategoryID(id), back)
	}
}

func TestCategoryID_OutOfRange(t *testing.T) {
	for _, id := range []CategoryID{-1, 18, 100} {
		assert.False(t, id.Valid())
		_, err := id.Name()
		assert.Error(t, err)
	}
}

func TestCategoryNames_ReturnsCopy(t *testing.T) {
	names := CategoryNames()
	names[0] = "mutated"
	assert.Equal(t, OtherLabel, CategoryNames()[0])
}

func TestCategoryByName_Unknown(t *testing.T) {
	_, ok := CategoryByName("Groceries")
	assert.False(t, ok)
}

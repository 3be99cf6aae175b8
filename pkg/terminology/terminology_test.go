package terminology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
codesets:
  smoking_clear:
    system: ctv3
    codes: ["137R.", "1371.", "137P."]
    categories:
      "137R.": S
      "1371.": N
      "137P.": E
  dem_alz_snomed:
    system: snomed
    codes: ["26929004"]
`

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"dem_alz_snomed", "smoking_clear"}, table.Names())

	smoking, err := table.Get("smoking_clear")
	require.NoError(t, err)
	assert.True(t, smoking.HasCategories())
	cat, ok := smoking.Category("137P.")
	require.True(t, ok)
	assert.Equal(t, "E", cat)
	assert.Equal(t, []string{"E", "N", "S"}, smoking.Categories())

	_, err = table.Get("missing")
	require.ErrorIs(t, err, ErrUnknownSet)
	require.ErrorIs(t, table.Require("smoking_clear", "missing"), ErrUnknownSet)
}

func TestCodeSetInvariants(t *testing.T) {
	_, err := NewCodeSet("empty", nil)
	require.ErrorIs(t, err, ErrEmptyCodeSet)

	_, err = NewCodeSet("dup", []string{"A01", "A01"})
	require.ErrorIs(t, err, ErrDuplicateCode)

	set, err := NewCodeSet("plain", []string{"A01", "B02"})
	require.NoError(t, err)
	assert.True(t, set.Contains("A01"))
	assert.False(t, set.Contains(""))
	_, ok := set.Category("A01")
	assert.False(t, ok, "unmapped codes have no category")

	code, ok := set.ContainsAny([]string{"Z99", "B02"})
	assert.True(t, ok)
	assert.Equal(t, "B02", code)
}

func TestUnionAndFilter(t *testing.T) {
	a, _ := NewCodeSet("a", []string{"F00", "F01"})
	b, _ := NewCodeSet("b", []string{"F01", "F02"})
	u, err := Union("a_or_b", a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"F00", "F01", "F02"}, u.Codes())

	smoking, err := NewCategorisedCodeSet("smoking", []string{"x", "y", "z"}, map[string]string{"x": "S", "y": "N", "z": "E"})
	require.NoError(t, err)
	ever, err := smoking.FilterByCategory("ever_smoked", "S", "E")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "z"}, ever.Codes())

	_, err = smoking.FilterByCategory("none", "Q")
	require.ErrorIs(t, err, ErrEmptyCodeSet)
}

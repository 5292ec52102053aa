package teams

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "argentina", Normalize("  Argentina "))
	assert.Equal(t, "côte d'ivoire", Normalize("CÔTE D'IVOIRE"))
	assert.Equal(t, "", Normalize("   "))
}

func TestLookupResolve(t *testing.T) {
	l := NewLookup([]model.Team{
		{ID: 1, Name: "Argentina"},
		{ID: 7, Name: "United States"},
	})

	assert.Equal(t, null.IntFrom(1), l.Resolve("argentina"))
	assert.Equal(t, null.IntFrom(7), l.Resolve(" UNITED STATES\t"))
	assert.False(t, l.Resolve("Atlantis").Valid, "unknown names resolve to null")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.json")
	body := `[
  {"id": 1, "name": "Argentina", "country_code": "ARG", "group_letter": "J", "flag_emoji": "🇦🇷"},
  {"id": 2, "name": " Spain ", "country_code": "ESP", "group_letter": null}
]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.Team{ID: 1, Name: "Argentina", CountryCode: "ARG", GroupLabel: "J", FlagEmoji: "🇦🇷"}, got[0])
	assert.Equal(t, "Spain", got[1].Name)
	assert.Empty(t, got[1].GroupLabel)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "No Id"}]`), 0o644))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "id and name are required")
}

package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"MacroChain/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLibraryCompiles(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, l.Events)
	for _, role := range models.Roles {
		assert.NotEmpty(t, l.RoleExpressions(role), "role %s", role)
	}
	assert.NotEmpty(t, l.EntityTerms())
	assert.Equal(t, 0.8, l.Certainty.CertainScore)
}

func TestParseAppliesDefaults(t *testing.T) {
	l, err := Parse([]byte(`
events:
  - family: corporate
    category: legal
    keywords: [lawsuit]
roles:
  trigger: [sued]
  intermediate: [because of]
  outcome: [will rise]
polarity:
  positive: [rise]
  negative: [fall]
connectives: [because]
`))
	require.NoError(t, err)

	assert.Equal(t, "dev", l.Version)
	assert.Equal(t, 0.8, l.Severity.HighScore)
	assert.Equal(t, 0.6, l.Severity.MediumScore)
	assert.Equal(t, 0.4, l.Severity.BaseScore)
	assert.Equal(t, 0.6, l.Certainty.DefaultScore)
}

func TestParseRejectsInvalidLibrary(t *testing.T) {
	cases := map[string]string{
		"no events": `
roles: {trigger: [a], intermediate: [b], outcome: [c]}
polarity: {positive: [up], negative: [down]}
connectives: [because]
`,
		"unknown family": `
events: [{family: weather, category: x, keywords: [rain]}]
roles: {trigger: [a], intermediate: [b], outcome: [c]}
polarity: {positive: [up], negative: [down]}
connectives: [because]
`,
		"bad regexp": `
events: [{family: corporate, category: x, keywords: [merger]}]
roles: {trigger: ["(unclosed"], intermediate: [b], outcome: [c]}
polarity: {positive: [up], negative: [down]}
connectives: [because]
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestRoleClauseKeepsDecimals(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)

	text := "The central bank announced a 0.25 point rate hike. Markets fell."
	var matched int
	for _, re := range l.RoleExpressions(models.RoleTrigger) {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		matched++
		assert.Equal(t, "The central bank announced a 0.25 point rate hike", m, re.String())
	}
	assert.NotZero(t, matched)
}

func TestPhraseSetStemsAndBoundaries(t *testing.T) {
	set, err := NewPhraseSet([]string{"restrict*", "war", "as a result"})
	require.NoError(t, err)

	assert.True(t, set.Any("Export restrictions were imposed"))
	assert.True(t, set.Any("As a result, prices moved"))
	assert.False(t, set.Any("a software update"))
	assert.Equal(t, 2, set.Count("war and restricted trade"))

	empty, err := NewPhraseSet(nil)
	require.NoError(t, err)
	assert.False(t, empty.Any("anything"))
}

func TestSeverityAndRegions(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 0.8, l.SeverityOf("New sanctions hit Russian banks"))
	assert.Equal(t, 0.6, l.SeverityOf("Tariffs were raised"))
	assert.Equal(t, 0.4, l.SeverityOf("The company reported results"))

	assert.Equal(t, []string{"Asia", "North America"}, l.RegionsOf("China and the United States traded barbs"))
	assert.Empty(t, l.RegionsOf("nothing regional here"))
}

func TestHorizonOf(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)

	h, ok := l.HorizonOf("Margins should recover in the second half")
	require.True(t, ok)
	assert.Equal(t, models.Horizon6M, h)

	_, ok = l.HorizonOf("no timing language")
	assert.False(t, ok)
}

func TestHolderReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(path, defaultLibrary, 0o644))

	h, err := NewHolder(path)
	require.NoError(t, err)
	before := h.Current()
	require.NotNil(t, before)

	require.NoError(t, os.WriteFile(path, []byte("events: ["), 0o644))
	_, err = h.Reload()
	assert.Error(t, err)
	assert.Same(t, before, h.Current())
}

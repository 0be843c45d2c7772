package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Builtins(t *testing.T) {
	reg := NewDefaultRegistry()

	assert.Equal(t, []string{EarlyStageID, GrowthID, AngelID, RecruiterID}, reg.IDs())

	early, err := reg.Get(EarlyStageID)
	require.NoError(t, err)
	assert.Equal(t, "Early Stage VC", early.Name)

	w, ok := early.Recipe.DefaultWeight("serial_founder")
	require.True(t, ok)
	assert.Equal(t, 0.95, w)
	w, ok = early.Recipe.DefaultWeight("YC Alumni")
	require.True(t, ok)
	assert.Equal(t, 0.85, w)
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewDefaultRegistry()

	_, err := reg.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownPersona)
	assert.False(t, reg.Has("nope"))
	assert.True(t, reg.Has(GrowthID))
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	reg := NewDefaultRegistry()

	p, err := reg.Get(EarlyStageID)
	require.NoError(t, err)
	p.Recipe.DefaultWeights["serial_founder"] = -1
	p.Recipe.PositiveHighlights[0] = "mutated"

	again, err := reg.Get(EarlyStageID)
	require.NoError(t, err)
	assert.Equal(t, 0.95, again.Recipe.DefaultWeights["serial_founder"])
	assert.Equal(t, "serial_founder", again.Recipe.PositiveHighlights[0])
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(Persona{ID: "  "})
	assert.ErrorIs(t, err, ErrEmptyPersonaID)

	_, err = NewRegistry(Persona{ID: "x", Recipe: Recipe{MinYears: 10, MaxYears: 2}})
	assert.ErrorIs(t, err, ErrInvalidYears)
}

func TestNewRegistry_NormalizesAndOverrides(t *testing.T) {
	reg, err := NewRegistry(
		Persona{ID: "a", Recipe: Recipe{PositiveHighlights: []string{"Deep Tech"}}},
		Persona{ID: "b"},
		Persona{ID: "a", Name: "Second", Recipe: Recipe{
			PositiveHighlights: []string{"Open  Source"},
			DefaultWeights:     map[string]float64{"Open Source": 0.4},
		}},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, reg.IDs())
	a, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "Second", a.Name)
	assert.Equal(t, []string{"open_source"}, a.Recipe.PositiveHighlights)
	assert.Equal(t, 0.4, a.Recipe.DefaultWeights["open_source"])

	b, err := reg.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", b.Name, "name defaults to id")
}

func TestRecipe_ResolvedMultipliers(t *testing.T) {
	r := Recipe{}
	assert.Equal(t, DefaultMultipliers(), r.ResolvedMultipliers())

	r.Multipliers = &Multipliers{Positive: 5, RedFlag: 40}
	m := r.ResolvedMultipliers()
	assert.Equal(t, 5.0, m.Positive)
	assert.Equal(t, 40.0, m.RedFlag)
	assert.Equal(t, DefaultNegativeMultiplier, m.Negative)
	assert.Equal(t, DefaultLocationBonus, m.Location)
}

func TestRecipe_HasYearsRange(t *testing.T) {
	assert.False(t, (&Recipe{}).HasYearsRange())
	assert.True(t, (&Recipe{MinYears: 3}).HasYearsRange())
	assert.True(t, (&Recipe{MaxYears: 9}).HasYearsRange())
}

func writePack(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipes.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPack(t *testing.T) {
	path := writePack(t, `
[[persona]]
id = "climate"
name = "Climate Fund"

[persona.recipe]
positive_highlights = ["carbon removal", "hardware"]
red_flags = ["greenwashing"]
locations = ["remote"]
min_years = 2
max_years = 12

[persona.recipe.default_weights]
"carbon removal" = 0.9

[persona.recipe.multipliers]
positive = 25.0

[[persona]]
id = "early"
name = "Early (custom)"
`)

	personas, err := LoadPack(path)
	require.NoError(t, err)
	require.Len(t, personas, 2)
	assert.Equal(t, "climate", personas[0].ID)
	assert.Equal(t, 12, personas[0].Recipe.MaxYears)
	require.NotNil(t, personas[0].Recipe.Multipliers)
	assert.Equal(t, 25.0, personas[0].Recipe.Multipliers.Positive)

	reg, err := NewRegistryWithPack(path)
	require.NoError(t, err)
	assert.Equal(t, []string{EarlyStageID, GrowthID, AngelID, RecruiterID, "climate"}, reg.IDs())

	climate, err := reg.Get("climate")
	require.NoError(t, err)
	assert.Equal(t, 0.9, climate.Recipe.DefaultWeights["carbon_removal"])

	early, err := reg.Get(EarlyStageID)
	require.NoError(t, err)
	assert.Equal(t, "Early (custom)", early.Name)
	assert.Empty(t, early.Recipe.PositiveHighlights, "pack entry replaces the built-in recipe")
}

func TestLoadPack_Errors(t *testing.T) {
	_, err := LoadPack(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadPack(writePack(t, "[[persona]\nid ="))
	assert.Error(t, err)

	_, err = LoadPack(writePack(t, "[[persona]]\nid = \"x\"\nbogus = 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persona.bogus")
}

func TestNewRegistryWithPack_EmptyPath(t *testing.T) {
	reg, err := NewRegistryWithPack("")
	require.NoError(t, err)
	assert.Len(t, reg.List(), 4)
}

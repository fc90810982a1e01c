package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/service"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{})  {}
func (l logger) Errorf(format string, args ...interface{}) {}

func newImporter() (*Importer, *service.Engine) {
	engine := service.NewEngine(storage.NewMemoryStore(), logger{}, service.Options{})
	return New(engine, logger{}), engine
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	imp, engine := newImporter()

	res, err := imp.ImportFile(ctx, "testdata/catalog.yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Recipes)
	assert.Equal(t, 1, res.Menus)
	assert.Equal(t, 1, res.Events)
	assert.Empty(t, res.Skipped)

	recipe, err := engine.Catalog.GetRecipe("tortilla")
	require.NoError(t, err)
	assert.Equal(t, models.HotStation, recipe.Station)
	assert.Len(t, recipe.Ingredients, 2)

	menu, err := engine.Catalog.GetMenu("boda-clasica")
	require.NoError(t, err)
	require.Len(t, menu.Lines, 3)
	assert.Equal(t, "gazpacho", menu.Lines[0].RecipeID)

	tasks, err := engine.Generator.GenerateTasks(ctx, "boda-garcia", service.GenerateOptions{})
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestImportTwiceSkips(t *testing.T) {
	ctx := context.Background()
	imp, _ := newImporter()

	_, err := imp.ImportFile(ctx, "testdata/catalog.yaml")
	require.NoError(t, err)
	res, err := imp.ImportFile(ctx, "testdata/catalog.yaml")
	require.NoError(t, err)
	assert.Zero(t, res.Recipes+res.Menus+res.Events)
	assert.Equal(t, []string{
		"recipe tortilla", "recipe gazpacho", "recipe tarta-queso",
		"menu boda-clasica", "event boda-garcia",
	}, res.Skipped)
}

func TestImportStopsOnInvalidRow(t *testing.T) {
	seed, err := Parse(strings.NewReader(`
recipes:
  - {id: ok, name: Ok, station: hot, base_yield: 2}
  - {id: bad, name: Bad, station: grill, base_yield: 2}
  - {id: later, name: Later, station: cold, base_yield: 2}
`))
	require.NoError(t, err)

	imp, engine := newImporter()
	res, err := imp.Import(context.Background(), seed)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Contains(t, err.Error(), "recipe #2")
	assert.Equal(t, 1, res.Recipes)

	_, err = engine.Catalog.GetRecipe("later")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestImportUnknownRecipeInMenu(t *testing.T) {
	seed, err := Parse(strings.NewReader(`
menus:
  - id: m
    name: M
    lines:
      - {recipe: ghost, qty_per_guest: 1}
`))
	require.NoError(t, err)
	imp, _ := newImporter()
	_, err = imp.Import(context.Background(), seed)
	assert.ErrorIs(t, err, service.ErrReference)
}

func TestImportBadEventDate(t *testing.T) {
	seed, err := Parse(strings.NewReader(`
events:
  - {id: e, name: E, date: 20/06/2026, guests: 10}
`))
	require.NoError(t, err)
	imp, _ := newImporter()
	_, err = imp.Import(context.Background(), seed)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("recipes:\n  - {id: x, yield: 3}\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	seed, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, seed.Recipes)
}

func TestImportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	imp, _ := newImporter()
	_, err := imp.Import(ctx, Seed{Recipes: []RecipeRow{{ID: "x", Name: "X", Station: "hot", BaseYield: 1}}})
	assert.ErrorIs(t, err, context.Canceled)
}

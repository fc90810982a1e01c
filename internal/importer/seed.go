package importer

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/service"
)

// Seed is the YAML catalog file layout.
type Seed struct {
	Recipes []RecipeRow `yaml:"recipes"`
	Menus   []MenuRow   `yaml:"menus"`
	Events  []EventRow  `yaml:"events"`
}

type RecipeRow struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Station     string              `yaml:"station"`
	BaseYield   float64             `yaml:"base_yield"`
	PrepMinutes int                 `yaml:"prep_minutes"`
	CookMinutes int                 `yaml:"cook_minutes"`
	Ingredients []models.Ingredient `yaml:"ingredients"`
}

type MenuLineRow struct {
	Recipe      string  `yaml:"recipe"`
	QtyPerGuest float64 `yaml:"qty_per_guest"`
}

type MenuRow struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Price       float64       `yaml:"price"`
	Status      string        `yaml:"status"`
	Lines       []MenuLineRow `yaml:"lines"`
}

type EventRow struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Date   string `yaml:"date"` // YYYY-MM-DD
	Guests int    `yaml:"guests"`
	Type   string `yaml:"type"`
	Menu   string `yaml:"menu"`
	Notes  string `yaml:"notes"`
}

// Result reports what an import created and which rows already existed.
type Result struct {
	Recipes int
	Menus   int
	Events  int
	Skipped []string
}

// Importer loads seed files through the engine so that every row is validated
// the same way as an API call. Rows are created one by one; a failing row stops
// the import and earlier rows stay.
type Importer struct {
	engine *service.Engine
	logger service.Logger
}

func New(engine *service.Engine, logger service.Logger) *Importer {
	return &Importer{engine: engine, logger: logger}
}

// Parse decodes a seed document, rejecting unknown fields.
func Parse(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return Seed{}, errors.Wrap(err, "decode seed")
	}
	return seed, nil
}

// ImportFile parses and imports the seed at path.
func (i *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	seed, err := Parse(f)
	if err != nil {
		return Result{}, errors.WithMessage(err, path)
	}
	return i.Import(ctx, seed)
}

// Import creates recipes, then menus, then events. Rows whose id already
// exists are skipped so a seed can be applied twice.
func (i *Importer) Import(ctx context.Context, seed Seed) (Result, error) {
	var res Result
	for n, row := range seed.Recipes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := i.engine.Catalog.CreateRecipe(models.Recipe{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Station:     models.Station(row.Station),
			BaseYield:   row.BaseYield,
			PrepMinutes: row.PrepMinutes,
			CookMinutes: row.CookMinutes,
			Ingredients: row.Ingredients,
		})
		if skip, err := i.outcome(&res, err, "recipe", row.ID, n); err != nil {
			return res, err
		} else if !skip {
			res.Recipes++
		}
	}

	for n, row := range seed.Menus {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		menu := models.Menu{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Price:       row.Price,
			Status:      models.MenuStatus(row.Status),
		}
		for _, l := range row.Lines {
			menu.Lines = append(menu.Lines, models.MenuLine{RecipeID: l.Recipe, QtyPerGuest: l.QtyPerGuest})
		}
		_, err := i.engine.Catalog.CreateMenu(menu)
		if skip, err := i.outcome(&res, err, "menu", row.ID, n); err != nil {
			return res, err
		} else if !skip {
			res.Menus++
		}
	}

	for n, row := range seed.Events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		date, err := time.Parse(models.DateLayout, row.Date)
		if err != nil {
			return res, errors.Wrapf(service.ErrValidation, "event #%d: bad date %q", n+1, row.Date)
		}
		event := models.Event{
			ID:         row.ID,
			Name:       row.Name,
			Date:       date,
			GuestCount: row.Guests,
			Type:       models.EventType(row.Type),
			Notes:      row.Notes,
		}
		if row.Menu != "" {
			menuID := row.Menu
			event.MenuID = &menuID
		}
		_, err = i.engine.Events.CreateEvent(event)
		if skip, err := i.outcome(&res, err, "event", row.ID, n); err != nil {
			return res, err
		} else if !skip {
			res.Events++
		}
	}

	i.logger.Infof("Imported %d recipes, %d menus, %d events (%d skipped)", res.Recipes, res.Menus, res.Events, len(res.Skipped))
	return res, nil
}

// outcome classifies a create error: nil means created, a conflict on a
// caller-supplied id means skipped, anything else aborts the import.
func (i *Importer) outcome(res *Result, err error, kind, id string, n int) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case id != "" && errors.Is(err, service.ErrConflict):
		res.Skipped = append(res.Skipped, kind+" "+id)
		return true, nil
	}
	return false, errors.WithMessagef(err, "%s #%d", kind, n+1)
}

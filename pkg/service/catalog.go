package service

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

const maxNameLength = 200

// Catalog manages recipes and the menus composed from them.
type Catalog struct {
	store    storage.Store
	logger   Logger
	opts     Options
	stations map[models.Station]struct{}
}

func NewCatalog(store storage.Store, logger Logger, opts Options) *Catalog {
	opts = opts.withDefaults()
	stations := make(map[models.Station]struct{})
	for _, s := range models.DefaultStations {
		stations[s] = struct{}{}
	}
	for _, s := range opts.ExtraStations {
		if s = models.Station(strings.ToLower(strings.TrimSpace(string(s)))); s != "" {
			stations[s] = struct{}{}
		}
	}
	return &Catalog{store: store, logger: logger, opts: opts, stations: stations}
}

// IsStation reports whether s is a recognized station.
func (c *Catalog) IsStation(s models.Station) bool {
	_, ok := c.stations[s]
	return ok
}

func validName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return validationf("%s name cannot be empty", kind)
	}
	if len(name) > maxNameLength {
		return validationf("%s name too long (max %d characters)", kind, maxNameLength)
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

func (c *Catalog) validateRecipe(r *models.Recipe) error {
	if err := validName("recipe", r.Name); err != nil {
		return err
	}
	r.Station = models.Station(strings.ToLower(strings.TrimSpace(string(r.Station))))
	if !c.IsStation(r.Station) {
		return validationf("station %q is not recognized", r.Station)
	}
	if !positive(r.BaseYield) {
		return validationf("base yield must be positive, got %v", r.BaseYield)
	}
	if r.PrepMinutes < 0 || r.CookMinutes < 0 {
		return validationf("prep and cook minutes cannot be negative")
	}
	for i, in := range r.Ingredients {
		if strings.TrimSpace(in.Name) == "" {
			return validationf("ingredient %d has no name", i+1)
		}
		if in.Quantity < 0 || math.IsNaN(in.Quantity) {
			return validationf("ingredient %q has a negative quantity", in.Name)
		}
	}
	return nil
}

// CreateRecipe validates and stores a recipe, returning its id.
func (c *Catalog) CreateRecipe(r models.Recipe) (string, error) {
	if err := c.validateRecipe(&r); err != nil {
		return "", err
	}
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := c.opts.Clock()
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := c.store.SaveRecipe(r); err != nil {
		return "", translate(err, "recipe", r.ID)
	}
	c.logger.Infof("Created recipe '%s' (%s) at station %s", r.Name, r.ID, r.Station)
	return r.ID, nil
}

// UpdateRecipe replaces a recipe definition and bumps its version.
// Tasks already generated keep the definition they were generated from.
func (c *Catalog) UpdateRecipe(r models.Recipe) (updated models.Recipe, err error) {
	if err := c.validateRecipe(&r); err != nil {
		return models.Recipe{}, err
	}
	err = inTx(c.store, c.logger, func(tx storage.Store) error {
		cur, err := tx.GetRecipe(r.ID)
		if err != nil {
			return translate(err, "recipe", r.ID)
		}
		r.Version = cur.Version + 1
		r.CreatedAt = cur.CreatedAt
		r.UpdatedAt = c.opts.Clock()
		if err := tx.UpdateRecipe(r); err != nil {
			return translate(err, "recipe", r.ID)
		}
		updated = r
		return nil
	})
	if err != nil {
		return models.Recipe{}, err
	}
	c.logger.Infof("Updated recipe %s to version %d", r.ID, updated.Version)
	return updated, nil
}

func (c *Catalog) GetRecipe(id string) (models.Recipe, error) {
	r, err := c.store.GetRecipe(id)
	if err != nil {
		return models.Recipe{}, translate(err, "recipe", id)
	}
	return r, nil
}

func (c *Catalog) ListRecipes() ([]models.Recipe, error) {
	return c.store.ListRecipes()
}

// DeleteRecipe removes a recipe. A recipe still used by a menu is a conflict
// unless force is set, in which case the referencing menu lines go with it.
func (c *Catalog) DeleteRecipe(id string, force bool) error {
	err := inTx(c.store, c.logger, func(tx storage.Store) error {
		if _, err := tx.GetRecipe(id); err != nil {
			return translate(err, "recipe", id)
		}
		menus, err := tx.MenusUsingRecipe(id)
		if err != nil {
			return err
		}
		if len(menus) > 0 && !force {
			names := make([]string, 0, len(menus))
			for _, m := range menus {
				names = append(names, m.Name)
			}
			return errors.Wrapf(ErrConflict, "recipe %s is used by menus: %s", id, strings.Join(names, ", "))
		}
		for _, m := range menus {
			kept := m.Lines[:0]
			for _, l := range m.Lines {
				if l.RecipeID != id {
					l.Position = len(kept)
					kept = append(kept, l)
				}
			}
			m.Lines = kept
			m.UpdatedAt = c.opts.Clock()
			if err := tx.UpdateMenu(m); err != nil {
				return err
			}
			c.logger.Infof("Removed recipe %s from menu %s", id, m.ID)
		}
		return translate(tx.DeleteRecipe(id), "recipe", id)
	})
	if err != nil {
		return err
	}
	c.logger.Infof("Deleted recipe %s", id)
	return nil
}

func validateMenu(m *models.Menu) error {
	if err := validName("menu", m.Name); err != nil {
		return err
	}
	if m.Price < 0 || math.IsNaN(m.Price) {
		return validationf("menu price cannot be negative")
	}
	switch m.Status {
	case "":
		m.Status = models.ActiveMenuStatus
	case models.ActiveMenuStatus, models.DraftMenuStatus, models.ArchivedMenuStatus:
	default:
		return validationf("invalid menu status %q", m.Status)
	}
	seen := make(map[string]struct{}, len(m.Lines))
	for i := range m.Lines {
		l := &m.Lines[i]
		l.RecipeID = strings.TrimSpace(l.RecipeID)
		if l.RecipeID == "" {
			return validationf("menu line %d has no recipe", i+1)
		}
		if !positive(l.QtyPerGuest) {
			return validationf("menu line %d (%s): quantity per guest must be positive, got %v", i+1, l.RecipeID, l.QtyPerGuest)
		}
		if _, dup := seen[l.RecipeID]; dup {
			return validationf("menu line %d: recipe %s appears twice", i+1, l.RecipeID)
		}
		seen[l.RecipeID] = struct{}{}
		l.Position = i
	}
	return nil
}

// checkReferences fails with ErrReference when a line names an unknown recipe.
func checkReferences(tx storage.Store, m models.Menu) error {
	for i, l := range m.Lines {
		if _, err := tx.GetRecipe(l.RecipeID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return errors.Wrapf(ErrReference, "menu line %d: unknown recipe %s", i+1, l.RecipeID)
			}
			return err
		}
	}
	return nil
}

// CreateMenu stores a menu if every line is valid and references a known recipe.
func (c *Catalog) CreateMenu(m models.Menu) (string, error) {
	if err := validateMenu(&m); err != nil {
		return "", err
	}
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := c.opts.Clock()
	m.CreatedAt = now
	m.UpdatedAt = now
	for i := range m.Lines {
		m.Lines[i].MenuID = m.ID
	}
	err := inTx(c.store, c.logger, func(tx storage.Store) error {
		if err := checkReferences(tx, m); err != nil {
			return err
		}
		return translate(tx.SaveMenu(m), "menu", m.ID)
	})
	if err != nil {
		return "", err
	}
	c.logger.Infof("Created menu '%s' (%s) with %d lines", m.Name, m.ID, len(m.Lines))
	return m.ID, nil
}

// UpdateMenu replaces the menu definition. Existing tasks change only when generation runs again.
func (c *Catalog) UpdateMenu(m models.Menu) (updated models.Menu, err error) {
	if err := validateMenu(&m); err != nil {
		return models.Menu{}, err
	}
	for i := range m.Lines {
		m.Lines[i].MenuID = m.ID
	}
	err = inTx(c.store, c.logger, func(tx storage.Store) error {
		cur, err := tx.GetMenu(m.ID)
		if err != nil {
			return translate(err, "menu", m.ID)
		}
		if err := checkReferences(tx, m); err != nil {
			return err
		}
		m.CreatedAt = cur.CreatedAt
		m.UpdatedAt = c.opts.Clock()
		if err := tx.UpdateMenu(m); err != nil {
			return translate(err, "menu", m.ID)
		}
		updated = m
		return nil
	})
	if err != nil {
		return models.Menu{}, err
	}
	c.logger.Infof("Updated menu %s (%d lines)", m.ID, len(m.Lines))
	return updated, nil
}

func (c *Catalog) GetMenu(id string) (models.Menu, error) {
	m, err := c.store.GetMenu(id)
	if err != nil {
		return models.Menu{}, translate(err, "menu", id)
	}
	return m, nil
}

func (c *Catalog) ListMenus() ([]models.Menu, error) {
	return c.store.ListMenus()
}

// DeleteMenu removes a menu. Events still pointing at it make this a conflict
// unless force is set, which detaches them.
func (c *Catalog) DeleteMenu(id string, force bool) error {
	err := inTx(c.store, c.logger, func(tx storage.Store) error {
		if _, err := tx.GetMenu(id); err != nil {
			return translate(err, "menu", id)
		}
		events, err := tx.EventsUsingMenu(id)
		if err != nil {
			return err
		}
		if len(events) > 0 && !force {
			return errors.Wrapf(ErrConflict, "menu %s is selected by %d event(s)", id, len(events))
		}
		for _, e := range events {
			e.MenuID = nil
			e.UpdatedAt = c.opts.Clock()
			if err := tx.UpdateEvent(e); err != nil {
				return err
			}
		}
		return translate(tx.DeleteMenu(id), "menu", id)
	})
	if err != nil {
		return err
	}
	c.logger.Infof("Deleted menu %s", id)
	return nil
}

package models

import "time"

type MenuStatus string

const (
	ActiveMenuStatus   MenuStatus = "active"
	DraftMenuStatus    MenuStatus = "draft"
	ArchivedMenuStatus MenuStatus = "archived"
)

// MenuLine is one recipe served at QtyPerGuest portions per guest.
type MenuLine struct {
	MenuID      string  `json:"-" db:"menu_id"`
	RecipeID    string  `json:"recipe_id" db:"recipe_id"`
	QtyPerGuest float64 `json:"qty_per_guest" db:"qty_per_guest"`
	Position    int     `json:"-" db:"position"`
}

// Menu composes recipes into an orderable offer.
type Menu struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	Price       float64    `json:"price" db:"price"`
	Status      MenuStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	Lines       []MenuLine `json:"lines"` // Ordered, populated at runtime
}

// Line returns the line for recipeID, if present.
func (m Menu) Line(recipeID string) (MenuLine, bool) {
	for _, l := range m.Lines {
		if l.RecipeID == recipeID {
			return l, true
		}
	}
	return MenuLine{}, false
}

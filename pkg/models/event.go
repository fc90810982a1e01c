package models

import "time"

type EventType string

const (
	LunchEventType     EventType = "Comida"
	DinnerEventType    EventType = "Cena"
	CorporateEventType EventType = "Empresa"
	CocktailEventType  EventType = "Coctel"
	WeddingEventType   EventType = "Boda"
	CoffeeEventType    EventType = "Coffee Break"
	SportsEventType    EventType = "Equipo Deportivo"
	OtherEventType     EventType = "Otros"
)

// DateLayout is the wire format of event and schedule dates.
const DateLayout = "2006-01-02"

// Event is a scheduled service for GuestCount guests (PAX).
type Event struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Date       time.Time `json:"date" db:"event_date"`
	GuestCount int       `json:"guest_count" db:"guest_count"`
	Type       EventType `json:"type,omitempty" db:"event_type"`
	MenuID     *string   `json:"menu_id,omitempty" db:"menu_id"` // Nil when no menu is selected
	Notes      string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// HasMenu reports whether tasks can be derived for the event.
func (e Event) HasMenu() bool {
	return e.MenuID != nil && *e.MenuID != ""
}

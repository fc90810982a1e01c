package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/service"
	"github.com/rai1001/CulinaryOs/pkg/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type logger struct{}

func (l logger) Infof(format string, args ...interface{}) {
	// no-op
}

func (l logger) Errorf(format string, args ...interface{}) {
	// no-op
}

// fakeClock advances one second on every reading.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store  storage.Store
	engine *service.Engine
	clock  *fakeClock
}

func newFixture(t *testing.T, opts service.Options) *fixture {
	t.Helper()
	clock := newFakeClock()
	if opts.Clock == nil {
		opts.Clock = clock.Now
	}
	store := storage.NewMemoryStore()
	return &fixture{store: store, engine: service.NewEngine(store, logger{}, opts), clock: clock}
}

func eventDate() time.Time {
	return time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

// seedTortilla builds the reference scenario: tortilla (hot, yield 4) at 0.5
// per guest on menu m1, event e1 for 100 guests.
func (f *fixture) seedTortilla(t *testing.T) {
	t.Helper()
	_, err := f.engine.Catalog.CreateRecipe(models.Recipe{ID: "tortilla", Name: "Tortilla", Station: models.HotStation, BaseYield: 4})
	require.NoError(t, err)
	_, err = f.engine.Catalog.CreateMenu(models.Menu{ID: "m1", Name: "Menu Test", Price: 25, Lines: []models.MenuLine{
		{RecipeID: "tortilla", QtyPerGuest: 0.5},
	}})
	require.NoError(t, err)
	_, err = f.engine.Events.CreateEvent(models.Event{ID: "e1", Name: "Boda Test", Date: eventDate(), GuestCount: 100, MenuID: strPtr("m1")})
	require.NoError(t, err)
}

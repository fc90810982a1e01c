package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rai1001/CulinaryOs/internal/log"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/service"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, engine *service.Engine) {
	h := &handlers{engine: engine}

	e.GET("/health", h.health)

	e.POST("/recipes", h.createRecipe)
	e.GET("/recipes", h.listRecipes)
	e.GET("/recipes/:id", h.getRecipe)
	e.PUT("/recipes/:id", h.updateRecipe)
	e.DELETE("/recipes/:id", h.deleteRecipe)

	e.POST("/menus", h.createMenu)
	e.GET("/menus", h.listMenus)
	e.GET("/menus/:id", h.getMenu)
	e.PUT("/menus/:id", h.updateMenu)
	e.DELETE("/menus/:id", h.deleteMenu)

	e.POST("/events", h.createEvent)
	e.GET("/events", h.listEvents)
	e.GET("/events/:id", h.getEvent)
	e.PUT("/events/:id", h.updateEvent)
	e.DELETE("/events/:id", h.deleteEvent)
	e.POST("/events/:id/tasks", h.generateTasks)
	e.GET("/events/:id/board", h.board)

	e.POST("/tasks/:id/move", h.moveTask)
	e.PUT("/tasks/:id/schedule", h.scheduleTask)
	e.POST("/tasks/:id/timer", h.toggleTimer)
}

type handlers struct {
	engine *service.Engine
}

type idResponse struct {
	ID string `json:"id"`
}

// eventRequest carries event dates as YYYY-MM-DD.
type eventRequest struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Date       string  `json:"date"`
	GuestCount int     `json:"guest_count"`
	Type       string  `json:"type"`
	MenuID     *string `json:"menu_id"`
	Notes      string  `json:"notes"`
}

type moveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type scheduleRequest struct {
	Date       string `json:"date"`
	Shift      string `json:"shift"`
	AssigneeID string `json:"assignee_id"`
}

type generateResponse struct {
	EventID string        `json:"event_id"`
	Tasks   []models.Task `json:"tasks"`
}

type boardResponse struct {
	service.BoardView
	Summary []service.StationSummary `json:"summary"`
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(service.ErrValidation, format, args...)
}

func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return invalid("invalid request body: %v", err)
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(models.DateLayout, raw); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, raw); err == nil {
		return d, nil
	}
	return time.Time{}, invalid("invalid date %q, expected YYYY-MM-DD", raw)
}

func boolQuery(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalid("query parameter %s must be a boolean, got %q", name, raw)
	}
	return v, nil
}

func (r eventRequest) event() (models.Event, error) {
	e := models.Event{
		ID:         r.ID,
		Name:       r.Name,
		GuestCount: r.GuestCount,
		Type:       models.EventType(r.Type),
		MenuID:     r.MenuID,
		Notes:      r.Notes,
	}
	if strings.TrimSpace(r.Date) == "" {
		return e, nil
	}
	d, err := parseDate(r.Date)
	if err != nil {
		return models.Event{}, err
	}
	e.Date = d
	return e, nil
}

func (h *handlers) health(c echo.Context) error {
	return c.String(http.StatusOK, "CulinaryOS server is running")
}

func (h *handlers) createRecipe(c echo.Context) error {
	var r models.Recipe
	if err := bind(c, &r); err != nil {
		return err
	}
	id, err := h.engine.Catalog.CreateRecipe(r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, idResponse{ID: id})
}

func (h *handlers) listRecipes(c echo.Context) error {
	recipes, err := h.engine.Catalog.ListRecipes()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recipes)
}

func (h *handlers) getRecipe(c echo.Context) error {
	r, err := h.engine.Catalog.GetRecipe(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *handlers) updateRecipe(c echo.Context) error {
	var r models.Recipe
	if err := bind(c, &r); err != nil {
		return err
	}
	r.ID = c.Param("id")
	updated, err := h.engine.Catalog.UpdateRecipe(r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *handlers) deleteRecipe(c echo.Context) error {
	force, err := boolQuery(c, "force")
	if err != nil {
		return err
	}
	if err := h.engine.Catalog.DeleteRecipe(c.Param("id"), force); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) createMenu(c echo.Context) error {
	var m models.Menu
	if err := bind(c, &m); err != nil {
		return err
	}
	id, err := h.engine.Catalog.CreateMenu(m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, idResponse{ID: id})
}

func (h *handlers) listMenus(c echo.Context) error {
	menus, err := h.engine.Catalog.ListMenus()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, menus)
}

func (h *handlers) getMenu(c echo.Context) error {
	m, err := h.engine.Catalog.GetMenu(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *handlers) updateMenu(c echo.Context) error {
	var m models.Menu
	if err := bind(c, &m); err != nil {
		return err
	}
	m.ID = c.Param("id")
	updated, err := h.engine.Catalog.UpdateMenu(m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *handlers) deleteMenu(c echo.Context) error {
	force, err := boolQuery(c, "force")
	if err != nil {
		return err
	}
	if err := h.engine.Catalog.DeleteMenu(c.Param("id"), force); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) createEvent(c echo.Context) error {
	var req eventRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := req.event()
	if err != nil {
		return err
	}
	id, err := h.engine.Events.CreateEvent(e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, idResponse{ID: id})
}

func (h *handlers) listEvents(c echo.Context) error {
	var from, to time.Time
	var err error
	if raw := c.QueryParam("from"); raw != "" {
		if from, err = parseDate(raw); err != nil {
			return err
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if to, err = parseDate(raw); err != nil {
			return err
		}
	}
	events, err := h.engine.Events.ListEvents(from, to)
	if err != nil {
		return err
	}
	if events == nil {
		events = []models.Event{}
	}
	return c.JSON(http.StatusOK, events)
}

func (h *handlers) getEvent(c echo.Context) error {
	e, err := h.engine.Events.GetEvent(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *handlers) updateEvent(c echo.Context) error {
	var req eventRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := req.event()
	if err != nil {
		return err
	}
	e.ID = c.Param("id")
	updated, err := h.engine.Events.UpdateEvent(e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *handlers) deleteEvent(c echo.Context) error {
	if err := h.engine.Events.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) generateTasks(c echo.Context) error {
	reset, err := boolQuery(c, "reset")
	if err != nil {
		return err
	}
	eventID := c.Param("id")
	tasks, err := h.engine.Generator.GenerateTasks(c.Request().Context(), eventID, service.GenerateOptions{Reset: reset})
	if err != nil {
		log.WithEvent(eventID).Warnf("Task generation failed: %v", err)
		return err
	}
	return c.JSON(http.StatusOK, generateResponse{EventID: eventID, Tasks: tasks})
}

func (h *handlers) board(c echo.Context) error {
	ctx := c.Request().Context()
	eventID := c.Param("id")
	view, err := h.engine.Board.ListByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	summary, err := h.engine.Board.Summary(ctx, eventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, boardResponse{BoardView: view, Summary: summary})
}

func (h *handlers) moveTask(c echo.Context) error {
	var req moveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.From == "" || req.To == "" {
		return invalid("both from and to states are required")
	}
	task, err := h.engine.Board.MoveTask(c.Request().Context(), c.Param("id"), models.TaskState(req.From), models.TaskState(req.To))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) scheduleTask(c echo.Context) error {
	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var date *time.Time
	if strings.TrimSpace(req.Date) != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			return err
		}
		date = &d
	}
	shift := models.Shift(strings.ToUpper(strings.TrimSpace(req.Shift)))
	task, err := h.engine.Planner.AssignShift(c.Request().Context(), c.Param("id"), date, shift, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) toggleTimer(c echo.Context) error {
	task, err := h.engine.Planner.ToggleTimer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rai1001/CulinaryOs/internal/cache"
	"github.com/rai1001/CulinaryOs/internal/config"
	internal_http "github.com/rai1001/CulinaryOs/internal/http"
	"github.com/rai1001/CulinaryOs/internal/importer"
	"github.com/rai1001/CulinaryOs/internal/log"
	internal_storage "github.com/rai1001/CulinaryOs/internal/storage"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/service"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

// openStore is swapped in tests to share one store across commands.
var openStore = internal_storage.InitStore

// session is what a command needs to talk to the engine.
type session struct {
	cfg    config.Config
	store  storage.Store
	redis  *redis.Client
	engine *service.Engine
}

func (r *session) Close() {
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if err := r.store.Close(); err != nil {
		log.GetLogger().Errorf("Failed to close store: %v", err)
	}
}

// inMemoryOK marks commands allowed to run on the in-memory store.
const inMemoryOK = "in-memory-ok"

// setup loads the config, applies --db/--redis overrides and builds the engine.
func setup(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("db") {
		if cfg.DatabaseURL, err = cmd.Flags().GetString("db"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("redis") {
		if cfg.RedisURL, err = cmd.Flags().GetString("redis"); err != nil {
			return nil, err
		}
	}
	if cfg.DatabaseURL == "" && cmd.Annotations[inMemoryOK] == "" {
		return nil, errors.Errorf("%s needs a database, pass --db or set DATABASE_URL", cmd.CommandPath())
	}
	log.GetLogger().Debugf("Opening store (postgres=%t, redis=%t)", cfg.DatabaseURL != "", cfg.RedisURL != "")

	store, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "initialize store")
	}
	rt := &session{cfg: cfg, store: store}
	opts := cfg.Options()
	if cfg.RedisURL != "" {
		client, err := cache.Connect(cmd.Context(), cfg.RedisURL)
		if err != nil {
			log.GetLogger().Warnf("Board cache disabled, cannot reach Redis: %v", err)
		} else {
			rt.redis = client
			opts.Cache = cache.NewBoardCache(client, cfg.BoardCacheTTL)
		}
	}
	rt.engine = service.NewEngine(store, log.GetLogger(), opts)
	return rt, nil
}

// withEngine adapts a command body that needs the engine into a cobra RunE.
func withEngine(fn func(cmd *cobra.Command, args []string, rt *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, args, rt)
	}
}

func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("db", "", "Database connection string (defaults to DATABASE_URL/DB_* env; only serve and seed run without one)")
	rootCmd.PersistentFlags().String("redis", "", "Redis URL for the board cache (defaults to REDIS_URL)")
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(recipeCmd(), menuCmd(), eventCmd(), tasksCmd(), taskCmd(), boardCmd(), seedCmd(), serveCmd())
}

func recipeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "recipe", Short: "Manage recipes"}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a recipe",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			f := cmd.Flags()
			id, _ := f.GetString("id")
			name, _ := f.GetString("name")
			station, _ := f.GetString("station")
			yield, _ := f.GetFloat64("yield")
			prep, _ := f.GetInt("prep")
			cookMinutes, _ := f.GetInt("cook")
			id, err := rt.engine.Catalog.CreateRecipe(models.Recipe{
				ID: id, Name: name, Station: models.Station(station), BaseYield: yield,
				PrepMinutes: prep, CookMinutes: cookMinutes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created recipe '%s' with ID %s\n", name, id)
			return nil
		}),
	}
	add.Flags().String("id", "", "Recipe id (generated when empty)")
	add.Flags().String("name", "", "Recipe name")
	add.Flags().String("station", string(models.HotStation), "Kitchen station (hot, cold, pastry, other)")
	add.Flags().Float64("yield", 0, "Portions produced per batch")
	add.Flags().Int("prep", 0, "Preparation minutes")
	add.Flags().Int("cook", 0, "Cooking minutes")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recipes",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			recipes, err := rt.engine.Catalog.ListRecipes()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recipes) == 0 {
				fmt.Fprintf(out, "No recipes found.\n")
				return nil
			}
			fmt.Fprintf(out, "Recipes:\n")
			for _, r := range recipes {
				fmt.Fprintf(out, "- ID: %s, Name: %s, Station: %s, Yield: %g, Version: %d\n", r.ID, r.Name, r.Station, r.BaseYield, r.Version)
			}
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			force, _ := cmd.Flags().GetBool("force")
			if err := rt.engine.Catalog.DeleteRecipe(args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted recipe %s\n", args[0])
			return nil
		}),
	}
	del.Flags().Bool("force", false, "Also remove the recipe from the menus that use it")

	cmd.AddCommand(add, list, del)
	return cmd
}

// parseLines reads recipe=qty pairs in menu order.
func parseLines(raw []string) ([]models.MenuLine, error) {
	lines := make([]models.MenuLine, 0, len(raw))
	for _, pair := range raw {
		recipeID, qty, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Wrapf(service.ErrValidation, "menu line %q must look like recipe=qty", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(qty), 64)
		if err != nil {
			return nil, errors.Wrapf(service.ErrValidation, "menu line %q: bad quantity", pair)
		}
		lines = append(lines, models.MenuLine{RecipeID: strings.TrimSpace(recipeID), QtyPerGuest: v})
	}
	return lines, nil
}

func menuCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "menu", Short: "Manage menus"}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a menu",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			f := cmd.Flags()
			id, _ := f.GetString("id")
			name, _ := f.GetString("name")
			price, _ := f.GetFloat64("price")
			raw, _ := f.GetStringArray("line")
			lines, err := parseLines(raw)
			if err != nil {
				return err
			}
			id, err = rt.engine.Catalog.CreateMenu(models.Menu{ID: id, Name: name, Price: price, Lines: lines})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created menu '%s' with ID %s (%d lines)\n", name, id, len(lines))
			return nil
		}),
	}
	add.Flags().String("id", "", "Menu id (generated when empty)")
	add.Flags().String("name", "", "Menu name")
	add.Flags().Float64("price", 0, "Price per guest")
	add.Flags().StringArray("line", nil, "Menu line as recipe=qty_per_guest (repeatable, in serving order)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List menus",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			menus, err := rt.engine.Catalog.ListMenus()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(menus) == 0 {
				fmt.Fprintf(out, "No menus found.\n")
				return nil
			}
			fmt.Fprintf(out, "Menus:\n")
			for _, m := range menus {
				fmt.Fprintf(out, "- ID: %s, Name: %s, Status: %s, Lines: %d\n", m.ID, m.Name, m.Status, len(m.Lines))
				for _, l := range m.Lines {
					fmt.Fprintf(out, "    %s x %g per guest\n", l.RecipeID, l.QtyPerGuest)
				}
			}
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a menu",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			force, _ := cmd.Flags().GetBool("force")
			if err := rt.engine.Catalog.DeleteMenu(args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted menu %s\n", args[0])
			return nil
		}),
	}
	del.Flags().Bool("force", false, "Detach the menu from events that use it")

	cmd.AddCommand(add, list, del)
	return cmd
}

func parseDay(raw string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, errors.Wrapf(service.ErrValidation, "invalid date %q, expected YYYY-MM-DD", raw)
	}
	return d, nil
}

func eventCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "event", Short: "Manage events"}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			f := cmd.Flags()
			id, _ := f.GetString("id")
			name, _ := f.GetString("name")
			rawDate, _ := f.GetString("date")
			guests, _ := f.GetInt("guests")
			eventType, _ := f.GetString("type")
			menuID, _ := f.GetString("menu")
			date, err := parseDay(rawDate)
			if err != nil {
				return err
			}
			e := models.Event{ID: id, Name: name, Date: date, GuestCount: guests, Type: models.EventType(eventType)}
			if menuID != "" {
				e.MenuID = &menuID
			}
			id, err = rt.engine.Events.CreateEvent(e)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created event '%s' with ID %s\n", name, id)
			return nil
		}),
	}
	add.Flags().String("id", "", "Event id (generated when empty)")
	add.Flags().String("name", "", "Event name")
	add.Flags().String("date", "", "Event date (YYYY-MM-DD)")
	add.Flags().Int("guests", 0, "Guest count")
	add.Flags().String("type", "", "Event type (Boda, Cena, Comida, ...)")
	add.Flags().String("menu", "", "Menu id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List events, optionally within a date range",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			var from, to time.Time
			var err error
			if raw, _ := cmd.Flags().GetString("from"); raw != "" {
				if from, err = parseDay(raw); err != nil {
					return err
				}
			}
			if raw, _ := cmd.Flags().GetString("to"); raw != "" {
				if to, err = parseDay(raw); err != nil {
					return err
				}
			}
			events, err := rt.engine.Events.ListEvents(from, to)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintf(out, "No events found.\n")
				return nil
			}
			fmt.Fprintf(out, "Events:\n")
			for _, e := range events {
				menu := "-"
				if e.HasMenu() {
					menu = *e.MenuID
				}
				fmt.Fprintf(out, "- ID: %s, Name: %s, Date: %s, Guests: %d, Menu: %s\n",
					e.ID, e.Name, e.Date.Format(models.DateLayout), e.GuestCount, menu)
			}
			return nil
		}),
	}
	list.Flags().String("from", "", "First date (YYYY-MM-DD)")
	list.Flags().String("to", "", "Last date (YYYY-MM-DD)")

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an event and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			if err := rt.engine.Events.DeleteEvent(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted event %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func printTasks(out io.Writer, tasks []models.Task) {
	for _, t := range tasks {
		stale := ""
		if t.Stale {
			stale = " (stale)"
		}
		fmt.Fprintf(out, "- %s [%s] %s: %g portions, %g batches, %s%s\n",
			t.ID, t.Station, t.RecipeName, t.RequiredQuantity, t.Batches, t.State, stale)
	}
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Generate production tasks"}

	generate := &cobra.Command{
		Use:   "generate [event-id]",
		Short: "Generate or reconcile the tasks of an event",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			reset, _ := cmd.Flags().GetBool("reset")
			tasks, err := rt.engine.Generator.GenerateTasks(cmd.Context(), args[0], service.GenerateOptions{Reset: reset})
			if err != nil {
				log.WithEvent(args[0]).Errorf("Failed to generate tasks: %v", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Event %s has %d tasks:\n", args[0], len(tasks))
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		}),
	}
	generate.Flags().Bool("reset", false, "Discard existing tasks and their progress first")

	forDate := &cobra.Command{
		Use:   "generate-date [YYYY-MM-DD]",
		Short: "Generate tasks for every event on a date",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			day, err := parseDay(args[0])
			if err != nil {
				return err
			}
			reset, _ := cmd.Flags().GetBool("reset")
			byEvent, err := rt.engine.Generator.GenerateForDate(cmd.Context(), day, service.GenerateOptions{Reset: reset})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated tasks for %d events on %s\n", len(byEvent), args[0])
			return nil
		}),
	}
	forDate.Flags().Bool("reset", false, "Discard existing tasks and their progress first")

	cmd.AddCommand(generate, forDate)
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Work a single task"}

	move := &cobra.Command{
		Use:   "move [task-id] [from] [to]",
		Short: "Move a task between board lanes (ToDo, InProgress, Done)",
		Args:  cobra.ExactArgs(3),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			task, err := rt.engine.Board.MoveTask(cmd.Context(), args[0], models.TaskState(args[1]), models.TaskState(args[2]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved task %s (%s) to %s\n", task.ID, task.RecipeName, task.State)
			return nil
		}),
	}

	schedule := &cobra.Command{
		Use:   "schedule [task-id]",
		Short: "Assign a task to a date and shift",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			rawDate, _ := cmd.Flags().GetString("date")
			shift, _ := cmd.Flags().GetString("shift")
			assignee, _ := cmd.Flags().GetString("assignee")
			var date *time.Time
			if rawDate != "" {
				d, err := parseDay(rawDate)
				if err != nil {
					return err
				}
				date = &d
			}
			task, err := rt.engine.Planner.AssignShift(cmd.Context(), args[0], date, models.Shift(strings.ToUpper(shift)), assignee)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduled task %s for %s shift\n", task.ID, task.Shift)
			return nil
		}),
	}
	schedule.Flags().String("date", "", "Production date (YYYY-MM-DD)")
	schedule.Flags().String("shift", "", "MORNING or AFTERNOON")
	schedule.Flags().String("assignee", "", "Cook assigned to the task")

	timer := &cobra.Command{
		Use:   "timer [task-id]",
		Short: "Start or stop the task timer",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			task, err := rt.engine.Planner.ToggleTimer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if task.TimerStartedAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Timer started for task %s\n", task.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Timer stopped for task %s, %ds spent\n", task.ID, task.TimeSpentSeconds)
			}
			return nil
		}),
	}

	cmd.AddCommand(move, schedule, timer)
	return cmd
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board [event-id]",
		Short: "Show the kanban board of an event",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			view, err := rt.engine.Board.ListByEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(view.Stations) == 0 {
				fmt.Fprintf(out, "No tasks for event %s.\n", args[0])
				return nil
			}
			for _, lane := range view.Stations {
				fmt.Fprintf(out, "%s:\n", strings.ToUpper(string(lane.Station)))
				for _, state := range models.TaskStates {
					tasks := lane.ByState(state)
					fmt.Fprintf(out, "  %s (%d)\n", state, len(tasks))
					for _, t := range tasks {
						fmt.Fprintf(out, "    %s %s x%g\n", t.ID, t.RecipeName, t.Batches)
					}
				}
			}
			return nil
		}),
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "seed [file.yaml]",
		Short:       "Import recipes, menus and events from a YAML file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{inMemoryOK: "true"},
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			res, err := importer.New(rt.engine, log.GetLogger()).ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d recipes, %d menus, %d events (%d already present)\n",
				res.Recipes, res.Menus, res.Events, len(res.Skipped))
			if rt.cfg.DatabaseURL == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No database configured, nothing was saved.")
			}
			return nil
		}),
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Start the HTTP API",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{inMemoryOK: "true"},
		RunE: withEngine(func(cmd *cobra.Command, args []string, rt *session) error {
			if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs {
				log.UseJSON()
			}
			port := rt.cfg.HTTPPort
			if cmd.Flags().Changed("port") {
				port, _ = cmd.Flags().GetString("port")
			}
			if seedFile, _ := cmd.Flags().GetString("seed"); seedFile != "" {
				if _, err := importer.New(rt.engine, log.GetLogger()).ImportFile(cmd.Context(), seedFile); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return internal_http.StartServer(ctx, port, rt.engine, log.GetLogger())
		}),
	}
	cmd.Flags().String("port", config.DefaultHTTPPort, "Port to listen on (defaults to HTTP_PORT)")
	cmd.Flags().String("seed", "", "YAML file imported before serving")
	cmd.Flags().Bool("json-logs", false, "Emit logs as JSON")
	return cmd
}

// Execute runs the root command with a background context.
func Execute(rootCmd *cobra.Command) error {
	return rootCmd.ExecuteContext(context.Background())
}

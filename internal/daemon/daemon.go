package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/shuffle-empire/shuffle/internal/api"
	"github.com/shuffle-empire/shuffle/internal/app/game"
	"github.com/shuffle-empire/shuffle/internal/app/scheduler"
	"github.com/shuffle-empire/shuffle/internal/domain"
	"github.com/shuffle-empire/shuffle/internal/infra/catalog"
	"github.com/shuffle-empire/shuffle/internal/infra/savefile"
	"github.com/shuffle-empire/shuffle/internal/infra/sqlite"
)

// shutdownTimeout bounds the final save and HTTP drain together.
const shutdownTimeout = 10 * time.Second

// Daemon owns the engine and its collaborators for one process lifetime.
type Daemon struct {
	Config  Config
	Home    string
	Engine  *game.Engine
	History api.History // nil for the json backend

	log  *slog.Logger
	db   *sqlite.DB
	slot string
}

// New builds the catalog, store and engine. The engine is at fresh state
// until Load is called.
func New(home string, cfg Config, log *slog.Logger) (*Daemon, error) {
	if log == nil {
		log = slog.Default()
	}
	d := &Daemon{Config: cfg, Home: home, log: log}

	cat, err := catalog.LoadFile(cfg.CatalogPath(home))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	opts := []game.Option{game.WithLogger(log)}
	var store interface {
		domain.SnapshotStore
		Slot() string
	}
	dir := cfg.DataDir(home)
	saveAt := dir

	switch cfg.Storage.Backend {
	case BackendJSON:
		fs := savefile.New(dir, cfg.Storage.Slot)
		store = fs
		saveAt = fs.Path()
	default:
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, err
		}
		d.db = db
		s := sqlite.NewStore(db, cfg.Storage.Slot)
		store = s
		d.History = s
		opts = append(opts, game.WithJournal(s))
	}
	d.slot = store.Slot()

	d.Engine = game.New(cat, store, cfg.Engine.GameConfig(), opts...)
	log.Debug("daemon built",
		"home", home,
		"backend", cfg.Storage.Backend,
		"slot", d.slot,
		"save_path", saveAt,
		"catalog_items", cat.Len())
	return d, nil
}

// Load restores the snapshot and applies offline progress.
func (d *Daemon) Load(ctx context.Context) (*domain.OfflineProgressSummary, error) {
	return d.Engine.LoadOrInit(ctx)
}

// Close releases the store.
func (d *Daemon) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// ─── Save Slots ─────────────────────────────────────────────────────────────

// SlotInfo describes one stored save slot.
type SlotInfo struct {
	Name    string
	SavedAt time.Time // zero when unknown
	Active  bool
}

// ErrActiveSlot is returned when deleting the slot this daemon plays on.
var ErrActiveSlot = errors.New("cannot delete the active slot (use reset)")

// Slot returns the active slot name.
func (d *Daemon) Slot() string { return d.slot }

// Slots lists every slot in the configured backend, sorted by name.
func (d *Daemon) Slots(ctx context.Context) ([]SlotInfo, error) {
	var raw map[string]int64
	var err error
	if d.db != nil {
		raw, err = d.db.ListSlots(ctx)
	} else {
		raw, err = savefile.List(ctx, d.Config.DataDir(d.Home))
	}
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	out := make([]SlotInfo, 0, len(raw))
	for name, ms := range raw {
		info := SlotInfo{Name: name, Active: name == d.slot}
		if ms > 0 {
			info.SavedAt = time.UnixMilli(ms)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteSlot removes a stored slot other than the active one.
func (d *Daemon) DeleteSlot(ctx context.Context, name string) error {
	if name == d.slot {
		return ErrActiveSlot
	}
	slots, err := d.Slots(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, s := range slots {
		found = found || s.Name == name
	}
	if !found {
		return fmt.Errorf("no save slot %q", name)
	}

	if d.db != nil {
		err = d.db.DeleteState(ctx, name)
	} else {
		err = savefile.New(d.Config.DataDir(d.Home), name).Delete()
	}
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", name, err)
	}
	d.log.Info("save slot deleted", "slot", name)
	return nil
}

// ─── Serve ──────────────────────────────────────────────────────────────────

// Serve runs accrual, periodic saves and the optional HTTP surface until ctx
// is cancelled, then drains HTTP and writes a final save. The engine must
// already be loaded.
func (d *Daemon) Serve(ctx context.Context) error {
	sched := scheduler.New(d.log, shutdownTimeout)
	eng := d.Engine

	if err := sched.Every("accrual", d.Config.Engine.Accrual(), func(_ context.Context, now time.Time) {
		eng.Tick(now)
	}); err != nil {
		return err
	}
	if err := sched.Every("save", d.Config.Engine.Save(), func(ctx context.Context, _ time.Time) {
		if err := eng.Save(ctx); err != nil {
			d.log.Warn("periodic save failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if d.Config.API.Enabled {
		hub := api.NewHub(d.log)
		s := api.NewServer(eng, d.log)
		s.SetHub(hub)
		if d.History != nil {
			s.SetHistory(d.History)
		}
		if d.Config.API.Metrics {
			s.EnableMetrics()
		}

		if err := sched.Every("push", d.Config.API.Push(), func(context.Context, time.Time) {
			if hub.ClientCount() > 0 {
				hub.Publish("snapshot", eng.Snapshot())
			}
		}); err != nil {
			return err
		}

		ln, err := net.Listen("tcp", d.Config.API.Addr())
		if err != nil {
			return fmt.Errorf("listen %s: %w", d.Config.API.Addr(), err)
		}
		// Request contexts derive from ctx so open SSE streams end on shutdown.
		srv := &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		go func() {
			d.log.Info("api listening", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.Error("api server stopped", "error", err)
			}
		}()
		sched.OnShutdown("http", srv.Shutdown)
		// Hijacked WebSocket connections outlive srv.Shutdown.
		sched.OnShutdown("websocket", hub.Shutdown)
	}

	sched.OnShutdown("final-save", func(ctx context.Context) error {
		eng.Tick(time.Now())
		return eng.Save(ctx)
	})

	d.log.Info("engine running",
		"accrual_interval", d.Config.Engine.Accrual(),
		"save_interval", d.Config.Engine.Save(),
		"api", d.Config.API.Enabled)
	return sched.Run(ctx)
}

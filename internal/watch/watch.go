// Package watch runs one observation pass: fetch, extract, classify against
// memory, notify and write memory back.
//
// Every network read happens before memory is loaded, so a failed fetch
// leaves the stored document exactly as it was.
package watch

import (
	"context"
	"errors"
	"time"

	"fleetwatch/internal/diff"
	"fleetwatch/internal/extract"
	"fleetwatch/internal/memory"
	"fleetwatch/internal/model"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/storage"
	logx "fleetwatch/pkg/logx"
)

// Fetcher returns the body of a page.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Notifier announces events. It never fails as a whole; per-channel
// outcomes come back as deliveries.
type Notifier interface {
	DispatchAll(ctx context.Context, events []model.Event) []notify.Delivery
}

// Config is what one pass needs to know. An empty ShopCategories turns the
// product watcher off.
type Config struct {
	FirmwareURL   string
	WaveThreshold int
	BuildRules    extract.BuildRules

	// ShopCategories lists category pages to scan. Empty disables the
	// product phase.
	ShopCategories []string
	ProductRules   extract.ProductRules
}

// Outcome is how a pass ended.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeAborted    Outcome = "aborted"
	OutcomeSaveFailed Outcome = "save_failed"
)

// ProductPhase says what the product watcher did during a pass.
type ProductPhase string

const (
	ProductsOff     ProductPhase = "off"
	ProductsSkipped ProductPhase = "skipped"
	ProductsSeeded  ProductPhase = "seeded"
	ProductsChecked ProductPhase = "checked"
)

// Report summarizes one pass.
type Report struct {
	Outcome Outcome
	// Err is the cause of an abort or a failed save.
	Err error

	Builds   int
	Products int
	Phase    ProductPhase

	Events     []model.Event
	Deliveries []notify.Delivery
	Saved      bool
	Took       time.Duration
}

// Watcher runs passes. It holds no state between passes; memory lives in
// the store.
type Watcher struct {
	cfg      Config
	fetcher  Fetcher
	store    storage.Store
	notifier Notifier
	log      logx.Logger
}

// New returns a watcher. A zero log discards output.
func New(cfg Config, f Fetcher, st storage.Store, n Notifier, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.WaveThreshold <= 0 {
		cfg.WaveThreshold = diff.DefaultWaveThreshold
	}
	return &Watcher{cfg: cfg, fetcher: f, store: st, notifier: n, log: log.With(logx.String("comp", "watch"))}
}

// Run executes one pass. It never returns an error; failures are logged and
// reflected in the report.
func (w *Watcher) Run(ctx context.Context) Report {
	start := time.Now()
	rep := w.run(ctx)
	rep.Took = time.Since(start)

	fields := []logx.Field{
		logx.String("outcome", string(rep.Outcome)),
		logx.Int("builds", rep.Builds),
		logx.Int("products", rep.Products),
		logx.String("product_phase", string(rep.Phase)),
		logx.Int("events", len(rep.Events)),
		logx.Int("deliveries", len(rep.Deliveries)),
		logx.Bool("saved", rep.Saved),
		logx.Duration("took", rep.Took),
	}
	if rep.Err != nil {
		w.log.Error("watch pass finished", append(fields, logx.Err(rep.Err))...)
	} else {
		w.log.Info("watch pass finished", fields...)
	}
	return rep
}

func (w *Watcher) run(ctx context.Context) Report {
	rep := Report{Phase: ProductsOff}

	markup, err := w.fetcher.Get(ctx, w.cfg.FirmwareURL)
	if err != nil {
		return abort(rep, err)
	}
	builds, err := extract.Builds(markup, w.cfg.BuildRules, w.log)
	if err != nil {
		return abort(rep, err)
	}
	rep.Builds = len(builds)

	products, phase := w.observeProducts(ctx)
	rep.Products = len(products)
	rep.Phase = phase

	doc, err := memory.Load(ctx, w.store, w.log)
	if err != nil {
		return abort(rep, err)
	}
	if doc.Layout() == memory.LayoutLegacy {
		v, c, _ := doc.Legacy()
		w.log.Info("migrating legacy memory", logx.String("last_version", v), logx.Int("last_count", c))
	}

	w.log.Info("current pending counts")
	for _, b := range builds {
		w.log.Info("build",
			logx.String("version", b.Version),
			logx.Int("pending", b.Pending),
			logx.Int("previous", doc.Versions[b.Version]),
		)
	}

	events := diff.Builds(builds, doc.Versions, w.cfg.WaveThreshold)
	rep.Events = append(rep.Events, events...)
	rep.Deliveries = append(rep.Deliveries, w.notifier.DispatchAll(ctx, events)...)

	if phase == ProductsChecked {
		res := diff.Products(products, doc.Products)
		doc.Products = res.Known
		if res.Seeded {
			rep.Phase = ProductsSeeded
			w.log.Info("initialized shop memory", logx.Int("products", len(res.Known)))
		} else {
			w.log.Info("shop checked", logx.Int("new_products", len(res.Events)))
		}
		rep.Events = append(rep.Events, res.Events...)
		rep.Deliveries = append(rep.Deliveries, w.notifier.DispatchAll(ctx, res.Events)...)
	}

	// Memory is written even when the pass is being cancelled; the events
	// above have already been announced.
	if err := memory.Save(context.WithoutCancel(ctx), w.store, doc); err != nil {
		rep.Outcome, rep.Err = OutcomeSaveFailed, err
		return rep
	}
	rep.Outcome, rep.Saved = OutcomeCompleted, true
	return rep
}

// observeProducts fetches and extracts the shop catalog. Any category
// failure skips the product phase for this pass: a partial catalog would
// otherwise re-announce the missing products once they come back.
func (w *Watcher) observeProducts(ctx context.Context) ([]model.Product, ProductPhase) {
	if len(w.cfg.ShopCategories) == 0 {
		return nil, ProductsOff
	}
	pages := make([]extract.Page, 0, len(w.cfg.ShopCategories))
	for _, u := range w.cfg.ShopCategories {
		w.log.Debug("fetching shop category", logx.String("url", u))
		body, err := w.fetcher.Get(ctx, u)
		if err != nil {
			w.log.Warn("shop category fetch failed; skipping product check", logx.String("url", u), logx.Err(err))
			return nil, ProductsSkipped
		}
		pages = append(pages, extract.Page{URL: u, Body: body})
	}
	products, err := extract.Products(pages, w.cfg.ProductRules, w.log)
	if err != nil {
		if errors.Is(err, extract.ErrNoProducts) {
			w.log.Warn("no shop products found; skipping product check")
		} else {
			w.log.Warn("shop extraction failed; skipping product check", logx.Err(err))
		}
		return nil, ProductsSkipped
	}
	w.log.Info("shop products found", logx.Int("count", len(products)), logx.Int("categories", len(pages)))
	return products, ProductsChecked
}

func abort(rep Report, err error) Report {
	rep.Outcome, rep.Err = OutcomeAborted, err
	return rep
}

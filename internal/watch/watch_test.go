package watch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/extract"
	"fleetwatch/internal/fetch"
	"fleetwatch/internal/model"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/storage"
	logx "fleetwatch/pkg/logx"
)

const (
	firmwareURL = "https://fw.test/firmware.php"
	chargingURL = "https://shop.test/category/charging"
	apparelURL  = "https://shop.test/category/apparel"
)

func firmwarePage(rows ...string) []byte {
	out := "<table><tr><th>Version</th><th>a</th><th>b</th><th>Pending</th></tr>"
	for _, r := range rows {
		out += r
	}
	return []byte(out + "</table>")
}

func row(version, pending string) string {
	return "<tr><td>" + version + "</td><td>1</td><td>1</td><td>" + pending + "</td></tr>"
}

type fakeFetcher struct {
	pages map[string][]byte
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	b, ok := f.pages[url]
	if !ok {
		return nil, errors.New("no page for " + url)
	}
	return b, nil
}

// recorder stands in for the dispatcher. fail makes every delivery fail.
type recorder struct {
	events []model.Event
	fail   bool
}

func (r *recorder) DispatchAll(_ context.Context, events []model.Event) []notify.Delivery {
	var out []notify.Delivery
	for _, ev := range events {
		r.events = append(r.events, ev)
		d := notify.Delivery{Channel: "rec", Kind: ev.Kind, Subject: ev.Subject(), Status: notify.StatusSent}
		if r.fail {
			d.Status, d.Err = notify.StatusFailed, errors.New("down")
		}
		out = append(out, d)
	}
	return out
}

type harness struct {
	path    string
	store   storage.Store
	fetcher *fakeFetcher
	rec     *recorder
	w       *Watcher
}

func newHarness(t *testing.T, withShop bool) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.json")
	st, err := storage.Open(storage.Config{Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		path:    path,
		store:   st,
		fetcher: &fakeFetcher{pages: map[string][]byte{}, errs: map[string]error{}},
		rec:     &recorder{},
	}
	cfg := Config{FirmwareURL: firmwareURL, WaveThreshold: 5}
	if withShop {
		cfg.ShopCategories = []string{chargingURL, apparelURL}
		cfg.ProductRules = extract.ProductRules{BaseURL: "https://shop.test"}
	}
	h.w = New(cfg, h.fetcher, st, h.rec, logx.Nop())
	return h
}

func (h *harness) writeMemory(t *testing.T, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.path, []byte(doc), 0o644))
}

func (h *harness) readMemory(t *testing.T) map[string]any {
	t.Helper()
	b, err := os.ReadFile(h.path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestRunNewBuildAndWave(t *testing.T) {
	h := newHarness(t, false)
	h.writeMemory(t, `{"versions":{"2024.1":10,"2024.2":10}}`)
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.1", "15"), row("2024.2", "14"), row("2024.3", "2"))

	rep := h.w.Run(context.Background())

	require.Equal(t, OutcomeCompleted, rep.Outcome)
	assert.True(t, rep.Saved)
	assert.Equal(t, []model.Event{
		{Kind: model.EventWave, Version: "2024.1", Pending: 15, Delta: 5},
		{Kind: model.EventNewBuild, Version: "2024.3", Pending: 2},
	}, h.rec.events)
	assert.Equal(t, map[string]any{"2024.1": 15.0, "2024.2": 14.0, "2024.3": 2.0}, h.readMemory(t)["versions"])
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, true)
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.1", "40"))
	h.fetcher.pages[chargingURL] = []byte(`<a href="/product/mug">Mug</a><span>$20</span>`)
	h.fetcher.pages[apparelURL] = []byte(`<a href="/product/cap">Cap</a>`)

	first := h.w.Run(context.Background())
	require.Equal(t, OutcomeCompleted, first.Outcome)
	assert.Len(t, first.Events, 1)
	assert.Equal(t, ProductsSeeded, first.Phase)

	before, err := os.ReadFile(h.path)
	require.NoError(t, err)

	second := h.w.Run(context.Background())
	require.Equal(t, OutcomeCompleted, second.Outcome)
	assert.Empty(t, second.Events)
	assert.Equal(t, ProductsChecked, second.Phase)

	after, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestRunFirmwareFetchFailureLeavesMemoryUntouched(t *testing.T) {
	h := newHarness(t, true)
	const stored = `{"last_version": "2024.1", "last_count": 7, "note": 1}`
	h.writeMemory(t, stored)
	h.fetcher.errs[firmwareURL] = fetch.ErrStatus

	rep := h.w.Run(context.Background())

	assert.Equal(t, OutcomeAborted, rep.Outcome)
	assert.ErrorIs(t, rep.Err, fetch.ErrStatus)
	assert.False(t, rep.Saved)
	assert.Empty(t, h.rec.events)
	assert.Equal(t, []string{firmwareURL}, h.fetcher.calls)

	b, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, stored, string(b))
}

func TestRunStructuralDriftAborts(t *testing.T) {
	h := newHarness(t, false)
	const stored = `{"versions":{"2024.1":3}}`
	h.writeMemory(t, stored)
	h.fetcher.pages[firmwareURL] = []byte(`<p>Down for maintenance</p>`)

	rep := h.w.Run(context.Background())

	assert.Equal(t, OutcomeAborted, rep.Outcome)
	assert.ErrorIs(t, rep.Err, extract.ErrNoBuilds)
	b, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, stored, string(b))
}

func TestRunCorruptMemoryAborts(t *testing.T) {
	h := newHarness(t, false)
	h.writeMemory(t, `{"versions": {"2024.1": "lots"}}`)
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.1", "3"))

	rep := h.w.Run(context.Background())

	assert.Equal(t, OutcomeAborted, rep.Outcome)
	assert.Empty(t, h.rec.events)
	b, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, `{"versions": {"2024.1": "lots"}}`, string(b))
}

func TestRunMigratesLegacyMemory(t *testing.T) {
	h := newHarness(t, false)
	h.writeMemory(t, `{"last_version": "2024.1", "last_count": 7}`)
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.1", "7"))

	rep := h.w.Run(context.Background())

	require.Equal(t, OutcomeCompleted, rep.Outcome)
	assert.Empty(t, h.rec.events)
	m := h.readMemory(t)
	assert.Equal(t, map[string]any{"2024.1": 7.0}, m["versions"])
	assert.NotContains(t, m, "last_version")
	assert.NotContains(t, m, "last_count")
}

func TestRunNotificationFailureStillSaves(t *testing.T) {
	h := newHarness(t, false)
	h.rec.fail = true
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.5", "1"))

	rep := h.w.Run(context.Background())

	require.Equal(t, OutcomeCompleted, rep.Outcome)
	require.Len(t, rep.Deliveries, 1)
	assert.Equal(t, notify.StatusFailed, rep.Deliveries[0].Status)
	assert.Equal(t, map[string]any{"2024.5": 1.0}, h.readMemory(t)["versions"])

	// Remembered, so the next pass does not announce it again.
	h.rec.fail = false
	again := h.w.Run(context.Background())
	assert.Empty(t, again.Events)
}

func TestRunShopFailureSkipsProductsButSavesBuilds(t *testing.T) {
	h := newHarness(t, true)
	h.writeMemory(t, `{"versions":{},"products":{"mug":{"name":"Mug","price":"","url":"https://shop.test/product/mug"}}}`)
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.6", "4"))
	h.fetcher.pages[chargingURL] = []byte(`<a href="/product/mug">Mug</a><a href="/product/new-thing">New Thing</a>`)
	h.fetcher.errs[apparelURL] = errors.New("timeout")

	rep := h.w.Run(context.Background())

	require.Equal(t, OutcomeCompleted, rep.Outcome)
	assert.Equal(t, ProductsSkipped, rep.Phase)
	require.Len(t, h.rec.events, 1)
	assert.Equal(t, model.EventNewBuild, h.rec.events[0].Kind)

	m := h.readMemory(t)
	assert.Equal(t, map[string]any{"2024.6": 4.0}, m["versions"])
	products := m["products"].(map[string]any)
	assert.Len(t, products, 1)
	assert.Contains(t, products, "mug")
}

func TestRunAnnouncesOnlyUnknownProducts(t *testing.T) {
	h := newHarness(t, true)
	h.writeMemory(t, `{"versions":{"2024.1":1},"products":{"mug":{"name":"Mug","price":"","url":"https://shop.test/product/mug"}}}`)
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.1", "1"))
	h.fetcher.pages[chargingURL] = []byte(`<a href="/product/mug">Mug</a>`)
	h.fetcher.pages[apparelURL] = []byte(`<div><a href="/product/hoodie">Hoodie</a><span>$65</span></div>`)

	rep := h.w.Run(context.Background())

	require.Equal(t, OutcomeCompleted, rep.Outcome)
	require.Len(t, h.rec.events, 1)
	assert.Equal(t, model.Product{ID: "hoodie", Name: "Hoodie", Price: "$65", URL: "https://shop.test/product/hoodie"}, h.rec.events[0].Product)
	assert.Contains(t, h.readMemory(t)["products"], "hoodie")
}

func TestRunIDOnlyProductMemoryIsNotReseeded(t *testing.T) {
	h := newHarness(t, true)
	h.writeMemory(t, `{"versions":{"2024.1":40},"products":{"mug":true}}`)
	h.fetcher.pages[firmwareURL] = firmwarePage(row("2024.1", "40"))
	h.fetcher.pages[chargingURL] = []byte(`<a href="/product/mug">Mug</a>`)
	h.fetcher.pages[apparelURL] = []byte(`<a href="/product/cap">Cap</a>`)

	rep := h.w.Run(context.Background())

	require.Equal(t, OutcomeCompleted, rep.Outcome)
	assert.Equal(t, ProductsChecked, rep.Phase)
	require.Len(t, h.rec.events, 1)
	assert.Equal(t, "cap", h.rec.events[0].Product.ID)

	products := h.readMemory(t)["products"].(map[string]any)
	assert.Contains(t, products, "mug")
	assert.Contains(t, products, "cap")
}

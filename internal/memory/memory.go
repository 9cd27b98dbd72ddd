// Package memory decodes, migrates and encodes the persisted watcher state.
//
// Two on-disk layouts exist:
//
//	legacy:    {"last_version": "2024.1", "last_count": 7}
//	versioned: {"versions": {"2024.1": 7}, "products": {...}}
//
// Both decode into one Document. Legacy keys are kept on the Document until
// Encode, which always writes the versioned layout. Unknown top-level keys
// are carried through untouched.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fleetwatch/internal/model"
	"fleetwatch/internal/storage"
	logx "fleetwatch/pkg/logx"
)

const (
	keyVersions    = "versions"
	keyProducts    = "products"
	keyLastVersion = "last_version"
	keyLastCount   = "last_count"
)

// Layout is the shape a document was stored in.
type Layout int

const (
	LayoutEmpty Layout = iota
	LayoutLegacy
	LayoutVersioned
)

func (l Layout) String() string {
	switch l {
	case LayoutLegacy:
		return "legacy"
	case LayoutVersioned:
		return "versioned"
	default:
		return "empty"
	}
}

// ErrCorrupt marks a stored document that cannot be read safely. A run that
// sees it aborts without touching the store.
var ErrCorrupt = errors.New("memory document corrupt")

// Document is the in-memory form of the persisted state.
type Document struct {
	// Versions maps build version to its last known pending count. Never nil.
	Versions map[string]int
	// Products maps product id to the last known record. Nil means the
	// product watcher has not run yet (or the stored value was unusable).
	Products map[string]model.Product

	layout Layout
	legacy *legacyFields
	extra  map[string]json.RawMessage
}

type legacyFields struct {
	LastVersion string
	LastCount   int
}

// New returns an empty document.
func New() *Document {
	return &Document{Versions: map[string]int{}, extra: map[string]json.RawMessage{}}
}

func (d *Document) Layout() Layout { return d.layout }

// Legacy reports the single-build fields of a legacy document. They stay
// visible until the document is encoded.
func (d *Document) Legacy() (version string, count int, ok bool) {
	if d.legacy == nil {
		return "", 0, false
	}
	return d.legacy.LastVersion, d.legacy.LastCount, true
}

// Decode parses a stored document. Malformed JSON or wrong-typed build
// fields are errors; a wrong-typed products value is dropped with a warning
// so the product watcher re-seeds instead of blocking build tracking.
func Decode(data []byte, log logx.Logger) (*Document, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrCorrupt)
	}

	doc := &Document{extra: raw}

	if v, ok := raw[keyVersions]; ok {
		delete(raw, keyVersions)
		if err := decodeStrict(v, &doc.Versions); err != nil {
			return nil, fmt.Errorf("%w: versions: %v", ErrCorrupt, err)
		}
	}

	if v, ok := raw[keyLastVersion]; ok {
		delete(raw, keyLastVersion)
		var lv *string
		if err := decodeStrict(v, &lv); err != nil {
			return nil, fmt.Errorf("%w: last_version: %v", ErrCorrupt, err)
		}
		var lc int
		if c, ok := raw[keyLastCount]; ok {
			if err := decodeStrict(c, &lc); err != nil {
				return nil, fmt.Errorf("%w: last_count: %v", ErrCorrupt, err)
			}
		}
		if lv != nil {
			doc.legacy = &legacyFields{LastVersion: *lv, LastCount: lc}
		}
	}
	delete(raw, keyLastCount)

	if v, ok := raw[keyProducts]; ok {
		delete(raw, keyProducts)
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(v, &entries); err != nil {
			log.Warn("stored products unusable; product memory will be re-seeded", logx.Err(err))
		} else if entries != nil {
			doc.Products = decodeProducts(entries)
		}
	}

	migrate(doc)
	return doc, nil
}

// decodeProducts keeps every stored id. A value that is not a product record
// (e.g. `true` from an id-only memory) becomes an empty record for that id.
func decodeProducts(entries map[string]json.RawMessage) map[string]model.Product {
	products := make(map[string]model.Product, len(entries))
	for id, raw := range entries {
		var p model.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			p = model.Product{}
		}
		p.ID = id
		products[id] = p
	}
	return products
}

// migrate fills the versioned fields from a legacy layout. It only reads the
// legacy fields; Encode is what drops them.
func migrate(doc *Document) {
	switch {
	case doc.Versions != nil:
		doc.layout = LayoutVersioned
	case doc.legacy != nil:
		doc.layout = LayoutLegacy
		doc.Versions = map[string]int{doc.legacy.LastVersion: doc.legacy.LastCount}
	default:
		doc.layout = LayoutEmpty
		doc.Versions = map[string]int{}
	}
}

func decodeStrict(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Encode writes the full document in the versioned layout.
func Encode(doc *Document) ([]byte, error) {
	out := make(map[string]any, len(doc.extra)+2)
	for k, v := range doc.extra {
		out[k] = v
	}
	versions := doc.Versions
	if versions == nil {
		versions = map[string]int{}
	}
	out[keyVersions] = versions
	if doc.Products != nil {
		out[keyProducts] = doc.Products
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode memory: %w", err)
	}
	return b, nil
}

// Load reads the document from st. A store with nothing saved yields an
// empty document.
func Load(ctx context.Context, st storage.Store, log logx.Logger) (*Document, error) {
	data, ok, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	if !ok {
		return New(), nil
	}
	return Decode(data, log)
}

// Save encodes doc and replaces the stored document. The save has happened
// only when Save returns nil.
func Save(ctx context.Context, st storage.Store, doc *Document) error {
	b, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := st.Save(ctx, b); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	doc.legacy = nil
	doc.layout = LayoutVersioned
	return nil
}

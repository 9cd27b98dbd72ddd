// Package diff classifies fresh observations against remembered state.
//
// Both classifiers mutate the memory they are given: every observed entity
// ends up holding its latest value, whether or not an event was produced.
// Entities missing from the observation are left alone; absence is not
// treated as a rollback or removal.
package diff

import "fleetwatch/internal/model"

// DefaultWaveThreshold is the pending-count jump that marks a new rollout wave.
const DefaultWaveThreshold = 5

// Builds classifies each observed build against versions and updates
// versions in place. versions must be non-nil.
//
//	unseen              -> new build
//	p-last >= threshold -> wave (delta = p - last)
//	otherwise           -> steady, no event
func Builds(current []model.Build, versions map[string]int, threshold int) []model.Event {
	if threshold <= 0 {
		threshold = DefaultWaveThreshold
	}
	var events []model.Event
	for _, b := range current {
		last, seen := versions[b.Version]
		switch {
		case !seen:
			events = append(events, model.Event{Kind: model.EventNewBuild, Version: b.Version, Pending: b.Pending})
		case last <= b.Pending-threshold:
			events = append(events, model.Event{Kind: model.EventWave, Version: b.Version, Pending: b.Pending, Delta: b.Pending - last})
		}
		versions[b.Version] = b.Pending
	}
	return events
}

// ProductResult is the outcome of one product classification pass.
type ProductResult struct {
	// Known is the product memory after the pass. It is the map that was
	// passed in, or a fresh one when the pass seeded memory.
	Known  map[string]model.Product
	Events []model.Event
	// Seeded reports a first run: memory was filled without events.
	Seeded bool
}

// Products reports every product id not yet in known. When known is empty
// the pass only seeds memory, so a first deployment does not announce the
// whole catalog.
func Products(current []model.Product, known map[string]model.Product) ProductResult {
	if len(known) == 0 {
		seeded := make(map[string]model.Product, len(current))
		for _, p := range current {
			if _, dup := seeded[p.ID]; !dup {
				seeded[p.ID] = p
			}
		}
		return ProductResult{Known: seeded, Seeded: true}
	}

	var events []model.Event
	for _, p := range current {
		if _, ok := known[p.ID]; ok {
			continue
		}
		// Remember before anything is sent so a later failure cannot cause
		// a second announcement.
		known[p.ID] = p
		events = append(events, model.Event{Kind: model.EventNewProduct, Product: p})
	}
	return ProductResult{Known: known, Events: events}
}

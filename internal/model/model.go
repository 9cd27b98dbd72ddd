// Package model holds the observation and event types shared by the
// extractor, classifier, memory and notifier packages.
package model

// Build is one firmware version row: the version string and how many
// vehicles are still waiting to install it.
type Build struct {
	Version string
	Pending int
}

// Product is one shop catalog entry. Price may be empty when the page
// did not expose one near the product link.
type Product struct {
	ID    string `json:"-"`
	Name  string `json:"name"`
	Price string `json:"price"`
	URL   string `json:"url"`
}

type EventKind string

const (
	EventNewBuild   EventKind = "new_build"
	EventWave       EventKind = "wave"
	EventNewProduct EventKind = "new_product"
)

// Event is a classified transition that should be announced once per channel.
type Event struct {
	Kind EventKind

	// Build events.
	Version string
	Pending int
	Delta   int // wave only: Pending minus the last known count

	// Product events.
	Product Product
}

// Subject returns the entity id the event is about.
func (e Event) Subject() string {
	if e.Kind == EventNewProduct {
		return e.Product.ID
	}
	return e.Version
}

package notify

import (
	"fmt"
	"strings"

	"fleetwatch/internal/model"
)

// DefaultDetailURL is the build detail page; the version is appended.
const DefaultDetailURL = "https://www.teslafi.com/firmware.php?detail="

// ChatText renders an event as a Markdown chat message.
func ChatText(ev model.Event, detailURL string) string {
	if detailURL == "" {
		detailURL = DefaultDetailURL
	}
	switch ev.Kind {
	case model.EventNewBuild:
		return fmt.Sprintf("🚨 New Build Detected\n\n`%s`\n\nInitial Rollout: %d   – [TeslaFi](%s%s)",
			ev.Version, ev.Pending, detailURL, ev.Version)
	case model.EventWave:
		return fmt.Sprintf("🌊 New Wave Rolling Out\n\n`%s`\n\nRollout Size: %d   – [TeslaFi](%s%s)",
			ev.Version, ev.Delta, detailURL, ev.Version)
	case model.EventNewProduct:
		return productText("🛒 New Product on Tesla Shop:", ev.Product)
	default:
		return ""
	}
}

// PostText renders an event as a short public post.
func PostText(ev model.Event) string {
	switch ev.Kind {
	case model.EventNewBuild:
		return fmt.Sprintf("New build spotted. Tesla has started rolling out %s.", ev.Version)
	case model.EventWave:
		return fmt.Sprintf("A new wave for %s is rolling out now.", ev.Version)
	case model.EventNewProduct:
		return productText("New Product on Tesla Shop:", ev.Product)
	default:
		return ""
	}
}

func productText(header string, p model.Product) string {
	lines := []string{header, "", p.Name}
	if p.Price != "" {
		lines = append(lines, p.Price)
	}
	lines = append(lines, p.URL)
	return strings.Join(lines, "\n")
}

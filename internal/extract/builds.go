package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"fleetwatch/internal/model"
	logx "fleetwatch/pkg/logx"
)

// ErrNoBuilds means the firmware table had no recognizable version rows.
// Callers treat it as structural drift of the page, not as an empty fleet.
var ErrNoBuilds = errors.New("no firmware builds found")

// BuildRules describes which table rows count as firmware version rows.
//
// The page layout has shifted over time (pending column, row shape), so
// these are configuration rather than constants.
type BuildRules struct {
	// Prefix the first cell must start with (e.g. "20" for "2024.14.3").
	Prefix string
	// MaxLen is an exclusive upper bound on the first cell's rune length.
	MaxLen int
	// MinCells is the minimum number of <td> cells a version row must have.
	MinCells int
	// PendingColumn is the zero-based cell index holding the pending count.
	// Column 0 holds the version itself, so 0 means "use the default".
	PendingColumn int
}

// DefaultBuildRules matches the current firmware table layout.
func DefaultBuildRules() BuildRules {
	return BuildRules{Prefix: "20", MaxLen: 25, MinCells: 4, PendingColumn: 3}
}

func (r BuildRules) withDefaults() BuildRules {
	def := DefaultBuildRules()
	if r.Prefix == "" {
		r.Prefix = def.Prefix
	}
	if r.MaxLen <= 0 {
		r.MaxLen = def.MaxLen
	}
	if r.PendingColumn <= 0 {
		r.PendingColumn = def.PendingColumn
	}
	if r.MinCells <= r.PendingColumn {
		r.MinCells = r.PendingColumn + 1
	}
	return r
}

func (r BuildRules) isVersion(text string) bool {
	return strings.HasPrefix(text, r.Prefix) &&
		strings.Contains(text, ".") &&
		utf8.RuneCountInString(text) < r.MaxLen
}

// Builds parses the firmware status table into version rows in page order.
// The first row for a version wins; later duplicates (footers, summaries)
// are ignored.
func Builds(markup []byte, rules BuildRules, log logx.Logger) ([]model.Build, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	rules = rules.withDefaults()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse firmware page: %w", err)
	}

	var (
		out  []model.Build
		seen = map[string]struct{}{}
	)
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() == 0 {
			return
		}
		version := strings.TrimSpace(cols.First().Text())
		if !rules.isVersion(version) {
			return
		}
		if cols.Length() < rules.MinCells {
			log.Debug("version row without pending column", logx.String("version", version), logx.Int("cells", cols.Length()))
			return
		}

		if _, dup := seen[version]; dup {
			return
		}
		seen[version] = struct{}{}

		pending, perr := parsePending(cols.Eq(rules.PendingColumn).Text())
		if perr != nil {
			log.Warn("pending count unreadable; using 0", logx.String("version", version), logx.Err(perr))
		}
		out = append(out, model.Build{Version: version, Pending: pending})
	})

	if len(out) == 0 {
		return nil, ErrNoBuilds
	}
	return out, nil
}

// parsePending reads a pending-install cell such as "1,204".
// Anything that is not a plain non-negative integer yields 0 and an error
// describing why, so the caller can log it without failing the run.
func parsePending(raw string) (int, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" || !isDigits(s) {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

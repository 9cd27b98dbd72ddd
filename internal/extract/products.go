package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"fleetwatch/internal/model"
	logx "fleetwatch/pkg/logx"
)

// ErrNoProducts means none of the category pages had product links.
var ErrNoProducts = errors.New("no shop products found")

// Page is one fetched category page.
type Page struct {
	URL  string
	Body []byte
}

// ProductRules locate product links and prices on a category page. Zero
// fields take the defaults.
type ProductRules struct {
	// Marker is the path fragment identifying product links ("/product/").
	Marker string
	// BaseURL resolves relative links. Empty means the page URL.
	BaseURL string
	// Currency is the marker a price text must contain ("$").
	Currency string
}

// DefaultProductRules matches the Tesla Shop markup.
func DefaultProductRules() ProductRules {
	return ProductRules{Marker: "/product/", BaseURL: "https://shop.tesla.com", Currency: "$"}
}

func (r ProductRules) withDefaults() ProductRules {
	def := DefaultProductRules()
	if r.Marker == "" {
		r.Marker = def.Marker
	}
	if r.Currency == "" {
		r.Currency = def.Currency
	}
	return r
}

// Products collects product links across category pages. A product listed in
// several categories keeps the entry from the first page it appeared on.
func Products(pages []Page, rules ProductRules, log logx.Logger) ([]model.Product, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	rules = rules.withDefaults()

	var (
		out  []model.Product
		seen = map[string]struct{}{}
	)
	for _, page := range pages {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page.URL, err)
		}
		base, err := resolveBase(rules.BaseURL, page.URL)
		if err != nil {
			return nil, err
		}

		before := len(out)
		doc.Find(`a[href*=` + strconv.Quote(rules.Marker) + `]`).Each(func(_ int, a *goquery.Selection) {
			if len(a.Nodes) == 0 {
				return
			}
			link := a.Nodes[0]
			name := strippedText(link)
			href, _ := a.Attr("href")
			if name == "" || href == "" {
				return
			}

			id := productID(href, rules.Marker)
			if id == "" {
				return
			}
			if _, dup := seen[id]; dup {
				return
			}

			abs := href
			if ref, err := url.Parse(href); err == nil && base != nil {
				abs = base.ResolveReference(ref).String()
			}

			seen[id] = struct{}{}
			out = append(out, model.Product{
				ID:    id,
				Name:  name,
				Price: findPrice(link, rules.Currency),
				URL:   abs,
			})
		})
		log.Debug("category parsed", logx.String("url", page.URL), logx.Int("new_products", len(out)-before))
	}

	if len(out) == 0 {
		return nil, ErrNoProducts
	}
	return out, nil
}

func resolveBase(baseURL, pageURL string) (*url.URL, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = pageURL
	}
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	return u, nil
}

// productID returns the slug after the last marker, without query string or
// surrounding slashes: "/product/wall-connector?sku=1" -> "wall-connector".
func productID(href, marker string) string {
	i := strings.LastIndex(href, marker)
	if i < 0 {
		return ""
	}
	rest := href[i+len(marker):]
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		rest = rest[:q]
	}
	return strings.Trim(rest, "/")
}

// ---- price discovery ----

// priceStrategy looks for a price near a product link. Every strategy is
// total: it reports found/not-found and never fails.
type priceStrategy func(link *html.Node, currency string) (string, bool)

var priceStrategies = []priceStrategy{
	priceFromSiblings,
	priceFromParent,
}

func findPrice(link *html.Node, currency string) string {
	for _, s := range priceStrategies {
		if p, ok := s(link, currency); ok {
			return p
		}
	}
	return ""
}

func priceFromSiblings(link *html.Node, currency string) (string, bool) {
	for n := link.NextSibling; n != nil; n = n.NextSibling {
		var text string
		switch n.Type {
		case html.TextNode:
			text = strings.TrimSpace(n.Data)
		case html.ElementNode:
			text = strippedText(n)
		default:
			continue
		}
		if text == "" {
			continue
		}
		if looksLikePrice(text, currency) {
			return text, true
		}
	}
	return "", false
}

func priceFromParent(link *html.Node, currency string) (string, bool) {
	parent := link.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return "", false
	}
	for _, s := range strippedStrings(parent) {
		if looksLikePrice(s, currency) {
			return s, true
		}
	}
	return "", false
}

func looksLikePrice(text, currency string) bool {
	if !strings.Contains(text, currency) {
		return false
	}
	return strings.IndexFunc(text, unicode.IsDigit) >= 0
}

// strippedStrings returns the non-empty, trimmed text nodes under n in
// document order.
func strippedStrings(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func strippedText(n *html.Node) string {
	return strings.Join(strippedStrings(n), "")
}

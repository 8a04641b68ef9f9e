package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kmuchiri/pricewatch/models"
)

// Extract pulls candidate listings out of a raw search-results page. Only
// Title, Price, Availability and URL are filled; the caller stamps retailer
// and scrape time. Extraction is best effort: a document that cannot be
// parsed yields an empty slice, and a card that cannot be read is skipped.
func Extract(html, baseURL string, strategy Strategy) []models.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	spec, ok := strategySpecs[strategy]
	if !ok {
		spec = strategySpecs[StrategyGeneric]
	}

	cards := findCards(doc, spec.containers)
	if cards == nil {
		if strategy == StrategyGeneric {
			return scanAnchors(doc, baseURL)
		}
		return nil
	}

	var listings []models.Listing
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= spec.maxCards {
			return false
		}
		if l, ok := extractCard(card, spec, baseURL); ok {
			listings = append(listings, l)
		}
		return true
	})
	return listings
}

// findCards returns the first container selector's matches, or nil when none
// of the selectors hit.
func findCards(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if cards := doc.Find(sel); cards.Length() > 0 {
			return cards
		}
	}
	return nil
}

func extractCard(card *goquery.Selection, spec strategySpec, baseURL string) (models.Listing, bool) {
	title := firstText(card, spec.titles)
	if title == "" {
		title = Truncate(NormalizeText(card.Text()), maxTitleLen)
	}
	if title == "" {
		return models.Listing{}, false
	}

	l := models.Listing{Title: title, URL: baseURL}
	if v, ok := NormalizePrice(firstText(card, spec.prices)); ok {
		l.Price = &v
	}
	if href, ok := card.Find("a").First().Attr("href"); ok && href != "" {
		l.URL = resolveURL(baseURL, href)
	}
	return l, true
}

// scanAnchors is the generic strategy's last resort: walk the page's anchors
// and keep the ones whose surrounding text looks like it carries a price.
func scanAnchors(doc *goquery.Document, baseURL string) []models.Listing {
	var listings []models.Listing
	doc.Find("a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= maxAnchors {
			return false
		}
		text := NormalizeText(a.Text())
		nearby := text
		if parent := a.Parent(); parent.Length() > 0 {
			nearby = NormalizeText(parent.Text())
		}
		if !hasPriceSignal(nearby) {
			return true
		}

		l := models.Listing{
			Title: Truncate(text, maxTitleLen),
			URL:   baseURL,
		}
		if v, ok := NormalizePrice(nearby); ok {
			l.Price = &v
		}
		if href, ok := a.Attr("href"); ok && href != "" {
			l.URL = resolveURL(baseURL, href)
		}
		listings = append(listings, l)
		return true
	})
	return listings
}

// hasPriceSignal reports whether text contains a currency marker or a digit.
func hasPriceSignal(text string) bool {
	if strings.Contains(text, "KSh") || strings.Contains(text, "KES") {
		return true
	}
	return strings.ContainsAny(text, "0123456789")
}

// firstText returns the normalized text of the first selector that matches,
// or "".
func firstText(card *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if el := card.Find(sel).First(); el.Length() > 0 {
			if text := NormalizeText(el.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func resolveURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return baseURL
	}
	return base.ResolveReference(ref).String()
}

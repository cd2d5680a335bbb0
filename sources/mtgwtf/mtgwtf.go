// Package mtgwtf scrapes the card-text reference site. It is the secondary
// source: the set listing maps collector numbers to card page slugs, and the
// card pages serve oracle text with symbols and paragraphs already rendered,
// so no layout repair is needed.
package mtgwtf

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"setbuilder/fetch"
	"setbuilder/log"
	"setbuilder/sources"
)

const (
	defaultBaseURL = "https://mtg.wtf"

	// Hard stop mirroring the checklist page cap, so a markup change can't
	// turn pagination into an endless crawl.
	maxListingPages = 10
)

// Provider is the card-text reference site adapter.
type Provider struct {
	client *fetch.Client
}

// NewProvider builds a Provider targeting the live site; options can
// override the defaults.
func NewProvider(options ...fetch.ClientOption) *Provider {
	clientOptions := append([]fetch.ClientOption{
		fetch.WithBaseURL(defaultBaseURL),
	}, options...)

	return &Provider{client: fetch.NewClient(clientOptions...)}
}

// Tag returns the site's tag.
func (p *Provider) Tag() sources.Tag {
	return sources.TagMtgWtf
}

// IdentifierMap pages through the set listing and returns the collector
// number to card slug mapping. Pagination stops at the first page with no
// card table or no next-page link. A page fetch failure ends pagination
// early: the entries gathered so far are still returned.
func (p *Provider) IdentifierMap(ctx context.Context, set sources.SetInfo) (sources.IdentifierMap, error) {
	ids := sources.IdentifierMap{}
	listingPath := "/set/" + strings.ToLower(set.Code)

	for pageNumber := 1; pageNumber <= maxListingPages; pageNumber++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(pageNumber))

		body, err := p.client.Get(ctx, listingPath, params)
		if err != nil {
			if ctx.Err() != nil {
				return ids, ctx.Err()
			}
			log.Warnw("couldn't fetch set listing page", "source", p.Tag(), "set", set.Code, "page", pageNumber, "error", err)
			break
		}

		page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			log.Warnw("couldn't parse set listing page", "source", p.Tag(), "set", set.Code, "page", pageNumber, "error", err)
			break
		}

		if page.Find("table.cards").Length() == 0 {
			break
		}

		p.collectListingRows(page, set, pageNumber, ids)

		if page.Find("a.next_page").Length() == 0 {
			break
		}
	}

	return ids, nil
}

func (p *Provider) collectListingRows(page *goquery.Document, set sources.SetInfo, pageNumber int, ids sources.IdentifierMap) {
	page.Find("table.cards tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("td").Length() == 0 {
			// header row
			return
		}

		number := strings.TrimSpace(row.Find("td.number").Text())

		// The card slug is the link target without the endpoint prefix
		href := row.Find("td.name a").AttrOr("href", "")
		externalID := strings.TrimPrefix(href, "/card/")

		if len(number) == 0 || len(externalID) == 0 || externalID == href {
			log.Warnw("skipping malformed set listing row", "source", p.Tag(), "set", set.Code, "page", pageNumber, "number", number, "href", href)
			return
		}

		if previous, found := ids[number]; found {
			log.Warnw("duplicate collector number in set listing", "source", p.Tag(), "set", set.Code, "number", number, "previous", previous, "new", externalID)
		}
		ids[number] = externalID
	})
}

// Cards fetches a card page by its slug. The site gives every face its own
// page, so the result holds at most one entry. Fetch and parse failures
// degrade to an empty result.
func (p *Provider) Cards(ctx context.Context, externalID string, set sources.SetInfo) ([]sources.CardFacts, error) {
	body, err := p.client.Get(ctx, "/card/"+externalID, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnw("couldn't fetch card page", "source", p.Tag(), "set", set.Code, "externalID", externalID, "error", err)
		return nil, nil
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warnw("couldn't parse card page", "source", p.Tag(), "set", set.Code, "externalID", externalID, "error", err)
		return nil, nil
	}

	// The title anchor holds the bare name, the mana cost sits in a
	// sibling span
	name := strings.TrimSpace(page.Find("h1.card_title a").First().Text())
	typeLine := strings.TrimSpace(page.Find("div.typeline").First().Text())
	if len(name) == 0 || len(typeLine) == 0 {
		log.Warnw("card page missing name or type line", "source", p.Tag(), "set", set.Code, "externalID", externalID)
		return nil, nil
	}

	facts := sources.CardFacts{
		ExternalID: externalID,
		Name:       name,
		TypeLine:   typeLine,
		Source:     sources.TagMtgWtf,
	}
	facts.RulesText = paragraphText(page.Find("div.oracle p"))
	facts.FlavorText = paragraphText(page.Find("div.flavor p"))

	return []sources.CardFacts{facts}, nil
}

// paragraphText joins the selection's paragraphs with line breaks. Returns
// nil when there are no paragraphs or all of them are blank.
func paragraphText(paragraphs *goquery.Selection) *string {
	var lines []string
	paragraphs.Each(func(_ int, paragraph *goquery.Selection) {
		lines = append(lines, strings.TrimSpace(paragraph.Text()))
	})

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(text) == 0 {
		return nil
	}

	return &text
}

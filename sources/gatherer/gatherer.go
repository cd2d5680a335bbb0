// Package gatherer scrapes the official card database site. It is the
// primary source: the checklist endpoint maps collector numbers to
// multiverse IDs, and the card detail endpoint serves the printed text of
// every face a multiverse ID renders.
package gatherer

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"setbuilder/fetch"
	"setbuilder/log"
	"setbuilder/sources"
)

const (
	defaultBaseURL  = "https://gatherer.wizards.com"
	checklistPath   = "/Pages/Search/Default.aspx"
	cardDetailsPath = "/Pages/Card/Details.aspx"

	// The checklist search never paginates past this. Kept as a hard stop so
	// a site markup change can't turn pagination into an endless crawl.
	maxChecklistPages = 10
)

var (
	checklistTableXPath *xpath.Expr
	checklistRowXPath   *xpath.Expr
	numberCellXPath     *xpath.Expr
	nameLinkXPath       *xpath.Expr
	pagingControlsXPath *xpath.Expr
	pagingAnchorXPath   *xpath.Expr
	cardColumnXPath     *xpath.Expr
	fieldRowXPath       *xpath.Expr
	fieldLabelXPath     *xpath.Expr
	fieldValueXPath     *xpath.Expr
	cardTextBoxXPath    *xpath.Expr
	flavorTextBoxXPath  *xpath.Expr
)

func init() {
	checklistTableXPath = xpath.MustCompile(`//table[contains(@class,'checklist')]`)
	checklistRowXPath = xpath.MustCompile(`//tr[contains(@class,'cardItem')]`)
	numberCellXPath = xpath.MustCompile(`/td[contains(@class,'number')]`)
	nameLinkXPath = xpath.MustCompile(`/td[contains(@class,'name')]/a`)
	pagingControlsXPath = xpath.MustCompile(`//div[contains(@class,'pagingcontrols')]`)
	pagingAnchorXPath = xpath.MustCompile(`//a`)
	cardColumnXPath = xpath.MustCompile(`//td[contains(@class,'rightCol')]`)
	fieldRowXPath = xpath.MustCompile(`//div[contains(@class,'row')]`)
	fieldLabelXPath = xpath.MustCompile(`/div[contains(@class,'label')]`)
	fieldValueXPath = xpath.MustCompile(`/div[contains(@class,'value')]`)
	cardTextBoxXPath = xpath.MustCompile(`//div[contains(@class,'cardtextbox')]`)
	flavorTextBoxXPath = xpath.MustCompile(`//div[contains(@class,'flavortextbox')]`)
}

// Provider is the card database site adapter.
type Provider struct {
	client *fetch.Client
}

// NewProvider builds a Provider. The defaults target the live site with its
// standard rate limit and certificate verification off (the site has served
// broken chains for years); options can override any of them.
func NewProvider(options ...fetch.ClientOption) *Provider {
	clientOptions := append([]fetch.ClientOption{
		fetch.WithBaseURL(defaultBaseURL),
		fetch.WithInsecureTLS(),
	}, options...)

	return &Provider{client: fetch.NewClient(clientOptions...)}
}

// Tag returns the site's tag.
func (p *Provider) Tag() sources.Tag {
	return sources.TagGatherer
}

// IdentifierMap pages through the set's checklist and returns the collector
// number to multiverse ID mapping. Pagination stops at the first page with no
// checklist table or no forward paging control. A page fetch failure ends
// pagination early: the entries gathered so far are still returned.
func (p *Provider) IdentifierMap(ctx context.Context, set sources.SetInfo) (sources.IdentifierMap, error) {
	ids := sources.IdentifierMap{}

	for pageNumber := 0; pageNumber < maxChecklistPages; pageNumber++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(pageNumber))
		params.Set("output", "checklist")
		params.Set("set", `["`+set.Name+`"]`)

		body, err := p.client.Get(ctx, checklistPath, params)
		if err != nil {
			if ctx.Err() != nil {
				return ids, ctx.Err()
			}
			log.Warnw("couldn't fetch checklist page", "source", p.Tag(), "set", set.Code, "page", pageNumber, "error", err)
			break
		}

		page, err := htmlquery.Parse(bytes.NewReader(body))
		if err != nil {
			log.Warnw("couldn't parse checklist page", "source", p.Tag(), "set", set.Code, "page", pageNumber, "error", err)
			break
		}

		if htmlquery.QuerySelector(page, checklistTableXPath) == nil {
			break
		}

		p.collectChecklistRows(page, set, pageNumber, ids)

		if isLastChecklistPage(page) {
			break
		}
	}

	return ids, nil
}

func (p *Provider) collectChecklistRows(page *html.Node, set sources.SetInfo, pageNumber int, ids sources.IdentifierMap) {
	for _, row := range htmlquery.QuerySelectorAll(page, checklistRowXPath) {
		numberCell := htmlquery.QuerySelector(row, numberCellXPath)
		nameLink := htmlquery.QuerySelector(row, nameLinkXPath)
		if numberCell == nil || nameLink == nil {
			log.Warnw("skipping malformed checklist row", "source", p.Tag(), "set", set.Code, "page", pageNumber)
			continue
		}

		number := strings.TrimSpace(htmlquery.InnerText(numberCell))

		// The multiverse ID is the last piece of the link's query string
		href := htmlquery.SelectAttr(nameLink, "href")
		pieces := strings.SplitN(href, "=", 3)
		externalID := pieces[len(pieces)-1]

		if len(number) == 0 || len(externalID) == 0 || externalID == href {
			log.Warnw("skipping malformed checklist row", "source", p.Tag(), "set", set.Code, "page", pageNumber, "number", number, "href", href)
			continue
		}

		if previous, found := ids[number]; found {
			log.Warnw("duplicate collector number in checklist", "source", p.Tag(), "set", set.Code, "number", number, "previous", previous, "new", externalID)
		}
		ids[number] = externalID
	}
}

// isLastChecklistPage reports whether the page's paging controls offer no way
// forward: no controls at all, no anchors, or a final anchor that is either
// marked as the current page (underlined) or has no ">" forward arrow.
func isLastChecklistPage(page *html.Node) bool {
	paging := htmlquery.QuerySelector(page, pagingControlsXPath)
	if paging == nil {
		return true
	}

	anchors := htmlquery.QuerySelectorAll(paging, pagingAnchorXPath)
	if len(anchors) == 0 {
		return true
	}

	last := anchors[len(anchors)-1]

	return strings.Contains(htmlquery.SelectAttr(last, "style"), "underline") ||
		!strings.Contains(htmlquery.InnerText(last), ">")
}

// Cards fetches the detail page for a multiverse ID and extracts the facts
// of every card face on it. Fetch and full-page parse failures degrade to an
// empty result; a single unparsable face is skipped without discarding the
// other faces.
func (p *Provider) Cards(ctx context.Context, externalID string, set sources.SetInfo) ([]sources.CardFacts, error) {
	params := url.Values{}
	params.Set("multiverseid", externalID)
	params.Set("printed", "true")

	body, err := p.client.Get(ctx, cardDetailsPath, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnw("couldn't fetch card details", "source", p.Tag(), "set", set.Code, "externalID", externalID, "error", err)
		return nil, nil
	}

	page, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		log.Warnw("couldn't parse card details page", "source", p.Tag(), "set", set.Code, "externalID", externalID, "error", err)
		return nil, nil
	}

	columns := htmlquery.QuerySelectorAll(page, cardColumnXPath)

	facts := make([]sources.CardFacts, 0, len(columns))
	for i, column := range columns {
		cardFacts, err := parseColumn(column, externalID, set.StripReminderText)
		if err != nil {
			log.Warnw("skipping card face", "source", p.Tag(), "set", set.Code, "externalID", externalID, "face", i, "error", err)
			continue
		}
		facts = append(facts, cardFacts)
	}

	return facts, nil
}

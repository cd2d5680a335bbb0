package sources

import "context"

// Tag identifies the site a piece of card data was scraped from.
type Tag string

const (
	// TagGatherer is the official card database site.
	TagGatherer Tag = "gatherer"
	// TagMtgWtf is the card-text reference site.
	TagMtgWtf Tag = "mtgwtf"
)

// CardFacts holds the fields extracted from a single card face on one site.
// A value is never modified once returned by a source.
type CardFacts struct {
	// ExternalID is the site's own identifier for the card's detail page
	ExternalID string
	// Name of the card
	Name string
	// TypeLine is the full printed type line
	TypeLine string
	// RulesText is nil when the page has no rules text, never the empty string
	RulesText *string
	// FlavorText is nil when the page has no flavor text, never the empty string
	FlavorText *string
	// Source is the site the facts were extracted from
	Source Tag
}

// IdentifierMap maps collector numbers to a site's card identifiers for one
// set. A repeated collector number on a later checklist page overwrites the
// earlier entry (logged by the source, not an error). An empty map means the
// site has no data for the set.
type IdentifierMap map[string]string

// SetInfo describes one set to build.
type SetInfo struct {
	// Code is the set code, e.g. "10E"
	Code string `json:"code"`
	// Name is the display name used for checklist queries, e.g. "Tenth Edition"
	Name string `json:"name"`
	// StripReminderText removes parenthesized reminder text from rules text
	StripReminderText bool `json:"stripReminderText,omitempty"`
}

// Source is a site adapter. Implementations degrade on fetch and parse
// failures: they log and return empty results rather than aborting a build.
// The one exception is context cancelation, which is returned as an error so
// callers can stop a build promptly.
type Source interface {
	// Tag returns the site's tag.
	Tag() Tag
	// IdentifierMap pages through the site's checklist for the set and
	// returns the collector number to external ID mapping.
	IdentifierMap(ctx context.Context, set SetInfo) (IdentifierMap, error)
	// Cards fetches a card detail page and extracts the facts of every card
	// face on it.
	Cards(ctx context.Context, externalID string, set SetInfo) ([]CardFacts, error)
}

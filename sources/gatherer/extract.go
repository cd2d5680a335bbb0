package gatherer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"setbuilder/sources"
)

const (
	cardNameLabel   = "Card Name"
	typesLabel      = "Types"
	cardTextLabel   = "Card Text"
	flavorTextLabel = "Flavor Text"

	// Stand-in for the card's own name while line breaks are inserted
	namePlaceholder = "(CN)"
)

var (
	// A lowercase or non-letter character directly followed by an uppercase
	// letter marks a missing line break. The excluded set covers sentence
	// openers that legitimately precede a capital: space, brackets, quotes,
	// both minus signs, plus, slash and the tail of an unstripped tag.
	lineBreakRegexp = regexp.MustCompile(`([^ ({"\-−+/>A-Z])([A-Z])`)

	// A space followed by a parenthesized run is reminder text
	reminderTextRegexp = regexp.MustCompile(` \([^)]*\)`)

	// Markup that survives into the text as escaped entities
	markupTagRegexp = regexp.MustCompile(`<[^>]+>`)
)

// parseColumn turns one detail-page card column into the facts of a single
// card face. The column lists its fields as label/value rows; the name and
// type fields are required, text fields are optional.
func parseColumn(column *html.Node, externalID string, stripReminder bool) (sources.CardFacts, error) {
	labelValues := map[string]*html.Node{}
	for _, row := range htmlquery.QuerySelectorAll(column, fieldRowXPath) {
		label := htmlquery.QuerySelector(row, fieldLabelXPath)
		value := htmlquery.QuerySelector(row, fieldValueXPath)
		if label == nil || value == nil {
			continue
		}
		labelValues[strings.TrimRight(strippedText(label), ":")] = value
	}

	nameValue, found := labelValues[cardNameLabel]
	if !found {
		return sources.CardFacts{}, fmt.Errorf("no %q field in card column", cardNameLabel)
	}
	typesValue, found := labelValues[typesLabel]
	if !found {
		return sources.CardFacts{}, fmt.Errorf("no %q field in card column", typesLabel)
	}

	name := strippedText(nameValue)

	facts := sources.CardFacts{
		ExternalID: externalID,
		Name:       name,
		TypeLine:   strippedText(typesValue),
		Source:     sources.TagGatherer,
	}

	if textValue, found := labelValues[cardTextLabel]; found {
		facts.RulesText = extractRulesText(textValue, name, stripReminder)
	}
	if flavorValue, found := labelValues[flavorTextLabel]; found {
		facts.FlavorText = extractFlavorText(flavorValue)
	}

	return facts, nil
}

// extractRulesText reconstructs the printed rules text from the field's text
// boxes: icon images become bracketed symbol codes, and missing line breaks
// are re-inserted. The card's own name is masked while the line-break rule
// runs so a capital inside the name never splits it. Returns nil when the
// field has no text.
func extractRulesText(value *html.Node, cardName string, stripReminder bool) *string {
	var lines []string

	for _, textBox := range htmlquery.QuerySelectorAll(value, cardTextBoxXPath) {
		line := strings.TrimSpace(textWithSymbols(textBox))

		line = strings.ReplaceAll(line, cardName, namePlaceholder)
		line = lineBreakRegexp.ReplaceAllString(line, "$1\n$2")
		line = strings.ReplaceAll(line, namePlaceholder, cardName)

		lines = append(lines, strings.Split(line, "\n")...)
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(text) == 0 {
		return nil
	}

	if stripReminder {
		text = stripReminderText(text)
		if len(text) == 0 {
			return nil
		}
	}

	text = markupTagRegexp.ReplaceAllString(text, "")
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}

	return &text
}

// extractFlavorText joins the field's flavor boxes with line breaks.
// Returns nil when the field has no text.
func extractFlavorText(value *html.Node) *string {
	var lines []string
	for _, flavorBox := range htmlquery.QuerySelectorAll(value, flavorTextBoxXPath) {
		lines = append(lines, strippedText(flavorBox))
	}

	flavor := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(flavor) == 0 {
		return nil
	}

	return &flavor
}

// stripReminderText removes parenthesized reminder text runs and collapses
// the double spaces left behind.
func stripReminderText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(reminderTextRegexp.ReplaceAllString(text, ""), "  ", " "))
}

// textWithSymbols renders the text under node with every inline icon image
// replaced by its bracketed symbol code. Unmapped alt texts keep their raw
// alt inside the same brackets.
func textWithSymbols(node *html.Node) string {
	var sb strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch {
			case child.Type == html.TextNode:
				sb.WriteString(child.Data)
			case child.Type == html.ElementNode && child.Data == "img":
				alt := htmlquery.SelectAttr(child, "alt")
				symbol, found := symbolMap[alt]
				if !found {
					symbol = alt
				}
				sb.WriteString("{" + symbol + "}")
			default:
				walk(child)
			}
		}
	}
	walk(node)

	return sb.String()
}

// strippedText concatenates the trimmed text fragments under node, the way
// the site's own rendering collapses the whitespace around inline markup.
func strippedText(node *html.Node) string {
	var sb strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				sb.WriteString(strings.TrimSpace(child.Data))
			} else {
				walk(child)
			}
		}
	}
	walk(node)

	return sb.String()
}

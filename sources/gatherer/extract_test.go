package gatherer

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"

	"setbuilder/sources"
)

func detailColumn(rows ...string) string {
	return `<html><body><table><tr><td class="rightCol">` + strings.Join(rows, "") + `</td></tr></table></body></html>`
}

func fieldRow(label, value string) string {
	return `<div class="row"><div class="label">` + label + `:</div><div class="value">` + value + `</div></div>`
}

func parseDetailColumn(t *testing.T, markup string) *html.Node {
	page, err := htmlquery.Parse(strings.NewReader(markup))
	assert.Nil(t, err)

	column := htmlquery.QuerySelector(page, cardColumnXPath)
	assert.NotNil(t, column)

	return column
}

func TestParseColumnRequiresName(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Types", "Instant"),
	))

	_, err := parseColumn(column, "1001", false)
	assert.NotNil(t, err)
}

func TestParseColumnRequiresTypes(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Shock"),
	))

	_, err := parseColumn(column, "1001", false)
	assert.NotNil(t, err)
}

func TestParseColumnOptionalFieldsAbsent(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Ornithopter"),
		fieldRow("Types", "Artifact Creature — Thopter"),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.Equal(t, sources.CardFacts{
		ExternalID: "1001",
		Name:       "Ornithopter",
		TypeLine:   "Artifact Creature — Thopter",
		Source:     sources.TagGatherer,
	}, facts)
}

func TestRulesTextMasksCardName(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Shock"),
		fieldRow("Types", "Instant"),
		fieldRow("Card Text", `<div class="cardtextbox">ShockDeals2damage</div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.NotNil(t, facts.RulesText)
	assert.Equal(t, "Shock\nDeals2damage", *facts.RulesText)
}

func TestRulesTextInsertsLineBreaks(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Boros Swiftblade"),
		fieldRow("Types", "Creature — Human Soldier"),
		fieldRow("Card Text", `<div class="cardtextbox">Double strikeWhenever Boros Swiftblade attacks, it gets +1/+0 until end of turn.</div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.NotNil(t, facts.RulesText)
	assert.Equal(t, "Double strike\nWhenever Boros Swiftblade attacks, it gets +1/+0 until end of turn.", *facts.RulesText)
}

func TestRulesTextSymbols(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Mana Fount"),
		fieldRow("Types", "Land"),
		fieldRow("Card Text", `<div class="cardtextbox"><img src="sym.ashx" alt="Tap" />: Add <img src="sym.ashx" alt="Red" /> or <img src="sym.ashx" alt="Chaos" />.</div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.NotNil(t, facts.RulesText)
	assert.Equal(t, "{T}: Add {R} or {Chaos}.", *facts.RulesText)
}

func TestRulesTextMultipleBoxes(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Serra Angel"),
		fieldRow("Types", "Creature — Angel"),
		fieldRow("Card Text", `<div class="cardtextbox">Flying</div><div class="cardtextbox">Vigilance</div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.NotNil(t, facts.RulesText)
	assert.Equal(t, "Flying\nVigilance", *facts.RulesText)
}

func TestRulesTextEmptyBecomesNil(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Blank Slate"),
		fieldRow("Types", "Artifact"),
		fieldRow("Card Text", `<div class="cardtextbox"></div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.Nil(t, facts.RulesText)

	column = parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Blank Slate"),
		fieldRow("Types", "Artifact"),
		fieldRow("Card Text", ``),
	))

	facts, err = parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.Nil(t, facts.RulesText)
}

func TestRulesTextStripReminder(t *testing.T) {
	markup := detailColumn(
		fieldRow("Card Name", "Ajani's Sunstriker"),
		fieldRow("Types", "Creature — Cat Cleric"),
		fieldRow("Card Text", `<div class="cardtextbox">Lifelink <i>(Damage dealt by this creature also causes you to gain that much life.)</i></div>`),
	)

	facts, err := parseColumn(parseDetailColumn(t, markup), "1001", false)
	assert.Nil(t, err)
	assert.NotNil(t, facts.RulesText)
	assert.Equal(t, "Lifelink (Damage dealt by this creature also causes you to gain that much life.)", *facts.RulesText)

	facts, err = parseColumn(parseDetailColumn(t, markup), "1001", true)
	assert.Nil(t, err)
	assert.NotNil(t, facts.RulesText)
	assert.Equal(t, "Lifelink", *facts.RulesText)
}

func TestRulesTextStripsMarkupTags(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Snapping Gnarlid"),
		fieldRow("Types", "Creature — Beast"),
		fieldRow("Card Text", `<div class="cardtextbox">You may cast this spell as though it had flash. &lt;i&gt;(Try it.)&lt;/i&gt;</div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.NotNil(t, facts.RulesText)
	assert.Equal(t, "You may cast this spell as though it had flash. (Try it.)", *facts.RulesText)
}

func TestFlavorTextJoinsBoxes(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Fencing Ace"),
		fieldRow("Types", "Creature — Human Soldier"),
		fieldRow("Flavor Text", `<div class="flavortextbox"><i>"The day will come."</i></div><div class="flavortextbox">—Ezrim, archmage</div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.NotNil(t, facts.FlavorText)
	assert.Equal(t, "\"The day will come.\"\n—Ezrim, archmage", *facts.FlavorText)
}

func TestFlavorTextEmptyBecomesNil(t *testing.T) {
	column := parseDetailColumn(t, detailColumn(
		fieldRow("Card Name", "Stoic Builder"),
		fieldRow("Types", "Creature — Human"),
		fieldRow("Flavor Text", `<div class="flavortextbox"></div>`),
	))

	facts, err := parseColumn(column, "1001", false)
	assert.Nil(t, err)
	assert.Nil(t, facts.FlavorText)
}

package builder

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"

	"setbuilder/log"
	"setbuilder/sources"
)

// recordSet accumulates the merged cards of one set. Methods are safe for
// concurrent use by the detail-fetch workers.
type recordSet struct {
	set sources.SetInfo

	mu    sync.Mutex
	cards map[string]*Card
	// matchable holds the collector numbers that existed before the
	// current source pass began. The name fallback only matches into
	// these, so two same-named cards arriving from one source stay
	// separate records no matter which worker lands first.
	matchable map[string]struct{}
}

func newRecordSet(set sources.SetInfo) *recordSet {
	return &recordSet{
		set:   set,
		cards: map[string]*Card{},
	}
}

// beginPass snapshots the collector numbers present before a source pass
// starts adding faces.
func (r *recordSet) beginPass() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.matchable = make(map[string]struct{}, len(r.cards))
	for number := range r.cards {
		r.matchable[number] = struct{}{}
	}
}

// addFaces deals a detail page's faces out to the collector numbers sharing
// its external ID, pairing them by sorted index. Spare faces or numbers are
// dropped with a warning.
func (r *recordSet) addFaces(tag sources.Tag, externalID string, numbers []string, faces []sources.CardFacts, backfill bool) {
	if len(faces) == 0 {
		return
	}

	if len(faces) != len(numbers) {
		log.Warnw("face count differs from the collector numbers sharing the identifier",
			"source", tag, "set", r.set.Code, "externalID", externalID, "faces", len(faces), "numbers", len(numbers))
	}

	count := len(numbers)
	if len(faces) < count {
		count = len(faces)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < count; i++ {
		r.mergeLocked(numbers[i], faces[i], backfill)
	}
}

// mergeLocked folds one face into the record for a collector number. An
// already-filled field always wins; a differing later value is dropped with
// a logged conflict. Backfill faces whose number is unknown are matched by
// name against records from earlier passes before a secondary-only record
// is created.
func (r *recordSet) mergeLocked(number string, facts sources.CardFacts, backfill bool) {
	card, found := r.cards[number]
	if !found && backfill {
		if match := r.findByNameLocked(facts.Name); match != nil {
			card = match
			found = true
		}
	}
	if !found {
		card = &Card{Number: number}
		card.Provenance.SecondaryOnly = backfill
		r.cards[number] = card
	}

	conflict := func(field, kept, dropped string) {
		log.Warnw("sources disagree on "+field,
			"set", r.set.Code, "number", card.Number, "kept", kept, "dropped", dropped, "droppedSource", facts.Source)
	}

	if len(facts.Name) > 0 {
		if len(card.Name) == 0 {
			card.Name = facts.Name
			card.Provenance.Name = facts.Source
		} else if card.Name != facts.Name {
			conflict("card name", card.Name, facts.Name)
		}
	}

	if len(facts.TypeLine) > 0 {
		if len(card.Type) == 0 {
			card.Type = facts.TypeLine
			card.Provenance.Type = facts.Source
		} else if card.Type != facts.TypeLine {
			conflict("type line", card.Type, facts.TypeLine)
		}
	}

	if facts.RulesText != nil {
		if card.Text == nil {
			card.Text = facts.RulesText
			card.Provenance.Text = facts.Source
		} else if *card.Text != *facts.RulesText {
			conflict("rules text", *card.Text, *facts.RulesText)
		}
	}

	if facts.FlavorText != nil {
		if card.FlavorText == nil {
			card.FlavorText = facts.FlavorText
			card.Provenance.FlavorText = facts.Source
		} else if *card.FlavorText != *facts.FlavorText {
			conflict("flavor text", *card.FlavorText, *facts.FlavorText)
		}
	}
}

// findByNameLocked locates the record whose normalized name matches the
// given one, scanning the pre-pass snapshot in collector number order so
// ties resolve the same way on every run. A single edit of distance covers
// the sites' accent and punctuation disagreements.
func (r *recordSet) findByNameLocked(name string) *Card {
	normalized := normalizeName(name)
	if len(normalized) == 0 {
		return nil
	}

	numbers := make([]string, 0, len(r.matchable))
	for number := range r.matchable {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool {
		return numberLess(numbers[i], numbers[j])
	})

	var closest *Card
	for _, number := range numbers {
		card := r.cards[number]
		other := normalizeName(card.Name)
		if other == normalized {
			return card
		}
		if closest == nil && matchr.Levenshtein(other, normalized) <= 1 {
			closest = card
		}
	}

	return closest
}

// ordered returns the records sorted by collector number.
func (r *recordSet) ordered() []*Card {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards := make([]*Card, 0, len(r.cards))
	for _, card := range r.cards {
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool {
		return numberLess(cards[i].Number, cards[j].Number)
	})

	return cards
}

// normalizeName lowercases a card name and strips everything but letters and
// digits, so punctuation and spacing differences between the sites don't
// break matching.
func normalizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

// Package output writes the reconciled sets to disk: one JSON file per set
// plus the aggregate files combining everything built so far.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"setbuilder/builder"
	"setbuilder/sources"
)

const (
	allSetsName      = "AllSets.json"
	allSetsArrayName = "AllSetsArray.json"
	allCardsName     = "AllCards.json"
)

// SetFile is the serialized form of one built set.
type SetFile struct {
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Cards []*builder.Card `json:"cards"`
}

// WriteSet writes a set's cards to <dir>/<CODE>.json, creating the directory
// if needed.
func WriteSet(dir string, set sources.SetInfo, cards []*builder.Card) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("couldn't create output directory %s: %w", dir, err)
	}

	if cards == nil {
		cards = []*builder.Card{}
	}
	payload, err := marshal(SetFile{
		Code:  strings.ToUpper(set.Code),
		Name:  set.Name,
		Cards: cards,
	})
	if err != nil {
		return fmt.Errorf("couldn't serialize set %s: %w", set.Code, err)
	}

	path := filepath.Join(dir, strings.ToUpper(set.Code)+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("couldn't write set file %s: %w", path, err)
	}

	return nil
}

// ReadSets loads every set file in dir, sorted by set code. Aggregate files
// are left out.
func ReadSets(dir string) ([]SetFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("couldn't read output directory %s: %w", dir, err)
	}

	var sets []SetFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || isAggregate(name) {
			continue
		}

		path := filepath.Join(dir, name)
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't read set file %s: %w", path, err)
		}

		var set SetFile
		if err := json.Unmarshal(payload, &set); err != nil {
			return nil, fmt.Errorf("couldn't parse set file %s: %w", path, err)
		}
		sets = append(sets, set)
	}

	sort.Slice(sets, func(i, j int) bool {
		return sets[i].Code < sets[j].Code
	})

	return sets, nil
}

// WriteAggregates combines the set files in dir into AllSets.json (code to
// set mapping), AllSetsArray.json (array sorted by code) and AllCards.json
// (card name to card mapping).
func WriteAggregates(dir string) error {
	sets, err := ReadSets(dir)
	if err != nil {
		return err
	}
	if sets == nil {
		sets = []SetFile{}
	}

	allSets := make(map[string]SetFile, len(sets))
	allCards := map[string]*builder.Card{}
	for _, set := range sets {
		allSets[set.Code] = set
		for _, card := range set.Cards {
			allCards[card.Name] = card
		}
	}

	for name, payload := range map[string]any{
		allSetsName:      allSets,
		allSetsArrayName: sets,
		allCardsName:     allCards,
	} {
		serialized, err := marshal(payload)
		if err != nil {
			return fmt.Errorf("couldn't serialize %s: %w", name, err)
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, serialized, 0o644); err != nil {
			return fmt.Errorf("couldn't write %s: %w", path, err)
		}
	}

	return nil
}

func isAggregate(name string) bool {
	return name == allSetsName || name == allSetsArrayName || name == allCardsName
}

// marshal renders 4-space indented JSON without HTML escaping, ending in a
// newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

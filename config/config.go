// Package config loads the list of sets a build runs over.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	scryfall "github.com/BlueMonday/go-scryfall"

	"setbuilder/log"
	"setbuilder/sources"
)

// Load reads a JSON array of set entries. Every entry needs a code and codes
// must be unique; both are hard configuration errors.
func Load(path string) ([]sources.SetInfo, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read set config %s: %w", path, err)
	}

	var sets []sources.SetInfo
	if err := json.Unmarshal(payload, &sets); err != nil {
		return nil, fmt.Errorf("couldn't parse set config %s: %w", path, err)
	}

	seen := map[string]bool{}
	for i, set := range sets {
		if len(set.Code) == 0 {
			return nil, fmt.Errorf("set config entry %d has no code", i)
		}
		code := strings.ToUpper(set.Code)
		if seen[code] {
			return nil, fmt.Errorf("duplicate set code %s in config", code)
		}
		seen[code] = true
	}

	return sets, nil
}

// SetLister lists the card catalog's sets. *scryfall.Client satisfies the
// interface.
type SetLister interface {
	ListSets(ctx context.Context) ([]scryfall.Set, error)
}

// Resolve fills in the display name of entries that don't carry one, looking
// their codes up in the card catalog. The catalog is only consulted when a
// name is actually missing; if it can't be reached, the nameless entries are
// dropped with a warning and the named ones still build. A code the live
// catalog doesn't know is a configuration error.
func Resolve(ctx context.Context, lister SetLister, sets []sources.SetInfo) ([]sources.SetInfo, error) {
	needed := false
	for _, set := range sets {
		if len(set.Name) == 0 {
			needed = true
			break
		}
	}
	if !needed {
		return sets, nil
	}

	names, listErr := catalogNames(ctx, lister)
	if listErr != nil {
		log.Warnw("couldn't reach the card catalog, dropping sets without names", "error", listErr)
	}

	resolved := make([]sources.SetInfo, 0, len(sets))
	for _, set := range sets {
		if len(set.Name) > 0 {
			resolved = append(resolved, set)
			continue
		}

		name, found := names[strings.ToUpper(set.Code)]
		if !found {
			if listErr != nil {
				log.Warnw("dropping set with unresolved name", "code", set.Code)
				continue
			}
			return nil, fmt.Errorf("set code %s is not in the card catalog", set.Code)
		}

		set.Name = name
		log.Debugw("resolved set name", "code", set.Code, "name", set.Name)
		resolved = append(resolved, set)
	}

	return resolved, nil
}

func catalogNames(ctx context.Context, lister SetLister) (map[string]string, error) {
	catalog, err := lister.ListSets(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(catalog))
	for _, entry := range catalog {
		names[strings.ToUpper(entry.Code)] = entry.Name
	}

	return names, nil
}

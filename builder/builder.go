// Package builder reconciles card facts from the configured sources into one
// record per collector number. The primary source defines a set's collector
// numbers and fills records first; secondary sources backfill missing fields
// and contribute cards the primary never listed.
package builder

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"setbuilder/log"
	"setbuilder/sources"
)

const defaultWorkers = 8

// Builder drives the sources for a set in priority order and merges their
// facts into Cards.
type Builder struct {
	primary     sources.Source
	secondaries []sources.Source
	workers     int
}

// Option configures a Builder.
type Option func(*Builder)

// WithSecondary adds a source consulted after the primary to backfill fields
// and contribute cards the primary doesn't list. Priority follows the order
// the sources are added in.
func WithSecondary(source sources.Source) Option {
	return func(b *Builder) {
		b.secondaries = append(b.secondaries, source)
	}
}

// WithWorkers bounds the number of concurrent card detail fetches per set.
func WithWorkers(workers int) Option {
	return func(b *Builder) {
		if workers > 0 {
			b.workers = workers
		}
	}
}

// New builds a Builder around the primary source.
func New(primary sources.Source, options ...Option) *Builder {
	b := &Builder{
		primary: primary,
		workers: defaultWorkers,
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// BuildSet reconciles every card of a set and returns them ordered by
// collector number. A source with no data for the set contributes nothing;
// the only errors are context cancelation.
func (b *Builder) BuildSet(ctx context.Context, set sources.SetInfo) ([]*Card, error) {
	records := newRecordSet(set)

	primaryIDs, err := b.primary.IdentifierMap(ctx, set)
	if err != nil {
		return nil, err
	}
	if len(primaryIDs) == 0 {
		log.Infow("primary source has no checklist for set", "source", b.primary.Tag(), "set", set.Code)
	}

	if err := b.collect(ctx, b.primary, primaryIDs, records, false); err != nil {
		return nil, err
	}

	for _, source := range b.secondaries {
		ids, err := source.IdentifierMap(ctx, set)
		if err != nil {
			return nil, err
		}
		if err := b.collect(ctx, source, ids, records, true); err != nil {
			return nil, err
		}
	}

	return records.ordered(), nil
}

// collect fetches the detail pages behind an identifier map and merges every
// face into the record set. Fetches for distinct external IDs run
// concurrently under the worker bound.
func (b *Builder) collect(ctx context.Context, source sources.Source, ids sources.IdentifierMap, records *recordSet, backfill bool) error {
	records.beginPass()

	// Several collector numbers can share one detail page (multi-face
	// cards); fetch each page once and deal its faces out to the sorted
	// numbers.
	numbersByID := map[string][]string{}
	for number, externalID := range ids {
		numbersByID[externalID] = append(numbersByID[externalID], number)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.workers)

	for externalID, numbers := range numbersByID {
		sort.Slice(numbers, func(i, j int) bool {
			return numberLess(numbers[i], numbers[j])
		})

		group.Go(func() error {
			faces, err := source.Cards(groupCtx, externalID, records.set)
			if err != nil {
				return err
			}
			records.addFaces(source.Tag(), externalID, numbers, faces, backfill)

			return nil
		})
	}

	return group.Wait()
}

package fetch

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
)

// Cached pages stay valid for two days before they are refetched.
const defaultCacheTTL = 48 * time.Hour

var errPageNotFound = badger.ErrKeyNotFound

// pageCache stores raw response bodies in badger, keyed by the normalized
// absolute request URL, so clients sharing one database never collide.
// Entries expire on their own through badger's TTL.
type pageCache struct {
	db      *badger.DB
	baseURL *url.URL
	ttl     time.Duration
}

func (c *pageCache) key(endpoint string, params url.Values) (string, error) {
	full, err := c.baseURL.Parse(endpoint)
	if err != nil {
		return "", err
	}
	full.RawQuery = params.Encode()

	normalized := purell.NormalizeURL(
		full,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)

	return normalized, nil
}

func (c *pageCache) get(endpoint string, params url.Values) ([]byte, error) {
	key, err := c.key(endpoint, params)
	if err != nil {
		return nil, err
	}

	tx := c.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil, errPageNotFound
	}
	if err != nil {
		return nil, err
	}

	return item.ValueCopy(nil)
}

func (c *pageCache) set(endpoint string, params url.Values, body []byte) error {
	key, err := c.key(endpoint, params)
	if err != nil {
		return err
	}

	tx := c.db.NewTransaction(true)
	defer tx.Commit()

	return tx.SetEntry(badger.NewEntry([]byte(key), body).WithTTL(c.ttl))
}

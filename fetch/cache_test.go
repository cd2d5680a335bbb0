package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
)

func openTestCacheDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true))
	assert.Nil(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestCacheKey(t *testing.T) {
	base, err := url.Parse("https://cards.example.com")
	assert.Nil(t, err)
	cache := &pageCache{baseURL: base}

	tests := []struct {
		endpoint string
		params   url.Values
		expected string
	}{
		{
			endpoint: "/Pages/Search/Default.aspx",
			params:   url.Values{"page": {"0"}, "output": {"checklist"}},
			expected: "https://cards.example.com/Pages/Search/Default.aspx/?output=checklist&page=0",
		},
		{
			endpoint: "/Pages/Card/Details.aspx",
			params:   url.Values{"multiverseid": {"383"}},
			expected: "https://cards.example.com/Pages/Card/Details.aspx/?multiverseid=383",
		},
		{
			endpoint: "/set/m14",
			params:   nil,
			expected: "https://cards.example.com/set/m14/",
		},
	}

	for _, tt := range tests {
		key, err := cache.key(tt.endpoint, tt.params)
		assert.Nil(t, err)
		assert.Equal(t, tt.expected, key)
	}
}

func TestCacheHit(t *testing.T) {
	var requestCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		fmt.Fprint(w, "cached payload")
	})
	ts, options := setupTestServer(handler)
	defer ts.Close()

	client := NewClient(append(options, WithCacheDB(openTestCacheDB(t)))...)

	body, err := client.Get(context.Background(), "/page", nil)
	assert.Nil(t, err)
	assert.Equal(t, "cached payload", string(body))

	body, err = client.Get(context.Background(), "/page", nil)
	assert.Nil(t, err)
	assert.Equal(t, "cached payload", string(body))

	assert.Equal(t, 1, requestCount)
}

func TestCacheDistinctParams(t *testing.T) {
	var requestCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		fmt.Fprint(w, r.URL.Query().Get("page"))
	})
	ts, options := setupTestServer(handler)
	defer ts.Close()

	client := NewClient(append(options, WithCacheDB(openTestCacheDB(t)))...)

	for _, page := range []string{"0", "1", "0"} {
		params := url.Values{}
		params.Set("page", page)

		body, err := client.Get(context.Background(), "/list", params)
		assert.Nil(t, err)
		assert.Equal(t, page, string(body))
	}

	assert.Equal(t, 2, requestCount)
}

func TestCacheExpiry(t *testing.T) {
	var requestCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		fmt.Fprint(w, "payload")
	})
	ts, options := setupTestServer(handler)
	defer ts.Close()

	// A negative lifetime writes entries that are already expired when
	// they are read back
	client := NewClient(append(options, WithCacheDB(openTestCacheDB(t)), WithCacheTTL(-time.Hour))...)

	_, err := client.Get(context.Background(), "/page", nil)
	assert.Nil(t, err)
	_, err = client.Get(context.Background(), "/page", nil)
	assert.Nil(t, err)

	assert.Equal(t, 2, requestCount)
}

func TestCacheSharedDatabaseKeysByHost(t *testing.T) {
	var alphaCount, betaCount int
	alpha, alphaOptions := setupTestServer(func(w http.ResponseWriter, r *http.Request) {
		alphaCount++
		fmt.Fprint(w, "alpha payload")
	})
	defer alpha.Close()
	beta, betaOptions := setupTestServer(func(w http.ResponseWriter, r *http.Request) {
		betaCount++
		fmt.Fprint(w, "beta payload")
	})
	defer beta.Close()

	db := openTestCacheDB(t)
	alphaClient := NewClient(append(alphaOptions, WithCacheDB(db))...)
	betaClient := NewClient(append(betaOptions, WithCacheDB(db))...)

	body, err := alphaClient.Get(context.Background(), "/page", nil)
	assert.Nil(t, err)
	assert.Equal(t, "alpha payload", string(body))

	// The same path on the other host is its own entry
	body, err = betaClient.Get(context.Background(), "/page", nil)
	assert.Nil(t, err)
	assert.Equal(t, "beta payload", string(body))

	body, err = alphaClient.Get(context.Background(), "/page", nil)
	assert.Nil(t, err)
	assert.Equal(t, "alpha payload", string(body))

	assert.Equal(t, 1, alphaCount)
	assert.Equal(t, 1, betaCount)
}

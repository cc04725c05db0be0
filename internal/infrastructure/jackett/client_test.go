package jackett

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheusN/torrentflix-sub000/internal/domain/library"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "k3y", time.Second, nil)
	c.newBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1) }
	return c
}

func TestSearchNormalizesAndSorts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.0/indexers/all/results", r.URL.Path)
		assert.Equal(t, "k3y", r.URL.Query().Get("apikey"))
		assert.Equal(t, "big buck bunny", r.URL.Query().Get("Query"))
		_, _ = w.Write([]byte(`{"Results":[
			{"Title":"Bunny 480p","Tracker":"a","Size":100,"Seeders":2,"Peers":5,"Link":"http://x/1.torrent"},
			{"Title":"Bunny 1080p","Tracker":"b","Size":900,"Seeders":40,"Peers":42,"MagnetUri":"magnet:?xt=urn:btih:ABC","InfoHash":"ABC"}
		]}`))
	})

	results, err := c.Search(context.Background(), " big buck bunny ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Bunny 1080p", results[0].Title)
	assert.Equal(t, 2, results[0].Leechers)
	assert.Equal(t, "abc", results[0].InfoHash)
	assert.Equal(t, "b", results[0].Indexer)
	assert.Equal(t, 3, results[1].Leechers)
}

func TestSearchValidation(t *testing.T) {
	_, err := NewClient("", "", 0, nil).Search(context.Background(), "x")
	assert.ErrorIs(t, err, library.ErrNotConfigured)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request")
	})
	_, err = c.Search(context.Background(), "")
	assert.ErrorIs(t, err, library.ErrInvalidInput)
}

func TestSearchRetriesOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Search(context.Background(), "x")
	assert.ErrorIs(t, err, library.ErrUnavailable)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSearchRejectedKey(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Search(context.Background(), "x")
	assert.ErrorIs(t, err, library.ErrUnauthorized)
	assert.EqualValues(t, 1, calls.Load())
}

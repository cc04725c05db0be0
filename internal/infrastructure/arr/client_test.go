package arr

import (
	"context"
	"encoding/json"
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

func newTestClient(t *testing.T, kind Kind, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(kind, srv.URL, "secret", 2*time.Second, nil)
	c.newBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) }
	return c
}

func TestListMapsMovies(t *testing.T) {
	c := newTestClient(t, KindMovies, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/api/v3/movie", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":3,"title":"Alien","year":1979,"tmdbId":348,"hasFile":true,"sizeOnDisk":1024,
			"images":[{"coverType":"fanart","url":"/f.jpg"},{"coverType":"poster","url":"/p.jpg","remoteUrl":"https://img/p.jpg"}]}]`))
	})

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, library.MediaMovie, items[0].MediaType)
	assert.Equal(t, "Alien", items[0].Title)
	assert.Equal(t, 348, items[0].TMDBID)
	assert.Equal(t, "https://img/p.jpg", items[0].Poster)
	assert.True(t, items[0].HasFile)
}

func TestListMapsSeriesStatistics(t *testing.T) {
	c := newTestClient(t, KindSeries, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/series", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":1,"title":"Severance","tvdbId":371980,"statistics":{"sizeOnDisk":2048,"episodeFileCount":4}}]`))
	})

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, library.MediaSeries, items[0].MediaType)
	assert.EqualValues(t, 2048, items[0].SizeOnDisk)
	assert.True(t, items[0].HasFile)
}

func TestLookupRequiresTerm(t *testing.T) {
	c := newTestClient(t, KindSeries, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/series/lookup", r.URL.Path)
		assert.Equal(t, "the wire", r.URL.Query().Get("term"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, library.ErrInvalidInput)

	items, err := c.Lookup(context.Background(), "the wire")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, KindMovies, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"name":"HD"}]`))
	})

	profiles, err := c.QualityProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []library.QualityProfile{{ID: 1, Name: "HD"}}, profiles)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetGivesUpAfterBoundedRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, KindMovies, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.RootFolders(context.Background())
	assert.ErrorIs(t, err, library.ErrUnavailable)
	assert.EqualValues(t, 3, calls.Load())
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, KindSeries, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, library.ErrUnauthorized)
	assert.EqualValues(t, 1, calls.Load())
}

func TestAddSeriesPayload(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, KindSeries, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/series", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"title":"Dark","tvdbId":334824}`))
	})

	item, err := c.Add(context.Background(), library.AddRequest{
		Title: "Dark", TVDBID: 334824, QualityProfileID: 1, RootFolderPath: "/tv", Monitored: true, SearchNow: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, item.ID)
	assert.EqualValues(t, 334824, got["tvdbId"])
	assert.Equal(t, map[string]any{"searchForMissingEpisodes": true}, got["addOptions"])
}

func TestAddValidatesAndSurfacesUpstreamMessage(t *testing.T) {
	c := newTestClient(t, KindMovies, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`[{"errorMessage":"This movie has already been added"}]`))
	})

	_, err := c.Add(context.Background(), library.AddRequest{Title: "Alien", QualityProfileID: 1, RootFolderPath: "/movies"})
	assert.ErrorIs(t, err, library.ErrInvalidInput)

	_, err = c.Add(context.Background(), library.AddRequest{Title: "Alien", TMDBID: 348, QualityProfileID: 1, RootFolderPath: "/movies"})
	require.ErrorIs(t, err, library.ErrInvalidInput)
	assert.Contains(t, err.Error(), "already been added")
}

func TestSearchCommands(t *testing.T) {
	var got map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/command", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}

	require.NoError(t, newTestClient(t, KindSeries, handler).Search(context.Background(), 4))
	assert.Equal(t, "SeriesSearch", got["name"])
	assert.EqualValues(t, 4, got["seriesId"])

	require.NoError(t, newTestClient(t, KindMovies, handler).Search(context.Background(), 5))
	assert.Equal(t, "MoviesSearch", got["name"])
	assert.Equal(t, []any{float64(5)}, got["movieIds"])
}

func TestDeleteAndQueue(t *testing.T) {
	c := newTestClient(t, KindMovies, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/movie/7":
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "true", r.URL.Query().Get("deleteFiles"))
		case "/api/v3/queue":
			_, _ = w.Write([]byte(`{"totalRecords":1,"records":[{"id":2,"title":"Alien.1979","size":1000,"sizeleft":250,"downloadId":"ABC"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, c.Delete(context.Background(), 7, true))
	assert.ErrorIs(t, c.Delete(context.Background(), 0, false), library.ErrInvalidInput)

	queue, err := c.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.InDelta(t, 0.75, queue[0].Progress, 1e-9)
	assert.Equal(t, "ABC", queue[0].DownloadID)
}

func TestDisabledClient(t *testing.T) {
	c := NewClient(KindSeries, "", "", 0, nil)
	assert.False(t, c.Enabled())
	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, library.ErrNotConfigured)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Movies")
	assert.True(t, ok)
	assert.Equal(t, KindMovies, k)
	_, ok = ParseKind("music")
	assert.False(t, ok)
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheusN/torrentflix-sub000/internal/application/auth"
	torrentapp "github.com/TheusN/torrentflix-sub000/internal/application/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/domain/library"
	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/infrastructure/arr"
)

type stubTorrents struct {
	err          error
	lastHash     string
	lastIDs      []int
	lastPriority int
	lastAdd      torrentapp.AddRequest
}

func (s *stubTorrents) Enabled() bool { return true }

func (s *stubTorrents) List(context.Context, string, string) ([]torrent.Torrent, error) {
	return nil, s.err
}

func (s *stubTorrents) Get(_ context.Context, hash string) (torrentapp.Detail, error) {
	s.lastHash = hash
	return torrentapp.Detail{Torrent: torrent.Torrent{Hash: hash}}, s.err
}

func (s *stubTorrents) Files(context.Context, string) ([]torrent.File, error) { return nil, s.err }

func (s *stubTorrents) Add(_ context.Context, req torrentapp.AddRequest) error {
	s.lastAdd = req
	return s.err
}

func (s *stubTorrents) Pause(_ context.Context, hash string) error {
	s.lastHash = hash
	return s.err
}

func (s *stubTorrents) Resume(_ context.Context, hash string) error {
	s.lastHash = hash
	return s.err
}

func (s *stubTorrents) Delete(_ context.Context, hash string, _ bool) error {
	s.lastHash = hash
	return s.err
}

func (s *stubTorrents) SetPriority(_ context.Context, hash string, ids []int, priority int) error {
	s.lastHash, s.lastIDs, s.lastPriority = hash, ids, priority
	return s.err
}

func (s *stubTorrents) Stats(context.Context) (torrent.TransferStats, error) {
	return torrent.TransferStats{ConnectionStatus: "connected"}, s.err
}

func (s *stubTorrents) EnableStreaming(_ context.Context, hash string) error {
	s.lastHash = hash
	return s.err
}

type stubProbe struct{ err error }

func (p stubProbe) Version(context.Context) (string, error) { return "v5.0.0", p.err }

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandler(opts), RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestErrorTaxonomyMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", torrent.ErrConnection), http.StatusServiceUnavailable, "torrent_client_unreachable"},
		{torrent.ErrUpstreamAuth, http.StatusBadGateway, "upstream_auth_failed"},
		{torrent.ErrGone, http.StatusNotFound, "gone"},
		{torrent.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{torrent.ErrRangeNotSatisfiable, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable"},
		{torrent.ErrUpstream, http.StatusBadGateway, "upstream_error"},
		{library.ErrNotConfigured, http.StatusServiceUnavailable, "not_configured"},
		{library.ErrUnauthorized, http.StatusBadGateway, "upstream_auth_failed"},
		{errors.New("boom"), http.StatusBadGateway, "upstream_error"},
	}
	for _, c := range cases {
		status, code := classifyError(c.err)
		assert.Equal(t, c.status, status, c.err.Error())
		assert.Equal(t, c.code, code, c.err.Error())
	}
}

func TestStatsSurfacesUnreachableClient(t *testing.T) {
	torrents := &stubTorrents{err: fmt.Errorf("%w: dial tcp", torrent.ErrConnection)}
	srv := newTestServer(t, Options{Torrents: torrents})

	resp, payload := doRequest(t, srv, http.MethodGet, "/downloads/stats", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "torrent_client_unreachable", payload["error"])
}

func TestNotReadyErrorCarriesRetryAfter(t *testing.T) {
	torrents := &stubTorrents{err: torrent.ErrNotReady}
	srv := newTestServer(t, Options{Torrents: torrents, RetryAfter: 5 * time.Second})

	resp, payload := doRequest(t, srv, http.MethodGet, "/downloads/stats", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Retry-After"))
	assert.Equal(t, "not_ready", payload["error"])
}

func TestSetFilePriorityDecodesBody(t *testing.T) {
	torrents := &stubTorrents{}
	srv := newTestServer(t, Options{Torrents: torrents})

	resp, _ := doRequest(t, srv, http.MethodPost, "/downloads/"+testHash+"/priority", `{"fileIds":[0,2],"priority":7}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testHash, torrents.lastHash)
	assert.Equal(t, []int{0, 2}, torrents.lastIDs)
	assert.Equal(t, 7, torrents.lastPriority)

	resp, payload := doRequest(t, srv, http.MethodPost, "/downloads/"+testHash+"/priority", `{"fileIds":[0]}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", payload["error"])

	resp, _ = doRequest(t, srv, http.MethodPost, "/downloads/"+testHash+"/priority", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeletedTorrentIsNotFound(t *testing.T) {
	torrents := &stubTorrents{err: torrent.ErrGone}
	srv := newTestServer(t, Options{Torrents: torrents})

	resp, payload := doRequest(t, srv, http.MethodGet, "/downloads/"+testHash, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "gone", payload["error"])
}

func TestAddDownload(t *testing.T) {
	torrents := &stubTorrents{}
	srv := newTestServer(t, Options{Torrents: torrents})

	resp, _ := doRequest(t, srv, http.MethodPost, "/downloads", `{"uri":"magnet:?xt=urn:btih:abc","sequential":true}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, torrents.lastAdd.Sequential)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", torrents.lastAdd.URI)
}

func TestLibraryRoutes(t *testing.T) {
	srv := newTestServer(t, Options{
		Torrents:  &stubTorrents{},
		Libraries: map[arr.Kind]LibraryService{arr.KindSeries: arr.NewClient(arr.KindSeries, "", "", 0, nil)},
	})

	resp, _ := doRequest(t, srv, http.MethodGet, "/library/music", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, payload := doRequest(t, srv, http.MethodGet, "/library/series", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_configured", payload["error"])

	resp, _ = doRequest(t, srv, http.MethodGet, "/library/movies/queue", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodGet, "/search?q=x", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthReportsTorrentClientState(t *testing.T) {
	srv := newTestServer(t, Options{Torrents: &stubTorrents{}, Probe: stubProbe{}})
	resp, payload := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "online", payload["torrentClient"])

	srv = newTestServer(t, Options{Torrents: &stubTorrents{}, Probe: stubProbe{err: torrent.ErrConnection}})
	_, payload = doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "offline", payload["torrentClient"])
	assert.Equal(t, "degraded", payload["status"])
}

func TestAuthFlow(t *testing.T) {
	svc, err := auth.NewService("admin", "hunter22", time.Hour)
	require.NoError(t, err)
	srv := newTestServer(t, Options{Torrents: &stubTorrents{}, Auth: svc})

	resp, _ := doRequest(t, srv, http.MethodGet, "/downloads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, payload := doRequest(t, srv, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp, _ = doRequest(t, srv, http.MethodGet, "/downloads", "", map[string]string{"Cookie": sessionCookieName + "=" + cookie.Value})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = doRequest(t, srv, http.MethodGet, "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["authEnabled"])

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/auth/logout", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodGet, "/downloads", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthDisabledAllowsEverything(t *testing.T) {
	svc, err := auth.NewService("admin", "", time.Hour)
	require.NoError(t, err)
	srv := newTestServer(t, Options{Torrents: &stubTorrents{}, Auth: svc})

	resp, _ := doRequest(t, srv, http.MethodGet, "/downloads", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := doRequest(t, srv, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, payload["authEnabled"])
}

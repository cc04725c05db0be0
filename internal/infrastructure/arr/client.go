package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"

	"github.com/TheusN/torrentflix-sub000/internal/domain/library"
	"github.com/TheusN/torrentflix-sub000/internal/metrics"
)

const maxResponseBytes = 16 << 20

// Kind selects the flavour of *arr API a client talks to.
type Kind string

const (
	KindSeries Kind = "series"
	KindMovies Kind = "movies"
)

// ParseKind maps a route segment to a Kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindSeries:
		return KindSeries, true
	case KindMovies, "movie":
		return KindMovies, true
	}
	return "", false
}

func (k Kind) resource() string {
	if k == KindSeries {
		return "series"
	}
	return "movie"
}

func (k Kind) service() string {
	if k == KindSeries {
		return "sonarr"
	}
	return "radarr"
}

// Client talks to a Sonarr (series) or Radarr (movies) v3 API.
type Client struct {
	kind    Kind
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger

	newBackOff func() backoff.BackOff
}

// NewClient creates an adapter. An empty base URL or API key leaves it disabled.
func NewClient(kind Kind, baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		kind:       kind,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		http:       &http.Client{Timeout: timeout},
		logger:     logger.With("service", kind.service()),
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     250 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      5 * time.Second,
		Clock:               backoff.SystemClock,
	}, 2)
}

// Kind returns the library flavour served by this client.
func (c *Client) Kind() Kind { return c.kind }

// Enabled reports whether the adapter is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// List returns every item in the library.
func (c *Client) List(ctx context.Context) ([]library.Item, error) {
	var items []wireItem
	if err := c.get(ctx, "/api/v3/"+c.kind.resource(), nil, &items); err != nil {
		return nil, err
	}
	return c.mapItems(items), nil
}

// Lookup searches the metadata provider for items matching term.
func (c *Client) Lookup(ctx context.Context, term string) ([]library.Item, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: empty lookup term", library.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("term", term)
	var items []wireItem
	if err := c.get(ctx, "/api/v3/"+c.kind.resource()+"/lookup", q, &items); err != nil {
		return nil, err
	}
	return c.mapItems(items), nil
}

// Add adds a looked-up item to the library and optionally starts a search.
func (c *Client) Add(ctx context.Context, req library.AddRequest) (library.Item, error) {
	if strings.TrimSpace(req.Title) == "" || req.QualityProfileID <= 0 || strings.TrimSpace(req.RootFolderPath) == "" {
		return library.Item{}, fmt.Errorf("%w: title, qualityProfileId and rootFolderPath are required", library.ErrInvalidInput)
	}
	payload := map[string]any{
		"title":            req.Title,
		"qualityProfileId": req.QualityProfileID,
		"rootFolderPath":   req.RootFolderPath,
		"monitored":        req.Monitored,
	}
	switch c.kind {
	case KindSeries:
		if req.TVDBID <= 0 {
			return library.Item{}, fmt.Errorf("%w: tvdbId is required", library.ErrInvalidInput)
		}
		payload["tvdbId"] = req.TVDBID
		payload["seasonFolder"] = true
		payload["addOptions"] = map[string]any{"searchForMissingEpisodes": req.SearchNow}
	default:
		if req.TMDBID <= 0 {
			return library.Item{}, fmt.Errorf("%w: tmdbId is required", library.ErrInvalidInput)
		}
		payload["tmdbId"] = req.TMDBID
		payload["addOptions"] = map[string]any{"searchForMovie": req.SearchNow}
	}

	var created wireItem
	if err := c.send(ctx, http.MethodPost, "/api/v3/"+c.kind.resource(), nil, payload, &created); err != nil {
		return library.Item{}, err
	}
	return c.mapItem(created), nil
}

// Delete removes an item, optionally deleting its files from disk.
func (c *Client) Delete(ctx context.Context, id int, deleteFiles bool) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid id %d", library.ErrInvalidInput, id)
	}
	q := url.Values{}
	q.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	return c.send(ctx, http.MethodDelete, "/api/v3/"+c.kind.resource()+"/"+strconv.Itoa(id), q, nil, nil)
}

// Search triggers an indexer search for an item already in the library.
func (c *Client) Search(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid id %d", library.ErrInvalidInput, id)
	}
	var cmd map[string]any
	if c.kind == KindSeries {
		cmd = map[string]any{"name": "SeriesSearch", "seriesId": id}
	} else {
		cmd = map[string]any{"name": "MoviesSearch", "movieIds": []int{id}}
	}
	return c.send(ctx, http.MethodPost, "/api/v3/command", nil, cmd, nil)
}

// Queue returns in-progress downloads known to the service.
func (c *Client) Queue(ctx context.Context) ([]library.QueueItem, error) {
	q := url.Values{}
	q.Set("pageSize", "100")
	var page wireQueuePage
	if err := c.get(ctx, "/api/v3/queue", q, &page); err != nil {
		return nil, err
	}
	out := make([]library.QueueItem, 0, len(page.Records))
	for _, r := range page.Records {
		out = append(out, mapQueueItem(r))
	}
	return out, nil
}

// QualityProfiles lists configured quality profiles.
func (c *Client) QualityProfiles(ctx context.Context) ([]library.QualityProfile, error) {
	var out []library.QualityProfile
	if err := c.get(ctx, "/api/v3/qualityprofile", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RootFolders lists configured library roots.
func (c *Client) RootFolders(ctx context.Context) ([]library.RootFolder, error) {
	var out []library.RootFolder
	if err := c.get(ctx, "/api/v3/rootfolder", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get performs an idempotent GET with a short bounded retry on transient failures.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if !c.Enabled() {
		return library.ErrNotConfigured
	}
	attempt := 0
	op := func() error {
		attempt++
		body, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: decode %s: %v", library.ErrUnavailable, path, err))
			}
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("retrying library request", "path", path, "attempt", attempt, "error", err)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
	c.observe(err)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	if !c.Enabled() {
		return library.ErrNotConfigured
	}
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	body, err := c.do(ctx, method, path, query, raw)
	c.observe(err)
	if err != nil {
		return err
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode %s: %v", library.ErrUnavailable, path, err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transientError{fmt.Errorf("%w: %s: %v", library.ErrUnavailable, c.kind.service(), err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transientError{fmt.Errorf("%w: read %s: %v", library.ErrUnavailable, path, err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", library.ErrUnauthorized, c.kind.service())
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", library.ErrNotFound, path)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", library.ErrInvalidInput, upstreamMessage(body, resp.Status))
	case resp.StatusCode >= 500:
		return nil, &transientError{fmt.Errorf("%w: %s returned %s", library.ErrUnavailable, c.kind.service(), resp.Status)}
	default:
		return nil, fmt.Errorf("%w: %s returned %s", library.ErrUnavailable, c.kind.service(), resp.Status)
	}
}

func (c *Client) observe(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.AdapterRequestsTotal.WithLabelValues(c.kind.service(), outcome).Inc()
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// upstreamMessage extracts the first validation message from an *arr error body.
func upstreamMessage(body []byte, fallback string) string {
	var problems []struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &problems); err == nil && len(problems) > 0 && problems[0].ErrorMessage != "" {
		return problems[0].ErrorMessage
	}
	var single struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &single); err == nil && single.Message != "" {
		return single.Message
	}
	return fallback
}

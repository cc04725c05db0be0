package jackett

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"

	"github.com/TheusN/torrentflix-sub000/internal/domain/library"
	"github.com/TheusN/torrentflix-sub000/internal/metrics"
)

const maxResponseBytes = 32 << 20

// Client queries all Jackett indexers at once.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger

	newBackOff func() backoff.BackOff
}

// NewClient creates a Jackett adapter. An empty base URL or API key leaves it disabled.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("service", "jackett"),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxElapsedTime = 5 * time.Second
			return backoff.WithMaxRetries(bo, 1)
		},
	}
}

// Enabled reports whether the adapter is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.apiKey != ""
}

type wireResult struct {
	Title       string `json:"Title"`
	Tracker     string `json:"Tracker"`
	Size        int64  `json:"Size"`
	Seeders     int    `json:"Seeders"`
	Peers       int    `json:"Peers"`
	MagnetURI   string `json:"MagnetUri"`
	Link        string `json:"Link"`
	InfoHash    string `json:"InfoHash"`
	PublishDate string `json:"PublishDate"`
}

// Search returns results for query ordered by seeders, most first.
func (c *Client) Search(ctx context.Context, query string) ([]library.SearchResult, error) {
	if !c.Enabled() {
		return nil, library.ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", library.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("Query", query)
	target := c.baseURL + "/api/v2.0/indexers/all/results?" + q.Encode()

	var payload struct {
		Results []wireResult `json:"Results"`
	}
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: jackett: %v", library.ErrUnavailable, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: jackett", library.ErrUnauthorized))
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: jackett returned %s", library.ErrUnavailable, resp.Status)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("%w: jackett returned %s", library.ErrUnavailable, resp.Status))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("%w: read results: %v", library.ErrUnavailable, err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode results: %v", library.ErrUnavailable, err))
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.logger.Warn("indexer search failed", "query", query, "error", err)
	}
	metrics.AdapterRequestsTotal.WithLabelValues("jackett", outcome).Inc()
	if err != nil {
		return nil, err
	}

	out := make([]library.SearchResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		leechers := r.Peers - r.Seeders
		if leechers < 0 {
			leechers = 0
		}
		out = append(out, library.SearchResult{
			Title:       r.Title,
			Indexer:     r.Tracker,
			Size:        r.Size,
			Seeders:     r.Seeders,
			Leechers:    leechers,
			MagnetURI:   r.MagnetURI,
			Link:        r.Link,
			InfoHash:    strings.ToLower(r.InfoHash),
			PublishDate: r.PublishDate,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seeders > out[j].Seeders })
	return out, nil
}

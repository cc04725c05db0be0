package qbittorrent

import (
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

	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/metrics"
)

const maxResponseBytes = 8 << 20

// Client is a qBittorrent WebUI API v2 infrastructure adapter.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *SessionManager
	logger   *slog.Logger
}

// NewClient creates a WebUI adapter that authenticates through sessions.
func NewClient(baseURL string, timeout time.Duration, sessions *SessionManager, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		logger:   logger,
	}
}

// Enabled reports whether qBittorrent integration is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Version returns the client application version. It doubles as a reachability probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.call(ctx, "version", http.MethodGet, "/api/v2/app/version", nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// ListTorrents lists torrents, optionally narrowed by state filter and category.
func (c *Client) ListTorrents(ctx context.Context, filter, category string) ([]torrent.Torrent, error) {
	q := url.Values{}
	if filter = strings.TrimSpace(filter); filter != "" {
		q.Set("filter", filter)
	}
	if category = strings.TrimSpace(category); category != "" {
		q.Set("category", category)
	}
	items, err := c.torrentsInfo(ctx, "list_torrents", q)
	if err != nil {
		return nil, err
	}
	out := make([]torrent.Torrent, 0, len(items))
	for _, item := range items {
		out = append(out, mapTorrent(item))
	}
	return out, nil
}

// GetTorrent fetches one torrent. A hash unknown to the client yields torrent.ErrGone.
func (c *Client) GetTorrent(ctx context.Context, hash string) (torrent.Torrent, error) {
	q := url.Values{}
	q.Set("hashes", hash)
	items, err := c.torrentsInfo(ctx, "get_torrent", q)
	if err != nil {
		return torrent.Torrent{}, err
	}
	for _, item := range items {
		if strings.EqualFold(item.Hash, hash) {
			return mapTorrent(item), nil
		}
	}
	return torrent.Torrent{}, fmt.Errorf("%w: torrent %s", torrent.ErrGone, hash)
}

// ListFiles returns the files of a torrent in client index order.
func (c *Client) ListFiles(ctx context.Context, hash string) ([]torrent.File, error) {
	q := url.Values{}
	q.Set("hash", hash)
	body, err := c.call(ctx, "list_files", http.MethodGet, "/api/v2/torrents/files?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var items []wireFile
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: decode files: %v", torrent.ErrUpstream, err)
	}
	return mapFiles(strings.ToLower(hash), items), nil
}

// AddTorrent registers a magnet link or torrent URL. Sequential adds always
// request first/last piece priority too, so container headers and indexes
// arrive before the body.
func (c *Client) AddTorrent(ctx context.Context, uri string, opts torrent.AddOptions) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return fmt.Errorf("%w: empty torrent uri", torrent.ErrInvalidInput)
	}
	form := url.Values{}
	form.Set("urls", uri)
	if opts.SavePath != "" {
		form.Set("savepath", opts.SavePath)
	}
	if opts.Category != "" {
		form.Set("category", opts.Category)
	}
	form.Set("paused", strconv.FormatBool(opts.Paused))
	form.Set("stopped", strconv.FormatBool(opts.Paused))
	if opts.Sequential {
		opts.FirstLastPiecePrio = true
	}
	form.Set("sequentialDownload", strconv.FormatBool(opts.Sequential))
	form.Set("firstLastPiecePrio", strconv.FormatBool(opts.FirstLastPiecePrio))

	body, err := c.call(ctx, "add_torrent", http.MethodPost, "/api/v2/torrents/add", form)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "Fails." {
		return fmt.Errorf("%w: torrent rejected by client", torrent.ErrInvalidInput)
	}
	return nil
}

// Pause stops downloading and seeding a torrent.
func (c *Client) Pause(ctx context.Context, hash string) error {
	return c.hashesAction(ctx, "pause", "/api/v2/torrents/pause", "/api/v2/torrents/stop", hash)
}

// Resume restarts a paused torrent.
func (c *Client) Resume(ctx context.Context, hash string) error {
	return c.hashesAction(ctx, "resume", "/api/v2/torrents/resume", "/api/v2/torrents/start", hash)
}

// SetFilePriority sets the download priority of the given file indexes.
func (c *Client) SetFilePriority(ctx context.Context, hash string, indexes []int, priority torrent.Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("%w: priority %d", torrent.ErrInvalidInput, priority)
	}
	if len(indexes) == 0 {
		return fmt.Errorf("%w: no file indexes", torrent.ErrInvalidInput)
	}
	ids := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 {
			return fmt.Errorf("%w: file index %d", torrent.ErrInvalidInput, idx)
		}
		ids = append(ids, strconv.Itoa(idx))
	}
	form := url.Values{}
	form.Set("hash", hash)
	form.Set("id", strings.Join(ids, "|"))
	form.Set("priority", strconv.Itoa(int(priority)))
	_, err := c.call(ctx, "set_file_priority", http.MethodPost, "/api/v2/torrents/filePrio", form)
	return err
}

// Delete removes a torrent and optionally its downloaded data.
func (c *Client) Delete(ctx context.Context, hash string, deleteFiles bool) error {
	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	_, err := c.call(ctx, "delete", http.MethodPost, "/api/v2/torrents/delete", form)
	return err
}

// SetSequential switches in-order piece selection on or off. The WebUI only
// exposes a toggle, so the current state is read first.
func (c *Client) SetSequential(ctx context.Context, hash string, enabled bool) error {
	t, err := c.GetTorrent(ctx, hash)
	if err != nil {
		return err
	}
	if t.Sequential == enabled {
		return nil
	}
	form := url.Values{}
	form.Set("hashes", hash)
	_, err = c.call(ctx, "toggle_sequential", http.MethodPost, "/api/v2/torrents/toggleSequentialDownload", form)
	return err
}

// SetFirstLastPiecePrio switches first/last piece priority on or off.
func (c *Client) SetFirstLastPiecePrio(ctx context.Context, hash string, enabled bool) error {
	t, err := c.GetTorrent(ctx, hash)
	if err != nil {
		return err
	}
	if t.FirstLastPiecePrio == enabled {
		return nil
	}
	form := url.Values{}
	form.Set("hashes", hash)
	_, err = c.call(ctx, "toggle_first_last", http.MethodPost, "/api/v2/torrents/toggleFirstLastPiecePrio", form)
	return err
}

// TransferStats returns global transfer counters.
func (c *Client) TransferStats(ctx context.Context) (torrent.TransferStats, error) {
	body, err := c.call(ctx, "transfer_stats", http.MethodGet, "/api/v2/transfer/info", nil)
	if err != nil {
		return torrent.TransferStats{}, err
	}
	var w wireTransfer
	if err := json.Unmarshal(body, &w); err != nil {
		return torrent.TransferStats{}, fmt.Errorf("%w: decode transfer info: %v", torrent.ErrUpstream, err)
	}
	return mapTransfer(w), nil
}

func (c *Client) torrentsInfo(ctx context.Context, op string, q url.Values) ([]wireTorrent, error) {
	path := "/api/v2/torrents/info"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	body, err := c.call(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var items []wireTorrent
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: decode torrents: %v", torrent.ErrUpstream, err)
	}
	return items, nil
}

// hashesAction posts to legacyPath and falls back to currentPath on WebUI
// versions that renamed pause/resume to stop/start.
func (c *Client) hashesAction(ctx context.Context, op, legacyPath, currentPath, hash string) error {
	form := url.Values{}
	form.Set("hashes", hash)
	_, err := c.call(ctx, op, http.MethodPost, legacyPath, form)
	if errors.Is(err, errEndpointMissing) {
		_, err = c.call(ctx, op, http.MethodPost, currentPath, form)
	}
	return err
}

// errEndpointMissing marks a 404 on an action endpoint, which qBittorrent
// only returns for unknown paths.
var errEndpointMissing = errors.New("endpoint not found")

// call issues one API request under the current session. A 403 invalidates the
// session and the request is retried exactly once with a fresh login.
func (c *Client) call(ctx context.Context, op, method, path string, form url.Values) ([]byte, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: qBittorrent is not configured", torrent.ErrConnection)
	}

	for attempt := 0; attempt < 2; attempt++ {
		session, err := c.sessions.Ensure(ctx)
		if err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "login_failed").Inc()
			return nil, err
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		req.Header.Set("Referer", c.baseURL)
		if session.cookie != "" {
			req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session.cookie})
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "unreachable").Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %s: %v", torrent.ErrConnection, op, err)
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()

		if resp.StatusCode == http.StatusForbidden {
			c.sessions.invalidateSession(session)
			if attempt == 0 {
				c.logger.Debug("qbittorrent session rejected, logging in again", slog.String("op", op))
				continue
			}
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "forbidden").Inc()
			return nil, fmt.Errorf("%w: %s forbidden after re-login", torrent.ErrUpstreamAuth, op)
		}

		if err := classifyStatus(op, path, resp.StatusCode, data); err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
			return nil, err
		}
		if readErr != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "read_failed").Inc()
			return nil, fmt.Errorf("%w: %s: read body: %v", torrent.ErrConnection, op, readErr)
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(op, "ok").Inc()
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s session negotiation failed", torrent.ErrUpstreamAuth, op)
}

func classifyStatus(op, path string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	switch status {
	case http.StatusNotFound:
		if strings.HasPrefix(path, "/api/v2/torrents/files") || strings.HasPrefix(path, "/api/v2/torrents/properties") {
			return fmt.Errorf("%w: %s", torrent.ErrGone, op)
		}
		return fmt.Errorf("%w: %w: %s", torrent.ErrUpstream, errEndpointMissing, path)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnsupportedMediaType:
		return fmt.Errorf("%w: %s: %s", torrent.ErrInvalidInput, op, msg)
	default:
		return fmt.Errorf("%w: %s returned status %d: %s", torrent.ErrUpstream, op, status, msg)
	}
}

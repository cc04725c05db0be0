package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/TheusN/torrentflix-sub000/internal/application/auth"
	torrentapp "github.com/TheusN/torrentflix-sub000/internal/application/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/domain/library"
	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/infrastructure/arr"
)

const maxBodyBytes = 1 << 20

type torrentUseCases interface {
	Enabled() bool
	List(ctx context.Context, filter, category string) ([]torrent.Torrent, error)
	Get(ctx context.Context, hash string) (torrentapp.Detail, error)
	Files(ctx context.Context, hash string) ([]torrent.File, error)
	Add(ctx context.Context, req torrentapp.AddRequest) error
	Pause(ctx context.Context, hash string) error
	Resume(ctx context.Context, hash string) error
	Delete(ctx context.Context, hash string, deleteFiles bool) error
	SetPriority(ctx context.Context, hash string, fileIDs []int, priority int) error
	Stats(ctx context.Context) (torrent.TransferStats, error)
	EnableStreaming(ctx context.Context, hash string) error
}

// LibraryService is a Sonarr or Radarr style library manager.
type LibraryService interface {
	Enabled() bool
	List(ctx context.Context) ([]library.Item, error)
	Lookup(ctx context.Context, term string) ([]library.Item, error)
	Add(ctx context.Context, req library.AddRequest) (library.Item, error)
	Delete(ctx context.Context, id int, deleteFiles bool) error
	Search(ctx context.Context, id int) error
	Queue(ctx context.Context) ([]library.QueueItem, error)
	QualityProfiles(ctx context.Context) ([]library.QualityProfile, error)
	RootFolders(ctx context.Context) ([]library.RootFolder, error)
}

type indexSearcher interface {
	Enabled() bool
	Search(ctx context.Context, query string) ([]library.SearchResult, error)
}

type authUseCases interface {
	Enabled() bool
	SessionTTL() time.Duration
	Login(client, username, password string) (auth.User, string, error)
	Authenticate(token string) (auth.User, error)
	Logout(token string)
}

type versionProbe interface {
	Version(ctx context.Context) (string, error)
}

// Options carries the collaborators and tunables of a Handler.
type Options struct {
	Torrents  torrentUseCases
	Tracker   availabilityTracker
	Files     fileOpener
	Libraries map[arr.Kind]LibraryService
	Indexer   indexSearcher
	Auth      authUseCases
	Probe     versionProbe
	Logger    *slog.Logger

	// RetryAfter is advertised on not-ready responses.
	RetryAfter time.Duration
	// ExpediteTimeout bounds the background priority bump of a not-ready stream.
	ExpediteTimeout time.Duration
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type Handler struct {
	torrents  torrentUseCases
	tracker   availabilityTracker
	files     fileOpener
	libraries map[arr.Kind]LibraryService
	indexer   indexSearcher
	auth      authUseCases
	probe     versionProbe
	logger    *slog.Logger

	retryAfterSeconds int
	expediteTimeout   time.Duration
	secureCookies     bool
}

// NewHandler wires HTTP handlers with application use cases.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := int(opts.RetryAfter.Round(time.Second) / time.Second)
	if retry <= 0 {
		retry = 2
	}
	timeout := opts.ExpediteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	libraries := opts.Libraries
	if libraries == nil {
		libraries = map[arr.Kind]LibraryService{}
	}
	return &Handler{
		torrents:          opts.Torrents,
		tracker:           opts.Tracker,
		files:             opts.Files,
		libraries:         libraries,
		indexer:           opts.Indexer,
		auth:              opts.Auth,
		probe:             opts.Probe,
		logger:            logger,
		retryAfterSeconds: retry,
		expediteTimeout:   timeout,
		secureCookies:     opts.SecureCookies,
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "torrentClient": "disabled"}
	if h.torrents != nil && h.torrents.Enabled() && h.probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		version, err := h.probe.Version(ctx)
		switch {
		case err == nil:
			resp["torrentClient"] = "online"
			resp["version"] = version
		case errors.Is(err, torrent.ErrUpstreamAuth):
			resp["status"] = "degraded"
			resp["torrentClient"] = "auth_failed"
		default:
			resp["status"] = "degraded"
			resp["torrentClient"] = "offline"
		}
	}
	for kind, svc := range h.libraries {
		resp[string(kind)] = svc.Enabled()
	}
	resp["search"] = h.indexer != nil && h.indexer.Enabled()
	writeJSON(w, http.StatusOK, resp)
}

// ListDownloads handles GET /downloads.
func (h *Handler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	if !h.torrents.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "items": []torrent.Torrent{}})
		return
	}
	q := r.URL.Query()
	items, err := h.torrents.List(r.Context(), q.Get("filter"), q.Get("category"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []torrent.Torrent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "items": items})
}

// GetDownload handles GET /downloads/{hash}.
func (h *Handler) GetDownload(w http.ResponseWriter, r *http.Request) {
	detail, err := h.torrents.Get(r.Context(), mux.Vars(r)["hash"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ListDownloadFiles handles GET /downloads/{hash}/files.
func (h *Handler) ListDownloadFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.torrents.Files(r.Context(), mux.Vars(r)["hash"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// AddDownload handles POST /downloads.
func (h *Handler) AddDownload(w http.ResponseWriter, r *http.Request) {
	var req torrentapp.AddRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.torrents.Add(r.Context(), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// PauseDownload handles POST /downloads/{hash}/pause.
func (h *Handler) PauseDownload(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, r, h.torrents.Pause(r.Context(), mux.Vars(r)["hash"]))
}

// ResumeDownload handles POST /downloads/{hash}/resume.
func (h *Handler) ResumeDownload(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, r, h.torrents.Resume(r.Context(), mux.Vars(r)["hash"]))
}

// EnableStreaming handles POST /downloads/{hash}/stream.
func (h *Handler) EnableStreaming(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, r, h.torrents.EnableStreaming(r.Context(), mux.Vars(r)["hash"]))
}

// DeleteDownload handles DELETE /downloads/{hash}?deleteFiles=true.
func (h *Handler) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	deleteFiles, _ := strconv.ParseBool(r.URL.Query().Get("deleteFiles"))
	h.respondStatus(w, r, h.torrents.Delete(r.Context(), mux.Vars(r)["hash"], deleteFiles))
}

type priorityRequest struct {
	FileIDs  []int `json:"fileIds"`
	Priority *int  `json:"priority"`
}

// SetFilePriority handles POST /downloads/{hash}/priority.
func (h *Handler) SetFilePriority(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Priority == nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "priority is required")
		return
	}
	h.respondStatus(w, r, h.torrents.SetPriority(r.Context(), mux.Vars(r)["hash"], req.FileIDs, *req.Priority))
}

// DownloadStats handles GET /downloads/stats.
func (h *Handler) DownloadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.torrents.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListLibrary handles GET /library/{kind}.
func (h *Handler) ListLibrary(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	items, err := svc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// LookupLibrary handles GET /library/{kind}/lookup?term=.
func (h *Handler) LookupLibrary(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	items, err := svc.Lookup(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// AddLibraryItem handles POST /library/{kind}.
func (h *Handler) AddLibraryItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	var req library.AddRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	item, err := svc.Add(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// DeleteLibraryItem handles DELETE /library/{kind}/{id}.
func (h *Handler) DeleteLibraryItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	id, ok := libraryID(w, r)
	if !ok {
		return
	}
	deleteFiles, _ := strconv.ParseBool(r.URL.Query().Get("deleteFiles"))
	h.respondStatus(w, r, svc.Delete(r.Context(), id, deleteFiles))
}

// SearchLibraryItem handles POST /library/{kind}/{id}/search.
func (h *Handler) SearchLibraryItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	id, ok := libraryID(w, r)
	if !ok {
		return
	}
	h.respondStatus(w, r, svc.Search(r.Context(), id))
}

// LibraryQueue handles GET /library/{kind}/queue.
func (h *Handler) LibraryQueue(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	items, err := svc.Queue(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// LibraryProfiles handles GET /library/{kind}/profiles.
func (h *Handler) LibraryProfiles(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	items, err := svc.QualityProfiles(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// LibraryRootFolders handles GET /library/{kind}/rootfolders.
func (h *Handler) LibraryRootFolders(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.library(w, r)
	if !ok {
		return
	}
	items, err := svc.RootFolders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// Search handles GET /search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.indexer == nil {
		h.writeServiceError(w, r, library.ErrNotConfigured)
		return
	}
	results, err := h.indexer.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

func (h *Handler) library(w http.ResponseWriter, r *http.Request) (LibraryService, bool) {
	kind, ok := arr.ParseKind(mux.Vars(r)["kind"])
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown library kind")
		return nil, false
	}
	svc, ok := h.libraries[kind]
	if !ok {
		h.writeServiceError(w, r, fmt.Errorf("%w: %s", library.ErrNotConfigured, kind))
		return nil, false
	}
	return svc, true
}

func libraryID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) respondStatus(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func bearerToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

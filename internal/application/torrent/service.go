package torrent

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
)

var listFilters = map[string]bool{
	"all": true, "downloading": true, "seeding": true, "completed": true,
	"paused": true, "stopped": true, "active": true, "inactive": true,
	"resumed": true, "running": true, "stalled": true, "stalled_uploading": true,
	"stalled_downloading": true, "errored": true,
}

// Detail is a torrent together with its files.
type Detail struct {
	Torrent domain.Torrent `json:"torrent"`
	Files   []domain.File  `json:"files"`
}

// AddRequest is a dashboard request to register a new download.
type AddRequest struct {
	URI        string `json:"uri"`
	SavePath   string `json:"savePath"`
	Category   string `json:"category"`
	Paused     bool   `json:"paused"`
	Sequential bool   `json:"sequential"`
}

// Service handles torrent use cases.
type Service struct {
	gateway         Gateway
	defaultSavePath string
}

// NewService creates torrent use-case service with injected gateway.
func NewService(gateway Gateway, defaultSavePath string) *Service {
	return &Service{gateway: gateway, defaultSavePath: strings.TrimSpace(defaultSavePath)}
}

// Enabled reports whether torrent backend is available.
func (s *Service) Enabled() bool {
	return s.gateway.Enabled()
}

// List returns torrents visible in backend.
func (s *Service) List(ctx context.Context, filter, category string) ([]domain.Torrent, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter != "" && !listFilters[filter] {
		return nil, fmt.Errorf("%w: unknown filter %q", domain.ErrInvalidInput, filter)
	}
	return s.gateway.ListTorrents(ctx, filter, category)
}

// Get returns one torrent with its files.
func (s *Service) Get(ctx context.Context, rawHash string) (Detail, error) {
	hash, err := parseHash(rawHash)
	if err != nil {
		return Detail{}, err
	}
	t, err := s.gateway.GetTorrent(ctx, hash)
	if err != nil {
		return Detail{}, err
	}
	files, err := s.gateway.ListFiles(ctx, hash)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Torrent: t, Files: files}, nil
}

// Files returns the files of a torrent.
func (s *Service) Files(ctx context.Context, rawHash string) ([]domain.File, error) {
	hash, err := parseHash(rawHash)
	if err != nil {
		return nil, err
	}
	return s.gateway.ListFiles(ctx, hash)
}

// Add validates and submits a magnet link or torrent URL.
func (s *Service) Add(ctx context.Context, req AddRequest) error {
	uri := strings.TrimSpace(req.URI)
	lower := strings.ToLower(uri)
	if !strings.HasPrefix(lower, "magnet:?") && !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("%w: uri must be a magnet link or http(s) url", domain.ErrInvalidInput)
	}
	savePath := strings.TrimSpace(req.SavePath)
	if savePath == "" {
		savePath = s.defaultSavePath
	}
	return s.gateway.AddTorrent(ctx, uri, domain.AddOptions{
		SavePath:           savePath,
		Category:           strings.TrimSpace(req.Category),
		Paused:             req.Paused,
		Sequential:         req.Sequential,
		FirstLastPiecePrio: req.Sequential,
	})
}

// Pause pauses a torrent.
func (s *Service) Pause(ctx context.Context, rawHash string) error {
	hash, err := parseHash(rawHash)
	if err != nil {
		return err
	}
	return s.gateway.Pause(ctx, hash)
}

// Resume resumes a torrent.
func (s *Service) Resume(ctx context.Context, rawHash string) error {
	hash, err := parseHash(rawHash)
	if err != nil {
		return err
	}
	return s.gateway.Resume(ctx, hash)
}

// Delete removes a torrent, optionally with its data.
func (s *Service) Delete(ctx context.Context, rawHash string, deleteFiles bool) error {
	hash, err := parseHash(rawHash)
	if err != nil {
		return err
	}
	return s.gateway.Delete(ctx, hash, deleteFiles)
}

// SetPriority sets the download priority for a set of files.
func (s *Service) SetPriority(ctx context.Context, rawHash string, fileIDs []int, priority int) error {
	hash, err := parseHash(rawHash)
	if err != nil {
		return err
	}
	p := domain.Priority(priority)
	if !p.Valid() {
		return fmt.Errorf("%w: priority must be one of 0, 1, 6, 7", domain.ErrInvalidInput)
	}
	if len(fileIDs) == 0 {
		return fmt.Errorf("%w: fileIds must not be empty", domain.ErrInvalidInput)
	}
	for _, id := range fileIDs {
		if id < 0 {
			return fmt.Errorf("%w: invalid file id %d", domain.ErrInvalidInput, id)
		}
	}
	return s.gateway.SetFilePriority(ctx, hash, fileIDs, p)
}

// Stats returns global transfer statistics.
func (s *Service) Stats(ctx context.Context) (domain.TransferStats, error) {
	return s.gateway.TransferStats(ctx)
}

// EnableStreaming switches a torrent to in-order download with first/last
// piece priority so its files become playable from the start.
func (s *Service) EnableStreaming(ctx context.Context, rawHash string) error {
	hash, err := parseHash(rawHash)
	if err != nil {
		return err
	}
	if err := s.gateway.SetSequential(ctx, hash, true); err != nil {
		return err
	}
	return s.gateway.SetFirstLastPiecePrio(ctx, hash, true)
}

func parseHash(raw string) (string, error) {
	hash, ok := domain.NormalizeHash(raw)
	if !ok {
		return "", fmt.Errorf("%w: invalid torrent hash", domain.ErrInvalidInput)
	}
	return hash, nil
}

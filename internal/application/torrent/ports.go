package torrent

import (
	"context"

	domain "github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
)

// Gateway is an application port for torrent client operations.
type Gateway interface {
	Enabled() bool
	ListTorrents(ctx context.Context, filter, category string) ([]domain.Torrent, error)
	GetTorrent(ctx context.Context, hash string) (domain.Torrent, error)
	ListFiles(ctx context.Context, hash string) ([]domain.File, error)
	AddTorrent(ctx context.Context, uri string, opts domain.AddOptions) error
	Pause(ctx context.Context, hash string) error
	Resume(ctx context.Context, hash string) error
	SetFilePriority(ctx context.Context, hash string, indexes []int, priority domain.Priority) error
	Delete(ctx context.Context, hash string, deleteFiles bool) error
	TransferStats(ctx context.Context) (domain.TransferStats, error)
	SetSequential(ctx context.Context, hash string, enabled bool) error
	SetFirstLastPiecePrio(ctx context.Context, hash string, enabled bool) error
}

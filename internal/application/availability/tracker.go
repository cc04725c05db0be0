package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/metrics"
)

// DefaultMinReadyFraction absorbs container-header jitter at the very start of a download.
const DefaultMinReadyFraction = 0.05

// Gateway is an application port for the torrent client calls the tracker needs.
type Gateway interface {
	GetTorrent(ctx context.Context, hash string) (torrent.Torrent, error)
	ListFiles(ctx context.Context, hash string) ([]torrent.File, error)
	SetFilePriority(ctx context.Context, hash string, indexes []int, priority torrent.Priority) error
}

// Status is a snapshot of one file and its availability.
type Status struct {
	Torrent torrent.Torrent
	File    torrent.File
	Window  Window
}

// Options configures a Tracker.
type Options struct {
	MinReadyFraction float64
	ExpediteWindow   time.Duration
	Logger           *slog.Logger
}

// Tracker decides which byte ranges of a downloading file are readable and
// can raise a file's priority to make more of it readable sooner.
type Tracker struct {
	gateway     Gateway
	minFraction float64
	window      time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	expedite map[string]*expediteEntry
}

type expediteEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTracker creates an availability tracker over gateway.
func NewTracker(gateway Gateway, opts Options) *Tracker {
	fraction := opts.MinReadyFraction
	if fraction < 0 || fraction > 1 {
		fraction = DefaultMinReadyFraction
	}
	window := opts.ExpediteWindow
	if window <= 0 {
		window = 3 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		gateway:     gateway,
		minFraction: fraction,
		window:      window,
		logger:      logger,
		now:         time.Now,
		expedite:    map[string]*expediteEntry{},
	}
}

// Inspect fetches the torrent and file and computes the current availability window.
// A torrent still fetching metadata has no file list yet; that yields
// torrent.ErrNotReady along with a Status carrying the torrent. A torrent or
// file index unknown upstream once metadata is present yields torrent.ErrGone.
func (t *Tracker) Inspect(ctx context.Context, hash string, index int) (Status, error) {
	tor, err := t.gateway.GetTorrent(ctx, hash)
	if err != nil {
		return Status{}, err
	}
	files, err := t.gateway.ListFiles(ctx, hash)
	if err != nil {
		return Status{}, err
	}
	for _, f := range files {
		if f.Index != index {
			continue
		}
		return Status{
			Torrent: tor,
			File:    f,
			Window:  NewWindow(f.Size, f.Progress, t.minFraction, tor.Sequential, f.Priority == torrent.PrioritySkip),
		}, nil
	}
	if len(files) == 0 || tor.State == torrent.StateMetadata {
		return Status{Torrent: tor}, fmt.Errorf("%w: metadata for %s not received yet", torrent.ErrNotReady, hash)
	}
	return Status{}, fmt.Errorf("%w: file %d of %s", torrent.ErrGone, index, hash)
}

// IsRangeReady reports whether bytes [start, end] of the file can be read now.
func (t *Tracker) IsRangeReady(ctx context.Context, hash string, index int, start, end int64) (bool, error) {
	status, err := t.Inspect(ctx, hash, index)
	if err != nil {
		return false, err
	}
	return status.Window.Ready(start, end), nil
}

// Expedite raises the file to maximal priority. Repeated calls for the same
// file within the expedite window are coalesced into one upstream request.
// The slot is claimed before the upstream call, so coalesced callers return
// at once instead of waiting on it.
func (t *Tracker) Expedite(ctx context.Context, hash string, index int) error {
	if !t.claim(hash, index) {
		metrics.ExpediteTotal.WithLabelValues("coalesced").Inc()
		return nil
	}
	sent, err := t.expediteNow(ctx, hash, index)
	switch {
	case err != nil:
		metrics.ExpediteTotal.WithLabelValues("failed").Inc()
		return err
	case !sent:
		metrics.ExpediteTotal.WithLabelValues("skipped").Inc()
	default:
		metrics.ExpediteTotal.WithLabelValues("sent").Inc()
	}
	return nil
}

func (t *Tracker) expediteNow(ctx context.Context, hash string, index int) (bool, error) {
	status, err := t.Inspect(ctx, hash, index)
	if errors.Is(err, torrent.ErrNotReady) {
		t.logger.Debug("expedite deferred until metadata arrives",
			slog.String("hash", hash),
			slog.Int("fileIndex", index),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !status.Torrent.Sequential {
		t.logger.Warn("expediting non-sequential torrent; contiguous availability cannot be guaranteed",
			slog.String("hash", hash),
			slog.Int("fileIndex", index),
		)
	}
	if status.File.Priority == torrent.PriorityMaximal {
		return false, nil
	}
	if err := t.gateway.SetFilePriority(ctx, hash, []int{index}, torrent.PriorityMaximal); err != nil {
		return false, err
	}
	t.logger.Debug("file priority raised",
		slog.String("hash", hash),
		slog.Int("fileIndex", index),
		slog.Float64("progress", status.File.Progress),
	)
	return true, nil
}

// claim takes the expedite slot for one file. The tracker lock is only held
// for the bookkeeping, never across upstream calls.
func (t *Tracker) claim(hash string, index int) bool {
	key := fmt.Sprintf("%s:%d", hash, index)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.expedite[key]
	if !ok {
		t.pruneLocked(now)
		entry = &expediteEntry{limiter: rate.NewLimiter(rate.Every(t.window), 1)}
		t.expedite[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// pruneLocked forgets files that have not been expedited for a while.
func (t *Tracker) pruneLocked(now time.Time) {
	if len(t.expedite) < 256 {
		return
	}
	for key, entry := range t.expedite {
		if now.Sub(entry.lastSeen) > 10*t.window {
			delete(t.expedite, key)
		}
	}
}

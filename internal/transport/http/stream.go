package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/TheusN/torrentflix-sub000/internal/application/availability"
	"github.com/TheusN/torrentflix-sub000/internal/domain/media"
	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/metrics"
)

// availabilityTracker is the read-side contract the streamer needs from the
// availability layer.
type availabilityTracker interface {
	Inspect(ctx context.Context, hash string, index int) (availability.Status, error)
	Expedite(ctx context.Context, hash string, index int) error
}

type fileOpener interface {
	Open(savePath, name string) (*os.File, error)
}

type streamTarget struct {
	hash  string
	index int
}

func parseStreamTarget(r *http.Request) (streamTarget, error) {
	vars := mux.Vars(r)
	hash, ok := torrent.NormalizeHash(vars["hash"])
	if !ok {
		return streamTarget{}, fmt.Errorf("%w: invalid torrent hash", torrent.ErrInvalidInput)
	}
	index, err := strconv.Atoi(vars["fileIndex"])
	if err != nil || index < 0 {
		return streamTarget{}, fmt.Errorf("%w: invalid file index", torrent.ErrInvalidInput)
	}
	return streamTarget{hash: hash, index: index}, nil
}

// Stream handles GET and HEAD /stream/{hash}/{fileIndex}.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	target, err := parseStreamTarget(r)
	if err != nil {
		h.writeStreamError(w, r, err)
		return
	}

	status, err := h.tracker.Inspect(r.Context(), target.hash, target.index)
	if errors.Is(err, torrent.ErrNotReady) {
		h.respondNotReady(w, r, target, "awaiting metadata")
		return
	}
	if err != nil {
		h.writeStreamError(w, r, err)
		return
	}
	if !status.File.Playable {
		countStream(http.StatusNotFound)
		writeError(w, http.StatusNotFound, "not_playable", "file is not a playable video")
		return
	}

	size := status.Window.Size
	if size <= 0 {
		h.respondNotReady(w, r, target, "size unknown")
		return
	}
	rng, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		countStream(http.StatusRequestedRangeNotSatisfiable)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", err.Error())
		return
	}

	if !clampToReadable(&rng, status.Window) {
		h.logger.Debug("range not ready",
			slog.String("hash", target.hash),
			slog.Int("fileIndex", target.index),
			slog.Int64("start", rng.start),
			slog.Int64("end", rng.end),
			slog.Int64("available", status.Window.Available),
		)
		h.respondNotReady(w, r, target, "range not ready")
		return
	}

	file, err := h.files.Open(status.Torrent.SavePath, status.File.Name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("reported bytes missing on disk",
				slog.String("hash", target.hash),
				slog.Int("fileIndex", target.index),
				slog.String("name", status.File.Name),
			)
			countStream(http.StatusNotFound)
			writeError(w, http.StatusNotFound, "file_missing", "file is not present on the download volume")
			return
		}
		h.logger.Error("open torrent file failed",
			slog.String("hash", target.hash),
			slog.Int("fileIndex", target.index),
			slog.Any("error", err),
		)
		countStream(http.StatusInternalServerError)
		writeError(w, http.StatusInternalServerError, "internal_error", "cannot open file")
		return
	}
	defer file.Close()

	length := rng.length()
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", media.ContentType(status.File.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))

	code := http.StatusPartialContent
	if !rng.explicit && rng.start == 0 && rng.end == size-1 {
		code = http.StatusOK
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
	}

	if _, err := file.Seek(rng.start, io.SeekStart); err != nil {
		countStream(http.StatusInternalServerError)
		writeError(w, http.StatusInternalServerError, "internal_error", "cannot seek file")
		return
	}

	countStream(code)
	w.WriteHeader(code)
	if r.Method == http.MethodHead {
		return
	}

	written, err := io.CopyN(w, contextReader{ctx: r.Context(), r: file}, length)
	metrics.StreamBytesTotal.Add(float64(written))
	if err == nil {
		return
	}
	if r.Context().Err() != nil {
		metrics.StreamAbortsTotal.Inc()
		h.logger.Debug("stream client disconnected",
			slog.String("hash", target.hash),
			slog.Int("fileIndex", target.index),
			slog.Int64("written", written),
		)
		return
	}
	h.logger.Warn("stream copy ended early",
		slog.String("hash", target.hash),
		slog.Int("fileIndex", target.index),
		slog.Int64("written", written),
		slog.Int64("expected", length),
		slog.Any("error", err),
	)
}

// StreamInfo handles GET /stream/{hash}/{fileIndex}/info.
func (h *Handler) StreamInfo(w http.ResponseWriter, r *http.Request) {
	target, err := parseStreamTarget(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	// A torrent awaiting metadata is reported with ready=false so players keep polling.
	status, err := h.tracker.Inspect(r.Context(), target.hash, target.index)
	if err != nil && !errors.Is(err, torrent.ErrNotReady) {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hash":           target.hash,
		"index":          target.index,
		"name":           status.File.Name,
		"size":           status.File.Size,
		"progress":       status.File.Progress,
		"priority":       status.File.Priority,
		"playable":       status.File.Playable,
		"contentType":    media.ContentType(status.File.Name),
		"sequential":     status.Torrent.Sequential,
		"state":          status.Torrent.State,
		"availableBytes": status.Window.Available,
		"readableBytes":  status.Window.ReadableEnd(0) + 1,
		"ready":          status.Window.ReadableEnd(0) >= 0,
	})
}

// respondNotReady answers 503 with Retry-After and asks for the file to be
// expedited in the background.
func (h *Handler) respondNotReady(w http.ResponseWriter, r *http.Request, target streamTarget, reason string) {
	h.expediteAsync(r, target)
	h.logger.Debug("stream not ready",
		slog.String("hash", target.hash),
		slog.Int("fileIndex", target.index),
		slog.String("reason", reason),
	)
	countStream(http.StatusServiceUnavailable)
	writeNotReady(w, h.retryAfterSeconds)
}

func (h *Handler) writeStreamError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classifyError(err)
	countStream(status)
	h.writeServiceError(w, r, err)
}

// clampToReadable shortens open-ended ranges to the readable prefix and
// reports whether the resulting range can be served now.
func clampToReadable(rng *byteRange, window availability.Window) bool {
	if !rng.openEnded {
		return window.Ready(rng.start, rng.end)
	}
	last := window.ReadableEnd(rng.start)
	if last < 0 {
		return false
	}
	if last < rng.end {
		rng.end = last
	}
	return true
}

// expediteAsync asks for the file to be prioritised without holding up the
// response. It outlives the request but not the expedite timeout.
func (h *Handler) expediteAsync(r *http.Request, target streamTarget) {
	parent := context.WithoutCancel(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(parent, h.expediteTimeout)
		defer cancel()
		if err := h.tracker.Expedite(ctx, target.hash, target.index); err != nil {
			h.logger.Warn("expedite failed",
				slog.String("hash", target.hash),
				slog.Int("fileIndex", target.index),
				slog.Any("error", err),
			)
		}
	}()
}

func countStream(status int) {
	metrics.StreamResponsesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// contextReader stops a copy as soon as the request is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

package torrent

import "errors"

var (
	// ErrConnection means the torrent client could not be reached at all.
	ErrConnection = errors.New("torrent client unreachable")
	// ErrUpstreamAuth means credentials were rejected even after a fresh login.
	ErrUpstreamAuth = errors.New("torrent client rejected credentials")
	// ErrNotReady means the requested bytes are not downloaded yet.
	ErrNotReady = errors.New("range not ready")
	// ErrGone means the torrent or file no longer exists upstream.
	ErrGone = errors.New("torrent or file is gone")
	// ErrRangeNotSatisfiable means the requested start lies beyond the final file size.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrUpstream            = errors.New("torrent client error")
	ErrInvalidInput        = errors.New("invalid input")
)

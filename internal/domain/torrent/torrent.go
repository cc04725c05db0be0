package torrent

import (
	"regexp"
	"strings"
)

// Priority is a qBittorrent per-file download priority.
type Priority int

const (
	PrioritySkip    Priority = 0
	PriorityNormal  Priority = 1
	PriorityHigh    Priority = 6
	PriorityMaximal Priority = 7
)

// Valid reports whether p is one of the priorities accepted by the torrent client.
func (p Priority) Valid() bool {
	switch p {
	case PrioritySkip, PriorityNormal, PriorityHigh, PriorityMaximal:
		return true
	default:
		return false
	}
}

// State is the normalized lifecycle state of a torrent.
type State string

const (
	StateDownloading State = "downloading"
	StateSeeding     State = "seeding"
	StatePaused      State = "paused"
	StateQueued      State = "queued"
	StateChecking    State = "checking"
	StateStalled     State = "stalled"
	StateMetadata    State = "metadata"
	StateError       State = "error"
	StateUnknown     State = "unknown"
)

// Torrent describes a torrent with aggregate transfer state.
type Torrent struct {
	Hash               string  `json:"hash"`
	Name               string  `json:"name"`
	TotalSize          int64   `json:"totalSize"`
	Downloaded         int64   `json:"downloaded"`
	Progress           float64 `json:"progress"`
	State              State   `json:"state"`
	SavePath           string  `json:"savePath"`
	Category           string  `json:"category"`
	DlSpeed            int64   `json:"dlSpeed"`
	UpSpeed            int64   `json:"upSpeed"`
	NumSeeds           int     `json:"numSeeds"`
	NumLeeches         int     `json:"numLeeches"`
	Sequential         bool    `json:"sequential"`
	FirstLastPiecePrio bool    `json:"firstLastPiecePrio"`
	AddedOn            int64   `json:"addedOn"`
}

// File describes a single file inside a torrent payload. Identity is (TorrentHash, Index).
type File struct {
	TorrentHash string   `json:"torrentHash"`
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Size        int64    `json:"size"`
	Progress    float64  `json:"progress"`
	Priority    Priority `json:"priority"`
	Playable    bool     `json:"playable"`
}

// TransferStats is the global transfer summary of the torrent client.
type TransferStats struct {
	DlSpeed          int64  `json:"dlSpeed"`
	UpSpeed          int64  `json:"upSpeed"`
	DlTotal          int64  `json:"dlTotal"`
	UpTotal          int64  `json:"upTotal"`
	ConnectionStatus string `json:"connectionStatus"`
}

// AddOptions controls how a new torrent is registered.
type AddOptions struct {
	SavePath           string `json:"savePath"`
	Category           string `json:"category"`
	Paused             bool   `json:"paused"`
	Sequential         bool   `json:"sequential"`
	FirstLastPiecePrio bool   `json:"firstLastPiecePrio"`
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// NormalizeHash lower-cases a hex info hash and validates its shape.
func NormalizeHash(raw string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(raw))
	return h, hashPattern.MatchString(h)
}

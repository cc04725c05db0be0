package library

import "errors"

// MediaType distinguishes series from movies in normalized library items.
type MediaType string

const (
	MediaSeries MediaType = "series"
	MediaMovie  MediaType = "movie"
)

var (
	ErrNotConfigured = errors.New("service is not configured")
	ErrUnavailable   = errors.New("service unavailable")
	ErrUnauthorized  = errors.New("service rejected api key")
	ErrNotFound      = errors.New("item not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// Item is the common shape of a Sonarr series or a Radarr movie.
type Item struct {
	ID         int       `json:"id"`
	MediaType  MediaType `json:"mediaType"`
	Title      string    `json:"title"`
	Year       int       `json:"year"`
	Overview   string    `json:"overview"`
	Poster     string    `json:"poster"`
	SizeOnDisk int64     `json:"sizeOnDisk"`
	Monitored  bool      `json:"monitored"`
	HasFile    bool      `json:"hasFile"`
	Path       string    `json:"path"`
	TMDBID     int       `json:"tmdbId,omitempty"`
	TVDBID     int       `json:"tvdbId,omitempty"`
	Status     string    `json:"status"`
}

// QueueItem is an in-progress download tracked by a library manager.
type QueueItem struct {
	ID                    int     `json:"id"`
	Title                 string  `json:"title"`
	Status                string  `json:"status"`
	Size                  int64   `json:"size"`
	SizeLeft              int64   `json:"sizeLeft"`
	Progress              float64 `json:"progress"`
	DownloadID            string  `json:"downloadId"`
	TrackedDownloadStatus string  `json:"trackedDownloadStatus"`
}

// QualityProfile is a named quality preset.
type QualityProfile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RootFolder is a library root directory.
type RootFolder struct {
	ID        int    `json:"id"`
	Path      string `json:"path"`
	FreeSpace int64  `json:"freeSpace"`
}

// AddRequest adds a looked-up item to a library.
type AddRequest struct {
	Title            string `json:"title"`
	TMDBID           int    `json:"tmdbId"`
	TVDBID           int    `json:"tvdbId"`
	QualityProfileID int    `json:"qualityProfileId"`
	RootFolderPath   string `json:"rootFolderPath"`
	Monitored        bool   `json:"monitored"`
	SearchNow        bool   `json:"searchNow"`
}

// SearchResult is a normalized indexer hit.
type SearchResult struct {
	Title       string `json:"title"`
	Indexer     string `json:"indexer"`
	Size        int64  `json:"size"`
	Seeders     int    `json:"seeders"`
	Leechers    int    `json:"leechers"`
	MagnetURI   string `json:"magnetUri,omitempty"`
	Link        string `json:"link,omitempty"`
	InfoHash    string `json:"infoHash,omitempty"`
	PublishDate string `json:"publishDate,omitempty"`
}

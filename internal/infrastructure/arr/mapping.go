package arr

import (
	"github.com/TheusN/torrentflix-sub000/internal/domain/library"
)

type wireImage struct {
	CoverType string `json:"coverType"`
	URL       string `json:"url"`
	RemoteURL string `json:"remoteUrl"`
}

type wireStatistics struct {
	SizeOnDisk        int64   `json:"sizeOnDisk"`
	EpisodeFileCount  int     `json:"episodeFileCount"`
	PercentOfEpisodes float64 `json:"percentOfEpisodes"`
}

// wireItem covers the fields shared by Sonarr series and Radarr movie resources.
type wireItem struct {
	ID         int             `json:"id"`
	Title      string          `json:"title"`
	Year       int             `json:"year"`
	Overview   string          `json:"overview"`
	Images     []wireImage     `json:"images"`
	RemotePost string          `json:"remotePoster"`
	SizeOnDisk int64           `json:"sizeOnDisk"`
	Monitored  bool            `json:"monitored"`
	HasFile    bool            `json:"hasFile"`
	Path       string          `json:"path"`
	TMDBID     int             `json:"tmdbId"`
	TVDBID     int             `json:"tvdbId"`
	Status     string          `json:"status"`
	Statistics *wireStatistics `json:"statistics"`
}

type wireQueueRecord struct {
	ID                    int     `json:"id"`
	Title                 string  `json:"title"`
	Status                string  `json:"status"`
	Size                  float64 `json:"size"`
	SizeLeft              float64 `json:"sizeleft"`
	DownloadID            string  `json:"downloadId"`
	TrackedDownloadStatus string  `json:"trackedDownloadStatus"`
}

type wireQueuePage struct {
	TotalRecords int               `json:"totalRecords"`
	Records      []wireQueueRecord `json:"records"`
}

func (c *Client) mapItems(items []wireItem) []library.Item {
	out := make([]library.Item, 0, len(items))
	for _, item := range items {
		out = append(out, c.mapItem(item))
	}
	return out
}

func (c *Client) mapItem(w wireItem) library.Item {
	item := library.Item{
		ID:         w.ID,
		MediaType:  library.MediaMovie,
		Title:      w.Title,
		Year:       w.Year,
		Overview:   w.Overview,
		Poster:     poster(w),
		SizeOnDisk: w.SizeOnDisk,
		Monitored:  w.Monitored,
		HasFile:    w.HasFile,
		Path:       w.Path,
		TMDBID:     w.TMDBID,
		TVDBID:     w.TVDBID,
		Status:     w.Status,
	}
	if c.kind == KindSeries {
		item.MediaType = library.MediaSeries
		if w.Statistics != nil {
			item.SizeOnDisk = w.Statistics.SizeOnDisk
			item.HasFile = w.Statistics.EpisodeFileCount > 0
		}
	}
	return item
}

func poster(w wireItem) string {
	if w.RemotePost != "" {
		return w.RemotePost
	}
	for _, img := range w.Images {
		if img.CoverType != "poster" {
			continue
		}
		if img.RemoteURL != "" {
			return img.RemoteURL
		}
		return img.URL
	}
	return ""
}

func mapQueueItem(r wireQueueRecord) library.QueueItem {
	item := library.QueueItem{
		ID:                    r.ID,
		Title:                 r.Title,
		Status:                r.Status,
		Size:                  int64(r.Size),
		SizeLeft:              int64(r.SizeLeft),
		DownloadID:            r.DownloadID,
		TrackedDownloadStatus: r.TrackedDownloadStatus,
	}
	if r.Size > 0 {
		item.Progress = (r.Size - r.SizeLeft) / r.Size
		if item.Progress < 0 {
			item.Progress = 0
		}
	}
	return item
}

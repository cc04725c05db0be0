package qbittorrent

import (
	"strings"

	"github.com/TheusN/torrentflix-sub000/internal/domain/media"
	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
)

// wireTorrent is the torrents/info item shape.
type wireTorrent struct {
	Hash               string  `json:"hash"`
	Name               string  `json:"name"`
	Size               int64   `json:"size"`
	TotalSize          int64   `json:"total_size"`
	Downloaded         int64   `json:"downloaded"`
	Completed          int64   `json:"completed"`
	Progress           float64 `json:"progress"`
	State              string  `json:"state"`
	SavePath           string  `json:"save_path"`
	Category           string  `json:"category"`
	DlSpeed            int64   `json:"dlspeed"`
	UpSpeed            int64   `json:"upspeed"`
	NumSeeds           int     `json:"num_seeds"`
	NumLeechs          int     `json:"num_leechs"`
	SeqDl              bool    `json:"seq_dl"`
	FirstLastPiecePrio bool    `json:"f_l_piece_prio"`
	AddedOn            int64   `json:"added_on"`
}

// wireFile is the torrents/files item shape. Index is absent on old WebUI versions.
type wireFile struct {
	Index    *int    `json:"index"`
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
	Priority int     `json:"priority"`
}

type wireTransfer struct {
	DlInfoSpeed      int64  `json:"dl_info_speed"`
	UpInfoSpeed      int64  `json:"up_info_speed"`
	DlInfoData       int64  `json:"dl_info_data"`
	UpInfoData       int64  `json:"up_info_data"`
	ConnectionStatus string `json:"connection_status"`
}

func mapTorrent(w wireTorrent) torrent.Torrent {
	total := w.Size
	if total <= 0 {
		total = w.TotalSize
	}
	downloaded := w.Completed
	if downloaded <= 0 {
		downloaded = w.Downloaded
	}
	hash, _ := torrent.NormalizeHash(w.Hash)
	return torrent.Torrent{
		Hash:               hash,
		Name:               w.Name,
		TotalSize:          total,
		Downloaded:         downloaded,
		Progress:           clampFraction(w.Progress),
		State:              mapState(w.State),
		SavePath:           w.SavePath,
		Category:           w.Category,
		DlSpeed:            w.DlSpeed,
		UpSpeed:            w.UpSpeed,
		NumSeeds:           w.NumSeeds,
		NumLeeches:         w.NumLeechs,
		Sequential:         w.SeqDl,
		FirstLastPiecePrio: w.FirstLastPiecePrio,
		AddedOn:            w.AddedOn,
	}
}

func mapFiles(hash string, items []wireFile) []torrent.File {
	files := make([]torrent.File, 0, len(items))
	for pos, f := range items {
		files = append(files, mapFile(hash, pos, f))
	}
	return files
}

func mapFile(hash string, pos int, w wireFile) torrent.File {
	index := pos
	if w.Index != nil {
		index = *w.Index
	}
	return torrent.File{
		TorrentHash: hash,
		Index:       index,
		Name:        w.Name,
		Size:        w.Size,
		Progress:    clampFraction(w.Progress),
		Priority:    mapPriority(w.Priority),
		Playable:    media.IsPlayable(w.Name),
	}
}

func mapTransfer(w wireTransfer) torrent.TransferStats {
	return torrent.TransferStats{
		DlSpeed:          w.DlInfoSpeed,
		UpSpeed:          w.UpInfoSpeed,
		DlTotal:          w.DlInfoData,
		UpTotal:          w.UpInfoData,
		ConnectionStatus: w.ConnectionStatus,
	}
}

// mapPriority folds the intermediate values some clients report onto the four known levels.
func mapPriority(p int) torrent.Priority {
	switch {
	case p <= 0:
		return torrent.PrioritySkip
	case p < int(torrent.PriorityHigh):
		return torrent.PriorityNormal
	case p < int(torrent.PriorityMaximal):
		return torrent.PriorityHigh
	default:
		return torrent.PriorityMaximal
	}
}

func mapState(raw string) torrent.State {
	switch strings.TrimSpace(raw) {
	case "downloading", "forcedDL":
		return torrent.StateDownloading
	case "uploading", "stalledUP", "forcedUP":
		return torrent.StateSeeding
	case "pausedDL", "pausedUP", "stoppedDL", "stoppedUP":
		return torrent.StatePaused
	case "queuedDL", "queuedUP":
		return torrent.StateQueued
	case "checkingDL", "checkingUP", "checkingResumeData", "moving", "allocating":
		return torrent.StateChecking
	case "stalledDL":
		return torrent.StateStalled
	case "metaDL", "forcedMetaDL":
		return torrent.StateMetadata
	case "error", "missingFiles":
		return torrent.StateError
	default:
		return torrent.StateUnknown
	}
}

func clampFraction(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package media

import (
	"errors"
	"path"
	"strings"
)

var playableExts = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
}

// IsPlayableExt reports whether extension belongs to a browser-playable container.
func IsPlayableExt(ext string) bool {
	_, ok := playableExts[strings.ToLower(strings.TrimSpace(ext))]
	return ok
}

// IsPlayable reports whether a file name has a playable container extension.
func IsPlayable(name string) bool {
	return IsPlayableExt(path.Ext(strings.ReplaceAll(name, "\\", "/")))
}

// ContentType returns the MIME type used when streaming a file.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if ct, ok := playableExts[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// NormalizeRelativePath validates a torrent-relative file path and returns it in slash form.
func NormalizeRelativePath(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", errors.New("invalid file name")
	}

	value = strings.ReplaceAll(value, "\\", "/")
	cleaned := path.Clean("/" + value)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("invalid file name")
	}

	return cleaned, nil
}

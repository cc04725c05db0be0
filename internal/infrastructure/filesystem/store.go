package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/TheusN/torrentflix-sub000/internal/domain/media"
)

// incompleteSuffix is appended by qBittorrent to files still downloading
// when "Append .!qB extension to incomplete files" is enabled.
const incompleteSuffix = ".!qB"

// Store resolves torrent files to paths on the locally mounted download volume.
type Store struct {
	// DownloadsDir is where the torrent client's downloads are mounted locally.
	DownloadsDir string
	// RemoteSavePath is the same directory as the torrent client reports it.
	RemoteSavePath string
}

// NewStore creates filesystem adapter with configured roots.
func NewStore(downloadsDir, remoteSavePath string) *Store {
	return &Store{DownloadsDir: downloadsDir, RemoteSavePath: remoteSavePath}
}

// EnsureRoot checks that the download volume is mounted.
func (s *Store) EnsureRoot() error {
	info, err := os.Stat(s.DownloadsDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.DownloadsDir)
	}
	return nil
}

// Resolve maps a torrent save path and torrent-relative file name to a local path.
func (s *Store) Resolve(savePath, name string) (string, error) {
	rel, err := media.NormalizeRelativePath(name)
	if err != nil {
		return "", err
	}
	base, err := s.localSavePath(savePath)
	if err != nil {
		return "", err
	}
	full := filepath.Join(base, filepath.FromSlash(rel))
	if !isWithinDir(s.DownloadsDir, full) {
		return "", errors.New("invalid file path")
	}
	return full, nil
}

// Open opens a torrent file for reading. Each call returns an independent handle.
func (s *Store) Open(savePath, name string) (*os.File, error) {
	full, err := s.Resolve(savePath, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return os.Open(full + incompleteSuffix)
}

// FileExists checks if a torrent file is present on the local volume.
func (s *Store) FileExists(savePath, name string) bool {
	full, err := s.Resolve(savePath, name)
	if err != nil {
		return false
	}
	for _, candidate := range []string{full, full + incompleteSuffix} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func (s *Store) localSavePath(savePath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(strings.TrimSpace(savePath), "\\", "/"))
	remote := path.Clean("/" + strings.ReplaceAll(strings.TrimSpace(s.RemoteSavePath), "\\", "/"))

	if remote != "/" && (cleaned == remote || strings.HasPrefix(cleaned, remote+"/")) {
		rest := strings.TrimPrefix(cleaned, remote)
		return filepath.Join(s.DownloadsDir, filepath.FromSlash(rest)), nil
	}
	if isWithinDir(s.DownloadsDir, filepath.FromSlash(cleaned)) {
		return filepath.FromSlash(cleaned), nil
	}
	return "", fmt.Errorf("save path %q is outside the mounted downloads directory", savePath)
}

func isWithinDir(basePath, targetPath string) bool {
	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	sep := string(os.PathSeparator)
	if rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return false
	}
	return true
}

package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Kumar2007/MarvelClashArena/internal/fileutil"
)

// Archive writes final match snapshots under dir, one JSON file per match,
// partitioned by end date.
type Archive struct {
	dir string
}

// NewArchive returns an archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Path is where the snapshot of matchID, ended at endedAt, is stored.
func (a *Archive) Path(matchID string, endedAt time.Time) string {
	return filepath.Join(a.dir, endedAt.UTC().Format("2006/01/02"), matchID+".json")
}

// Write stores snapshot atomically and returns its path.
func (a *Archive) Write(matchID string, endedAt time.Time, snapshot []byte) (string, error) {
	if !json.Valid(snapshot) {
		return "", fmt.Errorf("snapshot for %s is not valid JSON", matchID)
	}
	path := a.Path(matchID, endedAt)
	if err := fileutil.WriteJSONAtomic(path, json.RawMessage(snapshot)); err != nil {
		return "", fmt.Errorf("failed to archive match %s: %w", matchID, err)
	}
	return path, nil
}

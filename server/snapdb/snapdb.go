package snapdb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/snaplapse/snaplapse/pkg/dbh"
	"github.com/snaplapse/snaplapse/pkg/log"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a category, snapshot or generation record
// does not exist, or when a snapshot's underlying file is missing.
var ErrNotFound = errors.New("not found")

// SnapDB owns snapshot/category/generation metadata and the files behind it.
//
// Directory layout:
//
//	root/snapshots.sqlite   Metadata DB
//	root/media/...          Snapshot image files
//	root/videos/...         Generated video artifacts
type SnapDB struct {
	Root string

	log log.Log
	db  *gorm.DB
}

// Open or create a snapshot DB rooted at 'root'.
func Open(logs log.Log, root string) (*SnapDB, error) {
	logs = log.NewPrefixLogger(logs, "SnapDB")

	root = filepath.Clean(root)
	for _, dir := range []string{root, filepath.Join(root, "media"), filepath.Join(root, "videos")} {
		if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, fmt.Errorf("Failed to create snapshot storage path '%v': %w", dir, err)
		}
	}

	dbPath := filepath.Join(root, "snapshots.sqlite")
	logs.Infof("Opening DB at '%v'", dbPath)
	db, err := dbh.OpenDB(logs, dbh.MakeSqliteConfig(dbPath), Migrations(logs), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open snapshot database %v: %w", dbPath, err)
	}

	return &SnapDB{
		Root: root,
		log:  logs,
		db:   db,
	}, nil
}

// DB exposes the underlying gorm handle for read-only use by tests.
func (s *SnapDB) DB() *gorm.DB {
	return s.db
}

// MediaPath returns the absolute path of a stored snapshot file.
func (s *SnapDB) MediaPath(filename string) string {
	return filepath.Join(s.Root, "media", filename)
}

// VideoPath returns the absolute path of a video artifact file.
func (s *SnapDB) VideoPath(filename string) string {
	return filepath.Join(s.Root, "videos", filename)
}

// OpenSnapshotBytes opens the image file behind a snapshot for reading.
// Returns ErrNotFound if the file is gone.
func (s *SnapDB) OpenSnapshotBytes(snap *Snapshot) (io.ReadCloser, error) {
	f, err := os.Open(s.MediaPath(snap.Filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %v file '%v': %w", snap.ID, snap.Filename, ErrNotFound)
	}
	return f, err
}

// Stats is a summary of the whole database.
type Stats struct {
	TotalSnapshots  int64       `json:"totalSnapshots"`
	TotalBytes      int64       `json:"totalBytes"`
	EarliestCapture dbh.IntTime `json:"earliestCapture"`
	LatestCapture   dbh.IntTime `json:"latestCapture"`
	TotalCategories int64       `json:"totalCategories"`
	TotalVideos     int64       `json:"totalVideos"`
}

func (s *SnapDB) Stats() (*Stats, error) {
	st := &Stats{}
	row := s.db.Raw(`
		SELECT COUNT(*), COALESCE(SUM(file_size), 0), COALESCE(MIN(capture_time), 0), COALESCE(MAX(capture_time), 0)
		FROM snapshot`).Row()
	if err := row.Scan(&st.TotalSnapshots, &st.TotalBytes, &st.EarliestCapture, &st.LatestCapture); err != nil {
		return nil, err
	}
	row = s.db.Raw(`SELECT (SELECT COUNT(*) FROM category), (SELECT COUNT(*) FROM video_generation)`).Row()
	if err := row.Scan(&st.TotalCategories, &st.TotalVideos); err != nil {
		return nil, err
	}
	return st, nil
}

// DistinctProjects returns the sorted set of non-empty project names.
func (s *SnapDB) DistinctProjects() ([]string, error) {
	return dbh.ScanArray[string](s.db.Raw(
		`SELECT DISTINCT project FROM snapshot WHERE project IS NOT NULL AND project != '' ORDER BY project`).Rows())
}

// DistinctCameras returns the sorted set of non-empty camera ids.
func (s *SnapDB) DistinctCameras() ([]string, error) {
	return dbh.ScanArray[string](s.db.Raw(
		`SELECT DISTINCT camera_id FROM snapshot WHERE camera_id IS NOT NULL AND camera_id != '' ORDER BY camera_id`).Rows())
}

// CamerasForProject returns the sorted set of camera ids seen in one project.
func (s *SnapDB) CamerasForProject(project string) ([]string, error) {
	return dbh.ScanArray[string](s.db.Raw(
		`SELECT DISTINCT camera_id FROM snapshot WHERE project = ? AND camera_id IS NOT NULL AND camera_id != '' ORDER BY camera_id`,
		project).Rows())
}

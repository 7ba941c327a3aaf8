package snapdb

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/snaplapse/snaplapse/pkg/dbh"
	"gorm.io/gorm"
)

// SnapshotQuery is the predicate for QuerySnapshots and CountSnapshots.
// All fields are optional and combine with AND semantics.
// CategoryIDs must already be expanded to the full descendant closure;
// expanding a single category id is the assembly engine's job.
type SnapshotQuery struct {
	IDs         []int64 // explicit snapshot ids; unknown ids simply don't match
	CategoryIDs []int64
	StartTime   time.Time // inclusive
	EndTime     time.Time // inclusive
	Tag         string    // case-insensitive substring match against the tag list
	CameraID    string
	Project     string
	Source      string
	Limit       int
	Offset      int
}

func (s *SnapDB) applySnapshotQuery(tx *gorm.DB, q *SnapshotQuery) *gorm.DB {
	if len(q.IDs) > 0 {
		tx = tx.Where("id IN " + dbh.SQLFormatIDArray(q.IDs))
	}
	if len(q.CategoryIDs) > 0 {
		tx = tx.Where("category_id IN " + dbh.SQLFormatIDArray(q.CategoryIDs))
	}
	if !q.StartTime.IsZero() {
		tx = tx.Where("capture_time >= ?", dbh.MakeIntTime(q.StartTime))
	}
	if !q.EndTime.IsZero() {
		tx = tx.Where("capture_time <= ?", dbh.MakeIntTime(q.EndTime))
	}
	if q.Tag != "" {
		tx = tx.Where("LOWER(tags) LIKE ?", "%"+strings.ToLower(q.Tag)+"%")
	}
	if q.CameraID != "" {
		tx = tx.Where("camera_id = ?", q.CameraID)
	}
	if q.Project != "" {
		tx = tx.Where("project = ?", q.Project)
	}
	if q.Source != "" {
		tx = tx.Where("source = ?", q.Source)
	}
	return tx
}

// QuerySnapshots runs the predicate and returns matches ordered by
// capture_time ascending, ties broken by id ascending. The ordering is
// identical for every caller; time-lapse assembly depends on that.
func (s *SnapDB) QuerySnapshots(q *SnapshotQuery) ([]Snapshot, error) {
	tx := s.applySnapshotQuery(s.db.Model(&Snapshot{}), q)
	tx = tx.Order("capture_time, id")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit).Offset(q.Offset)
	}
	snaps := []Snapshot{}
	if err := tx.Find(&snaps).Error; err != nil {
		return nil, err
	}
	return snaps, nil
}

// CountSnapshots counts matches of the predicate, ignoring Limit/Offset.
func (s *SnapDB) CountSnapshots(q *SnapshotQuery) (int64, error) {
	var n int64
	if err := s.applySnapshotQuery(s.db.Model(&Snapshot{}), q).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// AddSnapshot inserts a snapshot record. CaptureTime is required.
func (s *SnapDB) AddSnapshot(snap *Snapshot) error {
	if snap.CaptureTime.IsZero() {
		return fmt.Errorf("snapshot capture time is required")
	}
	if snap.Filename == "" {
		return fmt.Errorf("snapshot filename is required")
	}
	if snap.CategoryID != nil {
		if _, err := s.GetCategory(*snap.CategoryID); err != nil {
			return err
		}
	}
	if snap.UploadTime.IsZero() {
		snap.UploadTime = dbh.MakeIntTime(time.Now())
	}
	return s.db.Create(snap).Error
}

func (s *SnapDB) GetSnapshot(id int64) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := s.db.First(snap, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("snapshot %v: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return snap, nil
}

// UpdateSnapshot changes category/tags/notes/capture time of a snapshot.
// Nil fields are left unchanged; a categoryID pointing at id 0 clears the category.
func (s *SnapDB) UpdateSnapshot(id int64, categoryID *int64, tags []string, notes *string, captureTime *time.Time) error {
	snap, err := s.GetSnapshot(id)
	if err != nil {
		return err
	}
	if categoryID != nil {
		if *categoryID == 0 {
			snap.CategoryID = nil
		} else {
			if _, err := s.GetCategory(*categoryID); err != nil {
				return err
			}
			snap.CategoryID = categoryID
		}
	}
	if tags != nil {
		snap.Tags = dbh.MakeJSONField(tags)
	}
	if notes != nil {
		snap.Notes = *notes
	}
	if captureTime != nil {
		if captureTime.IsZero() {
			return fmt.Errorf("snapshot capture time is required")
		}
		snap.CaptureTime = dbh.MakeIntTime(*captureTime)
	}
	return s.db.Save(snap).Error
}

// DeleteSnapshot removes the record and its stored file.
func (s *SnapDB) DeleteSnapshot(id int64) error {
	snap, err := s.GetSnapshot(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.MediaPath(snap.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warnf("Could not remove snapshot file '%v': %v", snap.Filename, err)
	}
	return s.db.Delete(&Snapshot{}, id).Error
}

// CleanupMissingFiles deletes snapshot records whose media file no longer
// exists on disk, and returns the number of records removed. Records are
// scanned in batches so a large archive doesn't get loaded into memory.
func (s *SnapDB) CleanupMissingFiles() (int64, error) {
	const batchSize = 500
	missing := []int64{}
	for offset := 0; ; offset += batchSize {
		batch := []Snapshot{}
		if err := s.db.Select("id", "filename").Order("id").Limit(batchSize).Offset(offset).Find(&batch).Error; err != nil {
			return 0, err
		}
		if len(batch) == 0 {
			break
		}
		for _, snap := range batch {
			if _, err := os.Stat(s.MediaPath(snap.Filename)); errors.Is(err, os.ErrNotExist) {
				missing = append(missing, snap.ID)
			}
		}
	}
	deleted := int64(0)
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		tx := s.db.Where("id IN " + dbh.SQLFormatIDArray(missing[start:end])).Delete(&Snapshot{})
		if tx.Error != nil {
			return deleted, tx.Error
		}
		deleted += tx.RowsAffected
	}
	if deleted > 0 {
		s.log.Infof("Cleanup removed %v snapshot records with missing files", deleted)
	}
	return deleted, nil
}

// SearchSnapshots does a free-text search over tags, notes and original
// filename, newest capture first.
func (s *SnapDB) SearchSnapshots(keyword string) ([]Snapshot, error) {
	like := "%" + strings.ToLower(keyword) + "%"
	snaps := []Snapshot{}
	err := s.db.
		Where("LOWER(tags) LIKE ? OR LOWER(notes) LIKE ? OR LOWER(original_name) LIKE ?", like, like, like).
		Order("capture_time DESC, id DESC").
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

package snapdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/snaplapse/snaplapse/pkg/dbh"
	"gorm.io/gorm"
)

// AddCategory creates a new category. parentID may be nil for a root.
func (s *SnapDB) AddCategory(name string, parentID *int64, description string) (*Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name may not be empty")
	}
	if parentID != nil {
		if _, err := s.GetCategory(*parentID); err != nil {
			return nil, fmt.Errorf("parent category %v: %w", *parentID, err)
		}
	}
	cat := &Category{
		Name:        name,
		ParentID:    parentID,
		Description: description,
		CreatedAt:   dbh.MakeIntTime(time.Now()),
	}
	if err := s.db.Create(cat).Error; err != nil {
		return nil, err
	}
	return cat, nil
}

func (s *SnapDB) GetCategory(id int64) (*Category, error) {
	cat := &Category{}
	if err := s.db.First(cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %v: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return cat, nil
}

// Categories returns all categories, parents before their children where the
// data allows it (ordered by parent then name, like the classification UI shows them).
func (s *SnapDB) Categories() ([]Category, error) {
	cats := []Category{}
	if err := s.db.Order("parent_id, name").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

// CategoryChildren returns the direct children of the given category.
func (s *SnapDB) CategoryChildren(id int64) ([]Category, error) {
	cats := []Category{}
	if err := s.db.Where("parent_id = ?", id).Order("name").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

// UpdateCategory changes name/description/parent of a category.
// Nil fields are left unchanged; a parentID pointing at id 0 clears the parent.
func (s *SnapDB) UpdateCategory(id int64, name, description *string, parentID *int64) error {
	cat, err := s.GetCategory(id)
	if err != nil {
		return err
	}
	if name != nil {
		cat.Name = *name
	}
	if description != nil {
		cat.Description = *description
	}
	if parentID != nil {
		if *parentID == 0 {
			cat.ParentID = nil
		} else {
			if _, err := s.GetCategory(*parentID); err != nil {
				return fmt.Errorf("parent category %v: %w", *parentID, err)
			}
			cat.ParentID = parentID
		}
	}
	return s.db.Save(cat).Error
}

// DeleteCategory removes a category, but refuses while snapshots or child
// categories still reference it.
func (s *SnapDB) DeleteCategory(id int64) error {
	if _, err := s.GetCategory(id); err != nil {
		return err
	}
	var snaps int64
	if err := s.db.Model(&Snapshot{}).Where("category_id = ?", id).Count(&snaps).Error; err != nil {
		return err
	}
	if snaps > 0 {
		return fmt.Errorf("category %v is still used by %v snapshots", id, snaps)
	}
	var children int64
	if err := s.db.Model(&Category{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("category %v still has %v child categories", id, children)
	}
	return s.db.Delete(&Category{}, id).Error
}

// CategoryCount is one row of CategorySnapshotCounts.
type CategoryCount struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SnapshotCount int64  `json:"snapshotCount"`
}

// CategorySnapshotCounts returns per-category snapshot counts, busiest first.
func (s *SnapDB) CategorySnapshotCounts() ([]CategoryCount, error) {
	counts := []CategoryCount{}
	err := s.db.Raw(`
		SELECT c.id AS id, c.name AS name, COUNT(sn.id) AS snapshot_count
		FROM category c
		LEFT JOIN snapshot sn ON c.id = sn.category_id
		GROUP BY c.id, c.name
		ORDER BY snapshot_count DESC`).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

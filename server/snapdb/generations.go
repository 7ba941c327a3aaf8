package snapdb

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/snaplapse/snaplapse/pkg/dbh"
	"gorm.io/gorm"
)

// AddGeneration inserts a new generation record. The caller (the generation
// recorder) sets the status; everything downstream of that goes through
// UpdateGeneration.
func (s *SnapDB) AddGeneration(gen *VideoGeneration) error {
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = dbh.MakeIntTime(time.Now())
	}
	gen.UpdatedAt = dbh.MakeIntTime(time.Now())
	return s.db.Create(gen).Error
}

func (s *SnapDB) GetGeneration(id int64) (*VideoGeneration, error) {
	gen := &VideoGeneration{}
	if err := s.db.First(gen, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("video generation %v: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return gen, nil
}

// Generations returns all generation records, newest first.
func (s *SnapDB) Generations() ([]VideoGeneration, error) {
	gens := []VideoGeneration{}
	if err := s.db.Order("created_at DESC, id DESC").Find(&gens).Error; err != nil {
		return nil, err
	}
	return gens, nil
}

// UpdateGeneration persists a modified generation record.
func (s *SnapDB) UpdateGeneration(gen *VideoGeneration) error {
	gen.UpdatedAt = dbh.MakeIntTime(time.Now())
	return s.db.Save(gen).Error
}

// DeleteGeneration removes the record and its artifact file (if any).
func (s *SnapDB) DeleteGeneration(id int64) error {
	gen, err := s.GetGeneration(id)
	if err != nil {
		return err
	}
	if gen.Filename != "" {
		if err := os.Remove(s.VideoPath(gen.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warnf("Could not remove video file '%v': %v", gen.Filename, err)
		}
	}
	return s.db.Delete(&VideoGeneration{}, id).Error
}

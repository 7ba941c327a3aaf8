package snapdb

import (
	"github.com/snaplapse/snaplapse/pkg/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Category is a node in the classification forest. Roots have a nil ParentID.
// The parent graph is supposed to be acyclic, but nothing that reads it may
// assume that (bad imports have produced cycles before).
type Category struct {
	BaseModel
	Name        string      `json:"name"`
	ParentID    *int64      `json:"parentID,omitempty"`
	Description string      `json:"description,omitempty"`
	CreatedAt   dbh.IntTime `json:"createdAt"`
}

// Snapshot is one ingested image. The record is owned by this package;
// the assembly engine only reads it.
type Snapshot struct {
	BaseModel
	Filename     string                   `json:"filename"` // stored file, relative to the media root
	OriginalName string                   `json:"originalName"`
	CategoryID   *int64                   `json:"categoryID,omitempty"`
	CaptureTime  dbh.IntTime              `json:"captureTime"` // required. Sole ordering key for assembly; ties broken by id.
	UploadTime   dbh.IntTime              `json:"uploadTime"`
	FileSize     int64                    `json:"fileSize"`
	Width        int                      `json:"width"`
	Height       int                      `json:"height"`
	Source       string                   `json:"source,omitempty"`
	CameraID     string                   `json:"cameraID,omitempty"`
	Project      string                   `json:"project,omitempty"`
	Tags         *dbh.JSONField[[]string] `json:"tags,omitempty"`
	Notes        string                   `json:"notes,omitempty"`
}

// GenerationStatus is the lifecycle state of a VideoGeneration.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationRunning   GenerationStatus = "running"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Terminal states are final. A failed generation is resubmitted as a new
// record, never retried in place.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// DailyParams is the time-of-day matcher portion of GenerationParams.
type DailyParams struct {
	Hour             int `json:"hour"`
	Minute           int `json:"minute"`
	ToleranceMinutes int `json:"toleranceMinutes"`
}

// ComparisonParams is the comparison portion of GenerationParams: one filter
// per cell, plus the layout of the composed canvas. The nested filters carry
// only plain filter fields, never Daily or Comparison of their own.
type ComparisonParams struct {
	Filters    []GenerationParams `json:"filters"`
	Layout     string             `json:"layout,omitempty"`
	CellWidth  int                `json:"cellWidth,omitempty"`
	CellHeight int                `json:"cellHeight,omitempty"`
}

// GenerationParams records the query that produced a video, so that the exact
// snapshot sequence can be reproduced later.
type GenerationParams struct {
	CategoryID  int64             `json:"categoryID,omitempty"`
	SnapshotIDs []int64           `json:"snapshotIDs,omitempty"`
	StartTime   dbh.IntTime       `json:"startTime,omitempty"`
	EndTime     dbh.IntTime       `json:"endTime,omitempty"`
	Tag         string            `json:"tag,omitempty"`
	CameraID    string            `json:"cameraID,omitempty"`
	Project     string            `json:"project,omitempty"`
	Source      string            `json:"source,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Offset      int               `json:"offset,omitempty"`
	Daily       *DailyParams      `json:"daily,omitempty"`
	Comparison  *ComparisonParams `json:"comparison,omitempty"`
}

// VideoGeneration is the lifecycle record of one video-assembly request.
// One record per request, written only by the generation recorder, and
// write-once after reaching a terminal status.
type VideoGeneration struct {
	BaseModel
	Filename      string                           `json:"filename,omitempty"` // artifact file, relative to the video root. Empty until completed.
	Status        GenerationStatus                 `json:"status"`
	Error         string                           `json:"error,omitempty"`
	SnapshotCount int                              `json:"snapshotCount"` // frames actually encoded (post skip)
	SkippedCount  int                              `json:"skippedCount"`
	TotalFrames   int                              `json:"totalFrames"`
	FPS           int                              `json:"fps"`
	DurationMS    int64                            `json:"durationMS"`
	FileSize      int64                            `json:"fileSize"`
	Width         int                              `json:"width"`
	Height        int                              `json:"height"`
	Filter        *dbh.JSONField[GenerationParams] `json:"filter,omitempty"`
	CreatedAt     dbh.IntTime                      `json:"createdAt"`
	UpdatedAt     dbh.IntTime                      `json:"updatedAt"`
}

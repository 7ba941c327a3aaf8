package snapdb

import (
	"github.com/BurntSushi/migration"
	"github.com/snaplapse/snaplapse/pkg/dbh"
	"github.com/snaplapse/snaplapse/pkg/log"
)

func Migrations(log log.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE category(
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			parent_id INT,
			description TEXT,
			created_at INT
		);

		CREATE INDEX idx_category_parent ON category (parent_id);

		CREATE TABLE snapshot(
			id INTEGER PRIMARY KEY,
			filename TEXT NOT NULL,
			original_name TEXT NOT NULL,
			category_id INT,
			capture_time INT NOT NULL,
			upload_time INT,
			file_size INT,
			width INT,
			height INT,
			source TEXT,
			tags TEXT,
			notes TEXT
		);

		CREATE INDEX idx_snapshot_capture_time ON snapshot (capture_time);
		CREATE INDEX idx_snapshot_category ON snapshot (category_id);
		CREATE INDEX idx_snapshot_source ON snapshot (source);

		CREATE TABLE video_generation(
			id INTEGER PRIMARY KEY,
			filename TEXT,
			status TEXT NOT NULL,
			error TEXT,
			snapshot_count INT,
			skipped_count INT,
			total_frames INT,
			fps INT,
			duration_ms INT,
			file_size INT,
			width INT,
			height INT,
			filter TEXT,
			created_at INT NOT NULL,
			updated_at INT
		);

		CREATE INDEX idx_video_generation_created ON video_generation (created_at);
	`))

	// Snapshots gained camera/project identity once multi-camera rigs arrived.
	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		ALTER TABLE snapshot ADD COLUMN camera_id TEXT;
		ALTER TABLE snapshot ADD COLUMN project TEXT;

		CREATE INDEX idx_snapshot_category_capture ON snapshot (category_id, capture_time);
		CREATE INDEX idx_snapshot_project_camera ON snapshot (project, camera_id);
	`))

	return migs
}

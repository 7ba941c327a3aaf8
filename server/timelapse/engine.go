package timelapse

import (
	"sync"

	"github.com/snaplapse/snaplapse/pkg/log"
	"github.com/snaplapse/snaplapse/server/snapdb"
)

// DefaultMaxConcurrent is the default cap on simultaneous video generations.
// Each generation holds one decoded canvas plus encoder buffers, so this is
// effectively a memory limit.
const DefaultMaxConcurrent = 2

// Engine answers snapshot queries and assembles time-lapse videos.
// Query paths are read-only and safe for any number of concurrent callers.
type Engine struct {
	log log.Log
	db  *snapdb.SnapDB

	// Counting semaphore on simultaneous generations
	genSlots chan struct{}

	progressLock sync.Mutex
	progress     map[int64]Progress
}

func NewEngine(logs log.Log, db *snapdb.SnapDB, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Engine{
		log:      log.NewPrefixLogger(logs, "Timelapse"),
		db:       db,
		genSlots: make(chan struct{}, maxConcurrent),
		progress: map[int64]Progress{},
	}
}

// Progress is a point-in-time view of one generation's pipeline position.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	State   string `json:"state"`
}

func (e *Engine) setProgress(genID int64, current, total int, state string) {
	p := Progress{
		Current: current,
		Total:   total,
		State:   state,
	}
	if total > 0 {
		p.Percent = current * 100 / total
	}
	e.progressLock.Lock()
	e.progress[genID] = p
	e.progressLock.Unlock()
}

// Progress reports the pipeline position of a generation.
// Unknown ids report the zero Progress with state "unknown".
func (e *Engine) Progress(genID int64) Progress {
	e.progressLock.Lock()
	defer e.progressLock.Unlock()
	if p, ok := e.progress[genID]; ok {
		return p
	}
	return Progress{State: "unknown"}
}

// ClearProgress drops the progress entry of a finished generation.
func (e *Engine) ClearProgress(genID int64) {
	e.progressLock.Lock()
	delete(e.progress, genID)
	e.progressLock.Unlock()
}

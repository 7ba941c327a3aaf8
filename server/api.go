package server

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/snaplapse/snaplapse/pkg/www"
	"github.com/snaplapse/snaplapse/server/snapdb"
	"github.com/snaplapse/snaplapse/server/timelapse"
)

func (s *Server) setupRouter() http.Handler {
	router := httprouter.New()

	www.Handle(s.Log, router, "GET", "/api/ping", s.httpPing)
	www.Handle(s.Log, router, "GET", "/api/stats", s.httpStats)
	www.Handle(s.Log, router, "GET", "/api/filters", s.httpFilters)

	www.Handle(s.Log, router, "GET", "/api/snapshots", s.httpSnapshotsQuery)
	www.Handle(s.Log, router, "GET", "/api/snapshots/daily", s.httpSnapshotsDaily)
	www.Handle(s.Log, router, "GET", "/api/snapshot/:id", s.httpSnapshotGet)
	www.Handle(s.Log, router, "GET", "/api/snapshot/:id/image", s.httpSnapshotImage)
	www.Handle(s.Log, router, "PUT", "/api/snapshot/:id", s.httpSnapshotUpdate)
	www.Handle(s.Log, router, "DELETE", "/api/snapshot/:id", s.httpSnapshotDelete)
	www.Handle(s.Log, router, "GET", "/api/search", s.httpSearch)
	www.Handle(s.Log, router, "POST", "/api/cleanup", s.httpCleanup)

	www.Handle(s.Log, router, "GET", "/api/categories", s.httpCategoriesList)
	www.Handle(s.Log, router, "POST", "/api/categories", s.httpCategoryAdd)
	www.Handle(s.Log, router, "GET", "/api/categories/counts", s.httpCategoryCounts)
	www.Handle(s.Log, router, "PUT", "/api/category/:id", s.httpCategoryUpdate)
	www.Handle(s.Log, router, "DELETE", "/api/category/:id", s.httpCategoryDelete)

	www.Handle(s.Log, router, "POST", "/api/generate-video", s.httpVideoGenerate)
	www.Handle(s.Log, router, "POST", "/api/generate-video/start", s.httpVideoGenerateStart)
	www.Handle(s.Log, router, "POST", "/api/generate-video/from-ids", s.httpVideoGenerateFromIDs)
	www.Handle(s.Log, router, "GET", "/api/generate-video/progress/:id", s.httpVideoProgress)
	www.Handle(s.Log, router, "GET", "/api/videos", s.httpVideosList)
	www.Handle(s.Log, router, "GET", "/api/video/:id", s.httpVideoGet)
	www.Handle(s.Log, router, "GET", "/api/video/:id/download", s.httpVideoDownload)
	www.Handle(s.Log, router, "DELETE", "/api/video/:id", s.httpVideoDelete)

	return router
}

// checkEngine maps the engine/database error taxonomy onto HTTP statuses.
// Anything unrecognized escalates to a 500 via www.Check.
func checkEngine(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, timelapse.ErrInvalidFilter):
		www.PanicBadRequestf("%v", err)
	case errors.Is(err, timelapse.ErrEmptyInput):
		www.PanicBadRequestf("%v", err)
	case errors.Is(err, timelapse.ErrBusy):
		www.Panic(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, snapdb.ErrNotFound):
		www.Panic(http.StatusNotFound, err.Error())
	default:
		www.Check(err)
	}
}

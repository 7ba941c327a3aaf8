package server

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/snaplapse/snaplapse/pkg/www"
	"github.com/snaplapse/snaplapse/server/snapdb"
	"github.com/snaplapse/snaplapse/server/timelapse"
)

type snapshotListJSON struct {
	Items []snapdb.Snapshot `json:"items"`
	Total int64             `json:"total"`
}

// parseTimeParam reads an RFC3339 query value, or the zero time if absent.
func parseTimeParam(r *http.Request, key string) time.Time {
	v := www.QueryValue(r, key)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		www.PanicBadRequestf("Invalid %v '%v' (expected RFC3339, eg 2025-06-01T06:00:00Z)", key, v)
	}
	return t
}

func parseSnapshotFilter(r *http.Request) timelapse.Filter {
	return timelapse.Filter{
		CategoryID: www.QueryInt64(r, "category"),
		StartTime:  parseTimeParam(r, "startTime"),
		EndTime:    parseTimeParam(r, "endTime"),
		Tag:        www.QueryValue(r, "tag"),
		CameraID:   www.QueryValue(r, "camera"),
		Project:    www.QueryValue(r, "project"),
		Source:     www.QueryValue(r, "source"),
		Limit:      www.QueryInt(r, "limit"),
		Offset:     www.QueryInt(r, "offset"),
	}
}

func (s *Server) httpSnapshotsQuery(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	filter := parseSnapshotFilter(r)
	items, err := s.Engine.Query(&filter)
	checkEngine(err)
	total, err := s.Engine.Count(&filter)
	checkEngine(err)
	www.SendJSON(w, &snapshotListJSON{Items: items, Total: total})
}

func (s *Server) httpSnapshotsDaily(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	filter := parseSnapshotFilter(r)
	daily := timelapse.DailySpec{
		Hour:             www.RequiredQueryInt(r, "hour"),
		Minute:           www.QueryInt(r, "minute"),
		ToleranceMinutes: www.QueryInt(r, "tolerance"),
	}
	items, err := s.Engine.MatchDaily(&daily, &filter)
	checkEngine(err)
	www.SendJSON(w, &snapshotListJSON{Items: items, Total: int64(len(items))})
}

func (s *Server) httpSnapshotGet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	snap, err := s.DB.GetSnapshot(www.ParseID(params.ByName("id")))
	checkEngine(err)
	www.SendJSON(w, snap)
}

func (s *Server) httpSnapshotImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	snap, err := s.DB.GetSnapshot(www.ParseID(params.ByName("id")))
	checkEngine(err)
	www.SendFile(w, r, s.DB.MediaPath(snap.Filename))
}

type snapshotUpdateJSON struct {
	CategoryID  *int64     `json:"categoryID"`
	Tags        []string   `json:"tags"`
	Notes       *string    `json:"notes"`
	CaptureTime *time.Time `json:"captureTime"`
}

func (s *Server) httpSnapshotUpdate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("id"))
	update := snapshotUpdateJSON{}
	www.ReadJSON(w, r, &update, 1024*1024)
	err := s.DB.UpdateSnapshot(id, update.CategoryID, update.Tags, update.Notes, update.CaptureTime)
	checkEngine(err)
	www.SendOK(w)
}

func (s *Server) httpSnapshotDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	err := s.DB.DeleteSnapshot(www.ParseID(params.ByName("id")))
	checkEngine(err)
	www.SendOK(w)
}

func (s *Server) httpSearch(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	keyword := www.RequiredQueryValue(r, "q")
	items, err := s.DB.SearchSnapshots(keyword)
	www.Check(err)
	www.SendJSON(w, &snapshotListJSON{Items: items, Total: int64(len(items))})
}

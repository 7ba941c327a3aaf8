package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/snaplapse/snaplapse/pkg/www"
	"github.com/snaplapse/snaplapse/server/snapdb"
	"github.com/snaplapse/snaplapse/server/timelapse"
)

// httpVideoGenerate runs a generation synchronously and returns the terminal
// record. Long filters are better served by the /start + /progress pair.
func (s *Server) httpVideoGenerate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := timelapse.GenerateRequest{}
	www.ReadJSON(w, r, &req, 1024*1024)
	gen, err := s.Engine.Generate(r.Context(), &req)
	if err != nil && gen != nil {
		// The pipeline failed after the record was created. The record tells
		// the client more than a bare status code, so send it along.
		www.SendJSON(w, gen)
		return
	}
	checkEngine(err)
	www.SendJSON(w, gen)
}

func (s *Server) httpVideoGenerateStart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := timelapse.GenerateRequest{}
	www.ReadJSON(w, r, &req, 1024*1024)
	gen, err := s.Engine.StartGenerate(&req)
	checkEngine(err)
	www.SendJSON(w, gen)
}

type generateFromIDsJSON struct {
	SnapshotIDs []int64 `json:"snapshotIDs"`
	FPS         int     `json:"fps"`
	Overlay     bool    `json:"overlay"`
	OutputName  string  `json:"outputName"`
}

// httpVideoGenerateFromIDs builds a video from an explicit snapshot list.
// Ids that don't exist are skipped; frames come out in capture order
// regardless of the order of the list.
func (s *Server) httpVideoGenerateFromIDs(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	body := generateFromIDsJSON{}
	www.ReadJSON(w, r, &body, 1024*1024)
	if len(body.SnapshotIDs) == 0 {
		www.PanicBadRequestf("snapshotIDs is required")
	}
	gen, err := s.Engine.StartGenerate(&timelapse.GenerateRequest{
		Filter:     timelapse.Filter{SnapshotIDs: body.SnapshotIDs},
		FPS:        body.FPS,
		Overlay:    body.Overlay,
		OutputName: body.OutputName,
	})
	checkEngine(err)
	www.SendJSON(w, gen)
}

type progressJSON struct {
	Generation *snapdb.VideoGeneration `json:"generation"`
	Progress   timelapse.Progress      `json:"progress"`
}

func (s *Server) httpVideoProgress(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("id"))
	gen, err := s.DB.GetGeneration(id)
	checkEngine(err)
	www.SendJSON(w, &progressJSON{
		Generation: gen,
		Progress:   s.Engine.Progress(id),
	})
}

func (s *Server) httpVideosList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gens, err := s.DB.Generations()
	www.Check(err)
	www.SendJSON(w, gens)
}

func (s *Server) httpVideoGet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gen, err := s.DB.GetGeneration(www.ParseID(params.ByName("id")))
	checkEngine(err)
	www.SendJSON(w, gen)
}

func (s *Server) httpVideoDownload(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gen, err := s.DB.GetGeneration(www.ParseID(params.ByName("id")))
	checkEngine(err)
	if gen.Status != snapdb.GenerationCompleted || gen.Filename == "" {
		www.PanicBadRequestf("Generation %v has no artifact (status %v)", gen.ID, gen.Status)
	}
	www.SendFile(w, r, s.DB.VideoPath(gen.Filename))
}

func (s *Server) httpVideoDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	err := s.DB.DeleteGeneration(www.ParseID(params.ByName("id")))
	checkEngine(err)
	www.SendOK(w)
}

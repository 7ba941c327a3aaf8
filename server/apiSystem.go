package server

import (
	"net/http"
	"os"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/snaplapse/snaplapse/pkg/www"
)

type pingJSON struct {
	Greeting string `json:"greeting"`
	Hostname string `json:"hostname"`
	Time     int64  `json:"time"`
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	hostname, _ := os.Hostname()
	www.SendJSON(w, &pingJSON{
		Greeting: "I am Snaplapse",
		Hostname: hostname,
		Time:     time.Now().Unix(),
	})
}

func (s *Server) httpStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	stats, err := s.DB.Stats()
	www.Check(err)
	www.SendJSON(w, stats)
}

type filtersJSON struct {
	Projects []string `json:"projects"`
	Cameras  []string `json:"cameras"`
}

// httpFilters returns the distinct projects and cameras present in the
// database, for populating filter dropdowns. Pass ?project= to narrow the
// camera list to one project.
func (s *Server) httpFilters(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	projects, err := s.DB.DistinctProjects()
	www.Check(err)
	var cameras []string
	if project := www.QueryValue(r, "project"); project != "" {
		cameras, err = s.DB.CamerasForProject(project)
	} else {
		cameras, err = s.DB.DistinctCameras()
	}
	www.Check(err)
	www.SendJSON(w, &filtersJSON{Projects: projects, Cameras: cameras})
}

type cleanupJSON struct {
	Deleted int64 `json:"deleted"`
}

// httpCleanup removes snapshot records whose media files have vanished from
// disk, for recovering after files are pruned outside the API.
func (s *Server) httpCleanup(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	deleted, err := s.DB.CleanupMissingFiles()
	www.Check(err)
	www.SendJSON(w, &cleanupJSON{Deleted: deleted})
}

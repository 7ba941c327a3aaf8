package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/snaplapse/snaplapse/pkg/www"
)

func (s *Server) httpCategoriesList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cats, err := s.DB.Categories()
	www.Check(err)
	www.SendJSON(w, cats)
}

type categoryAddJSON struct {
	Name        string `json:"name"`
	ParentID    *int64 `json:"parentID"`
	Description string `json:"description"`
}

func (s *Server) httpCategoryAdd(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	add := categoryAddJSON{}
	www.ReadJSON(w, r, &add, 1024*1024)
	if add.Name == "" {
		www.PanicBadRequestf("Category name may not be empty")
	}
	cat, err := s.DB.AddCategory(add.Name, add.ParentID, add.Description)
	checkEngine(err)
	www.SendJSON(w, cat)
}

func (s *Server) httpCategoryCounts(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	counts, err := s.DB.CategorySnapshotCounts()
	www.Check(err)
	www.SendJSON(w, counts)
}

type categoryUpdateJSON struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentID    *int64  `json:"parentID"`
}

func (s *Server) httpCategoryUpdate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("id"))
	update := categoryUpdateJSON{}
	www.ReadJSON(w, r, &update, 1024*1024)
	err := s.DB.UpdateCategory(id, update.Name, update.Description, update.ParentID)
	checkEngine(err)
	www.SendOK(w)
}

func (s *Server) httpCategoryDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	err := s.DB.DeleteCategory(www.ParseID(params.ByName("id")))
	checkEngine(err)
	www.SendOK(w)
}

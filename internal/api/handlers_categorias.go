package api

import (
	"net/http"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

type tipoRequest struct {
	Nome string `json:"nome"`
}

func (s *Server) handleListTipos(w http.ResponseWriter, r *http.Request) {
	tipos, err := s.deps.Categorias.ListTipos(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tipos)
}

func (s *Server) handleCreateTipo(w http.ResponseWriter, r *http.Request) {
	var req tipoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tipo, err := s.deps.Categorias.CreateTipo(r.Context(), actorFrom(r), req.Nome)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tipo)
}

func (s *Server) handleDeleteTipo(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Categorias.DeleteTipo(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategorias(w http.ResponseWriter, r *http.Request) {
	tipoID, err := queryUUID(r, "tipo")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.deps.Categorias.List(r.Context(), actorFrom(r), tipoID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateCategoria(w http.ResponseWriter, r *http.Request) {
	var c models.Categoria
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Categorias.Create(r.Context(), actorFrom(r), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategoria(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var upd models.CategoriaUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Categorias.Update(r.Context(), actorFrom(r), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategoria(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Categorias.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

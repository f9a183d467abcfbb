package api

import (
	"net/http"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
)

func (s *Server) handleListEleitores(w http.ResponseWriter, r *http.Request) {
	categoriaID, err := queryUUID(r, "categoria")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", listview.DefaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := services.EleitorQuery{
		Texto:       r.URL.Query().Get("q"),
		CategoriaID: categoriaID,
		Bairro:      r.URL.Query().Get("bairro"),
		Page:        page,
		Size:        size,
	}
	result, err := s.deps.Eleitores.List(r.Context(), actorFrom(r), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRangeEleitores(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := rangeParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := s.deps.Eleitores.ListRange(r.Context(), actorFrom(r), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse[models.Eleitor]{Items: items, Offset: offset, Total: total})
}

func (s *Server) handleGetEleitor(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.Eleitores.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateEleitor(w http.ResponseWriter, r *http.Request) {
	var e models.Eleitor
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Eleitores.Create(r.Context(), actorFrom(r), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateEleitor(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var upd models.EleitorUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.Eleitores.Update(r.Context(), actorFrom(r), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEleitor(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Eleitores.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Atendimentos ---

func (s *Server) handleListAtendimentos(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Atendimentos != nil, "atendimentos") {
		return
	}
	eleitorID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.deps.Atendimentos.ListByEleitor(r.Context(), actorFrom(r), eleitorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateAtendimento(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Atendimentos != nil, "atendimentos") {
		return
	}
	eleitorID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var a models.Atendimento
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	a.EleitorID = eleitorID
	created, err := s.deps.Atendimentos.Create(r.Context(), actorFrom(r), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAtendimentoStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Atendimentos != nil, "atendimentos") {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := models.ParseAtendimentoStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.deps.Atendimentos.UpdateStatus(r.Context(), actorFrom(r), id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAtendimento(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Atendimentos != nil, "atendimentos") {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Atendimentos.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

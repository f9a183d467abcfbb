package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
)

type whatsAppStatusResponse struct {
	Instancias []models.WhatsAppInstancia `json:"instancias"`
	Modelos    []string                   `json:"modelos"`
}

func (s *Server) handleWhatsAppStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.WhatsApp != nil, "whatsapp") {
		return
	}
	instancias, err := s.deps.WhatsApp.Status(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, whatsAppStatusResponse{Instancias: instancias, Modelos: s.deps.WhatsApp.Templates()})
}

type instanciaRequest struct {
	Nome string `json:"nome"`
}

func (s *Server) handleCreateInstancia(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.WhatsApp != nil, "whatsapp") {
		return
	}
	var req instanciaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inst, err := s.deps.WhatsApp.CreateInstance(r.Context(), actorFrom(r), req.Nome)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

type instanciaStatusRequest struct {
	Status models.WhatsAppStatus `json:"status"`
	Numero string                `json:"numero"`
	QRCode string                `json:"qr_code"`
}

func (s *Server) handleUpdateInstancia(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.WhatsApp != nil, "whatsapp") {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req instanciaStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inst, err := s.deps.WhatsApp.UpdateInstanceStatus(r.Context(), actorFrom(r), id, req.Status, req.Numero, req.QRCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleDisparo(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.WhatsApp != nil, "whatsapp") {
		return
	}
	var d services.Disparo
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.WhatsApp.BulkSend(r.Context(), actorFrom(r), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- CEP e auditoria ---

func (s *Server) handleCEP(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.CEP != nil, "cep") {
		return
	}
	end, err := s.deps.CEP.Lookup(r.Context(), chi.URLParam(r, "cep"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, end)
}

type auditoriaResponse struct {
	Items []models.AuditLogEntry `json:"items"`
	Total int64                  `json:"total"`
}

func (s *Server) handleAuditoria(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Audit != nil, "auditoria") {
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	de, err := queryDate(r, "de", false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ate, err := queryDate(r, "ate", true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := repositories.AuditLogFilter{
		Action:    r.URL.Query().Get("acao"),
		Severity:  strings.ToUpper(r.URL.Query().Get("severidade")),
		UserEmail: r.URL.Query().Get("email"),
	}
	if !de.IsZero() {
		filter.StartDate = &de
	}
	if !ate.IsZero() {
		filter.EndDate = &ate
	}
	items, total, err := s.deps.Audit.GetAuditLogs(r.Context(), actorFrom(r), filter, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditoriaResponse{Items: items, Total: total})
}

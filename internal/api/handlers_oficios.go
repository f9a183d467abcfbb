package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
)

const multipartMemBytes = 8 << 20

// formFile lê o arquivo do campo indicado de um upload multipart.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemBytes); err != nil {
		return nil, "", fmt.Errorf("%w: upload inválido: %v", appErrors.ErrInvalidInput, err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", appErrors.NewValidationError("Arquivo obrigatório.", map[string]string{field: "envie o arquivo neste campo"})
	}
	return file, header.Filename, nil
}

// oficioQuery lê os filtros da lista de ofícios da query string.
func oficioQuery(r *http.Request) (services.OficioQuery, error) {
	q := r.URL.Query()
	var (
		out services.OficioQuery
		err error
	)
	if raw := q.Get("status"); raw != "" {
		if out.Status, err = models.ParseOficioStatus(raw); err != nil {
			return out, err
		}
	}
	if raw := q.Get("urgencia"); raw != "" {
		if out.Urgencia, err = models.ParseUrgencia(raw); err != nil {
			return out, err
		}
	}
	if raw := q.Get("tipo"); raw != "" {
		if out.Tipo, err = models.ParseTipoDocumento(raw); err != nil {
			return out, err
		}
	}
	if out.Periodo, err = listview.ParseBucket(q.Get("periodo")); err != nil {
		return out, err
	}
	if out.De, err = queryDate(r, "de", false); err != nil {
		return out, err
	}
	if out.Ate, err = queryDate(r, "ate", true); err != nil {
		return out, err
	}
	if out.Page, err = queryInt(r, "page", 1); err != nil {
		return out, err
	}
	if out.Size, err = queryInt(r, "size", listview.DefaultPageSize); err != nil {
		return out, err
	}
	out.Texto = q.Get("q")
	out.Now = time.Now()
	return out, nil
}

func (s *Server) handleListOficios(w http.ResponseWriter, r *http.Request) {
	q, err := oficioQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.deps.Oficios.List(r.Context(), actorFrom(r), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type rangeResponse[T any] struct {
	Items  []T   `json:"items"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

func rangeParams(r *http.Request) (int, int, error) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

func (s *Server) handleRangeOficios(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := rangeParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := s.deps.Oficios.ListRange(r.Context(), actorFrom(r), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse[models.Oficio]{Items: items, Offset: offset, Total: total})
}

func (s *Server) handleExportOficios(w http.ResponseWriter, r *http.Request) {
	q, err := oficioQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := services.ParseExportFormat(r.URL.Query().Get("formato"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Gera em memória para poder responder com erro JSON se a geração falhar.
	var buf bytes.Buffer
	if err := s.deps.Oficios.Export(r.Context(), actorFrom(r), q, format, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="oficios_%s.%s"`, time.Now().Format("20060102_150405"), format))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGetOficio(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Oficios.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCreateOficio(w http.ResponseWriter, r *http.Request) {
	var o models.Oficio
	if err := decodeJSON(r, &o); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Oficios.Create(r.Context(), actorFrom(r), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateOficio(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var upd models.OficioUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Oficios.Update(r.Context(), actorFrom(r), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleOficioStatus(w http.ResponseWriter, r *http.Request) {
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
	status, err := models.ParseOficioStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Oficios.ChangeStatus(r.Context(), actorFrom(r), id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleOficioArquivo(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	file, name, err := s.formFile(w, r, "arquivo")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()
	o, err := s.deps.Oficios.AttachFile(r.Context(), actorFrom(r), id, name, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteOficio(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Oficios.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

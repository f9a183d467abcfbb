package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

const maxJSONBody = 1 << 20

// errorBody é o formato de todas as respostas de erro.
type errorBody struct {
	Error      string            `json:"error"`
	Fields     map[string]string `json:"fields,omitempty"`
	Dependents []string          `json:"dependents,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLogger.Warnf("Falha ao escrever resposta JSON: %v", err)
	}
}

// writeError traduz os erros do domínio em status HTTP.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *appErrors.ValidationError
		conflict *appErrors.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Message, Fields: verr.Fields})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: conflict.Error(), Dependents: conflict.Dependents})
	case errors.Is(err, appErrors.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, appErrors.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, appErrors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, appErrors.ErrInvalidCredentials),
		errors.Is(err, appErrors.ErrInvalidSession),
		errors.Is(err, appErrors.ErrSessionExpired),
		errors.Is(err, appErrors.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, appErrors.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, appErrors.ErrIntegration):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	case errors.Is(err, appErrors.ErrConfiguration):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		appLogger.WithFields(logrus.Fields{"request_id": middleware.GetReqID(r.Context())}).
			Errorf("Erro interno em %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "erro interno"})
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		// Enums inválidos já chegam como ValidationError.
		var verr *appErrors.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return fmt.Errorf("%w: corpo JSON inválido: %v", appErrors.ErrInvalidInput, err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: identificador inválido %q", appErrors.ErrInvalidInput, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parâmetro %s deve ser numérico", appErrors.ErrInvalidInput, key)
	}
	return n, nil
}

func queryUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: parâmetro %s inválido", appErrors.ErrInvalidInput, key)
	}
	return id, nil
}

const dateLayout = "2006-01-02"

// queryDate lê uma data AAAA-MM-DD no fuso local. endOfDay devolve o último
// instante do dia, para limites superiores inclusivos.
func queryDate(r *http.Request, key string, endOfDay bool) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: data %s deve estar no formato AAAA-MM-DD", appErrors.ErrInvalidInput, key)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

package listview

import (
	"encoding/json"
	"fmt"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
)

// ValidateFunc valida um registro decodificado do feed (ex: models.Validate).
type ValidateFunc[T any] func(*T) error

// DecodeRow converte uma linha JSON em T e a valida. Linhas malformadas
// falham aqui, na fronteira, em vez de entrar no cache.
func DecodeRow[T any](raw json.RawMessage, validate ValidateFunc[T]) (T, error) {
	var item T
	if len(raw) == 0 {
		return item, fmt.Errorf("%w: linha vazia", appErrors.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("%w: linha inválida: %v", appErrors.ErrInvalidInput, err)
	}
	if validate != nil {
		if err := validate(&item); err != nil {
			return item, err
		}
	}
	return item, nil
}

// MergeRow aplica um merge raso: os campos presentes em patch substituem os do
// registro atual; os ausentes são mantidos.
func MergeRow[T any](current T, patch json.RawMessage, validate ValidateFunc[T]) (T, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return current, fmt.Errorf("%w: serializando registro atual: %v", appErrors.ErrInternal, err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return current, fmt.Errorf("%w: registro atual não é um objeto: %v", appErrors.ErrInternal, err)
	}
	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return current, fmt.Errorf("%w: linha inválida: %v", appErrors.ErrInvalidInput, err)
	}
	for k, v := range changes {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return current, fmt.Errorf("%w: %v", appErrors.ErrInternal, err)
	}
	return DecodeRow(merged, validate)
}

// RowKey lê o campo "id" de uma linha JSON.
func RowKey(raw json.RawMessage) (string, error) {
	var row struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return "", fmt.Errorf("%w: linha inválida: %v", appErrors.ErrInvalidInput, err)
	}
	if len(row.ID) == 0 || string(row.ID) == "null" {
		return "", fmt.Errorf("%w: linha sem id", appErrors.ErrInvalidInput)
	}
	var s string
	if err := json.Unmarshal(row.ID, &s); err == nil {
		return s, nil
	}
	return string(row.ID), nil
}

// ApplyEvent aplica um evento do feed ao Store: INSERT é idempotente, UPDATE faz
// merge raso (ou insere se a chave for desconhecida) e DELETE remove pela chave
// da linha antiga.
func ApplyEvent[T Keyed](store *Store[T], ev realtime.ChangeEvent, validate ValidateFunc[T]) error {
	switch ev.Type {
	case realtime.EventInsert:
		item, err := DecodeRow(ev.New, validate)
		if err != nil {
			return err
		}
		store.Insert(item)
		return nil

	case realtime.EventUpdate:
		key, err := RowKey(ev.New)
		if err != nil {
			return err
		}
		return store.Modify(key, func(current T, exists bool) (T, error) {
			if !exists {
				return DecodeRow(ev.New, validate)
			}
			return MergeRow(current, ev.New, validate)
		})

	case realtime.EventDelete:
		key, err := RowKey(ev.Row())
		if err != nil {
			return err
		}
		store.Remove(key)
		return nil

	default:
		return fmt.Errorf("%w: tipo de evento desconhecido %q", appErrors.ErrInvalidInput, ev.Type)
	}
}

// Package realtime define o feed de alterações de linhas (INSERT/UPDATE/DELETE)
// por tabela, com assinaturas filtradas por coluna. Há duas implementações:
// Broker (em processo) e PGFeed (LISTEN/NOTIFY do PostgreSQL).
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
)

// EventType é o tipo da alteração de linha.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent é uma alteração de linha. New vem em INSERT e UPDATE; Old vem em
// DELETE e, quando o backend fornece, em UPDATE.
type ChangeEvent struct {
	Table      string          `json:"table"`
	Type       EventType       `json:"type"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_timestamp"`
	// Truncated indica que o payload original excedeu o limite do canal e só
	// carrega a chave; o consumidor deve recarregar a lista.
	Truncated bool `json:"truncated,omitempty"`
}

// Row devolve a linha relevante do evento: Old para DELETE, New nos demais.
func (e ChangeEvent) Row() json.RawMessage {
	if e.Type == EventDelete {
		if isEmptyRow(e.Old) {
			return e.New
		}
		return e.Old
	}
	if isEmptyRow(e.New) {
		return e.Old
	}
	return e.New
}

func isEmptyRow(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// NewEvent monta um ChangeEvent serializando as linhas informadas (nil = ausente).
func NewEvent(table string, typ EventType, newRow, oldRow interface{}) (ChangeEvent, error) {
	ev := ChangeEvent{Table: table, Type: typ, CommitTime: time.Now().UTC()}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("%w: serializando linha nova de %s: %v", appErrors.ErrInternal, table, err)
		}
		ev.New = b
	}
	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("%w: serializando linha antiga de %s: %v", appErrors.ErrInternal, table, err)
		}
		ev.Old = b
	}
	return ev, nil
}

// DecodePayload interpreta o JSON publicado pelo trigger de notificação.
func DecodePayload(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: payload de notificação inválido: %v", appErrors.ErrInvalidInput, err)
	}
	ev.Type = EventType(strings.ToUpper(string(ev.Type)))
	switch ev.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return ChangeEvent{}, fmt.Errorf("%w: tipo de evento desconhecido %q", appErrors.ErrInvalidInput, ev.Type)
	}
	if ev.Table == "" {
		return ChangeEvent{}, fmt.Errorf("%w: payload de notificação sem tabela", appErrors.ErrInvalidInput)
	}
	if isEmptyRow(ev.New) {
		ev.New = nil
	}
	if isEmptyRow(ev.Old) {
		ev.Old = nil
	}
	return ev, nil
}

// Status é o estado de uma assinatura, reportado ao StatusHandler.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusClosed       Status = "CLOSED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
)

// IsDrop informa se o status encerra a assinatura.
func (s Status) IsDrop() bool {
	return s == StatusClosed || s == StatusChannelError || s == StatusTimedOut
}

// Handler recebe os eventos de uma assinatura, sempre na mesma goroutine e em ordem.
type Handler func(ChangeEvent)

// StatusHandler recebe as transições de status de uma assinatura.
type StatusHandler func(Status, error)

// Subscription é o handle devolvido por Feed.Subscribe.
type Subscription interface {
	ID() string
	// Unsubscribe encerra a assinatura sem emitir status. É idempotente.
	Unsubscribe()
}

// Feed é a fonte de eventos por tabela.
type Feed interface {
	Subscribe(table string, filter Filter, onEvent Handler, onStatus StatusHandler) (Subscription, error)
}

// Publisher recebe eventos gerados pela própria aplicação (feed em processo).
type Publisher interface {
	Publish(ev ChangeEvent)
}

// NopPublisher descarta eventos. Usado quando o banco publica as alterações (PostgreSQL).
type NopPublisher struct{}

func (NopPublisher) Publish(ChangeEvent) {}

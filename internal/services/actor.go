package services

import (
	"fmt"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
)

// Actor identifica quem executa a operação. Toda operação de serviço é
// escopada pela EmpresaID do Actor.
type Actor struct {
	UserID    uuid.UUID
	EmpresaID uuid.UUID
	Email     string
	IPAddress string
}

// SystemActor é usado por rotinas sem usuário (CLI, webhooks de integração).
func SystemActor(empresaID uuid.UUID) Actor {
	return Actor{EmpresaID: empresaID, Email: "system"}
}

func (a Actor) check() error {
	if a.EmpresaID == uuid.Nil {
		return fmt.Errorf("%w: operação sem empresa", appErrors.ErrUnauthorized)
	}
	return nil
}

// entry monta uma entrada de auditoria já preenchida com os dados do Actor.
func (a Actor) entry(action, severity, description string, metadata models.JSONMetadata) models.AuditLogEntry {
	e := models.AuditLogEntry{
		EmpresaID:   a.EmpresaID,
		Action:      action,
		Severity:    severity,
		Description: description,
		UserEmail:   a.Email,
		Metadata:    metadata,
	}
	if a.UserID != uuid.Nil {
		id := a.UserID
		e.UserID = &id
	}
	if a.IPAddress != "" {
		ip := a.IPAddress
		e.IPAddress = &ip
	}
	return e
}

// publishChange publica a alteração no feed em processo. Falhas de
// serialização só são logadas: a escrita no banco já foi confirmada.
func publishChange(pub realtime.Publisher, table string, typ realtime.EventType, newRow, oldRow interface{}) {
	if pub == nil {
		return
	}
	ev, err := realtime.NewEvent(table, typ, newRow, oldRow)
	if err != nil {
		appLogger.Errorf("Falha ao montar evento de %s (%s): %v", table, typ, err)
		return
	}
	pub.Publish(ev)
}

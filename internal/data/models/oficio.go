package models

import (
	"time"

	"github.com/google/uuid"
)

// Oficio representa um ofício ou requerimento do gabinete (ver Tipo).
type Oficio struct {
	TenantModel
	Tipo          TipoDocumento `gorm:"type:varchar(20);not null;index" json:"tipo" validate:"required,enum"`
	Numero        string        `gorm:"type:varchar(30);not null;index" json:"numero" validate:"required,max=30"`
	Assunto       string        `gorm:"type:varchar(255);not null" json:"assunto" validate:"required,max=255"`
	Destinatario  string        `gorm:"type:varchar(255)" json:"destinatario" validate:"max=255"`
	Descricao     string        `gorm:"type:text" json:"descricao"`
	Status        OficioStatus  `gorm:"type:varchar(20);not null;index" json:"status" validate:"required,enum"`
	Urgencia      Urgencia      `gorm:"type:varchar(10);not null" json:"urgencia" validate:"required,enum"`
	EleitorID     *uuid.UUID    `gorm:"type:uuid;index" json:"eleitor_id"`
	Eleitor       *Eleitor      `gorm:"foreignKey:EleitorID;constraint:OnDelete:SET NULL" json:"-" validate:"-"`
	ArquivoURL    string        `gorm:"type:varchar(500)" json:"arquivo_url" validate:"omitempty,url"`
	DataEnvio     *time.Time    `json:"data_envio"`
	ProtocoladoEm *time.Time    `json:"protocolado_em"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Oficio) TableName() string { return TableOficios }

// OficioUpdate carrega alterações parciais. Mudanças de status passam por
// OficioService.ChangeStatus, que aplica os efeitos colaterais do protocolo.
type OficioUpdate struct {
	Numero       *string    `json:"numero,omitempty"`
	Assunto      *string    `json:"assunto,omitempty"`
	Destinatario *string    `json:"destinatario,omitempty"`
	Descricao    *string    `json:"descricao,omitempty"`
	Urgencia     *Urgencia  `json:"urgencia,omitempty"`
	EleitorID    *uuid.UUID `json:"eleitor_id,omitempty"`
	DataEnvio    *time.Time `json:"data_envio,omitempty"`
}

func (u OficioUpdate) ApplyTo(o *Oficio) map[string]interface{} {
	changes := make(map[string]interface{})
	setField(changes, "numero", &o.Numero, u.Numero)
	setField(changes, "assunto", &o.Assunto, u.Assunto)
	setField(changes, "destinatario", &o.Destinatario, u.Destinatario)
	setField(changes, "descricao", &o.Descricao, u.Descricao)
	setField(changes, "urgencia", &o.Urgencia, u.Urgencia)
	setRef(changes, "eleitor_id", &o.EleitorID, u.EleitorID)
	setTime(changes, "data_envio", &o.DataEnvio, u.DataEnvio)
	return changes
}

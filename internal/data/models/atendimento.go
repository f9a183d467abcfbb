package models

import (
	"time"

	"github.com/google/uuid"
)

// Atendimento registra uma demanda de um eleitor.
type Atendimento struct {
	TenantModel
	EleitorID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"eleitor_id" validate:"required"`
	Eleitor         *Eleitor          `gorm:"foreignKey:EleitorID;constraint:OnDelete:CASCADE" json:"-" validate:"-"`
	CategoriaID     *uuid.UUID        `gorm:"type:uuid;index" json:"categoria_id"`
	Categoria       *Categoria        `gorm:"foreignKey:CategoriaID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-" validate:"-"`
	Descricao       string            `gorm:"type:text;not null" json:"descricao" validate:"required,max=4000"`
	Status          AtendimentoStatus `gorm:"type:varchar(20);not null;index" json:"status" validate:"required,enum"`
	DataAtendimento time.Time         `gorm:"not null;index" json:"data_atendimento" validate:"required"`
	Responsavel     string            `gorm:"type:varchar(150)" json:"responsavel" validate:"max=150"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Atendimento) TableName() string { return TableAtendimentos }

type AtendimentoUpdate struct {
	CategoriaID     *uuid.UUID         `json:"categoria_id,omitempty"`
	Descricao       *string            `json:"descricao,omitempty"`
	Status          *AtendimentoStatus `json:"status,omitempty"`
	DataAtendimento *time.Time         `json:"data_atendimento,omitempty"`
	Responsavel     *string            `json:"responsavel,omitempty"`
}

func (u AtendimentoUpdate) ApplyTo(a *Atendimento) map[string]interface{} {
	changes := make(map[string]interface{})
	setRef(changes, "categoria_id", &a.CategoriaID, u.CategoriaID)
	setField(changes, "descricao", &a.Descricao, u.Descricao)
	setField(changes, "status", &a.Status, u.Status)
	if u.DataAtendimento != nil && !u.DataAtendimento.Equal(a.DataAtendimento) {
		a.DataAtendimento = *u.DataAtendimento
		changes["data_atendimento"] = a.DataAtendimento
	}
	setField(changes, "responsavel", &a.Responsavel, u.Responsavel)
	return changes
}

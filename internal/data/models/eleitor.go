package models

import (
	"time"

	"github.com/google/uuid"
)

// Eleitor é o cidadão atendido pelo gabinete.
type Eleitor struct {
	TenantModel
	Nome           string     `gorm:"type:varchar(150);not null;index" json:"nome" validate:"required,max=150"`
	CPF            string     `gorm:"type:varchar(11);index" json:"cpf" validate:"omitempty,cpf"`
	TituloEleitor  string     `gorm:"type:varchar(12)" json:"titulo_eleitor" validate:"omitempty,numeric,max=12"`
	Zona           string     `gorm:"type:varchar(5)" json:"zona" validate:"max=5"`
	Secao          string     `gorm:"type:varchar(5)" json:"secao" validate:"max=5"`
	DataNascimento *time.Time `json:"data_nascimento"`
	Genero         string     `gorm:"type:varchar(20)" json:"genero" validate:"max=20"`
	Telefone       string     `gorm:"type:varchar(20)" json:"telefone" validate:"max=20"`
	WhatsApp       string     `gorm:"type:varchar(20)" json:"whatsapp" validate:"max=20"`
	Email          string     `gorm:"type:varchar(255)" json:"email" validate:"omitempty,email,max=255"`
	CEP            string     `gorm:"type:varchar(8)" json:"cep" validate:"omitempty,len=8,numeric"`
	Logradouro     string     `gorm:"type:varchar(200)" json:"logradouro" validate:"max=200"`
	Numero         string     `gorm:"type:varchar(20)" json:"numero" validate:"max=20"`
	Complemento    string     `gorm:"type:varchar(100)" json:"complemento" validate:"max=100"`
	Bairro         string     `gorm:"type:varchar(100);index" json:"bairro" validate:"max=100"`
	Cidade         string     `gorm:"type:varchar(100)" json:"cidade" validate:"max=100"`
	UF             string     `gorm:"type:varchar(2)" json:"uf" validate:"omitempty,len=2,alpha"`
	CategoriaID    *uuid.UUID `gorm:"type:uuid;index" json:"categoria_id"`
	Categoria      *Categoria `gorm:"foreignKey:CategoriaID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-" validate:"-"`
	IndicadoPorID  *uuid.UUID `gorm:"type:uuid;index" json:"indicado_por_id"`
	IndicadoPor    *Eleitor   `gorm:"foreignKey:IndicadoPorID;constraint:OnDelete:SET NULL" json:"-" validate:"-"`
	Observacoes    string     `gorm:"type:text" json:"observacoes"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Eleitor) TableName() string { return TableEleitores }

// EleitorUpdate carrega alterações parciais. Campos nil não são alterados;
// CategoriaID/IndicadoPorID com uuid.Nil limpam a referência.
type EleitorUpdate struct {
	Nome           *string    `json:"nome,omitempty"`
	CPF            *string    `json:"cpf,omitempty"`
	TituloEleitor  *string    `json:"titulo_eleitor,omitempty"`
	Zona           *string    `json:"zona,omitempty"`
	Secao          *string    `json:"secao,omitempty"`
	DataNascimento *time.Time `json:"data_nascimento,omitempty"`
	Genero         *string    `json:"genero,omitempty"`
	Telefone       *string    `json:"telefone,omitempty"`
	WhatsApp       *string    `json:"whatsapp,omitempty"`
	Email          *string    `json:"email,omitempty"`
	CEP            *string    `json:"cep,omitempty"`
	Logradouro     *string    `json:"logradouro,omitempty"`
	Numero         *string    `json:"numero,omitempty"`
	Complemento    *string    `json:"complemento,omitempty"`
	Bairro         *string    `json:"bairro,omitempty"`
	Cidade         *string    `json:"cidade,omitempty"`
	UF             *string    `json:"uf,omitempty"`
	CategoriaID    *uuid.UUID `json:"categoria_id,omitempty"`
	IndicadoPorID  *uuid.UUID `json:"indicado_por_id,omitempty"`
	Observacoes    *string    `json:"observacoes,omitempty"`
}

// ApplyTo aplica as alterações em e e devolve o mapa coluna->valor para o UPDATE.
func (u EleitorUpdate) ApplyTo(e *Eleitor) map[string]interface{} {
	changes := make(map[string]interface{})
	setField(changes, "nome", &e.Nome, u.Nome)
	setField(changes, "cpf", &e.CPF, u.CPF)
	setField(changes, "titulo_eleitor", &e.TituloEleitor, u.TituloEleitor)
	setField(changes, "zona", &e.Zona, u.Zona)
	setField(changes, "secao", &e.Secao, u.Secao)
	setTime(changes, "data_nascimento", &e.DataNascimento, u.DataNascimento)
	setField(changes, "genero", &e.Genero, u.Genero)
	setField(changes, "telefone", &e.Telefone, u.Telefone)
	setField(changes, "whatsapp", &e.WhatsApp, u.WhatsApp)
	setField(changes, "email", &e.Email, u.Email)
	setField(changes, "cep", &e.CEP, u.CEP)
	setField(changes, "logradouro", &e.Logradouro, u.Logradouro)
	setField(changes, "numero", &e.Numero, u.Numero)
	setField(changes, "complemento", &e.Complemento, u.Complemento)
	setField(changes, "bairro", &e.Bairro, u.Bairro)
	setField(changes, "cidade", &e.Cidade, u.Cidade)
	setField(changes, "uf", &e.UF, u.UF)
	setRef(changes, "categoria_id", &e.CategoriaID, u.CategoriaID)
	setRef(changes, "indicado_por_id", &e.IndicadoPorID, u.IndicadoPorID)
	setField(changes, "observacoes", &e.Observacoes, u.Observacoes)
	return changes
}

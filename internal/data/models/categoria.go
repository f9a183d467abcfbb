package models

import "github.com/google/uuid"

// TipoCategoria agrupa categorias (ex: "Liderança", "Bairro", "Demanda").
type TipoCategoria struct {
	TenantModel
	Nome string `gorm:"type:varchar(100);not null" json:"nome" validate:"required,max=100"`
}

func (TipoCategoria) TableName() string { return TableTiposCategoria }

// Categoria classifica eleitores e atendimentos. Não pode ser excluída
// enquanto houver registros que a referenciem.
type Categoria struct {
	TenantModel
	TipoID uuid.UUID      `gorm:"type:uuid;not null;index" json:"tipo_id" validate:"required"`
	Tipo   *TipoCategoria `gorm:"foreignKey:TipoID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-" validate:"-"`
	Nome   string         `gorm:"type:varchar(100);not null" json:"nome" validate:"required,max=100"`
	Cor    string         `gorm:"type:varchar(7)" json:"cor" validate:"omitempty,hexcolor"`
}

func (Categoria) TableName() string { return TableCategorias }

// CategoriaUpdate carrega alterações parciais de uma categoria.
type CategoriaUpdate struct {
	TipoID *uuid.UUID `json:"tipo_id,omitempty"`
	Nome   *string    `json:"nome,omitempty"`
	Cor    *string    `json:"cor,omitempty"`
}

func (u CategoriaUpdate) ApplyTo(c *Categoria) map[string]interface{} {
	changes := make(map[string]interface{})
	setField(changes, "tipo_id", &c.TipoID, u.TipoID)
	setField(changes, "nome", &c.Nome, u.Nome)
	setField(changes, "cor", &c.Cor, u.Cor)
	return changes
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantModel contém os campos comuns a todas as tabelas escopadas por empresa.
// O ID é gerado no cliente para que o registro possa ser publicado no feed
// de alterações com a chave definitiva.
type TenantModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EmpresaID uuid.UUID `gorm:"type:uuid;not null;index" json:"empresa_id" validate:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate gera o UUID quando ainda não definido.
func (m *TenantModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Key identifica o registro nas listas sincronizadas.
func (m TenantModel) Key() string {
	return m.ID.String()
}

// Empresa é o tenant (gabinete). Todo dado de domínio pertence a exatamente uma empresa.
type Empresa struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Nome      string    `gorm:"type:varchar(150);not null" json:"nome" validate:"required,max=150"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Empresa) TableName() string { return "empresas" }

func (e *Empresa) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Tabelas publicadas no feed de alterações.
const (
	TableEleitores      = "eleitores"
	TableAtendimentos   = "atendimentos"
	TableOficios        = "oficios"
	TableCategorias     = "categorias"
	TableTiposCategoria = "tipos_categoria"
	TableWhatsApp       = "whatsapp_instancias"
	TableUsuarios       = "usuarios"
)

// RealtimeTables lista as tabelas que recebem o trigger de notificação.
// usuarios fica de fora para que o hash de senha não trafegue no canal.
var RealtimeTables = []string{
	TableEleitores, TableAtendimentos, TableOficios, TableCategorias,
	TableTiposCategoria, TableWhatsApp,
}

package models

import "time"

// Usuario é um membro da equipe do gabinete com acesso ao sistema.
type Usuario struct {
	TenantModel
	Nome          string     `gorm:"type:varchar(150);not null" json:"nome" validate:"required,max=150"`
	Email         string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email,max=255"`
	SenhaHash     string     `gorm:"type:varchar(255);not null" json:"-" validate:"-"`
	Cargo         string     `gorm:"type:varchar(100)" json:"cargo" validate:"max=100"`
	Telefone      string     `gorm:"type:varchar(20)" json:"telefone" validate:"max=20"`
	AvatarURL     string     `gorm:"type:varchar(500)" json:"avatar_url" validate:"omitempty,url"`
	Ativo         bool       `gorm:"not null;default:true" json:"ativo"`
	UltimoLoginEm *time.Time `json:"ultimo_login_em"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Usuario) TableName() string { return TableUsuarios }

// PerfilUpdate contém os campos que o próprio usuário pode alterar.
type PerfilUpdate struct {
	Nome      *string `json:"nome,omitempty"`
	Cargo     *string `json:"cargo,omitempty"`
	Telefone  *string `json:"telefone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (u PerfilUpdate) ApplyTo(usr *Usuario) map[string]interface{} {
	changes := make(map[string]interface{})
	setField(changes, "nome", &usr.Nome, u.Nome)
	setField(changes, "cargo", &usr.Cargo, u.Cargo)
	setField(changes, "telefone", &usr.Telefone, u.Telefone)
	setField(changes, "avatar_url", &usr.AvatarURL, u.AvatarURL)
	return changes
}

package models

import "time"

// WhatsAppInstancia é uma conexão do gabinete com a API de WhatsApp.
type WhatsAppInstancia struct {
	TenantModel
	Nome      string         `gorm:"type:varchar(100);not null" json:"nome" validate:"required,max=100"`
	Numero    string         `gorm:"type:varchar(20)" json:"numero" validate:"max=20"`
	Status    WhatsAppStatus `gorm:"type:varchar(20);not null" json:"status" validate:"required,enum"`
	QRCode    string         `gorm:"type:text" json:"qr_code"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WhatsAppInstancia) TableName() string { return TableWhatsApp }

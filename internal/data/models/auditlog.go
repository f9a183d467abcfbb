package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONMetadata é um tipo customizado para lidar com o campo metadata que é um JSON no banco.
// Ele implementa as interfaces sql.Scanner e driver.Valuer.
type JSONMetadata map[string]interface{}

// Value implementa a interface driver.Valuer.
func (jm JSONMetadata) Value() (driver.Value, error) {
	if jm == nil {
		return nil, nil
	}
	b, err := json.Marshal(jm)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implementa a interface sql.Scanner.
func (jm *JSONMetadata) Scan(value interface{}) error {
	if value == nil {
		*jm = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("tipo de valor inválido para JSONMetadata scan, esperado []byte ou string")
	}
	if len(b) == 0 {
		*jm = make(JSONMetadata)
		return nil
	}
	return json.Unmarshal(b, jm)
}

// AuditLogEntry registra uma ação relevante executada dentro de uma empresa.
type AuditLogEntry struct {
	ID          uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	EmpresaID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"empresa_id"`
	Timestamp   time.Time    `gorm:"not null;index" json:"timestamp"`
	Action      string       `gorm:"type:varchar(100);not null;index" json:"action"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Severity    string       `gorm:"type:varchar(10);not null;index" json:"severity"` // DEBUG, INFO, WARNING, ERROR, CRITICAL
	UserEmail   string       `gorm:"type:varchar(255);not null;index" json:"user_email"`
	UserID      *uuid.UUID   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	IPAddress   *string      `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	Metadata    JSONMetadata `gorm:"type:text" json:"metadata,omitempty"`
}

// TableName especifica o nome da tabela para GORM.
func (AuditLogEntry) TableName() string {
	return "audit_logs"
}

// ValidSeverities define os níveis de severidade válidos.
var ValidSeverities = map[string]bool{
	"DEBUG":    true,
	"INFO":     true,
	"WARNING":  true,
	"ERROR":    true,
	"CRITICAL": true,
}

package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// AuditLogFilter restringe a consulta de logs de auditoria. Campos vazios não filtram.
type AuditLogFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Severity  string
	UserEmail string
	Action    string
}

// AuditLogRepository define a interface para operações no repositório de logs de auditoria.
type AuditLogRepository interface {
	// Create insere uma nova entrada de log de auditoria.
	Create(ctx context.Context, entry models.AuditLogEntry) (*models.AuditLogEntry, error)

	// GetFiltered busca logs da empresa com base nos filtros fornecidos, com paginação.
	// Retorna as entradas, a contagem total que corresponde aos filtros e um erro.
	GetFiltered(ctx context.Context, empresaID uuid.UUID, filter AuditLogFilter, limit, offset int) ([]models.AuditLogEntry, int64, error)
}

// gormAuditLogRepository é a implementação GORM de AuditLogRepository.
type gormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository cria uma nova instância de gormAuditLogRepository.
func NewGormAuditLogRepository(db *gorm.DB) AuditLogRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormAuditLogRepository")
	}
	return &gormAuditLogRepository{db: db}
}

// Create insere uma nova entrada de log de auditoria no banco de dados.
func (r *gormAuditLogRepository) Create(ctx context.Context, entry models.AuditLogEntry) (*models.AuditLogEntry, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Severity = strings.ToUpper(entry.Severity)

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// Metadata pode conter dados pessoais; não vai para o log de erro.
		appLogger.Errorf("Erro ao criar entrada de log de auditoria (Ação: %s, Usuário: %s, Severidade: %s): %v",
			entry.Action, entry.UserEmail, entry.Severity, err)
		return nil, appErrors.WrapErrorf(err, "falha ao criar entrada de log no banco (GORM)")
	}
	return &entry, nil
}

// GetFiltered busca logs de auditoria com base nos filtros fornecidos, com paginação.
func (r *gormAuditLogRepository) GetFiltered(ctx context.Context, empresaID uuid.UUID, filter AuditLogFilter, limit, offset int) ([]models.AuditLogEntry, int64, error) {
	var entries []models.AuditLogEntry
	var totalCount int64

	query := tenantQuery(ctx, r.db, empresaID).Model(&models.AuditLogEntry{})

	if filter.StartDate != nil {
		d := filter.StartDate
		startOfDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		query = query.Where("timestamp >= ?", startOfDay)
	}
	if filter.EndDate != nil {
		d := filter.EndDate
		endOfDay := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999999999, d.Location())
		query = query.Where("timestamp <= ?", endOfDay)
	}
	if filter.Severity != "" {
		query = query.Where("UPPER(severity) = UPPER(?)", filter.Severity)
	}
	if filter.UserEmail != "" {
		query = query.Where("LOWER(user_email) = LOWER(?)", filter.UserEmail)
	}
	if filter.Action != "" {
		query = query.Where("LOWER(action) = LOWER(?)", filter.Action)
	}

	// Contagem antes de limit/offset.
	if err := query.Session(&gorm.Session{}).Count(&totalCount).Error; err != nil {
		appLogger.Errorf("Erro ao contar logs de auditoria filtrados: %v", err)
		return nil, 0, appErrors.WrapErrorf(err, "falha ao contar logs de auditoria (GORM)")
	}
	if totalCount == 0 {
		return []models.AuditLogEntry{}, 0, nil
	}

	if limit <= 0 {
		limit = 100
	} else if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	if err := query.Order("timestamp DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		appLogger.Errorf("Erro ao buscar logs de auditoria filtrados: %v", err)
		return nil, 0, appErrors.WrapErrorf(err, "falha ao buscar logs de auditoria (GORM)")
	}
	return entries, totalCount, nil
}

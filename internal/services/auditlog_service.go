package services

import (
	"context"
	"strings"
	"time"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
)

// AuditLogService define a interface para o serviço de log de auditoria.
type AuditLogService interface {
	// LogAction registra uma ação de auditoria. A entrada já deve trazer a
	// empresa e o usuário (ver Actor.entry).
	LogAction(ctx context.Context, entry models.AuditLogEntry) error

	// GetAuditLogs busca logs da empresa do actor com filtros e paginação.
	GetAuditLogs(ctx context.Context, actor Actor, filter repositories.AuditLogFilter, limit, offset int) ([]models.AuditLogEntry, int64, error)
}

// auditLogServiceImpl é a implementação de AuditLogService.
type auditLogServiceImpl struct {
	repo repositories.AuditLogRepository
}

// NewAuditLogService cria uma nova instância de AuditLogService.
func NewAuditLogService(repo repositories.AuditLogRepository) AuditLogService {
	if repo == nil {
		appLogger.Fatalf("AuditLogRepository não pode ser nil para NewAuditLogService")
	}
	return &auditLogServiceImpl{repo: repo}
}

// LogAction registra uma ação de auditoria no banco de dados.
func (s *auditLogServiceImpl) LogAction(ctx context.Context, entry models.AuditLogEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return appErrors.WrapErrorf(appErrors.ErrInvalidInput, "ação do log de auditoria não pode ser vazia")
	}
	if strings.TrimSpace(entry.Description) == "" {
		return appErrors.WrapErrorf(appErrors.ErrInvalidInput, "descrição do log de auditoria não pode ser vazia")
	}

	normalizedSeverity := strings.ToUpper(strings.TrimSpace(entry.Severity))
	if _, ok := models.ValidSeverities[normalizedSeverity]; !ok {
		appLogger.Warnf("Nível de severidade inválido '%s' fornecido para log. Usando 'INFO'. Ação: %s", entry.Severity, entry.Action)
		entry.Severity = "INFO"
	} else {
		entry.Severity = normalizedSeverity
	}

	if entry.UserEmail == "" {
		entry.UserEmail = "system"
	}
	if entry.IPAddress == nil || *entry.IPAddress == "" {
		val := "N/A"
		entry.IPAddress = &val
	}

	if len(entry.Description) > 4000 {
		entry.Description = entry.Description[:3997] + "..."
		appLogger.Warnf("Descrição do log de auditoria truncada para 4000 caracteres. Ação: %s", entry.Action)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if _, err := s.repo.Create(ctx, entry); err != nil {
		return appErrors.WrapErrorf(err, "falha ao persistir log de auditoria (Ação: %s)", entry.Action)
	}
	return nil
}

// GetAuditLogs busca logs de auditoria com base nos filtros fornecidos.
func (s *auditLogServiceImpl) GetAuditLogs(ctx context.Context, actor Actor, filter repositories.AuditLogFilter, limit, offset int) ([]models.AuditLogEntry, int64, error) {
	if err := actor.check(); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
		appLogger.Warnf("Solicitação de GetAuditLogs com limite > 1000. Reduzido para 1000.")
	}
	if offset < 0 {
		offset = 0
	}
	if filter.StartDate != nil {
		val := filter.StartDate.In(time.UTC)
		filter.StartDate = &val
	}
	if filter.EndDate != nil {
		val := filter.EndDate.In(time.UTC)
		filter.EndDate = &val
	}

	logs, total, err := s.repo.GetFiltered(ctx, actor.EmpresaID, filter, limit, offset)
	if err != nil {
		return nil, 0, appErrors.WrapErrorf(err, "falha ao buscar logs de auditoria do repositório")
	}
	return logs, total, nil
}

// logAudit registra a ação sem interromper o fluxo principal em caso de falha.
func logAudit(ctx context.Context, audit AuditLogService, entry models.AuditLogEntry) {
	if audit == nil {
		return
	}
	if err := audit.LogAction(ctx, entry); err != nil {
		appLogger.Warnf("Falha ao registrar log de auditoria (%s): %v", entry.Action, err)
	}
}

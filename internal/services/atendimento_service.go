package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

// AtendimentoService define as operações sobre o histórico de atendimentos.
type AtendimentoService interface {
	Create(ctx context.Context, actor Actor, a models.Atendimento) (*models.Atendimento, error)
	UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.AtendimentoStatus) (*models.Atendimento, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	ListByEleitor(ctx context.Context, actor Actor, eleitorID uuid.UUID) ([]models.Atendimento, error)
}

type atendimentoServiceImpl struct {
	repo       repositories.AtendimentoRepository
	eleitores  repositories.EleitorRepository
	categorias repositories.CategoriaRepository
	pub        realtime.Publisher
	audit      AuditLogService
}

func NewAtendimentoService(
	repo repositories.AtendimentoRepository,
	eleitores repositories.EleitorRepository,
	categorias repositories.CategoriaRepository,
	pub realtime.Publisher,
	audit AuditLogService,
) AtendimentoService {
	if repo == nil || eleitores == nil || categorias == nil || audit == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewAtendimentoService")
	}
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	return &atendimentoServiceImpl{repo: repo, eleitores: eleitores, categorias: categorias, pub: pub, audit: audit}
}

func (s *atendimentoServiceImpl) Create(ctx context.Context, actor Actor, a models.Atendimento) (*models.Atendimento, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	a.ID = uuid.Nil
	a.EmpresaID = actor.EmpresaID
	a.Descricao = utils.SanitizeInput(a.Descricao)
	a.Responsavel = utils.SanitizeInput(a.Responsavel)
	if a.Status == "" {
		a.Status = models.AtendimentoPendente
	}
	if a.DataAtendimento.IsZero() {
		a.DataAtendimento = time.Now().UTC()
	}
	if a.Responsavel == "" {
		a.Responsavel = actor.Email
	}
	if err := models.Validate(&a); err != nil {
		return nil, err
	}

	eleitor, err := s.eleitores.GetByID(ctx, actor.EmpresaID, a.EleitorID)
	if err != nil {
		return nil, refInvalid(err, "eleitor_id", "eleitor inexistente")
	}
	if a.CategoriaID != nil {
		if _, err := s.categorias.GetByID(ctx, actor.EmpresaID, *a.CategoriaID); err != nil {
			return nil, refInvalid(err, "categoria_id", "categoria inexistente")
		}
	}

	if err := s.repo.Create(ctx, &a); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableAtendimentos, realtime.EventInsert, &a, nil)
	logAudit(ctx, s.audit, actor.entry("ATENDIMENTO_CREATE", "INFO",
		fmt.Sprintf("Atendimento registrado para '%s'.", eleitor.Nome),
		models.JSONMetadata{"atendimento_id": a.ID.String(), "eleitor_id": a.EleitorID.String()}))
	return &a, nil
}

func (s *atendimentoServiceImpl) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.AtendimentoStatus) (*models.Atendimento, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, appErrors.NewValidationError("Status inválido.", map[string]string{"status": fmt.Sprintf("valor desconhecido '%s'", status)})
	}
	current, err := s.repo.GetByID(ctx, actor.EmpresaID, id)
	if err != nil {
		return nil, err
	}
	old := *current
	changes := models.AtendimentoUpdate{Status: &status}.ApplyTo(current)
	if len(changes) == 0 {
		return current, nil
	}
	if err := s.repo.Update(ctx, current, changes); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableAtendimentos, realtime.EventUpdate, current, &old)
	logAudit(ctx, s.audit, actor.entry("ATENDIMENTO_STATUS", "INFO",
		fmt.Sprintf("Atendimento %s: %s -> %s.", id, old.Status, status),
		models.JSONMetadata{"atendimento_id": id.String(), "de": string(old.Status), "para": string(status)}))
	return current, nil
}

func (s *atendimentoServiceImpl) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := actor.check(); err != nil {
		return err
	}
	current, err := s.repo.GetByID(ctx, actor.EmpresaID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, actor.EmpresaID, id); err != nil {
		return err
	}
	publishChange(s.pub, models.TableAtendimentos, realtime.EventDelete, nil, current)
	logAudit(ctx, s.audit, actor.entry("ATENDIMENTO_DELETE", "WARNING",
		fmt.Sprintf("Atendimento %s excluído.", id),
		models.JSONMetadata{"atendimento_id": id.String(), "eleitor_id": current.EleitorID.String()}))
	return nil
}

func (s *atendimentoServiceImpl) ListByEleitor(ctx context.Context, actor Actor, eleitorID uuid.UUID) ([]models.Atendimento, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	if _, err := s.eleitores.GetByID(ctx, actor.EmpresaID, eleitorID); err != nil {
		return nil, err
	}
	return s.repo.ListByEleitor(ctx, actor.EmpresaID, eleitorID)
}

package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// AtendimentoRepository define a interface para operações no repositório de atendimentos.
type AtendimentoRepository interface {
	Create(ctx context.Context, a *models.Atendimento) error
	Update(ctx context.Context, a *models.Atendimento, changes map[string]interface{}) error
	Delete(ctx context.Context, empresaID, id uuid.UUID) error
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Atendimento, error)
	ListByEleitor(ctx context.Context, empresaID, eleitorID uuid.UUID) ([]models.Atendimento, error)
	ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Atendimento, error)
}

type gormAtendimentoRepository struct {
	db *gorm.DB
}

// NewGormAtendimentoRepository cria uma nova instância de gormAtendimentoRepository.
func NewGormAtendimentoRepository(db *gorm.DB) AtendimentoRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormAtendimentoRepository")
	}
	return &gormAtendimentoRepository{db: db}
}

func (r *gormAtendimentoRepository) Create(ctx context.Context, a *models.Atendimento) error {
	if err := createRecord(ctx, r.db, a, "atendimento"); err != nil {
		return err
	}
	appLogger.Infof("Novo atendimento registrado para eleitor %s (ID: %s)", a.EleitorID, a.ID)
	return nil
}

func (r *gormAtendimentoRepository) Update(ctx context.Context, a *models.Atendimento, changes map[string]interface{}) error {
	return updateColumns(ctx, r.db, a, changes, "atendimento", a.ID)
}

func (r *gormAtendimentoRepository) Delete(ctx context.Context, empresaID, id uuid.UUID) error {
	return deleteByID[models.Atendimento](ctx, r.db, empresaID, id, "atendimento")
}

func (r *gormAtendimentoRepository) GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Atendimento, error) {
	return findByID[models.Atendimento](ctx, r.db, empresaID, id, "atendimento")
}

// ListByEleitor devolve o histórico do eleitor, mais recente primeiro.
func (r *gormAtendimentoRepository) ListByEleitor(ctx context.Context, empresaID, eleitorID uuid.UUID) ([]models.Atendimento, error) {
	items := []models.Atendimento{}
	err := tenantQuery(ctx, r.db, empresaID).
		Where("eleitor_id = ?", eleitorID).
		Order("data_atendimento DESC, id DESC").
		Find(&items).Error
	if err != nil {
		appLogger.Errorf("Erro ao listar atendimentos do eleitor %s: %v", eleitorID, err)
		return nil, appErrors.NewDatabaseErrorDetail("listando atendimentos", "", err)
	}
	return items, nil
}

func (r *gormAtendimentoRepository) ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Atendimento, error) {
	return listByEmpresa[models.Atendimento](ctx, r.db, empresaID, "data_atendimento DESC, id DESC", "atendimentos")
}

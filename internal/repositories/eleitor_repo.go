package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// EleitorRepository define a interface para operações no repositório de eleitores.
type EleitorRepository interface {
	Create(ctx context.Context, e *models.Eleitor) error
	// Update grava as colunas em changes (resultado de EleitorUpdate.ApplyTo).
	Update(ctx context.Context, e *models.Eleitor, changes map[string]interface{}) error
	Delete(ctx context.Context, empresaID, id uuid.UUID) error
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Eleitor, error)
	GetByCPF(ctx context.Context, empresaID uuid.UUID, cpf string) (*models.Eleitor, error)
	ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Eleitor, error)
	ListRange(ctx context.Context, empresaID uuid.UUID, offset, limit int) ([]models.Eleitor, int64, error)
	// ListByCategoria devolve os eleitores da categoria que têm WhatsApp ou telefone.
	ListByCategoria(ctx context.Context, empresaID, categoriaID uuid.UUID) ([]models.Eleitor, error)
}

type gormEleitorRepository struct {
	db *gorm.DB
}

// NewGormEleitorRepository cria uma nova instância de gormEleitorRepository.
func NewGormEleitorRepository(db *gorm.DB) EleitorRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormEleitorRepository")
	}
	return &gormEleitorRepository{db: db}
}

func (r *gormEleitorRepository) Create(ctx context.Context, e *models.Eleitor) error {
	if err := createRecord(ctx, r.db, e, "eleitor"); err != nil {
		return err
	}
	appLogger.Infof("Novo eleitor criado: '%s' (ID: %s, empresa %s)", e.Nome, e.ID, e.EmpresaID)
	return nil
}

func (r *gormEleitorRepository) Update(ctx context.Context, e *models.Eleitor, changes map[string]interface{}) error {
	return updateColumns(ctx, r.db, e, changes, "eleitor", e.ID)
}

// Delete remove o eleitor. Atendimentos são removidos em cascata e indicações
// feitas por ele ficam sem referência.
func (r *gormEleitorRepository) Delete(ctx context.Context, empresaID, id uuid.UUID) error {
	return deleteByID[models.Eleitor](ctx, r.db, empresaID, id, "eleitor")
}

func (r *gormEleitorRepository) GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Eleitor, error) {
	return findByID[models.Eleitor](ctx, r.db, empresaID, id, "eleitor")
}

func (r *gormEleitorRepository) GetByCPF(ctx context.Context, empresaID uuid.UUID, cpf string) (*models.Eleitor, error) {
	var e models.Eleitor
	err := tenantQuery(ctx, r.db, empresaID).Where("cpf = ?", strings.TrimSpace(cpf)).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: eleitor com CPF informado", appErrors.ErrNotFound)
		}
		appLogger.Errorf("Erro ao buscar eleitor por CPF: %v", err)
		return nil, appErrors.NewDatabaseErrorDetail("buscando eleitor por CPF", "", err)
	}
	return &e, nil
}

func (r *gormEleitorRepository) ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Eleitor, error) {
	return listByEmpresa[models.Eleitor](ctx, r.db, empresaID, "nome ASC, id ASC", "eleitores")
}

func (r *gormEleitorRepository) ListRange(ctx context.Context, empresaID uuid.UUID, offset, limit int) ([]models.Eleitor, int64, error) {
	return listRange[models.Eleitor](ctx, r.db, empresaID, "nome ASC, id ASC", offset, limit, "eleitores")
}

func (r *gormEleitorRepository) ListByCategoria(ctx context.Context, empresaID, categoriaID uuid.UUID) ([]models.Eleitor, error) {
	items := []models.Eleitor{}
	err := tenantQuery(ctx, r.db, empresaID).
		Where("categoria_id = ?", categoriaID).
		Where("(whatsapp <> '' OR telefone <> '')").
		Order("nome ASC, id ASC").
		Find(&items).Error
	if err != nil {
		appLogger.Errorf("Erro ao listar eleitores da categoria %s: %v", categoriaID, err)
		return nil, appErrors.NewDatabaseErrorDetail("listando eleitores por categoria", "", err)
	}
	return items, nil
}

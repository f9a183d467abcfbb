package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// OficioRepository define a interface para operações no repositório de ofícios e requerimentos.
type OficioRepository interface {
	Create(ctx context.Context, o *models.Oficio) error
	Update(ctx context.Context, o *models.Oficio, changes map[string]interface{}) error
	Delete(ctx context.Context, empresaID, id uuid.UUID) error
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Oficio, error)
	ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Oficio, error)
	ListRange(ctx context.Context, empresaID uuid.UUID, offset, limit int) ([]models.Oficio, int64, error)
	// CountByTipoAno conta os documentos do tipo criados no ano, base da numeração sequencial.
	CountByTipoAno(ctx context.Context, empresaID uuid.UUID, tipo models.TipoDocumento, ano int) (int64, error)
}

type gormOficioRepository struct {
	db *gorm.DB
}

// NewGormOficioRepository cria uma nova instância de gormOficioRepository.
func NewGormOficioRepository(db *gorm.DB) OficioRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormOficioRepository")
	}
	return &gormOficioRepository{db: db}
}

func (r *gormOficioRepository) Create(ctx context.Context, o *models.Oficio) error {
	if err := createRecord(ctx, r.db, o, string(o.Tipo)); err != nil {
		return err
	}
	appLogger.Infof("Novo %s criado: nº %s (ID: %s, empresa %s)", o.Tipo, o.Numero, o.ID, o.EmpresaID)
	return nil
}

func (r *gormOficioRepository) Update(ctx context.Context, o *models.Oficio, changes map[string]interface{}) error {
	return updateColumns(ctx, r.db, o, changes, string(o.Tipo), o.ID)
}

func (r *gormOficioRepository) Delete(ctx context.Context, empresaID, id uuid.UUID) error {
	return deleteByID[models.Oficio](ctx, r.db, empresaID, id, "oficio")
}

func (r *gormOficioRepository) GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Oficio, error) {
	return findByID[models.Oficio](ctx, r.db, empresaID, id, "oficio")
}

// ListByEmpresa devolve os documentos mais recentes primeiro, como na tela de ofícios.
func (r *gormOficioRepository) ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Oficio, error) {
	return listByEmpresa[models.Oficio](ctx, r.db, empresaID, "created_at DESC, id DESC", "oficios")
}

func (r *gormOficioRepository) ListRange(ctx context.Context, empresaID uuid.UUID, offset, limit int) ([]models.Oficio, int64, error) {
	return listRange[models.Oficio](ctx, r.db, empresaID, "created_at DESC, id DESC", offset, limit, "oficios")
}

func (r *gormOficioRepository) CountByTipoAno(ctx context.Context, empresaID uuid.UUID, tipo models.TipoDocumento, ano int) (int64, error) {
	start := time.Date(ano, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	var total int64
	err := tenantQuery(ctx, r.db, empresaID).Model(&models.Oficio{}).
		Where("tipo = ? AND created_at >= ? AND created_at < ?", tipo, start, end).
		Count(&total).Error
	if err != nil {
		appLogger.Errorf("Erro ao contar %s de %d: %v", tipo, ano, err)
		return 0, appErrors.NewDatabaseErrorDetail(fmt.Sprintf("contando %s de %d", tipo, ano), "", err)
	}
	return total, nil
}

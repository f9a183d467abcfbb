package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// WhatsAppRepository define a interface para as instâncias de WhatsApp do gabinete.
type WhatsAppRepository interface {
	Create(ctx context.Context, w *models.WhatsAppInstancia) error
	Update(ctx context.Context, w *models.WhatsAppInstancia, changes map[string]interface{}) error
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.WhatsAppInstancia, error)
	ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.WhatsAppInstancia, error)
}

type gormWhatsAppRepository struct {
	db *gorm.DB
}

// NewGormWhatsAppRepository cria uma nova instância de gormWhatsAppRepository.
func NewGormWhatsAppRepository(db *gorm.DB) WhatsAppRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormWhatsAppRepository")
	}
	return &gormWhatsAppRepository{db: db}
}

func (r *gormWhatsAppRepository) Create(ctx context.Context, w *models.WhatsAppInstancia) error {
	if err := createRecord(ctx, r.db, w, "instância de WhatsApp"); err != nil {
		return err
	}
	appLogger.Infof("Instância de WhatsApp '%s' registrada (ID: %s)", w.Nome, w.ID)
	return nil
}

func (r *gormWhatsAppRepository) Update(ctx context.Context, w *models.WhatsAppInstancia, changes map[string]interface{}) error {
	return updateColumns(ctx, r.db, w, changes, "instância de WhatsApp", w.ID)
}

func (r *gormWhatsAppRepository) GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.WhatsAppInstancia, error) {
	return findByID[models.WhatsAppInstancia](ctx, r.db, empresaID, id, "instância de WhatsApp")
}

func (r *gormWhatsAppRepository) ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.WhatsAppInstancia, error) {
	return listByEmpresa[models.WhatsAppInstancia](ctx, r.db, empresaID, "nome ASC, id ASC", "instâncias de WhatsApp")
}

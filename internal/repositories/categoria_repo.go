package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// CategoriaRepository define a interface para categorias e seus tipos.
// A exclusão não faz verificação prévia de uso: quem bloqueia é a constraint
// do banco, devolvida como ConflictError.
type CategoriaRepository interface {
	CreateTipo(ctx context.Context, t *models.TipoCategoria) error
	DeleteTipo(ctx context.Context, empresaID, id uuid.UUID) error
	GetTipoByID(ctx context.Context, empresaID, id uuid.UUID) (*models.TipoCategoria, error)
	ListTipos(ctx context.Context, empresaID uuid.UUID) ([]models.TipoCategoria, error)

	Create(ctx context.Context, c *models.Categoria) error
	Update(ctx context.Context, c *models.Categoria, changes map[string]interface{}) error
	Delete(ctx context.Context, empresaID, id uuid.UUID) error
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Categoria, error)
	ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Categoria, error)
}

type gormCategoriaRepository struct {
	db *gorm.DB
}

// NewGormCategoriaRepository cria uma nova instância de gormCategoriaRepository.
func NewGormCategoriaRepository(db *gorm.DB) CategoriaRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormCategoriaRepository")
	}
	return &gormCategoriaRepository{db: db}
}

// --- Tipos de categoria ---

func (r *gormCategoriaRepository) CreateTipo(ctx context.Context, t *models.TipoCategoria) error {
	if err := createRecord(ctx, r.db, t, "tipo de categoria"); err != nil {
		return err
	}
	appLogger.Infof("Novo tipo de categoria criado: '%s' (ID: %s)", t.Nome, t.ID)
	return nil
}

func (r *gormCategoriaRepository) DeleteTipo(ctx context.Context, empresaID, id uuid.UUID) error {
	return deleteByID[models.TipoCategoria](ctx, r.db, empresaID, id, "tipo de categoria", models.TableCategorias)
}

func (r *gormCategoriaRepository) GetTipoByID(ctx context.Context, empresaID, id uuid.UUID) (*models.TipoCategoria, error) {
	return findByID[models.TipoCategoria](ctx, r.db, empresaID, id, "tipo de categoria")
}

func (r *gormCategoriaRepository) ListTipos(ctx context.Context, empresaID uuid.UUID) ([]models.TipoCategoria, error) {
	return listByEmpresa[models.TipoCategoria](ctx, r.db, empresaID, "nome ASC, id ASC", "tipos de categoria")
}

// --- Categorias ---

func (r *gormCategoriaRepository) Create(ctx context.Context, c *models.Categoria) error {
	if err := createRecord(ctx, r.db, c, "categoria"); err != nil {
		return err
	}
	appLogger.Infof("Nova categoria criada: '%s' (ID: %s)", c.Nome, c.ID)
	return nil
}

func (r *gormCategoriaRepository) Update(ctx context.Context, c *models.Categoria, changes map[string]interface{}) error {
	return updateColumns(ctx, r.db, c, changes, "categoria", c.ID)
}

func (r *gormCategoriaRepository) Delete(ctx context.Context, empresaID, id uuid.UUID) error {
	return deleteByID[models.Categoria](ctx, r.db, empresaID, id, "categoria", models.TableEleitores, models.TableAtendimentos)
}

func (r *gormCategoriaRepository) GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Categoria, error) {
	return findByID[models.Categoria](ctx, r.db, empresaID, id, "categoria")
}

func (r *gormCategoriaRepository) ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]models.Categoria, error) {
	return listByEmpresa[models.Categoria](ctx, r.db, empresaID, "nome ASC, id ASC", "categorias")
}

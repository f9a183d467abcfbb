package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// UsuarioRepository define a interface para operações no repositório de usuários.
type UsuarioRepository interface {
	Create(ctx context.Context, u *models.Usuario) error
	Update(ctx context.Context, u *models.Usuario, changes map[string]interface{}) error
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Usuario, error)
	// GetByEmail não é escopado por empresa: é o ponto de entrada do login.
	GetByEmail(ctx context.Context, email string) (*models.Usuario, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateEmpresa(ctx context.Context, e *models.Empresa) error
	GetEmpresa(ctx context.Context, id uuid.UUID) (*models.Empresa, error)
}

type gormUsuarioRepository struct {
	db *gorm.DB
}

// NewGormUsuarioRepository cria uma nova instância de gormUsuarioRepository.
func NewGormUsuarioRepository(db *gorm.DB) UsuarioRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormUsuarioRepository")
	}
	return &gormUsuarioRepository{db: db}
}

func (r *gormUsuarioRepository) Create(ctx context.Context, u *models.Usuario) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := createRecord(ctx, r.db, u, "usuário"); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			return fmt.Errorf("%w: e-mail '%s' já cadastrado", appErrors.ErrConflict, u.Email)
		}
		return err
	}
	appLogger.Infof("Novo usuário criado: '%s' (ID: %s, empresa %s)", u.Email, u.ID, u.EmpresaID)
	return nil
}

func (r *gormUsuarioRepository) Update(ctx context.Context, u *models.Usuario, changes map[string]interface{}) error {
	return updateColumns(ctx, r.db, u, changes, "usuário", u.ID)
}

func (r *gormUsuarioRepository) GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.Usuario, error) {
	return findByID[models.Usuario](ctx, r.db, empresaID, id, "usuário")
}

func (r *gormUsuarioRepository) GetByEmail(ctx context.Context, email string) (*models.Usuario, error) {
	var u models.Usuario
	normalized := strings.ToLower(strings.TrimSpace(email))
	err := r.db.WithContext(ctx).Where("email = ?", normalized).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: usuário com e-mail '%s'", appErrors.ErrNotFound, normalized)
		}
		appLogger.Errorf("Erro ao buscar usuário por e-mail '%s': %v", normalized, err)
		return nil, appErrors.NewDatabaseErrorDetail("buscando usuário por e-mail", "", err)
	}
	return &u, nil
}

func (r *gormUsuarioRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Usuario{}).Where("id = ?", id).Update("ultimo_login_em", at)
	if result.Error != nil {
		appLogger.Errorf("Erro ao registrar último login do usuário %s: %v", id, result.Error)
		return appErrors.NewDatabaseErrorDetail("registrando último login", "", result.Error)
	}
	return nil
}

// --- Empresas ---

func (r *gormUsuarioRepository) CreateEmpresa(ctx context.Context, e *models.Empresa) error {
	if err := createRecord(ctx, r.db, e, "empresa"); err != nil {
		return err
	}
	appLogger.Infof("Nova empresa criada: '%s' (ID: %s)", e.Nome, e.ID)
	return nil
}

func (r *gormUsuarioRepository) GetEmpresa(ctx context.Context, id uuid.UUID) (*models.Empresa, error) {
	var e models.Empresa
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: empresa %s", appErrors.ErrNotFound, id)
		}
		return nil, appErrors.NewDatabaseErrorDetail("buscando empresa", "", err)
	}
	return &e, nil
}

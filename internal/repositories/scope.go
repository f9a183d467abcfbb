package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data"
)

// Limites aplicados em ListRange.
const (
	DefaultRangeLimit = 50
	MaxRangeLimit     = 1000
)

// Helpers comuns às tabelas escopadas por empresa. Toda consulta recebe o
// empresa_id explicitamente; não existe leitura "sem tenant".

func clampRange(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultRangeLimit
	} else if limit > MaxRangeLimit {
		limit = MaxRangeLimit
	}
	return offset, limit
}

func tenantQuery(ctx context.Context, db *gorm.DB, empresaID uuid.UUID) *gorm.DB {
	return db.WithContext(ctx).Where("empresa_id = ?", empresaID)
}

func findByID[T any](ctx context.Context, db *gorm.DB, empresaID, id uuid.UUID, resource string) (*T, error) {
	var item T
	err := tenantQuery(ctx, db, empresaID).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %s", appErrors.ErrNotFound, resource, id)
		}
		appLogger.Errorf("Erro ao buscar %s %s: %v", resource, id, err)
		return nil, appErrors.NewDatabaseErrorDetail("buscando "+resource, "", err)
	}
	return &item, nil
}

func listByEmpresa[T any](ctx context.Context, db *gorm.DB, empresaID uuid.UUID, order, resource string) ([]T, error) {
	items := []T{}
	if err := tenantQuery(ctx, db, empresaID).Order(order).Find(&items).Error; err != nil {
		appLogger.Errorf("Erro ao listar %s da empresa %s: %v", resource, empresaID, err)
		return nil, appErrors.NewDatabaseErrorDetail("listando "+resource, "", err)
	}
	return items, nil
}

// listRange devolve uma janela [offset, offset+limit) e o total da empresa.
// A ordenação precisa ser total (terminar em id) para que janelas consecutivas
// não repitam nem pulem registros.
func listRange[T any](ctx context.Context, db *gorm.DB, empresaID uuid.UUID, order string, offset, limit int, resource string) ([]T, int64, error) {
	offset, limit = clampRange(offset, limit)

	var model T
	var total int64
	if err := tenantQuery(ctx, db, empresaID).Model(&model).Count(&total).Error; err != nil {
		appLogger.Errorf("Erro ao contar %s da empresa %s: %v", resource, empresaID, err)
		return nil, 0, appErrors.NewDatabaseErrorDetail("contando "+resource, "", err)
	}
	items := []T{}
	if total == 0 || int64(offset) >= total {
		return items, total, nil
	}
	err := tenantQuery(ctx, db, empresaID).Order(order).Offset(offset).Limit(limit).Find(&items).Error
	if err != nil {
		appLogger.Errorf("Erro ao buscar janela de %s (offset %d, limit %d): %v", resource, offset, limit, err)
		return nil, 0, appErrors.NewDatabaseErrorDetail("buscando janela de "+resource, "", err)
	}
	return items, total, nil
}

func createRecord(ctx context.Context, db *gorm.DB, record interface{}, resource string) error {
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		appLogger.Errorf("Erro ao criar %s: %v", resource, err)
		switch {
		case data.IsUniqueViolation(err):
			return fmt.Errorf("%w: %s duplicado", appErrors.ErrConflict, resource)
		case data.IsForeignKeyViolation(err):
			return fmt.Errorf("%w: %s referencia registro inexistente", appErrors.ErrIntegrity, resource)
		}
		return appErrors.NewDatabaseErrorDetail("criando "+resource, "", err)
	}
	return nil
}

// updateColumns grava apenas as colunas alteradas (já aplicadas em record via ApplyTo).
func updateColumns(ctx context.Context, db *gorm.DB, record interface{}, changes map[string]interface{}, resource string, id uuid.UUID) error {
	if len(changes) == 0 {
		appLogger.Debugf("Nenhuma alteração detectada para %s %s.", resource, id)
		return nil
	}
	result := db.WithContext(ctx).Model(record).Updates(changes)
	if result.Error != nil {
		appLogger.Errorf("Erro ao atualizar %s %s: %v", resource, id, result.Error)
		switch {
		case data.IsUniqueViolation(result.Error):
			return fmt.Errorf("%w: %s duplicado", appErrors.ErrConflict, resource)
		case data.IsForeignKeyViolation(result.Error):
			return fmt.Errorf("%w: %s referencia registro inexistente", appErrors.ErrIntegrity, resource)
		}
		return appErrors.NewDatabaseErrorDetail("atualizando "+resource, "", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", appErrors.ErrNotFound, resource, id)
	}
	appLogger.Infof("%s %s atualizado. Campos: %v", resource, id, maps.Keys(changes))
	return nil
}

// deleteByID exclui fisicamente. Violações de FK viram ConflictError com as
// tabelas dependentes informadas pelo chamador.
func deleteByID[T any](ctx context.Context, db *gorm.DB, empresaID, id uuid.UUID, resource string, dependents ...string) error {
	var model T
	result := tenantQuery(ctx, db, empresaID).Where("id = ?", id).Delete(&model)
	if result.Error != nil {
		if data.IsForeignKeyViolation(result.Error) {
			appLogger.Warnf("Exclusão de %s %s bloqueada por registros dependentes: %v", resource, id, result.Error)
			return appErrors.NewConflictError(resource, id.String(), result.Error, dependents...)
		}
		appLogger.Errorf("Erro ao excluir %s %s: %v", resource, id, result.Error)
		return appErrors.NewDatabaseErrorDetail("excluindo "+resource, "", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", appErrors.ErrNotFound, resource, id)
	}
	appLogger.Infof("%s %s excluído.", resource, id)
	return nil
}

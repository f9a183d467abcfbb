package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

// CategoriaService define as operações sobre tipos de categoria e categorias.
// Exclusões bloqueadas por registros dependentes devolvem *core.ConflictError.
type CategoriaService interface {
	CreateTipo(ctx context.Context, actor Actor, nome string) (*models.TipoCategoria, error)
	DeleteTipo(ctx context.Context, actor Actor, id uuid.UUID) error
	ListTipos(ctx context.Context, actor Actor) ([]models.TipoCategoria, error)

	Create(ctx context.Context, actor Actor, c models.Categoria) (*models.Categoria, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, upd models.CategoriaUpdate) (*models.Categoria, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	List(ctx context.Context, actor Actor, tipoID uuid.UUID) ([]models.Categoria, error)
}

type categoriaServiceImpl struct {
	repo   repositories.CategoriaRepository
	spaces Workspaces
	pub    realtime.Publisher
	audit  AuditLogService
}

func NewCategoriaService(repo repositories.CategoriaRepository, spaces Workspaces, pub realtime.Publisher, audit AuditLogService) CategoriaService {
	if repo == nil || audit == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewCategoriaService")
	}
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	return &categoriaServiceImpl{repo: repo, spaces: spaces, pub: pub, audit: audit}
}

// --- Tipos ---

func (s *categoriaServiceImpl) CreateTipo(ctx context.Context, actor Actor, nome string) (*models.TipoCategoria, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	t := models.TipoCategoria{TenantModel: models.TenantModel{EmpresaID: actor.EmpresaID}, Nome: utils.SanitizeInput(nome)}
	if err := models.Validate(&t); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTipo(ctx, &t); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableTiposCategoria, realtime.EventInsert, &t, nil)
	logAudit(ctx, s.audit, actor.entry("TIPO_CATEGORIA_CREATE", "INFO",
		fmt.Sprintf("Tipo de categoria '%s' criado.", t.Nome),
		models.JSONMetadata{"tipo_id": t.ID.String()}))
	return &t, nil
}

func (s *categoriaServiceImpl) DeleteTipo(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := actor.check(); err != nil {
		return err
	}
	current, err := s.repo.GetTipoByID(ctx, actor.EmpresaID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTipo(ctx, actor.EmpresaID, id); err != nil {
		return err
	}
	publishChange(s.pub, models.TableTiposCategoria, realtime.EventDelete, nil, current)
	logAudit(ctx, s.audit, actor.entry("TIPO_CATEGORIA_DELETE", "WARNING",
		fmt.Sprintf("Tipo de categoria '%s' excluído.", current.Nome),
		models.JSONMetadata{"tipo_id": id.String()}))
	return nil
}

func (s *categoriaServiceImpl) ListTipos(ctx context.Context, actor Actor) ([]models.TipoCategoria, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	return s.repo.ListTipos(ctx, actor.EmpresaID)
}

// --- Categorias ---

func (s *categoriaServiceImpl) Create(ctx context.Context, actor Actor, c models.Categoria) (*models.Categoria, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	c.ID = uuid.Nil
	c.EmpresaID = actor.EmpresaID
	c.Nome = utils.SanitizeInput(c.Nome)
	c.Cor = strings.ToUpper(strings.TrimSpace(c.Cor))
	if err := models.Validate(&c); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetTipoByID(ctx, actor.EmpresaID, c.TipoID); err != nil {
		return nil, refInvalid(err, "tipo_id", "tipo de categoria inexistente")
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableCategorias, realtime.EventInsert, &c, nil)
	logAudit(ctx, s.audit, actor.entry("CATEGORIA_CREATE", "INFO",
		fmt.Sprintf("Categoria '%s' criada.", c.Nome),
		models.JSONMetadata{"categoria_id": c.ID.String()}))
	return &c, nil
}

func (s *categoriaServiceImpl) Update(ctx context.Context, actor Actor, id uuid.UUID, upd models.CategoriaUpdate) (*models.Categoria, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, actor.EmpresaID, id)
	if err != nil {
		return nil, err
	}
	old := *current
	changes := upd.ApplyTo(current)
	if len(changes) == 0 {
		return current, nil
	}
	if _, ok := changes["cor"]; ok {
		current.Cor = strings.ToUpper(strings.TrimSpace(current.Cor))
		changes["cor"] = current.Cor
	}
	if err := models.Validate(current); err != nil {
		return nil, err
	}
	if _, ok := changes["tipo_id"]; ok {
		if _, err := s.repo.GetTipoByID(ctx, actor.EmpresaID, current.TipoID); err != nil {
			return nil, refInvalid(err, "tipo_id", "tipo de categoria inexistente")
		}
	}
	if err := s.repo.Update(ctx, current, changes); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableCategorias, realtime.EventUpdate, current, &old)
	logAudit(ctx, s.audit, actor.entry("CATEGORIA_UPDATE", "INFO",
		fmt.Sprintf("Categoria '%s' atualizada.", current.Nome),
		models.JSONMetadata{"categoria_id": id.String()}))
	return current, nil
}

// Delete exclui a categoria. A restrição do banco decide se há dependentes;
// nesse caso o erro é *core.ConflictError e a categoria permanece.
func (s *categoriaServiceImpl) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
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
	publishChange(s.pub, models.TableCategorias, realtime.EventDelete, nil, current)
	logAudit(ctx, s.audit, actor.entry("CATEGORIA_DELETE", "WARNING",
		fmt.Sprintf("Categoria '%s' excluída.", current.Nome),
		models.JSONMetadata{"categoria_id": id.String()}))
	return nil
}

// List devolve as categorias da empresa, opcionalmente de um único tipo.
func (s *categoriaServiceImpl) List(ctx context.Context, actor Actor, tipoID uuid.UUID) ([]models.Categoria, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	items, err := cachedOrFetch(ctx, s.spaces, actor.EmpresaID,
		func(ws *workspace.Workspace) *listview.Sync[models.Categoria] { return ws.Categorias },
		s.repo.ListByEmpresa)
	if err != nil {
		return nil, err
	}
	return listview.Apply(items, listview.Equals(tipoID, func(c models.Categoria) uuid.UUID { return c.TipoID })), nil
}

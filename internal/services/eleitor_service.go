package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

// EleitorQuery são os filtros da lista de eleitores. Campos vazios não filtram.
type EleitorQuery struct {
	Texto       string
	CategoriaID uuid.UUID
	Bairro      string
	Page        int
	Size        int
}

// EleitorService define as operações sobre eleitores.
type EleitorService interface {
	Create(ctx context.Context, actor Actor, e models.Eleitor) (*models.Eleitor, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, upd models.EleitorUpdate) (*models.Eleitor, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Eleitor, error)
	// List filtra e pagina a lista viva da empresa.
	List(ctx context.Context, actor Actor, q EleitorQuery) (listview.Page[models.Eleitor], error)
	// ListRange pagina direto no banco (carregamento incremental).
	ListRange(ctx context.Context, actor Actor, offset, limit int) ([]models.Eleitor, int64, error)
}

type eleitorServiceImpl struct {
	repo       repositories.EleitorRepository
	categorias repositories.CategoriaRepository
	cep        AddressLookup
	spaces     Workspaces
	pub        realtime.Publisher
	audit      AuditLogService
}

// NewEleitorService cria o serviço. cep e spaces são opcionais.
func NewEleitorService(
	repo repositories.EleitorRepository,
	categorias repositories.CategoriaRepository,
	cep AddressLookup,
	spaces Workspaces,
	pub realtime.Publisher,
	audit AuditLogService,
) EleitorService {
	if repo == nil || categorias == nil || audit == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewEleitorService")
	}
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	return &eleitorServiceImpl{repo: repo, categorias: categorias, cep: cep, spaces: spaces, pub: pub, audit: audit}
}

// normalizeEleitor limpa máscaras e espaços antes da validação.
func normalizeEleitor(e *models.Eleitor) {
	e.Nome = utils.SanitizeInput(e.Nome)
	e.CPF = utils.OnlyDigits(e.CPF)
	e.TituloEleitor = utils.OnlyDigits(e.TituloEleitor)
	e.CEP = utils.OnlyDigits(e.CEP)
	e.Telefone = utils.OnlyDigits(e.Telefone)
	e.WhatsApp = utils.OnlyDigits(e.WhatsApp)
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.UF = strings.ToUpper(strings.TrimSpace(e.UF))
	e.Bairro = utils.SanitizeInput(e.Bairro)
	e.Cidade = utils.SanitizeInput(e.Cidade)
}

// Create cadastra um eleitor na empresa do actor. Com CEP informado e
// endereço vazio, o endereço é preenchido pela consulta de CEP.
func (s *eleitorServiceImpl) Create(ctx context.Context, actor Actor, e models.Eleitor) (*models.Eleitor, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}

	// 1. Normalizar e completar
	e.ID = uuid.Nil
	e.EmpresaID = actor.EmpresaID
	normalizeEleitor(&e)
	s.prefillAddress(ctx, &e)

	// 2. Validar
	if err := models.Validate(&e); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, &e); err != nil {
		return nil, err
	}
	if e.CPF != "" {
		if err := s.checkCPFUnique(ctx, actor.EmpresaID, e.CPF, uuid.Nil); err != nil {
			return nil, err
		}
	}

	// 3. Persistir
	if err := s.repo.Create(ctx, &e); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableEleitores, realtime.EventInsert, &e, nil)

	// 4. Auditoria
	logAudit(ctx, s.audit, actor.entry("ELEITOR_CREATE", "INFO",
		fmt.Sprintf("Eleitor '%s' cadastrado.", e.Nome),
		models.JSONMetadata{"eleitor_id": e.ID.String()}))
	return &e, nil
}

func (s *eleitorServiceImpl) prefillAddress(ctx context.Context, e *models.Eleitor) {
	if s.cep == nil || e.CEP == "" || e.Logradouro != "" {
		return
	}
	end, err := s.cep.Lookup(ctx, e.CEP)
	if err != nil {
		appLogger.Warnf("Pré-preenchimento de endereço pelo CEP %s falhou (cadastro segue sem endereço): %v", e.CEP, err)
		return
	}
	e.Logradouro = end.Logradouro
	if e.Complemento == "" {
		e.Complemento = end.Complemento
	}
	if e.Bairro == "" {
		e.Bairro = end.Bairro
	}
	if e.Cidade == "" {
		e.Cidade = end.Cidade
	}
	if e.UF == "" {
		e.UF = end.UF
	}
}

// checkRefs garante que categoria e indicação pertencem à mesma empresa.
func (s *eleitorServiceImpl) checkRefs(ctx context.Context, e *models.Eleitor) error {
	if e.CategoriaID != nil {
		if _, err := s.categorias.GetByID(ctx, e.EmpresaID, *e.CategoriaID); err != nil {
			return refInvalid(err, "categoria_id", "categoria inexistente")
		}
	}
	if e.IndicadoPorID != nil {
		if *e.IndicadoPorID == e.ID {
			return appErrors.NewValidationError("Dados inválidos.", map[string]string{"indicado_por_id": "eleitor não pode indicar a si mesmo"})
		}
		if _, err := s.repo.GetByID(ctx, e.EmpresaID, *e.IndicadoPorID); err != nil {
			return refInvalid(err, "indicado_por_id", "eleitor inexistente")
		}
	}
	return nil
}

func (s *eleitorServiceImpl) checkCPFUnique(ctx context.Context, empresaID uuid.UUID, cpf string, self uuid.UUID) error {
	other, err := s.repo.GetByCPF(ctx, empresaID, cpf)
	switch {
	case errors.Is(err, appErrors.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != self:
		return appErrors.NewConflictError("eleitor", other.ID.String(), fmt.Errorf("CPF %s já cadastrado", utils.FormatCPF(cpf)))
	}
	return nil
}

// Update aplica alterações parciais.
func (s *eleitorServiceImpl) Update(ctx context.Context, actor Actor, id uuid.UUID, upd models.EleitorUpdate) (*models.Eleitor, error) {
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
	normalizeEleitor(current)
	for col, val := range map[string]string{
		"nome": current.Nome, "cpf": current.CPF, "titulo_eleitor": current.TituloEleitor,
		"cep": current.CEP, "telefone": current.Telefone, "whatsapp": current.WhatsApp,
		"email": current.Email, "uf": current.UF, "bairro": current.Bairro, "cidade": current.Cidade,
	} {
		if _, ok := changes[col]; ok {
			changes[col] = val
		}
	}

	if err := models.Validate(current); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, current); err != nil {
		return nil, err
	}
	if _, ok := changes["cpf"]; ok && current.CPF != "" {
		if err := s.checkCPFUnique(ctx, actor.EmpresaID, current.CPF, current.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, current, changes); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableEleitores, realtime.EventUpdate, current, &old)

	logAudit(ctx, s.audit, actor.entry("ELEITOR_UPDATE", "INFO",
		fmt.Sprintf("Eleitor '%s' atualizado.", current.Nome),
		models.JSONMetadata{"eleitor_id": id.String(), "campos": len(changes)}))
	return current, nil
}

// Delete exclui o eleitor; atendimentos são removidos em cascata e ofícios
// perdem o vínculo.
func (s *eleitorServiceImpl) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
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
	publishChange(s.pub, models.TableEleitores, realtime.EventDelete, nil, current)

	logAudit(ctx, s.audit, actor.entry("ELEITOR_DELETE", "WARNING",
		fmt.Sprintf("Eleitor '%s' excluído.", current.Nome),
		models.JSONMetadata{"eleitor_id": id.String()}))
	return nil
}

func (s *eleitorServiceImpl) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Eleitor, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, actor.EmpresaID, id)
}

func (s *eleitorServiceImpl) List(ctx context.Context, actor Actor, q EleitorQuery) (listview.Page[models.Eleitor], error) {
	if err := actor.check(); err != nil {
		return listview.Page[models.Eleitor]{}, err
	}
	items, err := cachedOrFetch(ctx, s.spaces, actor.EmpresaID,
		func(ws *workspace.Workspace) *listview.Sync[models.Eleitor] { return ws.Eleitores },
		s.repo.ListByEmpresa)
	if err != nil {
		return listview.Page[models.Eleitor]{}, err
	}
	filtered := listview.Apply(items, EleitorPredicates(q)...)
	return listview.Paginate(filtered, q.Page, q.Size), nil
}

// EleitorPredicates traduz a consulta em predicados sobre a lista.
func EleitorPredicates(q EleitorQuery) []listview.Predicate[models.Eleitor] {
	return []listview.Predicate[models.Eleitor]{
		listview.Contains(q.Texto,
			func(e models.Eleitor) string { return e.Nome },
			func(e models.Eleitor) string { return e.CPF },
			func(e models.Eleitor) string { return e.Telefone },
			func(e models.Eleitor) string { return e.WhatsApp },
			func(e models.Eleitor) string { return e.Email },
		),
		listview.Equals(q.CategoriaID, func(e models.Eleitor) uuid.UUID {
			if e.CategoriaID == nil {
				return uuid.Nil
			}
			return *e.CategoriaID
		}),
		listview.Contains(q.Bairro, func(e models.Eleitor) string { return e.Bairro }),
	}
}

func (s *eleitorServiceImpl) ListRange(ctx context.Context, actor Actor, offset, limit int) ([]models.Eleitor, int64, error) {
	if err := actor.check(); err != nil {
		return nil, 0, err
	}
	return s.repo.ListRange(ctx, actor.EmpresaID, offset, limit)
}

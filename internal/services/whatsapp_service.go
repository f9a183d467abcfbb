package services

import (
	"context"
	"fmt"
	"sync"
	"text/template"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/integrations"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

// DefaultSendConcurrency limita os envios simultâneos quando não configurado.
const DefaultSendConcurrency = 4

// Disparo é um envio em massa para os eleitores de uma categoria. Usa o modelo
// nomeado ou, sem modelo, o texto livre de Mensagem (mesma sintaxe).
type Disparo struct {
	CategoriaID uuid.UUID `json:"categoria_id"`
	Modelo      string    `json:"modelo"`
	Mensagem    string    `json:"mensagem"`
	InstanciaID uuid.UUID `json:"instancia_id"`
}

// DisparoResult resume um envio em massa. Falhas mapeia eleitor -> erro.
type DisparoResult struct {
	Total    int               `json:"total"`
	Enviados int               `json:"enviados"`
	Falhas   map[string]string `json:"falhas,omitempty"`
}

// WhatsAppService define as operações de integração com WhatsApp.
type WhatsAppService interface {
	Status(ctx context.Context, actor Actor) ([]models.WhatsAppInstancia, error)
	CreateInstance(ctx context.Context, actor Actor, nome string) (*models.WhatsAppInstancia, error)
	UpdateInstanceStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.WhatsAppStatus, numero, qrCode string) (*models.WhatsAppInstancia, error)
	BulkSend(ctx context.Context, actor Actor, d Disparo) (*DisparoResult, error)
	Templates() []string
}

type whatsAppServiceImpl struct {
	repo        repositories.WhatsAppRepository
	eleitores   repositories.EleitorRepository
	categorias  repositories.CategoriaRepository
	sender      MessageSender
	catalog     *integrations.TemplateCatalog
	concurrency int
	spaces      Workspaces
	pub         realtime.Publisher
	audit       AuditLogService
}

// NewWhatsAppService cria o serviço. sender nil desliga os disparos.
func NewWhatsAppService(
	repo repositories.WhatsAppRepository,
	eleitores repositories.EleitorRepository,
	categorias repositories.CategoriaRepository,
	sender MessageSender,
	catalog *integrations.TemplateCatalog,
	concurrency int,
	spaces Workspaces,
	pub realtime.Publisher,
	audit AuditLogService,
) WhatsAppService {
	if repo == nil || eleitores == nil || categorias == nil || audit == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewWhatsAppService")
	}
	if concurrency <= 0 {
		concurrency = DefaultSendConcurrency
	}
	if catalog == nil {
		catalog, _ = integrations.ParseTemplates(nil)
	}
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	return &whatsAppServiceImpl{
		repo:        repo,
		eleitores:   eleitores,
		categorias:  categorias,
		sender:      sender,
		catalog:     catalog,
		concurrency: concurrency,
		spaces:      spaces,
		pub:         pub,
		audit:       audit,
	}
}

func (s *whatsAppServiceImpl) Templates() []string { return s.catalog.Names() }

// Status devolve as instâncias da empresa, lidas da lista viva quando disponível.
func (s *whatsAppServiceImpl) Status(ctx context.Context, actor Actor) ([]models.WhatsAppInstancia, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	return cachedOrFetch(ctx, s.spaces, actor.EmpresaID,
		func(ws *workspace.Workspace) *listview.Sync[models.WhatsAppInstancia] { return ws.WhatsApp },
		s.repo.ListByEmpresa)
}

func (s *whatsAppServiceImpl) CreateInstance(ctx context.Context, actor Actor, nome string) (*models.WhatsAppInstancia, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	w := models.WhatsAppInstancia{
		TenantModel: models.TenantModel{EmpresaID: actor.EmpresaID},
		Nome:        utils.SanitizeInput(nome),
		Status:      models.WhatsAppDesconectado,
	}
	if err := models.Validate(&w); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &w); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableWhatsApp, realtime.EventInsert, &w, nil)
	logAudit(ctx, s.audit, actor.entry("WHATSAPP_INSTANCIA_CREATE", "INFO",
		fmt.Sprintf("Instância de WhatsApp '%s' criada.", w.Nome),
		models.JSONMetadata{"instancia_id": w.ID.String()}))
	return &w, nil
}

// UpdateInstanceStatus grava o estado informado pela API de automação.
func (s *whatsAppServiceImpl) UpdateInstanceStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.WhatsAppStatus, numero, qrCode string) (*models.WhatsAppInstancia, error) {
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

	changes := map[string]interface{}{}
	if current.Status != status {
		current.Status = status
		changes["status"] = status
	}
	if status != models.WhatsAppAguardandoQR {
		qrCode = ""
	}
	if current.QRCode != qrCode {
		current.QRCode = qrCode
		changes["qr_code"] = qrCode
	}
	if n := utils.OnlyDigits(numero); n != "" && n != current.Numero {
		current.Numero = n
		changes["numero"] = n
	}
	if len(changes) == 0 {
		return current, nil
	}
	if err := s.repo.Update(ctx, current, changes); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableWhatsApp, realtime.EventUpdate, current, &old)
	if old.Status != current.Status {
		logAudit(ctx, s.audit, actor.entry("WHATSAPP_STATUS", "INFO",
			fmt.Sprintf("Instância '%s': %s -> %s.", current.Nome, old.Status, current.Status),
			models.JSONMetadata{"instancia_id": id.String()}))
	}
	return current, nil
}

func (s *whatsAppServiceImpl) pickInstance(ctx context.Context, actor Actor, id uuid.UUID) (*models.WhatsAppInstancia, error) {
	if id != uuid.Nil {
		inst, err := s.repo.GetByID(ctx, actor.EmpresaID, id)
		if err != nil {
			return nil, refInvalid(err, "instancia_id", "instância inexistente")
		}
		if inst.Status != models.WhatsAppConectado {
			return nil, appErrors.NewValidationError("Instância desconectada.", map[string]string{"instancia_id": "instância não está conectada"})
		}
		return inst, nil
	}
	all, err := s.Status(ctx, actor)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Status == models.WhatsAppConectado {
			return &all[i], nil
		}
	}
	return nil, appErrors.NewValidationError("Nenhuma instância conectada.", map[string]string{"instancia_id": "conecte uma instância de WhatsApp"})
}

func (s *whatsAppServiceImpl) message(d Disparo) (*template.Template, error) {
	if d.Modelo != "" {
		return s.catalog.Lookup(d.Modelo)
	}
	return integrations.CompileMessage(d.Mensagem)
}

// BulkSend envia a mensagem aos eleitores da categoria que têm WhatsApp ou
// telefone. Falhas individuais não interrompem o disparo.
func (s *whatsAppServiceImpl) BulkSend(ctx context.Context, actor Actor, d Disparo) (*DisparoResult, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	if s.sender == nil {
		return nil, fmt.Errorf("%w: API de WhatsApp não configurada", appErrors.ErrConfiguration)
	}

	// 1. Validar entrada
	tpl, err := s.message(d)
	if err != nil {
		return nil, err
	}
	categoria, err := s.categorias.GetByID(ctx, actor.EmpresaID, d.CategoriaID)
	if err != nil {
		return nil, refInvalid(err, "categoria_id", "categoria inexistente")
	}
	inst, err := s.pickInstance(ctx, actor, d.InstanciaID)
	if err != nil {
		return nil, err
	}
	destinatarios, err := s.eleitores.ListByCategoria(ctx, actor.EmpresaID, categoria.ID)
	if err != nil {
		return nil, err
	}

	// 2. Enviar com concorrência limitada
	result := &DisparoResult{Total: len(destinatarios), Falhas: map[string]string{}}
	var mu sync.Mutex
	fail := func(id uuid.UUID, err error) {
		mu.Lock()
		result.Falhas[id.String()] = err.Error()
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, e := range destinatarios {
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			numero := e.WhatsApp
			if numero == "" {
				numero = e.Telefone
			}
			text, err := integrations.Render(tpl, integrations.MessageData{
				Nome: e.Nome, Bairro: e.Bairro, Cidade: e.Cidade, Categoria: categoria.Nome,
			})
			if err != nil {
				fail(e.ID, err)
				return nil
			}
			if err := s.sender.SendText(gctx, inst.Nome, numero, text); err != nil {
				fail(e.ID, err)
				return nil
			}
			mu.Lock()
			result.Enviados++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	// 3. Auditoria
	severity := "INFO"
	if len(result.Falhas) > 0 {
		severity = "WARNING"
	}
	logAudit(ctx, s.audit, actor.entry("WHATSAPP_DISPARO", severity,
		fmt.Sprintf("Disparo para a categoria '%s': %d de %d enviados.", categoria.Nome, result.Enviados, result.Total),
		models.JSONMetadata{"categoria_id": categoria.ID.String(), "instancia": inst.Nome, "falhas": len(result.Falhas)}))
	return result, nil
}

package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/integrations"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/storage"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

// OficioQuery são os filtros da lista de ofícios. Campos zero não filtram.
// De/Ate e Periodo se aplicam à data de criação.
type OficioQuery struct {
	Status   models.OficioStatus
	Urgencia models.Urgencia
	Tipo     models.TipoDocumento
	Texto    string
	De       time.Time
	Ate      time.Time
	Periodo  listview.Bucket
	Now      time.Time
	Page     int
	Size     int
}

// OficioService define as operações sobre ofícios e requerimentos.
type OficioService interface {
	Create(ctx context.Context, actor Actor, o models.Oficio) (*models.Oficio, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, upd models.OficioUpdate) (*models.Oficio, error)
	// ChangeStatus muda o status; a entrada em Protocolada registra a data e
	// notifica o webhook.
	ChangeStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.OficioStatus) (*models.Oficio, error)
	// AttachFile guarda o arquivo do documento e grava a URL pública.
	AttachFile(ctx context.Context, actor Actor, id uuid.UUID, filename string, content io.Reader) (*models.Oficio, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Oficio, error)
	List(ctx context.Context, actor Actor, q OficioQuery) (listview.Page[models.Oficio], error)
	ListRange(ctx context.Context, actor Actor, offset, limit int) ([]models.Oficio, int64, error)
	// Export escreve todos os ofícios que passam pelos filtros (sem paginação).
	Export(ctx context.Context, actor Actor, q OficioQuery, format ExportFormat, w io.Writer) error
}

type oficioServiceImpl struct {
	repo      repositories.OficioRepository
	eleitores repositories.EleitorRepository
	files     FileStorage
	notifier  Notifier
	spaces    Workspaces
	pub       realtime.Publisher
	audit     AuditLogService
	now       func() time.Time
}

// NewOficioService cria o serviço. files, notifier e spaces são opcionais.
func NewOficioService(
	repo repositories.OficioRepository,
	eleitores repositories.EleitorRepository,
	files FileStorage,
	notifier Notifier,
	spaces Workspaces,
	pub realtime.Publisher,
	audit AuditLogService,
) OficioService {
	if repo == nil || eleitores == nil || audit == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewOficioService")
	}
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	return &oficioServiceImpl{
		repo:      repo,
		eleitores: eleitores,
		files:     files,
		notifier:  notifier,
		spaces:    spaces,
		pub:       pub,
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create registra o documento. Sem número, gera o próximo da sequência anual
// do tipo ("007/2024").
func (s *oficioServiceImpl) Create(ctx context.Context, actor Actor, o models.Oficio) (*models.Oficio, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}

	// 1. Defaults
	o.ID = uuid.Nil
	o.EmpresaID = actor.EmpresaID
	o.Assunto = utils.SanitizeInput(o.Assunto)
	o.Destinatario = utils.SanitizeInput(o.Destinatario)
	o.Numero = strings.TrimSpace(o.Numero)
	if o.Tipo == "" {
		o.Tipo = models.TipoOficio
	}
	if o.Status == "" {
		o.Status = models.OficioRecebida
	}
	if o.Urgencia == "" {
		o.Urgencia = models.UrgenciaNormal
	}
	if o.Status == models.OficioProtocolada && o.ProtocoladoEm == nil {
		now := s.now()
		o.ProtocoladoEm = &now
	}
	if o.Numero == "" && o.Tipo.Valid() {
		numero, err := s.nextNumero(ctx, actor.EmpresaID, o.Tipo)
		if err != nil {
			return nil, err
		}
		o.Numero = numero
	}

	// 2. Validar
	if err := models.Validate(&o); err != nil {
		return nil, err
	}
	if err := s.checkEleitor(ctx, actor.EmpresaID, o.EleitorID); err != nil {
		return nil, err
	}

	// 3. Persistir
	if err := s.repo.Create(ctx, &o); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableOficios, realtime.EventInsert, &o, nil)

	logAudit(ctx, s.audit, actor.entry("OFICIO_CREATE", "INFO",
		fmt.Sprintf("%s %s criado: %s.", o.Tipo, o.Numero, o.Assunto),
		models.JSONMetadata{"oficio_id": o.ID.String(), "numero": o.Numero}))
	return &o, nil
}

func (s *oficioServiceImpl) nextNumero(ctx context.Context, empresaID uuid.UUID, tipo models.TipoDocumento) (string, error) {
	ano := s.now().Year()
	n, err := s.repo.CountByTipoAno(ctx, empresaID, tipo, ano)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%03d/%d", n+1, ano), nil
}

func (s *oficioServiceImpl) checkEleitor(ctx context.Context, empresaID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.eleitores.GetByID(ctx, empresaID, *id); err != nil {
		return refInvalid(err, "eleitor_id", "eleitor inexistente")
	}
	return nil
}

func (s *oficioServiceImpl) Update(ctx context.Context, actor Actor, id uuid.UUID, upd models.OficioUpdate) (*models.Oficio, error) {
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
	if err := models.Validate(current); err != nil {
		return nil, err
	}
	if _, ok := changes["eleitor_id"]; ok {
		if err := s.checkEleitor(ctx, actor.EmpresaID, current.EleitorID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, current, changes); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableOficios, realtime.EventUpdate, current, &old)

	logAudit(ctx, s.audit, actor.entry("OFICIO_UPDATE", "INFO",
		fmt.Sprintf("%s %s atualizado.", current.Tipo, current.Numero),
		models.JSONMetadata{"oficio_id": id.String()}))
	return current, nil
}

func (s *oficioServiceImpl) ChangeStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.OficioStatus) (*models.Oficio, error) {
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
	if current.Status == status {
		return current, nil
	}
	old := *current

	changes := map[string]interface{}{"status": status}
	current.Status = status
	protocolado := status == models.OficioProtocolada
	if protocolado && current.ProtocoladoEm == nil {
		now := s.now()
		current.ProtocoladoEm = &now
		changes["protocolado_em"] = now
	}
	if err := s.repo.Update(ctx, current, changes); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableOficios, realtime.EventUpdate, current, &old)

	logAudit(ctx, s.audit, actor.entry("OFICIO_STATUS", "INFO",
		fmt.Sprintf("%s %s: %s -> %s.", current.Tipo, current.Numero, old.Status, status),
		models.JSONMetadata{"oficio_id": id.String(), "de": string(old.Status), "para": string(status)}))

	if protocolado && s.notifier != nil {
		s.notifier.Fire(ctx, integrations.EventOficioProtocolado, map[string]interface{}{
			"id":             current.ID,
			"empresa_id":     current.EmpresaID,
			"tipo":           current.Tipo,
			"numero":         current.Numero,
			"assunto":        current.Assunto,
			"destinatario":   current.Destinatario,
			"protocolado_em": current.ProtocoladoEm,
		})
	}
	return current, nil
}

func (s *oficioServiceImpl) AttachFile(ctx context.Context, actor Actor, id uuid.UUID, filename string, content io.Reader) (*models.Oficio, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, fmt.Errorf("%w: armazenamento de arquivos não configurado", appErrors.ErrConfiguration)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return nil, appErrors.NewValidationError("Arquivo inválido.", map[string]string{"arquivo": "nome do arquivo obrigatório"})
	}
	current, err := s.repo.GetByID(ctx, actor.EmpresaID, id)
	if err != nil {
		return nil, err
	}
	old := *current

	objectPath := path.Join(actor.EmpresaID.String(), id.String(), name)
	if _, err := s.files.Upload(ctx, storage.BucketOficios, objectPath, content); err != nil {
		return nil, err
	}
	url, err := s.files.PublicURL(storage.BucketOficios, objectPath)
	if err != nil {
		return nil, err
	}

	current.ArquivoURL = url
	if err := s.repo.Update(ctx, current, map[string]interface{}{"arquivo_url": url}); err != nil {
		return nil, err
	}
	publishChange(s.pub, models.TableOficios, realtime.EventUpdate, current, &old)

	logAudit(ctx, s.audit, actor.entry("OFICIO_ARQUIVO", "INFO",
		fmt.Sprintf("Arquivo '%s' anexado ao %s %s.", name, current.Tipo, current.Numero),
		models.JSONMetadata{"oficio_id": id.String(), "arquivo": objectPath}))
	return current, nil
}

func (s *oficioServiceImpl) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
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
	publishChange(s.pub, models.TableOficios, realtime.EventDelete, nil, current)

	logAudit(ctx, s.audit, actor.entry("OFICIO_DELETE", "WARNING",
		fmt.Sprintf("%s %s excluído.", current.Tipo, current.Numero),
		models.JSONMetadata{"oficio_id": id.String(), "numero": current.Numero}))
	return nil
}

func (s *oficioServiceImpl) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Oficio, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, actor.EmpresaID, id)
}

func (s *oficioServiceImpl) filtered(ctx context.Context, actor Actor, q OficioQuery) ([]models.Oficio, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	items, err := cachedOrFetch(ctx, s.spaces, actor.EmpresaID,
		func(ws *workspace.Workspace) *listview.Sync[models.Oficio] { return ws.Oficios },
		s.repo.ListByEmpresa)
	if err != nil {
		return nil, err
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	return listview.Apply(items, OficioPredicates(q)...), nil
}

// OficioPredicates traduz a consulta em predicados sobre a lista.
func OficioPredicates(q OficioQuery) []listview.Predicate[models.Oficio] {
	created := func(o models.Oficio) time.Time { return o.CreatedAt }
	return []listview.Predicate[models.Oficio]{
		listview.Equals(q.Status, func(o models.Oficio) models.OficioStatus { return o.Status }),
		listview.Equals(q.Urgencia, func(o models.Oficio) models.Urgencia { return o.Urgencia }),
		listview.Equals(q.Tipo, func(o models.Oficio) models.TipoDocumento { return o.Tipo }),
		listview.Contains(q.Texto,
			func(o models.Oficio) string { return o.Numero },
			func(o models.Oficio) string { return o.Assunto },
			func(o models.Oficio) string { return o.Destinatario },
		),
		listview.InRange(q.De, q.Ate, created),
		listview.InBucket(q.Periodo, q.Now, created),
	}
}

func (s *oficioServiceImpl) List(ctx context.Context, actor Actor, q OficioQuery) (listview.Page[models.Oficio], error) {
	items, err := s.filtered(ctx, actor, q)
	if err != nil {
		return listview.Page[models.Oficio]{}, err
	}
	return listview.Paginate(items, q.Page, q.Size), nil
}

func (s *oficioServiceImpl) ListRange(ctx context.Context, actor Actor, offset, limit int) ([]models.Oficio, int64, error) {
	if err := actor.check(); err != nil {
		return nil, 0, err
	}
	return s.repo.ListRange(ctx, actor.EmpresaID, offset, limit)
}

func (s *oficioServiceImpl) Export(ctx context.Context, actor Actor, q OficioQuery, format ExportFormat, w io.Writer) error {
	items, err := s.filtered(ctx, actor, q)
	if err != nil {
		return err
	}
	if err := WriteOficios(w, format, items); err != nil {
		return err
	}
	logAudit(ctx, s.audit, actor.entry("OFICIO_EXPORT", "INFO",
		fmt.Sprintf("%d documentos exportados (%s).", len(items), format), nil))
	return nil
}

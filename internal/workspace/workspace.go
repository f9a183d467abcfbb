// Package workspace mantém, por empresa, as listas sincronizadas com o feed de
// alterações. Sessões da mesma empresa compartilham um único Workspace.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
)

// ErrManagerClosed é devolvido por Acquire depois de Close.
var ErrManagerClosed = fmt.Errorf("%w: gerenciador de workspaces encerrado", appErrors.ErrSubscription)

// Repos agrupa as fontes das cargas iniciais.
type Repos struct {
	Oficios    repositories.OficioRepository
	Eleitores  repositories.EleitorRepository
	Categorias repositories.CategoriaRepository
	WhatsApp   repositories.WhatsAppRepository
}

// Options parametriza a reconexão das listas (zero usa os padrões de listview).
type Options struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	FetchTimeout time.Duration
}

// OptionsFromConfig lê as opções de realtime da configuração.
func OptionsFromConfig(cfg *appErrors.Config) Options {
	return Options{
		MaxRetries:   cfg.RealtimeMaxRetries,
		BaseDelay:    cfg.RealtimeBaseDelay,
		MaxDelay:     cfg.RealtimeMaxDelay,
		FetchTimeout: cfg.RealtimeFetchTimeout,
	}
}

// Workspace é o conjunto de listas vivas de uma empresa.
type Workspace struct {
	EmpresaID  uuid.UUID
	Oficios    *listview.Sync[models.Oficio]
	Eleitores  *listview.Sync[models.Eleitor]
	Categorias *listview.Sync[models.Categoria]
	WhatsApp   *listview.Sync[models.WhatsAppInstancia]
}

// States devolve o estado de cada lista, indexado pela tabela.
func (w *Workspace) States() map[string]listview.State {
	return map[string]listview.State{
		models.TableOficios:    w.Oficios.State(),
		models.TableEleitores:  w.Eleitores.State(),
		models.TableCategorias: w.Categorias.State(),
		models.TableWhatsApp:   w.WhatsApp.State(),
	}
}

func (w *Workspace) close() {
	w.Oficios.Close()
	w.Eleitores.Close()
	w.Categorias.Close()
	w.WhatsApp.Close()
}

// Items devolve o conteúdo atual da lista. Se a carga inicial falhou, tenta
// recarregar antes (retry manual disparado pela próxima leitura).
func Items[T listview.Keyed](ctx context.Context, s *listview.Sync[T]) ([]T, error) {
	if s.State() == listview.StateLoadFailed {
		if err := s.Reload(ctx); err != nil {
			return nil, err
		}
	}
	return s.Items(), nil
}

type entry struct {
	ws    *Workspace
	refs  int
	ready chan struct{}
	err   error
}

// Manager abre um Workspace por empresa sob demanda, com contagem de referências.
type Manager struct {
	feed  realtime.Feed
	repos Repos
	opts  Options
	log   *logrus.Entry

	mu     sync.Mutex
	spaces map[uuid.UUID]*entry
	closed bool
}

// NewManager cria um Manager sobre o feed informado.
func NewManager(feed realtime.Feed, repos Repos, opts Options) *Manager {
	if feed == nil {
		appLogger.Fatalf("realtime.Feed não pode ser nil para workspace.NewManager")
	}
	return &Manager{
		feed:   feed,
		repos:  repos,
		opts:   opts,
		spaces: make(map[uuid.UUID]*entry),
		log:    appLogger.WithFields(logrus.Fields{"component": "workspace"}),
	}
}

// Acquire devolve o Workspace da empresa, abrindo-o na primeira referência.
// Cada Acquire bem-sucedido deve ter um Release correspondente. Falhas de carga
// não impedem a abertura: a lista fica em load_failed e é recarregada por Items.
func (m *Manager) Acquire(ctx context.Context, empresaID uuid.UUID) (*Workspace, error) {
	if empresaID == uuid.Nil {
		return nil, fmt.Errorf("%w: empresa obrigatória", appErrors.ErrInvalidInput)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if e, ok := m.spaces[empresaID]; ok {
		e.refs++
		m.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		return e.ws, nil
	}
	e := &entry{refs: 1, ready: make(chan struct{})}
	m.spaces[empresaID] = e
	m.mu.Unlock()

	ws, err := m.open(ctx, empresaID)

	m.mu.Lock()
	e.ws, e.err = ws, err
	if err != nil {
		delete(m.spaces, empresaID)
	}
	close(e.ready)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	m.log.WithField("empresa", empresaID).Info("Workspace aberto")
	return ws, nil
}

// Get devolve o Workspace já aberto da empresa, sem adquirir referência.
func (m *Manager) Get(empresaID uuid.UUID) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.spaces[empresaID]
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
		return e.ws, e.ws != nil
	default:
		return nil, false
	}
}

// Release devolve uma referência; a última fecha as assinaturas da empresa.
func (m *Manager) Release(empresaID uuid.UUID) {
	m.mu.Lock()
	e, ok := m.spaces[empresaID]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.spaces, empresaID)
	m.mu.Unlock()

	<-e.ready
	if e.ws != nil {
		e.ws.close()
		m.log.WithField("empresa", empresaID).Info("Workspace fechado (última sessão encerrada)")
	}
}

// Refs devolve o número de referências ativas da empresa.
func (m *Manager) Refs(empresaID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.spaces[empresaID]; ok {
		return e.refs
	}
	return 0
}

// Close fecha todos os workspaces. Acquire passa a falhar.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	entries := make([]*entry, 0, len(m.spaces))
	for id, e := range m.spaces {
		entries = append(entries, e)
		delete(m.spaces, id)
	}
	m.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.ws != nil {
			e.ws.close()
		}
	}
}

func (m *Manager) open(ctx context.Context, empresaID uuid.UUID) (*Workspace, error) {
	ws := &Workspace{EmpresaID: empresaID}
	var err error

	if ws.Oficios, err = newSync(m, models.TableOficios, listview.Prepend, m.repos.Oficios.ListByEmpresa); err != nil {
		return nil, err
	}
	if ws.Eleitores, err = newSync(m, models.TableEleitores, listview.Append, m.repos.Eleitores.ListByEmpresa); err != nil {
		return nil, err
	}
	if ws.Categorias, err = newSync(m, models.TableCategorias, listview.Append, m.repos.Categorias.ListByEmpresa); err != nil {
		return nil, err
	}
	if ws.WhatsApp, err = newSync(m, models.TableWhatsApp, listview.Append, m.repos.WhatsApp.ListByEmpresa); err != nil {
		return nil, err
	}

	tenant := empresaID.String()
	logCtx := m.log.WithField("empresa", empresaID)
	starts := []struct {
		table string
		start func(context.Context, string) error
	}{
		{models.TableOficios, ws.Oficios.Start},
		{models.TableEleitores, ws.Eleitores.Start},
		{models.TableCategorias, ws.Categorias.Start},
		{models.TableWhatsApp, ws.WhatsApp.Start},
	}
	for _, s := range starts {
		if err := s.start(ctx, tenant); err != nil {
			logCtx.WithField("table", s.table).Warnf("Carga inicial falhou, lista fica aguardando recarga: %v", err)
		}
	}
	return ws, nil
}

// newSync liga uma lista da empresa ao feed, com a carga vinda do repositório.
func newSync[T listview.Keyed](m *Manager, table string, pos listview.InsertPosition, list func(context.Context, uuid.UUID) ([]T, error)) (*listview.Sync[T], error) {
	logCtx := m.log.WithField("table", table)
	return listview.NewSync(listview.SyncConfig[T]{
		Table: table,
		Feed:  m.feed,
		Fetch: func(ctx context.Context, tenant string) ([]T, error) {
			id, err := uuid.Parse(tenant)
			if err != nil {
				return nil, fmt.Errorf("%w: tenant inválido %q", appErrors.ErrInvalidInput, tenant)
			}
			return list(ctx, id)
		},
		Validate:     func(item *T) error { return models.Validate(item) },
		Position:     pos,
		MaxRetries:   m.opts.MaxRetries,
		BaseDelay:    m.opts.BaseDelay,
		MaxDelay:     m.opts.MaxDelay,
		FetchTimeout: m.opts.FetchTimeout,
		OnStateChange: func(st listview.State, err error) {
			if err != nil {
				logCtx.Warnf("Lista em %s: %v", st, err)
				return
			}
			logCtx.Debugf("Lista em %s", st)
		},
	})
}

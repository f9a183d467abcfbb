package listview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
)

// State é o estado observável de um Sync.
type State string

const (
	StateIdle         State = "idle"
	StateLoading      State = "loading"
	StateLive         State = "live"
	StateReconnecting State = "reconnecting"
	StateLoadFailed   State = "load_failed"
	StateFailed       State = "failed"
	StateStopped      State = "stopped"
)

// Valores usados quando o campo correspondente de SyncConfig é zero.
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultFetchTimeout = 30 * time.Second
	DefaultTenantColumn = "empresa_id"
)

var (
	// ErrSyncClosed é devolvido por operações em um Sync encerrado.
	ErrSyncClosed = errors.New("listview: sync encerrado")
	// ErrNotStarted é devolvido por Reload/Reconnect antes de Start.
	ErrNotStarted = errors.New("listview: sync sem tenant (Start não chamado)")
	// ErrSuperseded indica que a operação foi atropelada por um Start/Stop mais recente.
	ErrSuperseded = errors.New("listview: operação substituída por troca de tenant")
)

// FetchFunc carrega o snapshot completo de um tenant.
type FetchFunc[T any] func(ctx context.Context, tenant string) ([]T, error)

// SyncConfig parametriza um Sync.
type SyncConfig[T Keyed] struct {
	Table        string
	TenantColumn string
	Feed         realtime.Feed
	Fetch        FetchFunc[T]
	Validate     ValidateFunc[T]
	Position     InsertPosition

	// Reconexão: backoff exponencial com teto, até MaxRetries tentativas
	// consecutivas sem SUBSCRIBED.
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	FetchTimeout time.Duration
	// NoResyncOnReconnect desliga a recarga do snapshot após reassinar.
	NoResyncOnReconnect bool

	// OnStateChange é chamado (fora do lock interno) a cada transição.
	OnStateChange func(State, error)
}

// Sync é o ouvinte do feed de uma tabela para um tenant: faz a carga inicial,
// mantém uma única assinatura filtrada pelo tenant e aplica os eventos no Store.
// Quedas da assinatura disparam unsubscribe explícito seguido de nova
// assinatura com backoff; esgotadas as tentativas, o estado vira StateFailed
// até Reconnect.
type Sync[T Keyed] struct {
	cfg   SyncConfig[T]
	store *Store[T]
	log   *logrus.Entry

	// applyMu serializa a aplicação de eventos com Start/Stop: um handler que
	// já passou pela checagem de época termina antes do cache ser trocado.
	// Ordem de aquisição: applyMu, depois mu.
	applyMu sync.Mutex

	mu            sync.Mutex
	state         State
	err           error
	tenant        string
	epoch         uint64 // muda a cada Start/Stop; invalida carregamentos e handlers antigos
	subSeq        uint64 // muda a cada tentativa de assinatura; invalida handlers de assinaturas anteriores
	sub           realtime.Subscription
	attempts      int
	retry         backoff.BackOff
	timer         *time.Timer
	resyncPending bool
	closed        bool
	pending       []stateChange
}

type stateChange struct {
	state State
	err   error
}

// NewSync cria um Sync parado (StateIdle).
func NewSync[T Keyed](cfg SyncConfig[T]) (*Sync[T], error) {
	if cfg.Table == "" || cfg.Feed == nil || cfg.Fetch == nil {
		return nil, fmt.Errorf("%w: Sync requer Table, Feed e Fetch", appErrors.ErrConfiguration)
	}
	if cfg.TenantColumn == "" {
		cfg.TenantColumn = DefaultTenantColumn
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = DefaultMaxDelay
		if cfg.MaxDelay < cfg.BaseDelay {
			cfg.MaxDelay = cfg.BaseDelay
		}
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Sync[T]{
		cfg:   cfg,
		store: NewStore[T](cfg.Position),
		state: StateIdle,
		log:   appLogger.WithFields(logrus.Fields{"component": "listview.sync", "table": cfg.Table}),
	}, nil
}

// Store devolve o cache local mantido pelo Sync.
func (s *Sync[T]) Store() *Store[T] { return s.store }

// Items devolve uma cópia dos registros atuais.
func (s *Sync[T]) Items() []T { return s.store.Snapshot() }

func (s *Sync[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err devolve o erro associado ao estado atual (nil em StateLive).
func (s *Sync[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Attempts devolve o número de tentativas de reassinatura desde o último SUBSCRIBED.
func (s *Sync[T]) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Sync[T]) Tenant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenant
}

// Start (re)inicia o Sync para o tenant: encerra a assinatura anterior, limpa o
// cache, faz a carga inicial (limitada por FetchTimeout) e então assina o feed.
// Se a carga falhar, o estado vira StateLoadFailed e Reload pode ser usado.
func (s *Sync[T]) Start(ctx context.Context, tenant string) error {
	if tenant == "" {
		return fmt.Errorf("%w: tenant obrigatório", appErrors.ErrInvalidInput)
	}
	s.applyMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.applyMu.Unlock()
		return ErrSyncClosed
	}
	old := s.teardownLocked()
	s.tenant = tenant
	epoch := s.epoch
	s.setStateLocked(StateLoading, nil)
	pending := s.drainLocked()
	s.mu.Unlock()
	s.store.Replace(nil)
	s.applyMu.Unlock()
	s.notify(pending)

	if old != nil {
		old.Unsubscribe()
	}

	if err := s.load(ctx, epoch); err != nil {
		return err
	}
	s.subscribe(epoch)
	return nil
}

// Reload recarrega o snapshot. Após uma carga inicial falha, também abre a assinatura.
func (s *Sync[T]) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSyncClosed
	}
	if s.tenant == "" {
		s.mu.Unlock()
		return ErrNotStarted
	}
	epoch := s.epoch
	needSub := s.state == StateLoadFailed
	if needSub {
		s.setStateLocked(StateLoading, nil)
	}
	s.unlock()

	if err := s.load(ctx, epoch); err != nil {
		return err
	}
	if needSub {
		s.subscribe(epoch)
	}
	return nil
}

// Reconnect é a reconexão manual: zera as tentativas e reassina imediatamente.
func (s *Sync[T]) Reconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSyncClosed
	}
	if s.tenant == "" {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopTimerLocked()
	old := s.sub
	s.sub = nil
	s.subSeq++
	s.attempts = 0
	s.retry = nil
	s.resyncPending = true
	epoch := s.epoch
	s.setStateLocked(StateReconnecting, nil)
	s.unlock()

	if old != nil {
		old.Unsubscribe()
	}
	s.subscribe(epoch)
	return nil
}

// Stop encerra a assinatura, cancela reconexões pendentes e limpa o cache.
func (s *Sync[T]) Stop() {
	s.applyMu.Lock()
	s.mu.Lock()
	old := s.teardownLocked()
	s.tenant = ""
	if s.state != StateStopped {
		s.setStateLocked(StateStopped, nil)
	}
	pending := s.drainLocked()
	s.mu.Unlock()
	s.store.Replace(nil)
	s.applyMu.Unlock()
	s.notify(pending)

	if old != nil {
		old.Unsubscribe()
	}
}

// Close é Stop definitivo; chamadas posteriores a Start falham. É idempotente.
func (s *Sync[T]) Close() {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// --- internos ---

// teardownLocked invalida a época atual e devolve a assinatura a encerrar (fora do lock).
func (s *Sync[T]) teardownLocked() realtime.Subscription {
	s.epoch++
	s.subSeq++
	s.stopTimerLocked()
	s.attempts = 0
	s.retry = nil
	s.resyncPending = false
	old := s.sub
	s.sub = nil
	return old
}

func (s *Sync[T]) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sync[T]) setStateLocked(state State, err error) {
	s.state = state
	s.err = err
	if s.cfg.OnStateChange != nil {
		s.pending = append(s.pending, stateChange{state: state, err: err})
	}
}

func (s *Sync[T]) drainLocked() []stateChange {
	pending := s.pending
	s.pending = nil
	return pending
}

func (s *Sync[T]) notify(pending []stateChange) {
	for _, c := range pending {
		s.cfg.OnStateChange(c.state, c.err)
	}
}

// unlock libera o lock e entrega as transições de estado acumuladas.
func (s *Sync[T]) unlock() {
	pending := s.drainLocked()
	s.mu.Unlock()
	s.notify(pending)
}

func (s *Sync[T]) load(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	tenant := s.tenant
	s.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	items, err := s.cfg.Fetch(fctx, tenant)

	s.mu.Lock()
	if epoch != s.epoch || s.closed {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: carga de %s: %v", appErrors.ErrResourceLoading, s.cfg.Table, err)
		// Fora da carga inicial o feed continua valendo; só a recarga falhou.
		if s.state == StateLoading {
			s.setStateLocked(StateLoadFailed, wrapped)
		}
		s.unlock()
		s.log.WithField("tenant", tenant).Errorf("Falha na carga: %v", err)
		return wrapped
	}
	s.store.Replace(items)
	s.unlock()
	s.log.WithField("tenant", tenant).Debugf("Snapshot carregado: %d registros", len(items))
	return nil
}

func (s *Sync[T]) subscribe(epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.subSeq++
	seq := s.subSeq
	tenant := s.tenant
	s.mu.Unlock()

	sub, err := s.cfg.Feed.Subscribe(s.cfg.Table, realtime.Eq(s.cfg.TenantColumn, tenant),
		func(ev realtime.ChangeEvent) { s.handleEvent(epoch, seq, ev) },
		func(st realtime.Status, stErr error) { s.handleStatus(epoch, seq, st, stErr) },
	)

	s.mu.Lock()
	if s.isStaleLocked(epoch, seq) {
		s.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.scheduleRetry(epoch, seq, err)
		return
	}
	s.sub = sub
	s.mu.Unlock()
}

func (s *Sync[T]) isStaleLocked(epoch, seq uint64) bool {
	return s.closed || epoch != s.epoch || seq != s.subSeq
}

func (s *Sync[T]) handleEvent(epoch, seq uint64, ev realtime.ChangeEvent) {
	s.applyMu.Lock()
	s.mu.Lock()
	stale := s.isStaleLocked(epoch, seq)
	s.mu.Unlock()
	if stale {
		s.applyMu.Unlock()
		return
	}

	if ev.Truncated {
		s.applyMu.Unlock()
		s.resync(epoch)
		return
	}
	err := ApplyEvent(s.store, ev, s.cfg.Validate)
	s.applyMu.Unlock()
	if err != nil {
		s.log.WithFields(logrus.Fields{"type": ev.Type}).Warnf("Evento descartado: %v", err)
	}
}

func (s *Sync[T]) handleStatus(epoch, seq uint64, st realtime.Status, err error) {
	s.mu.Lock()
	if s.isStaleLocked(epoch, seq) {
		s.mu.Unlock()
		return
	}
	switch {
	case st == realtime.StatusSubscribed:
		s.attempts = 0
		s.retry = nil
		resync := s.resyncPending && !s.cfg.NoResyncOnReconnect
		s.resyncPending = false
		s.setStateLocked(StateLive, nil)
		s.unlock()
		s.log.Debug("Assinatura ativa")
		// Recarrega o que pode ter sido perdido enquanto a assinatura esteve fora.
		// Roda na goroutine de entrega, então eventos novos esperam na fila.
		if resync {
			s.resync(epoch)
		}
	case st.IsDrop():
		s.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("%w: assinatura encerrada (%s)", appErrors.ErrSubscription, st)
		}
		s.scheduleRetry(epoch, seq, err)
	default:
		s.mu.Unlock()
	}
}

func (s *Sync[T]) resync(epoch uint64) {
	if err := s.load(context.Background(), epoch); err != nil && !errors.Is(err, ErrSuperseded) {
		s.log.Warnf("Recarga após reconexão falhou: %v", err)
	}
}

// scheduleRetry desfaz a assinatura caída e agenda a próxima tentativa.
func (s *Sync[T]) scheduleRetry(epoch, seq uint64, cause error) {
	s.mu.Lock()
	if s.isStaleLocked(epoch, seq) {
		s.mu.Unlock()
		return
	}
	old := s.sub
	s.sub = nil
	s.subSeq++

	if s.retry == nil {
		s.retry = s.newBackOff()
	}
	delay := s.retry.NextBackOff()
	if delay == backoff.Stop {
		failure := fmt.Errorf("%w: %d tentativas de reconexão esgotadas: %v", appErrors.ErrSubscription, s.attempts, cause)
		s.setStateLocked(StateFailed, failure)
		s.unlock()
		if old != nil {
			old.Unsubscribe()
		}
		s.log.Errorf("Assinatura em falha persistente: %v", failure)
		return
	}

	s.attempts++
	s.resyncPending = true
	s.setStateLocked(StateReconnecting, cause)
	s.timer = time.AfterFunc(delay, func() { s.subscribe(epoch) })
	attempt := s.attempts
	s.unlock()

	if old != nil {
		old.Unsubscribe()
	}
	s.log.Warnf("Assinatura caiu (%v); tentativa %d/%d em %s", cause, attempt, s.cfg.MaxRetries, delay)
}

func (s *Sync[T]) newBackOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.BaseDelay
	expo.MaxInterval = s.cfg.MaxDelay
	expo.MaxElapsedTime = 0
	expo.Reset()
	return backoff.WithMaxRetries(expo, uint64(s.cfg.MaxRetries))
}

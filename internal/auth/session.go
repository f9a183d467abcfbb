package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

// sessionTokenBytes é a entropia do token de sessão (bearer).
const sessionTokenBytes = 32

// SessionData são os dados de identificação informados na criação da sessão.
type SessionData struct {
	UserID    uuid.UUID
	EmpresaID uuid.UUID
	Email     string
	Nome      string
	IPAddress string
	UserAgent string
}

// Session é uma sessão de usuário autenticado. Cada sessão mantém uma
// referência ao workspace da empresa e recursos próprios (streams), liberados
// pelos closers quando a sessão termina.
type Session struct {
	Token string
	SessionData
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	expiresAt    time.Time
	workspace    *workspace.Workspace
	closers      []closer
	nextCloser   uint64
	closed       bool
}

type closer struct {
	id uint64
	fn func()
}

// Workspace devolve as listas vivas da empresa da sessão (nil sem gerenciador).
func (s *Session) Workspace() *workspace.Workspace { return s.workspace }

// ExpiresAt devolve o instante de expiração por inatividade.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// OnClose registra fn para rodar quando a sessão terminar. Com a sessão já
// encerrada, fn roda imediatamente. A função devolvida remove o registro
// (streams que terminam antes da sessão).
func (s *Session) OnClose(fn func()) (remove func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return func() {}
	}
	s.nextCloser++
	id := s.nextCloser
	s.closers = append(s.closers, closer{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.closers {
			if c.id == id {
				s.closers = append(s.closers[:i], s.closers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) closerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.closers)
}

// Closed informa se a sessão já foi encerrada.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

func (s *Session) touch(now time.Time, timeout time.Duration) {
	s.mu.Lock()
	s.lastActivity = now
	s.expiresAt = now.Add(timeout)
	s.mu.Unlock()
}

// close roda os closers em ordem inversa, uma única vez.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].fn()
	}
}

// WorkspaceProvider abre e libera os workspaces por empresa (workspace.Manager).
type WorkspaceProvider interface {
	Acquire(ctx context.Context, empresaID uuid.UUID) (*workspace.Workspace, error)
	Release(empresaID uuid.UUID)
}

// SessionManager gerencia as sessões ativas em memória.
type SessionManager struct {
	timeout         time.Duration
	cleanupInterval time.Duration
	cleanupEnabled  bool
	spaces          WorkspaceProvider

	sessions     map[string]*Session
	lock         sync.RWMutex
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	now          func() time.Time
}

// NewSessionManager cria o gerenciador. spaces pode ser nil (sem listas vivas).
func NewSessionManager(cfg *appErrors.Config, spaces WorkspaceProvider) *SessionManager {
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	interval := cfg.SessionCleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionManager{
		timeout:         timeout,
		cleanupInterval: interval,
		cleanupEnabled:  cfg.SessionCleanupEnabled,
		spaces:          spaces,
		sessions:        make(map[string]*Session),
		shutdownChan:    make(chan struct{}),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func shortID(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

// StartCleanupGoroutine inicia a limpeza periódica de sessões expiradas.
func (sm *SessionManager) StartCleanupGoroutine() {
	if !sm.cleanupEnabled {
		appLogger.Info("Limpeza de sessão em background desabilitada.")
		return
	}

	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		ticker := time.NewTicker(sm.cleanupInterval)
		defer ticker.Stop()

		appLogger.Infof("Goroutine de limpeza de sessões iniciada (intervalo: %v).", sm.cleanupInterval)
		for {
			select {
			case <-ticker.C:
				sm.cleanupExpiredSessions()
			case <-sm.shutdownChan:
				appLogger.Info("Goroutine de limpeza de sessões recebendo sinal de shutdown.")
				return
			}
		}
	}()
}

// Shutdown para a limpeza e encerra todas as sessões.
func (sm *SessionManager) Shutdown() {
	appLogger.Info("Iniciando shutdown do SessionManager...")
	sm.shutdownOnce.Do(func() { close(sm.shutdownChan) })
	sm.wg.Wait()

	sm.lock.Lock()
	all := make([]*Session, 0, len(sm.sessions))
	for token, s := range sm.sessions {
		all = append(all, s)
		delete(sm.sessions, token)
	}
	sm.lock.Unlock()

	for _, s := range all {
		s.close()
	}
	appLogger.Infof("SessionManager shutdown concluído (%d sessões encerradas).", len(all))
}

// CreateSession cria a sessão e adquire o workspace da empresa.
func (sm *SessionManager) CreateSession(ctx context.Context, data SessionData) (*Session, error) {
	if data.UserID == uuid.Nil || data.EmpresaID == uuid.Nil {
		return nil, fmt.Errorf("%w: sessão requer usuário e empresa", appErrors.ErrInvalidInput)
	}
	now := sm.now()
	s := &Session{
		Token:        utils.GenerateSecureRandomToken(sessionTokenBytes),
		SessionData:  data,
		CreatedAt:    now,
		lastActivity: now,
		expiresAt:    now.Add(sm.timeout),
	}

	if sm.spaces != nil {
		ws, err := sm.spaces.Acquire(ctx, data.EmpresaID)
		if err != nil {
			return nil, appErrors.WrapErrorf(err, "falha ao abrir workspace da empresa %s", data.EmpresaID)
		}
		s.workspace = ws
		empresaID := data.EmpresaID
		s.OnClose(func() { sm.spaces.Release(empresaID) })
	}

	sm.lock.Lock()
	sm.sessions[s.Token] = s
	sm.lock.Unlock()

	appLogger.Infof("Sessão criada: ID=%s..., UserID=%s, Email=%s, Empresa=%s",
		shortID(s.Token), data.UserID, data.Email, data.EmpresaID)
	return s, nil
}

// GetSession devolve a sessão do token, renovando a expiração por inatividade.
// Sessão expirada é encerrada e devolve ErrSessionExpired.
func (sm *SessionManager) GetSession(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token vazio", appErrors.ErrInvalidSession)
	}
	sm.lock.RLock()
	s, exists := sm.sessions[token]
	sm.lock.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: sessão %s... não encontrada", appErrors.ErrInvalidSession, shortID(token))
	}

	now := sm.now()
	if s.expired(now) {
		appLogger.Infof("Sessão %s... (Usuário: %s) expirada durante GetSession. Removendo.", shortID(token), s.Email)
		sm.remove(token)
		return nil, fmt.Errorf("%w: sessão expirada", appErrors.ErrSessionExpired)
	}
	s.touch(now, sm.timeout)
	return s, nil
}

// DeleteSession encerra a sessão. Token inexistente não é erro.
func (sm *SessionManager) DeleteSession(token string) error {
	if token == "" {
		appLogger.Warn("Tentativa de deletar sessão com ID vazio.")
		return nil
	}
	if !sm.remove(token) {
		appLogger.Debugf("Tentativa de deletar sessão %s... que não existe ou já foi removida.", shortID(token))
	}
	return nil
}

// DeleteAllUserSessions encerra todas as sessões de um usuário.
func (sm *SessionManager) DeleteAllUserSessions(userID uuid.UUID) int {
	sm.lock.Lock()
	var victims []*Session
	for token, s := range sm.sessions {
		if s.UserID == userID {
			victims = append(victims, s)
			delete(sm.sessions, token)
		}
	}
	sm.lock.Unlock()

	for _, s := range victims {
		s.close()
	}
	if len(victims) > 0 {
		appLogger.Infof("%d sessões removidas para userID: %s", len(victims), userID)
	}
	return len(victims)
}

// Count devolve o número de sessões ativas.
func (sm *SessionManager) Count() int {
	sm.lock.RLock()
	defer sm.lock.RUnlock()
	return len(sm.sessions)
}

func (sm *SessionManager) remove(token string) bool {
	sm.lock.Lock()
	s, ok := sm.sessions[token]
	if ok {
		delete(sm.sessions, token)
	}
	sm.lock.Unlock()
	if !ok {
		return false
	}
	s.close()
	appLogger.Infof("Sessão %s... (Usuário: %s) removida.", shortID(token), s.Email)
	return true
}

// cleanupExpiredSessions é chamado pela goroutine de limpeza.
func (sm *SessionManager) cleanupExpiredSessions() {
	now := sm.now()
	sm.lock.Lock()
	var expired []*Session
	for token, s := range sm.sessions {
		if s.expired(now) {
			expired = append(expired, s)
			delete(sm.sessions, token)
		}
	}
	sm.lock.Unlock()

	for _, s := range expired {
		s.close()
		appLogger.Infof("Limpeza: Sessão %s... (Usuário: %s) expirada e removida.", shortID(s.Token), s.Email)
	}
	if len(expired) > 0 {
		appLogger.Infof("Limpeza de sessões removeu %d sessões expiradas.", len(expired))
	} else {
		appLogger.Debug("Limpeza de sessões: Nenhuma sessão expirada encontrada.")
	}
}

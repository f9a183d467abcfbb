package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/datatest"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

// fakeSpaces conta aquisições e liberações por empresa.
type fakeSpaces struct {
	mu    sync.Mutex
	refs  map[uuid.UUID]int
	fail  error
	calls int
}

func (f *fakeSpaces) Acquire(_ context.Context, empresaID uuid.UUID) (*workspace.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	if f.refs == nil {
		f.refs = map[uuid.UUID]int{}
	}
	f.refs[empresaID]++
	return &workspace.Workspace{EmpresaID: empresaID}, nil
}

func (f *fakeSpaces) Release(empresaID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[empresaID]--
}

func (f *fakeSpaces) count(empresaID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[empresaID]
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) LogAction(_ context.Context, entry models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, entry.Action)
	return nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newManager(spaces WorkspaceProvider, timeout time.Duration) (*SessionManager, *clock) {
	sm := NewSessionManager(&appErrors.Config{SessionTimeout: timeout}, spaces)
	c := &clock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	sm.now = c.Now
	return sm, c
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Segura#2026")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("Segura#2026", hash))
	assert.False(t, VerifyPassword("segura#2026", hash))
	assert.False(t, VerifyPassword("", hash))

	_, err = HashPassword("")
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

func TestSessionLifecycleAndSlidingExpiration(t *testing.T) {
	spaces := &fakeSpaces{}
	sm, c := newManager(spaces, 30*time.Minute)
	empresa := uuid.New()

	s, err := sm.CreateSession(context.Background(), SessionData{UserID: uuid.New(), EmpresaID: empresa, Email: "ana@gabinete.org"})
	require.NoError(t, err)
	require.NotNil(t, s.Workspace())
	assert.Equal(t, 1, spaces.count(empresa))
	assert.Equal(t, 1, sm.Count())

	var closed []string
	s.OnClose(func() { closed = append(closed, "stream") })

	// Atividade renova a expiração.
	c.now = c.now.Add(20 * time.Minute)
	_, err = sm.GetSession(s.Token)
	require.NoError(t, err)
	assert.Equal(t, c.now.Add(30*time.Minute), s.ExpiresAt())

	c.now = c.now.Add(31 * time.Minute)
	_, err = sm.GetSession(s.Token)
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
	assert.True(t, s.Closed())
	assert.Equal(t, []string{"stream"}, closed)
	assert.Equal(t, 0, spaces.count(empresa), "workspace liberado ao expirar")
	assert.Equal(t, 0, sm.Count())

	_, err = sm.GetSession(s.Token)
	assert.ErrorIs(t, err, appErrors.ErrInvalidSession)

	// Closer registrado depois do encerramento roda na hora.
	ran := false
	s.OnClose(func() { ran = true })
	assert.True(t, ran)
}

func TestOnCloseRemoval(t *testing.T) {
	sm, _ := newManager(&fakeSpaces{}, time.Hour)
	s, err := sm.CreateSession(context.Background(), SessionData{UserID: uuid.New(), EmpresaID: uuid.New()})
	require.NoError(t, err)
	base := s.closerCount()

	// Streams que abrem e fecham várias vezes não acumulam closers.
	calls := 0
	for i := 0; i < 5; i++ {
		remove := s.OnClose(func() { calls++ })
		assert.Equal(t, base+1, s.closerCount())
		remove()
		remove()
		assert.Equal(t, base, s.closerCount())
	}

	var ordem []string
	s.OnClose(func() { ordem = append(ordem, "primeiro") })
	remove := s.OnClose(func() { ordem = append(ordem, "removido") })
	s.OnClose(func() { ordem = append(ordem, "ultimo") })
	remove()

	require.NoError(t, sm.DeleteSession(s.Token))
	assert.Zero(t, calls)
	assert.Equal(t, []string{"ultimo", "primeiro"}, ordem)
	assert.Zero(t, s.closerCount())
}

func TestCreateSessionValidation(t *testing.T) {
	spaces := &fakeSpaces{}
	sm, _ := newManager(spaces, time.Hour)

	_, err := sm.CreateSession(context.Background(), SessionData{UserID: uuid.New()})
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	assert.Zero(t, spaces.calls)

	spaces.fail = appErrors.ErrSubscription
	_, err = sm.CreateSession(context.Background(), SessionData{UserID: uuid.New(), EmpresaID: uuid.New()})
	assert.ErrorIs(t, err, appErrors.ErrSubscription)
	assert.Equal(t, 0, sm.Count())
}

func TestCleanupAndShutdownCloseSessions(t *testing.T) {
	spaces := &fakeSpaces{}
	sm, c := newManager(spaces, time.Minute)
	empresa := uuid.New()
	user := uuid.New()
	ctx := context.Background()

	old, err := sm.CreateSession(ctx, SessionData{UserID: user, EmpresaID: empresa})
	require.NoError(t, err)
	c.now = c.now.Add(50 * time.Second)
	fresh, err := sm.CreateSession(ctx, SessionData{UserID: user, EmpresaID: empresa})
	require.NoError(t, err)

	c.now = c.now.Add(20 * time.Second)
	sm.cleanupExpiredSessions()
	assert.True(t, old.Closed())
	assert.False(t, fresh.Closed())
	assert.Equal(t, 1, spaces.count(empresa))

	_, err = sm.CreateSession(ctx, SessionData{UserID: uuid.New(), EmpresaID: empresa})
	require.NoError(t, err)
	assert.Equal(t, 1, sm.DeleteAllUserSessions(user))
	assert.True(t, fresh.Closed())

	sm.Shutdown()
	assert.Equal(t, 0, sm.Count())
	assert.Equal(t, 0, spaces.count(empresa))
}

type authEnv struct {
	usuarios repositories.UsuarioRepository
	sessions *SessionManager
	spaces   *fakeSpaces
	audit    *recordingAudit
	auth     Authenticator
	user     *models.Usuario
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	db := datatest.NewDB(t)
	empresa := datatest.NewEmpresa(t, db, "Gabinete Teste")
	e := &authEnv{
		usuarios: repositories.NewGormUsuarioRepository(db),
		spaces:   &fakeSpaces{},
		audit:    &recordingAudit{},
	}
	e.sessions, _ = newManager(e.spaces, time.Hour)
	e.auth = NewAuthenticator(e.usuarios, e.sessions, e.audit)

	hash, err := HashPassword("Segura#2026")
	require.NoError(t, err)
	e.user = &models.Usuario{
		TenantModel: models.TenantModel{EmpresaID: empresa},
		Nome:        "Ana Souza",
		Email:       "ana@gabinete.org",
		SenhaHash:   hash,
		Ativo:       true,
	}
	require.NoError(t, e.usuarios.Create(context.Background(), e.user))
	return e
}

func TestLoginAndLogout(t *testing.T) {
	e := newAuthEnv(t)
	ctx := context.Background()

	res, err := e.auth.Login(ctx, "  ANA@gabinete.org ", "Segura#2026", "10.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, res.Usuario.ID)
	require.NotNil(t, res.Usuario.UltimoLoginEm)
	assert.Equal(t, e.user.EmpresaID, res.Session.EmpresaID)
	assert.Equal(t, 1, e.spaces.count(e.user.EmpresaID))

	stored, err := e.usuarios.GetByID(ctx, e.user.EmpresaID, e.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.UltimoLoginEm)

	require.NoError(t, e.auth.Logout(ctx, res.Session.Token))
	assert.True(t, res.Session.Closed())
	assert.Equal(t, 0, e.spaces.count(e.user.EmpresaID))
	assert.NoError(t, e.auth.Logout(ctx, res.Session.Token), "logout repetido é ignorado")

	assert.Equal(t, []string{"LOGIN_SUCCESS", "LOGOUT"}, e.audit.actions)
}

func TestLoginFailures(t *testing.T) {
	e := newAuthEnv(t)
	ctx := context.Background()

	_, err := e.auth.Login(ctx, "", "", "", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.auth.Login(ctx, "ninguem@gabinete.org", "Segura#2026", "", "")
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = e.auth.Login(ctx, "ana@gabinete.org", "errada", "", "")
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	inativo := false
	require.NoError(t, e.usuarios.Update(ctx, e.user, map[string]interface{}{"ativo": inativo}))
	_, err = e.auth.Login(ctx, "ana@gabinete.org", "Segura#2026", "", "")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	assert.Equal(t, 0, e.sessions.Count())
	assert.Equal(t, []string{"LOGIN_FAILED_PASSWORD", "LOGIN_FAILED_INACTIVE"}, e.audit.actions)
}

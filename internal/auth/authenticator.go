package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
)

// AuditLogger registra ações de autenticação (services.AuditLogService).
type AuditLogger interface {
	LogAction(ctx context.Context, entry models.AuditLogEntry) error
}

// AuthResult encapsula o resultado de um login bem-sucedido.
type AuthResult struct {
	Session *Session
	Usuario *models.Usuario
}

// Authenticator define as operações de autenticação.
type Authenticator interface {
	// Login verifica e-mail e senha e abre a sessão. Credenciais erradas ou
	// conta inexistente devolvem ErrInvalidCredentials; conta inativa devolve ErrUnauthorized.
	Login(ctx context.Context, email, senha, ipAddress, userAgent string) (*AuthResult, error)
	// Logout encerra a sessão do token.
	Logout(ctx context.Context, token string) error
}

type authenticatorImpl struct {
	usuarios repositories.UsuarioRepository
	sessions *SessionManager
	audit    AuditLogger
}

// NewAuthenticator cria o autenticador. audit pode ser nil.
func NewAuthenticator(usuarios repositories.UsuarioRepository, sessions *SessionManager, audit AuditLogger) Authenticator {
	if usuarios == nil || sessions == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewAuthenticator")
	}
	return &authenticatorImpl{usuarios: usuarios, sessions: sessions, audit: audit}
}

// HashPassword gera um hash bcrypt de uma senha.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: senha não pode estar vazia", appErrors.ErrInvalidInput)
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		appLogger.Errorf("Erro ao gerar hash da senha: %v", err)
		return "", fmt.Errorf("%w: falha ao processar senha", appErrors.ErrInternal)
	}
	return string(hashedBytes), nil
}

// VerifyPassword compara uma senha em texto plano com um hash bcrypt.
func VerifyPassword(plainPassword, hashedPassword string) bool {
	if plainPassword == "" || hashedPassword == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		appLogger.Warnf("Erro inesperado durante VerifyPassword: %v", err)
	}
	return err == nil
}

func (a *authenticatorImpl) logAudit(ctx context.Context, entry models.AuditLogEntry) {
	if a.audit == nil {
		return
	}
	if err := a.audit.LogAction(ctx, entry); err != nil {
		appLogger.Warnf("Falha ao registrar log de auditoria (%s): %v", entry.Action, err)
	}
}

func (a *authenticatorImpl) Login(ctx context.Context, email, senha, ipAddress, userAgent string) (*AuthResult, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	logCtx := appLogger.WithFields(logrus.Fields{
		"email":     normalized,
		"ipAddress": ipAddress,
		"userAgent": userAgent,
	})
	logCtx.Info("Iniciando autenticação")

	if normalized == "" || senha == "" {
		return nil, appErrors.NewValidationError("E-mail e senha são obrigatórios.", map[string]string{"email": "obrigatório", "senha": "obrigatório"})
	}

	// 1. Buscar usuário
	user, err := a.usuarios.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			logCtx.Warn("Usuário não encontrado no banco de dados.")
			return nil, appErrors.ErrInvalidCredentials
		}
		logCtx.Errorf("Erro ao buscar usuário: %v", err)
		return nil, err
	}
	logCtx = logCtx.WithField("userID", user.ID.String())
	ip := ipAddress
	base := models.AuditLogEntry{
		EmpresaID: user.EmpresaID,
		UserEmail: user.Email,
		UserID:    &user.ID,
		IPAddress: &ip,
	}

	// 2. Conta ativa
	if !user.Ativo {
		logCtx.Warn("Tentativa de login em conta inativa.")
		entry := base
		entry.Action, entry.Severity = "LOGIN_FAILED_INACTIVE", "WARNING"
		entry.Description = fmt.Sprintf("Tentativa de login para conta inativa: %s", user.Email)
		a.logAudit(ctx, entry)
		return nil, fmt.Errorf("%w: conta de usuário desativada", appErrors.ErrUnauthorized)
	}

	// 3. Senha
	if !VerifyPassword(senha, user.SenhaHash) {
		logCtx.Warn("Senha inválida.")
		entry := base
		entry.Action, entry.Severity = "LOGIN_FAILED_PASSWORD", "WARNING"
		entry.Description = fmt.Sprintf("Senha inválida para %s.", user.Email)
		a.logAudit(ctx, entry)
		return nil, appErrors.ErrInvalidCredentials
	}

	// 4. Sessão
	session, err := a.sessions.CreateSession(ctx, SessionData{
		UserID:    user.ID,
		EmpresaID: user.EmpresaID,
		Email:     user.Email,
		Nome:      user.Nome,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	if err != nil {
		logCtx.Errorf("Erro CRÍTICO ao criar sessão: %v", err)
		entry := base
		entry.Action, entry.Severity = "LOGIN_FAILED_SESSION_CREATE", "CRITICAL"
		entry.Description = fmt.Sprintf("Falha ao criar sessão para %s após senha correta.", user.Email)
		entry.Metadata = models.JSONMetadata{"error": err.Error()}
		a.logAudit(ctx, entry)
		return nil, err
	}

	if err := a.usuarios.TouchLastLogin(ctx, user.ID, session.CreatedAt); err != nil {
		logCtx.Errorf("Erro (não fatal) ao atualizar último login: %v", err)
	} else {
		at := session.CreatedAt
		user.UltimoLoginEm = &at
	}

	logCtx.Info("Login bem-sucedido.")
	entry := base
	entry.Action, entry.Severity = "LOGIN_SUCCESS", "INFO"
	entry.Description = fmt.Sprintf("Usuário %s logado com sucesso.", user.Email)
	entry.Metadata = models.JSONMetadata{"session_id_prefix": shortID(session.Token)}
	a.logAudit(ctx, entry)

	return &AuthResult{Session: session, Usuario: user}, nil
}

func (a *authenticatorImpl) Logout(ctx context.Context, token string) error {
	session, err := a.sessions.GetSession(token)
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidSession) || errors.Is(err, appErrors.ErrSessionExpired) {
			appLogger.Warnf("Logout para sessão inexistente/expirada: %s...", shortID(token))
			return nil
		}
		return err
	}
	if err := a.sessions.DeleteSession(token); err != nil {
		return err
	}

	userID := session.UserID
	a.logAudit(ctx, models.AuditLogEntry{
		EmpresaID:   session.EmpresaID,
		Action:      "LOGOUT",
		Severity:    "INFO",
		Description: fmt.Sprintf("Logout da sessão %s (usuário %s).", shortID(token), session.Email),
		UserEmail:   session.Email,
		UserID:      &userID,
	})
	return nil
}

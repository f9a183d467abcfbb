package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/storage"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

// MinPasswordLength é o comprimento mínimo de senha aceito.
const MinPasswordLength = 8

// NovoUsuario são os dados de cadastro de um usuário.
type NovoUsuario struct {
	Nome     string
	Email    string
	Senha    string
	Cargo    string
	Telefone string
}

// UsuarioService define as operações sobre o perfil e o cadastro de usuários.
type UsuarioService interface {
	GetProfile(ctx context.Context, actor Actor) (*models.Usuario, error)
	UpdateProfile(ctx context.Context, actor Actor, upd models.PerfilUpdate) (*models.Usuario, error)
	UploadAvatar(ctx context.Context, actor Actor, filename string, content io.Reader) (*models.Usuario, error)
	ChangePassword(ctx context.Context, actor Actor, atual, nova string) error
	// Create cadastra um usuário na empresa do actor.
	Create(ctx context.Context, actor Actor, novo NovoUsuario) (*models.Usuario, error)
	// Bootstrap cria uma empresa e seu primeiro usuário (linha de comando).
	Bootstrap(ctx context.Context, empresaNome string, novo NovoUsuario) (*models.Empresa, *models.Usuario, error)
}

type usuarioServiceImpl struct {
	repo  repositories.UsuarioRepository
	files FileStorage
	audit AuditLogService
}

// NewUsuarioService cria o serviço. files é opcional (sem avatar).
func NewUsuarioService(repo repositories.UsuarioRepository, files FileStorage, audit AuditLogService) UsuarioService {
	if repo == nil || audit == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewUsuarioService")
	}
	return &usuarioServiceImpl{repo: repo, files: files, audit: audit}
}

func (s *usuarioServiceImpl) GetProfile(ctx context.Context, actor Actor) (*models.Usuario, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, actor.EmpresaID, actor.UserID)
}

func (s *usuarioServiceImpl) UpdateProfile(ctx context.Context, actor Actor, upd models.PerfilUpdate) (*models.Usuario, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, actor.EmpresaID, actor.UserID)
	if err != nil {
		return nil, err
	}
	changes := upd.ApplyTo(user)
	if len(changes) == 0 {
		return user, nil
	}
	if _, ok := changes["nome"]; ok {
		user.Nome = utils.SanitizeInput(user.Nome)
		changes["nome"] = user.Nome
	}
	if _, ok := changes["telefone"]; ok {
		user.Telefone = utils.OnlyDigits(user.Telefone)
		changes["telefone"] = user.Telefone
	}
	if err := models.Validate(user); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, user, changes); err != nil {
		return nil, err
	}
	logAudit(ctx, s.audit, actor.entry("PERFIL_UPDATE", "INFO",
		fmt.Sprintf("Perfil de %s atualizado.", user.Email), nil))
	return user, nil
}

func (s *usuarioServiceImpl) UploadAvatar(ctx context.Context, actor Actor, filename string, content io.Reader) (*models.Usuario, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, fmt.Errorf("%w: armazenamento de arquivos não configurado", appErrors.ErrConfiguration)
	}
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return nil, appErrors.NewValidationError("Imagem inválida.", map[string]string{"avatar": "use PNG, JPG ou WEBP"})
	}
	objectPath := path.Join(actor.EmpresaID.String(), actor.UserID.String()+ext)
	if _, err := s.files.Upload(ctx, storage.BucketAvatars, objectPath, content); err != nil {
		return nil, err
	}
	url, err := s.files.PublicURL(storage.BucketAvatars, objectPath)
	if err != nil {
		return nil, err
	}
	return s.UpdateProfile(ctx, actor, models.PerfilUpdate{AvatarURL: &url})
}

func checkPassword(senha string) error {
	res := utils.ValidatePasswordStrength(senha, MinPasswordLength)
	if !res.IsValid {
		return appErrors.NewValidationError("Senha fraca.", map[string]string{
			"senha": "requer " + strings.Join(res.GetErrorDetailsList(), ", "),
		})
	}
	return nil
}

func (s *usuarioServiceImpl) ChangePassword(ctx context.Context, actor Actor, atual, nova string) error {
	if err := actor.check(); err != nil {
		return err
	}
	user, err := s.repo.GetByID(ctx, actor.EmpresaID, actor.UserID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(atual, user.SenhaHash) {
		logAudit(ctx, s.audit, actor.entry("SENHA_ALTERACAO_FALHA", "WARNING",
			fmt.Sprintf("Senha atual incorreta na troca de senha de %s.", user.Email), nil))
		return appErrors.ErrInvalidCredentials
	}
	if err := checkPassword(nova); err != nil {
		return err
	}
	hash, err := auth.HashPassword(nova)
	if err != nil {
		return err
	}
	user.SenhaHash = hash
	if err := s.repo.Update(ctx, user, map[string]interface{}{"senha_hash": hash}); err != nil {
		return err
	}
	logAudit(ctx, s.audit, actor.entry("SENHA_ALTERACAO", "INFO",
		fmt.Sprintf("Senha de %s alterada.", user.Email), nil))
	return nil
}

func (s *usuarioServiceImpl) newUsuario(empresaID uuid.UUID, novo NovoUsuario) (*models.Usuario, error) {
	if err := utils.ValidateEmail(novo.Email); err != nil {
		return nil, err
	}
	if err := checkPassword(novo.Senha); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(novo.Senha)
	if err != nil {
		return nil, err
	}
	u := &models.Usuario{
		TenantModel: models.TenantModel{EmpresaID: empresaID},
		Nome:        utils.SanitizeInput(novo.Nome),
		Email:       strings.ToLower(strings.TrimSpace(novo.Email)),
		SenhaHash:   hash,
		Cargo:       utils.SanitizeInput(novo.Cargo),
		Telefone:    utils.OnlyDigits(novo.Telefone),
		Ativo:       true,
	}
	if err := models.Validate(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *usuarioServiceImpl) Create(ctx context.Context, actor Actor, novo NovoUsuario) (*models.Usuario, error) {
	if err := actor.check(); err != nil {
		return nil, err
	}
	u, err := s.newUsuario(actor.EmpresaID, novo)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	logAudit(ctx, s.audit, actor.entry("USUARIO_CREATE", "INFO",
		fmt.Sprintf("Usuário %s cadastrado.", u.Email),
		models.JSONMetadata{"usuario_id": u.ID.String()}))
	return u, nil
}

func (s *usuarioServiceImpl) Bootstrap(ctx context.Context, empresaNome string, novo NovoUsuario) (*models.Empresa, *models.Usuario, error) {
	empresa := &models.Empresa{Nome: utils.SanitizeInput(empresaNome)}
	if err := models.Validate(empresa); err != nil {
		return nil, nil, err
	}
	// Valida o usuário antes de criar a empresa.
	if _, err := s.newUsuario(uuid.New(), novo); err != nil {
		return nil, nil, err
	}
	if err := s.repo.CreateEmpresa(ctx, empresa); err != nil {
		return nil, nil, err
	}
	actor := SystemActor(empresa.ID)
	u, err := s.Create(ctx, actor, novo)
	if err != nil {
		return nil, nil, err
	}
	logAudit(ctx, s.audit, actor.entry("EMPRESA_CREATE", "INFO",
		fmt.Sprintf("Empresa '%s' criada com o usuário %s.", empresa.Nome, u.Email),
		models.JSONMetadata{"empresa_id": empresa.ID.String()}))
	return empresa, u, nil
}

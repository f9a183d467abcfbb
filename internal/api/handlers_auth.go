package api

import (
	"net/http"
	"time"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
)

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Usuario   *models.Usuario `json:"usuario"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Auth.Login(r.Context(), req.Email, req.Senha, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt(),
		Usuario:   res.Usuario,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.Logout(r.Context(), sessionFrom(r).Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPerfil(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Usuarios != nil, "usuarios") {
		return
	}
	user, err := s.deps.Usuarios.GetProfile(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdatePerfil(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Usuarios != nil, "usuarios") {
		return
	}
	var upd models.PerfilUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}
	// A URL do avatar só muda pelo upload.
	upd.AvatarURL = nil
	user, err := s.deps.Usuarios.UpdateProfile(r.Context(), actorFrom(r), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type senhaRequest struct {
	Atual string `json:"atual"`
	Nova  string `json:"nova"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Usuarios != nil, "usuarios") {
		return
	}
	var req senhaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Usuarios.ChangePassword(r.Context(), actorFrom(r), req.Atual, req.Nova); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Usuarios != nil, "usuarios") {
		return
	}
	file, name, err := s.formFile(w, r, "avatar")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()
	user, err := s.deps.Usuarios.UploadAvatar(r.Context(), actorFrom(r), name, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type novoUsuarioRequest struct {
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Senha    string `json:"senha"`
	Cargo    string `json:"cargo"`
	Telefone string `json:"telefone"`
}

func (s *Server) handleCreateUsuario(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Usuarios != nil, "usuarios") {
		return
	}
	var req novoUsuarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.deps.Usuarios.Create(r.Context(), actorFrom(r), services.NovoUsuario(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

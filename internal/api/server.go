// Package api expõe os serviços do gabinete como uma API HTTP JSON (chi) e
// transmite as alterações das tabelas por websocket.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
)

// DefaultMaxUploadBytes limita anexos e avatares quando não configurado.
const DefaultMaxUploadBytes = 20 << 20

// Deps são as dependências do roteador. CEP, Feed e FilesDir são opcionais.
type Deps struct {
	Auth         auth.Authenticator
	Sessions     *auth.SessionManager
	Eleitores    services.EleitorService
	Oficios      services.OficioService
	Categorias   services.CategoriaService
	Atendimentos services.AtendimentoService
	Usuarios     services.UsuarioService
	WhatsApp     services.WhatsAppService
	Audit        services.AuditLogService
	CEP          services.AddressLookup
	Feed         realtime.Feed

	FilesDir       string
	MaxUploadBytes int64
}

// Server reúne os handlers da API.
type Server struct {
	deps     Deps
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewRouter monta o roteador com todas as rotas.
func NewRouter(deps Deps) http.Handler {
	if deps.Auth == nil || deps.Sessions == nil {
		appLogger.Fatalf("Autenticador e SessionManager são obrigatórios para api.NewRouter")
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: appLogger.WithFields(logrus.Fields{"component": "api"}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.FilesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", noDirListing(http.FileServer(http.Dir(deps.FilesDir)))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/logout", s.handleLogout)
			r.Get("/perfil", s.handleGetPerfil)
			r.Put("/perfil", s.handleUpdatePerfil)
			r.Put("/perfil/senha", s.handleChangePassword)
			r.Post("/perfil/avatar", s.handleUploadAvatar)
			r.Post("/usuarios", s.handleCreateUsuario)

			r.Route("/oficios", func(r chi.Router) {
				r.Get("/", s.handleListOficios)
				r.Post("/", s.handleCreateOficio)
				r.Get("/range", s.handleRangeOficios)
				r.Get("/export", s.handleExportOficios)
				r.Get("/{id}", s.handleGetOficio)
				r.Put("/{id}", s.handleUpdateOficio)
				r.Patch("/{id}/status", s.handleOficioStatus)
				r.Post("/{id}/arquivo", s.handleOficioArquivo)
				r.Delete("/{id}", s.handleDeleteOficio)
			})

			r.Route("/eleitores", func(r chi.Router) {
				r.Get("/", s.handleListEleitores)
				r.Post("/", s.handleCreateEleitor)
				r.Get("/range", s.handleRangeEleitores)
				r.Get("/{id}", s.handleGetEleitor)
				r.Put("/{id}", s.handleUpdateEleitor)
				r.Delete("/{id}", s.handleDeleteEleitor)
				r.Get("/{id}/atendimentos", s.handleListAtendimentos)
				r.Post("/{id}/atendimentos", s.handleCreateAtendimento)
			})
			r.Patch("/atendimentos/{id}/status", s.handleAtendimentoStatus)
			r.Delete("/atendimentos/{id}", s.handleDeleteAtendimento)

			r.Get("/tipos-categoria", s.handleListTipos)
			r.Post("/tipos-categoria", s.handleCreateTipo)
			r.Delete("/tipos-categoria/{id}", s.handleDeleteTipo)
			r.Get("/categorias", s.handleListCategorias)
			r.Post("/categorias", s.handleCreateCategoria)
			r.Put("/categorias/{id}", s.handleUpdateCategoria)
			r.Delete("/categorias/{id}", s.handleDeleteCategoria)

			r.Get("/whatsapp/status", s.handleWhatsAppStatus)
			r.Post("/whatsapp/instancias", s.handleCreateInstancia)
			r.Patch("/whatsapp/instancias/{id}", s.handleUpdateInstancia)
			r.Post("/whatsapp/disparos", s.handleDisparo)

			r.Get("/cep/{cep}", s.handleCEP)
			r.Get("/auditoria", s.handleAuditoria)

			r.Get("/realtime/status", s.handleRealtimeStatus)
			r.Get("/realtime/{table}", s.handleRealtime)
		})
	})
	return r
}

// requestLogger registra cada requisição no logger da aplicação.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		entry := s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("Requisição com erro")
			return
		}
		entry.Debug("Requisição atendida")
	})
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Sessão ---

type ctxKey int

const sessionKey ctxKey = iota

// bearerToken lê o token do cabeçalho Authorization ou, para websockets, do
// parâmetro token.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.deps.Sessions.GetSession(bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *auth.Session {
	session, _ := r.Context().Value(sessionKey).(*auth.Session)
	return session
}

// actorFrom monta o Actor dos serviços a partir da sessão da requisição.
func actorFrom(r *http.Request) services.Actor {
	session := sessionFrom(r)
	if session == nil {
		return services.Actor{}
	}
	return services.Actor{
		UserID:    session.UserID,
		EmpresaID: session.EmpresaID,
		Email:     session.Email,
		IPAddress: clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

func (s *Server) requireService(w http.ResponseWriter, r *http.Request, ok bool, name string) bool {
	if !ok {
		writeError(w, r, appErrors.WrapErrorf(appErrors.ErrConfiguration, "serviço %s não configurado", name))
	}
	return ok
}

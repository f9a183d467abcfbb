package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/api"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/auth"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/integrations"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/storage"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Inicia a API HTTP e o feed de alterações",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, db, err := loadApp()
	if err != nil {
		return err
	}
	defer closeDB(db)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 4. Feed de alterações ---
	// No PostgreSQL os triggers publicam; no SQLite o próprio processo publica.
	var (
		feed realtime.Feed
		pub  realtime.Publisher
	)
	if cfg.DBEngine == "postgresql" {
		pg, err := realtime.NewPGFeed(cfg.PostgresDSN(), cfg.RealtimeChannel, cfg.RealtimeSubscriberBuffer)
		if err != nil {
			return err
		}
		defer pg.Close()
		feed, pub = pg, realtime.NopPublisher{}
	} else {
		broker := realtime.NewBroker(cfg.RealtimeSubscriberBuffer)
		defer broker.Close()
		feed, pub = broker, broker
	}

	// --- 5. Repositórios e workspaces ---
	oficioRepo := repositories.NewGormOficioRepository(db)
	eleitorRepo := repositories.NewGormEleitorRepository(db)
	categoriaRepo := repositories.NewGormCategoriaRepository(db)
	whatsAppRepo := repositories.NewGormWhatsAppRepository(db)
	usuarioRepo := repositories.NewGormUsuarioRepository(db)
	atendimentoRepo := repositories.NewGormAtendimentoRepository(db)

	manager := workspace.NewManager(feed, workspace.Repos{
		Oficios:    oficioRepo,
		Eleitores:  eleitorRepo,
		Categorias: categoriaRepo,
		WhatsApp:   whatsAppRepo,
	}, workspace.OptionsFromConfig(cfg))
	defer manager.Close()

	sessions := auth.NewSessionManager(cfg, manager)
	sessions.StartCleanupGoroutine()
	defer sessions.Shutdown()

	// --- 6. Integrações ---
	files, err := storage.NewLocal(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		return err
	}
	webhook := integrations.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout)
	defer webhook.Wait()
	cep := integrations.NewCEPClient(cfg.CEPBaseURL, cfg.CEPTimeout)
	catalog, err := integrations.LoadTemplates(cfg.WhatsAppTemplates)
	if err != nil {
		return err
	}
	var sender services.MessageSender
	if cfg.WhatsAppAPIURL != "" {
		sender = integrations.NewWhatsAppClient(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIToken, 30*time.Second)
	} else {
		appLogger.Info("APP_WHATSAPP_API_URL vazio. Disparos de WhatsApp desabilitados.")
	}

	// --- 7. Serviços ---
	audit := services.NewAuditLogService(repositories.NewGormAuditLogRepository(db))
	deps := api.Deps{
		Auth:         auth.NewAuthenticator(usuarioRepo, sessions, audit),
		Sessions:     sessions,
		Eleitores:    services.NewEleitorService(eleitorRepo, categoriaRepo, cep, manager, pub, audit),
		Oficios:      services.NewOficioService(oficioRepo, eleitorRepo, files, webhook, manager, pub, audit),
		Categorias:   services.NewCategoriaService(categoriaRepo, manager, pub, audit),
		Atendimentos: services.NewAtendimentoService(atendimentoRepo, eleitorRepo, categoriaRepo, pub, audit),
		Usuarios:     services.NewUsuarioService(usuarioRepo, files, audit),
		WhatsApp: services.NewWhatsAppService(whatsAppRepo, eleitorRepo, categoriaRepo, sender, catalog,
			cfg.WhatsAppConcurrency, manager, pub, audit),
		Audit:    audit,
		CEP:      cep,
		Feed:     feed,
		FilesDir: files.Root(),
	}
	appLogger.Info("Todos os serviços foram inicializados.")

	// --- 8. Servidor HTTP ---
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLogger.Infof("API ouvindo em %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		appLogger.Info("Sinal de encerramento recebido. Finalizando servidor...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Sessões antes do servidor: os streams de websocket não terminam sozinhos.
	sessions.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warnf("Shutdown do servidor HTTP incompleto: %v", err)
	}
	appLogger.Info("Aplicação encerrada normalmente.")
	return nil
}

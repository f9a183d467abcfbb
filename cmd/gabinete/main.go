// Command gabinete é o servidor e a ferramenta administrativa do gabinete.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data"
)

var envPath string

var rootCmd = &cobra.Command{
	Use:   "gabinete",
	Short: "Servidor do gabinete: eleitores, ofícios, atendimentos e WhatsApp",
	Long: `gabinete expõe a API HTTP do gabinete e mantém, por empresa, as listas
sincronizadas com o feed de alterações do banco.

Sem subcomando, inicia o servidor (equivalente a "gabinete serve").`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "arquivo .env com a configuração")
	rootCmd.AddCommand(serveCmd, migrateCmd, bootstrapCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadApp carrega a configuração, configura o logger e abre o banco já migrado.
func loadApp() (*core.Config, *gorm.DB, error) {
	// --- 1. Carregar Configurações ---
	cfg, err := core.LoadConfig(envPath)
	if err != nil {
		return nil, nil, fmt.Errorf("carregando configuração: %w", err)
	}

	// --- 2. Configurar Logger ---
	if err := appLogger.SetupLogger(cfg); err != nil {
		log.Printf("Erro ao configurar logger: %v", err)
	}
	appLogger.Infof("Iniciando %s v%s...", cfg.AppName, cfg.AppVersion)
	appLogger.Debugf("Modo Debug: %t", cfg.AppDebug)

	// --- 3. Inicializar Banco de Dados ---
	db, err := data.InitializeDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("inicializando banco de dados: %w", err)
	}
	return cfg, db, nil
}

func closeDB(db *gorm.DB) {
	if err := data.CloseDB(db); err != nil {
		appLogger.Errorf("Erro ao fechar conexão com banco de dados: %v", err)
		return
	}
	appLogger.Info("Conexão com banco de dados fechada.")
}

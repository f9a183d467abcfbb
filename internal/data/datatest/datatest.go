// Package datatest fornece um banco SQLite migrado para testes de repositórios e serviços.
package datatest

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// Config devolve uma configuração mínima apontando para um SQLite em dir.
func Config(dir string) *core.Config {
	return &core.Config{
		AppName:         "gabinete-test",
		AppDebug:        true,
		DBEngine:        "sqlite",
		DBName:          filepath.Join(dir, "gabinete_test.db"),
		RealtimeChannel: "gabinete_changes",
	}
}

// NewDB abre e migra um SQLite temporário, fechado ao fim do teste.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := data.InitializeDB(Config(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = data.CloseDB(db) })
	return db
}

// NewEmpresa cria um tenant e devolve seu ID.
func NewEmpresa(t testing.TB, db *gorm.DB, nome string) uuid.UUID {
	t.Helper()
	e := &models.Empresa{Nome: nome}
	require.NoError(t, db.Create(e).Error)
	return e.ID
}

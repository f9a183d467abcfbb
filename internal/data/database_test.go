package data_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/datatest"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

func TestInitializeDBMigratesAllTables(t *testing.T) {
	db := datatest.NewDB(t)
	for _, table := range []string{"empresas", "usuarios", "tipos_categoria", "categorias", "eleitores", "atendimentos", "oficios", "whatsapp_instancias", "audit_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestOpenRejectsUnknownEngine(t *testing.T) {
	_, err := data.Open(&core.Config{DBEngine: "oracle"})
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestForeignKeysAreEnforced(t *testing.T) {
	db := datatest.NewDB(t)
	empresa := datatest.NewEmpresa(t, db, "Gabinete Teste")

	tipo := &models.TipoCategoria{TenantModel: models.TenantModel{EmpresaID: empresa}, Nome: "Bairro"}
	require.NoError(t, db.Create(tipo).Error)
	cat := &models.Categoria{TenantModel: models.TenantModel{EmpresaID: empresa}, TipoID: tipo.ID, Nome: "Centro"}
	require.NoError(t, db.Create(cat).Error)
	el := &models.Eleitor{TenantModel: models.TenantModel{EmpresaID: empresa}, Nome: "Ana", CategoriaID: &cat.ID}
	require.NoError(t, db.Create(el).Error)

	err := db.Delete(&models.Categoria{}, "id = ?", cat.ID).Error
	require.Error(t, err)
	assert.True(t, data.IsForeignKeyViolation(err))

	missing := uuid.New()
	err = db.Create(&models.Eleitor{TenantModel: models.TenantModel{EmpresaID: empresa}, Nome: "Bia", CategoriaID: &missing}).Error
	assert.True(t, data.IsForeignKeyViolation(err))
}

func TestWithTransactionRollsBack(t *testing.T) {
	db := datatest.NewDB(t)
	boom := errors.New("boom")

	err := data.WithTransaction(db, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&models.Empresa{Nome: "Descartada"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Empresa{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInstallNotifyTriggersRejectsBadChannel(t *testing.T) {
	db := datatest.NewDB(t)
	err := data.InstallNotifyTriggers(db, "canal; drop table x", models.RealtimeTables)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestErrorClassifiers(t *testing.T) {
	assert.False(t, data.IsForeignKeyViolation(nil))
	assert.True(t, data.IsUniqueViolation(errors.New("UNIQUE constraint failed: usuarios.email")))
	assert.True(t, data.IsUniqueViolation(gorm.ErrDuplicatedKey))
}

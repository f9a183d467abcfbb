package repositories_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/datatest"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
)

type fixture struct {
	db        *gorm.DB
	empresa   uuid.UUID
	tipo      *models.TipoCategoria
	categoria *models.Categoria
	eleitores repositories.EleitorRepository
	cats      repositories.CategoriaRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := datatest.NewDB(t)
	f := &fixture{
		db:        db,
		empresa:   datatest.NewEmpresa(t, db, "Gabinete Teste"),
		eleitores: repositories.NewGormEleitorRepository(db),
		cats:      repositories.NewGormCategoriaRepository(db),
	}
	ctx := context.Background()
	f.tipo = &models.TipoCategoria{TenantModel: models.TenantModel{EmpresaID: f.empresa}, Nome: "Liderança"}
	require.NoError(t, f.cats.CreateTipo(ctx, f.tipo))
	f.categoria = &models.Categoria{TenantModel: models.TenantModel{EmpresaID: f.empresa}, TipoID: f.tipo.ID, Nome: "Bairro Centro", Cor: "#1A659E"}
	require.NoError(t, f.cats.Create(ctx, f.categoria))
	return f
}

func (f *fixture) eleitor(t *testing.T, nome string, mutate ...func(*models.Eleitor)) *models.Eleitor {
	t.Helper()
	e := &models.Eleitor{TenantModel: models.TenantModel{EmpresaID: f.empresa}, Nome: nome}
	for _, m := range mutate {
		m(e)
	}
	require.NoError(t, f.eleitores.Create(context.Background(), e))
	return e
}

func TestEleitorCRUDAndTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.eleitor(t, "Maria da Silva", func(e *models.Eleitor) { e.CPF = "52998224725" })

	got, err := f.eleitores.GetByID(ctx, f.empresa, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria da Silva", got.Nome)

	byCPF, err := f.eleitores.GetByCPF(ctx, f.empresa, "52998224725")
	require.NoError(t, err)
	assert.Equal(t, e.ID, byCPF.ID)

	outra := datatest.NewEmpresa(t, f.db, "Outro Gabinete")
	_, err = f.eleitores.GetByID(ctx, outra, e.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, f.eleitores.Delete(ctx, outra, e.ID), appErrors.ErrNotFound)

	bairro := "Centro"
	changes := models.EleitorUpdate{Bairro: &bairro, CategoriaID: &f.categoria.ID}.ApplyTo(got)
	require.NoError(t, f.eleitores.Update(ctx, got, changes))
	got, err = f.eleitores.GetByID(ctx, f.empresa, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Centro", got.Bairro)
	require.NotNil(t, got.CategoriaID)
	assert.Equal(t, f.categoria.ID, *got.CategoriaID)

	require.NoError(t, f.eleitores.Delete(ctx, f.empresa, e.ID))
	_, err = f.eleitores.GetByID(ctx, f.empresa, e.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEleitorListRangeIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		f.eleitor(t, fmt.Sprintf("Eleitor %02d", i))
	}

	var seen []string
	for offset := 0; ; offset += 3 {
		batch, total, err := f.eleitores.ListRange(ctx, f.empresa, offset, 3)
		require.NoError(t, err)
		assert.EqualValues(t, 7, total)
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			seen = append(seen, e.Nome)
		}
	}
	require.Len(t, seen, 7)
	assert.Equal(t, "Eleitor 00", seen[0])
	assert.Equal(t, "Eleitor 06", seen[6])

	all, err := f.eleitores.ListByEmpresa(ctx, f.empresa)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestCategoriaDeleteInUseIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eleitor(t, "João", func(e *models.Eleitor) { e.CategoriaID = &f.categoria.ID })

	err := f.cats.Delete(ctx, f.empresa, f.categoria.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	var conflict *appErrors.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "categoria", conflict.Resource)
	assert.Contains(t, conflict.Dependents, models.TableEleitores)

	// Ainda existe.
	_, err = f.cats.GetByID(ctx, f.empresa, f.categoria.ID)
	require.NoError(t, err)

	err = f.cats.DeleteTipo(ctx, f.empresa, f.tipo.ID)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCategoriaDeleteUnused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cats.Delete(ctx, f.empresa, f.categoria.ID))
	require.NoError(t, f.cats.DeleteTipo(ctx, f.empresa, f.tipo.ID))

	tipos, err := f.cats.ListTipos(ctx, f.empresa)
	require.NoError(t, err)
	assert.Empty(t, tipos)
}

func TestEleitorDeleteCascadesAndDetaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.eleitor(t, "Ana")

	atend := repositories.NewGormAtendimentoRepository(f.db)
	a := &models.Atendimento{
		TenantModel:     models.TenantModel{EmpresaID: f.empresa},
		EleitorID:       e.ID,
		Descricao:       "Pedido de poda de árvore",
		Status:          models.AtendimentoPendente,
		DataAtendimento: time.Now().UTC(),
	}
	require.NoError(t, atend.Create(ctx, a))

	oficios := repositories.NewGormOficioRepository(f.db)
	o := &models.Oficio{
		TenantModel: models.TenantModel{EmpresaID: f.empresa},
		Tipo:        models.TipoOficio,
		Numero:      "001/2024",
		Assunto:     "Poda",
		Status:      models.OficioRecebida,
		Urgencia:    models.UrgenciaNormal,
		EleitorID:   &e.ID,
	}
	require.NoError(t, oficios.Create(ctx, o))

	require.NoError(t, f.eleitores.Delete(ctx, f.empresa, e.ID))

	hist, err := atend.ListByEleitor(ctx, f.empresa, e.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)

	got, err := oficios.GetByID(ctx, f.empresa, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EleitorID)
}

func TestOficioCountByTipoAno(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := repositories.NewGormOficioRepository(f.db)
	for i, tipo := range []models.TipoDocumento{models.TipoOficio, models.TipoOficio, models.TipoRequerimento} {
		require.NoError(t, repo.Create(ctx, &models.Oficio{
			TenantModel: models.TenantModel{EmpresaID: f.empresa},
			Tipo:        tipo,
			Numero:      fmt.Sprintf("%03d", i+1),
			Assunto:     "Assunto",
			Status:      models.OficioRecebida,
			Urgencia:    models.UrgenciaBaixa,
		}))
	}
	n, err := repo.CountByTipoAno(ctx, f.empresa, models.TipoOficio, time.Now().UTC().Year())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.CountByTipoAno(ctx, f.empresa, models.TipoOficio, 1999)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEleitorListByCategoria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eleitor(t, "Com WhatsApp", func(e *models.Eleitor) {
		e.CategoriaID = &f.categoria.ID
		e.WhatsApp = "5551999990000"
	})
	f.eleitor(t, "Sem Contato", func(e *models.Eleitor) { e.CategoriaID = &f.categoria.ID })
	f.eleitor(t, "Outra Categoria", func(e *models.Eleitor) { e.Telefone = "5551999990001" })

	list, err := f.eleitores.ListByCategoria(ctx, f.empresa, f.categoria.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Com WhatsApp", list[0].Nome)
}

func TestUsuarioRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := repositories.NewGormUsuarioRepository(f.db)

	u := &models.Usuario{
		TenantModel: models.TenantModel{EmpresaID: f.empresa},
		Nome:        "Assessora",
		Email:       "  Assessora@Gabinete.Org ",
		SenhaHash:   "hash",
		Ativo:       true,
	}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, "ASSESSORA@gabinete.org")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := &models.Usuario{TenantModel: models.TenantModel{EmpresaID: f.empresa}, Nome: "Outra", Email: "assessora@gabinete.org", SenhaHash: "x"}
	assert.ErrorIs(t, repo.Create(ctx, dup), appErrors.ErrConflict)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchLastLogin(ctx, u.ID, now))
	got, err = repo.GetByID(ctx, f.empresa, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UltimoLoginEm)
	assert.True(t, got.UltimoLoginEm.Equal(now))

	_, err = repo.GetByEmail(ctx, "ninguem@gabinete.org")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAuditLogGetFiltered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := repositories.NewGormAuditLogRepository(f.db)

	for i, action := range []string{"OFICIO_CREATE", "OFICIO_CREATE", "CATEGORIA_DELETE"} {
		_, err := repo.Create(ctx, models.AuditLogEntry{
			EmpresaID:   f.empresa,
			Action:      action,
			Description: fmt.Sprintf("entrada %d", i),
			Severity:    "info",
			UserEmail:   "assessora@gabinete.org",
		})
		require.NoError(t, err)
	}

	logs, total, err := repo.GetFiltered(ctx, f.empresa, repositories.AuditLogFilter{Action: "oficio_create"}, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, logs, 1)
	assert.Equal(t, "INFO", logs[0].Severity)

	outra := datatest.NewEmpresa(t, f.db, "Outro")
	logs, total, err = repo.GetFiltered(ctx, outra, repositories.AuditLogFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, logs)
}

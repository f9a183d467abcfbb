package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
)

func TestParseOficioStatusNormalizesVariants(t *testing.T) {
	cases := map[string]OficioStatus{
		"Recebida":     OficioRecebida,
		"em_andamento": OficioEmAndamento,
		"EM ANDAMENTO": OficioEmAndamento,
		"protocolado":  OficioProtocolada,
		" Arquivada ":  OficioArquivada,
	}
	for raw, want := range cases {
		got, err := ParseOficioStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseOficioStatus("Cancelada")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAtendimentoStatusAccents(t *testing.T) {
	got, err := ParseAtendimentoStatus("concluido")
	require.NoError(t, err)
	assert.Equal(t, AtendimentoConcluido, got)
}

func TestEnumUnmarshalJSON(t *testing.T) {
	var o Oficio
	err := json.Unmarshal([]byte(`{"status":"respondido","urgencia":"URGENTE","tipo":"Requerimento"}`), &o)
	require.NoError(t, err)
	assert.Equal(t, OficioRespondida, o.Status)
	assert.Equal(t, UrgenciaUrgente, o.Urgencia)
	assert.Equal(t, TipoRequerimento, o.Tipo)

	err = json.Unmarshal([]byte(`{"status":"perdido"}`), &o)
	assert.Error(t, err)
}

func TestValidateEleitor(t *testing.T) {
	e := Eleitor{TenantModel: TenantModel{EmpresaID: uuid.New()}, Nome: "Maria da Silva", CPF: "52998224725", UF: "RS"}
	assert.NoError(t, Validate(&e))

	e.CPF = "12345678900"
	e.Email = "nao-e-email"
	err := Validate(&e)
	var ve *appErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "CPF inválido", ve.Fields["cpf"])
	assert.Equal(t, "e-mail inválido", ve.Fields["email"])
}

func TestValidateRequiresEmpresa(t *testing.T) {
	c := Categoria{Nome: "Liderança", TipoID: uuid.New()}
	err := Validate(&c)
	var ve *appErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "obrigatório", ve.Fields["empresa_id"])
}

func TestValidateEnumField(t *testing.T) {
	o := Oficio{
		TenantModel: TenantModel{EmpresaID: uuid.New()},
		Tipo:        TipoOficio,
		Numero:      "001/2024",
		Assunto:     "Iluminação pública",
		Status:      OficioStatus("Perdida"),
		Urgencia:    UrgenciaNormal,
	}
	err := Validate(&o)
	var ve *appErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields["status"], "Perdida")
}

func TestEleitorUpdateApplyTo(t *testing.T) {
	cat := uuid.New()
	e := Eleitor{Nome: "João", CategoriaID: &cat}
	novoNome := "João Pedro"
	mesmoBairro := ""
	nasc := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)

	changes := EleitorUpdate{
		Nome:           &novoNome,
		Bairro:         &mesmoBairro,
		CategoriaID:    &uuid.Nil,
		DataNascimento: &nasc,
	}.ApplyTo(&e)

	assert.Equal(t, "João Pedro", e.Nome)
	assert.Nil(t, e.CategoriaID)
	require.NotNil(t, e.DataNascimento)
	assert.Len(t, changes, 3)
	assert.Contains(t, changes, "categoria_id")
	assert.Nil(t, changes["categoria_id"])
	assert.NotContains(t, changes, "bairro")
}

func TestTenantModelKey(t *testing.T) {
	id := uuid.New()
	e := Eleitor{TenantModel: TenantModel{ID: id}}
	assert.Equal(t, id.String(), e.Key())
}

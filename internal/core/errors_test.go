package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("Dados inválidos.", map[string]string{"nome": "obrigatório", "cpf": "inválido"})
	assert.Equal(t, "Dados inválidos. (Detalhes: cpf: inválido, nome: obrigatório)", err.Error())
	assert.ErrorIs(t, err, ErrValidation)

	wrapped := fmt.Errorf("criando eleitor: %w", err)
	var verr *ValidationError
	require.True(t, errors.As(wrapped, &verr))
	assert.Equal(t, "obrigatório", verr.Fields["nome"])

	cause := errors.New("falha de parse")
	withCause := &ValidationError{Underlying: cause}
	assert.Equal(t, "Erro de validação | Erro original: falha de parse", withCause.Error())
	assert.ErrorIs(t, withCause, cause)
}

func TestConflictError(t *testing.T) {
	dbErr := errors.New("FOREIGN KEY constraint failed")
	err := NewConflictError("categoria", "42", dbErr, "eleitores", "atendimentos")

	assert.Equal(t, "categoria 42 possui registros dependentes (eleitores, atendimentos)", err.Error())
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, "categoria 42 possui registros dependentes", NewConflictError("categoria", "42", nil).Error())
}

func TestDatabaseErrorDetail(t *testing.T) {
	err := NewDatabaseErrorDetail("excluindo ofício", "", ErrNotFound)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "erro de banco de dados durante excluindo ofício: registro não encontrado", err.Error())

	assert.ErrorIs(t, NewDatabaseErrorDetail("listando", "", nil), ErrDatabase)
}

func TestWrapErrorf(t *testing.T) {
	err := WrapErrorf(ErrIntegration, "consulta de CEP %s", "90010000")
	assert.Equal(t, "consulta de CEP 90010000: falha em integração externa", err.Error())
	assert.ErrorIs(t, err, ErrIntegration)

	assert.EqualError(t, WrapErrorf(nil, "sem causa %d", 1), "sem causa 1")
}

package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Erros sentinela pré-definidos para tipos comuns de falha na aplicação.
// Estes podem ser verificados usando errors.Is(err, ErrNotFound).
var (
	// --- Erros Gerais ---
	ErrInternal        = errors.New("erro interno da aplicação")
	ErrConfiguration   = errors.New("erro de configuração da aplicação")
	ErrResourceLoading = errors.New("falha ao carregar recurso essencial")

	// --- Erros de Autenticação e Sessão ---
	ErrUnauthorized       = errors.New("não autenticado") // Falta de token ou token desconhecido (401)
	ErrInvalidCredentials = errors.New("credenciais inválidas (e-mail ou senha)")
	ErrSessionExpired     = errors.New("sessão expirada") // Inatividade maior que APP_SESSION_TIMEOUT
	ErrInvalidSession     = errors.New("sessão inválida ou não encontrada")

	// --- Erros de Banco de Dados / Repositório ---
	ErrDatabase  = errors.New("erro na operação com o banco de dados")
	ErrNotFound  = errors.New("registro não encontrado")
	ErrConflict  = errors.New("conflito de dados (ex: registro duplicado ou com dependentes)") // Ver ConflictError (409)
	ErrIntegrity = errors.New("violação de integridade de dados (ex: constraint de chave estrangeira)")

	// --- Erros de Validação e Entrada ---
	ErrValidation   = errors.New("erro de validação nos dados fornecidos")     // Erro genérico de validação de regras de negócio
	ErrInvalidInput = errors.New("entrada de dados inválida ou mal formatada") // Erro de formato/tipo de dado

	// --- Erros Específicos da Aplicação ---
	ErrExport       = errors.New("falha ao exportar dados")
	ErrStorage      = errors.New("falha no armazenamento de arquivos")
	ErrIntegration  = errors.New("falha em integração externa")               // CEP, webhook, automação do WhatsApp
	ErrSubscription = errors.New("falha na assinatura do feed de alterações") // Queda ou recusa da assinatura
)

// ValidationError é um tipo de erro que contém detalhes sobre os campos que falharam na validação.
type ValidationError struct {
	// Message é uma mensagem geral sobre a falha de validação.
	Message string
	// Fields mapeia nomes de campos para suas respectivas mensagens de erro.
	Fields map[string]string
	// Underlying é o erro original que pode ter causado a falha de validação (opcional).
	Underlying error
}

// NewValidationError cria uma nova instância de ValidationError.
func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  fields,
	}
}

// Error implementa a interface error.
func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Message != "" {
		sb.WriteString(ve.Message)
	} else {
		sb.WriteString("Erro de validação")
	}

	if len(ve.Fields) > 0 {
		// Ordena os campos para que a mensagem seja determinística.
		names := make([]string, 0, len(ve.Fields))
		for field := range ve.Fields {
			names = append(names, field)
		}
		sort.Strings(names)

		fieldErrors := make([]string, 0, len(names))
		for _, field := range names {
			fieldErrors = append(fieldErrors, fmt.Sprintf("%s: %s", field, ve.Fields[field]))
		}
		sb.WriteString(" (Detalhes: ")
		sb.WriteString(strings.Join(fieldErrors, ", "))
		sb.WriteString(")")
	}
	if ve.Underlying != nil {
		sb.WriteString(fmt.Sprintf(" | Erro original: %v", ve.Underlying))
	}
	return sb.String()
}

// Unwrap retorna o erro encapsulado, permitindo o uso de errors.Is e errors.As com o erro original.
func (ve *ValidationError) Unwrap() error {
	return ve.Underlying
}

// Is permite que `errors.Is(err, ErrValidation)` funcione corretamente,
// mesmo que `err` seja um `*ValidationError` que não tenha ErrValidation como `Underlying`.
func (ve *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError indica que uma operação foi bloqueada por registros dependentes.
// É o erro tipado devolvido quando uma constraint do banco impede uma exclusão
// (ex: categoria ainda usada por eleitores).
type ConflictError struct {
	// Resource é o tipo do registro alvo (ex: "categoria").
	Resource string
	// ID identifica o registro alvo.
	ID string
	// Dependents lista as tabelas que ainda referenciam o registro, quando conhecidas.
	Dependents []string
	// Underlying é o erro original do banco.
	Underlying error
}

// NewConflictError cria um ConflictError.
func NewConflictError(resource, id string, underlying error, dependents ...string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Dependents: dependents, Underlying: underlying}
}

// Error implementa a interface error.
func (ce *ConflictError) Error() string {
	msg := fmt.Sprintf("%s %s possui registros dependentes", ce.Resource, ce.ID)
	if len(ce.Dependents) > 0 {
		msg += fmt.Sprintf(" (%s)", strings.Join(ce.Dependents, ", "))
	}
	return msg
}

// Unwrap retorna o erro original do banco.
func (ce *ConflictError) Unwrap() error {
	return ce.Underlying
}

// Is faz com que um ConflictError seja sempre reconhecido como ErrConflict.
func (ce *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// DatabaseErrorDetail é um tipo de erro para carregar mais informações sobre um erro de banco de dados.
type DatabaseErrorDetail struct {
	// Operation descreve a operação que estava sendo realizada (ex: "criando eleitor").
	Operation string
	// Query é a query SQL (opcional e deve ser usado com cautela devido a dados sensíveis).
	Query string
	// Err é o erro original retornado pelo driver do banco de dados ou ORM.
	Err error
}

// NewDatabaseErrorDetail cria um novo DatabaseErrorDetail.
func NewDatabaseErrorDetail(operation string, query string, originalErr error) *DatabaseErrorDetail {
	if originalErr == nil {
		originalErr = ErrDatabase
	}
	return &DatabaseErrorDetail{
		Operation: operation,
		Query:     query,
		Err:       originalErr,
	}
}

// Error implementa a interface error.
func (de *DatabaseErrorDetail) Error() string {
	msg := fmt.Sprintf("erro de banco de dados durante %s", de.Operation)
	if de.Query != "" {
		maxQueryLen := 100
		displayQuery := de.Query
		if len(displayQuery) > maxQueryLen {
			displayQuery = displayQuery[:maxQueryLen] + "..."
		}
		msg += fmt.Sprintf(" (Query: %s)", displayQuery)
	}
	msg += fmt.Sprintf(": %v", de.Err)
	return msg
}

// Unwrap retorna o erro original do banco de dados, permitindo que `errors.As` extraia o erro específico do driver.
func (de *DatabaseErrorDetail) Unwrap() error {
	return de.Err
}

// Is permite que `errors.Is(returnedError, ErrDatabase)` funcione corretamente,
// mesmo que `returnedError` seja um `*DatabaseErrorDetail` que envolveu um erro diferente.
func (de *DatabaseErrorDetail) Is(target error) bool {
	if target == ErrDatabase {
		return true
	}
	return errors.Is(de.Err, target)
}

// --- Funções Helper ---

// WrapErrorf cria um novo erro que envolve um erro existente com uma mensagem formatada,
// preservando o erro original para verificação com `errors.Is` e `errors.As`.
func WrapErrorf(originalErr error, format string, args ...interface{}) error {
	if originalErr == nil {
		return fmt.Errorf(format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), originalErr)
}

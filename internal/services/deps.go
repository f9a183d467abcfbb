package services

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/integrations"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

// --- Dependências externas dos serviços ---

// AddressLookup consulta endereços por CEP (integrations.CEPClient).
type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*integrations.Endereco, error)
}

// Notifier dispara eventos para automações externas (integrations.Webhook).
type Notifier interface {
	Fire(ctx context.Context, event string, payload interface{})
}

// FileStorage guarda arquivos anexados (storage.Local).
type FileStorage interface {
	Upload(ctx context.Context, bucket, objectPath string, r io.Reader) (string, error)
	PublicURL(bucket, objectPath string) (string, error)
}

// MessageSender envia mensagens de WhatsApp (integrations.WhatsAppClient).
type MessageSender interface {
	SendText(ctx context.Context, instance, number, text string) error
}

// Workspaces dá acesso às listas vivas de uma empresa (workspace.Manager).
// Sem workspace aberto, as listagens leem direto do repositório.
type Workspaces interface {
	Get(empresaID uuid.UUID) (*workspace.Workspace, bool)
}

// cachedOrFetch lê a lista do workspace da empresa quando existe, senão do banco.
func cachedOrFetch[T listview.Keyed](
	ctx context.Context,
	spaces Workspaces,
	empresaID uuid.UUID,
	pick func(*workspace.Workspace) *listview.Sync[T],
	fetch func(context.Context, uuid.UUID) ([]T, error),
) ([]T, error) {
	if spaces != nil {
		if ws, ok := spaces.Get(empresaID); ok {
			return workspace.Items(ctx, pick(ws))
		}
	}
	return fetch(ctx, empresaID)
}

// refInvalid converte ErrNotFound de uma referência em erro de validação do campo.
func refInvalid(err error, field, msg string) error {
	if errors.Is(err, appErrors.ErrNotFound) {
		return appErrors.NewValidationError("Dados inválidos.", map[string]string{field: msg})
	}
	return err
}

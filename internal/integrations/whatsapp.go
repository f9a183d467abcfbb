package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

// WhatsAppClient envia mensagens pela API de automação de WhatsApp
// (POST <base>/message/sendText/<instancia>, autenticado pelo header apikey).
type WhatsAppClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewWhatsAppClient cria o cliente. Sem baseURL, SendText devolve ErrConfiguration.
func NewWhatsAppClient(baseURL, token string, timeout time.Duration) *WhatsAppClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhatsAppClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// SendText envia uma mensagem de texto para o número, pela instância informada.
func (c *WhatsAppClient) SendText(ctx context.Context, instance, number, text string) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: API de WhatsApp não configurada", appErrors.ErrConfiguration)
	}
	number = utils.NormalizePhone(number)
	if number == "" {
		return fmt.Errorf("%w: número de WhatsApp vazio", appErrors.ErrInvalidInput)
	}
	body, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return fmt.Errorf("%w: %v", appErrors.ErrInternal, err)
	}

	endpoint := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, url.PathEscape(instance))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", appErrors.ErrIntegration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("apikey", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: envio de WhatsApp: %v", appErrors.ErrIntegration, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: API de WhatsApp respondeu %d: %s", appErrors.ErrIntegration, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

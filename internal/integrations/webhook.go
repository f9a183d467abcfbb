package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

// Eventos enviados ao webhook de automação.
const (
	EventOficioProtocolado = "oficio.protocolado"
)

type webhookBody struct {
	Event   string      `json:"event"`
	SentAt  time.Time   `json:"sent_at"`
	Payload interface{} `json:"payload"`
}

// Webhook dispara notificações POST para a automação externa. Os envios são
// assíncronos e falhas apenas são logadas.
type Webhook struct {
	url     string
	timeout time.Duration
	client  *http.Client
	wg      sync.WaitGroup
	log     *logrus.Entry
}

// NewWebhook cria o notificador. URL vazia desliga os envios.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:     url,
		timeout: timeout,
		client:  &http.Client{},
		log:     appLogger.WithFields(logrus.Fields{"component": "webhook"}),
	}
}

// Enabled indica se há URL configurada.
func (w *Webhook) Enabled() bool { return w != nil && w.url != "" }

// Fire envia o evento em segundo plano. O cancelamento de ctx não interrompe
// o envio; o limite é o timeout do webhook.
func (w *Webhook) Fire(ctx context.Context, event string, payload interface{}) {
	if !w.Enabled() {
		return
	}
	body, err := json.Marshal(webhookBody{Event: event, SentAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		w.log.Errorf("Falha ao serializar payload do webhook '%s': %v", event, err)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()
		if err := w.post(sendCtx, body); err != nil {
			w.log.WithField("event", event).Warnf("Webhook falhou: %v", err)
			return
		}
		w.log.WithField("event", event).Debug("Webhook enviado")
	}()
}

// Wait bloqueia até que os envios em andamento terminem.
func (w *Webhook) Wait() {
	if w == nil {
		return
	}
	w.wg.Wait()
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

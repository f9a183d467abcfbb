// Package integrations reúne os clientes HTTP de serviços externos usados pelo
// gabinete: consulta de CEP, webhook de automação e API de WhatsApp.
package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

// Endereco é o resultado de uma consulta de CEP.
type Endereco struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	UF          string `json:"uf"`
}

// viaCEPResponse segue o formato do ViaCEP. "erro" chega como bool ou como
// string, dependendo da versão da API.
type viaCEPResponse struct {
	CEP         string      `json:"cep"`
	Logradouro  string      `json:"logradouro"`
	Complemento string      `json:"complemento"`
	Bairro      string      `json:"bairro"`
	Localidade  string      `json:"localidade"`
	UF          string      `json:"uf"`
	Erro        interface{} `json:"erro"`
}

func (r viaCEPResponse) notFound() bool {
	switch v := r.Erro.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// CEPClient consulta endereços por CEP (GET <base>/<cep>/json/).
type CEPClient struct {
	baseURL string
	client  *http.Client
}

// NewCEPClient cria o cliente com o timeout informado (0 usa 5s).
func NewCEPClient(baseURL string, timeout time.Duration) *CEPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CEPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Lookup busca o endereço do CEP. CEP malformado devolve ErrInvalidInput e CEP
// inexistente devolve ErrNotFound.
func (c *CEPClient) Lookup(ctx context.Context, cep string) (*Endereco, error) {
	digits := utils.OnlyDigits(cep)
	if !utils.IsValidCEP(digits) {
		return nil, appErrors.NewValidationError("CEP inválido.", map[string]string{"cep": "deve ter 8 dígitos"})
	}

	url := fmt.Sprintf("%s/%s/json/", c.baseURL, digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: montando requisição de CEP: %v", appErrors.ErrIntegration, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		appLogger.Warnf("Consulta de CEP %s falhou: %v", digits, err)
		return nil, fmt.Errorf("%w: consulta de CEP: %v", appErrors.ErrIntegration, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: CEP %s", appErrors.ErrNotFound, digits)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, appErrors.NewValidationError("CEP inválido.", map[string]string{"cep": "rejeitado pelo serviço"})
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: consulta de CEP respondeu %d: %s", appErrors.ErrIntegration, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: resposta de CEP ilegível: %v", appErrors.ErrIntegration, err)
	}
	if out.notFound() {
		return nil, fmt.Errorf("%w: CEP %s", appErrors.ErrNotFound, digits)
	}
	return &Endereco{
		CEP:         utils.OnlyDigits(out.CEP),
		Logradouro:  out.Logradouro,
		Complemento: out.Complemento,
		Bairro:      out.Bairro,
		Cidade:      out.Localidade,
		UF:          strings.ToUpper(out.UF),
	}, nil
}

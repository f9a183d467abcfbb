package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/api"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/datatest"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/workspace"
)

const (
	testEmail = "ana@gabinete.org"
	testSenha = "Segura#2026"
)

type apiEnv struct {
	srv    *httptest.Server
	client *http.Client
	broker *realtime.Broker
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db := datatest.NewDB(t)
	broker := realtime.NewBroker(0)

	eleitorRp := repositories.NewGormEleitorRepository(db)
	oficioRp := repositories.NewGormOficioRepository(db)
	catRp := repositories.NewGormCategoriaRepository(db)
	whatsRp := repositories.NewGormWhatsAppRepository(db)
	usuarioRp := repositories.NewGormUsuarioRepository(db)
	manager := workspace.NewManager(broker, workspace.Repos{
		Oficios:    oficioRp,
		Eleitores:  eleitorRp,
		Categorias: catRp,
		WhatsApp:   whatsRp,
	}, workspace.Options{})

	audit := services.NewAuditLogService(repositories.NewGormAuditLogRepository(db))
	usuarios := services.NewUsuarioService(usuarioRp, nil, audit)
	_, _, err := usuarios.Bootstrap(context.Background(), "Gabinete API", services.NovoUsuario{Nome: "Ana Souza", Email: testEmail, Senha: testSenha})
	require.NoError(t, err)

	sessions := auth.NewSessionManager(&appErrors.Config{SessionTimeout: time.Hour}, manager)
	router := api.NewRouter(api.Deps{
		Auth:         auth.NewAuthenticator(usuarioRp, sessions, audit),
		Sessions:     sessions,
		Eleitores:    services.NewEleitorService(eleitorRp, catRp, nil, manager, broker, audit),
		Oficios:      services.NewOficioService(oficioRp, eleitorRp, nil, nil, manager, broker, audit),
		Categorias:   services.NewCategoriaService(catRp, manager, broker, audit),
		Atendimentos: services.NewAtendimentoService(repositories.NewGormAtendimentoRepository(db), eleitorRp, catRp, broker, audit),
		Usuarios:     usuarios,
		Audit:        audit,
		Feed:         broker,
	})

	srv := httptest.NewServer(router)
	e := &apiEnv{srv: srv, client: &http.Client{Timeout: 5 * time.Second}, broker: broker}
	t.Cleanup(func() {
		e.client.CloseIdleConnections()
		srv.Close()
		sessions.Shutdown()
		manager.Close()
		broker.Close()
	})
	return e
}

// do executa a requisição e decodifica a resposta em out, quando informado.
func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *apiEnv) login(t *testing.T) string {
	t.Helper()
	var res struct {
		Token   string         `json:"token"`
		Usuario models.Usuario `json:"usuario"`
	}
	status := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": testEmail, "senha": testSenha}, &res)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, testEmail, res.Usuario.Email)
	return res.Token
}

type errorResponse struct {
	Error      string            `json:"error"`
	Fields     map[string]string `json:"fields"`
	Dependents []string          `json:"dependents"`
}

func TestLoginAndSessionRequired(t *testing.T) {
	e := newAPIEnv(t)

	var errBody errorResponse
	status := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": testEmail, "senha": "errada"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, errBody.Error)

	status = e.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": testEmail, "senha": testSenha, "extra": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "campos desconhecidos são recusados")

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/eleitores", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/eleitores", "token-invalido", nil, nil))

	token := e.login(t)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/eleitores", token, nil, nil))

	var perfil models.Usuario
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/perfil", token, nil, &perfil))
	assert.Equal(t, "Ana Souza", perfil.Nome)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/api/logout", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/eleitores", token, nil, nil))
}

func TestEleitoresEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)

	var created models.Eleitor
	status := e.do(t, http.MethodPost, "/api/eleitores", token, map[string]interface{}{
		"nome":   "Maria da Silva",
		"cpf":    "529.982.247-25",
		"bairro": "Centro",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "52998224725", created.CPF)

	// A lista lê o workspace da sessão, atualizado pelo feed.
	require.Eventually(t, func() bool {
		var page struct {
			Items      []models.Eleitor `json:"items"`
			TotalItems int              `json:"total_items"`
		}
		return e.do(t, http.MethodGet, "/api/eleitores?q=maria", token, nil, &page) == http.StatusOK && page.TotalItems == 1
	}, 2*time.Second, 10*time.Millisecond)

	var got models.Eleitor
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/eleitores/"+created.ID.String(), token, nil, &got))
	assert.Equal(t, "Maria da Silva", got.Nome)

	var updated models.Eleitor
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/eleitores/"+created.ID.String(), token, map[string]string{"bairro": "Moinhos"}, &updated))
	assert.Equal(t, "Moinhos", updated.Bairro)

	var errBody errorResponse
	status = e.do(t, http.MethodPost, "/api/eleitores", token, map[string]string{"cpf": "111.111.111-11"}, &errBody)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, errBody.Fields, "nome")

	status = e.do(t, http.MethodPost, "/api/eleitores", token, map[string]string{"nome": "Outra Maria", "cpf": "52998224725"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/eleitores/"+uuid.NewString(), token, nil, nil))
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/eleitores/nao-e-uuid", token, nil, nil))
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/eleitores?page=abc", token, nil, nil))

	var rng struct {
		Items []models.Eleitor `json:"items"`
		Total int64            `json:"total"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/eleitores/range?offset=0&limit=5", token, nil, &rng))
	assert.EqualValues(t, 1, rng.Total)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/eleitores/"+created.ID.String(), token, nil, nil))
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/eleitores/"+created.ID.String(), token, nil, nil))
}

func TestCategoriaInUseReturnsConflictWithDependents(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)

	var tipo models.TipoCategoria
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/tipos-categoria", token, map[string]string{"nome": "Bairro"}, &tipo))
	var cat models.Categoria
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/categorias", token, map[string]string{"tipo_id": tipo.ID.String(), "nome": "Centro"}, &cat))
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/eleitores", token, map[string]string{"nome": "Carlos", "categoria_id": cat.ID.String()}, nil))

	var errBody errorResponse
	status := e.do(t, http.MethodDelete, "/api/categorias/"+cat.ID.String(), token, nil, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, errBody.Dependents, models.TableEleitores)

	var list []models.Categoria
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/categorias?tipo="+tipo.ID.String(), token, nil, &list))
	assert.Len(t, list, 1)
}

func TestServicosNaoConfiguradosRespondem503(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/api/whatsapp/status", token, nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/api/cep/90010000", token, nil, nil))
}

func wsURL(e *apiEnv, table, token string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/realtime/" + table + "?token=" + token
}

type streamFrame struct {
	Status string                `json:"status"`
	Event  *realtime.ChangeEvent `json:"event"`
}

func TestRealtimeStreamDeliversTenantEvents(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/realtime/usuarios?token="+token, "", nil, nil))

	baseline := e.broker.Len()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(e, models.TableEleitores, token), nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var first streamFrame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, string(realtime.StatusSubscribed), first.Status)

	// Evento de outra empresa não chega ao stream.
	outra, err := realtime.NewEvent(models.TableEleitores, realtime.EventInsert,
		map[string]string{"id": uuid.NewString(), "empresa_id": uuid.NewString(), "nome": "Intruso"}, nil)
	require.NoError(t, err)
	e.broker.Publish(outra)

	var created models.Eleitor
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/eleitores", token, map[string]string{"nome": "Eva Martins"}, &created))

	var frame streamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.NotNil(t, frame.Event)
	assert.Equal(t, realtime.EventInsert, frame.Event.Type)
	var row models.Eleitor
	require.NoError(t, json.Unmarshal(frame.Event.Row(), &row))
	assert.Equal(t, created.ID, row.ID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return e.broker.Len() == baseline }, 2*time.Second, 10*time.Millisecond)
}

func TestRealtimeStreamEndsWithSession(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(e, models.TableOficios, token), nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var first streamFrame
	require.NoError(t, conn.ReadJSON(&first))

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/api/logout", token, nil, nil))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "erro inesperado: %v", err)
	require.Eventually(t, func() bool { return e.broker.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

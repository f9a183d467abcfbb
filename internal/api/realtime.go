package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/slices"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = wsPongWait * 9 / 10
	wsReadLimit   = 512
	wsEventBuffer = 64
)

// streamMessage é o quadro enviado ao cliente: um evento ou uma transição de
// status da assinatura.
type streamMessage struct {
	Status string                `json:"status,omitempty"`
	Error  string                `json:"error,omitempty"`
	Event  *realtime.ChangeEvent `json:"event,omitempty"`
}

func (s *Server) handleRealtimeStatus(w http.ResponseWriter, r *http.Request) {
	ws := sessionFrom(r).Workspace()
	if ws == nil {
		writeJSON(w, http.StatusOK, map[string]listview.State{})
		return
	}
	writeJSON(w, http.StatusOK, ws.States())
}

// handleRealtime transmite por websocket as alterações de uma tabela da
// empresa da sessão. O stream termina com a sessão, com a queda da assinatura
// ou quando o cliente não acompanha o ritmo dos eventos.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r, s.deps.Feed != nil, "realtime") {
		return
	}
	table := chi.URLParam(r, "table")
	if !slices.Contains(models.RealtimeTables, table) {
		writeError(w, r, fmt.Errorf("%w: tabela %q sem canal de alterações", appErrors.ErrNotFound, table))
		return
	}
	session := sessionFrom(r)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	msgs := make(chan streamMessage, wsEventBuffer)
	push := func(m streamMessage) {
		select {
		case msgs <- m:
		default:
			// Cliente lento: encerra; ele reconecta e recarrega a lista.
			cancel()
		}
	}

	// 1. Assinar antes do upgrade para ainda poder responder com erro HTTP
	sub, err := s.deps.Feed.Subscribe(table, realtime.Eq(listview.DefaultTenantColumn, session.EmpresaID.String()),
		func(ev realtime.ChangeEvent) {
			push(streamMessage{Event: &ev})
		},
		func(status realtime.Status, err error) {
			m := streamMessage{Status: string(status)}
			if err != nil {
				m.Error = err.Error()
			}
			push(m)
			if status.IsDrop() {
				cancel()
			}
		})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Unsubscribe()

	// 2. Upgrade (em caso de falha o upgrader já respondeu)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("Upgrade de websocket recusado para %s: %v", table, err)
		return
	}
	defer conn.Close()
	removeCloser := session.OnClose(cancel)
	defer removeCloser()

	log := s.log.WithField("table", table).WithField("empresa_id", session.EmpresaID)
	log.Debug("Stream de alterações aberto")

	// 3. Leitor: só processa pongs e detecta o fechamento pelo cliente
	go func() {
		defer cancel()
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 4. Escritor
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case m := <-msgs:
			if err := writeStream(conn, m); err != nil {
				log.Debugf("Falha ao escrever no stream: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			drainStream(conn, msgs)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			log.Debug("Stream de alterações encerrado")
			return
		}
	}
}

func writeStream(conn *websocket.Conn, m streamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(m)
}

// drainStream envia o que já estava na fila, como o status que derrubou a
// assinatura.
func drainStream(conn *websocket.Conn, msgs <-chan streamMessage) {
	for {
		select {
		case m := <-msgs:
			if err := writeStream(conn, m); err != nil {
				return
			}
		default:
			return
		}
	}
}

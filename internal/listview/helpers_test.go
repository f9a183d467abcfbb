package listview

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// carta é um registro mínimo no formato das linhas de ofícios.
type carta struct {
	ID      string    `json:"id"`
	Empresa string    `json:"empresa_id"`
	Status  string    `json:"status"`
	Assunto string    `json:"assunto"`
	Data    time.Time `json:"data"`
}

func (c carta) Key() string { return c.ID }

func validaCarta(c *carta) error {
	if c.Status == "" {
		return errors.New("status obrigatório")
	}
	return nil
}

func evento(t testing.TB, typ realtime.EventType, newRow, oldRow interface{}) realtime.ChangeEvent {
	t.Helper()
	ev, err := realtime.NewEvent("oficios", typ, newRow, oldRow)
	require.NoError(t, err)
	return ev
}

func rawEvento(typ realtime.EventType, newRow, oldRow string) realtime.ChangeEvent {
	ev := realtime.ChangeEvent{Table: "oficios", Type: typ}
	if newRow != "" {
		ev.New = json.RawMessage(newRow)
	}
	if oldRow != "" {
		ev.Old = json.RawMessage(oldRow)
	}
	return ev
}

func chaves(items []carta) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.ID
	}
	return out
}

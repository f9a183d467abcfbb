package listview

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
)

func TestApplyEventInsertUpdateDelete(t *testing.T) {
	s := NewStore[carta](Append)
	s.Replace([]carta{{ID: "1", Status: "Recebida", Assunto: "Iluminação"}})

	require.NoError(t, ApplyEvent(s, evento(t, realtime.EventInsert, carta{ID: "2", Status: "Recebida"}, nil), validaCarta))
	assert.Equal(t, []string{"1", "2"}, s.Keys())

	// Merge raso: assunto ausente do patch é mantido.
	require.NoError(t, ApplyEvent(s, rawEvento(realtime.EventUpdate, `{"id":"1","status":"Protocolada"}`, ""), validaCarta))
	got, _ := s.Get("1")
	assert.Equal(t, "Protocolada", got.Status)
	assert.Equal(t, "Iluminação", got.Assunto)

	require.NoError(t, ApplyEvent(s, rawEvento(realtime.EventDelete, "", `{"id":"2"}`), validaCarta))
	assert.Equal(t, []string{"1"}, s.Keys())
}

func TestApplyEventUpdateUnknownInserts(t *testing.T) {
	s := NewStore[carta](Append)
	require.NoError(t, ApplyEvent(s, rawEvento(realtime.EventUpdate, `{"id":"9","status":"Recebida"}`, ""), validaCarta))
	assert.Equal(t, 1, s.Len())
}

func TestApplyEventRejectsMalformedRows(t *testing.T) {
	s := NewStore[carta](Append)
	s.Replace([]carta{{ID: "1", Status: "Recebida"}})

	err := ApplyEvent(s, rawEvento(realtime.EventInsert, `{"id":"2","status":`, ""), validaCarta)
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)

	err = ApplyEvent(s, rawEvento(realtime.EventInsert, `{"id":"2"}`, ""), validaCarta)
	assert.Error(t, err)

	err = ApplyEvent(s, rawEvento(realtime.EventUpdate, `{"id":"1","status":""}`, ""), validaCarta)
	assert.Error(t, err)
	got, _ := s.Get("1")
	assert.Equal(t, "Recebida", got.Status)

	err = ApplyEvent(s, rawEvento(realtime.EventDelete, "", `{"status":"x"}`), validaCarta)
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	assert.Equal(t, 1, s.Len())
}

func TestRowKey(t *testing.T) {
	k, err := RowKey([]byte(`{"id":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", k)

	k, err = RowKey([]byte(`{"id":42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", k)

	_, err = RowKey([]byte(`{"id":null}`))
	assert.Error(t, err)
}

// Replay de eventos sobre o cache converge para o mesmo conjunto de chaves que
// um snapshot novo do "servidor" depois dos mesmos eventos.
func TestApplyEventConvergesWithFreshSnapshot(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		server := map[string]carta{}
		var initial []carta
		for i := 0; i < 5; i++ {
			c := carta{ID: fmt.Sprintf("r%d-%d", round, i), Status: "Recebida"}
			server[c.ID] = c
			initial = append(initial, c)
		}

		local := NewStore[carta](Prepend)
		local.Replace(initial)

		next := 5
		for step := 0; step < 40; step++ {
			ids := make([]string, 0, len(server))
			for id := range server {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			var ev realtime.ChangeEvent
			switch op := rng.Intn(4); {
			case op == 0 || len(ids) == 0:
				c := carta{ID: fmt.Sprintf("r%d-%d", round, next), Status: "Recebida"}
				next++
				server[c.ID] = c
				ev = evento(t, realtime.EventInsert, c, nil)
			case op == 1:
				c := server[ids[rng.Intn(len(ids))]]
				c.Status = "Protocolada"
				server[c.ID] = c
				ev = evento(t, realtime.EventUpdate, c, nil)
			case op == 2:
				c := server[ids[rng.Intn(len(ids))]]
				delete(server, c.ID)
				ev = evento(t, realtime.EventDelete, nil, c)
			default:
				// Eco de um insert já aplicado (ex: escrita otimista local).
				c := server[ids[rng.Intn(len(ids))]]
				ev = evento(t, realtime.EventInsert, c, nil)
			}
			require.NoError(t, ApplyEvent(local, ev, validaCarta))
		}

		fresh := make([]string, 0, len(server))
		for id := range server {
			fresh = append(fresh, id)
		}
		got := local.Keys()
		assert.ElementsMatch(t, fresh, got, "round %d", round)
	}
}

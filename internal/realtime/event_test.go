package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
)

func TestDecodePayloadFromTrigger(t *testing.T) {
	payload := `{"table":"oficios","type":"update","new":{"id":"a1","empresa_id":"e1","status":"Protocolada"},"old":{"id":"a1","empresa_id":"e1","status":"Recebida"},"commit_timestamp":"2024-05-01T12:30:00.123456+00:00"}`

	ev, err := DecodePayload([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "oficios", ev.Table)
	assert.Equal(t, EventUpdate, ev.Type)
	assert.JSONEq(t, `{"id":"a1","empresa_id":"e1","status":"Protocolada"}`, string(ev.Row()))
	assert.Equal(t, 2024, ev.CommitTime.Year())
	assert.False(t, ev.Truncated)
}

func TestDecodePayloadDeleteUsesOld(t *testing.T) {
	ev, err := DecodePayload([]byte(`{"table":"eleitores","type":"DELETE","new":null,"old":{"id":"x"},"commit_timestamp":"2024-05-01T12:30:00Z"}`))
	require.NoError(t, err)
	assert.Nil(t, ev.New)
	assert.JSONEq(t, `{"id":"x"}`, string(ev.Row()))
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	_, err := DecodePayload([]byte(`{"table":"oficios","type":"TRUNCATE"}`))
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)

	_, err = DecodePayload([]byte(`não é json`))
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)

	_, err = DecodePayload([]byte(`{"type":"INSERT"}`))
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("empresa_id=eq.123")
	require.NoError(t, err)
	assert.Equal(t, Eq("empresa_id", "123"), f)
	assert.Equal(t, "empresa_id=eq.123", f.String())

	f, err = ParseFilter("  ")
	require.NoError(t, err)
	assert.True(t, f.IsZero())

	_, err = ParseFilter("empresa_id=gt.1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	_, err = ParseFilter("=eq.1")
	assert.Error(t, err)
}

func TestFilterMatches(t *testing.T) {
	ev := ChangeEvent{Table: "oficios", Type: EventInsert, New: []byte(`{"id":"1","empresa_id":"e1","numero":42}`), CommitTime: time.Now()}

	assert.True(t, Filter{}.Matches(ev))
	assert.True(t, Eq("empresa_id", "e1").Matches(ev))
	assert.False(t, Eq("empresa_id", "e2").Matches(ev))
	assert.True(t, Eq("numero", "42").Matches(ev))
	assert.False(t, Eq("ausente", "x").Matches(ev))

	del := ChangeEvent{Table: "oficios", Type: EventDelete, Old: []byte(`{"id":"1","empresa_id":"e1"}`)}
	assert.True(t, Eq("empresa_id", "e1").Matches(del))
}

func TestStatusIsDrop(t *testing.T) {
	assert.False(t, StatusSubscribed.IsDrop())
	for _, st := range []Status{StatusClosed, StatusChannelError, StatusTimedOut} {
		assert.True(t, st.IsDrop(), st)
	}
}

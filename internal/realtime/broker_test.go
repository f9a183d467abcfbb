package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder acumula eventos e status recebidos por uma assinatura.
type recorder struct {
	mu       sync.Mutex
	events   []ChangeEvent
	statuses []Status
	errs     []error
}

func (r *recorder) onEvent(ev ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) onStatus(st Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
	r.errs = append(r.errs, err)
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) statusList() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func row(t *testing.T, id, empresa string) ChangeEvent {
	t.Helper()
	ev, err := NewEvent("oficios", EventInsert, map[string]string{"id": id, "empresa_id": empresa}, nil)
	require.NoError(t, err)
	return ev
}

func TestBrokerDeliversInOrderToMatchingSubscribers(t *testing.T) {
	b := NewBroker(16)
	defer b.Close()

	var a, other recorder
	_, err := b.Subscribe("oficios", Eq("empresa_id", "e1"), a.onEvent, a.onStatus)
	require.NoError(t, err)
	_, err = b.Subscribe("oficios", Eq("empresa_id", "e2"), other.onEvent, other.onStatus)
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "3"} {
		b.Publish(row(t, id, "e1"))
	}
	b.Publish(row(t, "4", "e2"))
	b.Publish(ChangeEvent{Table: "eleitores", Type: EventInsert, New: []byte(`{"id":"5","empresa_id":"e1"}`)})

	require.Eventually(t, func() bool { return a.eventCount() == 3 && other.eventCount() == 1 }, time.Second, 5*time.Millisecond)

	a.mu.Lock()
	var ids []string
	for _, ev := range a.events {
		ids = append(ids, string(ev.New))
	}
	a.mu.Unlock()
	assert.Equal(t, []string{`{"empresa_id":"e1","id":"1"}`, `{"empresa_id":"e1","id":"2"}`, `{"empresa_id":"e1","id":"3"}`}, ids)
	assert.Equal(t, []Status{StatusSubscribed}, a.statusList())
}

func TestBrokerUnsubscribeEmitsNoStatus(t *testing.T) {
	b := NewBroker(4)
	defer b.Close()

	var r recorder
	sub, err := b.Subscribe("oficios", Filter{}, r.onEvent, r.onStatus)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(r.statusList()) == 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, b.Len())

	b.Publish(row(t, "1", "e1"))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, r.eventCount())
	assert.Equal(t, []Status{StatusSubscribed}, r.statusList())
}

func TestBrokerDropAllReportsStatus(t *testing.T) {
	b := NewBroker(4)
	defer b.Close()

	var r recorder
	_, err := b.Subscribe("oficios", Filter{}, r.onEvent, r.onStatus)
	require.NoError(t, err)

	cause := errors.New("conexão caiu")
	b.DropAll(StatusChannelError, cause)

	require.Eventually(t, func() bool { return len(r.statusList()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Status{StatusSubscribed, StatusChannelError}, r.statusList())
	r.mu.Lock()
	assert.Equal(t, cause, r.errs[1])
	r.mu.Unlock()
}

func TestBrokerOverflowDropsSlowConsumer(t *testing.T) {
	b := NewBroker(1)
	defer b.Close()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var r recorder
	_, err := b.Subscribe("oficios", Filter{}, func(ev ChangeEvent) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		r.onEvent(ev)
	}, r.onStatus)
	require.NoError(t, err)

	// O primeiro evento ocupa o handler, o segundo a fila, o terceiro transborda.
	b.Publish(row(t, "1", "e1"))
	<-started
	b.Publish(row(t, "2", "e1"))
	b.Publish(row(t, "3", "e1"))
	assert.Equal(t, 0, b.Len())
	close(release)

	require.Eventually(t, func() bool {
		st := r.statusList()
		return len(st) == 2 && st[1] == StatusChannelError
	}, time.Second, 5*time.Millisecond)
	r.mu.Lock()
	assert.ErrorIs(t, r.errs[1], ErrSlowConsumer)
	r.mu.Unlock()
}

func TestBrokerCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker(4)
	var r recorder
	_, err := b.Subscribe("oficios", Filter{}, r.onEvent, r.onStatus)
	require.NoError(t, err)

	b.Close()
	assert.Contains(t, r.statusList(), StatusClosed)

	_, err = b.Subscribe("oficios", Filter{}, r.onEvent, r.onStatus)
	assert.ErrorIs(t, err, ErrFeedClosed)
	assert.True(t, errors.Is(err, appErrors.ErrSubscription))
}

func TestBrokerRejectsEmptyTable(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()
	_, err := b.Subscribe("", Filter{}, func(ChangeEvent) {}, nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

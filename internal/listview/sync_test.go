package listview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/realtime"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeServer simula a consulta de snapshot por tenant.
type fakeServer struct {
	mu    sync.Mutex
	rows  map[string][]carta
	calls int
	err   error
	block bool
}

func (f *fakeServer) fetch(ctx context.Context, tenant string) ([]carta, error) {
	f.mu.Lock()
	f.calls++
	block, err := f.block, f.err
	rows := append([]carta(nil), f.rows[tenant]...)
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *fakeServer) set(fn func(f *fakeServer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeServer) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyFeed repassa para o Broker, mas pode recusar novas assinaturas.
type flakyFeed struct {
	*realtime.Broker
	mu      sync.Mutex
	calls   int
	failing bool
}

func (f *flakyFeed) Subscribe(table string, filter realtime.Filter, onEvent realtime.Handler, onStatus realtime.StatusHandler) (realtime.Subscription, error) {
	f.mu.Lock()
	f.calls++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return nil, errors.New("feed indisponível")
	}
	return f.Broker.Subscribe(table, filter, onEvent, onStatus)
}

func (f *flakyFeed) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyFeed) subscribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(st State, _ error) {
	l.mu.Lock()
	l.states = append(l.states, st)
	l.mu.Unlock()
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newTestSync(t *testing.T, feed realtime.Feed, srv *fakeServer, mutate func(*SyncConfig[carta])) *Sync[carta] {
	t.Helper()
	cfg := SyncConfig[carta]{
		Table:     "oficios",
		Feed:      feed,
		Fetch:     srv.fetch,
		Validate:  validaCarta,
		Position:  Prepend,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSync(cfg)
	require.NoError(t, err)
	return s
}

func waitLive(t *testing.T, s *Sync[carta]) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == StateLive }, waitFor, tick)
}

func TestNewSyncRequiresFeedAndFetch(t *testing.T) {
	_, err := NewSync(SyncConfig[carta]{Table: "oficios"})
	assert.ErrorIs(t, err, appErrors.ErrConfiguration)
}

func TestSyncStartLoadsAndAppliesEvents(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{
		"t1": {{ID: "1", Empresa: "t1", Status: "Recebida"}},
	}}
	s := newTestSync(t, broker, srv, nil)
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)
	assert.Equal(t, []string{"1"}, chaves(s.Items()))

	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "2", Empresa: "t1", Status: "Recebida"}, nil))
	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "x", Empresa: "t2", Status: "Recebida"}, nil))
	broker.Publish(evento(t, realtime.EventUpdate, carta{ID: "1", Empresa: "t1", Status: "Protocolada"}, nil))

	require.Eventually(t, func() bool {
		c, ok := s.Store().Get("1")
		return ok && c.Status == "Protocolada"
	}, waitFor, tick)
	assert.Equal(t, []string{"2", "1"}, chaves(s.Items()))
	assert.Equal(t, 1, srv.fetchCalls())
}

func TestSyncSkipsMalformedEvents(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{}}
	s := newTestSync(t, broker, srv, nil)
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)

	broker.Publish(rawEvento(realtime.EventInsert, `{"id":"ruim","empresa_id":"t1"}`, ""))
	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "bom", Empresa: "t1", Status: "Recebida"}, nil))

	require.Eventually(t, func() bool { return s.Store().Len() == 1 }, waitFor, tick)
	_, ok := s.Store().Get("ruim")
	assert.False(t, ok)
	assert.Equal(t, StateLive, s.State())
}

func TestSyncTenantSwitchReplacesSubscription(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{
		"t1": {{ID: "a", Empresa: "t1", Status: "Recebida"}},
		"t2": {{ID: "b", Empresa: "t2", Status: "Recebida"}},
	}}
	s := newTestSync(t, broker, srv, nil)
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)
	require.NoError(t, s.Start(context.Background(), "t2"))
	waitLive(t, s)

	assert.Equal(t, 1, broker.Len())
	assert.Equal(t, "t2", s.Tenant())

	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "velho", Empresa: "t1", Status: "Recebida"}, nil))
	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "novo", Empresa: "t2", Status: "Recebida"}, nil))
	require.Eventually(t, func() bool { return s.Store().Len() == 2 }, waitFor, tick)
	assert.ElementsMatch(t, []string{"b", "novo"}, chaves(s.Items()))
}

func TestSyncTenantSwitchWaitsForEventInFlight(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{
		"t1": {{ID: "a", Empresa: "t1", Status: "Recebida"}},
		"t2": {{ID: "b", Empresa: "t2", Status: "Recebida"}},
	}}
	entrou := make(chan struct{})
	libera := make(chan struct{})
	s := newTestSync(t, broker, srv, func(cfg *SyncConfig[carta]) {
		cfg.Validate = func(c *carta) error {
			if c.ID == "t1-only" {
				close(entrou)
				<-libera
			}
			return validaCarta(c)
		}
	})
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)

	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "t1-only", Empresa: "t1", Status: "Recebida"}, nil))
	<-entrou

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background(), "t2") }()
	select {
	case err := <-done:
		t.Fatalf("troca de tenant concluída com evento do tenant anterior em aplicação (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(libera)
	require.NoError(t, <-done)
	waitLive(t, s)
	assert.Equal(t, "t2", s.Tenant())
	assert.Equal(t, []string{"b"}, chaves(s.Items()))
}

func TestSyncStopWaitsForEventInFlight(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{}}
	entrou := make(chan struct{})
	libera := make(chan struct{})
	s := newTestSync(t, broker, srv, func(cfg *SyncConfig[carta]) {
		cfg.Validate = func(c *carta) error {
			if c.ID == "tarde" {
				close(entrou)
				<-libera
			}
			return validaCarta(c)
		}
	})
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)
	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "tarde", Empresa: "t1", Status: "Recebida"}, nil))
	<-entrou

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)
	close(libera)
	<-stopped

	assert.Equal(t, StateStopped, s.State())
	assert.Zero(t, s.Store().Len())
}

func TestSyncLoadFailureThenReload(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{err: errors.New("banco fora"), rows: map[string][]carta{
		"t1": {{ID: "1", Empresa: "t1", Status: "Recebida"}},
	}}
	s := newTestSync(t, broker, srv, nil)
	defer s.Close()

	err := s.Start(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrResourceLoading)
	assert.Equal(t, StateLoadFailed, s.State())
	assert.Zero(t, broker.Len())

	srv.set(func(f *fakeServer) { f.err = nil })
	require.NoError(t, s.Reload(context.Background()))
	waitLive(t, s)
	assert.Equal(t, []string{"1"}, chaves(s.Items()))
	assert.Equal(t, 1, broker.Len())
}

func TestSyncFetchTimeout(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{block: true}
	s := newTestSync(t, broker, srv, func(c *SyncConfig[carta]) { c.FetchTimeout = 20 * time.Millisecond })
	defer s.Close()

	err := s.Start(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, StateLoadFailed, s.State())
}

func TestSyncReloadBeforeStart(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	s := newTestSync(t, broker, &fakeServer{}, nil)
	defer s.Close()

	assert.ErrorIs(t, s.Reload(context.Background()), ErrNotStarted)
	assert.ErrorIs(t, s.Reconnect(), ErrNotStarted)
}

// Depois de duas mudanças, a assinatura cai e o feed recusa novas assinaturas:
// exatamente MaxRetries tentativas, depois falha persistente até Reconnect.
func TestSyncDropExhaustsRetries(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	feed := &flakyFeed{Broker: broker}
	srv := &fakeServer{rows: map[string][]carta{}}
	states := &stateLog{}
	s := newTestSync(t, feed, srv, func(c *SyncConfig[carta]) {
		c.MaxRetries = 3
		c.OnStateChange = states.record
	})
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)

	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "1", Empresa: "t1", Status: "Recebida"}, nil))
	broker.Publish(evento(t, realtime.EventInsert, carta{ID: "2", Empresa: "t1", Status: "Recebida"}, nil))
	require.Eventually(t, func() bool { return s.Store().Len() == 2 }, waitFor, tick)

	feed.setFailing(true)
	broker.DropAll(realtime.StatusChannelError, nil)

	require.Eventually(t, func() bool { return s.State() == StateFailed }, waitFor, tick)
	assert.Equal(t, 3, s.Attempts())
	assert.Equal(t, 4, feed.subscribeCalls())
	assert.ErrorIs(t, s.Err(), appErrors.ErrSubscription)
	// O cache continua disponível, só deixa de ser atualizado.
	assert.Equal(t, 2, s.Store().Len())

	recorded := states.all()
	require.NotEmpty(t, recorded)
	assert.Equal(t, StateFailed, recorded[len(recorded)-1])
	assert.Contains(t, recorded, StateReconnecting)

	// Reconexão manual volta ao vivo e recarrega o snapshot.
	feed.setFailing(false)
	srv.set(func(f *fakeServer) {
		f.rows["t1"] = []carta{
			{ID: "1", Empresa: "t1", Status: "Recebida"},
			{ID: "2", Empresa: "t1", Status: "Recebida"},
			{ID: "3", Empresa: "t1", Status: "Recebida"},
		}
	})
	require.NoError(t, s.Reconnect())
	waitLive(t, s)
	require.Eventually(t, func() bool { return s.Store().Len() == 3 }, waitFor, tick)
	assert.Zero(t, s.Attempts())
	assert.Equal(t, 2, srv.fetchCalls())
}

func TestSyncResyncsAfterTransientDrop(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{
		"t1": {{ID: "1", Empresa: "t1", Status: "Recebida"}},
	}}
	s := newTestSync(t, broker, srv, nil)
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)

	// Mudança feita enquanto a assinatura estava fora.
	srv.set(func(f *fakeServer) {
		f.rows["t1"] = append(f.rows["t1"], carta{ID: "perdido", Empresa: "t1", Status: "Recebida"})
	})
	broker.DropAll(realtime.StatusTimedOut, nil)

	require.Eventually(t, func() bool {
		_, ok := s.Store().Get("perdido")
		return ok && s.State() == StateLive
	}, waitFor, tick)
	assert.Zero(t, s.Attempts())
	assert.Equal(t, 1, broker.Len())
}

func TestSyncTruncatedEventTriggersReload(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{
		"t1": {{ID: "1", Empresa: "t1", Status: "Recebida", Assunto: "curto"}},
	}}
	s := newTestSync(t, broker, srv, nil)
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)

	srv.set(func(f *fakeServer) {
		f.rows["t1"] = []carta{{ID: "1", Empresa: "t1", Status: "Recebida", Assunto: "muito longo"}}
	})
	ev := rawEvento(realtime.EventUpdate, `{"id":"1","empresa_id":"t1"}`, "")
	ev.Truncated = true
	broker.Publish(ev)

	require.Eventually(t, func() bool {
		c, _ := s.Store().Get("1")
		return c.Assunto == "muito longo"
	}, waitFor, tick)
	assert.Equal(t, 2, srv.fetchCalls())
}

func TestSyncStopReleasesSubscription(t *testing.T) {
	broker := realtime.NewBroker(0)
	defer broker.Close()
	srv := &fakeServer{rows: map[string][]carta{
		"t1": {{ID: "1", Empresa: "t1", Status: "Recebida"}},
	}}
	s := newTestSync(t, broker, srv, nil)

	require.NoError(t, s.Start(context.Background(), "t1"))
	waitLive(t, s)

	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	assert.Zero(t, broker.Len())
	assert.Zero(t, s.Store().Len())

	s.Close()
	assert.ErrorIs(t, s.Start(context.Background(), "t1"), ErrSyncClosed)
}

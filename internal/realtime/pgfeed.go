package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

const (
	pgMinReconnect  = 2 * time.Second
	pgMaxReconnect  = time.Minute
	pgPingInterval  = 90 * time.Second
	errDisconnected = "conexão do listener com o PostgreSQL perdida"
)

// PGFeed é um Feed alimentado por LISTEN/NOTIFY. Os triggers instalados por
// data.InstallNotifyTriggers publicam cada alteração no canal; o PGFeed
// repassa os eventos a um Broker interno. Quando a conexão cai, todas as
// assinaturas recebem CHANNEL_ERROR e os consumidores reassinam.
type PGFeed struct {
	broker    *Broker
	listener  *pq.Listener
	channel   string
	connected atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	log       *logrus.Entry
}

// NewPGFeed conecta ao PostgreSQL e passa a escutar o canal informado.
func NewPGFeed(dsn, channel string, buffer int) (*PGFeed, error) {
	f := &PGFeed{
		broker:  NewBroker(buffer),
		channel: channel,
		done:    make(chan struct{}),
		log:     appLogger.WithFields(logrus.Fields{"component": "realtime.pgfeed", "channel": channel}),
	}
	f.listener = pq.NewListener(dsn, pgMinReconnect, pgMaxReconnect, f.onListenerEvent)
	if err := f.listener.Listen(channel); err != nil {
		_ = f.listener.Close()
		return nil, fmt.Errorf("%w: LISTEN %s: %v", appErrors.ErrSubscription, channel, err)
	}
	f.connected.Store(true)

	f.wg.Add(1)
	go f.loop()
	f.log.Info("Escutando notificações do PostgreSQL")
	return f, nil
}

func (f *PGFeed) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		f.connected.Store(true)
	case pq.ListenerEventDisconnected:
		f.connected.Store(false)
		f.log.Warnf("Listener desconectado: %v", err)
		f.broker.DropAll(StatusChannelError, fmt.Errorf("%w: %s: %v", appErrors.ErrSubscription, errDisconnected, err))
	case pq.ListenerEventReconnected:
		f.connected.Store(true)
		f.log.Info("Listener reconectado")
	case pq.ListenerEventConnectionAttemptFailed:
		f.log.Debugf("Tentativa de reconexão do listener falhou: %v", err)
	}
}

func (f *PGFeed) loop() {
	defer f.wg.Done()
	ticker := time.NewTicker(pgPingInterval)
	defer ticker.Stop()
	for {
		select {
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil é enviado após uma reconexão; as assinaturas já foram derrubadas.
			if n == nil {
				continue
			}
			f.dispatch(n.Extra)
		case <-ticker.C:
			if err := f.listener.Ping(); err != nil {
				f.log.Debugf("Ping do listener falhou: %v", err)
			}
		case <-f.done:
			return
		}
	}
}

func (f *PGFeed) dispatch(payload string) {
	ev, err := DecodePayload([]byte(payload))
	if err != nil {
		f.log.Errorf("Notificação descartada: %v", err)
		return
	}
	f.broker.Publish(ev)
}

// Subscribe falha enquanto o listener estiver desconectado, para que o
// consumidor aplique sua política de reconexão.
func (f *PGFeed) Subscribe(table string, filter Filter, onEvent Handler, onStatus StatusHandler) (Subscription, error) {
	if !f.connected.Load() {
		return nil, fmt.Errorf("%w: %s", appErrors.ErrSubscription, errDisconnected)
	}
	return f.broker.Subscribe(table, filter, onEvent, onStatus)
}

// Close para o listener e encerra as assinaturas com CLOSED.
func (f *PGFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.listener.Close()
		f.wg.Wait()
		f.broker.Close()
		f.log.Info("Listener do PostgreSQL encerrado")
	})
	return err
}
